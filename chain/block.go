package chain

import (
	"encoding/json"
	"fmt"

	"github.com/utxochain/btcnode/internal/nodeerr"
)

// Block is one link in the chain: a timestamp, the committed transactions,
// the predecessor's hash, the block's own PoW-satisfying hash, and the
// nonce that produced it.
type Block struct {
	Timestamp     uint64         `json:"timestamp"`
	Transactions  []*Transaction `json:"transactions"`
	PrevBlockHash string         `json:"prev_block_hash"`
	Hash          string         `json:"hash"`
	Nonce         uint64         `json:"nonce"`
}

// newBlock assembles a block over txs atop prevHash and runs PoW to fill in
// Hash and Nonce. The genesis block is produced by passing an empty
// prevHash, per spec.
func newBlock(timestamp uint64, txs []*Transaction, prevHash string) (*Block, error) {
	b := &Block{
		Timestamp:     timestamp,
		Transactions:  txs,
		PrevBlockHash: prevHash,
	}

	pow := NewProofOfWork(b)
	nonce, hash, err := pow.Run()
	if err != nil {
		return nil, err
	}
	b.Nonce = nonce
	b.Hash = hash
	return b, nil
}

// Serialize renders b as its canonical JSON wire form.
func (b *Block) Serialize() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("%w: serialize block: %v", nodeerr.ErrSerialization, err)
	}
	return data, nil
}

// DeserializeBlock parses the JSON wire form written by Serialize.
func DeserializeBlock(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: deserialize block: %v", nodeerr.ErrSerialization, err)
	}
	return &b, nil
}
