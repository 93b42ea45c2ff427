package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"

	"github.com/utxochain/btcnode/internal/nodeerr"
)

// TargetBits is the process-wide PoW difficulty: a valid block hash,
// interpreted as a big-endian unsigned 256-bit integer, must be at most
// 2^(256-TargetBits). Fixed rather than adjusted, per the out-of-scope
// difficulty-adjustment note.
const TargetBits = 10

// ProofOfWork binds a block to the target its hash must satisfy.
type ProofOfWork struct {
	block  *Block
	target *big.Int
}

// NewProofOfWork derives the target 2^(256-TargetBits) and pairs it with b.
func NewProofOfWork(b *Block) *ProofOfWork {
	target := big.NewInt(1)
	target.Lsh(target, uint(256-TargetBits))
	return &ProofOfWork{block: b, target: target}
}

// transactionsDigest is SHA256(concat(tx.ID bytes for tx in transactions)),
// using each id's ASCII hex-string bytes, not its decoded value, so the
// digest is reproducible from the id's textual form alone.
func transactionsDigest(txs []*Transaction) []byte {
	var concat []byte
	for _, tx := range txs {
		concat = append(concat, []byte(tx.ID)...)
	}
	digest := sha256.Sum256(concat)
	return digest[:]
}

// prepareData builds the canonical ASCII preimage
// prevHash ":" txDigest ":" timestamp ":" TargetBits ":" nonce.
func (pow *ProofOfWork) prepareData(nonce uint64) []byte {
	digest := transactionsDigest(pow.block.Transactions)

	data := fmt.Sprintf("%s:%s:%d:%d:%d",
		pow.block.PrevBlockHash,
		hex.EncodeToString(digest),
		pow.block.Timestamp,
		TargetBits,
		nonce,
	)
	return []byte(data)
}

// Run searches nonce upward from 0 until SHA256(prepareData(nonce)),
// interpreted as a big-endian unsigned integer, is at most the target.
// Returns nodeerr.ErrProofOfWorkExhausted if no nonce up to and including
// math.MaxUint64 satisfies the target.
func (pow *ProofOfWork) Run() (uint64, string, error) {
	var intHash big.Int
	var hash [32]byte

	var nonce uint64
	for {
		hash = sha256.Sum256(pow.prepareData(nonce))
		intHash.SetBytes(hash[:])

		if intHash.Cmp(pow.target) <= 0 {
			return nonce, hex.EncodeToString(hash[:]), nil
		}
		if nonce == math.MaxUint64 {
			return 0, "", nodeerr.ErrProofOfWorkExhausted
		}
		nonce++
	}
}

// Validate recomputes the hash for the block's stored nonce and reports
// whether it still satisfies the target.
func (pow *ProofOfWork) Validate() (bool, error) {
	hash := sha256.Sum256(pow.prepareData(pow.block.Nonce))

	var intHash big.Int
	intHash.SetBytes(hash[:])
	return intHash.Cmp(pow.target) <= 0, nil
}
