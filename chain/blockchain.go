package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/utxochain/btcnode/internal/nodeerr"
	"github.com/utxochain/btcnode/wallet"
)

// BlockChain is the chain service: mining, full-chain UTXO discovery,
// transaction lookup, and sign/verify orchestration, all driven off a
// single Store.
type BlockChain struct {
	Store *Store
}

// NewBlockChain wraps an already-open Store in a chain service.
func NewBlockChain(store *Store) *BlockChain {
	return &BlockChain{Store: store}
}

// MineBlock verifies every tx, assembles a block atop the current tip, runs
// PoW, and atomically appends it. The correlation id exists purely to tie
// together this attempt's log lines; it is never part of the preimage or
// the persisted block.
func (bc *BlockChain) MineBlock(txs []*Transaction) (*Block, error) {
	attempt := uuid.New().String()
	log.Printf("mining attempt %s: %d transaction(s)", attempt, len(txs))

	for _, tx := range txs {
		ok, err := bc.VerifyTransaction(tx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: transaction %s failed verification", nodeerr.ErrInvalidTransaction, tx.ID)
		}
	}

	tip, err := bc.Store.Tip()
	if err != nil {
		return nil, err
	}

	block, err := newBlock(uint64(time.Now().UnixMilli()), txs, tip)
	if err != nil {
		return nil, err
	}

	if err := bc.Store.Append(block); err != nil {
		return nil, err
	}
	log.Printf("mining attempt %s: appended block %s", attempt, block.Hash)
	return block, nil
}

// FindUTXO walks the chain tip-to-genesis, returning the output list of
// every transaction that still has an unspent output, with spent positions
// left nil, matching the shape UTXOSet persists so that reindex output and a
// fresh scan always agree. Fully spent transactions are omitted.
func (bc *BlockChain) FindUTXO() (map[string][]*TxOutput, error) {
	spent := make(map[string]map[int]bool)
	utxo := make(map[string][]*TxOutput)

	it, err := bc.Store.IterateFromTip()
	if err != nil {
		return nil, err
	}

	for {
		block, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		for _, tx := range block.Transactions {
			outs := make([]*TxOutput, len(tx.Vout))
			for idx := range tx.Vout {
				if spent[tx.ID][idx] {
					continue
				}
				out := tx.Vout[idx]
				outs[idx] = &out
			}
			if !allSpent(outs) {
				utxo[tx.ID] = outs
			}

			if tx.IsCoinbase() {
				continue
			}
			for _, in := range tx.Vin {
				if spent[in.Txid] == nil {
					spent[in.Txid] = make(map[int]bool)
				}
				spent[in.Txid][in.Vout] = true
			}
		}
	}
	return utxo, nil
}

// FindTransaction scans the chain tip-to-genesis for the transaction with
// the given id.
func (bc *BlockChain) FindTransaction(id string) (*Transaction, error) {
	it, err := bc.Store.IterateFromTip()
	if err != nil {
		return nil, err
	}

	for {
		block, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		for _, tx := range block.Transactions {
			if tx.ID == id {
				return tx, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: transaction %s not found", nodeerr.ErrInvalidTransaction, id)
}

// resolvePrevTxs builds the txid -> Transaction lookup Sign/Verify need,
// skipping the coinbase's synthetic empty txid.
func (bc *BlockChain) resolvePrevTxs(tx *Transaction) (map[string]*Transaction, error) {
	prevTxs := make(map[string]*Transaction)
	for _, in := range tx.Vin {
		if in.Txid == "" {
			continue
		}
		prevTx, err := bc.FindTransaction(in.Txid)
		if err != nil {
			return nil, err
		}
		prevTxs[in.Txid] = prevTx
	}
	return prevTxs, nil
}

// SignTransaction resolves tx's referenced previous transactions and signs
// every non-coinbase input with privKey.
func (bc *BlockChain) SignTransaction(tx *Transaction, privKey *ecdsa.PrivateKey) error {
	prevTxs, err := bc.resolvePrevTxs(tx)
	if err != nil {
		return err
	}
	return Sign(tx, privKey, prevTxs)
}

// VerifyTransaction resolves tx's referenced previous transactions and
// verifies every input's signature. A missing referenced transaction is a
// verification failure, not an error.
func (bc *BlockChain) VerifyTransaction(tx *Transaction) (bool, error) {
	if tx.IsCoinbase() {
		return true, nil
	}

	prevTxs, err := bc.resolvePrevTxs(tx)
	if err != nil {
		if errors.Is(err, nodeerr.ErrInvalidTransaction) {
			return false, nil
		}
		return false, err
	}
	return Verify(tx, prevTxs)
}

// NewUTXOTransaction builds, ids, and signs a transfer of amount from
// fromAddress to toAddress, selecting spendable outputs from utxoSet and
// emitting a change output back to the sender when the selection
// overshoots amount.
func NewUTXOTransaction(fromAddress, toAddress string, amount int64, wallets *wallet.Wallets, utxoSet *UTXOSet) (*Transaction, error) {
	w, err := wallets.GetWallet(fromAddress)
	if err != nil {
		return nil, err
	}
	pubKeyHash := wallet.PublicKeyHash(w.PublicKey)

	accumulated, selected, err := utxoSet.FindSpendableOutputs(pubKeyHash, amount)
	if err != nil {
		return nil, err
	}
	if accumulated < amount {
		return nil, fmt.Errorf("%w: need %d, have %d", nodeerr.ErrInsufficientFunds, amount, accumulated)
	}

	var vin []TxInput
	for txid, indices := range selected {
		for _, idx := range indices {
			vin = append(vin, TxInput{Txid: txid, Vout: idx, PubKey: w.PublicKey})
		}
	}

	var vout []TxOutput
	paymentOut, err := NewTXOutput(amount, toAddress)
	if err != nil {
		return nil, err
	}
	vout = append(vout, paymentOut)

	if accumulated > amount {
		changeOut, err := NewTXOutput(accumulated-amount, fromAddress)
		if err != nil {
			return nil, err
		}
		vout = append(vout, changeOut)
	}

	tx := &Transaction{Vin: vin, Vout: vout}
	if err := tx.setID(); err != nil {
		return nil, err
	}

	if err := utxoSet.Chain.SignTransaction(tx, w.PrivateKey()); err != nil {
		return nil, err
	}
	return tx, nil
}
