package chain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/utxochain/btcnode/internal/nodeerr"
)

var utxoPrefix = []byte("utxo-")

// UTXOSet is the chainstate bucket: txid -> that transaction's currently
// unspent outputs, in original vout order, with nil holes left at spent
// positions so later positional lookups stay valid (see Update).
type UTXOSet struct {
	Chain *BlockChain
}

func utxoKey(txid string) []byte {
	return append(append([]byte{}, utxoPrefix...), []byte(txid)...)
}

func loadOutputs(txn *badger.Txn, key []byte) ([]*TxOutput, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var outs []*TxOutput
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &outs)
	})
	return outs, err
}

// allSpent reports whether every position in outs has already been
// cleared to nil.
func allSpent(outs []*TxOutput) bool {
	for _, o := range outs {
		if o != nil {
			return false
		}
	}
	return true
}

// Reindex drops and recreates the chainstate bucket from chain.FindUTXO(),
// writing every (txid, outputs) pair in a single transaction.
func (u *UTXOSet) Reindex() error {
	if err := u.deleteAll(); err != nil {
		return err
	}

	utxo, err := u.Chain.FindUTXO()
	if err != nil {
		return err
	}

	db := u.Chain.Store.db
	err = db.Update(func(txn *badger.Txn) error {
		for txid, outs := range utxo {
			data, err := json.Marshal(outs)
			if err != nil {
				return err
			}
			if err := txn.Set(utxoKey(txid), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: reindex utxo set: %v", nodeerr.ErrIO, err)
	}
	return nil
}

// deleteAll removes every key under utxoPrefix, batching deletes to bound
// the size of any single write transaction.
func (u *UTXOSet) deleteAll() error {
	db := u.Chain.Store.db

	var keys [][]byte
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(utxoPrefix); it.ValidForPrefix(utxoPrefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: scan utxo set: %v", nodeerr.ErrIO, err)
	}

	const batchSize = 1000
	for start := 0; start < len(keys); start += batchSize {
		end := min(start+batchSize, len(keys))
		batch := keys[start:end]
		err := db.Update(func(txn *badger.Txn) error {
			for _, k := range batch {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: clear utxo set: %v", nodeerr.ErrIO, err)
		}
	}
	return nil
}

// FindSpendableOutputs accumulates outputs locked to pubKeyHash until their
// total reaches amount, traversing the bucket in its natural key order and
// early-exiting once the budget is met.
func (u *UTXOSet) FindSpendableOutputs(pubKeyHash string, amount int64) (int64, map[string][]int, error) {
	unspent := make(map[string][]int)
	var accumulated int64

	db := u.Chain.Store.db
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(utxoPrefix); it.ValidForPrefix(utxoPrefix) && accumulated < amount; it.Next() {
			item := it.Item()
			txid := string(bytes.TrimPrefix(item.Key(), utxoPrefix))

			var outs []*TxOutput
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &outs)
			}); err != nil {
				return err
			}

			for idx, out := range outs {
				if accumulated >= amount {
					break
				}
				if out == nil || out.PubKeyHash != pubKeyHash {
					continue
				}
				accumulated += out.Value
				unspent[txid] = append(unspent[txid], idx)
			}
		}
		return nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("%w: find spendable outputs: %v", nodeerr.ErrIO, err)
	}
	return accumulated, unspent, nil
}

// FindUTXO returns every unspent output locked to pubKeyHash, without a
// spend budget.
func (u *UTXOSet) FindUTXO(pubKeyHash string) ([]*TxOutput, error) {
	var found []*TxOutput

	db := u.Chain.Store.db
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(utxoPrefix); it.ValidForPrefix(utxoPrefix); it.Next() {
			var outs []*TxOutput
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &outs)
			}); err != nil {
				return err
			}
			for _, out := range outs {
				if out != nil && out.PubKeyHash == pubKeyHash {
					found = append(found, out)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: find utxo: %v", nodeerr.ErrIO, err)
	}
	return found, nil
}

// CountTransactions reports how many transactions currently have an entry
// in the chainstate bucket, used by the reindex command's summary.
func (u *UTXOSet) CountTransactions() (int, error) {
	db := u.Chain.Store.db
	count := 0
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(utxoPrefix); it.ValidForPrefix(utxoPrefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count utxo transactions: %v", nodeerr.ErrIO, err)
	}
	return count, nil
}

// Update applies block incrementally: spent positions are nilled out (the
// entry is dropped only once every position is nil), and each transaction's
// full output list is (re)written under its own id.
func (u *UTXOSet) Update(block *Block) error {
	db := u.Chain.Store.db

	err := db.Update(func(txn *badger.Txn) error {
		for _, tx := range block.Transactions {
			if !tx.IsCoinbase() {
				for _, in := range tx.Vin {
					key := utxoKey(in.Txid)
					outs, err := loadOutputs(txn, key)
					if err != nil {
						return err
					}
					if in.Vout >= 0 && in.Vout < len(outs) {
						outs[in.Vout] = nil
					}

					if allSpent(outs) {
						if err := txn.Delete(key); err != nil {
							return err
						}
					} else {
						data, err := json.Marshal(outs)
						if err != nil {
							return err
						}
						if err := txn.Set(key, data); err != nil {
							return err
						}
					}
				}
			}

			newOuts := make([]*TxOutput, len(tx.Vout))
			for i := range tx.Vout {
				out := tx.Vout[i]
				newOuts[i] = &out
			}
			data, err := json.Marshal(newOuts)
			if err != nil {
				return err
			}
			if err := txn.Set(utxoKey(tx.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: update utxo set: %v", nodeerr.ErrIO, err)
	}
	return nil
}
