package chain

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/utxochain/btcnode/internal/nodeerr"
)

var blockPrefix = []byte("blk-")

const lastKey = "last"

// Store is the authoritative block map: hash -> serialized block, plus the
// reserved "last" key naming the current tip.
type Store struct {
	db *badger.DB
}

// storeExists reports whether a Badger database already lives at path, by
// checking for its MANIFEST file.
func storeExists(path string) bool {
	_, err := os.Stat(filepath.Join(path, "MANIFEST"))
	return !os.IsNotExist(err)
}

// OpenStore opens an existing store at path. It never creates one; use
// CreateStore to initialize a fresh chain.
func OpenStore(path string) (*Store, error) {
	if !storeExists(path) {
		return nil, fmt.Errorf("%w: %s", nodeerr.ErrStoreMissing, path)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// CreateStore fails if a store already exists at path; otherwise it mines
// the genesis block paying genesisAddress and persists it as both the sole
// block and the tip, all in one transaction.
func CreateStore(path, genesisAddress string) (*Store, error) {
	if storeExists(path) {
		return nil, fmt.Errorf("%w: %s", nodeerr.ErrStoreAlreadyExists, path)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	coinbase, err := NewCoinbaseTx(genesisAddress, "")
	if err != nil {
		return nil, err
	}
	genesis, err := newBlock(uint64(time.Now().UnixMilli()), []*Transaction{coinbase}, "")
	if err != nil {
		return nil, err
	}

	serialized, err := genesis.Serialize()
	if err != nil {
		return nil, err
	}

	err = db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(genesis.Hash), serialized); err != nil {
			return err
		}
		return txn.Set([]byte(lastKey), []byte(genesis.Hash))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: write genesis block: %v", nodeerr.ErrIO, err)
	}

	return &Store{db: db}, nil
}

func blockKey(hash string) []byte {
	return append(append([]byte{}, blockPrefix...), []byte(hash)...)
}

// Tip returns the current chain-head hash from the reserved "last" key.
func (s *Store) Tip() (string, error) {
	var tip string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			tip = string(val)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", nodeerr.ErrTipMissing, err)
	}
	return tip, nil
}

// Append writes block under its hash and overwrites the tip to point at it,
// both within one Badger transaction: all-or-nothing.
func (s *Store) Append(block *Block) error {
	serialized, err := block.Serialize()
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(block.Hash), serialized); err != nil {
			return err
		}
		return txn.Set([]byte(lastKey), []byte(block.Hash))
	})
	if err != nil {
		return fmt.Errorf("%w: append block: %v", nodeerr.ErrIO, err)
	}
	return nil
}

// Get returns the block stored under hash, or ok == false if absent.
func (s *Store) Get(hash string) (block *Block, ok bool, err error) {
	dbErr := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(hash))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		return item.Value(func(val []byte) error {
			block, err = DeserializeBlock(val)
			return err
		})
	})
	if dbErr != nil {
		return nil, false, fmt.Errorf("%w: get block %s: %v", nodeerr.ErrIO, hash, dbErr)
	}
	return block, ok, nil
}

// Iterator walks the chain backward from a starting hash to genesis.
type Iterator struct {
	store       *Store
	currentHash string
	done        bool
}

// IterateFromTip returns an Iterator starting at the current tip.
func (s *Store) IterateFromTip() (*Iterator, error) {
	tip, err := s.Tip()
	if err != nil {
		return nil, err
	}
	return &Iterator{store: s, currentHash: tip}, nil
}

// Next returns the next block walking tip-to-genesis, and false once the
// genesis block (empty PrevBlockHash) has already been returned.
func (it *Iterator) Next() (*Block, bool, error) {
	if it.done {
		return nil, false, nil
	}

	block, ok, err := it.store.Get(it.currentHash)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("%w: block %s referenced but missing", nodeerr.ErrIO, it.currentHash)
	}

	if block.PrevBlockHash == "" {
		it.done = true
	} else {
		it.currentHash = block.PrevBlockHash
	}
	return block, true, nil
}

// Close releases the underlying Badger handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close store: %v", nodeerr.ErrIO, err)
	}
	return nil
}

func retryLockedOpen(dir string, opts badger.Options) (*badger.DB, error) {
	lockPath := filepath.Join(dir, "LOCK")
	if err := os.Remove(lockPath); err != nil {
		return nil, fmt.Errorf("remove stale lock file: %w", err)
	}
	return badger.Open(opts)
}

// openDB opens (or initializes) a Badger database at dir, recovering from a
// stale LOCK file left behind by an unclean shutdown.
func openDB(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)

	db, err := badger.Open(opts)
	if err == nil {
		return db, nil
	}
	if !strings.Contains(err.Error(), "LOCK") {
		return nil, fmt.Errorf("%w: open store: %v", nodeerr.ErrIO, err)
	}

	db, retryErr := retryLockedOpen(dir, opts)
	if retryErr != nil {
		log.Printf("could not unlock database at %s: %v", dir, retryErr)
		return nil, fmt.Errorf("%w: open store: %v", nodeerr.ErrIO, err)
	}
	log.Printf("recovered stale lock at %s", dir)
	return db, nil
}
