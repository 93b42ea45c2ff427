// Package nodeerr defines the sentinel error kinds the core surfaces to its
// callers.
package nodeerr

import "errors"

var (
	// ErrStoreMissing is returned when the chain data directory does not
	// exist but a caller asked to open an existing chain.
	ErrStoreMissing = errors.New("nodeerr: chain store does not exist")

	// ErrStoreAlreadyExists is returned when createblockchain is run
	// against a directory that already holds a chain.
	ErrStoreAlreadyExists = errors.New("nodeerr: chain store already exists")

	// ErrTipMissing is returned when the store is present but has no
	// persisted tip hash.
	ErrTipMissing = errors.New("nodeerr: chain tip is missing")

	// ErrSerialization wraps JSON encode/decode failures.
	ErrSerialization = errors.New("nodeerr: serialization failure")

	// ErrInsufficientFunds is returned when spend-selection cannot reach
	// the requested amount.
	ErrInsufficientFunds = errors.New("nodeerr: insufficient funds")

	// ErrUnknownWallet is returned when an address is not present in the
	// wallet file.
	ErrUnknownWallet = errors.New("nodeerr: unknown wallet address")

	// ErrInvalidTransaction is returned on signature verification
	// failure, or when a referenced previous transaction cannot be
	// found during mining.
	ErrInvalidTransaction = errors.New("nodeerr: invalid transaction")

	// ErrDecode is returned for a malformed Base58 address or hex
	// signature/pubkey.
	ErrDecode = errors.New("nodeerr: decode failure")

	// ErrIO wraps underlying key-value store or filesystem failures.
	ErrIO = errors.New("nodeerr: io failure")

	// ErrProofOfWorkExhausted is returned when the nonce search space is
	// exhausted without finding a hash under the target.
	ErrProofOfWorkExhausted = errors.New("nodeerr: proof of work search exhausted")
)
