package wallet

import (
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/utxochain/btcnode/internal/nodeerr"
)

// Base58Encode converts binary data to a Base58-encoded string, returned as
// a []byte for symmetry with Base58Decode.
func Base58Encode(input []byte) []byte {
	return []byte(base58.Encode(input))
}

// Base58Decode converts a Base58-encoded string back to its original binary
// data. A malformed address surfaces as nodeerr.ErrDecode rather than a
// panic, since address decoding happens on untrusted CLI/config input.
func Base58Decode(input []byte) ([]byte, error) {
	decoded, err := base58.Decode(string(input))
	if err != nil {
		return nil, fmt.Errorf("%w: base58 decode: %v", nodeerr.ErrDecode, err)
	}
	return decoded, nil
}
