// Package bytesx supplies a byte-slice type that round-trips through JSON
// as an array of integers, for raw public-key and key-bag byte fields,
// rather than encoding/json's default base64-string treatment of []byte.
package bytesx

import (
	"bytes"
	"encoding/json"
)

// Bytes is a []byte that marshals as a JSON array of integers.
type Bytes []byte

// MarshalJSON renders b as a JSON array of integers, even when b is nil,
// so that a trimmed field and a field that was never set hash identically.
func (b Bytes) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	if ints == nil {
		ints = []int{}
	}
	return json.Marshal(ints)
}

// UnmarshalJSON parses a JSON array of integers back into b.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		out[i] = byte(v)
	}
	*b = out
	return nil
}
