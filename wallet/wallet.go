package wallet

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/ripemd160"

	"github.com/utxochain/btcnode/internal/bytesx"
	"github.com/utxochain/btcnode/internal/nodeerr"
)

// Wallet system constants.
const (
	checksumLength = 4
	version        = byte(0x00)
	addressLength  = 1 + ripemd160.Size + checksumLength // version + pubkey hash + checksum
)

var curve = elliptic.P256()

// Wallet holds one P-256 key pair. SecretKey is the raw scalar, PublicKey
// the SEC1-encoded (uncompressed) point.
type Wallet struct {
	SecretKey bytesx.Bytes `json:"secret_key"`
	PublicKey bytesx.Bytes `json:"public_key"`
}

// MakeWallet generates a fresh key pair and wraps it in a Wallet.
func MakeWallet() (*Wallet, error) {
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generate key pair: %v", nodeerr.ErrIO, err)
	}

	byteLen := (curve.Params().BitSize + 7) / 8
	secret := make([]byte, byteLen)
	priv.D.FillBytes(secret)

	return &Wallet{
		SecretKey: secret,
		PublicKey: marshalPublicKey(&priv.PublicKey),
	}, nil
}

// PrivateKey reconstructs the full ecdsa.PrivateKey from the wallet's raw
// scalar, recomputing the public point by scalar-multiplying the base point.
func (w *Wallet) PrivateKey() *ecdsa.PrivateKey {
	d := new(big.Int).SetBytes(w.SecretKey)
	x, y := curve.ScalarBaseMult(w.SecretKey)
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}
}

// Address derives the Base58 address for this wallet:
// version ∥ RIPEMD160(SHA256(pubkey)) ∥ checksum[0..4].
func (w *Wallet) Address() string {
	pubHash, _ := hex.DecodeString(PublicKeyHash(w.PublicKey))

	versioned := append([]byte{version}, pubHash...)
	checksum := Checksum(versioned)

	full := append(versioned, checksum...)
	return string(Base58Encode(full))
}

// PublicKeyHash computes RIPEMD160(SHA256(pubkey)) and returns it as
// lowercase hex, matching the TxOutput.PubKeyHash wire representation.
func PublicKeyHash(pubKey []byte) string {
	sha := sha256.Sum256(pubKey)

	hasher := ripemd160.New()
	hasher.Write(sha[:])
	return hex.EncodeToString(hasher.Sum(nil))
}

// Checksum returns the first checksumLength bytes of double SHA-256 over
// payload.
func Checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:checksumLength]
}

// ValidateAddress reports whether address Base58-decodes to exactly
// version+pubkeyhash+checksum and the checksum matches.
func ValidateAddress(address string) bool {
	decoded, err := Base58Decode([]byte(address))
	if err != nil {
		return false
	}
	if len(decoded) != addressLength {
		return false
	}

	versioned := decoded[:len(decoded)-checksumLength]
	actualChecksum := decoded[len(decoded)-checksumLength:]
	expectedChecksum := Checksum(versioned)

	return bytes.Equal(actualChecksum, expectedChecksum)
}

// PubKeyHashFromAddress decodes address and returns the hex-encoded
// pubkey-hash payload, or nodeerr.ErrDecode if the address is malformed.
func PubKeyHashFromAddress(address string) (string, error) {
	decoded, err := Base58Decode([]byte(address))
	if err != nil {
		return "", err
	}
	if len(decoded) != addressLength {
		return "", fmt.Errorf("%w: address has wrong length", nodeerr.ErrDecode)
	}
	pubKeyHash := decoded[1 : len(decoded)-checksumLength]
	return hex.EncodeToString(pubKeyHash), nil
}

// marshalPublicKey encodes pub in uncompressed SEC1 form: 0x04 ∥ X ∥ Y.
func marshalPublicKey(pub *ecdsa.PublicKey) bytesx.Bytes {
	byteLen := (pub.Curve.Params().BitSize + 7) / 8
	buf := make([]byte, 1+2*byteLen)
	buf[0] = 0x04
	pub.X.FillBytes(buf[1 : 1+byteLen])
	pub.Y.FillBytes(buf[1+byteLen:])
	return buf
}

// unmarshalPublicKey decodes uncompressed SEC1 bytes into an ecdsa.PublicKey
// on the given curve, used when verifying a transaction signature against
// the raw public key carried in a TxInput.
func unmarshalPublicKey(curve elliptic.Curve, data []byte) (*ecdsa.PublicKey, error) {
	byteLen := (curve.Params().BitSize + 7) / 8
	if len(data) != 1+2*byteLen || data[0] != 0x04 {
		return nil, fmt.Errorf("%w: malformed SEC1 public key", nodeerr.ErrDecode)
	}
	x := new(big.Int).SetBytes(data[1 : 1+byteLen])
	y := new(big.Int).SetBytes(data[1+byteLen:])
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// UnmarshalPublicKey is the exported form of unmarshalPublicKey, used by the
// chain package to recover a spender's public key during verification.
func UnmarshalPublicKey(data []byte) (*ecdsa.PublicKey, error) {
	return unmarshalPublicKey(curve, data)
}

// Curve exposes the wallet's P-256 curve to the chain package so that
// signing/verification use a single shared curve instance.
func Curve() elliptic.Curve {
	return curve
}
