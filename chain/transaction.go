package chain

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/utxochain/btcnode/internal/bytesx"
	"github.com/utxochain/btcnode/internal/nodeerr"
	"github.com/utxochain/btcnode/wallet"
)

// Subsidy is the fixed coinbase reward, paid to whoever a block's first
// (coinbase) transaction names.
const Subsidy = 50

// Transaction is a UTXO transfer: a self-referential-hash id, its spent
// inputs, and its created outputs.
type Transaction struct {
	ID   string     `json:"id"`
	Vin  []TxInput  `json:"vin"`
	Vout []TxOutput `json:"vout"`
}

// TxInput references one output of an earlier transaction. A coinbase
// input carries an empty Txid and Vout == -1.
type TxInput struct {
	Txid      string       `json:"txid"`
	Vout      int          `json:"vout"`
	Signature string       `json:"signature"`
	PubKey    bytesx.Bytes `json:"pubkey"`
}

// TxOutput locks Value to whoever can prove ownership of PubKeyHash.
type TxOutput struct {
	Value      int64  `json:"value"`
	PubKeyHash string `json:"pubkey_hash"`
}

// NewTXOutput builds an output paying value to address, resolving address
// to its pubkey hash.
func NewTXOutput(value int64, address string) (TxOutput, error) {
	pubKeyHash, err := wallet.PubKeyHashFromAddress(address)
	if err != nil {
		return TxOutput{}, err
	}
	return TxOutput{Value: value, PubKeyHash: pubKeyHash}, nil
}

// hashTransaction serializes t exactly as it stands (including whatever is
// currently in t.ID) and returns the lowercase hex SHA-256 of that JSON.
// Callers computing an id must clear t.ID first; this is the self-
// referential scheme the id field requires to stay reproducible.
func hashTransaction(t *Transaction) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("%w: hash transaction: %v", nodeerr.ErrSerialization, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// setID recomputes and assigns t.ID from t's current contents.
func (t *Transaction) setID() error {
	t.ID = ""
	id, err := hashTransaction(t)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// NewCoinbaseTx builds the reward transaction that mints Subsidy to to. If
// data is empty it defaults to "Reward to <to>".
func NewCoinbaseTx(to, data string) (*Transaction, error) {
	if data == "" {
		data = "Reward to " + to
	}

	in := TxInput{
		Txid:      "",
		Vout:      -1,
		Signature: "",
		PubKey:    []byte(data),
	}

	out, err := NewTXOutput(Subsidy, to)
	if err != nil {
		return nil, err
	}

	tx := &Transaction{Vin: []TxInput{in}, Vout: []TxOutput{out}}
	if err := tx.setID(); err != nil {
		return nil, err
	}
	return tx, nil
}

// IsCoinbase reports whether tx is the block's synthetic reward
// transaction: exactly one input with empty Txid and Vout == -1.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Vin) == 1 && tx.Vin[0].Txid == "" && tx.Vin[0].Vout == -1
}

// TrimmedCopy returns a copy of tx with every input's Signature and PubKey
// cleared, used as the base structure signing and verification both hash.
func (tx *Transaction) TrimmedCopy() *Transaction {
	vin := make([]TxInput, len(tx.Vin))
	for i, in := range tx.Vin {
		vin[i] = TxInput{Txid: in.Txid, Vout: in.Vout}
	}

	vout := make([]TxOutput, len(tx.Vout))
	copy(vout, tx.Vout)

	return &Transaction{ID: tx.ID, Vin: vin, Vout: vout}
}

// Sign fills in tx's per-input signatures using privKey, resolving each
// referenced output's locking pubkey hash through prevTxs (txid ->
// Transaction). Coinbase transactions are left untouched.
func Sign(tx *Transaction, privKey *ecdsa.PrivateKey, prevTxs map[string]*Transaction) error {
	if tx.IsCoinbase() {
		return nil
	}

	for _, in := range tx.Vin {
		if prevTxs[in.Txid] == nil {
			return fmt.Errorf("%w: previous transaction %s not found", nodeerr.ErrInvalidTransaction, in.Txid)
		}
	}

	trimmed := tx.TrimmedCopy()
	byteLen := (wallet.Curve().Params().BitSize + 7) / 8

	for i, in := range tx.Vin {
		prevTx := prevTxs[in.Txid]
		if in.Vout < 0 || in.Vout >= len(prevTx.Vout) {
			return fmt.Errorf("%w: input %d references out-of-range vout %d", nodeerr.ErrInvalidTransaction, i, in.Vout)
		}
		pubKeyHash, err := hex.DecodeString(prevTx.Vout[in.Vout].PubKeyHash)
		if err != nil {
			return fmt.Errorf("%w: referenced pubkey hash: %v", nodeerr.ErrDecode, err)
		}

		trimmed.Vin[i].PubKey = pubKeyHash
		if err := trimmed.setID(); err != nil {
			return err
		}
		trimmed.Vin[i].PubKey = nil

		message, err := hex.DecodeString(trimmed.ID)
		if err != nil {
			return fmt.Errorf("%w: signing message: %v", nodeerr.ErrDecode, err)
		}

		r, s, err := ecdsa.Sign(rand.Reader, privKey, message)
		if err != nil {
			return fmt.Errorf("%w: sign input %d: %v", nodeerr.ErrIO, i, err)
		}

		sig := make([]byte, 2*byteLen)
		r.FillBytes(sig[:byteLen])
		s.FillBytes(sig[byteLen:])
		tx.Vin[i].Signature = hex.EncodeToString(sig)
	}
	return nil
}

// Verify reports whether every input's signature is valid against its
// referenced output's locking pubkey hash, resolved through prevTxs, and
// that the referenced inputs' total value is not less than tx's output
// total. A coinbase transaction always verifies. A missing referenced
// transaction makes verification fail rather than error, per spec.
func Verify(tx *Transaction, prevTxs map[string]*Transaction) (bool, error) {
	if tx.IsCoinbase() {
		return true, nil
	}

	trimmed := tx.TrimmedCopy()
	byteLen := (wallet.Curve().Params().BitSize + 7) / 8

	var inputTotal int64
	for i, in := range tx.Vin {
		prevTx := prevTxs[in.Txid]
		if prevTx == nil {
			return false, nil
		}
		if in.Vout < 0 || in.Vout >= len(prevTx.Vout) {
			return false, nil
		}
		inputTotal += prevTx.Vout[in.Vout].Value

		pubKeyHash, err := hex.DecodeString(prevTx.Vout[in.Vout].PubKeyHash)
		if err != nil {
			return false, fmt.Errorf("%w: referenced pubkey hash: %v", nodeerr.ErrDecode, err)
		}

		trimmed.Vin[i].PubKey = pubKeyHash
		if err := trimmed.setID(); err != nil {
			return false, err
		}
		trimmed.Vin[i].PubKey = nil

		message, err := hex.DecodeString(trimmed.ID)
		if err != nil {
			return false, fmt.Errorf("%w: signing message: %v", nodeerr.ErrDecode, err)
		}

		sig, err := hex.DecodeString(in.Signature)
		if err != nil || len(sig) != 2*byteLen {
			return false, nil
		}
		r := new(big.Int).SetBytes(sig[:byteLen])
		s := new(big.Int).SetBytes(sig[byteLen:])

		pubKey, err := wallet.UnmarshalPublicKey(in.PubKey)
		if err != nil {
			return false, nil
		}

		if !ecdsa.Verify(pubKey, message, r, s) {
			return false, nil
		}
	}

	var outputTotal int64
	for _, out := range tx.Vout {
		outputTotal += out.Value
	}
	if outputTotal > inputTotal {
		return false, nil
	}

	return true, nil
}

// Serialize renders tx as its canonical JSON wire form.
func (tx *Transaction) Serialize() ([]byte, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("%w: serialize transaction: %v", nodeerr.ErrSerialization, err)
	}
	return data, nil
}

// DeserializeTransaction parses the JSON wire form written by Serialize.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("%w: deserialize transaction: %v", nodeerr.ErrSerialization, err)
	}
	return &tx, nil
}
