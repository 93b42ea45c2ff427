package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utxochain/btcnode/wallet"
)

// testAddress returns the Base58 address of a freshly generated wallet, for
// tests that need a coinbase recipient NewTXOutput can decode.
func testAddress(t *testing.T) string {
	t.Helper()
	w, err := wallet.MakeWallet()
	require.NoError(t, err)
	return w.Address()
}

func TestCoinbaseTransactionShape(t *testing.T) {
	tx, err := NewCoinbaseTx(testAddress(t), "")
	require.NoError(t, err)

	assert.True(t, tx.IsCoinbase())
	require.Len(t, tx.Vin, 1)
	assert.Equal(t, "", tx.Vin[0].Txid)
	assert.Equal(t, -1, tx.Vin[0].Vout)
	require.Len(t, tx.Vout, 1)
	assert.EqualValues(t, Subsidy, tx.Vout[0].Value)
	assert.NotEmpty(t, tx.ID)
}

func TestCoinbaseDefaultDataMessage(t *testing.T) {
	address := testAddress(t)
	tx, err := NewCoinbaseTx(address, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("Reward to "+address), []byte(tx.Vin[0].PubKey))
}

func TestTransactionSerializeDeserializeRoundTrip(t *testing.T) {
	tx, err := NewCoinbaseTx(testAddress(t), "")
	require.NoError(t, err)

	data, err := tx.Serialize()
	require.NoError(t, err)

	got, err := DeserializeTransaction(data)
	require.NoError(t, err)

	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, tx.Vin, got.Vin)
	assert.Equal(t, tx.Vout, got.Vout)
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	senderWallet, err := wallet.MakeWallet()
	require.NoError(t, err)
	receiverWallet, err := wallet.MakeWallet()
	require.NoError(t, err)

	fundingOut, err := NewTXOutput(100, senderWallet.Address())
	require.NoError(t, err)
	fundingTx := &Transaction{
		Vin:  []TxInput{{Txid: "", Vout: -1, PubKey: []byte("seed")}},
		Vout: []TxOutput{fundingOut},
	}
	require.NoError(t, fundingTx.setID())

	paymentOut, err := NewTXOutput(40, receiverWallet.Address())
	require.NoError(t, err)
	spendTx := &Transaction{
		Vin:  []TxInput{{Txid: fundingTx.ID, Vout: 0, PubKey: senderWallet.PublicKey}},
		Vout: []TxOutput{paymentOut},
	}
	require.NoError(t, spendTx.setID())

	prevTxs := map[string]*Transaction{fundingTx.ID: fundingTx}
	require.NoError(t, Sign(spendTx, senderWallet.PrivateKey(), prevTxs))
	assert.NotEmpty(t, spendTx.Vin[0].Signature)

	ok, err := Verify(spendTx, prevTxs)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsOutputsExceedingInputs(t *testing.T) {
	senderWallet, err := wallet.MakeWallet()
	require.NoError(t, err)
	receiverWallet, err := wallet.MakeWallet()
	require.NoError(t, err)

	fundingOut, err := NewTXOutput(100, senderWallet.Address())
	require.NoError(t, err)
	fundingTx := &Transaction{
		Vin:  []TxInput{{Txid: "", Vout: -1, PubKey: []byte("seed")}},
		Vout: []TxOutput{fundingOut},
	}
	require.NoError(t, fundingTx.setID())

	paymentOut, err := NewTXOutput(150, receiverWallet.Address())
	require.NoError(t, err)
	spendTx := &Transaction{
		Vin:  []TxInput{{Txid: fundingTx.ID, Vout: 0, PubKey: senderWallet.PublicKey}},
		Vout: []TxOutput{paymentOut},
	}
	require.NoError(t, spendTx.setID())

	prevTxs := map[string]*Transaction{fundingTx.ID: fundingTx}
	require.NoError(t, Sign(spendTx, senderWallet.PrivateKey(), prevTxs))

	ok, err := Verify(spendTx, prevTxs)
	require.NoError(t, err)
	assert.False(t, ok, "a validly signed transaction minting more value than its inputs carry must not verify")
}

func TestVerifyFailsOnTamperedSignature(t *testing.T) {
	senderWallet, err := wallet.MakeWallet()
	require.NoError(t, err)

	fundingOut, err := NewTXOutput(100, senderWallet.Address())
	require.NoError(t, err)
	fundingTx := &Transaction{
		Vin:  []TxInput{{Txid: "", Vout: -1, PubKey: []byte("seed")}},
		Vout: []TxOutput{fundingOut},
	}
	require.NoError(t, fundingTx.setID())

	paymentOut, err := NewTXOutput(40, senderWallet.Address())
	require.NoError(t, err)
	spendTx := &Transaction{
		Vin:  []TxInput{{Txid: fundingTx.ID, Vout: 0, PubKey: senderWallet.PublicKey}},
		Vout: []TxOutput{paymentOut},
	}
	require.NoError(t, spendTx.setID())

	prevTxs := map[string]*Transaction{fundingTx.ID: fundingTx}
	require.NoError(t, Sign(spendTx, senderWallet.PrivateKey(), prevTxs))

	tampered := []rune(spendTx.Vin[0].Signature)
	if tampered[0] == '0' {
		tampered[0] = '1'
	} else {
		tampered[0] = '0'
	}
	spendTx.Vin[0].Signature = string(tampered)

	ok, err := Verify(spendTx, prevTxs)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyFailsWhenPrevTransactionMissing(t *testing.T) {
	senderWallet, err := wallet.MakeWallet()
	require.NoError(t, err)

	spendTx := &Transaction{
		Vin:  []TxInput{{Txid: "does-not-exist", Vout: 0, PubKey: senderWallet.PublicKey}},
		Vout: []TxOutput{{Value: 1, PubKeyHash: "deadbeef"}},
	}
	require.NoError(t, spendTx.setID())

	ok, err := Verify(spendTx, map[string]*Transaction{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrimmedCopyClearsSignatureAndPubKey(t *testing.T) {
	senderWallet, err := wallet.MakeWallet()
	require.NoError(t, err)

	tx := &Transaction{
		Vin:  []TxInput{{Txid: "abc", Vout: 1, Signature: "ff", PubKey: senderWallet.PublicKey}},
		Vout: []TxOutput{{Value: 5, PubKeyHash: "deadbeef"}},
	}

	trimmed := tx.TrimmedCopy()
	assert.Equal(t, "abc", trimmed.Vin[0].Txid)
	assert.Equal(t, 1, trimmed.Vin[0].Vout)
	assert.Equal(t, "", trimmed.Vin[0].Signature)
	assert.Nil(t, trimmed.Vin[0].PubKey)
	assert.Equal(t, tx.Vout, trimmed.Vout)
}
