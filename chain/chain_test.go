package chain

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utxochain/btcnode/internal/nodeerr"
	"github.com/utxochain/btcnode/wallet"
)

func newTestChain(t *testing.T, genesisAddress string) (*BlockChain, *UTXOSet) {
	t.Helper()
	store, err := CreateStore(filepath.Join(t.TempDir(), "chain"), genesisAddress)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bc := NewBlockChain(store)
	utxoSet := &UTXOSet{Chain: bc}
	require.NoError(t, utxoSet.Reindex())
	return bc, utxoSet
}

func balanceOf(t *testing.T, utxoSet *UTXOSet, address string) int64 {
	t.Helper()
	pubKeyHash, err := wallet.PubKeyHashFromAddress(address)
	require.NoError(t, err)

	outs, err := utxoSet.FindUTXO(pubKeyHash)
	require.NoError(t, err)

	var total int64
	for _, out := range outs {
		total += out.Value
	}
	return total
}

func TestCreateBlockchainPaysGenesisSubsidy(t *testing.T) {
	walletA, err := wallet.MakeWallet()
	require.NoError(t, err)

	_, utxoSet := newTestChain(t, walletA.Address())
	assert.EqualValues(t, Subsidy, balanceOf(t, utxoSet, walletA.Address()))
}

func TestSendUpdatesBothBalances(t *testing.T) {
	walletA, err := wallet.MakeWallet()
	require.NoError(t, err)
	walletB, err := wallet.MakeWallet()
	require.NoError(t, err)

	bc, utxoSet := newTestChain(t, walletA.Address())

	wallets := &wallet.Wallets{Bag: map[string]*wallet.Wallet{
		walletA.Address(): walletA,
		walletB.Address(): walletB,
	}}

	tx, err := NewUTXOTransaction(walletA.Address(), walletB.Address(), 20, wallets, utxoSet)
	require.NoError(t, err)

	block, err := bc.MineBlock([]*Transaction{tx})
	require.NoError(t, err)
	require.NoError(t, utxoSet.Update(block))

	assert.EqualValues(t, 30, balanceOf(t, utxoSet, walletA.Address()))
	assert.EqualValues(t, 20, balanceOf(t, utxoSet, walletB.Address()))
}

func TestReindexAgreesWithIncrementalUpdate(t *testing.T) {
	walletA, err := wallet.MakeWallet()
	require.NoError(t, err)
	walletB, err := wallet.MakeWallet()
	require.NoError(t, err)

	bc, utxoSet := newTestChain(t, walletA.Address())
	wallets := &wallet.Wallets{Bag: map[string]*wallet.Wallet{
		walletA.Address(): walletA,
		walletB.Address(): walletB,
	}}

	tx, err := NewUTXOTransaction(walletA.Address(), walletB.Address(), 20, wallets, utxoSet)
	require.NoError(t, err)
	block, err := bc.MineBlock([]*Transaction{tx})
	require.NoError(t, err)
	require.NoError(t, utxoSet.Update(block))

	beforeA := balanceOf(t, utxoSet, walletA.Address())
	beforeB := balanceOf(t, utxoSet, walletB.Address())

	require.NoError(t, utxoSet.Reindex())

	assert.Equal(t, beforeA, balanceOf(t, utxoSet, walletA.Address()))
	assert.Equal(t, beforeB, balanceOf(t, utxoSet, walletB.Address()))
}

func TestSendInsufficientFundsLeavesChainUnchanged(t *testing.T) {
	walletA, err := wallet.MakeWallet()
	require.NoError(t, err)
	walletB, err := wallet.MakeWallet()
	require.NoError(t, err)

	bc, utxoSet := newTestChain(t, walletA.Address())
	wallets := &wallet.Wallets{Bag: map[string]*wallet.Wallet{
		walletA.Address(): walletA,
		walletB.Address(): walletB,
	}}

	tipBefore, err := bc.Store.Tip()
	require.NoError(t, err)

	_, err = NewUTXOTransaction(walletA.Address(), walletB.Address(), 1000, wallets, utxoSet)
	assert.ErrorIs(t, err, nodeerr.ErrInsufficientFunds)

	tipAfter, err := bc.Store.Tip()
	require.NoError(t, err)
	assert.Equal(t, tipBefore, tipAfter)
}

func TestFullBalanceSendEmitsNoChangeOutputAndSingleUTXOEntry(t *testing.T) {
	walletA, err := wallet.MakeWallet()
	require.NoError(t, err)
	walletB, err := wallet.MakeWallet()
	require.NoError(t, err)

	bc, utxoSet := newTestChain(t, walletA.Address())
	wallets := &wallet.Wallets{Bag: map[string]*wallet.Wallet{
		walletA.Address(): walletA,
		walletB.Address(): walletB,
	}}

	tx, err := NewUTXOTransaction(walletA.Address(), walletB.Address(), Subsidy, wallets, utxoSet)
	require.NoError(t, err)
	require.Len(t, tx.Vout, 1, "exact-balance send must not emit a change output")

	block, err := bc.MineBlock([]*Transaction{tx})
	require.NoError(t, err)
	require.NoError(t, utxoSet.Update(block))

	assert.EqualValues(t, 0, balanceOf(t, utxoSet, walletA.Address()))
	assert.EqualValues(t, Subsidy, balanceOf(t, utxoSet, walletB.Address()))

	bHash, err := wallet.PubKeyHashFromAddress(walletB.Address())
	require.NoError(t, err)
	outs, err := utxoSet.FindUTXO(bHash)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.EqualValues(t, Subsidy, outs[0].Value)
	assert.Equal(t, bHash, outs[0].PubKeyHash)
}

func TestTamperedNonceFailsValidation(t *testing.T) {
	walletA, err := wallet.MakeWallet()
	require.NoError(t, err)

	bc, _ := newTestChain(t, walletA.Address())
	tip, err := bc.Store.Tip()
	require.NoError(t, err)

	block, ok, err := bc.Store.Get(tip)
	require.NoError(t, err)
	require.True(t, ok)

	block.Nonce++
	valid, err := NewProofOfWork(block).Validate()
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestIterateFromTipTerminatesAtGenesis(t *testing.T) {
	walletA, err := wallet.MakeWallet()
	require.NoError(t, err)

	bc, _ := newTestChain(t, walletA.Address())
	it, err := bc.Store.IterateFromTip()
	require.NoError(t, err)

	var blocks int
	for {
		block, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		blocks++
		if block.PrevBlockHash == "" {
			assert.Empty(t, block.PrevBlockHash)
		}
	}
	assert.Equal(t, 1, blocks)
}
