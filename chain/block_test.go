package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockSerializeDeserializeRoundTrip(t *testing.T) {
	tx, err := NewCoinbaseTx(testAddress(t), "")
	require.NoError(t, err)

	block, err := newBlock(1700000000000, []*Transaction{tx}, "")
	require.NoError(t, err)

	data, err := block.Serialize()
	require.NoError(t, err)

	got, err := DeserializeBlock(data)
	require.NoError(t, err)

	assert.Equal(t, block.Timestamp, got.Timestamp)
	assert.Equal(t, block.PrevBlockHash, got.PrevBlockHash)
	assert.Equal(t, block.Hash, got.Hash)
	assert.Equal(t, block.Nonce, got.Nonce)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, block.Transactions[0].ID, got.Transactions[0].ID)
}

func TestGenesisBlockHasEmptyPrevHash(t *testing.T) {
	tx, err := NewCoinbaseTx(testAddress(t), "")
	require.NoError(t, err)

	block, err := newBlock(1, []*Transaction{tx}, "")
	require.NoError(t, err)

	assert.Empty(t, block.PrevBlockHash)

	pow := NewProofOfWork(block)
	valid, err := pow.Validate()
	require.NoError(t, err)
	assert.True(t, valid)
}
