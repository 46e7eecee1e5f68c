package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varsh009/glowroot/internal/model"
)

func newTx() *model.Transaction {
	return model.New(0, 0, "web", "GET /x",
		model.MessageFunc(func() string { return "GET /x" }),
		nil)
}

func TestRegistryAddRemoveTracksLiveTransactions(t *testing.T) {
	r := New()
	tx := newTx()

	r.Add(tx)
	assert.Equal(t, 1, r.Len())
	require.Len(t, r.All(), 1)
	assert.Equal(t, tx.ID(), r.All()[0].ID())

	r.Remove(tx)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.All())
}

func TestRegistryRemoveUnknownTransactionIsNoop(t *testing.T) {
	r := New()
	tx := newTx()
	assert.NotPanics(t, func() { r.Remove(tx) })
	assert.Equal(t, 0, r.Len())
}

func TestRegistrySpreadsAcrossShards(t *testing.T) {
	r := New()
	for i := 0; i < 64; i++ {
		r.Add(newTx())
	}
	assert.Equal(t, 64, r.Len())
	assert.Len(t, r.All(), 64)
}
