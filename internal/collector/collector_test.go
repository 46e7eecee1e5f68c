package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varsh009/glowroot/internal/model"
)

func newTx(name string) *model.Transaction {
	return model.New(0, 0, "web", name, nil, nil)
}

func TestInMemoryCollectorRetainsInOrder(t *testing.T) {
	c := NewInMemoryCollector(0)
	a, b := newTx("a"), newTx("b")
	c.OnCompletedTransaction(a)
	c.OnCompletedTransaction(b)

	got := c.Completed()
	require.Len(t, got, 2)
	assert.Same(t, a, got[0])
	assert.Same(t, b, got[1])
	assert.Equal(t, 2, c.Len())
}

func TestInMemoryCollectorEvictsOldest(t *testing.T) {
	c := NewInMemoryCollector(2)
	a, b, d := newTx("a"), newTx("b"), newTx("d")
	c.OnCompletedTransaction(a)
	c.OnCompletedTransaction(b)
	c.OnCompletedTransaction(d)

	got := c.Completed()
	require.Len(t, got, 2)
	assert.Same(t, b, got[0])
	assert.Same(t, d, got[1])
}

func TestInMemoryCollectorClear(t *testing.T) {
	c := NewInMemoryCollector(0)
	c.OnCompletedTransaction(newTx("a"))
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
