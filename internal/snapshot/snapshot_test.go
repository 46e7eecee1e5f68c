package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varsh009/glowroot/internal/model"
)

func rootMessage(s string) model.MessageSupplier {
	return model.MessageFunc(func() string { return s })
}

func TestBuildActiveNormalizesToCaptureTick(t *testing.T) {
	tx := model.New(1000, 100, "Web", "GET /", rootMessage("GET /"), nil)

	snap := BuildActive(tx, 250, 1150)
	assert.True(t, snap.Active)
	assert.False(t, snap.Partial)
	assert.Equal(t, int64(150), snap.DurationNanos)
	assert.Equal(t, "Web", snap.TransactionType)
	assert.Equal(t, "GET /", snap.TransactionName)
	assert.Equal(t, Yes, snap.EntriesExistence)
	require.NotNil(t, snap.Entries)
	assert.Equal(t, int64(150), snap.Timers.Total)
	assert.Equal(t, No, snap.ProfileExistence)
}

func TestBuildPartialSetsPartialFlag(t *testing.T) {
	tx := model.New(1000, 100, "Web", "GET /", rootMessage("GET /"), nil)
	snap := BuildPartial(tx, 200, 1100)
	assert.True(t, snap.Active)
	assert.True(t, snap.Partial)
}

func TestBuildCompletedUsesTransactionOwnTicks(t *testing.T) {
	tx := model.New(1000, 100, "Web", "GET /", rootMessage("GET /"), nil)
	tx.PopEntry(tx.Entries().Root(), 400, nil)

	snap := BuildCompleted(tx, 1400)
	assert.False(t, snap.Active)
	assert.False(t, snap.Partial)
	assert.Equal(t, int64(300), snap.DurationNanos)
}

func TestBuildReflectsProfileWhenSampled(t *testing.T) {
	tx := model.New(1000, 100, "Web", "GET /", rootMessage("GET /"), nil)
	tx.AddProfileSample([]string{"main", "handler"})

	snap := BuildActive(tx, 200, 1100)
	assert.Equal(t, Yes, snap.ProfileExistence)
	require.NotNil(t, snap.Profile)
}
