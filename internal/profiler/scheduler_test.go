package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varsh009/glowroot/internal/model"
)

func someWorkLoop(t *testing.T, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
			time.Sleep(2 * time.Millisecond)
		}
	}
}

func TestGoroutineIDIsPositiveAndDistinctAcrossGoroutines(t *testing.T) {
	id1 := GoroutineID()
	assert.Greater(t, id1, int64(0))

	idCh := make(chan int64, 1)
	go func() { idCh <- GoroutineID() }()
	id2 := <-idCh
	assert.NotEqual(t, id1, id2)
}

func TestTickerSchedulerSamplesScheduledGoroutine(t *testing.T) {
	tx := model.New(0, 0, "web", "GET /x", nil, nil)

	s := NewTickerScheduler(5 * time.Millisecond)
	s.Start()
	defer s.Stop()

	done := make(chan struct{})
	goDone := make(chan struct{})
	go func() {
		stop := s.Schedule(tx)
		defer stop()
		someWorkLoop(t, done)
		close(goDone)
	}()

	time.Sleep(40 * time.Millisecond)
	close(done)
	<-goDone

	require.Greater(t, tx.ProfileSampleCount(), int64(0))
}
