package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThreadInfoSamplerDelta(t *testing.T) {
	s := NewThreadInfoSampler()
	start := s.Sample()
	buf := make([]byte, 1<<20)
	_ = buf
	end := s.Sample()
	info := s.Delta(start, end)
	if assert.NotNil(t, info.AllocatedBytes) {
		assert.GreaterOrEqual(t, *info.AllocatedBytes, int64(0))
	}
}

func TestGCInfoSamplerDelta(t *testing.T) {
	s := NewGCInfoSampler()
	start := s.Sample()
	end := s.Sample()
	info := s.Delta(start, end)
	assert.GreaterOrEqual(t, info.CollectionCount, int64(0))
	assert.GreaterOrEqual(t, info.CollectionTime, int64(0))
}
