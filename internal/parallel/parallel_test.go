package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinChunkSize = 16

	var counter int64
	n := 1000
	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestChunksCoverRange(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 10}
	seen := make([]int32, 103)
	Chunks(len(seen), func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	}, cfg)

	for i, v := range seen {
		assert.Equal(t, int32(1), v, "index %d", i)
	}
}

func TestChunksSequential(t *testing.T) {
	var calls int
	Chunks(100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 100, end)
	}, Sequential())
	assert.Equal(t, 1, calls)
}

func TestChunksEmpty(t *testing.T) {
	Chunks(0, func(_, _ int) {
		t.Fatal("must not be called")
	}, DefaultConfig())
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 100000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, Sequential())
		}
	})
}

func TestChunksPanicReachesCaller(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 10}
	err := exceptions.TryCatch[error](func() {
		Chunks(100, func(start, _ int) {
			if start == 0 {
				exceptions.Panicf("chunk %d failed", start)
			}
		}, cfg)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 0 failed")
}
