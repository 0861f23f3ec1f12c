// Package parallel splits element loops of the CPU kernels across goroutines.
package parallel

import (
	"runtime"

	"github.com/gomlx/exceptions"
	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4096,
	}
}

// Sequential returns a configuration that never spawns goroutines.
func Sequential() Config {
	return Config{NumWorkers: 1, MinChunkSize: 1}
}

// Chunks calls f(start, end) over disjoint ranges covering [0, n).
// Ranges run concurrently unless parallelism is disabled or n is below MinChunkSize.
// An error panicked by f in a worker is re-panicked on the calling goroutine once
// every range is done, so kernels can keep reporting misuse with exceptions.Panicf.
func Chunks(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < cfg.MinChunkSize {
		f(0, n)
		return
	}

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		g.Go(func() error {
			return exceptions.TryCatch[error](func() { f(start, end) })
		})
	}
	if err := g.Wait(); err != nil {
		panic(err)
	}
}

// For executes f(i) for i in [0, n), in chunks as described by Chunks.
func For(n int, f func(i int), cfg Config) {
	Chunks(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}
