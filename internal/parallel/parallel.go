// Package parallel splits row-wise kernel loops across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled  bool // Whether parallel execution is enabled.
	Workers  int  // Upper bound on concurrently running chunks.
	MinChunk int  // Minimum rows per chunk; smaller loops run inline.
}

// DefaultConfig returns defaults based on the CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:  n > 1,
		Workers:  n,
		MinChunk: 16,
	}
}

// Sequential returns a Config that always runs inline.
func Sequential() Config {
	return Config{}
}

// Range calls fn over disjoint half-open chunks [lo, hi) covering [0, n).
// fn must only write to memory owned by its chunk.
func Range(n int, cfg Config, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || cfg.Workers < 2 || n < 2*max(cfg.MinChunk, 1) {
		fn(0, n)
		return
	}

	chunk := max((n+cfg.Workers-1)/cfg.Workers, cfg.MinChunk, 1)

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		lo := lo
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(lo, hi)
		}()
	}
	wg.Wait()
}
