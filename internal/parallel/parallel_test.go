package parallel

import (
	"sync/atomic"
	"testing"
)

func TestRange_CoversEveryRowOnce(t *testing.T) {
	for _, cfg := range []Config{DefaultConfig(), Sequential(), {Enabled: true, Workers: 3, MinChunk: 1}} {
		n := 1000
		hits := make([]int32, n)

		Range(n, cfg, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})

		for i, h := range hits {
			if h != 1 {
				t.Fatalf("row %d visited %d times (cfg %+v)", i, h, cfg)
			}
		}
	}
}

func TestRange_Empty(t *testing.T) {
	called := false
	Range(0, DefaultConfig(), func(_, _ int) { called = true })
	if called {
		t.Error("expected no call for an empty range")
	}
}

func TestRange_SmallLoopRunsInline(t *testing.T) {
	var calls int32
	Range(10, Config{Enabled: true, Workers: 8, MinChunk: 16}, func(lo, hi int) {
		atomic.AddInt32(&calls, 1)
		if lo != 0 || hi != 10 {
			t.Errorf("expected a single [0, 10) chunk, got [%d, %d)", lo, hi)
		}
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
