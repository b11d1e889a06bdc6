// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"
)

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
}

func TestWorkerPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		if pool.Workers() != runtime.GOMAXPROCS(0) {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want GOMAXPROCS", n, pool.Workers())
		}
		pool.Close()
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}
	pool.ExecuteAll(work)

	if got := counter.Load(); got != 100 {
		t.Errorf("counter = %d, want 100", got)
	}
}

func TestWorkerPool_ExecuteAllAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("Pool should not be running after Close")
	}

	ran := 0
	pool.ExecuteAll([]func(){func() { ran++ }, func() { ran++ }})
	if ran != 2 {
		t.Errorf("ran = %d, want 2 (inline after close)", ran)
	}
}

func TestWorkerPool_ForRange(t *testing.T) {
	tests := []struct {
		workers, n int
	}{
		{4, 0},
		{4, 1},
		{4, 3},
		{4, 100},
		{3, 10},
		{1, 7},
	}
	for _, tt := range tests {
		pool := NewWorkerPool(tt.workers)
		hits := make([]atomic.Int32, tt.n)
		var chunks atomic.Int32
		pool.ForRange(tt.n, func(lo, hi int) {
			chunks.Add(1)
			for i := lo; i < hi; i++ {
				hits[i].Add(1)
			}
		})
		pool.Close()

		for i := range hits {
			if got := hits[i].Load(); got != 1 {
				t.Errorf("workers=%d n=%d: index %d visited %d times", tt.workers, tt.n, i, got)
			}
		}
		if int(chunks.Load()) > tt.workers {
			t.Errorf("workers=%d n=%d: %d chunks", tt.workers, tt.n, chunks.Load())
		}
	}
}
