package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

// Arena is the shared queue position for one pass over an indexed task set.
// Claim is an atomic fetch-and-increment, so no index is handed out twice.
type Arena struct {
	next atomic.Int64
	size int64
}

// NewArena creates an arena over indices [0, size)
func NewArena(size int) *Arena {
	return &Arena{size: int64(size)}
}

// Claim returns the next unclaimed index, or false when the set is exhausted
func (a *Arena) Claim() (int, bool) {
	i := a.next.Add(1) - 1
	if i >= a.size {
		return 0, false
	}
	return int(i), true
}

// Pool manages a fixed number of workers that execute indexed tasks concurrently
type Pool struct {
	workers int
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run calls fn once for every index in [0, n). Each worker is a sequential
// loop claiming indices from a shared Arena. Run returns only after every
// worker has exited. A cancelled context stops workers from claiming more.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, index int)) {
	if n <= 0 {
		return
	}

	arena := NewArena(n)
	workers := p.workers
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				i, ok := arena.Claim()
				if !ok {
					return
				}
				fn(ctx, i)
			}
		}()
	}
	wg.Wait()
}
