package transcoder

import (
	"context"
	"sync/atomic"

	"github.com/shirou/gopsutil/v4/cpu"
	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of concurrent transcodes.
type Pool struct {
	sem   *semaphore.Weighted
	size  int64
	inUse atomic.Int64
}

// NewPool creates a pool with size slots. A size below 1 derives the size
// from the host's logical CPU count.
func NewPool(size int) *Pool {
	if size < 1 {
		size = DefaultPoolSize(context.Background())
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// DefaultPoolSize is half the logical CPUs, at least 1.
func DefaultPoolSize(ctx context.Context) int {
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil || n < 2 {
		return 1
	}
	return n / 2
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// func must be called exactly once.
func (p *Pool) Acquire(ctx context.Context) (func(), error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.inUse.Add(1)

	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			p.inUse.Add(-1)
			p.sem.Release(1)
		}
	}, nil
}

// Size returns the slot count.
func (p *Pool) Size() int {
	return int(p.size)
}

// InUse returns the number of held slots.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}
