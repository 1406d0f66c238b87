package password

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool runs hash and verify calls with bounded concurrency so that a burst of
// logins cannot exhaust memory or CPU.
type Pool struct {
	hasher *Hasher
	sem    *semaphore.Weighted
}

// NewPool allows at most workers concurrent computations. A non-positive
// value means one per CPU.
func NewPool(hasher *Hasher, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(workers)),
	}
}

// Hash waits for a free slot and hashes password.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	return p.hasher.Hash(password)
}

// Verify waits for a free slot and checks password against encoded. The
// error is non-nil only when ctx ends before a slot frees up.
func (p *Pool) Verify(ctx context.Context, encoded, password string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.sem.Release(1)

	return p.hasher.Verify(encoded, password), nil
}
