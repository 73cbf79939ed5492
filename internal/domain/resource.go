package domain

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// Resource is a finite-stock item guarded by its own exclusive lock.
//
// stock is only mutated while guard is held. It is stored atomically so
// that diagnostic readers (TotalStock, Snapshot) can observe it without
// taking the guard.
type Resource struct {
	ID    string
	stock atomic.Int64
	guard *semaphore.Weighted
}

func NewResource(id string, stock int64) *Resource {
	r := &Resource{
		ID:    id,
		guard: semaphore.NewWeighted(1),
	}
	r.stock.Store(stock)
	return r
}

// Stock returns the last committed stock value.
func (r *Resource) Stock() int64 {
	return r.stock.Load()
}

// Lock blocks until the guard is held or ctx is done.
func (r *Resource) Lock(ctx context.Context) error {
	return r.guard.Acquire(ctx, 1)
}

func (r *Resource) TryLock() bool {
	return r.guard.TryAcquire(1)
}

func (r *Resource) Unlock() {
	r.guard.Release(1)
}

// Methods below require the caller to hold the guard.

func (r *Resource) CanTake(qty int64) bool {
	return qty > 0 && r.stock.Load() >= qty
}

// Take refuses without mutating when qty is not positive or exceeds the
// stock.
func (r *Resource) Take(qty int64) error {
	for {
		cur := r.stock.Load()
		if qty <= 0 || cur < qty {
			return errors.Wrapf(ErrInvariantViolation, "take %d from %s with stock %d", qty, r.ID, cur)
		}
		if r.stock.CompareAndSwap(cur, cur-qty) {
			return nil
		}
	}
}

func (r *Resource) Put(qty int64) {
	r.stock.Add(qty)
}

func (r *Resource) Set(stock int64) {
	r.stock.Store(stock)
}
