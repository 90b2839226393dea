package worker

import "context"

// Budget bounds concurrent external generation calls. Acquire blocks
// until a slot frees up; exhaustion is backpressure, never an error.
type Budget interface {
	Acquire(ctx context.Context) error
	Release()
}

// LocalBudget is a process-local Budget for single-instance deployments
// and tests. Multi-instance deployments share slots through redis
// instead.
type LocalBudget struct {
	slots chan struct{}
}

// NewLocalBudget creates a budget with the given slot limit.
func NewLocalBudget(limit int) *LocalBudget {
	return &LocalBudget{slots: make(chan struct{}, limit)}
}

// Acquire takes a slot, blocking until one is available or ctx ends.
func (b *LocalBudget) Acquire(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot.
func (b *LocalBudget) Release() {
	<-b.slots
}
