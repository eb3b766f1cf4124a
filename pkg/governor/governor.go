// Package governor implements the resource governor described for the
// reduction service: a small set of counting semaphores that bound
// concurrent outbound fetches, in-flight decoded memory, and concurrent
// CPU-bound sections.
//
// The semaphore implementation is built on a channel guard instead of a
// sync.Mutex/sync.Cond pair so that acquisition can race against context
// cancellation and be polled without blocking forever.
package governor

import (
	"context"
	"errors"
	"time"
)

// ErrExceedsCapacity indicates that a requested weight can never be
// satisfied because it exceeds the semaphore's total capacity.
var ErrExceedsCapacity = errors.New("requested weight exceeds semaphore capacity")

// Semaphore is a weighted counting semaphore. A caller acquires some number
// of units and releases them when done; acquisition can be cancelled via
// context.
type Semaphore struct {
	// guard is a buffered (size 1) channel acting as a lock. Using a channel
	// (instead of a sync.Mutex) lets lock acquisition race against ctx.Done.
	guard chan struct{}
	// capacity is the total number of units available.
	capacity uint64
	// available is the number of currently unreserved units. Only valid
	// while the guard is held.
	available uint64
	// waiters is the set of polling channels associated with blocked
	// acquirers. We use a set of signaling channels (instead of a
	// sync.Cond) so that acquisition can be polled. Each channel is
	// buffered with size 1.
	waiters map[chan<- struct{}]bool
}

// NewSemaphore creates a semaphore with the given total capacity.
func NewSemaphore(capacity uint64) *Semaphore {
	s := &Semaphore{
		guard:     make(chan struct{}, 1),
		capacity:  capacity,
		available: capacity,
		waiters:   make(map[chan<- struct{}]bool),
	}
	s.guard <- struct{}{}
	return s
}

func (s *Semaphore) lock(ctx context.Context) bool {
	select {
	case <-s.guard:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Semaphore) unlock() {
	s.guard <- struct{}{}
}

// broadcast signals all waiters. Callers must hold the guard.
func (s *Semaphore) broadcast() {
	for waiter := range s.waiters {
		select {
		case waiter <- struct{}{}:
		default:
		}
	}
}

// Acquire reserves weight units, blocking until they are available or ctx is
// done. A weight greater than the semaphore's capacity fails immediately
// with ErrExceedsCapacity since it could never be satisfied.
func (s *Semaphore) Acquire(ctx context.Context, weight uint64) error {
	if weight > s.capacity {
		return ErrExceedsCapacity
	}

	if !s.lock(ctx) {
		return ctx.Err()
	}

	poll := make(chan struct{}, 1)
	s.waiters[poll] = true

	for {
		if s.available >= weight {
			s.available -= weight
			delete(s.waiters, poll)
			s.unlock()
			return nil
		}

		s.unlock()
		select {
		case <-ctx.Done():
		case <-poll:
			if s.lock(ctx) {
				continue
			}
		}
		s.lock(context.Background())
		delete(s.waiters, poll)
		s.unlock()
		return ctx.Err()
	}
}

// TryAcquire attempts to reserve weight units without blocking. It reports
// whether the reservation succeeded.
func (s *Semaphore) TryAcquire(weight uint64) bool {
	s.lock(context.Background())
	defer s.unlock()
	if s.available < weight {
		return false
	}
	s.available -= weight
	return true
}

// Release returns weight units to the semaphore.
func (s *Semaphore) Release(weight uint64) {
	s.lock(context.Background())
	defer s.unlock()
	s.available += weight
	s.broadcast()
}

// InUse reports the number of units currently reserved.
func (s *Semaphore) InUse() uint64 {
	s.lock(context.Background())
	defer s.unlock()
	return s.capacity - s.available
}

// Capacity reports the semaphore's total capacity.
func (s *Semaphore) Capacity() uint64 {
	return s.capacity
}

// Governor bundles the three permit pools that gate the reduction pipeline:
// concurrent outbound object-store fetches, in-flight decoded bytes, and
// concurrent CPU-bound sections (decompression, filter inversion,
// reduction).
type Governor struct {
	S3  *Semaphore
	Mem *Semaphore
	CPU *Semaphore
}

// Config carries the three capacities used to build a Governor.
type Config struct {
	// S3Permits is the maximum number of concurrent outbound object-store
	// fetches.
	S3Permits uint64
	// MemPermits is the maximum number of in-flight decoded bytes, summed
	// across all concurrently executing requests.
	MemPermits uint64
	// CPUPermits is the maximum number of concurrent CPU-bound pipeline
	// sections.
	CPUPermits uint64
}

// New builds a Governor from the given configuration.
func New(cfg Config) *Governor {
	return &Governor{
		S3:  NewSemaphore(cfg.S3Permits),
		Mem: NewSemaphore(cfg.MemPermits),
		CPU: NewSemaphore(cfg.CPUPermits),
	}
}

// AcquireWithTimeout is a convenience wrapper that bounds acquisition by a
// duration in addition to the caller's context, returning context.DeadlineExceeded
// if the timeout elapses first.
func (g *Governor) AcquireWithTimeout(ctx context.Context, s *Semaphore, weight uint64, timeout time.Duration) error {
	if timeout <= 0 {
		return s.Acquire(ctx, weight)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Acquire(tctx, weight)
}
