package memo

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// State is the lifecycle state of a Cell.
type State int32

const (
	// StateEmpty means no outcome is cached.
	StateEmpty State = iota
	// StateInFlight means an operation holds the guard.
	StateInFlight
	// StateCompleted means a value is cached.
	StateCompleted
	// StateFailed means an error is cached (CacheAlways only).
	StateFailed
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateInFlight:
		return "InFlight"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Op is a memoizable operation. The context is the one of the caller that
// ended up running it.
type Op[V any] func(ctx context.Context) (V, error)

// Cell caches the outcome of a single operation.
//
// The zero value is not usable; create cells with NewCell.
type Cell[V any] struct {
	policy Policy
	guard  *semaphore.Weighted

	// state is readable without the guard; val and err are only touched
	// while holding it.
	state atomic.Int32
	val   V
	err   error
}

// NewCell creates an empty cell. Panics if policy is not valid.
func NewCell[V any](policy Policy) *Cell[V] {
	mustBeValid(policy)
	return &Cell[V]{
		policy: policy,
		guard:  semaphore.NewWeighted(1),
	}
}

// State returns the current state of the cell.
func (c *Cell[V]) State() State {
	return State(c.state.Load())
}

// Done reports whether an outcome is cached.
func (c *Cell[V]) Done() bool {
	s := c.State()
	return s == StateCompleted || s == StateFailed
}

// outcome tells how a call to run was answered.
type outcome int

const (
	outcomeCanceled outcome = iota // gave up waiting for the guard
	outcomeHit                     // answered from the cached outcome
	outcomeRan                     // ran the operation
)

// GetOrRun returns the cached outcome, or runs op while holding the guard and
// caches its outcome according to the policy. Concurrent callers wait for the
// running caller and then observe its cached outcome.
//
// Waiting honours ctx: a canceled caller returns the context error without
// touching the cell. If op panics the guard is released and the cell stays
// empty.
func (c *Cell[V]) GetOrRun(ctx context.Context, op Op[V]) (V, error) {
	v, _, err := c.run(ctx, op)
	return v, err
}

func (c *Cell[V]) run(ctx context.Context, op Op[V]) (v V, o outcome, err error) {
	if err := c.guard.Acquire(ctx, 1); err != nil {
		var zero V
		return zero, outcomeCanceled, fmt.Errorf("wait for in-flight operation: %w", err)
	}
	defer c.guard.Release(1)

	switch c.State() {
	case StateCompleted:
		return c.val, outcomeHit, nil
	case StateFailed:
		var zero V
		return zero, outcomeHit, c.err
	case StateEmpty, StateInFlight:
	}

	c.state.Store(int32(StateInFlight))
	defer func() {
		// Still in flight here only if op panicked.
		c.state.CompareAndSwap(int32(StateInFlight), int32(StateEmpty))
	}()

	v, err = op(ctx)
	switch {
	case err == nil:
		c.val = v
		c.state.Store(int32(StateCompleted))
	case c.policy == CacheAlways:
		c.err = err
		c.state.Store(int32(StateFailed))
	default:
		c.state.Store(int32(StateEmpty))
	}
	return v, outcomeRan, err
}
