package memo

import (
	"context"
	"sync"

	"github.com/giantswarm/testcoord/internal/metrics"
)

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	rec metrics.Recorder
}

// WithRecorder reports executions and hits of the registry's cells.
func WithRecorder(r metrics.Recorder) RegistryOption {
	return func(c *registryConfig) {
		c.rec = metrics.OrNop(r)
	}
}

// Registry indexes cells by key and creates them on first use. All cells of
// a registry share one policy.
//
// The map mutex is held only to look up or insert a cell, never while an
// operation runs, so different keys never serialize each other.
type Registry[K comparable, V any] struct {
	name   string
	policy Policy
	rec    metrics.Recorder

	mu    sync.Mutex
	cells map[K]*Cell[V]
}

// NewRegistry creates a Registry. The name labels its metrics. Panics if
// policy is not valid.
func NewRegistry[K comparable, V any](name string, policy Policy, opts ...RegistryOption) *Registry[K, V] {
	mustBeValid(policy)

	cfg := registryConfig{rec: metrics.Nop{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry[K, V]{
		name:   name,
		policy: policy,
		rec:    cfg.rec,
		cells:  make(map[K]*Cell[V]),
	}
}

// Policy returns the policy shared by all cells.
func (r *Registry[K, V]) Policy() Policy {
	return r.policy
}

// Len returns the number of cells created so far.
func (r *Registry[K, V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cells)
}

// cell returns the cell for key, creating it if needed.
func (r *Registry[K, V]) cell(key K) *Cell[V] {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cells[key]
	if !ok {
		c = NewCell[V](r.policy)
		r.cells[key] = c
	}
	return c
}

// State returns the state of key's cell, StateEmpty if it does not exist.
func (r *Registry[K, V]) State(key K) State {
	r.mu.Lock()
	c, ok := r.cells[key]
	r.mu.Unlock()
	if !ok {
		return StateEmpty
	}
	return c.State()
}

// GetOrRun returns the cached outcome for key or runs op to produce it. See
// Cell.GetOrRun.
func (r *Registry[K, V]) GetOrRun(ctx context.Context, key K, op Op[V]) (V, error) {
	v, o, err := r.cell(key).run(ctx, op)
	switch o {
	case outcomeHit:
		r.rec.MemoHit(r.name)
	case outcomeRan:
		r.rec.MemoExecuted(r.name, err)
	case outcomeCanceled:
	}
	return v, err
}
