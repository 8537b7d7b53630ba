package testcoord

import "github.com/giantswarm/testcoord/internal/memo"

// Policy decides whether a Memo caches a failed operation.
//
// Policy is a type alias, so the IsValid and String methods of the
// underlying type are part of the public API.
type Policy = memo.Policy

const (
	// CacheOnSuccess caches only success. After a failure the next caller
	// runs the operation again. Use it for expensive work that may fail
	// transiently.
	CacheOnSuccess = memo.CacheOnSuccess

	// CacheAlways caches the first outcome, success or failure. Use it for
	// one-time preparation whose side effects must not repeat.
	CacheAlways = memo.CacheAlways
)

// MemoState is the lifecycle state of a memoized key.
type MemoState = memo.State

// Memo states.
const (
	MemoEmpty     = memo.StateEmpty
	MemoInFlight  = memo.StateInFlight
	MemoCompleted = memo.StateCompleted
	MemoFailed    = memo.StateFailed
)

// MemoOp is an operation run at most once per key at a time.
type MemoOp[V any] = memo.Op[V]

// Memo runs one operation per key for all concurrent callers and caches its
// outcome according to its Policy. Different keys never wait on each other,
// and a waiting caller gives up when its own context ends.
type Memo[K comparable, V any] = memo.Registry[K, V]

// NewMemo creates a Memo. The name identifies it in metrics.
//
// Panics if policy is neither CacheOnSuccess nor CacheAlways.
func NewMemo[K comparable, V any](name string, policy Policy) *Memo[K, V] {
	return memo.NewRegistry[K, V](name, policy)
}
