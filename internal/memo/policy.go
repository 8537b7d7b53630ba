package memo

import "fmt"

// Policy decides whether a failed operation is cached.
type Policy int

const (
	// PolicyUnset is the zero value. Constructors reject it so every use
	// site has to state its policy.
	PolicyUnset Policy = iota

	// CacheOnSuccess caches only a successful result. A failure releases the
	// guard and leaves the cell empty, so the next caller retries from
	// scratch. Use it for expensive work where a transient failure must not
	// poison every later caller.
	CacheOnSuccess

	// CacheAlways caches the first outcome, success or failure, and replays
	// it verbatim. Use it for one-time global preparation whose side effects
	// must not be repeated even after a failure.
	CacheAlways
)

// IsValid reports whether p is CacheOnSuccess or CacheAlways.
func (p Policy) IsValid() bool {
	switch p {
	case CacheOnSuccess, CacheAlways:
		return true
	default:
		return false
	}
}

// String returns the name of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyUnset:
		return "PolicyUnset"
	case CacheOnSuccess:
		return "CacheOnSuccess"
	case CacheAlways:
		return "CacheAlways"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// mustBeValid panics when p is not a usable policy.
func mustBeValid(p Policy) {
	if !p.IsValid() {
		panic(fmt.Sprintf("testcoord: memo policy must be CacheOnSuccess or CacheAlways, got %s", p))
	}
}
