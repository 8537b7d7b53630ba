package metrics

import "time"

// Process startup outcomes passed to Recorder.ProcessStarted.
const (
	OutcomeReady  = "ready"
	OutcomeFailed = "failed"
)

// Recorder observes coordinator activity. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// PortLeased reports the number of ports currently leased from pool.
	PortLeased(pool string, leased int)
	// PortLeaseExhausted counts a lease request that found no free port.
	PortLeaseExhausted(pool string)
	// MemoExecuted counts an execution of a memoized operation.
	MemoExecuted(registry string, err error)
	// MemoHit counts a call answered from a completed cell.
	MemoHit(registry string)
	// ProcessStarted counts a launch by its outcome.
	ProcessStarted(name, outcome string)
	// SnapshotCreated observes one snapshot creation attempt.
	SnapshotCreated(d time.Duration, err error)
}

// Nop is a Recorder that does nothing.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) PortLeased(string, int)               {}
func (Nop) PortLeaseExhausted(string)            {}
func (Nop) MemoExecuted(string, error)           {}
func (Nop) MemoHit(string)                       {}
func (Nop) ProcessStarted(string, string)        {}
func (Nop) SnapshotCreated(time.Duration, error) {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder { //nolint:ireturn // callers store the interface
	if r == nil {
		return Nop{}
	}
	return r
}

// status maps an error to a metric label value.
func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
