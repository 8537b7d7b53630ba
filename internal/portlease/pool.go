package portlease

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/giantswarm/testcoord/internal/fault"
	"github.com/giantswarm/testcoord/internal/metrics"
)

// maxPort is the highest valid TCP port.
const maxPort = 65535

// Prober reports whether port can currently be bound on this host.
type Prober func(port int) bool

// ListenProber binds 127.0.0.1:port and closes the listener immediately.
// A successful bind means no other process holds the port right now; the
// result can be stale by the time the caller uses it.
func ListenProber(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// WithProber replaces the OS availability probe. Tests use it to simulate
// ports held by foreign processes.
func WithProber(probe Prober) Option {
	return func(p *Pool) {
		if probe != nil {
			p.probe = probe
		}
	}
}

// WithSeed makes candidate order deterministic.
func WithSeed(seed uint64) Option {
	return func(p *Pool) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithMaxProbes bounds the number of candidates probed by one
// LeaseRandomPort call. Values below 1 are ignored.
func WithMaxProbes(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxProbes = n
		}
	}
}

// WithName labels the pool in logs and metrics.
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithRecorder reports lease counts and exhaustion.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pool) {
		p.rec = metrics.OrNop(r)
	}
}

// Pool leases ports out of the inclusive range [lower, upper].
//
// It is safe for concurrent use. The leased set is only mutated under mu;
// the OS probe runs without holding it so a slow bind never serializes
// unrelated lease calls.
type Pool struct {
	lower, upper int
	name         string
	maxProbes    int
	probe        Prober
	log          *slog.Logger
	rec          metrics.Recorder

	// mu protects leased and rng.
	mu     sync.Mutex
	leased map[int]struct{}
	rng    *rand.Rand
}

// NewPool creates a Pool for [lower, upper]. It returns an error when the
// bounds are not a valid, non-empty port range.
func NewPool(lower, upper int, opts ...Option) (*Pool, error) {
	if lower < 1 || upper > maxPort || lower > upper {
		return nil, fmt.Errorf("invalid port range [%d, %d]", lower, upper)
	}

	seed := uint64(time.Now().UnixNano()) //nolint:gosec // seed only spreads candidate order
	p := &Pool{
		lower:     lower,
		upper:     upper,
		name:      fmt.Sprintf("%d-%d", lower, upper),
		maxProbes: upper - lower + 1,
		probe:     ListenProber,
		log:       slog.Default(),
		rec:       metrics.Nop{},
		leased:    make(map[int]struct{}),
		rng:       rand.New(rand.NewPCG(seed, uint64(lower))),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Range returns the inclusive bounds of the pool.
func (p *Pool) Range() (lower, upper int) {
	return p.lower, p.upper
}

// Name returns the label used in logs and metrics.
func (p *Pool) Name() string {
	return p.name
}

// Leased returns the number of ports currently leased.
func (p *Pool) Leased() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.leased)
}

// IsLeased reports whether port is currently leased from this pool.
func (p *Pool) IsLeased(port int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.leased[port]
	return ok
}

// candidates returns the ports not currently leased, shuffled.
func (p *Pool) candidates() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	free := make([]int, 0, p.upper-p.lower+1-len(p.leased))
	for port := p.lower; port <= p.upper; port++ {
		if _, ok := p.leased[port]; !ok {
			free = append(free, port)
		}
	}
	p.rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
	return free
}

// reserve marks port as leased. It returns false when another caller got
// there first.
func (p *Pool) reserve(port int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.leased[port]; ok {
		return false
	}
	p.leased[port] = struct{}{}
	return true
}

// unreserve removes port from the leased set and returns the new count.
func (p *Pool) unreserve(port int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.leased, port)
	return len(p.leased)
}

// LeaseRandomPort leases a free port chosen pseudo-randomly from the range.
//
// Candidates are reserved before they are probed, so two concurrent callers
// never probe the same port. A candidate that fails the probe is released
// again and the next one is tried. The returned error wraps
// fault.ErrResourceExhausted when every port is leased or no probed candidate
// could be bound.
func (p *Pool) LeaseRandomPort() (int, error) {
	probed := 0
	for _, port := range p.candidates() {
		if probed >= p.maxProbes {
			break
		}
		if !p.reserve(port) {
			continue
		}
		probed++
		if p.probe(port) {
			p.rec.PortLeased(p.name, p.Leased())
			return port, nil
		}
		p.unreserve(port)
		p.log.Debug("port unavailable on host, trying another", "pool", p.name, "port", port)
	}

	p.rec.PortLeaseExhausted(p.name)
	return 0, fmt.Errorf("lease port in [%d, %d] after probing %d candidates: %w",
		p.lower, p.upper, probed, fault.ErrResourceExhausted)
}

// StopLease returns port to the pool. Ports that are not leased, including
// ports outside the range, are ignored so disposal can call it
// unconditionally.
func (p *Pool) StopLease(port int) {
	n := p.unreserve(port)
	p.rec.PortLeased(p.name, n)
}
