package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
)

// fakeEnv records the calls made on it.
type fakeEnv struct {
	mu          sync.Mutex
	calls       []string
	snapshotErr error
	resumeErr   error
}

func (e *fakeEnv) record(call string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
}

func (e *fakeEnv) TakeSnapshot(_ context.Context, location string) error {
	e.record("snapshot")
	if e.snapshotErr != nil {
		return e.snapshotErr
	}
	return os.WriteFile(location+".marker", []byte("ok"), 0o644)
}

func (e *fakeEnv) Resume(context.Context) error {
	e.record("resume")
	return e.resumeErr
}

func (e *fakeEnv) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

func TestNew_PanicsOnEmptyLocation(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	New("")
}

func TestRunOnceAndSnapshot_ConcurrentCallersShareOneRun(t *testing.T) {
	t.Parallel()

	type callerKey struct{}

	c := New(filepath.Join(t.TempDir(), "snap"))
	env := &fakeEnv{}
	var (
		runs     atomic.Int32
		runner   atomic.Int32
		initDone atomic.Int64
	)

	init := func(ctx context.Context) (Environment, string, error) {
		env.record("init")
		runs.Add(1)
		runner.Store(int32(ctx.Value(callerKey{}).(int)))
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
		initDone.Store(time.Now().UnixNano())
		return env, "Server=db;Database=seeded", nil
	}

	refs := make([]string, 2)
	latencies := make([]time.Duration, 2)
	begin := time.Now()
	g, ctx := errgroup.WithContext(t.Context())
	for i := range refs {
		g.Go(func() error {
			ref, err := c.RunOnceAndSnapshot(context.WithValue(ctx, callerKey{}, i), init)
			latencies[i] = time.Since(begin)
			refs[i] = ref
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("RunOnceAndSnapshot: %v", err)
	}

	// The caller that did not run the initializer waited for it to finish.
	waiter := 1 - int(runner.Load())
	initLatency := time.Duration(initDone.Load() - begin.UnixNano())
	if latencies[waiter] < initLatency {
		t.Errorf("waiting caller returned after %s, before the initializer finished at %s",
			latencies[waiter], initLatency)
	}
	if latencies[waiter] < 100*time.Millisecond {
		t.Errorf("waiting caller latency = %s, want at least the 100ms initializer", latencies[waiter])
	}

	if n := runs.Load(); n != 1 {
		t.Errorf("initializer ran %d times, want 1", n)
	}
	if refs[0] != refs[1] || refs[0] != "Server=db;Database=seeded" {
		t.Errorf("refs = %q, want identical pinned reference", refs)
	}
	if got, want := env.Calls(), []string{"init", "snapshot", "resume"}; !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if !c.Created() {
		t.Error("Created() = false after success")
	}

	// Later callers get the pinned ref without running anything.
	ref, err := c.RunOnceAndSnapshot(t.Context(), func(context.Context) (Environment, string, error) {
		t.Error("initializer must not run again")
		return env, "other", nil
	})
	if err != nil || ref != "Server=db;Database=seeded" {
		t.Errorf("third call = %q, %v", ref, err)
	}
}

func TestRunOnceAndSnapshot_RetriesAfterFailure(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		env     *fakeEnv
		initErr error
	}{
		"initializer fails": {env: &fakeEnv{}, initErr: errors.New("seed failed")},
		"snapshot fails":    {env: &fakeEnv{snapshotErr: errors.New("disk full")}},
		"resume fails":      {env: &fakeEnv{resumeErr: errors.New("resume failed")}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			location := filepath.Join(t.TempDir(), "snap")
			c := New(location)

			_, err := c.RunOnceAndSnapshot(t.Context(), func(context.Context) (Environment, string, error) {
				if tc.initErr != nil {
					return nil, "", tc.initErr
				}
				return tc.env, "ref-1", nil
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if c.Created() {
				t.Fatal("Created() = true after failure")
			}

			ok := &fakeEnv{}
			ref, err := c.RunOnceAndSnapshot(t.Context(), func(context.Context) (Environment, string, error) {
				return ok, "ref-2", nil
			})
			if err != nil {
				t.Fatalf("retry: %v", err)
			}
			if ref != "ref-2" || !c.Created() {
				t.Errorf("retry = %q, created=%v", ref, c.Created())
			}
		})
	}
}

func TestRunOnceAndSnapshot_ClearsLocationBeforeInit(t *testing.T) {
	t.Parallel()

	location := filepath.Join(t.TempDir(), "snap")
	stale := filepath.Join(location, "stale.db")
	if err := os.MkdirAll(location, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(location)
	_, err := c.RunOnceAndSnapshot(t.Context(), func(context.Context) (Environment, string, error) {
		if _, err := os.Stat(location); !os.IsNotExist(err) {
			t.Errorf("location still exists when the initializer runs: %v", err)
		}
		return &fakeEnv{}, "ref", nil
	})
	if err != nil {
		t.Fatalf("RunOnceAndSnapshot: %v", err)
	}
	if c.Location() != location {
		t.Errorf("Location() = %q, want %q", c.Location(), location)
	}
}

func TestRunOnceAndSnapshot_NilInitializer(t *testing.T) {
	t.Parallel()

	if _, err := New(t.TempDir()).RunOnceAndSnapshot(t.Context(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunOnceAndSnapshot_FileLockSerializesCoordinators(t *testing.T) {
	t.Parallel()

	location := filepath.Join(t.TempDir(), "shared", "snap")
	var inFlight, maxInFlight atomic.Int32

	init := func(context.Context) (Environment, string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		return &fakeEnv{}, "ref", nil
	}

	// Separate coordinators stand in for separate test processes.
	var g errgroup.Group
	for range 3 {
		c := New(location, WithFileLock(true))
		g.Go(func() error {
			_, err := c.RunOnceAndSnapshot(t.Context(), init)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("RunOnceAndSnapshot: %v", err)
	}
	if m := maxInFlight.Load(); m != 1 {
		t.Errorf("max concurrent creations = %d, want 1", m)
	}
	if _, err := os.Stat(location + ".lock"); err != nil {
		t.Errorf("lock file missing: %v", err)
	}
}

func TestRunOnceAndSnapshot_CanceledWaiter(t *testing.T) {
	t.Parallel()

	c := New(filepath.Join(t.TempDir(), "snap"))
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := c.RunOnceAndSnapshot(t.Context(), func(context.Context) (Environment, string, error) {
			close(started)
			<-release
			return &fakeEnv{}, "ref", nil
		})
		done <- err
	}()
	<-started

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := c.RunOnceAndSnapshot(ctx, func(context.Context) (Environment, string, error) {
		t.Error("waiter must not run the initializer")
		return nil, "", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("waiter err = %v, want context.Canceled", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first caller: %v", err)
	}
	if !c.Created() {
		t.Error("creation must complete despite the canceled waiter")
	}
}

func TestRunOnceAndSnapshot_HeldLockHonoursContext(t *testing.T) {
	t.Parallel()

	location := filepath.Join(t.TempDir(), "snap")
	other := flock.New(location + ".lock")
	if locked, err := other.TryLock(); err != nil || !locked {
		t.Fatalf("TryLock = %v, %v", locked, err)
	}
	defer func() { _ = other.Close() }()

	c := New(location, WithFileLock(true))
	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	_, err := c.RunOnceAndSnapshot(ctx, func(context.Context) (Environment, string, error) {
		t.Error("initializer must not run while another process holds the lock")
		return &fakeEnv{}, "", nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if c.Created() {
		t.Error("Created() = true without a snapshot")
	}
}
