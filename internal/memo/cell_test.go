package memo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestNewCell_PanicsOnUnsetPolicy(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for PolicyUnset")
		}
	}()
	NewCell[int](PolicyUnset)
}

func TestCell_ConcurrentCallersRunOnce(t *testing.T) {
	t.Parallel()

	for _, policy := range []Policy{CacheOnSuccess, CacheAlways} {
		t.Run(policy.String(), func(t *testing.T) {
			t.Parallel()

			const n = 64
			c := NewCell[int](policy)
			var runs atomic.Int32
			start := make(chan struct{})

			results := make([]int, n)
			var g errgroup.Group
			for i := range n {
				g.Go(func() error {
					<-start
					v, err := c.GetOrRun(context.Background(), func(context.Context) (int, error) {
						time.Sleep(20 * time.Millisecond)
						return int(runs.Add(1)) * 42, nil
					})
					results[i] = v
					return err
				})
			}
			close(start)
			if err := g.Wait(); err != nil {
				t.Fatalf("GetOrRun: %v", err)
			}

			if got := runs.Load(); got != 1 {
				t.Fatalf("operation ran %d times, want 1", got)
			}
			for i, v := range results {
				if v != 42 {
					t.Errorf("caller %d got %d, want 42", i, v)
				}
			}
			if c.State() != StateCompleted {
				t.Errorf("state = %s, want Completed", c.State())
			}
		})
	}
}

func TestCell_CacheOnSuccessRetriesAfterFailure(t *testing.T) {
	t.Parallel()

	c := NewCell[string](CacheOnSuccess)
	calls := 0
	op := func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}

	if _, err := c.GetOrRun(context.Background(), op); err == nil {
		t.Fatal("expected first call to fail")
	}
	if c.State() != StateEmpty {
		t.Fatalf("state after failure = %s, want Empty", c.State())
	}

	v, err := c.GetOrRun(context.Background(), op)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if v != "ok" || calls != 2 {
		t.Errorf("v = %q, calls = %d; want ok, 2", v, calls)
	}
}

func TestCell_CacheAlwaysReplaysFailure(t *testing.T) {
	t.Parallel()

	c := NewCell[string](CacheAlways)
	want := errors.New("install failed")
	calls := 0
	op := func(context.Context) (string, error) {
		calls++
		return "", want
	}

	for i := range 3 {
		if _, err := c.GetOrRun(context.Background(), op); !errors.Is(err, want) {
			t.Fatalf("call %d: err = %v, want %v", i, err, want)
		}
	}
	if calls != 1 {
		t.Errorf("operation ran %d times, want 1", calls)
	}
	if c.State() != StateFailed || !c.Done() {
		t.Errorf("state = %s, want Failed and Done", c.State())
	}
}

func TestCell_CanceledWaiterDoesNotRun(t *testing.T) {
	t.Parallel()

	c := NewCell[int](CacheOnSuccess)
	release := make(chan struct{})
	entered := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.GetOrRun(context.Background(), func(context.Context) (int, error) {
			close(entered)
			<-release
			return 1, nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	_, err := c.GetOrRun(ctx, func(context.Context) (int, error) {
		ran = true
		return 2, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if ran {
		t.Error("canceled waiter must not run the operation")
	}

	close(release)
	wg.Wait()

	v, err := c.GetOrRun(context.Background(), func(context.Context) (int, error) { return 3, nil })
	if err != nil || v != 1 {
		t.Errorf("after completion got (%d, %v), want (1, nil)", v, err)
	}
}

func TestCell_PanicReleasesGuard(t *testing.T) {
	t.Parallel()

	c := NewCell[int](CacheAlways)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_, _ = c.GetOrRun(context.Background(), func(context.Context) (int, error) {
			panic("boom")
		})
	}()

	if c.State() != StateEmpty {
		t.Fatalf("state after panic = %s, want Empty", c.State())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := c.GetOrRun(ctx, func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("got (%d, %v), want (7, nil)", v, err)
	}
}

func TestPolicy_String(t *testing.T) {
	t.Parallel()

	tests := map[Policy]string{
		PolicyUnset:    "PolicyUnset",
		CacheOnSuccess: "CacheOnSuccess",
		CacheAlways:    "CacheAlways",
		Policy(9):      "Policy(9)",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
		if p.IsValid() != (p == CacheOnSuccess || p == CacheAlways) {
			t.Errorf("%s.IsValid() = %v", p, p.IsValid())
		}
	}
}
