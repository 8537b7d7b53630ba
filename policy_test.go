package testcoord_test

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/giantswarm/testcoord"
)

// TestPolicyMethodCount is a canary for methods added to the aliased memo
// policy type, which become public API automatically. Update
// expectedMethods when the addition is intentional.
func TestPolicyMethodCount(t *testing.T) {
	t.Parallel()

	const expectedMethods = 2 // IsValid, String

	if got := reflect.TypeFor[testcoord.Policy]().NumMethod(); got != expectedMethods {
		t.Errorf("Policy has %d methods, expected %d", got, expectedMethods)
	}
}

func TestPolicyValidity(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		policy testcoord.Policy
		valid  bool
	}{
		"cache_on_success": {policy: testcoord.CacheOnSuccess, valid: true},
		"cache_always":     {policy: testcoord.CacheAlways, valid: true},
		"zero":             {policy: testcoord.Policy(0)},
		"out_of_range":     {policy: testcoord.Policy(99)},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := tt.policy.IsValid(); got != tt.valid {
				t.Errorf("%s.IsValid() = %v, want %v", tt.policy, got, tt.valid)
			}
		})
	}
}

func TestNewMemoPanicsOnInvalidPolicy(t *testing.T) {
	t.Parallel()
	requirePanics(t, true,
		"testcoord: memo policy must be CacheOnSuccess or CacheAlways, got PolicyUnset",
		func() { testcoord.NewMemo[string, int]("bad", testcoord.Policy(0)) })
}

func TestMemoPolicies(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	tests := map[string]struct {
		policy    testcoord.Policy
		wantRuns  int32
		wantState testcoord.MemoState
	}{
		"cache_on_success_retries": {
			policy:    testcoord.CacheOnSuccess,
			wantRuns:  2,
			wantState: testcoord.MemoCompleted,
		},
		"cache_always_replays_failure": {
			policy:    testcoord.CacheAlways,
			wantRuns:  1,
			wantState: testcoord.MemoFailed,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			m := testcoord.NewMemo[string, int](name, tt.policy)
			var runs atomic.Int32
			op := func(context.Context) (int, error) {
				if runs.Add(1) == 1 {
					return 0, errBoom
				}
				return 42, nil
			}

			if _, err := m.GetOrRun(t.Context(), "key", op); !errors.Is(err, errBoom) {
				t.Fatalf("first call error = %v, want %v", err, errBoom)
			}
			_, _ = m.GetOrRun(t.Context(), "key", op)

			if got := runs.Load(); got != tt.wantRuns {
				t.Errorf("operation ran %d times, want %d", got, tt.wantRuns)
			}
			if got := m.State("key"); got != tt.wantState {
				t.Errorf("State = %s, want %s", got, tt.wantState)
			}
		})
	}
}
