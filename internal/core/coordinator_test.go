package core

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/testcoord/internal/fault"
	"github.com/giantswarm/testcoord/internal/managed"
	"github.com/giantswarm/testcoord/internal/toolsetup"
)

func requireShell(t *testing.T) string {
	t.Helper()

	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func newTestCoordinator(t *testing.T, modify func(*CoordinatorConfig)) *Coordinator {
	t.Helper()

	cfg := validConfig()
	cfg.Prober = func(int) bool { return true }
	if modify != nil {
		modify(&cfg)
	}
	c := NewCoordinatorWithConfig(cfg)
	t.Cleanup(func() { _ = c.Shutdown() })
	return c
}

func sleeperSpec(sh string, c *Coordinator) managed.Spec {
	smtpPool, _ := c.Pool(PoolSMTP)
	return managed.Spec{
		Name:    "sleeper",
		Command: sh,
		Args:    func(managed.Ports) []string { return []string{"-c", "exec sleep 30"} },
		Ports:   []managed.PortRequest{{Name: "smtp", Pool: smtpPool}},
		Ready:   managed.GracePeriod(50 * time.Millisecond),
	}
}

func TestNewCoordinatorWithConfig_PanicsOnInvalidConfig(t *testing.T) {
	t.Parallel()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		if msg, _ := r.(string); !strings.Contains(msg, "invalid coordinator config") {
			t.Errorf("panic = %v", r)
		}
	}()
	NewCoordinatorWithConfig(CoordinatorConfig{})
}

func TestCoordinator_PoolsFollowGroupIndex(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t, func(cfg *CoordinatorConfig) {
		cfg.Ranges["db"] = PortRange{Base: 15000, BlockSize: 10}
	})

	tests := map[string]struct{ lower, upper int }{
		PoolSMTP:  {11200, 11299},
		PoolWebUI: {12200, 12299},
		"db":      {15020, 15029},
	}
	for name, want := range tests {
		p, ok := c.Pool(name)
		if !ok {
			t.Fatalf("Pool(%q) missing", name)
		}
		lower, upper := p.Range()
		if lower != want.lower || upper != want.upper {
			t.Errorf("Pool(%q).Range() = [%d, %d], want [%d, %d]", name, lower, upper, want.lower, want.upper)
		}
	}
	if _, ok := c.Pool("missing"); ok {
		t.Error("Pool(missing) should not exist")
	}
	if got := strings.Join(c.PoolNames(), ","); got != "db,smtp,webui" {
		t.Errorf("PoolNames() = %s", got)
	}
}

func TestCoordinator_SnapshotsMemoizedPerLocation(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t, nil)
	dir := t.TempDir()

	a, err := c.Snapshots(filepath.Join(dir, "snap"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Snapshots(filepath.Join(dir, "x", "..", "snap"))
	if err != nil {
		t.Fatal(err)
	}
	other, err := c.Snapshots(filepath.Join(dir, "other"))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("same location should return the same coordinator")
	}
	if a == other {
		t.Error("different locations must not share a coordinator")
	}
	if _, err := c.Snapshots(""); err == nil {
		t.Error("empty location should fail")
	}
}

func TestCoordinator_LaunchTracksUntilCancel(t *testing.T) {
	t.Parallel()

	sh := requireShell(t)
	c := newTestCoordinator(t, nil)

	h, err := c.Launch(t.Context(), sleeperSpec(sh, c))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if c.Live() != 1 {
		t.Errorf("Live() = %d, want 1", c.Live())
	}

	h.Cancel()
	if c.Live() != 0 {
		t.Errorf("Live() = %d after Cancel, want 0", c.Live())
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestCoordinator_ShutdownStopsLiveHandles(t *testing.T) {
	t.Parallel()

	sh := requireShell(t)
	c := newTestCoordinator(t, nil)
	smtpPool, _ := c.Pool(PoolSMTP)

	var handles []*managed.Handle
	for range 3 {
		h, err := c.Launch(t.Context(), sleeperSpec(sh, c))
		if err != nil {
			t.Fatalf("Launch: %v", err)
		}
		handles = append(handles, h)
	}
	if smtpPool.Leased() != 3 {
		t.Fatalf("Leased() = %d, want 3", smtpPool.Leased())
	}

	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if smtpPool.Leased() != 0 {
		t.Errorf("Leased() = %d after Shutdown, want 0", smtpPool.Leased())
	}
	for _, h := range handles {
		select {
		case <-h.Exited():
		default:
			t.Errorf("handle %s still running after Shutdown", h.ID())
		}
	}
	if err := c.Shutdown(); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}

	if _, err := c.Launch(t.Context(), sleeperSpec(sh, c)); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Launch after Shutdown err = %v, want ErrShuttingDown", err)
	}
	if _, err := c.SetupDriver(t.Context(), toolsetup.Firefox); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("SetupDriver after Shutdown err = %v, want ErrShuttingDown", err)
	}
	if err := c.RestoreTools(t.Context(), t.TempDir()); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("RestoreTools after Shutdown err = %v, want ErrShuttingDown", err)
	}
}

func TestCoordinator_LaunchStartupFailureNotTracked(t *testing.T) {
	t.Parallel()

	sh := requireShell(t)
	c := newTestCoordinator(t, func(cfg *CoordinatorConfig) { cfg.MaxLaunchAttempts = 2 })

	spec := sleeperSpec(sh, c)
	spec.Args = func(managed.Ports) []string { return []string{"-c", "echo broken >&2; exec sleep 30"} }

	_, err := c.Launch(t.Context(), spec)
	if !errors.Is(err, fault.ErrStartupFailure) {
		t.Fatalf("err = %v, want ErrStartupFailure", err)
	}
	if c.Live() != 0 {
		t.Errorf("Live() = %d, want 0", c.Live())
	}
}

type recordingInstaller struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingInstaller) Install(context.Context, toolsetup.Browser, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return nil
}

func (r *recordingInstaller) Source(toolsetup.Browser, string) string { return "test" }

func TestCoordinator_SetupDriver(t *testing.T) {
	t.Parallel()

	t.Run("without installer", func(t *testing.T) {
		t.Parallel()

		c := newTestCoordinator(t, nil)
		if _, err := c.SetupDriver(t.Context(), toolsetup.Chrome); !errors.Is(err, ErrNoDriverInstaller) {
			t.Errorf("err = %v, want ErrNoDriverInstaller", err)
		}
	})

	t.Run("installs once", func(t *testing.T) {
		t.Parallel()

		inst := &recordingInstaller{}
		c := newTestCoordinator(t, func(cfg *CoordinatorConfig) { cfg.DriverInstaller = inst })
		for range 3 {
			if _, err := c.SetupDriver(t.Context(), toolsetup.Edge); err != nil {
				t.Fatalf("SetupDriver: %v", err)
			}
		}
		if inst.calls != 1 {
			t.Errorf("installer called %d times, want 1", inst.calls)
		}
	})
}

func TestCoordinator_RegistryExposesMetrics(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t, nil)
	p, _ := c.Pool(PoolWebUI)
	if _, err := p.LeaseRandomPort(); err != nil {
		t.Fatal(err)
	}

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "testcoord_ports_leased" {
			found = true
		}
	}
	if !found {
		t.Error("testcoord_ports_leased not registered")
	}
}
