// Package testcoord coordinates the shared resources of parallel
// integration tests: TCP ports, external helper processes, one-time tool
// setup, and reusable environment snapshots.
//
// A test process creates one Coordinator. Its port pools are partitioned by
// a group index, usually the build agent index, so concurrent test processes
// on one machine never hand out the same port.
//
// # Basic Usage
//
//	import "github.com/giantswarm/testcoord"
//
//	coord := testcoord.NewCoordinator(
//	    testcoord.WithGroupIndex(testcoord.AgentIndexOrDefault()),
//	)
//	defer coord.Shutdown()
//
//	srv, err := coord.StartSMTP(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//
//	// Point the application under test at srv.Host().
//
// # Managed Processes
//
// Launch leases the requested ports, starts the process, and waits for its
// ready condition. Anything the process writes to stderr before it is ready
// fails the launch with a StartupError carrying the whole output:
//
//	proc, err := coord.Launch(ctx, testcoord.ProcessSpec{
//	    Name:    "fake-api",
//	    Command: "fake-api",
//	    Args: func(p testcoord.Ports) []string {
//	        return []string{"--port", strconv.Itoa(p["http"])}
//	    },
//	    Ports: []testcoord.PortRequest{{Name: "http", Pool: pool}},
//	    Ready: testcoord.TCPProbe("http", 100*time.Millisecond, time.Minute),
//	})
//
// Cancel (or Close) returns the ports to their pool at once and stops the
// process; both are safe to call more than once.
//
// # Snapshots
//
// Snapshots(location) returns a coordinator that runs an expensive
// initializer once per process, captures the result at location, and hands
// the same reference to every caller:
//
//	snap, _ := coord.Snapshots(filepath.Join(os.TempDir(), "db-template"))
//	ref, err := snap.RunOnceAndSnapshot(ctx, initDatabase)
//
// A failed creation is not cached; the next caller starts over from a clean
// location.
package testcoord
