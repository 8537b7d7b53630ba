// Package snapshot builds an expensive test environment once per snapshot
// location and shares the result with every later caller.
//
// A Coordinator owns one location. RunOnceAndSnapshot deletes whatever is at
// the location, runs the initializer, snapshots the environment into the
// location, resumes it, and only then marks the location done. Concurrent
// callers wait for the one in flight; after a failure the next caller starts
// over from the deletion. The result reference of the first successful run is
// pinned and returned to every later caller.
//
// With WithFileLock the creation also holds an flock on "<location>.lock",
// so separate test processes sharing a location never build it at the same
// time.
package snapshot
