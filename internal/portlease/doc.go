// Package portlease hands out mutually exclusive TCP ports from a bounded
// range.
//
// A Pool owns one inclusive range. Ranges for separate OS processes are
// derived from a worker-group index with RangeForGroup, so processes of
// different groups never contend for the same ports and no cross-process lock
// is needed. Within a process, leases are tracked under a pool-wide mutex and
// every candidate is probed by actually binding it, which tolerates ports held
// by processes this package knows nothing about.
package portlease
