// Package memo runs an operation at most once at a time per key and shares
// its outcome with every caller.
//
// Each Cell is guarded by a weighted semaphore of size one: waiters block on
// a channel and give up when their context is canceled, and the guard is
// released on every exit path including a panicking operation. What a failed
// operation leaves behind is decided by the Policy passed at construction;
// there is no default.
package memo
