// Package managed launches long-running auxiliary services for tests.
//
// Launch leases the ports a service needs before building its command line,
// starts it, waits for a caller-defined ready condition, and only then
// decides the outcome from the complete captured error stream: nothing
// captured means Ready, anything captured means a StartupError carrying the
// whole text. Every exit path releases the leased ports, and Cancel releases
// them without waiting for the process to finish exiting.
package managed
