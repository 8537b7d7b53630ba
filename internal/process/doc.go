// Package process owns the OS side of an external process: starting it with
// a single Wait goroutine, stopping it with SIGTERM escalated to SIGKILL,
// capturing its error stream line by line, and polling for readiness.
package process
