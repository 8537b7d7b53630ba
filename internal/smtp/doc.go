// Package smtp runs an smtp4dev instance for tests that send mail.
//
// smtp4dev is a .NET local tool. Start checks the tool manifest, restores the
// tools once per process, leases an SMTP port and a web UI port from the
// group's ranges, and launches the tool with an in-memory database. Anything
// the tool writes to its error stream during startup fails the start with the
// complete text.
package smtp
