// Package fault holds the error taxonomy shared by every testcoord component.
//
// Sentinels are declared with Error, a string type that can be a const, so
// callers match them with errors.Is through any amount of wrapping. Failures
// that carry diagnostic context (captured process output, the driver version
// that was attempted) are typed errors that unwrap to their sentinel.
package fault
