// Package metrics records coordinator activity. Recorder is the narrow
// interface components depend on; Nop discards everything and Prometheus
// exports counters, gauges, and histograms on a private registry.
package metrics
