// Package core holds the process-scoped state of testcoord.
//
// A Coordinator is built eagerly from a validated CoordinatorConfig: the
// port pools of the configured group, the tool restorer, the optional driver
// setup, and the metrics registry all exist before the first test asks for
// them. Snapshot coordinators are created per location on first use and the
// same one is returned for the same location afterwards. Every handle
// launched through the Coordinator is tracked until it is canceled, so
// Shutdown can stop whatever is still running.
package core
