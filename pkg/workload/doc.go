// Package workload implements the idempotent convergence pass that keeps
// the Jellyfin process inside the workload container matching its desired
// declaration.
//
// One pass checks supervisor connectivity, diffs the desired process layer
// against the applied plan, submits an overlay when they differ, and
// restarts the service when the layer changed, the configuration changed,
// or the service is not running. The pass is single-threaded and runs to
// completion; all retry is delegated to the caller's notification cadence.
package workload
