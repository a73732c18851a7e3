// Package pebble is a minimal client for the Pebble process supervisor
// running inside a workload container.
//
// The operator talks to Pebble over its HTTP API on a shared unix socket.
// Only the handful of endpoints the convergence pass needs are covered:
// connectivity probing, reading the applied plan, submitting layer
// overlays, listing services, and restarting a service. Pebble itself is
// an external collaborator; this package never supervises processes.
//
// The in-memory fake used by tests lives in the pebbletest subpackage.
package pebble
