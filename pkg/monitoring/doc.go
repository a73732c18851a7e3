// Package monitoring provides Prometheus metrics and recording helpers for
// the Jellyfin Operator. It exposes domain-specific gauges and counters
// that complement the generic controller-runtime metrics already registered
// by the framework.
//
// All metrics follow the naming convention jellyfin_operator_<metric>_<unit>
// and are registered against controller-runtime's default Prometheus registry
// on import.
//
// Usage in controllers:
//
//	monitoring.SetServerPhase(server.Name, server.Namespace, string(server.Status.Phase))
//	monitoring.RecordPortPatch(server.Name, server.Namespace, err)
package monitoring
