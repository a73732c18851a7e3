package monitoring

// SetServerPhase sets the info-style gauge for a JellyfinServer.
// Old phase labels are automatically cleaned up via DeletePartialMatch.
func SetServerPhase(name, namespace, phase string) {
	serverInfo.DeletePartialMatch(map[string]string{
		"name":      name,
		"namespace": namespace,
	})
	serverInfo.WithLabelValues(name, namespace, phase).Set(1)
}

// RecordConvergencePass counts one convergence pass with its outcome.
func RecordConvergencePass(name, namespace, outcome string) {
	convergencePassTotal.WithLabelValues(name, namespace, outcome).Inc()
}

// RecordPortPatch records a Service port patch attempt's result.
func RecordPortPatch(name, namespace string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	portPatchTotal.WithLabelValues(name, namespace, result).Inc()
}
