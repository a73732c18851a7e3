package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Domain-specific metric collectors.
//
// These complement the generic controller-runtime metrics (reconcile counts,
// durations, work queue depth, etc.) with workload state the framework
// cannot know about.
var (
	serverInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jellyfin_operator_server_info",
			Help: "Info-style metric for JellyfinServer discovery and phase tracking. Always 1.",
		},
		[]string{"name", "namespace", "phase"},
	)

	convergencePassTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellyfin_operator_convergence_pass_total",
			Help: "Total convergence passes by outcome.",
		},
		[]string{"name", "namespace", "outcome"},
	)

	portPatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellyfin_operator_port_patch_total",
			Help: "Total Kubernetes Service port patch attempts.",
		},
		[]string{"name", "namespace", "result"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		serverInfo,
		convergencePassTotal,
		portPatchTotal,
	)
}
