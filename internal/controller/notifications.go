package controller

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/log"

	mediav1alpha1 "github.com/medialab/jellyfin-operator/api/v1alpha1"
)

// Notification names a lifecycle event delivered to an instance. The
// platform collapses its event stream into a single reconcile request, so
// the controller recovers the intent from the observed resource state.
type Notification string

const (
	// NotificationInstall fires once when an instance is first observed.
	NotificationInstall Notification = "install"

	// NotificationUpgrade fires when the spec generation moved since the
	// last recorded pass.
	NotificationUpgrade Notification = "upgrade"

	// NotificationContainerReady fires when a previous pass was waiting on
	// the workload container.
	NotificationContainerReady Notification = "container-ready"

	// NotificationStart fires after install completes.
	NotificationStart Notification = "start"

	// NotificationUpdateStatus is the periodic health check.
	NotificationUpdateStatus Notification = "update-status"
)

// classify recovers the lifecycle notifications for this pass from the
// resource's recorded status.
func (r *JellyfinServerReconciler) classify(server *mediav1alpha1.JellyfinServer) []Notification {
	switch {
	case server.Status.ObservedGeneration == 0:
		return []Notification{NotificationInstall, NotificationStart}
	case server.Status.ObservedGeneration != server.Generation:
		return []Notification{NotificationUpgrade}
	case server.Status.Phase == mediav1alpha1.PhaseWaiting:
		return []Notification{NotificationContainerReady}
	default:
		return []Notification{NotificationUpdateStatus}
	}
}

// dispatch runs the handler for one notification. Every handler funnels
// into the shared convergence pass; install and upgrade additionally
// reconcile the cluster-facing surface (Service ports, Ingress).
func (r *JellyfinServerReconciler) dispatch(
	ctx context.Context,
	notification Notification,
	server *mediav1alpha1.JellyfinServer,
) error {
	switch notification {
	case NotificationInstall, NotificationUpgrade:
		return r.handleInstallOrUpgrade(ctx, server)
	case NotificationContainerReady, NotificationStart, NotificationUpdateStatus:
		return r.converge(ctx, server)
	default:
		return r.converge(ctx, server)
	}
}

// handleInstallOrUpgrade patches the Service ports, ensures the Ingress,
// and then converges the workload. The port patch is best-effort and
// leader-gated; its failure degrades networking but must not wedge the
// lifecycle, so the error is logged and swallowed.
func (r *JellyfinServerReconciler) handleInstallOrUpgrade(
	ctx context.Context,
	server *mediav1alpha1.JellyfinServer,
) error {
	logger := log.FromContext(ctx)

	if err := r.patchKubernetesService(ctx, server); err != nil {
		logger.Error(err, "Port patching failed, continuing")
	}

	if err := r.ensureIngress(ctx, server); err != nil {
		return err
	}
	return r.converge(ctx, server)
}
