package controller

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	mediav1alpha1 "github.com/medialab/jellyfin-operator/api/v1alpha1"
	"github.com/medialab/jellyfin-operator/pkg/leadership"
	"github.com/medialab/jellyfin-operator/pkg/monitoring"
	"github.com/medialab/jellyfin-operator/pkg/pebble"
	"github.com/medialab/jellyfin-operator/pkg/state"
	"github.com/medialab/jellyfin-operator/pkg/workload"
)

// requeueAfter drives the periodic status-check notification. Every
// convergence pass is idempotent, so re-running on a timer is the
// self-healing mechanism; no retry logic lives inside a pass.
const requeueAfter = time.Minute

// conditionReady is the single condition type projected onto the status.
const conditionReady = "Ready"

// PebbleDialer returns a supervisor client for one JellyfinServer
// instance. Tests substitute an in-memory fake.
type PebbleDialer func(server *mediav1alpha1.JellyfinServer) pebble.Client

// DefaultPebbleDialer dials the instance's Pebble socket over HTTP.
func DefaultPebbleDialer(server *mediav1alpha1.JellyfinServer) pebble.Client {
	return pebble.NewClient(server.Spec.PebbleSocket)
}

// JellyfinServerReconciler reconciles a JellyfinServer object.
//
// Each reconciliation maps a lifecycle notification onto the shared
// convergence pass and, for install and upgrade, onto the Service port
// patch. Passes never overlap for one instance; controller-runtime
// serializes reconciliations per key.
type JellyfinServerReconciler struct {
	client.Client
	Scheme *runtime.Scheme

	// Pebble dials the workload container's supervisor.
	Pebble PebbleDialer

	// IsLeader gates the Service port patch to the single leader replica.
	IsLeader leadership.Checker

	// State persists per-instance state across passes.
	State *state.Store
}

// +kubebuilder:rbac:groups=media.medialab.dev,resources=jellyfinservers,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=media.medialab.dev,resources=jellyfinservers/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=services,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups="",resources=configmaps,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=networking.k8s.io,resources=ingresses,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=coordination.k8s.io,resources=leases,verbs=get;list;watch;create;update;patch;delete

// Reconcile handles one lifecycle notification for a JellyfinServer.
func (r *JellyfinServerReconciler) Reconcile(
	ctx context.Context,
	req ctrl.Request,
) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	server := &mediav1alpha1.JellyfinServer{}
	if err := r.Get(ctx, req.NamespacedName, server); err != nil {
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}

	// Owner references garbage-collect the state ConfigMap and Ingress;
	// nothing to do on deletion.
	if !server.DeletionTimestamp.IsZero() {
		return ctrl.Result{}, nil
	}

	ctx, span := monitoring.StartReconcileSpan(ctx, "Reconcile",
		server.Name, server.Namespace, "JellyfinServer")
	defer span.End()

	for _, notification := range r.classify(server) {
		logger.V(1).Info("Dispatching notification", "notification", notification)
		if err := r.dispatch(ctx, notification, server); err != nil {
			monitoring.RecordSpanError(span, err)
			return ctrl.Result{}, err
		}
	}

	return ctrl.Result{RequeueAfter: requeueAfter}, nil
}

// converge runs the shared convergence pass and projects its outcome onto
// the resource status. This is the common exit hook every notification
// funnels into.
func (r *JellyfinServerReconciler) converge(
	ctx context.Context,
	server *mediav1alpha1.JellyfinServer,
) error {
	logger := log.FromContext(ctx)

	st, err := r.State.Load(ctx, server)
	if err != nil {
		return err
	}

	// Register this instance in the server registry so peers appear in
	// the persisted state.
	st.Servers[server.Name] = fmt.Sprintf("%s.%s.svc", server.Name, server.Namespace)

	rec := workload.New(r.Pebble(server), workload.Config{
		DataDir:    server.Spec.DataDir,
		CacheDir:   server.Spec.CacheDir,
		FFmpegPath: server.Spec.FFmpegPath,
	}, logger)

	status, err := rec.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("converging workload: %w", err)
	}

	if err := r.State.Save(ctx, server, st); err != nil {
		return err
	}

	monitoring.RecordConvergencePass(server.Name, server.Namespace, string(status.Kind))
	return r.updateStatus(ctx, server, status)
}

// updateStatus maps the three-valued convergence outcome onto the
// resource's phase and conditions.
func (r *JellyfinServerReconciler) updateStatus(
	ctx context.Context,
	server *mediav1alpha1.JellyfinServer,
	status workload.Status,
) error {
	condition := metav1.Condition{
		Type:               conditionReady,
		ObservedGeneration: server.Generation,
	}

	switch status.Kind {
	case workload.KindActive:
		server.Status.Phase = mediav1alpha1.PhaseActive
		server.Status.Reason = ""
		condition.Status = metav1.ConditionTrue
		condition.Reason = "Converged"
		condition.Message = "desired process layer applied and service running"
	case workload.KindBlocked:
		server.Status.Phase = mediav1alpha1.PhaseBlocked
		server.Status.Reason = status.Reason
		condition.Status = metav1.ConditionFalse
		condition.Reason = "RestartFailed"
		condition.Message = status.Reason
	case workload.KindWaiting:
		server.Status.Phase = mediav1alpha1.PhaseWaiting
		server.Status.Reason = status.Reason
		condition.Status = metav1.ConditionFalse
		condition.Reason = "AwaitingContainer"
		condition.Message = status.Reason
	}

	meta.SetStatusCondition(&server.Status.Conditions, condition)
	server.Status.ObservedGeneration = server.Generation

	if err := r.Status().Update(ctx, server); err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	monitoring.SetServerPhase(server.Name, server.Namespace, string(server.Status.Phase))
	return nil
}

// SetupWithManager sets up the controller with the Manager. Owned
// ConfigMaps and Ingresses re-trigger reconciliation when they drift.
func (r *JellyfinServerReconciler) SetupWithManager(mgr ctrl.Manager) error {
	if r.Pebble == nil {
		r.Pebble = DefaultPebbleDialer
	}
	if r.IsLeader == nil {
		r.IsLeader = leadership.FromElected(mgr.Elected())
	}
	if r.State == nil {
		r.State = state.NewStore(mgr.GetClient(), mgr.GetScheme())
	}
	return ctrl.NewControllerManagedBy(mgr).
		For(&mediav1alpha1.JellyfinServer{}).
		Named("jellyfinserver").
		Complete(r)
}
