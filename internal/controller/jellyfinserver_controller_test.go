package controller

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	mediav1alpha1 "github.com/medialab/jellyfin-operator/api/v1alpha1"
	"github.com/medialab/jellyfin-operator/pkg/leadership"
	"github.com/medialab/jellyfin-operator/pkg/pebble"
	"github.com/medialab/jellyfin-operator/pkg/pebble/pebbletest"
	"github.com/medialab/jellyfin-operator/pkg/state"
	"github.com/medialab/jellyfin-operator/pkg/testutil"
	"github.com/medialab/jellyfin-operator/pkg/workload"
)

func setupScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		t.Fatalf("adding client-go scheme: %v", err)
	}
	if err := mediav1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("adding media scheme: %v", err)
	}
	return scheme
}

func newServer(mutate ...func(*mediav1alpha1.JellyfinServer)) *mediav1alpha1.JellyfinServer {
	server := &mediav1alpha1.JellyfinServer{
		ObjectMeta: metav1.ObjectMeta{
			Name:       "jellyfin",
			Namespace:  "media",
			Generation: 1,
		},
		Spec: mediav1alpha1.JellyfinServerSpec{
			Port: 8096,
		},
	}
	for _, m := range mutate {
		m(server)
	}
	return server
}

func newServerService(server *mediav1alpha1.JellyfinServer) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      server.Name,
			Namespace: server.Namespace,
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app.kubernetes.io/name": "jellyfin"},
		},
	}
}

// newReconciler wires a reconciler around the fake Kubernetes client and
// the in-memory supervisor fake.
func newReconciler(
	c client.Client,
	scheme *runtime.Scheme,
	supervisor pebble.Client,
	isLeader leadership.Checker,
) *JellyfinServerReconciler {
	return &JellyfinServerReconciler{
		Client:   c,
		Scheme:   scheme,
		Pebble:   func(*mediav1alpha1.JellyfinServer) pebble.Client { return supervisor },
		IsLeader: isLeader,
		State:    state.NewStore(c, scheme),
	}
}

func reconcileOnce(t *testing.T, r *JellyfinServerReconciler, server *mediav1alpha1.JellyfinServer) ctrl.Result {
	t.Helper()
	res, err := r.Reconcile(t.Context(), ctrl.Request{
		NamespacedName: types.NamespacedName{Name: server.Name, Namespace: server.Namespace},
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	return res
}

func getServer(t *testing.T, c client.Client, server *mediav1alpha1.JellyfinServer) *mediav1alpha1.JellyfinServer {
	t.Helper()
	got := &mediav1alpha1.JellyfinServer{}
	key := client.ObjectKey{Namespace: server.Namespace, Name: server.Name}
	if err := c.Get(t.Context(), key, got); err != nil {
		t.Fatalf("fetching server: %v", err)
	}
	return got
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		server *mediav1alpha1.JellyfinServer
		want   []Notification
	}{
		"first observation dispatches install then start": {
			server: newServer(),
			want:   []Notification{NotificationInstall, NotificationStart},
		},
		"generation drift dispatches upgrade": {
			server: newServer(func(s *mediav1alpha1.JellyfinServer) {
				s.Generation = 3
				s.Status.ObservedGeneration = 2
				s.Status.Phase = mediav1alpha1.PhaseActive
			}),
			want: []Notification{NotificationUpgrade},
		},
		"waiting phase dispatches container ready": {
			server: newServer(func(s *mediav1alpha1.JellyfinServer) {
				s.Status.ObservedGeneration = 1
				s.Status.Phase = mediav1alpha1.PhaseWaiting
			}),
			want: []Notification{NotificationContainerReady},
		},
		"steady state dispatches update status": {
			server: newServer(func(s *mediav1alpha1.JellyfinServer) {
				s.Status.ObservedGeneration = 1
				s.Status.Phase = mediav1alpha1.PhaseActive
			}),
			want: []Notification{NotificationUpdateStatus},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r := &JellyfinServerReconciler{}
			got := r.classify(tc.server)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("classify() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReconcileInstall(t *testing.T) {
	scheme := setupScheme(t)
	server := newServer(func(s *mediav1alpha1.JellyfinServer) {
		s.Spec.ExternalHostname = "media.example.com"
	})
	c := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(server, newServerService(server)).
		WithStatusSubresource(server).
		Build()
	supervisor := pebbletest.NewFake()
	r := newReconciler(c, scheme, supervisor, leadership.Always())

	res := reconcileOnce(t, r, server)
	if res.RequeueAfter != time.Minute {
		t.Errorf("RequeueAfter = %v, want %v", res.RequeueAfter, time.Minute)
	}

	// The empty plan forces a layer submission and a restart.
	if got := len(supervisor.AddLayerCalls()); got != 1 {
		t.Errorf("AddLayer calls = %d, want 1", got)
	}
	if got := len(supervisor.RestartCalls()); got != 1 {
		t.Errorf("Restart calls = %d, want 1", got)
	}

	got := getServer(t, c, server)
	if got.Status.Phase != mediav1alpha1.PhaseActive {
		t.Errorf("Phase = %q, want %q", got.Status.Phase, mediav1alpha1.PhaseActive)
	}
	if got.Status.ObservedGeneration != server.Generation {
		t.Errorf("ObservedGeneration = %d, want %d",
			got.Status.ObservedGeneration, server.Generation)
	}
	cond := meta.FindStatusCondition(got.Status.Conditions, conditionReady)
	if cond == nil || cond.Status != metav1.ConditionTrue {
		t.Errorf("Ready condition = %+v, want True", cond)
	}

	// Install patches the Service ports.
	svc := &corev1.Service{}
	if err := c.Get(t.Context(), client.ObjectKeyFromObject(newServerService(server)), svc); err != nil {
		t.Fatalf("fetching service: %v", err)
	}
	if len(svc.Spec.Ports) != 1 || svc.Spec.Ports[0].Port != 8096 {
		t.Errorf("service ports = %+v, want one port 8096", svc.Spec.Ports)
	}

	// Install publishes the Ingress under the external hostname.
	ing := ingressFor(t, c, server)
	if host := ing.Spec.Rules[0].Host; host != "media.example.com" {
		t.Errorf("ingress host = %q, want %q", host, "media.example.com")
	}

	// Install seeds the state ConfigMap with the instance registered.
	cm := &corev1.ConfigMap{}
	key := client.ObjectKey{Namespace: server.Namespace, Name: state.ConfigMapName(server.Name)}
	if err := c.Get(t.Context(), key, cm); err != nil {
		t.Fatalf("fetching state: %v", err)
	}
}

func TestReconcileWaitingOnSupervisor(t *testing.T) {
	scheme := setupScheme(t)
	server := newServer()
	c := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(server, newServerService(server)).
		WithStatusSubresource(server).
		Build()
	supervisor := pebbletest.NewFake()
	supervisor.Disconnect()
	r := newReconciler(c, scheme, supervisor, leadership.Always())

	reconcileOnce(t, r, server)

	got := getServer(t, c, server)
	if got.Status.Phase != mediav1alpha1.PhaseWaiting {
		t.Errorf("Phase = %q, want %q", got.Status.Phase, mediav1alpha1.PhaseWaiting)
	}
	if got.Status.Reason == "" {
		t.Error("Reason is empty, want waiting message")
	}
	if got := len(supervisor.AddLayerCalls()); got != 0 {
		t.Errorf("AddLayer calls = %d, want 0 while disconnected", got)
	}
}

func TestReconcileBlockedOnRestartFailure(t *testing.T) {
	scheme := setupScheme(t)
	server := newServer()
	c := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(server, newServerService(server)).
		WithStatusSubresource(server).
		Build()
	supervisor := pebbletest.NewFake()
	supervisor.OnRestart = func(string) error { return testutil.ErrInjected }
	r := newReconciler(c, scheme, supervisor, leadership.Always())

	reconcileOnce(t, r, server)

	got := getServer(t, c, server)
	if got.Status.Phase != mediav1alpha1.PhaseBlocked {
		t.Errorf("Phase = %q, want %q", got.Status.Phase, mediav1alpha1.PhaseBlocked)
	}
	cond := meta.FindStatusCondition(got.Status.Conditions, conditionReady)
	if cond == nil || cond.Status != metav1.ConditionFalse {
		t.Errorf("Ready condition = %+v, want False", cond)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	scheme := setupScheme(t)
	server := newServer()
	c := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(server, newServerService(server)).
		WithStatusSubresource(server).
		Build()
	supervisor := pebbletest.NewFake()
	r := newReconciler(c, scheme, supervisor, leadership.Always())

	for range 3 {
		reconcileOnce(t, r, server)
	}

	// Only the first pass changes anything; repeats observe the applied
	// layer and the running service and take no action.
	if got := len(supervisor.AddLayerCalls()); got != 1 {
		t.Errorf("AddLayer calls = %d, want 1 across repeated passes", got)
	}
	if got := len(supervisor.RestartCalls()); got != 1 {
		t.Errorf("Restart calls = %d, want 1 across repeated passes", got)
	}
}

func TestReconcileIgnoresMissingResource(t *testing.T) {
	scheme := setupScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).Build()
	r := newReconciler(c, scheme, pebbletest.NewFake(), leadership.Always())

	res, err := r.Reconcile(t.Context(), ctrl.Request{
		NamespacedName: types.NamespacedName{Name: "gone", Namespace: "media"},
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v, want nil for a deleted resource", err)
	}
	if res.RequeueAfter != 0 {
		t.Errorf("RequeueAfter = %v, want 0 for a deleted resource", res.RequeueAfter)
	}
}

func TestReconcileStatusUpdateFailure(t *testing.T) {
	scheme := setupScheme(t)
	server := newServer()
	base := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(server, newServerService(server)).
		WithStatusSubresource(server).
		Build()
	c := testutil.NewFakeClientWithFailures(base, &testutil.FailureConfig{
		OnStatusUpdate: testutil.FailOnObjectName("jellyfin", testutil.ErrInjected),
	})
	r := newReconciler(c, scheme, pebbletest.NewFake(), leadership.Always())

	_, err := r.Reconcile(t.Context(), ctrl.Request{
		NamespacedName: types.NamespacedName{Name: server.Name, Namespace: server.Namespace},
	})
	if err == nil {
		t.Fatal("Reconcile() error = nil, want injected status failure")
	}
}

func TestReconcileContainerReadyRestartsStoppedService(t *testing.T) {
	scheme := setupScheme(t)
	server := newServer(func(s *mediav1alpha1.JellyfinServer) {
		s.Status.ObservedGeneration = 1
		s.Status.Phase = mediav1alpha1.PhaseWaiting
	})
	c := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(server, newServerService(server)).
		WithStatusSubresource(server).
		Build()

	supervisor := pebbletest.NewFake()
	supervisor.SeedPlan(&pebble.Layer{Services: map[string]*pebble.Service{
		workload.ServiceName: workload.DesiredLayer(workload.Config{}).Services[workload.ServiceName],
	}})
	supervisor.SetStatus(workload.ServiceName, pebble.StatusInactive)
	r := newReconciler(c, scheme, supervisor, leadership.Always())

	reconcileOnce(t, r, server)

	if got := len(supervisor.RestartCalls()); got != 1 {
		t.Errorf("Restart calls = %d, want 1 for a stopped service", got)
	}
	got := getServer(t, c, server)
	if got.Status.Phase != mediav1alpha1.PhaseActive {
		t.Errorf("Phase = %q, want %q", got.Status.Phase, mediav1alpha1.PhaseActive)
	}
}
