package cert

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	admissionregistrationv1 "k8s.io/api/admissionregistration/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func newManager(t *testing.T, objs ...client.Object) (*Manager, client.Client) {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		t.Fatalf("adding scheme: %v", err)
	}
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(objs...).Build()
	m := NewManager(c, Options{
		Namespace:   "media",
		ServiceName: "jellyfin-operator-webhook",
		CertDir:     t.TempDir(),
	})
	m.rng = rand.Reader
	return m, c
}

func webhookConfigFor(serviceName, namespace string) *admissionregistrationv1.MutatingWebhookConfiguration {
	return &admissionregistrationv1.MutatingWebhookConfiguration{
		ObjectMeta: metav1.ObjectMeta{Name: "jellyfin-operator-mutating"},
		Webhooks: []admissionregistrationv1.MutatingWebhook{{
			Name: "mjellyfinserver.kb.io",
			ClientConfig: admissionregistrationv1.WebhookClientConfig{
				Service: &admissionregistrationv1.ServiceReference{
					Name:      serviceName,
					Namespace: namespace,
				},
			},
		}},
	}
}

func TestEnsureCertsBootstrapsEverything(t *testing.T) {
	m, c := newManager(t, webhookConfigFor("jellyfin-operator-webhook", "media"))

	if err := m.EnsureCerts(t.Context()); err != nil {
		t.Fatalf("EnsureCerts() error = %v", err)
	}

	// The Secret holds the full set of artifacts.
	secret := &corev1.Secret{}
	key := client.ObjectKey{Namespace: "media", Name: SecretName}
	if err := c.Get(t.Context(), key, secret); err != nil {
		t.Fatalf("fetching cert secret: %v", err)
	}
	for _, k := range []string{"tls.crt", "tls.key", "ca.crt", "ca.key"} {
		if len(secret.Data[k]) == 0 {
			t.Errorf("secret key %q is empty", k)
		}
	}

	// The serving pair landed on disk for the webhook server.
	for _, f := range []string{certFileName, keyFileName} {
		if _, err := os.Stat(filepath.Join(m.Options.CertDir, f)); err != nil {
			t.Errorf("cert file %s: %v", f, err)
		}
	}

	// The webhook configuration got the CA bundle injected.
	cfg := &admissionregistrationv1.MutatingWebhookConfiguration{}
	if err := c.Get(t.Context(), client.ObjectKey{Name: "jellyfin-operator-mutating"}, cfg); err != nil {
		t.Fatalf("fetching webhook config: %v", err)
	}
	if len(cfg.Webhooks[0].ClientConfig.CABundle) == 0 {
		t.Error("CA bundle was not injected into the webhook configuration")
	}
}

func TestEnsureCertsReusesValidSecret(t *testing.T) {
	m, c := newManager(t)

	if err := m.EnsureCerts(t.Context()); err != nil {
		t.Fatalf("first EnsureCerts() error = %v", err)
	}
	first := &corev1.Secret{}
	key := client.ObjectKey{Namespace: "media", Name: SecretName}
	if err := c.Get(t.Context(), key, first); err != nil {
		t.Fatalf("fetching cert secret: %v", err)
	}

	if err := m.EnsureCerts(t.Context()); err != nil {
		t.Fatalf("second EnsureCerts() error = %v", err)
	}
	second := &corev1.Secret{}
	if err := c.Get(t.Context(), key, second); err != nil {
		t.Fatalf("re-fetching cert secret: %v", err)
	}

	if string(first.Data["tls.crt"]) != string(second.Data["tls.crt"]) {
		t.Error("serving cert was rotated although still valid")
	}
}

func TestEnsureCertsIgnoresForeignWebhookConfigs(t *testing.T) {
	foreign := webhookConfigFor("someone-else", "media")
	foreign.Name = "foreign-mutating"
	m, c := newManager(t, foreign)

	if err := m.EnsureCerts(t.Context()); err != nil {
		t.Fatalf("EnsureCerts() error = %v", err)
	}

	cfg := &admissionregistrationv1.MutatingWebhookConfiguration{}
	if err := c.Get(t.Context(), client.ObjectKey{Name: "foreign-mutating"}, cfg); err != nil {
		t.Fatalf("fetching webhook config: %v", err)
	}
	if len(cfg.Webhooks[0].ClientConfig.CABundle) != 0 {
		t.Error("CA bundle was injected into a webhook configuration of another service")
	}
}
