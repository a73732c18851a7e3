package cert

// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=admissionregistration.k8s.io,resources=mutatingwebhookconfigurations,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups=admissionregistration.k8s.io,resources=validatingwebhookconfigurations,verbs=get;list;watch;update;patch

import (
	"context"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	admissionregistrationv1 "k8s.io/api/admissionregistration/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	// SecretName is the Secret the generated certs persist in.
	SecretName = "jellyfin-operator-webhook-certs"

	// certFileName and keyFileName are the file names controller-runtime's
	// webhook server expects in its cert directory.
	certFileName = "tls.crt"
	keyFileName  = "tls.key"

	// rotationThreshold is the buffer before expiry at which the serving
	// certificate is regenerated.
	rotationThreshold = 30 * 24 * time.Hour
)

// Options configures the certificate manager.
type Options struct {
	// Namespace the operator and its webhook Service run in.
	Namespace string

	// ServiceName is the Service the webhook configurations dial.
	ServiceName string

	// CertDir is where the serving pair is written for the server.
	CertDir string
}

// Manager handles the lifecycle of the webhook certificates.
type Manager struct {
	Client  client.Client
	Options Options

	// rng is the randomness source, crypto/rand.Reader outside tests.
	rng io.Reader
}

// NewManager creates a certificate manager.
func NewManager(c client.Client, opts Options) *Manager {
	return &Manager{Client: c, Options: opts, rng: rand.Reader}
}

// EnsureCerts makes sure a valid serving pair exists in the Secret,
// writes it to disk, and injects the CA bundle into the webhook
// configurations targeting the operator's Service. Call it before the
// manager starts the webhook server.
func (m *Manager) EnsureCerts(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("webhook-cert-manager")

	artifacts, err := m.ensureSecret(ctx)
	if err != nil {
		return fmt.Errorf("ensuring cert secret: %w", err)
	}
	if err := m.writeToDisk(artifacts); err != nil {
		return fmt.Errorf("writing certs to disk: %w", err)
	}
	if err := m.injectCABundle(ctx, artifacts.CACertPEM); err != nil {
		return fmt.Errorf("injecting CA bundle: %w", err)
	}

	logger.Info("Webhook certificates configured", "service", m.Options.ServiceName)
	return nil
}

func (m *Manager) dnsNames() (string, []string) {
	commonName := fmt.Sprintf("%s.%s.svc", m.Options.ServiceName, m.Options.Namespace)
	return commonName, []string{
		m.Options.ServiceName,
		fmt.Sprintf("%s.%s", m.Options.ServiceName, m.Options.Namespace),
		commonName,
		commonName + ".cluster.local",
	}
}

func (m *Manager) ensureSecret(ctx context.Context) (*Artifacts, error) {
	logger := log.FromContext(ctx)

	secret := &corev1.Secret{}
	key := types.NamespacedName{Name: SecretName, Namespace: m.Options.Namespace}
	err := m.Client.Get(ctx, key, secret)
	found := err == nil
	if err != nil && !apierrors.IsNotFound(err) {
		return nil, err
	}

	if found {
		artifacts := &Artifacts{
			CACertPEM:      secret.Data["ca.crt"],
			CAKeyPEM:       secret.Data["ca.key"],
			ServingCertPEM: secret.Data[certFileName],
			ServingKeyPEM:  secret.Data[keyFileName],
		}
		if m.stillValid(artifacts) {
			return artifacts, nil
		}
		logger.Info("Webhook certificates missing or expiring, rotating")
	}

	commonName, names := m.dnsNames()
	artifacts, err := Generate(m.rng, commonName, names)
	if err != nil {
		return nil, err
	}

	secret.ObjectMeta = metav1.ObjectMeta{Name: SecretName, Namespace: m.Options.Namespace}
	secret.Type = corev1.SecretTypeTLS
	secret.Data = map[string][]byte{
		certFileName: artifacts.ServingCertPEM,
		keyFileName:  artifacts.ServingKeyPEM,
		"ca.crt":     artifacts.CACertPEM,
		"ca.key":     artifacts.CAKeyPEM,
	}

	if found {
		if err := m.Client.Update(ctx, secret); err != nil {
			return nil, fmt.Errorf("updating cert secret: %w", err)
		}
	} else {
		if err := m.Client.Create(ctx, secret); err != nil {
			return nil, fmt.Errorf("creating cert secret: %w", err)
		}
	}
	return artifacts, nil
}

// stillValid reports whether the stored serving certificate can carry the
// webhook past the rotation threshold for the current Service identity.
func (m *Manager) stillValid(a *Artifacts) bool {
	if len(a.ServingCertPEM) == 0 || len(a.ServingKeyPEM) == 0 || len(a.CACertPEM) == 0 {
		return false
	}
	block, _ := pem.Decode(a.ServingCertPEM)
	if block == nil {
		return false
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return false
	}
	if time.Now().Add(rotationThreshold).After(cert.NotAfter) {
		return false
	}
	commonName, _ := m.dnsNames()
	return cert.Subject.CommonName == commonName
}

func (m *Manager) writeToDisk(a *Artifacts) error {
	if err := os.MkdirAll(m.Options.CertDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(m.Options.CertDir, certFileName), a.ServingCertPEM, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.Options.CertDir, keyFileName), a.ServingKeyPEM, 0o600)
}

// injectCABundle stamps the CA onto every webhook configuration whose
// client config dials the operator's Service.
func (m *Manager) injectCABundle(ctx context.Context, caBundle []byte) error {
	mutating := &admissionregistrationv1.MutatingWebhookConfigurationList{}
	if err := m.Client.List(ctx, mutating); err != nil {
		return err
	}
	for i := range mutating.Items {
		cfg := &mutating.Items[i]
		updated := false
		for j := range cfg.Webhooks {
			if !m.targetsService(cfg.Webhooks[j].ClientConfig) {
				continue
			}
			if string(cfg.Webhooks[j].ClientConfig.CABundle) != string(caBundle) {
				cfg.Webhooks[j].ClientConfig.CABundle = caBundle
				updated = true
			}
		}
		if updated {
			if err := m.Client.Update(ctx, cfg); err != nil {
				return err
			}
		}
	}

	validating := &admissionregistrationv1.ValidatingWebhookConfigurationList{}
	if err := m.Client.List(ctx, validating); err != nil {
		return err
	}
	for i := range validating.Items {
		cfg := &validating.Items[i]
		updated := false
		for j := range cfg.Webhooks {
			if !m.targetsService(cfg.Webhooks[j].ClientConfig) {
				continue
			}
			if string(cfg.Webhooks[j].ClientConfig.CABundle) != string(caBundle) {
				cfg.Webhooks[j].ClientConfig.CABundle = caBundle
				updated = true
			}
		}
		if updated {
			if err := m.Client.Update(ctx, cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) targetsService(cc admissionregistrationv1.WebhookClientConfig) bool {
	return cc.Service != nil &&
		cc.Service.Name == m.Options.ServiceName &&
		cc.Service.Namespace == m.Options.Namespace
}
