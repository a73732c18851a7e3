// Package webhook wires the admission control layer into the manager: it
// bootstraps TLS certificates when self-signed operation is requested and
// registers the JellyfinServer defaulting and validating handlers on the
// webhook server.
package webhook

import (
	"context"
	"fmt"

	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	mediav1alpha1 "github.com/medialab/jellyfin-operator/api/v1alpha1"
	"github.com/medialab/jellyfin-operator/pkg/webhook/cert"
	"github.com/medialab/jellyfin-operator/pkg/webhook/handlers"
)

// MutatePath and ValidatePath are the admission endpoints. They must match
// the paths in the deployed webhook configurations.
const (
	MutatePath   = "/mutate-media-medialab-dev-v1alpha1-jellyfinserver"
	ValidatePath = "/validate-media-medialab-dev-v1alpha1-jellyfinserver"
)

// CertStrategySelfSigned bootstraps certificates in-process; anything else
// expects externally provisioned certs in CertDir.
const CertStrategySelfSigned = "self-signed"

// Options contains the configuration required to set up the webhook server.
type Options struct {
	// Enable indicates whether to start the webhook server.
	Enable bool
	// CertStrategy selects certificate management ("external" or "self-signed").
	CertStrategy string
	// CertDir is the directory certificates are read from or written to.
	CertDir string
	// Namespace is the operator's namespace (required for self-signed).
	Namespace string
	// ServiceName is the operator's webhook Service (required for self-signed).
	ServiceName string
}

// Setup configures the webhook server and registers the admission
// handlers with the manager.
func Setup(mgr ctrl.Manager, opts Options) error {
	if !opts.Enable {
		return nil
	}

	logger := mgr.GetLogger().WithName("webhook-setup")
	logger.Info("Setting up webhook server", "strategy", opts.CertStrategy)

	// Self-signed certs must exist and be injected into the webhook
	// configurations before the manager starts the server.
	if opts.CertStrategy == CertStrategySelfSigned {
		certMgr := cert.NewManager(mgr.GetClient(), cert.Options{
			Namespace:   opts.Namespace,
			ServiceName: opts.ServiceName,
			CertDir:     opts.CertDir,
		})
		if err := certMgr.EnsureCerts(context.Background()); err != nil {
			return fmt.Errorf("bootstrapping self-signed certificates: %w", err)
		}
	}

	server := mgr.GetWebhookServer()
	scheme := mgr.GetScheme()

	server.Register(MutatePath, admission.WithCustomDefaulter(
		scheme, &mediav1alpha1.JellyfinServer{}, handlers.NewJellyfinServerDefaulter(),
	))
	server.Register(ValidatePath, admission.WithCustomValidator(
		scheme, &mediav1alpha1.JellyfinServer{}, handlers.NewJellyfinServerValidator(),
	))
	return nil
}
