package handlers

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/webhook"

	mediav1alpha1 "github.com/medialab/jellyfin-operator/api/v1alpha1"
	"github.com/medialab/jellyfin-operator/pkg/pebble"
	"github.com/medialab/jellyfin-operator/pkg/workload"
)

// +kubebuilder:webhook:path=/mutate-media-medialab-dev-v1alpha1-jellyfinserver,mutating=true,failurePolicy=fail,sideEffects=None,groups=media.medialab.dev,resources=jellyfinservers,verbs=create;update,versions=v1alpha1,name=mjellyfinserver.kb.io,admissionReviewVersions=v1

// JellyfinServerDefaulter materializes configuration defaults into the
// stored spec so reconciliation and users see the same values.
type JellyfinServerDefaulter struct{}

var _ webhook.CustomDefaulter = &JellyfinServerDefaulter{}

// NewJellyfinServerDefaulter creates a new defaulter handler.
func NewJellyfinServerDefaulter() *JellyfinServerDefaulter {
	return &JellyfinServerDefaulter{}
}

// Default implements webhook.CustomDefaulter.
func (d *JellyfinServerDefaulter) Default(_ context.Context, obj runtime.Object) error {
	server, ok := obj.(*mediav1alpha1.JellyfinServer)
	if !ok {
		return fmt.Errorf("expected JellyfinServer, got %T", obj)
	}

	if server.Spec.Port == 0 {
		server.Spec.Port = mediav1alpha1.DefaultPort
	}
	if server.Spec.DataDir == "" {
		server.Spec.DataDir = workload.DefaultDataDir
	}
	if server.Spec.CacheDir == "" {
		server.Spec.CacheDir = workload.DefaultCacheDir
	}
	if server.Spec.FFmpegPath == "" {
		server.Spec.FFmpegPath = workload.DefaultFFmpegPath
	}
	if server.Spec.PebbleSocket == "" {
		server.Spec.PebbleSocket = pebble.DefaultSocketPath
	}
	return nil
}
