package handlers

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	mediav1alpha1 "github.com/medialab/jellyfin-operator/api/v1alpha1"
)

// +kubebuilder:webhook:path=/validate-media-medialab-dev-v1alpha1-jellyfinserver,mutating=false,failurePolicy=fail,sideEffects=None,groups=media.medialab.dev,resources=jellyfinservers,verbs=create;update,versions=v1alpha1,name=vjellyfinserver.kb.io,admissionReviewVersions=v1

// JellyfinServerValidator validates Create and Update events for
// JellyfinServers.
type JellyfinServerValidator struct{}

var _ webhook.CustomValidator = &JellyfinServerValidator{}

// NewJellyfinServerValidator creates a new validator for JellyfinServers.
func NewJellyfinServerValidator() *JellyfinServerValidator {
	return &JellyfinServerValidator{}
}

func (v *JellyfinServerValidator) ValidateCreate(
	ctx context.Context,
	obj runtime.Object,
) (admission.Warnings, error) {
	return v.validate(obj)
}

func (v *JellyfinServerValidator) ValidateUpdate(
	ctx context.Context,
	oldObj, newObj runtime.Object,
) (admission.Warnings, error) {
	return v.validate(newObj)
}

func (v *JellyfinServerValidator) ValidateDelete(
	ctx context.Context,
	obj runtime.Object,
) (admission.Warnings, error) {
	return nil, nil
}

func (v *JellyfinServerValidator) validate(obj runtime.Object) (admission.Warnings, error) {
	server, ok := obj.(*mediav1alpha1.JellyfinServer)
	if !ok {
		return nil, fmt.Errorf("expected JellyfinServer, got %T", obj)
	}

	if p := server.Spec.Port; p != 0 && (p < 1 || p > 65535) {
		return nil, fmt.Errorf("port %d is outside 1-65535", p)
	}
	if h := server.Spec.ExternalHostname; strings.ContainsAny(h, "/: ") {
		return nil, fmt.Errorf("externalHostname %q must be a bare hostname", h)
	}
	for field, dir := range map[string]string{
		"dataDir":    server.Spec.DataDir,
		"cacheDir":   server.Spec.CacheDir,
		"ffmpegPath": server.Spec.FFmpegPath,
	} {
		if dir != "" && !strings.HasPrefix(dir, "/") {
			return nil, fmt.Errorf("%s %q must be an absolute path", field, dir)
		}
	}
	return nil, nil
}
