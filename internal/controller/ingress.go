package controller

import (
	"context"
	"fmt"

	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	mediav1alpha1 "github.com/medialab/jellyfin-operator/api/v1alpha1"
	"github.com/medialab/jellyfin-operator/pkg/metadata"
)

// ingressComponent is the component label value for ingress resources.
const ingressComponent = "ingress"

// buildIngress assembles the desired Ingress routing external traffic for
// the instance's hostname to its Service.
func (r *JellyfinServerReconciler) buildIngress(
	server *mediav1alpha1.JellyfinServer,
) (*networkingv1.Ingress, error) {
	pathType := networkingv1.PathTypePrefix

	ing := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{
			Name:        server.Name,
			Namespace:   server.Namespace,
			Labels:      metadata.BuildStandardLabels(server.Name, ingressComponent),
			Annotations: server.Spec.IngressAnnotations,
		},
		Spec: networkingv1.IngressSpec{
			IngressClassName: server.Spec.IngressClassName,
			Rules: []networkingv1.IngressRule{{
				Host: server.Hostname(),
				IngressRuleValue: networkingv1.IngressRuleValue{
					HTTP: &networkingv1.HTTPIngressRuleValue{
						Paths: []networkingv1.HTTPIngressPath{{
							Path:     "/",
							PathType: &pathType,
							Backend: networkingv1.IngressBackend{
								Service: &networkingv1.IngressServiceBackend{
									Name: server.Name,
									Port: networkingv1.ServiceBackendPort{
										Number: server.Spec.Port,
									},
								},
							},
						}},
					},
				},
			}},
		},
	}
	if err := ctrl.SetControllerReference(server, ing, r.Scheme); err != nil {
		return nil, fmt.Errorf("failed to set controller reference: %w", err)
	}
	return ing, nil
}

// ensureIngress creates the instance Ingress, or updates it in place when
// its routing drifted from the desired shape.
func (r *JellyfinServerReconciler) ensureIngress(
	ctx context.Context,
	server *mediav1alpha1.JellyfinServer,
) error {
	logger := log.FromContext(ctx)

	desired, err := r.buildIngress(server)
	if err != nil {
		return err
	}

	existing := &networkingv1.Ingress{}
	key := client.ObjectKey{Namespace: server.Namespace, Name: server.Name}
	err = r.Get(ctx, key, existing)
	if apierrors.IsNotFound(err) {
		logger.Info("Creating ingress", "host", server.Hostname())
		if err := r.Create(ctx, desired); err != nil {
			return fmt.Errorf("creating ingress: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetching ingress: %w", err)
	}

	existing.Labels = desired.Labels
	existing.Annotations = desired.Annotations
	existing.Spec = desired.Spec
	if err := r.Update(ctx, existing); err != nil {
		return fmt.Errorf("updating ingress: %w", err)
	}
	return nil
}
