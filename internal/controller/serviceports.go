package controller

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	mediav1alpha1 "github.com/medialab/jellyfin-operator/api/v1alpha1"
	"github.com/medialab/jellyfin-operator/pkg/monitoring"
)

// httpPortName is the name of the HTTP port on the instance Service.
const httpPortName = "jellyfin-http"

// PortMapping declares one port the instance Service exposes.
type PortMapping struct {
	// Name identifies the port within the Service spec.
	Name string

	// TargetPort is the container port traffic is forwarded to.
	TargetPort int32

	// PublishedPort is the port the Service listens on.
	PublishedPort int32
}

// PatchFailedError reports a failed Service port patch. Callers treat it
// as non-fatal: networking is degraded but the lifecycle continues.
type PatchFailedError struct {
	Service string
	Err     error
}

func (e *PatchFailedError) Error() string {
	return fmt.Sprintf("patching ports on service %q: %v", e.Service, e.Err)
}

func (e *PatchFailedError) Unwrap() error { return e.Err }

// desiredPorts returns the port mappings the instance Service should
// carry. HTTP is published on the configured web port, targeting the same
// port in the container.
func desiredPorts(server *mediav1alpha1.JellyfinServer) []PortMapping {
	return []PortMapping{{
		Name:          httpPortName,
		TargetPort:    server.Spec.Port,
		PublishedPort: server.Spec.Port,
	}}
}

// patchKubernetesService opens the instance's ports on the Service that
// fronts it. Only the leader replica performs the patch; followers return
// immediately so concurrent replicas never race on the same Service.
func (r *JellyfinServerReconciler) patchKubernetesService(
	ctx context.Context,
	server *mediav1alpha1.JellyfinServer,
) error {
	logger := log.FromContext(ctx)

	if !r.IsLeader() {
		logger.V(1).Info("Skipping port patch on non-leader replica")
		return nil
	}

	err := r.setPorts(ctx, server, desiredPorts(server))
	monitoring.RecordPortPatch(server.Name, server.Namespace, err)
	if err != nil {
		return &PatchFailedError{Service: server.Name, Err: err}
	}
	return nil
}

// setPorts updates the Service's port list to exactly the given mappings.
// A Service already carrying them is left untouched, so repeated patches
// with unchanged configuration cause no writes.
func (r *JellyfinServerReconciler) setPorts(
	ctx context.Context,
	server *mediav1alpha1.JellyfinServer,
	ports []PortMapping,
) error {
	svc := &corev1.Service{}
	key := client.ObjectKey{Namespace: server.Namespace, Name: server.Name}
	if err := r.Get(ctx, key, svc); err != nil {
		return err
	}

	desired := make([]corev1.ServicePort, 0, len(ports))
	for _, p := range ports {
		desired = append(desired, corev1.ServicePort{
			Name:       p.Name,
			Protocol:   corev1.ProtocolTCP,
			Port:       p.PublishedPort,
			TargetPort: intstr.FromInt32(p.TargetPort),
		})
	}

	if servicePortsEqual(svc.Spec.Ports, desired) {
		return nil
	}

	svc.Spec.Ports = desired
	for k, v := range server.Spec.ServiceAnnotations {
		if svc.Annotations == nil {
			svc.Annotations = map[string]string{}
		}
		svc.Annotations[k] = v
	}
	return r.Update(ctx, svc)
}

func servicePortsEqual(current, desired []corev1.ServicePort) bool {
	if len(current) != len(desired) {
		return false
	}
	for i := range desired {
		c, d := current[i], desired[i]
		if c.Name != d.Name || c.Protocol != d.Protocol ||
			c.Port != d.Port || c.TargetPort != d.TargetPort {
			return false
		}
	}
	return true
}
