/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Phase summarizes the outcome of the last convergence pass for a
// JellyfinServer, mirroring the three-valued status surface the platform
// displays.
// +kubebuilder:validation:Enum=Active;Blocked;Waiting
type Phase string

const (
	// PhaseActive means the desired process layer is applied and the
	// Jellyfin service is running.
	PhaseActive Phase = "Active"

	// PhaseBlocked means the last convergence pass failed in a way that
	// needs attention, typically a failed service restart.
	PhaseBlocked Phase = "Blocked"

	// PhaseWaiting means the workload's process supervisor was not yet
	// reachable; the pass will be retried on the next notification.
	PhaseWaiting Phase = "Waiting"
)

// DefaultPort is the HTTP port Jellyfin listens on unless overridden.
const DefaultPort int32 = 8096

// JellyfinServerSpec defines the desired state of JellyfinServer.
type JellyfinServerSpec struct {
	// ExternalHostname is the hostname under which the instance is
	// published through the Ingress. Defaults to the resource name.
	// +kubebuilder:validation:MaxLength=253
	// +optional
	ExternalHostname string `json:"externalHostname,omitempty"`

	// Port is the HTTP port Jellyfin listens on inside the workload
	// container. The Service and Ingress are kept pointing at this port.
	// +kubebuilder:validation:Minimum=1
	// +kubebuilder:validation:Maximum=65535
	// +kubebuilder:default=8096
	// +optional
	Port int32 `json:"port,omitempty"`

	// DataDir is Jellyfin's configuration directory inside the container.
	// +kubebuilder:default="/config"
	// +optional
	DataDir string `json:"dataDir,omitempty"`

	// CacheDir is Jellyfin's cache directory inside the container.
	// +kubebuilder:default="/cache"
	// +optional
	CacheDir string `json:"cacheDir,omitempty"`

	// FFmpegPath is the path of the ffmpeg binary handed to Jellyfin.
	// +kubebuilder:default="/usr/lib/jellyfin-ffmpeg/ffmpeg"
	// +optional
	FFmpegPath string `json:"ffmpegPath,omitempty"`

	// PebbleSocket is the path of the Pebble API socket shared with the
	// workload container. When empty the operator falls back to Pebble's
	// default socket location.
	// +kubebuilder:validation:MaxLength=253
	// +optional
	PebbleSocket string `json:"pebbleSocket,omitempty"`

	// ServiceAnnotations are annotations to add to the patched Service.
	// +optional
	ServiceAnnotations map[string]string `json:"serviceAnnotations,omitempty"`

	// IngressAnnotations are annotations to add to the published Ingress.
	// +optional
	IngressAnnotations map[string]string `json:"ingressAnnotations,omitempty"`

	// IngressClassName selects the ingress controller publishing the
	// instance.
	// +optional
	IngressClassName *string `json:"ingressClassName,omitempty"`
}

// JellyfinServerStatus defines the observed state of JellyfinServer.
type JellyfinServerStatus struct {
	// Phase is the outcome of the last convergence pass.
	// +optional
	Phase Phase `json:"phase,omitempty"`

	// Reason carries the operator-facing message for Blocked and Waiting
	// phases.
	// +optional
	Reason string `json:"reason,omitempty"`

	// ObservedGeneration reflects the generation of the most recently
	// observed JellyfinServer spec.
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// Conditions represent the latest available observations of the
	// server's state.
	// +listType=map
	// +listMapKey=type
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Hostname",type=string,JSONPath=`.spec.externalHostname`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// JellyfinServer is the Schema for the jellyfinservers API.
type JellyfinServer struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   JellyfinServerSpec   `json:"spec,omitempty"`
	Status JellyfinServerStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// JellyfinServerList contains a list of JellyfinServer.
type JellyfinServerList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []JellyfinServer `json:"items"`
}

// Hostname returns the external hostname for the instance, defaulting to
// the resource name so the published hostname corresponds to the deployed
// application name.
func (s *JellyfinServer) Hostname() string {
	if s.Spec.ExternalHostname != "" {
		return s.Spec.ExternalHostname
	}
	return s.Name
}

func init() {
	SchemeBuilder.Register(&JellyfinServer{}, &JellyfinServerList{})
}
