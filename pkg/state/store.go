// Package state persists the small key-value state a JellyfinServer
// instance carries across its deployed lifetime: the server registry and
// the last-applied configuration hash.
//
// State lives in a ConfigMap owned by the JellyfinServer resource, so it
// survives operator restarts and is garbage-collected with the instance.
package state

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	mediav1alpha1 "github.com/medialab/jellyfin-operator/api/v1alpha1"
	"github.com/medialab/jellyfin-operator/pkg/metadata"
)

// ComponentName is the component label value for state resources.
const ComponentName = "state"

// dataKey is the ConfigMap key the serialized state lives under.
const dataKey = "state"

// State is the persisted per-instance state.
//
// ConfigHash is reserved for configuration diffing and is written with
// its empty default only; no read path consumes it yet.
type State struct {
	// Servers maps known server unit names to their addresses.
	Servers map[string]string `json:"servers"`

	// ConfigHash is the hash of the last applied configuration file.
	ConfigHash string `json:"configHash,omitempty"`
}

// NewState returns the initialization defaults.
func NewState() *State {
	return &State{Servers: map[string]string{}}
}

// ConfigMapName returns the name of the state ConfigMap for an instance.
func ConfigMapName(serverName string) string {
	return serverName + "-state"
}

// Store loads and saves instance state.
type Store struct {
	Client client.Client
	Scheme *runtime.Scheme
}

// NewStore returns a Store backed by the given client.
func NewStore(c client.Client, scheme *runtime.Scheme) *Store {
	return &Store{Client: c, Scheme: scheme}
}

// Load returns the persisted state for the instance, creating the backing
// ConfigMap with empty defaults the first time it is asked for.
func (s *Store) Load(ctx context.Context, server *mediav1alpha1.JellyfinServer) (*State, error) {
	cm := &corev1.ConfigMap{}
	key := client.ObjectKey{Namespace: server.Namespace, Name: ConfigMapName(server.Name)}
	err := s.Client.Get(ctx, key, cm)
	if apierrors.IsNotFound(err) {
		st := NewState()
		cm, err := s.buildConfigMap(server, st)
		if err != nil {
			return nil, err
		}
		if err := s.Client.Create(ctx, cm); err != nil {
			return nil, fmt.Errorf("initializing state: %w", err)
		}
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	st := NewState()
	if raw, ok := cm.Data[dataKey]; ok {
		if err := json.Unmarshal([]byte(raw), st); err != nil {
			return nil, fmt.Errorf("decoding state: %w", err)
		}
	}
	if st.Servers == nil {
		st.Servers = map[string]string{}
	}
	return st, nil
}

// Save persists the state. Saving an unchanged state is a no-op.
func (s *Store) Save(ctx context.Context, server *mediav1alpha1.JellyfinServer, st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	cm := &corev1.ConfigMap{}
	key := client.ObjectKey{Namespace: server.Namespace, Name: ConfigMapName(server.Name)}
	err = s.Client.Get(ctx, key, cm)
	if apierrors.IsNotFound(err) {
		desired, err := s.buildConfigMap(server, st)
		if err != nil {
			return err
		}
		if err := s.Client.Create(ctx, desired); err != nil {
			return fmt.Errorf("saving state: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("saving state: %w", err)
	}

	if cm.Data[dataKey] == string(raw) {
		return nil
	}
	if cm.Data == nil {
		cm.Data = map[string]string{}
	}
	cm.Data[dataKey] = string(raw)
	if err := s.Client.Update(ctx, cm); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

func (s *Store) buildConfigMap(server *mediav1alpha1.JellyfinServer, st *State) (*corev1.ConfigMap, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ConfigMapName(server.Name),
			Namespace: server.Namespace,
			Labels:    metadata.BuildStandardLabels(server.Name, ComponentName),
		},
		Data: map[string]string{dataKey: string(raw)},
	}
	if err := ctrl.SetControllerReference(server, cm, s.Scheme); err != nil {
		return nil, fmt.Errorf("failed to set controller reference: %w", err)
	}
	return cm, nil
}
