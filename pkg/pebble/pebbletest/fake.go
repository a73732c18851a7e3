// Package pebbletest provides an in-memory fake of the pebble.Client
// contract for exercising convergence logic without a running daemon.
//
// The fake keeps a real plan and applies overlays with the same merge
// semantics as the daemon, so idempotency properties can be asserted
// against it. Failure hooks follow the same shape as the failure-injecting
// fake Kubernetes client in pkg/testutil.
package pebbletest

import (
	"context"
	"fmt"
	"sync"

	"github.com/medialab/jellyfin-operator/pkg/pebble"
)

// AddLayerCall records one AddLayer invocation.
type AddLayerCall struct {
	Label   string
	Layer   *pebble.Layer
	Combine bool
}

// Fake is an in-memory pebble.Client.
//
// The zero value is a disconnected supervisor with an empty plan; use
// Connect to bring it up. All methods are safe for concurrent use.
type Fake struct {
	mu        sync.Mutex
	connected bool
	plan      *pebble.Plan
	statuses  map[string]pebble.ServiceStatus

	addLayerCalls []AddLayerCall
	restartCalls  []string

	// OnCanConnect, when set, overrides the connectivity answer per call.
	// The argument is the number of prior CanConnect calls, letting tests
	// simulate a supervisor that dies between checks.
	OnCanConnect func(calls int) bool
	canConnects  int

	// OnAddLayer and OnRestart, when set, may fail the operation before
	// it is applied.
	OnAddLayer func(call AddLayerCall) error
	OnRestart  func(name string) error

	// OnPlan, when set, may fail plan reads.
	OnPlan func() error
}

var _ pebble.Client = &Fake{}

// NewFake returns a connected fake with an empty plan.
func NewFake() *Fake {
	f := &Fake{}
	f.Connect()
	return f
}

// Connect marks the supervisor reachable.
func (f *Fake) Connect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	if f.plan == nil {
		f.plan = &pebble.Plan{Services: map[string]*pebble.Service{}}
	}
	if f.statuses == nil {
		f.statuses = map[string]pebble.ServiceStatus{}
	}
}

// Disconnect marks the supervisor unreachable.
func (f *Fake) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

// SeedPlan merges a layer into the plan without recording an AddLayer
// call, for arranging pre-existing supervisor state in tests.
func (f *Fake) SeedPlan(layer *pebble.Layer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plan = f.plan.Merge(layer)
	for name := range layer.Services {
		if _, ok := f.statuses[name]; !ok {
			f.statuses[name] = pebble.StatusInactive
		}
	}
}

// SetStatus sets the reported runtime status for a declared service.
func (f *Fake) SetStatus(name string, status pebble.ServiceStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[name] = status
}

// AddLayerCalls returns every overlay submission seen so far.
func (f *Fake) AddLayerCalls() []AddLayerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AddLayerCall(nil), f.addLayerCalls...)
}

// RestartCalls returns the service names passed to Restart so far.
func (f *Fake) RestartCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.restartCalls...)
}

// CanConnect implements pebble.Client.
func (f *Fake) CanConnect(_ context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.canConnects
	f.canConnects++
	if f.OnCanConnect != nil {
		return f.OnCanConnect(calls)
	}
	return f.connected
}

// Plan implements pebble.Client.
func (f *Fake) Plan(_ context.Context) (*pebble.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil, fmt.Errorf("supervisor not reachable")
	}
	if f.OnPlan != nil {
		if err := f.OnPlan(); err != nil {
			return nil, err
		}
	}
	return f.plan.Merge(nil), nil
}

// AddLayer implements pebble.Client by merging the overlay into the plan.
func (f *Fake) AddLayer(_ context.Context, label string, layer *pebble.Layer, combine bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return fmt.Errorf("supervisor not reachable")
	}
	call := AddLayerCall{Label: label, Layer: layer, Combine: combine}
	if f.OnAddLayer != nil {
		if err := f.OnAddLayer(call); err != nil {
			return err
		}
	}
	f.addLayerCalls = append(f.addLayerCalls, call)
	f.plan = f.plan.Merge(layer)
	for name := range layer.Services {
		if _, ok := f.statuses[name]; !ok {
			f.statuses[name] = pebble.StatusInactive
		}
	}
	return nil
}

// Services implements pebble.Client.
func (f *Fake) Services(_ context.Context) (map[string]pebble.ServiceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil, fmt.Errorf("supervisor not reachable")
	}
	services := make(map[string]pebble.ServiceInfo, len(f.plan.Services))
	for name, svc := range f.plan.Services {
		services[name] = pebble.ServiceInfo{
			Name:    name,
			Startup: svc.Startup,
			Current: f.statuses[name],
		}
	}
	return services, nil
}

// Service implements pebble.Client.
func (f *Fake) Service(ctx context.Context, name string) (pebble.ServiceInfo, error) {
	services, err := f.Services(ctx)
	if err != nil {
		return pebble.ServiceInfo{}, err
	}
	info, ok := services[name]
	if !ok {
		return pebble.ServiceInfo{}, fmt.Errorf("%w: %s", pebble.ErrServiceNotFound, name)
	}
	return info, nil
}

// Restart implements pebble.Client. A successful restart reports the
// service active on subsequent listings.
func (f *Fake) Restart(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return fmt.Errorf("supervisor not reachable")
	}
	if f.OnRestart != nil {
		if err := f.OnRestart(name); err != nil {
			return err
		}
	}
	if _, ok := f.plan.Services[name]; !ok {
		return fmt.Errorf("%w: %s", pebble.ErrServiceNotFound, name)
	}
	f.restartCalls = append(f.restartCalls, name)
	f.statuses[name] = pebble.StatusActive
	return nil
}
