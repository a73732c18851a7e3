package workload

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/medialab/jellyfin-operator/pkg/pebble"
)

// Reconciler converges the Jellyfin process layer against the supervisor.
// It holds no mutable state between passes; every pass recomputes the
// desired layer and reads the applied plan fresh.
type Reconciler struct {
	client pebble.Client
	config Config
	log    logr.Logger
}

// New returns a Reconciler running against the given supervisor client.
func New(client pebble.Client, config Config, log logr.Logger) *Reconciler {
	return &Reconciler{
		client: client,
		config: config.withDefaults(),
		log:    log,
	}
}

// Reconcile performs one convergence pass and maps its outcome to the
// three-valued status surface:
//   - supervisor unreachable -> waiting, with no further side effects
//   - restart failed -> blocked
//   - otherwise -> active
//
// Any other backend error aborts the pass and is returned to the caller,
// whose notification cadence provides the retry.
func (r *Reconciler) Reconcile(ctx context.Context) (Status, error) {
	if !r.client.CanConnect(ctx) {
		return Waiting("waiting for pod startup to complete"), nil
	}

	configChanged := r.updateConfig()

	layerChanged, err := r.updateLayer(ctx)
	if err != nil {
		return Status{}, err
	}

	running, err := r.serviceRunning(ctx)
	if err != nil {
		return Status{}, err
	}

	// Any one of the three conditions alone justifies a restart;
	// missing one would leave the pass converged on paper only.
	if layerChanged || configChanged || !running {
		if err := r.restartService(ctx); err != nil {
			r.log.Error(err, "Failed to restart service", "service", ServiceName)
			return Blocked("service restart failed"), nil
		}
	}

	return Active(), nil
}

// updateConfig will diff the rendered Jellyfin configuration file against
// the stored hash once real config options exist. There are no dynamic
// config inputs today, so it reports no change.
func (r *Reconciler) updateConfig() bool {
	return false
}

// updateLayer submits the desired layer as an overlay when the named
// service is absent from the applied plan or its applied definition
// differs from the desired one. It reports whether a submission happened.
func (r *Reconciler) updateLayer(ctx context.Context) (bool, error) {
	desired := DesiredLayer(r.config)

	plan, err := r.client.Plan(ctx)
	if err != nil {
		return false, fmt.Errorf("fetching applied plan: %w", err)
	}

	applied := plan.Service(ServiceName)
	if applied != nil && applied.Equal(desired.Services[ServiceName]) {
		return false, nil
	}

	if err := r.client.AddLayer(ctx, LayerLabel, desired, true); err != nil {
		return false, fmt.Errorf("submitting layer overlay: %w", err)
	}
	r.log.Info("Submitted layer overlay", "label", LayerLabel)
	return true, nil
}

// serviceRunning reports whether the managed service is currently active.
// A service the supervisor does not know about is simply not running.
func (r *Reconciler) serviceRunning(ctx context.Context) (bool, error) {
	info, err := r.client.Service(ctx, ServiceName)
	if errors.Is(err, pebble.ErrServiceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying service state: %w", err)
	}
	return info.IsRunning(), nil
}

// restartService issues a restart of the managed service. Connectivity is
// re-checked because the supervisor may have gone away since the pass
// began, and the service must be known to the supervisor before a restart
// is requested; asking for a restart of an undeclared service is a
// different failure than an unreachable backend.
func (r *Reconciler) restartService(ctx context.Context) error {
	r.log.Info("Restarting service", "service", ServiceName)

	if !r.client.CanConnect(ctx) {
		return errors.New("container is not ready")
	}

	services, err := r.client.Services(ctx)
	if err != nil {
		return fmt.Errorf("listing services: %w", err)
	}
	if _, ok := services[ServiceName]; !ok {
		return fmt.Errorf("%w: %s", pebble.ErrServiceNotFound, ServiceName)
	}

	if err := r.client.Restart(ctx, ServiceName); err != nil {
		return fmt.Errorf("restarting %s: %w", ServiceName, err)
	}
	return nil
}
