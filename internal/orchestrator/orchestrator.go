// Package orchestrator owns the reconcile loop: poll the registry, diff
// the topology against what was last applied, and rewrite + reload the
// haproxy configuration when they differ.
package orchestrator

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	syncerrors "github.com/mir00r/haproxy-sync/internal/errors"
	"github.com/mir00r/haproxy-sync/internal/registry"
	"github.com/mir00r/haproxy-sync/internal/render"
	"github.com/mir00r/haproxy-sync/internal/reload"
	"github.com/mir00r/haproxy-sync/internal/topology"
	"github.com/mir00r/haproxy-sync/pkg/logger"
)

// Orchestrator drives the discovery-diff-reload cycle on a fixed
// interval. It is single-threaded: one reconcile runs to completion
// before the next tick fires, so the applied snapshot needs no locking.
type Orchestrator struct {
	reader   registry.Reader
	prefix   string
	renderer render.Renderer
	reloader reload.Reloader
	interval time.Duration
	limiter  *rate.Limiter
	logger   *logger.Logger

	// applied is the last snapshot that was successfully rendered and
	// reloaded. nil until the first successful reload, which guarantees
	// the first tick always applies whatever the registry holds.
	applied topology.Snapshot
}

// New creates an orchestrator. minReloadInterval throttles how often a
// reload may be attempted; zero disables the throttle.
func New(
	reader registry.Reader,
	prefix string,
	renderer render.Renderer,
	reloader reload.Reloader,
	interval time.Duration,
	minReloadInterval time.Duration,
	log *logger.Logger,
) *Orchestrator {
	limit := rate.Inf
	if minReloadInterval > 0 {
		limit = rate.Every(minReloadInterval)
	}

	return &Orchestrator{
		reader:   reader,
		prefix:   prefix,
		renderer: renderer,
		reloader: reloader,
		interval: interval,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   log.OrchestratorLogger(),
	}
}

// Run executes the reconcile loop until ctx is cancelled. The first
// reconcile runs immediately; every failure inside a cycle is logged and
// retried on the next tick, never propagated.
func (o *Orchestrator) Run(ctx context.Context) {
	o.logger.WithField("interval", o.interval.String()).Info("Starting reconcile loop")

	o.Reconcile(ctx)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("Reconcile loop stopped")
			return
		case <-ticker.C:
			o.Reconcile(ctx)
		}
	}
}

// Reconcile performs one full cycle: read, build, diff, render, reload.
// The applied snapshot advances only after a successful reload, so a
// failed cycle leaves the previous configuration running and the next
// tick retries against the same target state.
func (o *Orchestrator) Reconcile(ctx context.Context) {
	entries, err := o.reader.ReadAll(ctx)
	if err != nil {
		o.logger.WithError(err).Error("Registry read failed, keeping current configuration")
		return
	}

	current := topology.Build(entries, o.prefix)

	if o.applied != nil && o.applied.Equal(current) {
		o.logger.WithField("service_count", len(current)).Debug("Topology unchanged")
		return
	}

	o.logTopologyChange(current)

	if err := o.renderer.RenderAndWrite(current); err != nil {
		o.logger.WithError(err).Error("Configuration render failed, keeping current configuration")
		return
	}

	if !o.limiter.Allow() {
		err := syncerrors.NewReloadThrottledError()
		o.logger.WithError(err).Warn("Reload throttled, retrying next tick")
		return
	}

	if err := o.reloader.Reload(ctx); err != nil {
		o.logger.WithError(err).Error("Reload failed, keeping previous applied state")
		return
	}

	o.applied = current
	o.logger.WithField("service_count", len(current)).Info("Topology applied")
}

// Applied returns the last successfully applied snapshot, nil before the
// first successful reload.
func (o *Orchestrator) Applied() topology.Snapshot {
	return o.applied
}

// logTopologyChange logs which services appeared and disappeared relative
// to the applied snapshot.
func (o *Orchestrator) logTopologyChange(current topology.Snapshot) {
	for name, svc := range current {
		if _, exists := o.applied[name]; !exists {
			o.logger.WithFields(map[string]interface{}{
				"service":  name,
				"port":     svc.Port,
				"backends": len(svc.Endpoints),
			}).Info("Service discovered")
		}
	}

	for name := range o.applied {
		if _, exists := current[name]; !exists {
			o.logger.WithField("service", name).Info("Service removed")
		}
	}
}
