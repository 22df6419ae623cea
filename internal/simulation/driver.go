// Package simulation drives NPC agents on a fixed tick and supplies the
// reference combat resolver.
package simulation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/npcai/internal/game/npc"
)

// DriverConfig holds the construction parameters of a Driver.
type DriverConfig struct {
	Manager *npc.Manager
	// Respawn is optional; nil disables respawning.
	Respawn  *npc.RespawnManager
	Interval time.Duration
	// Workers bounds the number of agents updated concurrently.
	Workers int
	Logger  *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Driver runs one Update per live agent on every tick.
//
// Invariant: ticks never overlap; a tick that overruns the interval delays
// the next one instead of running alongside it.
type Driver struct {
	mgr      *npc.Manager
	respawn  *npc.RespawnManager
	interval time.Duration
	workers  int
	logger   *zap.Logger
	now      func() time.Time

	ticks  atomic.Uint64
	errors atomic.Uint64
}

// NewDriver returns a Driver for cfg.
//
// Precondition: cfg.Manager must be non-nil; cfg.Interval must be > 0;
// cfg.Workers must be >= 1.
func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("simulation.NewDriver: manager must not be nil")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("simulation.NewDriver: interval must be > 0, got %s", cfg.Interval)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("simulation.NewDriver: workers must be >= 1, got %d", cfg.Workers)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Driver{
		mgr:      cfg.Manager,
		respawn:  cfg.Respawn,
		interval: cfg.Interval,
		workers:  cfg.Workers,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}, nil
}

// Ticks returns the number of completed ticks.
func (d *Driver) Ticks() uint64 { return d.ticks.Load() }

// UpdateErrors returns the number of agent updates that returned an error.
func (d *Driver) UpdateErrors() uint64 { return d.errors.Load() }

// Run ticks every interval until ctx is cancelled.
//
// Postcondition: Returns nil when ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	d.logger.Info("simulation started",
		zap.Duration("interval", d.interval),
		zap.Int("workers", d.workers),
	)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("simulation stopped", zap.Uint64("ticks", d.ticks.Load()))
			return nil
		case <-ticker.C:
			if err := d.Tick(ctx, d.now()); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Tick updates every live agent once at now, then despawns the dead and
// processes due respawns.
//
// Agent update errors are logged and counted; they do not fail the tick.
// Postcondition: Returns a non-nil error only when ctx is cancelled mid-tick.
func (d *Driver) Tick(ctx context.Context, now time.Time) error {
	ms := now.UnixMilli()
	agents := d.mgr.All()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, a := range agents {
		if a.Dead() {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := a.Update(ms); err != nil {
				d.errors.Add(1)
				d.logger.Error("npc update failed",
					zap.String("npc_id", a.ID().String()),
					zap.String("template", a.Template().ID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("tick at %d: %w", ms, err)
	}

	d.reap(now)
	if d.respawn != nil {
		d.respawn.Tick(now, d.mgr)
	}
	d.ticks.Add(1)
	return nil
}

func (d *Driver) reap(now time.Time) {
	for _, a := range d.mgr.All() {
		if !a.Dead() {
			continue
		}
		if err := d.mgr.Despawn(a.ID()); err != nil {
			continue
		}
		if d.respawn != nil {
			d.respawn.OnDeath(a, now)
		}
	}
}
