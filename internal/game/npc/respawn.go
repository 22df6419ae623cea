package npc

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcai/internal/game/world"
)

// SpawnPoint is one map spawn configuration resolved to an instance.
//
// Invariant: Config.Count >= 1.
type SpawnPoint struct {
	MapID    string
	Instance uuid.UUID
	Config   world.SpawnConfig
}

// Position returns the spawn tile as a position.
func (p SpawnPoint) Position() world.Position {
	return world.Position{MapID: p.MapID, Instance: p.Instance, X: p.Config.Tile.X, Y: p.Config.Tile.Y}
}

func (p SpawnPoint) key() string {
	return fmt.Sprintf("%s/%s/%s@%d,%d", p.MapID, p.Instance, p.Config.Template, p.Config.Tile.X, p.Config.Tile.Y)
}

type respawnEntry struct {
	point   SpawnPoint
	readyAt time.Time
}

// RespawnManager populates spawn points and schedules NPC respawns.
//
// Concurrency: Tick and Populate must not be called concurrently with each
// other or with themselves. OnDeath may be called concurrently from any goroutine.
type RespawnManager struct {
	mu      sync.RWMutex
	points  []SpawnPoint
	origin  map[uuid.UUID]SpawnPoint // agent ID → spawn point
	live    map[string]int           // spawn point key → live count
	pending []respawnEntry
	logger  *zap.Logger
}

// NewRespawnManager collects the spawn points of maps in instance.
//
// Postcondition: Returns a non-nil RespawnManager.
func NewRespawnManager(maps []*world.Map, instance uuid.UUID, logger *zap.Logger) *RespawnManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &RespawnManager{
		origin: make(map[uuid.UUID]SpawnPoint),
		live:   make(map[string]int),
		logger: logger,
	}
	for _, m := range maps {
		for _, cfg := range m.Spawns {
			r.points = append(r.points, SpawnPoint{MapID: m.ID, Instance: instance, Config: cfg})
		}
	}
	return r
}

// Points returns the spawn points in map order.
func (r *RespawnManager) Points() []SpawnPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]SpawnPoint(nil), r.points...)
}

// Populate fills every spawn point up to its Count.
//
// Postcondition: Returns the first spawn error; spawn points after it are
// still attempted.
func (r *RespawnManager) Populate(mgr *Manager) error {
	var firstErr error
	for _, p := range r.Points() {
		for r.liveCount(p) < p.Config.Count {
			if err := r.spawn(p, mgr); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				break
			}
		}
	}
	return firstErr
}

func (r *RespawnManager) spawn(p SpawnPoint, mgr *Manager) error {
	tmpl, ok := mgr.Template(p.Config.Template)
	if !ok {
		return fmt.Errorf("spawn point %s: unknown template %q", p.key(), p.Config.Template)
	}
	agent, err := mgr.Spawn(tmpl, p.Position())
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.origin[agent.ID()] = p
	r.live[p.key()]++
	r.mu.Unlock()
	return nil
}

func (r *RespawnManager) liveCount(p SpawnPoint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live[p.key()]
}

// OnDeath releases the agent's spawn slot and schedules a respawn after the
// resolved delay. Agents not spawned by this manager are ignored.
func (r *RespawnManager) OnDeath(agent *Agent, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.origin[agent.ID()]
	if !ok {
		return
	}
	delete(r.origin, agent.ID())
	r.live[p.key()]--
	delay := ResolvedDelay(p.Config, agent.Template())
	if delay <= 0 {
		return
	}
	r.pending = append(r.pending, respawnEntry{point: p, readyAt: now.Add(delay)})
}

// Pending returns the number of scheduled respawns.
func (r *RespawnManager) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending)
}

// Tick spawns every scheduled respawn whose time has come, up to each spawn
// point's Count.
//
// Postcondition: pending entries with readyAt <= now are consumed.
func (r *RespawnManager) Tick(now time.Time, mgr *Manager) {
	r.mu.Lock()
	var ready, future []respawnEntry
	for _, e := range r.pending {
		if !e.readyAt.After(now) {
			ready = append(ready, e)
		} else {
			future = append(future, e)
		}
	}
	r.pending = future
	r.mu.Unlock()

	for _, e := range ready {
		if r.liveCount(e.point) >= e.point.Config.Count {
			continue
		}
		if err := r.spawn(e.point, mgr); err != nil {
			r.logger.Warn("npc respawn failed", zap.String("spawn", e.point.key()), zap.Error(err))
		}
	}
}

// ResolvedDelay returns the effective respawn delay for a spawn: the spawn's
// RespawnAfter if set, otherwise the template's RespawnDelay.
//
// Postcondition: Returns >= 0; 0 means no respawn.
func ResolvedDelay(cfg world.SpawnConfig, tmpl *Template) time.Duration {
	if cfg.RespawnAfter != "" {
		if d, err := time.ParseDuration(cfg.RespawnAfter); err == nil && d > 0 {
			return d
		}
	}
	if tmpl == nil || tmpl.RespawnDelay == "" {
		return 0
	}
	d, err := time.ParseDuration(tmpl.RespawnDelay)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
