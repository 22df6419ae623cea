package npc

import (
	"sync"

	"github.com/cory-johannsen/npcai/internal/game/world"
)

// AggroCenterTracker remembers where an NPC first engaged so it can be
// leashed back there.
type AggroCenterTracker struct {
	mu     sync.RWMutex
	center world.Position
	active bool
}

// BeginAggro records pos as the aggro center.
//
// Postcondition: Returns true when the center was set; an existing center is
// only replaced when allowRelocation is true.
func (t *AggroCenterTracker) BeginAggro(pos world.Position, allowRelocation bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active && !allowRelocation {
		return false
	}
	t.center = pos
	t.active = true
	return true
}

// Center returns the aggro center and whether one is set.
func (t *AggroCenterTracker) Center() (world.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.center, t.active
}

// Active reports whether a center is set.
func (t *AggroCenterTracker) Active() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// Clear drops the center.
func (t *AggroCenterTracker) Clear() {
	t.mu.Lock()
	t.center = world.Position{}
	t.active = false
	t.mu.Unlock()
}

// DistanceExceeded reports whether distance (in tiles, from the center) is
// farther than radius. It is always false without a center.
func (t *AggroCenterTracker) DistanceExceeded(distance, radius int) bool {
	if !t.Active() {
		return false
	}
	return distance > radius
}

// LeashRadius computes the effective leash radius. The template radius is
// saturated at the map's own extent and never undercuts the global minimum.
func LeashRadius(global, template, mapWidth, mapHeight int) int {
	return max(global, min(template, max(mapWidth, mapHeight)))
}
