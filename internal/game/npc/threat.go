package npc

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cory-johannsen/npcai/internal/game/world"
)

type threatEntry struct {
	entity world.Entity
	damage atomic.Int64
	seq    uint64
}

// ThreatEntry is a point-in-time copy of one threat table row.
type ThreatEntry struct {
	Entity world.Entity
	Damage int64
}

// ThreatTable accumulates damage per attacker and tracks which players are
// eligible for loot. Writers need no agent lock and readers accept staleness:
// AddDamage on an existing attacker only takes the read lock, so concurrent
// hits from different attackers do not serialize against each other.
//
// Clear drops the threat rows and the loot eligibility together under the
// write lock, so no reader ever observes one cleared without the other.
type ThreatTable struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*threatEntry
	nextSeq uint64

	eligible    map[uuid.UUID]struct{}
	eligibleIDs []uuid.UUID
}

// NewThreatTable returns an empty table.
func NewThreatTable() *ThreatTable {
	return &ThreatTable{
		entries:  make(map[uuid.UUID]*threatEntry),
		eligible: make(map[uuid.UUID]struct{}),
	}
}

// AddDamage adds amount to attacker's accumulated damage. It is safe to call
// from any goroutine.
//
// Precondition: attacker must be non-nil; amount should be >= 0.
// Postcondition: attacker is present in the table; a player attacker is loot
// eligible.
func (t *ThreatTable) AddDamage(attacker world.Entity, amount int64) {
	if attacker == nil {
		return
	}
	id := attacker.ID()

	t.mu.RLock()
	e, ok := t.entries[id]
	_, marked := t.eligible[id]
	t.mu.RUnlock()
	if ok && (marked || attacker.Kind() != world.KindPlayer) {
		e.damage.Add(amount)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok = t.entries[id]
	if !ok {
		t.nextSeq++
		e = &threatEntry{entity: attacker, seq: t.nextSeq}
		t.entries[id] = e
	}
	e.damage.Add(amount)
	if attacker.Kind() == world.KindPlayer {
		if _, marked := t.eligible[id]; !marked {
			t.eligible[id] = struct{}{}
			t.eligibleIDs = append(t.eligibleIDs, id)
		}
	}
}

// RemoveAttacker drops id from the threat rows. Loot eligibility is kept: a
// player who left the fight still earned a share.
func (t *ThreatTable) RemoveAttacker(id uuid.UUID) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// Clear empties the threat rows and the loot eligibility.
func (t *ThreatTable) Clear() {
	t.mu.Lock()
	clear(t.entries)
	clear(t.eligible)
	t.eligibleIDs = nil
	t.mu.Unlock()
}

// Has reports whether id has a threat row.
func (t *ThreatTable) Has(id uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[id]
	return ok
}

// Damage returns the accumulated damage of id, or 0 when absent.
func (t *ThreatTable) Damage(id uuid.UUID) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.entries[id]; ok {
		return e.damage.Load()
	}
	return 0
}

// Len returns the number of threat rows.
func (t *ThreatTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Snapshot copies the threat rows in first-seen order.
func (t *ThreatTable) Snapshot() []ThreatEntry {
	t.mu.RLock()
	rows := make([]*threatEntry, 0, len(t.entries))
	for _, e := range t.entries {
		rows = append(rows, e)
	}
	t.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]ThreatEntry, len(rows))
	for i, e := range rows {
		out[i] = ThreatEntry{Entity: e.entity, Damage: e.damage.Load()}
	}
	return out
}

// LootEligible returns the loot-eligible player IDs in first-hit order.
func (t *ThreatTable) LootEligible() []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]uuid.UUID, len(t.eligibleIDs))
	copy(out, t.eligibleIDs)
	return out
}
