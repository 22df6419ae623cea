package world

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cory-johannsen/npcai/internal/game/condition"
)

// Vital indexes an entity's depletable resources.
type Vital int

// Vitals.
const (
	Health Vital = iota
	Mana

	VitalCount
)

// String returns the lower-case name of v.
func (v Vital) String() string {
	switch v {
	case Health:
		return "health"
	case Mana:
		return "mana"
	default:
		return "vital"
	}
}

// ActorConfig holds the construction parameters of an Actor.
type ActorConfig struct {
	ID         uuid.UUID
	Name       string
	Kind       Kind
	TemplateID string
	// Owner is set for projectiles and summons.
	Owner     Entity
	Position  Position
	Direction Direction
	MaxVitals [VitalCount]int
	// MoveIntervalMs is the minimum time between two steps.
	MoveIntervalMs int64
}

// Actor is the in-memory body of a simulated entity: position, facing,
// vitals, statuses and action timers. It is safe for concurrent use.
type Actor struct {
	mu sync.RWMutex

	id           uuid.UUID
	name         string
	kind         Kind
	templateID   string
	owner        Entity
	moveInterval int64

	pos       Position
	dir       Direction
	vitals    [VitalCount]int
	maxVitals [VitalCount]int
	dead      bool

	statuses *condition.ActiveSet

	castingUntil   int64
	castSpell      string
	castTarget     uuid.UUID
	attackingUntil int64
	nextMoveAt     int64
}

// NewActor creates an Actor with full vitals.
//
// Postcondition: A nil cfg.ID is replaced with a fresh random UUID.
func NewActor(cfg ActorConfig) *Actor {
	id := cfg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Actor{
		id:           id,
		name:         cfg.Name,
		kind:         cfg.Kind,
		templateID:   cfg.TemplateID,
		owner:        cfg.Owner,
		moveInterval: cfg.MoveIntervalMs,
		pos:          cfg.Position,
		dir:          cfg.Direction,
		vitals:       cfg.MaxVitals,
		maxVitals:    cfg.MaxVitals,
		statuses:     condition.NewActiveSet(),
	}
}

func (a *Actor) ID() uuid.UUID      { return a.id }
func (a *Actor) Name() string       { return a.name }
func (a *Actor) Kind() Kind         { return a.kind }
func (a *Actor) TemplateID() string { return a.templateID }

// Owner returns the entity that fired or summoned a, or nil.
func (a *Actor) Owner() Entity { return a.owner }

// IsDead reports whether the actor has died.
func (a *Actor) IsDead() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dead
}

// Position returns the current tile.
func (a *Actor) Position() Position {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pos
}

// Direction returns the current facing.
func (a *Actor) Direction() Direction {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dir
}

// Statuses returns a copy of the active statuses.
func (a *Actor) Statuses() []condition.Status {
	return a.statuses.All()
}

// StatusSet exposes the mutable status set for combat resolution.
func (a *Actor) StatusSet() *condition.ActiveSet {
	return a.statuses
}

// ClearStatuses removes every status.
func (a *Actor) ClearStatuses() {
	a.statuses.Clear()
}

// ExpireStatuses drops the statuses that have run out at now.
//
// Postcondition: Returns the kinds that expired, in application order.
func (a *Actor) ExpireStatuses(now int64) []condition.Kind {
	return a.statuses.Tick(now)
}

// Face turns the actor in place. None leaves the facing unchanged.
func (a *Actor) Face(dir Direction) {
	if dir == None {
		return
	}
	a.mu.Lock()
	a.dir = dir
	a.mu.Unlock()
}

// CanMove reports whether the move interval since the last step has elapsed.
func (a *Actor) CanMove(now int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return now >= a.nextMoveAt
}

// Move steps the actor onto to, facing dir, and starts the move interval.
func (a *Actor) Move(to Position, dir Direction, now int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pos = to
	if dir != None {
		a.dir = dir
	}
	a.nextMoveAt = now + a.moveInterval
}

// Warp places the actor on to immediately.
func (a *Actor) Warp(to Position, dir Direction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pos = to
	if dir != None {
		a.dir = dir
	}
}

// Vital returns the current value of v.
func (a *Actor) Vital(v Vital) int {
	if v < 0 || v >= VitalCount {
		return 0
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.vitals[v]
}

// MaxVital returns the maximum value of v.
func (a *Actor) MaxVital(v Vital) int {
	if v < 0 || v >= VitalCount {
		return 0
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.maxVitals[v]
}

// AddVital adjusts v by amount, clamped to [0, MaxVital(v)].
func (a *Actor) AddVital(v Vital, amount int) {
	if v < 0 || v >= VitalCount {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.vitals[v] + amount
	n = max(0, min(n, a.maxVitals[v]))
	a.vitals[v] = n
}

// RestoreVitals sets every vital to its maximum.
func (a *Actor) RestoreVitals() {
	a.mu.Lock()
	a.vitals = a.maxVitals
	a.mu.Unlock()
}

// TakeDamage subtracts amount from health and marks the actor dead when it
// reaches zero.
//
// Postcondition: Returns the remaining health and whether this hit killed the actor.
func (a *Actor) TakeDamage(amount int) (remaining int, killed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dead {
		return 0, false
	}
	a.vitals[Health] = max(0, a.vitals[Health]-amount)
	if a.vitals[Health] == 0 {
		a.dead = true
		return 0, true
	}
	return a.vitals[Health], false
}

// IsCasting reports whether a cast is in progress at now.
func (a *Actor) IsCasting(now int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return now < a.castingUntil
}

// BeginCast records a cast of spellID at target that completes at until.
func (a *Actor) BeginCast(spellID string, target uuid.UUID, until int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.castSpell = spellID
	a.castTarget = target
	a.castingUntil = until
}

// Casting returns the spell and target of the most recent cast.
func (a *Actor) Casting() (spellID string, target uuid.UUID) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.castSpell, a.castTarget
}

// IsAttacking reports whether a melee swing is in progress at now.
func (a *Actor) IsAttacking(now int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return now < a.attackingUntil
}

// BeginAttack records a melee swing that completes at until.
func (a *Actor) BeginAttack(until int64) {
	a.mu.Lock()
	a.attackingUntil = until
	a.mu.Unlock()
}

// Die marks the actor dead and zeroes its health.
func (a *Actor) Die() {
	a.mu.Lock()
	a.dead = true
	a.vitals[Health] = 0
	a.mu.Unlock()
}
