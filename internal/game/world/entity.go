package world

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cory-johannsen/npcai/internal/game/condition"
)

// Kind is the closed set of entity kinds the simulation distinguishes.
type Kind int

// Entity kinds.
const (
	KindPlayer Kind = iota
	KindNpc
	KindResource
	KindProjectile
	KindEvent
)

// String returns the lower-case name of k.
func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindNpc:
		return "npc"
	case KindResource:
		return "resource"
	case KindProjectile:
		return "projectile"
	case KindEvent:
		return "event"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entity is the capability set every simulated entity exposes to others.
// Implementations must be safe for concurrent use.
type Entity interface {
	ID() uuid.UUID
	Name() string
	Kind() Kind
	IsDead() bool
	Position() Position
	Statuses() []condition.Status
}

// Owned is implemented by entities fired or summoned by another entity.
type Owned interface {
	// Owner returns the owning entity, or nil when it is gone.
	Owner() Entity
}

// Templated is implemented by entities spawned from an NPC template.
type Templated interface {
	// TemplateID returns the template ID, or "" when not spawned from one.
	TemplateID() string
}

// TemplateOf returns the template ID of e, or "" when e has none.
func TemplateOf(e Entity) string {
	if t, ok := e.(Templated); ok {
		return t.TemplateID()
	}
	return ""
}

// HasStealth reports whether e is nil or carries a stealth status.
func HasStealth(e Entity) bool {
	if e == nil {
		return true
	}
	return condition.Has(e.Statuses(), condition.Stealth)
}
