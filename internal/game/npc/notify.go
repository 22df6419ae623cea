package npc

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcai/internal/game/world"
)

// EventKind identifies a controller notification.
type EventKind int

// Notification kinds.
const (
	EventTargetChanged EventKind = iota + 1
	EventEntityAttacked
	EventAnimationAt
	EventCastStarted
	EventEntityDied
	EventEntityLeft
)

// String returns the snake_case name of k.
func (k EventKind) String() string {
	switch k {
	case EventTargetChanged:
		return "target_changed"
	case EventEntityAttacked:
		return "entity_attacked"
	case EventAnimationAt:
		return "animation_at"
	case EventCastStarted:
		return "cast_started"
	case EventEntityDied:
		return "entity_died"
	case EventEntityLeft:
		return "entity_left"
	default:
		return "unknown"
	}
}

// Event is a fire-and-forget notification emitted by an agent.
type Event struct {
	Kind     EventKind
	At       int64
	NpcID    uuid.UUID
	Template string
	Position world.Position
	// TargetID is the new target (TargetChanged), the attack or cast target,
	// or the killer (EntityDied). Nil when not applicable.
	TargetID     uuid.UUID
	SpellID      string
	Animation    string
	Direction    world.Direction
	AttackTimeMs int64
	Loot         *LootDrop
}

// Notifier receives controller notifications. Implementations must not block
// and must be safe for concurrent use.
type Notifier interface {
	Notify(ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ev Event)

// Notify calls f(ev).
func (f NotifierFunc) Notify(ev Event) { f(ev) }

// MultiNotifier fans each event out to every notifier in order.
type MultiNotifier []Notifier

// Notify forwards ev to each notifier.
func (m MultiNotifier) Notify(ev Event) {
	for _, n := range m {
		n.Notify(ev)
	}
}

// LogNotifier logs every event at debug level.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify logs ev.
func (l LogNotifier) Notify(ev Event) {
	fields := []zap.Field{
		zap.String("event", ev.Kind.String()),
		zap.Int64("at", ev.At),
		zap.String("npc_id", ev.NpcID.String()),
		zap.String("template", ev.Template),
		zap.String("position", ev.Position.String()),
	}
	if ev.TargetID != uuid.Nil {
		fields = append(fields, zap.String("target_id", ev.TargetID.String()))
	}
	if ev.SpellID != "" {
		fields = append(fields, zap.String("spell", ev.SpellID))
	}
	if ev.Animation != "" {
		fields = append(fields, zap.String("animation", ev.Animation))
	}
	if ev.Loot != nil {
		fields = append(fields,
			zap.String("loot_owner", ev.Loot.Owner.String()),
			zap.Int("loot_items", len(ev.Loot.Result.Items)),
			zap.Int("loot_currency", ev.Loot.Result.Currency),
		)
	}
	l.Logger.Debug("npc event", fields...)
}
