package simulation

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcai/internal/game/dice"
	"github.com/cory-johannsen/npcai/internal/game/npc"
	"github.com/cory-johannsen/npcai/internal/game/world"
)

// Scaled attack time tuning.
const (
	BaseAttackTimeMs     = 1000
	AttackTimePerLevelMs = 20
	MinAttackTimeMs      = 250
)

// Damageable is implemented by entities that can lose health.
// world.Actor is the reference implementation.
type Damageable interface {
	TakeDamage(amount int) (remaining int, killed bool)
}

// AgentLookup resolves the controller of an NPC entity. npc.Manager is the
// production implementation.
type AgentLookup interface {
	Get(id uuid.UUID) (*npc.Agent, bool)
}

// AgentLookupFunc adapts a function to AgentLookup.
type AgentLookupFunc func(id uuid.UUID) (*npc.Agent, bool)

// Get calls f(id).
func (f AgentLookupFunc) Get(id uuid.UUID) (*npc.Agent, bool) { return f(id) }

// Resolver is the reference npc.CombatResolver: melee damage comes from the
// template's dice expression, spell damage from the spell's.
type Resolver struct {
	registry *world.Registry
	agents   AgentLookup
	roller   *dice.Roller
	logger   *zap.Logger
}

// NewResolver returns a Resolver. agents may be nil, in which case damaged
// NPCs are not notified.
//
// Precondition: registry and roller must be non-nil.
func NewResolver(registry *world.Registry, agents AgentLookup, roller *dice.Roller, logger *zap.Logger) *Resolver {
	if registry == nil || roller == nil {
		panic("simulation.NewResolver: registry and roller must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{registry: registry, agents: agents, roller: roller, logger: logger}
}

// CanCast reports whether caster has the mana for spell and target is within
// its cast range. A cast range of zero is unlimited.
func (r *Resolver) CanCast(caster *npc.Agent, spell *npc.Spell, target world.Entity, _ int64) bool {
	if target == nil || target.IsDead() || spell.Combat == nil {
		return false
	}
	body := caster.Body()
	if body.Vital(world.Mana) < spell.ManaCost {
		return false
	}
	if spell.Combat.CastRange > 0 && target.ID() != body.ID() {
		d := r.registry.Distance(body.Position(), target.Position())
		if d == world.Unreachable || d > spell.Combat.CastRange {
			return false
		}
	}
	return true
}

// Cast spends the spell's mana and applies its damage. Negative damage heals
// the target.
func (r *Resolver) Cast(caster *npc.Agent, spell *npc.Spell, target world.Entity, _ int64) {
	body := caster.Body()
	body.AddVital(world.Mana, -spell.ManaCost)
	if spell.Combat == nil || spell.Combat.Damage == "" || target == nil {
		return
	}
	roll, err := r.roller.RollExpr(spell.Combat.Damage)
	if err != nil {
		r.logger.Warn("spell damage expression invalid",
			zap.String("spell", spell.ID),
			zap.Error(err),
		)
		return
	}
	amount := roll.Total()
	if amount < 0 {
		r.heal(target, -amount)
		return
	}
	r.damage(body, target, amount)
}

// Attack rolls the attacker's melee dice and applies the damage to target.
// Templates without a damage expression deal no damage.
func (r *Resolver) Attack(attacker *npc.Agent, target world.Entity, _ int64) {
	expr, ok := attacker.Template().DamageExpression()
	if !ok || target == nil {
		return
	}
	roll := r.roller.Roll(expr)
	r.damage(attacker.Body(), target, max(0, roll.Total()))
}

// AttackTimeMs scales the base attack time down by level.
//
// Postcondition: Returns a value in [MinAttackTimeMs, BaseAttackTimeMs].
func (r *Resolver) AttackTimeMs(attacker *npc.Agent) int64 {
	level := max(1, attacker.Template().Level)
	return max(MinAttackTimeMs, BaseAttackTimeMs-int64(level-1)*AttackTimePerLevelMs)
}

func (r *Resolver) heal(target world.Entity, amount int) {
	if body, ok := target.(interface{ AddVital(world.Vital, int) }); ok {
		body.AddVital(world.Health, amount)
	}
}

func (r *Resolver) damage(source, target world.Entity, amount int) {
	if r.agents != nil {
		if victim, ok := r.agents.Get(target.ID()); ok {
			victim.OnDamaged(source, amount)
		}
	}
	d, ok := target.(Damageable)
	if !ok {
		return
	}
	remaining, killed := d.TakeDamage(amount)
	r.logger.Debug("damage applied",
		zap.String("source", source.Name()),
		zap.String("target", target.Name()),
		zap.Int("amount", amount),
		zap.Int("remaining", remaining),
		zap.Bool("killed", killed),
	)
}
