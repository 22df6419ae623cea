package npc

import (
	"github.com/google/uuid"

	"github.com/cory-johannsen/npcai/internal/game/condition"
	"github.com/cory-johannsen/npcai/internal/game/world"
)

// Body is the simulated entity an Agent controls. world.Actor is the
// reference implementation.
type Body interface {
	world.Entity
	world.Templated

	Direction() world.Direction
	// Face turns in place; world.None is ignored.
	Face(dir world.Direction)
	// CanMove reports whether the move interval has elapsed at now.
	CanMove(now int64) bool
	Move(to world.Position, dir world.Direction, now int64)
	Warp(to world.Position, dir world.Direction)

	Vital(v world.Vital) int
	MaxVital(v world.Vital) int
	AddVital(v world.Vital, amount int)
	RestoreVitals()

	ClearStatuses()
	ExpireStatuses(now int64) []condition.Kind

	IsCasting(now int64) bool
	BeginCast(spellID string, target uuid.UUID, until int64)
	IsAttacking(now int64) bool
	BeginAttack(until int64)
	Die()
}

// CombatResolver applies the damage side of combat. The controller decides
// when and at whom; the resolver decides how much.
//
// Resolver methods are called while the caster's tick is in progress and
// must not call locking Agent methods on the caster (Target, Resetting, ...).
// Body, Template and OnDamaged are safe.
type CombatResolver interface {
	// CanCast is the general cast-eligibility check: range, resources and
	// target validity.
	CanCast(caster *Agent, spell *Spell, target world.Entity, now int64) bool
	// Cast applies a spell whose cast time has completed.
	Cast(caster *Agent, spell *Spell, target world.Entity, now int64)
	// Attack resolves one melee swing.
	Attack(attacker *Agent, target world.Entity, now int64)
	// AttackTimeMs returns the scaled melee attack time of attacker.
	AttackTimeMs(attacker *Agent) int64
}

// ConditionEvaluator evaluates a named condition hook for self judging
// subject. scripting.Manager is the production implementation.
type ConditionEvaluator interface {
	Evaluate(hook string, self, subject world.Entity) (bool, error)
}

// Directory resolves peer agents for swarm alerts and the templates of other
// NPCs for NPC-versus-NPC rules. Manager is the production implementation.
type Directory interface {
	AgentsIn(mapID string, instance uuid.UUID) []*Agent
	Template(id string) (*Template, bool)
}

type nopResolver struct{}

func (nopResolver) CanCast(*Agent, *Spell, world.Entity, int64) bool { return false }
func (nopResolver) Cast(*Agent, *Spell, world.Entity, int64)         {}
func (nopResolver) Attack(*Agent, world.Entity, int64)               {}
func (nopResolver) AttackTimeMs(*Agent) int64                        { return 1000 }

type nopDirectory struct{}

func (nopDirectory) AgentsIn(string, uuid.UUID) []*Agent { return nil }
func (nopDirectory) Template(string) (*Template, bool)   { return nil, false }
