package npc

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcai/internal/game/condition"
	"github.com/cory-johannsen/npcai/internal/game/dice"
	"github.com/cory-johannsen/npcai/internal/game/world"
)

// Behavior is how an NPC presents itself to a particular player.
type Behavior int

// Behaviors.
const (
	BehaviorAggressive Behavior = iota
	BehaviorAttackWhenAttacked
	BehaviorAttackOnSight
	BehaviorNeutral
	BehaviorGuard
)

// String returns the snake_case name of b.
func (b Behavior) String() string {
	switch b {
	case BehaviorAggressive:
		return "aggressive"
	case BehaviorAttackWhenAttacked:
		return "attack_when_attacked"
	case BehaviorAttackOnSight:
		return "attack_on_sight"
	case BehaviorNeutral:
		return "neutral"
	case BehaviorGuard:
		return "guard"
	default:
		return "unknown"
	}
}

// AssignTarget makes candidate the current target if the targeting rules
// allow it. A nil candidate clears the target.
//
// Postcondition: Assigning the current target again changes nothing except
// the failed-search counter, which is zeroed.
func (a *Agent) AssignTarget(candidate world.Entity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.assignTarget(a.clock(), candidate)
}

// RemoveTarget clears the current target.
func (a *Agent) RemoveTarget() {
	a.AssignTarget(nil)
}

func (a *Agent) assignTarget(now int64, candidate world.Entity) {
	if candidate == nil {
		a.setTarget(now, nil)
		a.targetFailCounter = 0
		return
	}
	if a.resetting {
		return
	}
	if a.target != nil && candidate.ID() == a.target.ID() {
		a.targetFailCounter = 0
		return
	}

	next := a.normalizeCandidate(candidate)
	if next == nil || a.tauntedAwayFrom(next) {
		return
	}
	if a.target == nil || next.ID() != a.target.ID() {
		if a.opts.AllowResetRadius {
			a.aggro.BeginAggro(a.body.Position(), a.opts.AllowNewResetLocationBeforeFinish)
		}
		a.setTarget(now, next)
	}
	a.targetFailCounter = 0
}

// normalizeCandidate redirects projectiles to their owner and returns nil for
// candidates that may never be targeted.
func (a *Agent) normalizeCandidate(e world.Entity) world.Entity {
	if e.Kind() == world.KindProjectile {
		owned, ok := e.(world.Owned)
		if !ok || world.HasStealth(e) {
			return nil
		}
		e = owned.Owner()
		if e == nil {
			return nil
		}
	}
	if e.ID() == a.id || e.IsDead() || world.HasStealth(e) {
		return nil
	}
	if e.Kind() == world.KindNpc && world.TemplateOf(e) == a.template.ID && !a.template.AttackAllies {
		return nil
	}
	return e
}

// tauntedAwayFrom reports whether a live taunter other than candidate holds
// the agent's attention.
func (a *Agent) tauntedAwayFrom(candidate world.Entity) bool {
	self := a.body.Position()
	for _, s := range a.body.Statuses() {
		if s.Kind != condition.Taunt || s.SourceID == uuid.Nil || s.SourceID == candidate.ID() {
			continue
		}
		taunter, ok := a.registry.Get(s.SourceID)
		if !ok || taunter.IsDead() {
			continue
		}
		if a.registry.Distance(self, taunter.Position()) != world.Unreachable {
			return true
		}
	}
	return false
}

// setTarget swaps the target and, when it changed, refreshes the combat
// timer and emits a single TargetChanged event.
func (a *Agent) setTarget(now int64, e world.Entity) {
	var oldID, newID uuid.UUID
	if a.target != nil {
		oldID = a.target.ID()
	}
	if e != nil {
		newID = e.ID()
	}
	a.target = e
	a.hasTarget.Store(e != nil)
	if oldID == newID {
		return
	}
	a.combatTimerAt = now + a.opts.CombatTimeMs
	a.emit(Event{Kind: EventTargetChanged, At: now, TargetID: newID})
	a.syncState()
}

// TryFindNewTarget searches for a target. avoid is excluded from the search;
// attackedBy names the entity that just hit the agent, if any.
func (a *Agent) TryFindNewTarget(now int64, avoid uuid.UUID, ignoreSearchTimer bool, attackedBy world.Entity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tryFindNewTarget(now, avoid, ignoreSearchTimer, attackedBy)
}

func (a *Agent) tryFindNewTarget(now int64, avoid uuid.UUID, ignoreSearchTimer bool, attackedBy world.Entity) {
	if !ignoreSearchTimer && a.nextTargetSearchAt > now {
		return
	}

	if a.resetting {
		if !a.opts.AllowEngagingWhileResetting || attackedBy == nil {
			return
		}
		center, ok := a.aggro.Center()
		if !ok || a.registry.Distance(attackedBy.Position(), center) > a.leashRadius() {
			return
		}
		a.path.SetTarget(nil)
		a.resetting = false
		a.reengaged = true
		a.assignTarget(now, attackedBy)
		a.syncState()
		a.logger.Debug("npc re-engaged while resetting", zap.String("attacker", attackedBy.ID().String()))
		return
	}

	self := a.body.Position()
	var candidates []world.Entity

	highest := -1
	var highestDamage int64
	for _, row := range a.threat.Snapshot() {
		e := row.Entity
		if e.ID() == avoid || e.IsDead() || e.Position().Instance != self.Instance {
			continue
		}
		if a.registry.Distance(self, e.Position()) == world.Unreachable {
			continue
		}
		candidates = append(candidates, e)
		if row.Damage > highestDamage {
			highest = len(candidates) - 1
			highestDamage = row.Damage
		}
	}

	closest := -1
	closestRange := a.template.SightRange + 1
	for _, e := range a.registry.Surrounding(self) {
		if e.IsDead() || e.ID() == a.id || e.ID() == avoid {
			continue
		}
		switch e.Kind() {
		case world.KindPlayer:
			if !a.ShouldAttackPlayerOnSight(e) && !a.threat.Has(e.ID()) {
				continue
			}
		case world.KindNpc:
			if !a.template.Aggressive || !a.template.InAggroList(world.TemplateOf(e)) {
				continue
			}
		default:
			continue
		}
		dist := a.registry.Distance(self, e.Position())
		if dist <= a.template.SightRange && dist < closestRange {
			candidates = append(candidates, e)
			closest = len(candidates) - 1
			closestRange = dist
		}
	}

	switch {
	case a.template.FocusHighestDamageDealer && highest != -1:
		a.assignTarget(now, candidates[highest])
	case a.target != nil && len(candidates) > 0:
		if dice.Between(a.rng, 1, 101) > 90 {
			a.assignTarget(now, candidates[a.rng.Intn(len(candidates))])
		}
	case a.target == nil && a.template.Aggressive && closest != -1:
		a.assignTarget(now, candidates[closest])
	case len(candidates) > 0:
		a.assignTarget(now, candidates[a.rng.Intn(len(candidates))])
	default:
		a.targetFailCounter++
		if a.targetFailCounter > TargetFailMax {
			a.checkForResetLocation(now, true)
		}
	}

	a.nextTargetSearchAt = now + a.opts.FindTargetDelayMs
}

// meets evaluates a condition hook. An empty hook is never met; evaluation
// errors are logged and count as not met.
func (a *Agent) meets(hook string, subject world.Entity) bool {
	if hook == "" || a.cond == nil {
		return false
	}
	ok, err := a.cond.Evaluate(hook, a.body, subject)
	if err != nil {
		a.logger.Warn("npc condition hook failed",
			zap.String("hook", hook),
			zap.String("subject", subject.ID().String()),
			zap.Error(err),
		)
		return false
	}
	return ok
}

// IsAllyOf reports whether other is on this NPC's side: an NPC of the same
// template, or a player meeting the friend hook.
func (a *Agent) IsAllyOf(other world.Entity) bool {
	switch other.Kind() {
	case world.KindNpc:
		return world.TemplateOf(other) == a.template.ID
	case world.KindPlayer:
		return a.meets(a.template.Hooks.PlayerFriend, other)
	default:
		return false
	}
}

// ShouldAttackPlayerOnSight reports whether player is hostile on sight.
// An aggressive template attacks everyone except players meeting the
// attack-on-sight hook; a passive one attacks only players meeting it.
func (a *Agent) ShouldAttackPlayerOnSight(player world.Entity) bool {
	if a.IsAllyOf(player) {
		return false
	}
	hook := a.template.Hooks.AttackOnSight
	if a.template.Aggressive {
		return hook == "" || !a.meets(hook, player)
	}
	return hook != "" && a.meets(hook, player)
}

// CanPlayerAttack reports whether player may attack this NPC.
func (a *Agent) CanPlayerAttack(player world.Entity) bool {
	if a.IsAllyOf(player) {
		return false
	}
	hook := a.template.Hooks.PlayerCanAttack
	return hook == "" || a.meets(hook, player)
}

// Aggression returns how this NPC presents itself to player.
func (a *Agent) Aggression(player world.Entity) Behavior {
	if a.HasTarget() {
		return BehaviorAggressive
	}
	ally := a.IsAllyOf(player)
	onSight := a.ShouldAttackPlayerOnSight(player)
	canBeAttacked := a.CanPlayerAttack(player)
	switch {
	case ally && !canBeAttacked:
		return BehaviorGuard
	case onSight:
		return BehaviorAttackOnSight
	case !ally && canBeAttacked:
		return BehaviorAttackWhenAttacked
	default:
		return BehaviorNeutral
	}
}

// CanNpcCombat reports whether this NPC may fight enemy, an NPC, with a
// hostile (friendly == false) or supportive action.
func (a *Agent) CanNpcCombat(enemy world.Entity, friendly bool) bool {
	if enemy == nil {
		return false
	}
	if enemy.Kind() == world.KindPlayer {
		return !friendly
	}
	if enemy.Kind() != world.KindNpc {
		return false
	}
	other := world.TemplateOf(enemy)
	if friendly {
		return other == a.template.ID && !a.template.AttackAllies
	}
	tmpl, ok := a.peers.Template(other)
	if !ok || !tmpl.NpcVsNpcEnabled {
		return false
	}
	if a.template.AttackAllies && other == a.template.ID {
		return true
	}
	return a.template.InAggroList(other)
}

// canAttack is the eligibility check for hitting target with spell, or with
// a melee swing when spell is nil.
func (a *Agent) canAttack(target world.Entity, spell *Spell) (bool, error) {
	if target == nil || target.IsDead() {
		return false, nil
	}
	stunned, err := condition.AnyOf(a.body.Statuses(), condition.StunnedOrAsleep)
	if err != nil || stunned {
		return false, err
	}
	if world.HasStealth(target) {
		return false, nil
	}
	friendly := spell != nil && spell.Combat != nil && spell.Combat.Friendly
	switch target.Kind() {
	case world.KindNpc:
		return target.ID() == a.id || a.CanNpcCombat(target, friendly), nil
	case world.KindPlayer:
		ally := a.IsAllyOf(target)
		return friendly == ally, nil
	default:
		return false, nil
	}
}

// NotifySwarm asks idle swarm members of the same template in this instance
// to target attacker when it is within their sight range. Peers react on
// their own next tick.
func (a *Agent) NotifySwarm(attacker world.Entity) {
	if attacker == nil {
		return
	}
	pos := a.body.Position()
	for _, peer := range a.peers.AgentsIn(pos.MapID, pos.Instance) {
		if peer == a || peer.Dead() || peer.HasTarget() {
			continue
		}
		if !peer.template.Swarm || peer.template.ID != a.template.ID {
			continue
		}
		if a.registry.Distance(peer.body.Position(), attacker.Position()) <= peer.template.SightRange {
			peer.enqueue(request{kind: requestAssign, entity: attacker})
		}
	}
}
