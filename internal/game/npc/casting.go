package npc

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcai/internal/game/condition"
	"github.com/cory-johannsen/npcai/internal/game/dice"
	"github.com/cory-johannsen/npcai/internal/game/world"
)

// CastCooldown maps a spell frequency tier to the cooldown started by a cast.
//
// Postcondition: ok is false for tiers outside 0..4.
func CastCooldown(tier int) (ms int64, ok bool) {
	switch tier {
	case 0:
		return 30000, true
	case 1:
		return 15000, true
	case 2:
		return 8000, true
	case 3:
		return 4000, true
	case 4:
		return 2000, true
	default:
		return 0, false
	}
}

// tryCastSpells starts a random template spell at the current target when
// every cast gate is open.
func (a *Agent) tryCastSpells(now int64) error {
	target := a.target
	if target == nil || a.path.Target() == nil {
		return nil
	}
	stunned, err := condition.AnyOf(a.body.Statuses(), condition.StunnedOrAsleep)
	if err != nil || stunned {
		return err
	}
	if a.cast != nil || a.body.IsCasting(now) {
		return nil
	}
	if now < a.nextCastEligibleAt {
		return nil
	}
	silenced, err := condition.AnyOf(a.body.Statuses(), condition.PreventsCasting)
	if err != nil || silenced {
		return err
	}
	if len(a.template.Spells) == 0 {
		return nil
	}

	spellID := a.template.Spells[a.rng.Intn(len(a.template.Spells))]
	spell, ok := a.spells.Get(spellID)
	if !ok {
		a.logger.Warn("npc spell not found", zap.String("spell", spellID))
		return nil
	}
	if spell.Combat == nil {
		a.logger.Warn("combat data missing for spell", zap.String("spell", spellID))
		return nil
	}
	if !a.combat.CanCast(a, spell, target, now) {
		return nil
	}

	if spell.Type == SpellCombat && spell.Combat.TargetType == TargetProjectile && spell.Combat.ProjectileRange > 0 &&
		a.registry.Distance(a.body.Position(), target.Position()) <= spell.Combat.ProjectileRange {
		dir := a.dirTo(target.Position())
		if dir != world.None && dir != a.body.Direction() {
			if a.nextRandomActionAt >= now {
				return nil
			}
			// Fire on a later tick once facing the target.
			a.body.Face(dir)
			a.nextRandomActionAt = now + int64(dice.Between(a.rng, 1000, 3000))
			return nil
		}
	}

	var castTarget world.Entity = target
	if spell.Combat.Friendly && spell.Type != SpellWarpTo {
		castTarget = a.body
	}
	until := now + spell.CastDurationMs
	a.body.BeginCast(spell.ID, castTarget.ID(), until)
	a.cast = &pendingCast{spell: spell, target: castTarget, until: until}

	if cd, ok := CastCooldown(a.template.SpellFrequency); ok {
		a.nextCastEligibleAt = now + cd
	} else {
		a.logger.Warn("unknown spell frequency tier, cooldown unchanged",
			zap.Int("tier", a.template.SpellFrequency),
		)
	}
	a.combatTimerAt = now + a.opts.CombatTimeMs

	if spell.CastAnimation != "" {
		a.emit(Event{Kind: EventAnimationAt, At: now, Animation: spell.CastAnimation, Direction: a.body.Direction()})
	}
	a.emit(Event{Kind: EventCastStarted, At: now, TargetID: castTarget.ID(), SpellID: spell.ID})
	return nil
}

// AttackTimeMs returns the melee attack time: the template's static value
// when configured, otherwise the resolver's scaled value.
func (a *Agent) AttackTimeMs() int64 {
	if a.template.AttackSpeed.Modifier == AttackSpeedStatic {
		return a.template.AttackSpeed.ValueMs
	}
	return a.combat.AttackTimeMs(a)
}

// tryAttack swings at target when adjacent, facing it and not mid-swing.
func (a *Agent) tryAttack(now int64, target world.Entity) {
	if !a.isOneBlockAway(target.Position()) {
		return
	}
	if dir := a.dirTo(target.Position()); dir != world.None && dir != a.body.Direction() {
		return
	}
	if a.body.IsAttacking(now) {
		return
	}

	attackTime := a.AttackTimeMs()
	if a.template.AttackAnimation != "" {
		a.emit(Event{
			Kind:      EventAnimationAt,
			At:        now,
			Position:  target.Position(),
			Animation: a.template.AttackAnimation,
			Direction: a.body.Direction(),
		})
	}
	a.body.BeginAttack(now + attackTime)
	a.combatTimerAt = now + a.opts.CombatTimeMs
	a.combat.Attack(a, target, now)
	a.emit(Event{Kind: EventEntityAttacked, At: now, TargetID: target.ID(), AttackTimeMs: attackTime})
}
