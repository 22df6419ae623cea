package npc

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcai/internal/game/world"
)

func (a *Agent) leashRadius() int {
	return LeashRadius(a.opts.ResetRadius, a.template.ResetRadius, a.opts.MapWidth, a.opts.MapHeight)
}

// shouldResetLocation reports whether the agent has left its leash radius.
// force treats any active center as exceeded. After re-engaging mid-reset
// the leash holds off until the agent is back inside the radius or its
// target leaves it.
func (a *Agent) shouldResetLocation(force bool) bool {
	if !a.opts.AllowResetRadius {
		return false
	}
	center, ok := a.aggro.Center()
	if !ok {
		return false
	}
	if force {
		return true
	}
	radius := a.leashRadius()
	if !a.aggro.DistanceExceeded(a.registry.Distance(a.body.Position(), center), radius) {
		a.reengaged = false
		return false
	}
	if a.reengaged && a.target != nil && a.registry.Distance(a.target.Position(), center) <= radius {
		return false
	}
	a.reengaged = false
	return true
}

// checkForResetLocation starts walking back to the aggro center when the
// leash is exceeded.
//
// Postcondition: Returns true iff the agent is resetting on return.
func (a *Agent) checkForResetLocation(now int64, force bool) bool {
	if a.resetting {
		return true
	}
	if !a.shouldResetLocation(force) {
		return false
	}
	a.reset(now, a.opts.ResetVitalsAndStatuses, false)
	a.resetCounter = 0
	a.lastResetDistance = 0
	a.resetting = true
	center, _ := a.aggro.Center()
	a.path.SetTarget(&center)
	a.syncState()
	a.logger.Debug("npc leashed", zap.String("center", center.String()))
	return true
}

// stepReset runs the per-tick bookkeeping of a reset in progress.
func (a *Agent) stepReset(now int64) {
	center, ok := a.aggro.Center()
	if !ok {
		a.resetting = false
		a.syncState()
		return
	}
	distance := a.registry.Distance(a.body.Position(), center)
	if distance < 1 {
		a.resetAggroCenter()
	}
	a.reset(now, a.opts.ContinuouslyResetVitalsAndStatuses, false)
	if !a.resetting {
		return
	}

	if distance != a.lastResetDistance {
		a.lastResetDistance = distance
	} else {
		a.resetCounter++
		if a.resetCounter > ResetMax {
			a.logger.Debug("npc reset stuck, dropping aggro center", zap.Int("distance", distance))
			a.resetAggroCenter()
			a.resetCounter = 0
			a.lastResetDistance = 0
			return
		}
	}
	if pt := a.path.Target(); pt == nil || !pt.SameTile(center) {
		a.path.SetTarget(&center)
	}
}

// reset drops the target and both tables, optionally forgetting the aggro
// center and restoring vitals and statuses.
func (a *Agent) reset(now int64, resetVitals, clearLocation bool) {
	a.setTarget(now, nil)
	a.targetFailCounter = 0
	a.threat.Clear()
	if clearLocation {
		a.resetAggroCenter()
	}
	if resetVitals {
		a.body.ClearStatuses()
		a.body.RestoreVitals()
	}
	a.syncState()
}

// resetAggroCenter forgets the aggro center and ends any reset.
func (a *Agent) resetAggroCenter() {
	a.aggro.Clear()
	a.reengaged = false
	a.path.SetTarget(nil)
	a.resetting = false
	a.syncState()
}

// Reset fully resets the agent: it warps back to its aggro center if it has
// one, forgets the center and restores vitals and statuses.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if center, ok := a.aggro.Center(); ok {
		a.body.Warp(center, a.body.Direction())
	}
	a.reset(a.clock(), true, true)
}

// regenTick applies a regen pulse while out of combat.
func (a *Agent) regenTick(now int64) {
	if a.target != nil || now < a.combatTimerAt || now < a.nextRegenAt {
		return
	}
	a.ProcessRegen()
	a.nextRegenAt = now + RegenIntervalMs
}

// ProcessRegen restores each non-full vital by its template regen percentage
// of maximum, at least one point.
func (a *Agent) ProcessRegen() {
	for _, v := range []world.Vital{world.Health, world.Mana} {
		cur, maxValue := a.body.Vital(v), a.body.MaxVital(v)
		if cur >= maxValue {
			continue
		}
		pct := a.template.HealthRegen
		if v == world.Mana {
			pct = a.template.ManaRegen
		}
		if pct == 0 {
			continue
		}
		amount := max(1, maxValue*pct/100)
		if pct < 0 {
			amount = 1
		}
		a.body.AddVital(v, amount)
	}
}

// Die kills the agent: loot is rolled, the tables and aggro center are
// cleared, the body leaves the spatial index and the threat tables of the
// NPCs around it, and EntityDied and EntityLeft are emitted.
//
// Postcondition: Returns the loot drop, or nil when the agent was already dead.
func (a *Agent) Die(killer world.Entity) *LootDrop {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.die(a.clock(), killer)
}

func (a *Agent) die(now int64, killer world.Entity) *LootDrop {
	if !a.died.CompareAndSwap(false, true) {
		return nil
	}
	if killer != nil && killer.Kind() == world.KindProjectile {
		if owned, ok := killer.(world.Owned); ok {
			killer = owned.Owner()
		}
	}

	pos := a.body.Position()
	a.body.Die()

	drop := &LootDrop{Owner: a.id, Eligible: a.threat.LootEligible()}
	var killerID uuid.UUID
	if killer != nil {
		killerID = killer.ID()
		if killer.Kind() == world.KindPlayer {
			drop.Owner = killerID
		}
	}
	if a.template.Loot != nil {
		drop.Result = GenerateLoot(*a.template.Loot, a.rng)
	}

	a.target = nil
	a.hasTarget.Store(false)
	a.cast = nil
	a.wander = nil
	a.resetAggroCenter()
	a.threat.Clear()
	a.registry.Remove(a.id)
	for _, peer := range a.peers.AgentsIn(pos.MapID, pos.Instance) {
		if peer != a {
			peer.threat.RemoveAttacker(a.id)
		}
	}
	a.syncState()

	a.emit(Event{Kind: EventEntityDied, At: now, Position: pos, TargetID: killerID, Loot: drop})
	a.emit(Event{Kind: EventEntityLeft, At: now, Position: pos})
	a.logger.Info("npc died",
		zap.String("killer", killerID.String()),
		zap.Int("loot_items", len(drop.Result.Items)),
	)
	return drop
}
