package npc_test

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/npcai/internal/game/condition"
	"github.com/cory-johannsen/npcai/internal/game/npc"
	"github.com/cory-johannsen/npcai/internal/game/world"
)

func TestTryFindNewTarget_AggressiveAcquiresPlayerInSight(t *testing.T) {
	f := newFixture(t, []*npc.Template{brute()})
	a := f.spawn(brute(), 5, 5)
	p := f.player(8, 5)

	a.TryFindNewTarget(0, uuid.Nil, false, nil)

	require.NotNil(t, a.Target())
	assert.Equal(t, p.ID(), a.Target().ID())
	assert.Equal(t, 1, f.rec.count(npc.EventTargetChanged))
	assert.Equal(t, npc.StateEngaged, a.State())
	center, ok := a.AggroCenter()
	require.True(t, ok)
	assert.True(t, center.SameTile(at(5, 5)))
}

func TestTryFindNewTarget_IgnoresPlayerOutOfSight(t *testing.T) {
	f := newFixture(t, []*npc.Template{brute()})
	a := f.spawn(brute(), 5, 5)
	f.player(11, 5)

	a.TryFindNewTarget(0, uuid.Nil, false, nil)
	assert.Nil(t, a.Target())
	assert.Equal(t, 1, a.TargetFailures())
}

func TestTryFindNewTarget_RespectsSearchInterval(t *testing.T) {
	f := newFixture(t, []*npc.Template{brute()})
	a := f.spawn(brute(), 5, 5)

	a.TryFindNewTarget(0, uuid.Nil, false, nil)
	require.Equal(t, 1, a.TargetFailures())
	a.TryFindNewTarget(499, uuid.Nil, false, nil)
	assert.Equal(t, 1, a.TargetFailures(), "search before the interval elapsed is skipped")
	a.TryFindNewTarget(499, uuid.Nil, true, nil)
	assert.Equal(t, 2, a.TargetFailures(), "ignoring the timer forces the search")
	a.TryFindNewTarget(999, uuid.Nil, false, nil)
	assert.Equal(t, 3, a.TargetFailures())
}

func TestTryFindNewTarget_AvoidsEntity(t *testing.T) {
	f := newFixture(t, []*npc.Template{brute()})
	a := f.spawn(brute(), 5, 5)
	p := f.player(6, 5)

	a.TryFindNewTarget(0, p.ID(), false, nil)
	assert.Nil(t, a.Target())
}

func TestTryFindNewTarget_PassiveFightsFromThreatTable(t *testing.T) {
	f := newFixture(t, []*npc.Template{passive()})
	a := f.spawn(passive(), 5, 5)
	p := f.player(7, 5)

	a.TryFindNewTarget(0, uuid.Nil, false, nil)
	require.Nil(t, a.Target(), "passive NPCs ignore players on sight")

	a.OnDamaged(p, 3)
	a.TryFindNewTarget(1000, uuid.Nil, false, nil)
	require.NotNil(t, a.Target())
	assert.Equal(t, p.ID(), a.Target().ID())
}

func TestTryFindNewTarget_ElevenFailuresForceReset(t *testing.T) {
	f := newFixture(t, []*npc.Template{passive()})
	a := f.spawn(passive(), 5, 5)
	p := f.player(20, 20)

	a.AssignTarget(p)
	require.NotNil(t, a.Target())

	for i := 0; i < npc.TargetFailMax; i++ {
		a.TryFindNewTarget(int64(i)*1000, uuid.Nil, false, nil)
	}
	require.Equal(t, npc.TargetFailMax, a.TargetFailures())
	assert.False(t, a.Resetting())

	a.TryFindNewTarget(100_000, uuid.Nil, false, nil)
	assert.True(t, a.Resetting(), "the 11th consecutive failure forces a reset")
	assert.Nil(t, a.Target())
	assert.Equal(t, npc.StateResetting, a.State())
}

func TestTryFindNewTarget_FocusesHighestDamageDealer(t *testing.T) {
	tmpl := passive()
	tmpl.FocusHighestDamageDealer = true
	f := newFixture(t, []*npc.Template{tmpl})
	a := f.spawn(tmpl, 5, 5)
	p1 := f.player(3, 5)
	p2 := f.player(7, 5)
	p3 := f.player(5, 8)

	a.OnDamaged(p1, 5)
	a.OnDamaged(p2, 9)
	a.OnDamaged(p3, 9)
	a.OnDamaged(p1, 3)

	a.TryFindNewTarget(0, uuid.Nil, false, nil)
	require.NotNil(t, a.Target())
	assert.Equal(t, p2.ID(), a.Target().ID(), "ties go to the first attacker seen")
}

func TestProperty_FocusHighestDamageDealerPicksMaximum(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		damages := rapid.SliceOfN(rapid.IntRange(1, 50), 1, 6).Draw(rt, "damages")

		tmpl := passive()
		tmpl.FocusHighestDamageDealer = true
		f := newFixture(t, []*npc.Template{tmpl})
		a := f.spawn(tmpl, 10, 10)

		best, bestDamage := -1, 0
		players := make([]*world.Actor, len(damages))
		for i, d := range damages {
			players[i] = f.player(2+2*i, 3)
			a.OnDamaged(players[i], d)
			if d > bestDamage {
				best, bestDamage = i, d
			}
		}

		a.TryFindNewTarget(0, uuid.Nil, false, nil)
		target := a.Target()
		if target == nil || target.ID() != players[best].ID() {
			rt.Fatalf("expected player %d (damage %d), got %v", best, bestDamage, target)
		}
	})
}

func TestAssignTarget_Idempotent(t *testing.T) {
	f := newFixture(t, []*npc.Template{brute()}, withOptions(func(o *npc.Options) {
		o.AllowNewResetLocationBeforeFinish = true
	}))
	a := f.spawn(brute(), 5, 5)
	p := f.player(6, 5)

	a.AssignTarget(p)
	center, _ := a.AggroCenter()
	bodyOf(t, a).Warp(at(9, 9), world.Down)
	a.AssignTarget(p)

	assert.Equal(t, 1, f.rec.count(npc.EventTargetChanged))
	again, ok := a.AggroCenter()
	require.True(t, ok)
	assert.Equal(t, center, again, "re-assigning the current target does not move the center")
}

func TestAssignTarget_NewTargetRelocatesCenterWhenAllowed(t *testing.T) {
	for _, allow := range []bool{false, true} {
		t.Run(fmt.Sprintf("allow=%v", allow), func(t *testing.T) {
			f := newFixture(t, []*npc.Template{brute()}, withOptions(func(o *npc.Options) {
				o.AllowNewResetLocationBeforeFinish = allow
			}))
			a := f.spawn(brute(), 5, 5)
			p1 := f.player(6, 5)
			p2 := f.player(12, 12)

			a.AssignTarget(p1)
			bodyOf(t, a).Warp(at(10, 10), world.Down)
			a.AssignTarget(p2)

			center, ok := a.AggroCenter()
			require.True(t, ok)
			if allow {
				assert.True(t, center.SameTile(at(10, 10)))
			} else {
				assert.True(t, center.SameTile(at(5, 5)))
			}
			assert.Equal(t, 2, f.rec.count(npc.EventTargetChanged))
		})
	}
}

func TestAssignTarget_RejectsIneligibleCandidates(t *testing.T) {
	f := newFixture(t, []*npc.Template{brute()})
	a := f.spawn(brute(), 5, 5)
	kin := f.spawn(brute(), 6, 6)

	hidden := f.player(6, 5)
	applyStatus(t, hidden, condition.Stealth, uuid.Nil)

	a.AssignTarget(hidden)
	assert.Nil(t, a.Target(), "stealthed players are never assigned")

	a.AssignTarget(kin.Body())
	assert.Nil(t, a.Target(), "same-template NPCs are rejected without attack_allies")

	a.AssignTarget(a.Body())
	assert.Nil(t, a.Target(), "an NPC never targets itself")
	assert.Equal(t, 0, f.rec.count(npc.EventTargetChanged))
	_, ok := a.AggroCenter()
	assert.False(t, ok)
}

func TestAssignTarget_AttackAlliesAllowsKin(t *testing.T) {
	tmpl := brute()
	tmpl.AttackAllies = true
	f := newFixture(t, []*npc.Template{tmpl})
	a := f.spawn(tmpl, 5, 5)
	kin := f.spawn(tmpl, 6, 6)

	a.AssignTarget(kin.Body())
	require.NotNil(t, a.Target())
	assert.Equal(t, kin.ID(), a.Target().ID())
}

func TestAssignTarget_ProjectileRedirectsToOwner(t *testing.T) {
	f := newFixture(t, []*npc.Template{brute()})
	a := f.spawn(brute(), 5, 5)
	shooter := f.player(9, 5)
	arrow := world.NewActor(world.ActorConfig{Kind: world.KindProjectile, Owner: shooter, Position: at(6, 5)})
	require.NoError(t, f.registry.Add(arrow))

	a.AssignTarget(arrow)
	require.NotNil(t, a.Target())
	assert.Equal(t, shooter.ID(), a.Target().ID())
}

func TestAssignTarget_TauntRestrictsTarget(t *testing.T) {
	f := newFixture(t, []*npc.Template{brute()})
	a := f.spawn(brute(), 5, 5)
	taunter := f.player(7, 5)
	other := f.player(3, 5)
	applyStatus(t, bodyOf(t, a), condition.Taunt, taunter.ID())

	a.AssignTarget(other)
	assert.Nil(t, a.Target(), "a live taunter in range blocks other targets")

	a.AssignTarget(taunter)
	require.NotNil(t, a.Target())
	assert.Equal(t, taunter.ID(), a.Target().ID())
}

func TestAssignTarget_DeadTaunterIsIgnored(t *testing.T) {
	f := newFixture(t, []*npc.Template{brute()})
	a := f.spawn(brute(), 5, 5)
	taunter := f.player(7, 5)
	other := f.player(3, 5)
	applyStatus(t, bodyOf(t, a), condition.Taunt, taunter.ID())
	taunter.Die()

	a.AssignTarget(other)
	require.NotNil(t, a.Target())
	assert.Equal(t, other.ID(), a.Target().ID())
}

func TestRemoveTarget_NotifiesOnce(t *testing.T) {
	f := newFixture(t, []*npc.Template{brute()})
	a := f.spawn(brute(), 5, 5)
	p := f.player(6, 5)

	a.AssignTarget(p)
	a.RemoveTarget()
	a.RemoveTarget()

	assert.Nil(t, a.Target())
	assert.Equal(t, 2, f.rec.count(npc.EventTargetChanged))
	ev, ok := f.rec.last(npc.EventTargetChanged)
	require.True(t, ok)
	assert.Equal(t, uuid.Nil, ev.TargetID)
	assert.Equal(t, npc.StateIdle, a.State())
}

func TestShouldAttackPlayerOnSight(t *testing.T) {
	cases := []struct {
		name       string
		aggressive bool
		onSight    string
		friend     string
		met        hooks
		want       bool
	}{
		{name: "aggressive without hook", aggressive: true, want: true},
		{name: "aggressive exempts matching players", aggressive: true, onSight: "on_sight", met: hooks{"on_sight": true}, want: false},
		{name: "aggressive attacks non-matching players", aggressive: true, onSight: "on_sight", met: hooks{}, want: true},
		{name: "passive without hook", want: false},
		{name: "passive attacks matching players", onSight: "on_sight", met: hooks{"on_sight": true}, want: true},
		{name: "friends are never attacked", aggressive: true, friend: "friend", met: hooks{"friend": true}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tmpl := brute()
			tmpl.Aggressive = tc.aggressive
			tmpl.Hooks = npc.Hooks{AttackOnSight: tc.onSight, PlayerFriend: tc.friend}
			f := newFixture(t, []*npc.Template{tmpl}, withConditions(tc.met))
			a := f.spawn(tmpl, 5, 5)
			assert.Equal(t, tc.want, a.ShouldAttackPlayerOnSight(f.player(6, 5)))
		})
	}
}

func TestAggression(t *testing.T) {
	tmpl := passive()
	tmpl.Hooks = npc.Hooks{PlayerFriend: "friend", PlayerCanAttack: "can_attack"}

	t.Run("guard", func(t *testing.T) {
		f := newFixture(t, []*npc.Template{tmpl}, withConditions(hooks{"friend": true}))
		a := f.spawn(tmpl, 5, 5)
		assert.Equal(t, npc.BehaviorGuard, a.Aggression(f.player(6, 5)))
	})
	t.Run("attack when attacked", func(t *testing.T) {
		f := newFixture(t, []*npc.Template{tmpl}, withConditions(hooks{"can_attack": true}))
		a := f.spawn(tmpl, 5, 5)
		assert.Equal(t, npc.BehaviorAttackWhenAttacked, a.Aggression(f.player(6, 5)))
	})
	t.Run("neutral", func(t *testing.T) {
		f := newFixture(t, []*npc.Template{tmpl}, withConditions(hooks{}))
		a := f.spawn(tmpl, 5, 5)
		assert.Equal(t, npc.BehaviorNeutral, a.Aggression(f.player(6, 5)))
	})
	t.Run("aggressive while engaged", func(t *testing.T) {
		f := newFixture(t, []*npc.Template{tmpl}, withConditions(hooks{}))
		a := f.spawn(tmpl, 5, 5)
		p := f.player(6, 5)
		a.AssignTarget(p)
		assert.Equal(t, npc.BehaviorAggressive, a.Aggression(p))
	})
}

func TestCanNpcCombat(t *testing.T) {
	wolf := brute()
	wolf.ID, wolf.Name = "wolf", "Wolf"
	wolf.AggroList = []string{"sheep"}
	sheep := passive()
	sheep.ID, sheep.Name = "sheep", "Sheep"
	sheep.NpcVsNpcEnabled = true

	f := newFixture(t, []*npc.Template{wolf, sheep})
	w := f.spawn(wolf, 5, 5)
	s := f.spawn(sheep, 6, 5)
	w2 := f.spawn(wolf, 4, 5)

	assert.True(t, w.CanNpcCombat(s.Body(), false))
	assert.False(t, s.CanNpcCombat(w.Body(), false), "wolf has npc-vs-npc disabled")
	assert.False(t, w.CanNpcCombat(w2.Body(), false))
	assert.True(t, w.CanNpcCombat(w2.Body(), true), "friendly actions on kin are allowed")
	assert.True(t, w.CanNpcCombat(f.player(1, 1), false))
	assert.False(t, w.CanNpcCombat(f.player(2, 1), true))
}

func TestTryFindNewTarget_AggroListedNpc(t *testing.T) {
	wolf := brute()
	wolf.ID, wolf.Name = "wolf", "Wolf"
	wolf.AggroList = []string{"sheep"}
	sheep := passive()
	sheep.ID, sheep.Name = "sheep", "Sheep"

	f := newFixture(t, []*npc.Template{wolf, sheep})
	w := f.spawn(wolf, 5, 5)
	s := f.spawn(sheep, 8, 5)

	w.TryFindNewTarget(0, uuid.Nil, false, nil)
	require.NotNil(t, w.Target())
	assert.Equal(t, s.ID(), w.Target().ID())
}

func TestNotifySwarm_AlertsIdleKin(t *testing.T) {
	tmpl := passive()
	tmpl.ID = "bee"
	tmpl.Swarm = true
	f := newFixture(t, []*npc.Template{tmpl})
	a := f.spawn(tmpl, 5, 5)
	near := f.spawn(tmpl, 7, 7)
	far := f.spawn(tmpl, 25, 20)
	p := f.player(6, 5)

	a.OnDamaged(p, 2)
	f.tick(near, 100)
	f.tick(far, 100)
	f.tick(a, 100)

	require.NotNil(t, near.Target())
	assert.Equal(t, p.ID(), near.Target().ID())
	assert.Nil(t, far.Target(), "kin beyond sight range of the attacker stay idle")
	require.NotNil(t, a.Target())
	assert.Equal(t, p.ID(), a.Target().ID())
}
