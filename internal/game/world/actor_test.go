package world

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/npcai/internal/game/condition"
)

func TestActor_VitalsClamp(t *testing.T) {
	a := NewActor(ActorConfig{MaxVitals: [VitalCount]int{Health: 20, Mana: 5}})
	assert.NotEqual(t, uuid.Nil, a.ID())
	a.AddVital(Health, -50)
	assert.Equal(t, 0, a.Vital(Health))
	a.AddVital(Health, 100)
	assert.Equal(t, 20, a.Vital(Health))
	a.AddVital(Mana, -2)
	a.RestoreVitals()
	assert.Equal(t, 5, a.Vital(Mana))
	assert.Equal(t, 0, a.Vital(Vital(9)))
}

func TestActor_TakeDamageKillsOnce(t *testing.T) {
	a := NewActor(ActorConfig{MaxVitals: [VitalCount]int{Health: 10}})
	rem, killed := a.TakeDamage(4)
	assert.Equal(t, 6, rem)
	assert.False(t, killed)
	_, killed = a.TakeDamage(6)
	assert.True(t, killed)
	assert.True(t, a.IsDead())
	_, killed = a.TakeDamage(1)
	assert.False(t, killed)
}

func TestActor_MoveIntervalAndFacing(t *testing.T) {
	a := NewActor(ActorConfig{MoveIntervalMs: 200, Direction: Up})
	assert.True(t, a.CanMove(0))
	a.Move(Position{MapID: "m", X: 1}, Right, 100)
	assert.Equal(t, Right, a.Direction())
	assert.False(t, a.CanMove(299))
	assert.True(t, a.CanMove(300))

	a.Face(None)
	assert.Equal(t, Right, a.Direction())
	a.Warp(Position{MapID: "m", X: 5}, None)
	assert.Equal(t, 5, a.Position().X)
	assert.Equal(t, Right, a.Direction())
}

func TestActor_CastAndAttackTimers(t *testing.T) {
	a := NewActor(ActorConfig{})
	target := uuid.New()
	a.BeginCast("fireball", target, 500)
	assert.True(t, a.IsCasting(499))
	assert.False(t, a.IsCasting(500))
	spell, tgt := a.Casting()
	assert.Equal(t, "fireball", spell)
	assert.Equal(t, target, tgt)

	a.BeginAttack(100)
	assert.True(t, a.IsAttacking(50))
	assert.False(t, a.IsAttacking(100))
}

func TestActor_StatusesAndCapabilities(t *testing.T) {
	owner := NewActor(ActorConfig{Name: "archer", Kind: KindPlayer})
	arrow := NewActor(ActorConfig{Kind: KindProjectile, Owner: owner})
	assert.Equal(t, owner, arrow.Owner())

	wolf := NewActor(ActorConfig{Kind: KindNpc, TemplateID: "wolf"})
	assert.Equal(t, "wolf", TemplateOf(wolf))
	assert.False(t, HasStealth(wolf))
	require.NoError(t, wolf.StatusSet().Apply(condition.Status{Kind: condition.Stealth}))
	assert.True(t, HasStealth(wolf))
	wolf.ClearStatuses()
	assert.Empty(t, wolf.Statuses())
	assert.True(t, HasStealth(nil))
}
