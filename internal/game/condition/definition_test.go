package condition_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/npcai/internal/game/condition"
)

func TestParseKind_RoundTripsEveryName(t *testing.T) {
	for k := condition.None; k <= condition.Knockback; k++ {
		parsed, err := condition.ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestParseKind_Unknown(t *testing.T) {
	_, err := condition.ParseKind("petrified")
	require.Error(t, err)
	assert.True(t, errors.Is(err, condition.ErrUnknownKind))
}

func TestKind_UnmarshalYAML(t *testing.T) {
	var doc struct {
		Kinds []condition.Kind `yaml:"kinds"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("kinds: [stun, Silence, on_hit]"), &doc))
	assert.Equal(t, []condition.Kind{condition.Stun, condition.Silence, condition.OnHit}, doc.Kinds)

	err := yaml.Unmarshal([]byte("kinds: [frozen]"), &doc)
	assert.ErrorIs(t, err, condition.ErrUnknownKind)
}

func TestStunnedOrAsleep(t *testing.T) {
	for k := condition.None; k <= condition.Knockback; k++ {
		got, err := condition.StunnedOrAsleep(k)
		require.NoError(t, err)
		assert.Equal(t, k == condition.Stun || k == condition.Sleep, got, k.String())
	}
}

func TestPreventsCasting(t *testing.T) {
	for k := condition.None; k <= condition.Knockback; k++ {
		got, err := condition.PreventsCasting(k)
		require.NoError(t, err)
		want := k == condition.Stun || k == condition.Sleep || k == condition.Silence
		assert.Equal(t, want, got, k.String())
	}
}

func TestPreventsMovement(t *testing.T) {
	blocking := map[condition.Kind]bool{
		condition.Stun: true, condition.Snare: true, condition.Sleep: true, condition.Knockback: true,
	}
	for k := condition.None; k <= condition.Knockback; k++ {
		got, err := condition.PreventsMovement(k)
		require.NoError(t, err)
		assert.Equal(t, blocking[k], got, k.String())
	}
}

func TestProperty_ClassificationRejectsOutOfRangeKinds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		k := condition.Kind(rapid.OneOf(
			rapid.IntRange(-1000, -1),
			rapid.IntRange(int(condition.Knockback)+1, 1000),
		).Draw(rt, "kind"))
		for _, pred := range []func(condition.Kind) (bool, error){
			condition.StunnedOrAsleep, condition.PreventsCasting, condition.PreventsMovement,
		} {
			_, err := pred(k)
			if !errors.Is(err, condition.ErrUnknownKind) {
				rt.Fatalf("kind %d: expected ErrUnknownKind, got %v", int(k), err)
			}
		}
	})
}

func TestAnyOf_PropagatesError(t *testing.T) {
	statuses := []condition.Status{{Kind: condition.Blind}, {Kind: condition.Kind(99)}}
	_, err := condition.AnyOf(statuses, condition.PreventsMovement)
	assert.ErrorIs(t, err, condition.ErrUnknownKind)

	ok, err := condition.AnyOf([]condition.Status{{Kind: condition.Blind}, {Kind: condition.Snare}}, condition.PreventsMovement)
	require.NoError(t, err)
	assert.True(t, ok)
}
