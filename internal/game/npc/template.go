// Package npc provides NPC template definitions and the per-NPC combat and
// movement controller.
package npc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/npcai/internal/game/dice"
)

// ErrUnknownMovement is returned when a movement mode outside the closed set
// reaches the controller.
var ErrUnknownMovement = errors.New("npc: unknown movement mode")

// Movement is the idle movement mode of a template.
type Movement string

// Movement modes.
const (
	MoveRandomly Movement = "move_randomly"
	TurnRandomly Movement = "turn_randomly"
	StandStill   Movement = "stand_still"
	Static       Movement = "static"
)

// Valid reports whether m is one of the defined movement modes.
func (m Movement) Valid() bool {
	switch m {
	case MoveRandomly, TurnRandomly, StandStill, Static:
		return true
	}
	return false
}

// AttackSpeedModifier selects how an NPC's melee attack time is computed.
type AttackSpeedModifier string

// Attack speed modifiers.
const (
	// AttackSpeedScaled lets the combat resolver compute the attack time.
	AttackSpeedScaled AttackSpeedModifier = "scaled"
	// AttackSpeedStatic uses AttackSpeed.ValueMs verbatim.
	AttackSpeedStatic AttackSpeedModifier = "static"
)

// AttackSpeed configures melee pacing.
type AttackSpeed struct {
	Modifier AttackSpeedModifier `yaml:"modifier"`
	ValueMs  int64               `yaml:"value_ms"`
}

// Hooks names the Lua condition hooks a template consults. An empty hook
// name means the condition is never met.
type Hooks struct {
	// AttackOnSight makes matching players hostile on sight even when the
	// template is not aggressive.
	AttackOnSight string `yaml:"attack_on_sight"`
	// PlayerFriend marks matching players as allies.
	PlayerFriend string `yaml:"player_friend"`
	// PlayerCanAttack gates whether a player may attack this NPC at all.
	PlayerCanAttack string `yaml:"player_can_attack"`
}

// Template defines a reusable NPC archetype loaded from YAML. Templates are
// shared between agents and must not be mutated once loaded.
type Template struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Level       int    `yaml:"level"`
	MaxHealth   int    `yaml:"max_health"`
	MaxMana     int    `yaml:"max_mana"`

	// SightRange is the proximity scan radius in tiles.
	SightRange int `yaml:"sight_range"`
	// ResetRadius is the per-template leash radius in tiles.
	ResetRadius int `yaml:"reset_radius"`

	Aggressive               bool     `yaml:"aggressive"`
	AttackAllies             bool     `yaml:"attack_allies"`
	FocusHighestDamageDealer bool     `yaml:"focus_highest_damage_dealer"`
	NpcVsNpcEnabled          bool     `yaml:"npc_vs_npc"`
	AggroList                []string `yaml:"aggro_list"`
	Swarm                    bool     `yaml:"swarm"`
	// FleeHealthPercentage makes the NPC flee once its health drops to or
	// below this percentage of maximum. Zero disables fleeing.
	FleeHealthPercentage int `yaml:"flee_health_percentage"`

	Spells []string `yaml:"spells"`
	// SpellFrequency is the cast cooldown tier, see CastCooldown.
	SpellFrequency int `yaml:"spell_frequency"`

	Movement       Movement `yaml:"movement"`
	MoveIntervalMs int64    `yaml:"move_interval_ms"`

	// Damage is the melee damage dice expression, e.g. "1d6+2".
	Damage          string      `yaml:"damage"`
	AttackSpeed     AttackSpeed `yaml:"attack_speed"`
	AttackAnimation string      `yaml:"attack_animation"`

	// HealthRegen and ManaRegen are per-pulse regen percentages of maximum.
	HealthRegen int `yaml:"health_regen"`
	ManaRegen   int `yaml:"mana_regen"`

	Hooks Hooks `yaml:"hooks"`

	// RespawnDelay is the duration string (e.g. "5m", "30s") before a dead NPC
	// of this template respawns. Empty means the NPC does not respawn.
	RespawnDelay string     `yaml:"respawn_delay"`
	Loot         *LootTable `yaml:"loot"`

	damage *dice.Expression
}

// Validate checks that the template satisfies basic invariants and fills
// defaults for omitted optional fields.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty, Level >= 1,
// MaxHealth >= 1, ranges are non-negative, Movement is a known mode and every
// expression parses; returns an error on the first violation otherwise.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("npc template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("npc template %q: name must not be empty", t.ID)
	}
	if t.Level < 1 {
		return fmt.Errorf("npc template %q: level must be >= 1", t.ID)
	}
	if t.MaxHealth < 1 {
		return fmt.Errorf("npc template %q: max_health must be >= 1", t.ID)
	}
	if t.MaxMana < 0 {
		return fmt.Errorf("npc template %q: max_mana must be >= 0", t.ID)
	}
	if t.SightRange < 0 || t.ResetRadius < 0 {
		return fmt.Errorf("npc template %q: sight_range and reset_radius must be >= 0", t.ID)
	}
	if t.FleeHealthPercentage < 0 || t.FleeHealthPercentage > 100 {
		return fmt.Errorf("npc template %q: flee_health_percentage must be in [0, 100], got %d", t.ID, t.FleeHealthPercentage)
	}
	if t.Movement == "" {
		t.Movement = MoveRandomly
	}
	if !t.Movement.Valid() {
		return fmt.Errorf("npc template %q: %w %q", t.ID, ErrUnknownMovement, t.Movement)
	}
	if t.MoveIntervalMs < 0 {
		return fmt.Errorf("npc template %q: move_interval_ms must be >= 0", t.ID)
	}
	switch t.AttackSpeed.Modifier {
	case "":
		t.AttackSpeed.Modifier = AttackSpeedScaled
	case AttackSpeedScaled:
	case AttackSpeedStatic:
		if t.AttackSpeed.ValueMs <= 0 {
			return fmt.Errorf("npc template %q: static attack_speed requires value_ms > 0", t.ID)
		}
	default:
		return fmt.Errorf("npc template %q: unknown attack_speed modifier %q", t.ID, t.AttackSpeed.Modifier)
	}
	t.damage = nil
	if t.Damage != "" {
		expr, err := dice.Parse(t.Damage)
		if err != nil {
			return fmt.Errorf("npc template %q: damage: %w", t.ID, err)
		}
		t.damage = &expr
	}
	if t.RespawnDelay != "" {
		if _, err := time.ParseDuration(t.RespawnDelay); err != nil {
			return fmt.Errorf("npc template %q: respawn_delay %q is not a valid duration: %w", t.ID, t.RespawnDelay, err)
		}
	}
	if t.Loot != nil {
		if err := t.Loot.Validate(); err != nil {
			return fmt.Errorf("npc template %q: %w", t.ID, err)
		}
	}
	return nil
}

// DamageExpression returns the parsed melee damage expression.
//
// Postcondition: ok is false when the template has no melee damage.
func (t *Template) DamageExpression() (expr dice.Expression, ok bool) {
	if t.damage == nil {
		return dice.Expression{}, false
	}
	return *t.damage, true
}

// InAggroList reports whether other is listed as a hostile template.
func (t *Template) InAggroList(other string) bool {
	for _, id := range t.AggroList {
		if id == other {
			return true
		}
	}
	return false
}

// LoadTemplateFromBytes parses a single NPC template from raw YAML bytes.
//
// Precondition: data must be valid YAML for a single Template.
// Postcondition: Returns a validated *Template, or an error. RespawnDelay, if
// non-empty, is guaranteed to be a valid Go duration string.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads all *.yaml files in dir and returns the parsed templates.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse or validate
// failure; on error, the partial result is discarded.
func LoadTemplates(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading npc dir %q: %w", dir, err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}
