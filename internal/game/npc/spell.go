package npc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SpellType classifies what a spell does when it completes.
type SpellType string

// Spell types.
const (
	SpellCombat SpellType = "combat"
	SpellWarpTo SpellType = "warp_to"
	SpellWarp   SpellType = "warp"
	SpellDash   SpellType = "dash"
	SpellEvent  SpellType = "event"
)

// TargetType is how a combat spell selects what it hits.
type TargetType string

// Target types.
const (
	TargetSingle     TargetType = "single"
	TargetAoE        TargetType = "aoe"
	TargetSelf       TargetType = "self"
	TargetProjectile TargetType = "projectile"
	TargetTrap       TargetType = "trap"
)

// CombatData is the combat metadata of a spell.
type CombatData struct {
	// Friendly spells are cast on allies, which for an NPC means itself.
	Friendly        bool       `yaml:"friendly"`
	TargetType      TargetType `yaml:"target_type"`
	CastRange       int        `yaml:"cast_range"`
	ProjectileRange int        `yaml:"projectile_range"`
	// Damage is a dice expression; negative modifiers heal.
	Damage string `yaml:"damage"`
}

// Spell is a castable ability definition.
type Spell struct {
	ID             string    `yaml:"id"`
	Name           string    `yaml:"name"`
	Type           SpellType `yaml:"type"`
	CastDurationMs int64     `yaml:"cast_duration_ms"`
	CastAnimation  string    `yaml:"cast_animation"`
	ManaCost       int       `yaml:"mana_cost"`
	// Combat is nil when the spell has no combat metadata; the controller
	// refuses to cast such spells.
	Combat *CombatData `yaml:"combat"`
}

// Validate checks the spell's invariants.
//
// Precondition: s must not be nil.
// Postcondition: Returns nil iff ID is non-empty, Type is set, and durations
// and costs are non-negative.
func (s *Spell) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("spell: id must not be empty")
	}
	switch s.Type {
	case SpellCombat, SpellWarpTo, SpellWarp, SpellDash, SpellEvent:
	default:
		return fmt.Errorf("spell %q: unknown type %q", s.ID, s.Type)
	}
	if s.CastDurationMs < 0 {
		return fmt.Errorf("spell %q: cast_duration_ms must be >= 0", s.ID)
	}
	if s.ManaCost < 0 {
		return fmt.Errorf("spell %q: mana_cost must be >= 0", s.ID)
	}
	return nil
}

// SpellBook is a read-only set of spells keyed by ID.
type SpellBook struct {
	spells map[string]*Spell
}

// NewSpellBook indexes spells by ID.
//
// Postcondition: Returns an error when two spells share an ID.
func NewSpellBook(spells []*Spell) (*SpellBook, error) {
	b := &SpellBook{spells: make(map[string]*Spell, len(spells))}
	for _, s := range spells {
		if _, dup := b.spells[s.ID]; dup {
			return nil, fmt.Errorf("spell %q: duplicate id", s.ID)
		}
		b.spells[s.ID] = s
	}
	return b, nil
}

// Get returns the spell with the given ID.
func (b *SpellBook) Get(id string) (*Spell, bool) {
	if b == nil {
		return nil, false
	}
	s, ok := b.spells[id]
	return s, ok
}

// IDs returns all spell IDs in sorted order.
func (b *SpellBook) IDs() []string {
	ids := make([]string, 0, len(b.spells))
	for id := range b.spells {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type spellFile struct {
	Spells []*Spell `yaml:"spells"`
}

// LoadSpellsFromBytes parses a YAML document holding a top-level spells list.
//
// Postcondition: Every returned spell passed Validate.
func LoadSpellsFromBytes(data []byte) ([]*Spell, error) {
	var f spellFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing spell YAML: %w", err)
	}
	for _, s := range f.Spells {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Spells, nil
}

// LoadSpells reads all *.yaml files in dir into a SpellBook.
//
// Precondition: dir must be a readable directory.
func LoadSpells(dir string) (*SpellBook, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading spell dir %q: %w", dir, err)
	}
	var all []*Spell
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		spells, err := LoadSpellsFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		all = append(all, spells...)
	}
	return NewSpellBook(all)
}
