// Package condition models the status effects that can be active on an entity
// and classifies them for the NPC decision logic.
package condition

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownKind is returned when a Kind outside the closed set reaches a
// classification. It means the enumeration grew without updating its callers.
var ErrUnknownKind = errors.New("condition: unknown status kind")

// Kind is the closed set of status effect kinds.
type Kind int

const (
	None Kind = iota
	Silence
	Stun
	Snare
	Blind
	Stealth
	Transform
	Cleanse
	Invulnerable
	Shield
	Sleep
	OnHit
	Taunt
	Knockback

	kindCount
)

var kindNames = [...]string{
	None:         "none",
	Silence:      "silence",
	Stun:         "stun",
	Snare:        "snare",
	Blind:        "blind",
	Stealth:      "stealth",
	Transform:    "transform",
	Cleanse:      "cleanse",
	Invulnerable: "invulnerable",
	Shield:       "shield",
	Sleep:        "sleep",
	OnHit:        "on_hit",
	Taunt:        "taunt",
	Knockback:    "knockback",
}

// Valid reports whether k belongs to the closed set.
func (k Kind) Valid() bool {
	return k >= None && k < kindCount
}

// String returns the lower-case YAML name of k.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a YAML name to its Kind.
//
// Postcondition: Returns ErrUnknownKind (wrapped) when name is not recognised.
func ParseKind(name string) (Kind, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == lower {
			return Kind(k), nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// UnmarshalYAML decodes a Kind from its string name.
func (k *Kind) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return err
	}
	parsed, err := ParseKind(name)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalYAML encodes a Kind as its string name.
func (k Kind) MarshalYAML() (any, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return k.String(), nil
}
