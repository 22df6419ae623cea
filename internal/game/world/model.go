// Package world provides the tile-grid world model: maps arranged on a grid,
// positions, directions and the spatial registry of live entities.
package world

import (
	"fmt"

	"github.com/google/uuid"
)

// Direction is one of the eight movement directions, or None.
type Direction int

// Movement directions.
const (
	None Direction = iota
	Up
	Down
	Left
	Right
	UpLeft
	UpRight
	DownLeft
	DownRight
)

// Directions contains the eight movement directions in declaration order.
var Directions = []Direction{Up, Down, Left, Right, UpLeft, UpRight, DownLeft, DownRight}

var directionNames = [...]string{
	None:      "none",
	Up:        "up",
	Down:      "down",
	Left:      "left",
	Right:     "right",
	UpLeft:    "up_left",
	UpRight:   "up_right",
	DownLeft:  "down_left",
	DownRight: "down_right",
}

// String returns the lower-case name of d.
func (d Direction) String() string {
	if d < None || d > DownRight {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

// Delta returns the tile offset of a single step in direction d.
//
// Postcondition: Returns (0, 0) for None or an out-of-range value.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	case UpLeft:
		return -1, -1
	case UpRight:
		return 1, -1
	case DownLeft:
		return -1, 1
	case DownRight:
		return 1, 1
	default:
		return 0, 0
	}
}

// Mirror returns the flee direction for d: Up and Down swap, Left and Right
// swap, and each diagonal swaps with its horizontal counterpart.
//
// Postcondition: Mirror(Mirror(d)) == d; Mirror(None) == None.
func (d Direction) Mirror() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	case UpLeft:
		return UpRight
	case UpRight:
		return UpLeft
	case DownLeft:
		return DownRight
	case DownRight:
		return DownLeft
	default:
		return d
	}
}

// DirectionFor returns the direction of a step along (dx, dy). Any non-zero
// offset on both axes yields a diagonal.
func DirectionFor(dx, dy int) Direction {
	sx, sy := sign(dx), sign(dy)
	switch {
	case sx == 0 && sy == 0:
		return None
	case sx == 0 && sy < 0:
		return Up
	case sx == 0:
		return Down
	case sy == 0 && sx < 0:
		return Left
	case sy == 0:
		return Right
	case sx < 0 && sy < 0:
		return UpLeft
	case sy < 0:
		return UpRight
	case sx < 0:
		return DownLeft
	default:
		return DownRight
	}
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

// Position locates an entity on a tile of a map instance.
type Position struct {
	MapID    string
	Instance uuid.UUID
	X        int
	Y        int
	Z        int
}

// SameTile reports whether p and o name the same tile of the same instance.
func (p Position) SameTile(o Position) bool {
	return p.MapID == o.MapID && p.Instance == o.Instance && p.X == o.X && p.Y == o.Y
}

// String renders p for logs.
func (p Position) String() string {
	return fmt.Sprintf("%s(%d,%d,%d)", p.MapID, p.X, p.Y, p.Z)
}

// Tile is a tile coordinate within one map.
type Tile struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// TileType classifies what a step onto a tile would hit.
type TileType int

// Tile classifications. Values greater than Clear obstruct movement, except Slide.
const (
	Clear TileType = iota
	Slide
	Block
	Occupied
	OutOfBounds
)

// Passable reports whether a step onto a tile of type t is allowed.
func (t TileType) Passable() bool {
	return t == Clear || t == Slide
}

// SpawnConfig defines how many NPCs of a template a map keeps alive at a tile
// and how long to wait before respawning a dead one.
type SpawnConfig struct {
	// Template is the NPC template ID to spawn.
	Template string
	// Tile is the spawn location.
	Tile Tile
	// Count is the maximum number of live NPCs of this template for this spawn.
	Count int
	// RespawnAfter is an optional duration string overriding the template's
	// respawn_delay. Empty means use the template's default.
	RespawnAfter string
}

// Map is one rectangular tile map placed on the world grid. Maps adjacent on
// the grid surround each other; entities see and path across that boundary.
type Map struct {
	// ID uniquely identifies this map.
	ID string
	// Name is the display name of the map.
	Name string
	// GridX and GridY place the map on the world grid.
	GridX int
	GridY int
	// Blocked holds the tiles that can never be entered.
	Blocked map[Tile]bool
	// Slide holds the tiles that are entered by sliding.
	Slide map[Tile]bool
	// Spawns lists the NPC templates that populate this map.
	Spawns []SpawnConfig
}

// Validate checks map invariants against the world's map dimensions.
//
// Postcondition: Returns nil if valid, or an error describing the first violation.
func (m *Map) Validate(width, height int) error {
	if m.ID == "" {
		return fmt.Errorf("map ID must not be empty")
	}
	if m.Name == "" {
		return fmt.Errorf("map %q: name must not be empty", m.ID)
	}
	inside := func(t Tile) bool {
		return t.X >= 0 && t.Y >= 0 && t.X < width && t.Y < height
	}
	for t := range m.Blocked {
		if !inside(t) {
			return fmt.Errorf("map %q: blocked tile (%d,%d) outside %dx%d", m.ID, t.X, t.Y, width, height)
		}
	}
	for t := range m.Slide {
		if !inside(t) {
			return fmt.Errorf("map %q: slide tile (%d,%d) outside %dx%d", m.ID, t.X, t.Y, width, height)
		}
	}
	for i, s := range m.Spawns {
		if s.Template == "" {
			return fmt.Errorf("map %q: spawn %d: template must not be empty", m.ID, i)
		}
		if s.Count < 1 {
			return fmt.Errorf("map %q: spawn %d: count must be >= 1", m.ID, i)
		}
		if !inside(s.Tile) {
			return fmt.Errorf("map %q: spawn %d: tile (%d,%d) outside %dx%d", m.ID, i, s.Tile.X, s.Tile.Y, width, height)
		}
		if m.Blocked[s.Tile] {
			return fmt.Errorf("map %q: spawn %d: tile (%d,%d) is blocked", m.ID, i, s.Tile.X, s.Tile.Y)
		}
	}
	return nil
}
