package world

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Unreachable is the distance reported between positions that cannot see each
// other: different instances, or maps that do not surround each other.
const Unreachable = 9999

type registered struct {
	entity Entity
	seq    uint64
}

// Registry is the spatial index of the world: the map grid plus every live
// entity. Entity queries return results in registration order.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	width    int
	height   int
	maps     map[string]*Map
	grid     map[Tile]string
	entities map[uuid.UUID]registered
	seq      uint64
}

// NewRegistry creates a Registry from the given maps. Every map is width by
// height tiles.
//
// Precondition: width and height must be >= 1.
// Postcondition: Returns a Registry with every map indexed by ID and grid cell,
// or an error on a duplicate map ID or grid cell.
func NewRegistry(maps []*Map, width, height int) (*Registry, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("map dimensions must be >= 1, got %dx%d", width, height)
	}
	r := &Registry{
		width:    width,
		height:   height,
		maps:     make(map[string]*Map, len(maps)),
		grid:     make(map[Tile]string, len(maps)),
		entities: make(map[uuid.UUID]registered),
	}
	for _, m := range maps {
		if _, exists := r.maps[m.ID]; exists {
			return nil, fmt.Errorf("duplicate map ID: %q", m.ID)
		}
		cell := Tile{X: m.GridX, Y: m.GridY}
		if other, exists := r.grid[cell]; exists {
			return nil, fmt.Errorf("maps %q and %q share grid cell (%d,%d)", other, m.ID, cell.X, cell.Y)
		}
		r.maps[m.ID] = m
		r.grid[cell] = m.ID
	}
	return r, nil
}

// Dimensions returns the tile width and height shared by every map.
func (r *Registry) Dimensions() (width, height int) {
	return r.width, r.height
}

// Map returns the map with the given ID.
//
// Postcondition: Returns (map, true) if found, or (nil, false) otherwise.
func (r *Registry) Map(id string) (*Map, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.maps[id]
	return m, ok
}

// MapCount returns the number of loaded maps.
func (r *Registry) MapCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.maps)
}

// AllMaps returns all loaded maps ordered by ID.
//
// Postcondition: Returns a non-nil slice; may be empty.
func (r *Registry) AllMaps() []*Map {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Map, 0, len(r.maps))
	for _, m := range r.maps {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *Map) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Add registers e in the spatial index.
//
// Precondition: e must be non-nil and positioned on a known map.
// Postcondition: Get(e.ID()) returns e. Re-adding an entity keeps its original order.
func (r *Registry) Add(e Entity) error {
	if e == nil {
		return fmt.Errorf("Registry.Add: entity must not be nil")
	}
	pos := e.Position()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.maps[pos.MapID]; !ok {
		return fmt.Errorf("Registry.Add: entity %s on unknown map %q", e.ID(), pos.MapID)
	}
	if existing, ok := r.entities[e.ID()]; ok {
		existing.entity = e
		r.entities[e.ID()] = existing
		return nil
	}
	r.seq++
	r.entities[e.ID()] = registered{entity: e, seq: r.seq}
	return nil
}

// Remove drops the entity with the given ID from the index.
//
// Postcondition: Returns true if the entity was present.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entities[id]
	delete(r.entities, id)
	return ok
}

// Get returns the entity with the given ID.
func (r *Registry) Get(id uuid.UUID) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entities[id]
	return reg.entity, ok
}

// EntityCount returns the number of registered entities.
func (r *Registry) EntityCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// EntitiesIn returns the entities currently on mapID in the given instance,
// dead ones included.
//
// Postcondition: Returns a non-nil slice in registration order.
func (r *Registry) EntitiesIn(mapID string, instance uuid.UUID) []Entity {
	return r.collect(func(p Position) bool {
		return p.MapID == mapID && p.Instance == instance
	})
}

// Surrounding returns the entities on pos's map and every map surrounding it,
// in pos's instance.
//
// Postcondition: Returns a non-nil slice in registration order.
func (r *Registry) Surrounding(pos Position) []Entity {
	near := make(map[string]bool, 9)
	for _, id := range r.SurroundingMaps(pos.MapID) {
		near[id] = true
	}
	return r.collect(func(p Position) bool {
		return p.Instance == pos.Instance && near[p.MapID]
	})
}

func (r *Registry) collect(match func(Position) bool) []Entity {
	r.mu.RLock()
	found := make([]registered, 0, len(r.entities))
	for _, reg := range r.entities {
		if match(reg.entity.Position()) {
			found = append(found, reg)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(found, func(a, b registered) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	out := make([]Entity, len(found))
	for i, reg := range found {
		out[i] = reg.entity
	}
	return out
}

// SurroundingMaps returns mapID followed by the IDs of every map occupying one
// of the eight neighbouring grid cells.
//
// Postcondition: Returns nil when mapID is unknown.
func (r *Registry) SurroundingMaps(mapID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.maps[mapID]
	if !ok {
		return nil
	}
	out := []string{mapID}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if id, ok := r.grid[Tile{X: m.GridX + dx, Y: m.GridY + dy}]; ok {
				out = append(out, id)
			}
		}
	}
	return out
}

// IsSurrounding reports whether other is mapID or one of its neighbours.
func (r *Registry) IsSurrounding(mapID, other string) bool {
	return slices.Contains(r.SurroundingMaps(mapID), other)
}

// Offset returns the tile offset from one position to another.
//
// Postcondition: ok is false when the positions are in different instances or
// on maps that do not surround each other.
func (r *Registry) Offset(from, to Position) (dx, dy int, ok bool) {
	if from.Instance != to.Instance || !r.IsSurrounding(from.MapID, to.MapID) {
		return 0, 0, false
	}
	r.mu.RLock()
	a, b := r.maps[from.MapID], r.maps[to.MapID]
	r.mu.RUnlock()
	ax, ay := a.GridX*r.width+from.X, a.GridY*r.height+from.Y
	bx, by := b.GridX*r.width+to.X, b.GridY*r.height+to.Y
	return bx - ax, by - ay, true
}

// Distance returns the Euclidean tile distance between two positions,
// truncated to an integer, or Unreachable.
func (r *Registry) Distance(from, to Position) int {
	dx, dy, ok := r.Offset(from, to)
	if !ok {
		return Unreachable
	}
	return int(math.Sqrt(float64(dx*dx + dy*dy)))
}

// Translate moves pos by (dx, dy) tiles, crossing onto neighbouring maps.
//
// Postcondition: ok is false when the destination lies on no loaded map.
func (r *Registry) Translate(pos Position, dx, dy int) (Position, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.maps[pos.MapID]
	if !ok {
		return Position{}, false
	}
	gx := m.GridX*r.width + pos.X + dx
	gy := m.GridY*r.height + pos.Y + dy
	cell := Tile{X: floorDiv(gx, r.width), Y: floorDiv(gy, r.height)}
	id, ok := r.grid[cell]
	if !ok {
		return Position{}, false
	}
	out := pos
	out.MapID = id
	out.X = gx - cell.X*r.width
	out.Y = gy - cell.Y*r.height
	return out, true
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// TileAt classifies the tile at pos for an entity identified by self. Living
// players, NPCs and resources other than self occupy their tile.
func (r *Registry) TileAt(pos Position, self uuid.UUID) TileType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.maps[pos.MapID]
	if !ok || pos.X < 0 || pos.Y < 0 || pos.X >= r.width || pos.Y >= r.height {
		return OutOfBounds
	}
	tile := Tile{X: pos.X, Y: pos.Y}
	if m.Blocked[tile] {
		return Block
	}
	for id, reg := range r.entities {
		if id == self {
			continue
		}
		e := reg.entity
		if e.Kind() == KindProjectile || e.Kind() == KindEvent || e.IsDead() {
			continue
		}
		if e.Position().SameTile(pos) {
			return Occupied
		}
	}
	if m.Slide[tile] {
		return Slide
	}
	return Clear
}

// MovesTo classifies a single step from pos in direction dir.
//
// Postcondition: Returns OutOfBounds when the step leaves the world; otherwise
// the destination position and its TileType.
func (r *Registry) MovesTo(pos Position, dir Direction, self uuid.UUID) (TileType, Position) {
	dx, dy := dir.Delta()
	if dx == 0 && dy == 0 {
		return Block, pos
	}
	dest, ok := r.Translate(pos, dx, dy)
	if !ok {
		return OutOfBounds, pos
	}
	return r.TileAt(dest, self), dest
}
