package pathfind

import (
	"github.com/google/uuid"

	"github.com/cory-johannsen/npcai/internal/game/world"
)

const (
	// DefaultMaxRange is the farthest destination Direct will path toward.
	DefaultMaxRange = 64
	// DefaultRetryDelayMs is how long Direct waits after a failed step.
	DefaultRetryDelayMs = 500
	// maxConsecutiveFailures is the number of failed steps after which Direct
	// reports Failure instead of retrying.
	maxConsecutiveFailures = 5
)

// Mover is the part of an entity a Direct engine needs: who it is and where.
type Mover interface {
	ID() uuid.UUID
	Position() world.Position
}

// Direct steps straight toward its target, sidestepping to an adjacent
// direction when the straight step is obstructed.
type Direct struct {
	registry     *world.Registry
	mover        Mover
	maxRange     int
	retryDelayMs int64

	target    *world.Position
	move      world.Direction
	waitUntil int64
	failures  int
}

// DirectOption configures a Direct engine.
type DirectOption func(*Direct)

// WithMaxRange sets the farthest destination the engine searches toward.
func WithMaxRange(tiles int) DirectOption {
	return func(d *Direct) { d.maxRange = tiles }
}

// WithRetryDelay sets the wait after a failed step.
func WithRetryDelay(ms int64) DirectOption {
	return func(d *Direct) { d.retryDelayMs = ms }
}

// NewDirect creates a Direct engine for mover.
//
// Precondition: registry and mover must be non-nil.
func NewDirect(registry *world.Registry, mover Mover, opts ...DirectOption) *Direct {
	if registry == nil || mover == nil {
		panic("pathfind.NewDirect: registry and mover must not be nil")
	}
	d := &Direct{
		registry:     registry,
		mover:        mover,
		maxRange:     DefaultMaxRange,
		retryDelayMs: DefaultRetryDelayMs,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetTarget replaces the current request. nil cancels it.
func (d *Direct) SetTarget(target *world.Position) {
	if target == nil {
		d.target = nil
	} else {
		t := *target
		d.target = &t
	}
	d.move = world.None
	d.failures = 0
	d.waitUntil = 0
}

// Target returns a copy of the requested destination, or nil.
func (d *Direct) Target() *world.Position {
	if d.target == nil {
		return nil
	}
	t := *d.target
	return &t
}

// Move returns the step computed by the last successful Update.
func (d *Direct) Move() world.Direction {
	return d.move
}

// PathFailed delays the next search and counts the failure.
func (d *Direct) PathFailed(now int64) {
	d.failures++
	d.waitUntil = now + d.retryDelayMs
}

// Update computes the next step toward the target.
//
// Postcondition: On Success, Move returns world.None only when the mover is
// already on the target tile.
func (d *Direct) Update(now int64) Result {
	d.move = world.None
	if d.target == nil {
		return Failure
	}
	if now < d.waitUntil {
		return Wait
	}
	if d.failures >= maxConsecutiveFailures {
		d.failures = 0
		return Failure
	}

	from := d.mover.Position()
	dx, dy, ok := d.registry.Offset(from, *d.target)
	if !ok {
		return NoPathToTarget
	}
	if d.registry.Distance(from, *d.target) > d.maxRange {
		return OutOfRange
	}
	if dx == 0 && dy == 0 {
		return Success
	}

	straight := world.DirectionFor(dx, dy)
	for _, dir := range candidates(straight, dx, dy) {
		tt, _ := d.registry.MovesTo(from, dir, d.mover.ID())
		if tt.Passable() {
			d.move = dir
			return Success
		}
	}
	return NoPathToTarget
}

// candidates lists the straight step followed by the single-axis steps that
// still make progress along (dx, dy).
func candidates(straight world.Direction, dx, dy int) []world.Direction {
	out := []world.Direction{straight}
	if dx != 0 && dy != 0 {
		out = append(out, world.DirectionFor(dx, 0), world.DirectionFor(0, dy))
	}
	switch straight {
	case world.Up, world.Down:
		out = append(out, world.DirectionFor(-1, dy), world.DirectionFor(1, dy))
	case world.Left, world.Right:
		out = append(out, world.DirectionFor(dx, -1), world.DirectionFor(dx, 1))
	}
	return out
}
