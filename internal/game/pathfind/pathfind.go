// Package pathfind defines the polled path engine contract used by NPC
// movement and provides a straight-line reference engine.
package pathfind

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/npcai/internal/game/world"
)

// ErrUnknownResult is returned when a Result outside the closed set is
// observed.
var ErrUnknownResult = errors.New("pathfind: unknown result")

// Result is the closed set of outcomes of one Engine.Update poll.
type Result int

// Path results.
const (
	// Success means a step is available from Move.
	Success Result = iota
	// OutOfRange means the destination is too far to search.
	OutOfRange
	// NoPathToTarget means the destination cannot be reached.
	NoPathToTarget
	// Failure means the search failed.
	Failure
	// Wait means no result is ready yet; poll again next tick.
	Wait
)

// String returns the name of r.
func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case OutOfRange:
		return "out_of_range"
	case NoPathToTarget:
		return "no_path_to_target"
	case Failure:
		return "failure"
	case Wait:
		return "wait"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Check returns a wrapped ErrUnknownResult when r is outside the closed set.
func (r Result) Check() error {
	if r < Success || r > Wait {
		return fmt.Errorf("%w: %d", ErrUnknownResult, int(r))
	}
	return nil
}

// Engine is a path search polled once per tick by its owner. SetTarget issues
// or cancels a request; Update advances it and reports the outcome; Move
// returns the next step after a Success; PathFailed reports that the step
// could not be taken.
//
// An Engine is owned by a single agent and is not required to be safe for
// concurrent use.
type Engine interface {
	SetTarget(target *world.Position)
	Target() *world.Position
	Update(now int64) Result
	Move() world.Direction
	PathFailed(now int64)
}
