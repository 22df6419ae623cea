package npc

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cory-johannsen/npcai/internal/game/condition"
	"github.com/cory-johannsen/npcai/internal/game/dice"
	"github.com/cory-johannsen/npcai/internal/game/pathfind"
	"github.com/cory-johannsen/npcai/internal/game/world"
)

type pathOutcome int

const (
	pathStepped pathOutcome = iota
	pathAbandoned
	pathWaiting
)

// needsPath reports whether the agent still has to walk toward dest: combat
// pathing stops one tile short, a reset walks all the way onto the center.
func (a *Agent) needsPath(dest world.Position) bool {
	if !a.resetting {
		return !a.isOneBlockAway(dest)
	}
	center, ok := a.aggro.Center()
	return ok && a.registry.Distance(a.body.Position(), center) != 0
}

// followPath polls the path engine and takes the step it offers.
func (a *Agent) followPath(now int64, fleeing bool) (pathOutcome, error) {
	res := a.path.Update(now)
	if err := res.Check(); err != nil {
		return pathAbandoned, err
	}
	switch res {
	case pathfind.Success:
		dir := a.path.Move()
		if dir == world.None {
			return pathStepped, nil
		}
		if fleeing {
			dir = dir.Mirror()
		}
		dest, ok, err := a.canMoveTo(dir)
		if err != nil {
			return pathAbandoned, err
		}
		if ok {
			a.body.Move(dest, dir, now)
		} else {
			a.path.PathFailed(now)
		}
		if a.resetting {
			if center, ok := a.aggro.Center(); ok && a.registry.Distance(a.body.Position(), center) == 0 {
				a.wander = nil
				a.resetAggroCenter()
			}
		}
		return pathStepped, nil
	case pathfind.OutOfRange, pathfind.NoPathToTarget, pathfind.Failure:
		a.wander = nil
		a.path.SetTarget(nil)
		avoid := uuid.Nil
		if a.target != nil {
			avoid = a.target.ID()
		}
		a.tryFindNewTarget(now, avoid, true, nil)
		return pathAbandoned, nil
	case pathfind.Wait:
		a.wander = nil
		return pathWaiting, nil
	default:
		return pathAbandoned, fmt.Errorf("%w: %d", pathfind.ErrUnknownResult, int(res))
	}
}

// engageAdjacent handles a target one tile away: flee from it, turn to it,
// or swing at it.
func (a *Agent) engageAdjacent(now int64, fleeing bool) error {
	target := a.target
	if target == nil {
		return nil
	}
	if fleeing {
		dir := a.dirTo(target.Position()).Mirror()
		dest, ok, err := a.canMoveTo(dir)
		if err != nil {
			return err
		}
		if ok {
			a.body.Move(dest, dir, now)
			return nil
		}
	}

	dir := a.dirTo(target.Position())
	if dir != world.None && dir != a.body.Direction() {
		a.body.Face(dir)
		return nil
	}
	if _, ok := a.registry.Get(target.ID()); !ok {
		a.wander = nil
		a.tryFindNewTarget(now, uuid.Nil, false, nil)
		return nil
	}
	ok, err := a.canAttack(target, nil)
	if err != nil {
		return err
	}
	if ok {
		a.tryAttack(now, target)
	}
	return nil
}

// movesTo classifies a step in dir, applying the reset and flee rules on top
// of the map's own answer.
func (a *Agent) movesTo(dir world.Direction) (world.TileType, world.Position) {
	tile, dest := a.registry.MovesTo(a.body.Position(), dir, a.id)
	if a.opts.IntangibleDuringReset && a.resetting && tile == world.Occupied {
		tile = world.Clear
	}
	if !tile.Passable() || !a.opts.AllowResetRadius || !a.isFleeing() {
		return tile, dest
	}
	if center, ok := a.aggro.Center(); ok && a.registry.Distance(dest, center) > a.leashRadius() {
		return world.Block, dest
	}
	return tile, dest
}

// canMoveTo reports whether a step in dir is possible now and where it lands.
func (a *Agent) canMoveTo(dir world.Direction) (world.Position, bool, error) {
	tile, dest := a.movesTo(dir)
	if !tile.Passable() {
		return dest, false, nil
	}
	held, err := condition.AnyOf(a.body.Statuses(), condition.PreventsMovement)
	if err != nil {
		return dest, false, err
	}
	return dest, !held, nil
}

// idle runs the template's idle movement when the random-action timer allows.
func (a *Agent) idle(now int64, fleeing bool) error {
	if a.nextRandomActionAt >= now || a.body.IsCasting(now) {
		return nil
	}
	switch a.template.Movement {
	case MoveRandomly:
		if err := a.moveRandomly(now); err != nil {
			return err
		}
	case TurnRandomly:
		a.body.Face(a.randomDirection())
	case StandStill, Static:
	default:
		return fmt.Errorf("%w %q", ErrUnknownMovement, a.template.Movement)
	}

	a.nextRandomActionAt = now + int64(dice.Between(a.rng, 1000, 3000))
	if fleeing {
		a.nextRandomActionAt = now + a.template.MoveIntervalMs
	}
	return nil
}

// moveRandomly picks, or walks toward, a wander destination within the
// move range and takes one random step.
func (a *Agent) moveRandomly(now int64) error {
	pos := a.body.Position()
	switch {
	case a.wander == nil:
		r := dice.Between(a.rng, -a.moveRange, a.moveRange)
		if dest, ok := a.registry.Translate(pos, r, r); ok {
			a.wander = &dest
		}
	case a.isOneBlockAway(*a.wander):
		if pt := a.path.Target(); pt != nil && pt.SameTile(*a.wander) {
			a.path.SetTarget(nil)
		}
		a.wander = nil
	default:
		if pt := a.path.Target(); pt == nil || !pt.SameTile(*a.wander) {
			a.path.SetTarget(a.wander)
		}
	}

	dir := a.randomDirection()
	dest, ok, err := a.canMoveTo(dir)
	if err != nil {
		return err
	}
	if ok {
		a.body.Move(dest, dir, now)
	}
	return nil
}

func (a *Agent) randomDirection() world.Direction {
	return world.Directions[a.rng.Intn(len(world.Directions))]
}

// isOneBlockAway reports whether p is on or next to the agent's tile.
func (a *Agent) isOneBlockAway(p world.Position) bool {
	dx, dy, ok := a.registry.Offset(a.body.Position(), p)
	return ok && abs(dx) <= 1 && abs(dy) <= 1
}

// dirTo returns the direction from the agent toward p, or None when p is on
// the agent's tile or unreachable.
func (a *Agent) dirTo(p world.Position) world.Direction {
	dx, dy, ok := a.registry.Offset(a.body.Position(), p)
	if !ok {
		return world.None
	}
	return world.DirectionFor(dx, dy)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
