package npc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcai/internal/game/condition"
	"github.com/cory-johannsen/npcai/internal/game/dice"
	"github.com/cory-johannsen/npcai/internal/game/pathfind"
	"github.com/cory-johannsen/npcai/internal/game/world"
)

// Lifecycle states reported by Agent.State.
const (
	StateIdle      = "idle"
	StateEngaged   = "engaged"
	StateResetting = "resetting"
)

const (
	eventEngage = "engage"
	eventLeash  = "leash"
	eventSettle = "settle"
)

// AgentConfig holds the collaborators of an Agent.
type AgentConfig struct {
	Template *Template
	Options  Options
	Body     Body
	Registry *world.Registry
	Path     pathfind.Engine

	// Optional collaborators. Nil values fall back to inert defaults.
	Spells     *SpellBook
	Combat     CombatResolver
	Conditions ConditionEvaluator
	Directory  Directory
	Notifier   Notifier
	Rand       dice.Source
	Logger     *zap.Logger
	// Clock supplies the time used by operations invoked outside Update.
	Clock func() int64
}

type requestKind int

const (
	requestAssign requestKind = iota + 1
	requestAttacked
)

type request struct {
	kind   requestKind
	entity world.Entity
}

type pendingCast struct {
	spell  *Spell
	target world.Entity
	until  int64
}

// Agent is the per-NPC combat and movement controller. Update drives it once
// per simulation tick; OnDamaged and the swarm alert may be called from any
// goroutine.
type Agent struct {
	guard TickGuard
	mu    sync.Mutex

	id       uuid.UUID
	template *Template
	opts     Options
	body     Body
	registry *world.Registry
	path     pathfind.Engine
	spells   *SpellBook
	combat   CombatResolver
	cond     ConditionEvaluator
	peers    Directory
	notifier Notifier
	rng      dice.Source
	logger   *zap.Logger
	clock    func() int64

	threat *ThreatTable
	aggro  AggroCenterTracker
	state  *fsm.FSM

	target    world.Entity
	hasTarget atomic.Bool
	resetting bool
	// reengaged holds off the leash while a target picked up mid-reset stays
	// inside the leash radius.
	reengaged bool

	resetCounter      int
	lastResetDistance int
	targetFailCounter int
	moveRange         int
	wander            *world.Position
	cast              *pendingCast

	nextCastEligibleAt int64
	nextRandomActionAt int64
	nextTargetSearchAt int64
	combatTimerAt      int64
	nextRegenAt        int64

	inboxMu      sync.Mutex
	inbox        []request
	lastAttacker world.Entity

	died atomic.Bool
}

// NewAgent creates an Agent for an already-spawned body.
//
// Precondition: cfg.Template, cfg.Body, cfg.Registry and cfg.Path must be non-nil.
// Postcondition: The agent is idle with an empty threat table.
func NewAgent(cfg AgentConfig) *Agent {
	if cfg.Template == nil || cfg.Body == nil || cfg.Registry == nil || cfg.Path == nil {
		panic("npc.NewAgent: template, body, registry and path must not be nil")
	}
	a := &Agent{
		id:       cfg.Body.ID(),
		template: cfg.Template,
		opts:     cfg.Options,
		body:     cfg.Body,
		registry: cfg.Registry,
		path:     cfg.Path,
		spells:   cfg.Spells,
		combat:   cfg.Combat,
		cond:     cfg.Conditions,
		peers:    cfg.Directory,
		notifier: cfg.Notifier,
		rng:      cfg.Rand,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		threat:   NewThreatTable(),
	}
	if a.combat == nil {
		a.combat = nopResolver{}
	}
	if a.peers == nil {
		a.peers = nopDirectory{}
	}
	if a.notifier == nil {
		a.notifier = NotifierFunc(func(Event) {})
	}
	if a.rng == nil {
		a.rng = dice.NewCryptoSource()
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.clock == nil {
		a.clock = func() int64 { return time.Now().UnixMilli() }
	}
	a.logger = a.logger.With(
		zap.String("npc_id", a.id.String()),
		zap.String("template", a.template.ID),
	)
	a.moveRange = dice.Between(a.rng, a.template.SightRange/2, a.template.SightRange)
	a.state = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventEngage, Src: []string{StateIdle, StateResetting}, Dst: StateEngaged},
			{Name: eventLeash, Src: []string{StateIdle, StateEngaged}, Dst: StateResetting},
			{Name: eventSettle, Src: []string{StateEngaged, StateResetting}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				a.logger.Debug("npc state changed",
					zap.String("from", e.Src),
					zap.String("to", e.Dst),
				)
			},
		},
	)
	return a
}

func (a *Agent) ID() uuid.UUID         { return a.id }
func (a *Agent) Template() *Template   { return a.template }
func (a *Agent) Body() Body            { return a.body }
func (a *Agent) Options() Options      { return a.opts }
func (a *Agent) Threat() *ThreatTable  { return a.threat }
func (a *Agent) Path() pathfind.Engine { return a.path }
func (a *Agent) SkippedTicks() uint64  { return a.guard.Skipped() }
func (a *Agent) Dead() bool            { return a.died.Load() }

// AggroCenter returns the leash anchor and whether one is set.
func (a *Agent) AggroCenter() (world.Position, bool) { return a.aggro.Center() }

// HasTarget reports whether the agent currently has a target. It never blocks.
func (a *Agent) HasTarget() bool { return a.hasTarget.Load() }

// Target returns the current target, or nil.
func (a *Agent) Target() world.Entity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target
}

// Resetting reports whether the agent is walking back to its aggro center.
func (a *Agent) Resetting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resetting
}

// State returns the lifecycle state: idle, engaged or resetting.
func (a *Agent) State() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Current()
}

// TargetFailures returns the consecutive failed target searches.
func (a *Agent) TargetFailures() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.targetFailCounter
}

// NextCastEligibleAt returns the earliest time the next spell may start.
func (a *Agent) NextCastEligibleAt() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nextCastEligibleAt
}

// syncState moves the state machine to match the decision fields.
func (a *Agent) syncState() {
	want, event := StateIdle, eventSettle
	switch {
	case a.resetting:
		want, event = StateResetting, eventLeash
	case a.target != nil:
		want, event = StateEngaged, eventEngage
	}
	if a.state.Current() == want {
		return
	}
	if err := a.state.Event(context.Background(), event); err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			a.logger.Warn("npc state transition rejected",
				zap.String("event", event),
				zap.String("state", a.state.Current()),
				zap.Error(err),
			)
		}
	}
}

func (a *Agent) emit(ev Event) {
	ev.NpcID = a.id
	ev.Template = a.template.ID
	if ev.Position == (world.Position{}) {
		ev.Position = a.body.Position()
	}
	a.notifier.Notify(ev)
}

// OnDamaged records a hit taken from attacker. It is safe to call from any
// goroutine, including another agent's tick: the target reaction happens on
// this agent's next Update.
//
// Precondition: attacker must be non-nil.
func (a *Agent) OnDamaged(attacker world.Entity, amount int) {
	if attacker == nil || a.died.Load() {
		return
	}
	a.threat.AddDamage(attacker, int64(amount))
	a.enqueue(request{kind: requestAttacked, entity: attacker})
	if a.template.Swarm {
		a.NotifySwarm(attacker)
	}
}

func (a *Agent) enqueue(r request) {
	a.inboxMu.Lock()
	a.inbox = append(a.inbox, r)
	if r.kind == requestAttacked {
		a.lastAttacker = r.entity
	}
	a.inboxMu.Unlock()
}

func (a *Agent) takeInbox() []request {
	a.inboxMu.Lock()
	defer a.inboxMu.Unlock()
	out := a.inbox
	a.inbox = nil
	return out
}

func (a *Agent) killer() world.Entity {
	a.inboxMu.Lock()
	defer a.inboxMu.Unlock()
	return a.lastAttacker
}

func (a *Agent) drainInbox(now int64) {
	for _, r := range a.takeInbox() {
		switch r.kind {
		case requestAssign:
			if a.target == nil {
				a.assignTarget(now, r.entity)
			}
		case requestAttacked:
			if !a.resetting {
				a.combatTimerAt = now + a.opts.CombatTimeMs
			}
			if a.resetting {
				a.tryFindNewTarget(now, uuid.Nil, true, r.entity)
			} else if a.target == nil {
				a.assignTarget(now, r.entity)
			}
		}
	}
}

// Update runs one simulation tick for the agent. A tick that overlaps a tick
// already in progress is skipped.
//
// Postcondition: Returns a non-nil error only for closed-set violations
// (unknown status kind, path result or movement mode); the tick is aborted.
func (a *Agent) Update(now int64) error {
	if !a.guard.TryAcquire() {
		return nil
	}
	defer a.guard.Release()

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.update(now); err != nil {
		return fmt.Errorf("npc %s: %w", a.id, err)
	}
	return nil
}

func (a *Agent) update(now int64) error {
	if a.died.Load() {
		return nil
	}
	if a.body.IsDead() {
		a.die(now, a.killer())
		return nil
	}

	a.drainInbox(now)
	a.completeCast(now)
	a.body.ExpireStatuses(now)

	stunned, err := condition.AnyOf(a.body.Statuses(), condition.StunnedOrAsleep)
	if err != nil {
		return err
	}
	if stunned {
		return nil
	}
	a.regenTick(now)

	if !a.body.CanMove(now) {
		return nil
	}
	fleeing := a.isFleeing()
	target := a.target

	if target != nil && a.opts.ResetIfCombatTimerExceeded && now > a.combatTimerAt {
		if a.checkForResetLocation(now, true) {
			return nil
		}
	}

	if a.resetting {
		a.stepReset(now)
		target = a.target
	}

	if target != nil && (target.IsDead() || a.registry.Distance(a.body.Position(), target.Position()) > a.opts.MapWidth*2) {
		a.tryFindNewTarget(now, target.ID(), false, nil)
		target = a.target
	}

	if target == nil {
		a.tryFindNewTarget(now, uuid.Nil, false, nil)
		target = a.target
	}

	var targetPos *world.Position
	if target != nil {
		ok, err := a.canAttack(target, nil)
		if err != nil {
			return err
		}
		if !target.IsDead() && ok && !world.HasStealth(target) {
			p := target.Position()
			targetPos = &p
		}
	}

	if targetPos != nil && !a.registry.IsSurrounding(a.body.Position().MapID, targetPos.MapID) {
		targetPos = nil
		a.wander = nil
	}
	if targetPos != nil {
		if pt := a.path.Target(); pt != nil && !pt.SameTile(*targetPos) {
			a.path.SetTarget(nil)
		}
		if a.path.Target() == nil {
			a.path.SetTarget(targetPos)
		}
	}

	waiting := false
	if pt := a.path.Target(); pt != nil && a.template.Movement != Static {
		if err := a.tryCastSpells(now); err != nil {
			return err
		}
		if a.needsPath(*pt) {
			outcome, err := a.followPath(now, fleeing)
			if err != nil {
				return err
			}
			switch outcome {
			case pathAbandoned:
				targetPos = nil
			case pathWaiting:
				waiting = true
			}
		} else if err := a.engageAdjacent(now, fleeing); err != nil {
			return err
		}
	}

	a.checkForResetLocation(now, false)

	if targetPos != nil || waiting || a.resetting {
		return nil
	}
	return a.idle(now, fleeing)
}

// completeCast applies a cast whose cast time has elapsed.
func (a *Agent) completeCast(now int64) {
	if a.cast == nil || now < a.cast.until {
		return
	}
	c := a.cast
	a.cast = nil
	a.combat.Cast(a, c.spell, c.target, now)
}

func (a *Agent) isFleeing() bool {
	if a.template.FleeHealthPercentage <= 0 {
		return false
	}
	maxHealth := a.body.MaxVital(world.Health)
	return float64(a.body.Vital(world.Health)) < float64(maxHealth)*float64(a.template.FleeHealthPercentage)/100
}
