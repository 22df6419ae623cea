package npc_test

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcai/internal/game/condition"
	"github.com/cory-johannsen/npcai/internal/game/dice"
	"github.com/cory-johannsen/npcai/internal/game/npc"
	"github.com/cory-johannsen/npcai/internal/game/world"
)

const (
	mapW = 32
	mapH = 26
)

// recorder captures notifications.
type recorder struct {
	mu     sync.Mutex
	events []npc.Event
}

func (r *recorder) Notify(ev npc.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) count(k npc.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == k {
			n++
		}
	}
	return n
}

func (r *recorder) kinds() []npc.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]npc.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) last(k npc.EventKind) (npc.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == k {
			return r.events[i], true
		}
	}
	return npc.Event{}, false
}

// fakeResolver records combat calls.
type fakeResolver struct {
	mu      sync.Mutex
	canCast bool
	casts   []string
	attacks []uuid.UUID
}

func (f *fakeResolver) CanCast(*npc.Agent, *npc.Spell, world.Entity, int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canCast
}

func (f *fakeResolver) Cast(_ *npc.Agent, s *npc.Spell, _ world.Entity, _ int64) {
	f.mu.Lock()
	f.casts = append(f.casts, s.ID)
	f.mu.Unlock()
}

func (f *fakeResolver) Attack(_ *npc.Agent, target world.Entity, _ int64) {
	f.mu.Lock()
	f.attacks = append(f.attacks, target.ID())
	f.mu.Unlock()
}

func (f *fakeResolver) AttackTimeMs(*npc.Agent) int64 { return 1000 }

func (f *fakeResolver) attackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attacks)
}

// hooks is a ConditionEvaluator answering from a fixed table.
type hooks map[string]bool

func (h hooks) Evaluate(hook string, _, _ world.Entity) (bool, error) {
	return h[hook], nil
}

type fixture struct {
	t        *testing.T
	registry *world.Registry
	mgr      *npc.Manager
	rec      *recorder
	combat   *fakeResolver
	now      int64
}

type fixtureOption func(*npc.ManagerConfig)

func withOptions(mutate func(*npc.Options)) fixtureOption {
	return func(c *npc.ManagerConfig) { mutate(&c.Options) }
}

func withRand(src dice.Source) fixtureOption {
	return func(c *npc.ManagerConfig) { c.Rand = src }
}

func withSpells(spells ...*npc.Spell) fixtureOption {
	return func(c *npc.ManagerConfig) {
		book, err := npc.NewSpellBook(spells)
		if err != nil {
			panic(err)
		}
		c.Spells = book
	}
}

func withConditions(h hooks) fixtureOption {
	return func(c *npc.ManagerConfig) { c.Conditions = h }
}

func withBlocked(tiles ...world.Tile) fixtureOption {
	return func(c *npc.ManagerConfig) {
		m, _ := c.Registry.Map("field")
		for _, t := range tiles {
			m.Blocked[t] = true
		}
	}
}

// newFixture builds a single 32x26 map "field" with a manager over templates.
func newFixture(t *testing.T, templates []*npc.Template, opts ...fixtureOption) *fixture {
	t.Helper()
	reg, err := world.NewRegistry([]*world.Map{
		{ID: "field", Name: "Field", Blocked: map[world.Tile]bool{}},
	}, mapW, mapH)
	require.NoError(t, err)

	f := &fixture{t: t, registry: reg, rec: &recorder{}, combat: &fakeResolver{canCast: true}}
	o := npc.DefaultOptions()
	o.ResetIfCombatTimerExceeded = false
	o.ResetVitalsAndStatuses = false
	cfg := npc.ManagerConfig{
		Registry:  reg,
		Options:   o,
		Templates: templates,
		Combat:    f.combat,
		Notifier:  f.rec,
		Rand:      dice.NewSeededSource(7),
		Logger:    zap.NewNop(),
		Clock:     func() int64 { return f.now },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.mgr, err = npc.NewManager(cfg)
	require.NoError(t, err)
	return f
}

func at(x, y int) world.Position {
	return world.Position{MapID: "field", X: x, Y: y}
}

func (f *fixture) spawn(tmpl *npc.Template, x, y int) *npc.Agent {
	f.t.Helper()
	a, err := f.mgr.Spawn(tmpl, at(x, y))
	require.NoError(f.t, err)
	return a
}

func (f *fixture) player(x, y int) *world.Actor {
	f.t.Helper()
	return newPlayerIn(f.t, f.registry, x, y)
}

func newPlayerIn(t *testing.T, reg *world.Registry, x, y int) *world.Actor {
	t.Helper()
	var vitals [world.VitalCount]int
	vitals[world.Health] = 20
	p := world.NewActor(world.ActorConfig{
		Name:      "player",
		Kind:      world.KindPlayer,
		Position:  at(x, y),
		Direction: world.Down,
		MaxVitals: vitals,
	})
	require.NoError(t, reg.Add(p))
	return p
}

func (f *fixture) tick(a *npc.Agent, now int64) {
	f.t.Helper()
	f.now = now
	require.NoError(f.t, a.Update(now))
}

func applyStatus(t *testing.T, e *world.Actor, k condition.Kind, source uuid.UUID) {
	t.Helper()
	require.NoError(t, e.StatusSet().Apply(condition.Status{Kind: k, SourceID: source}))
}

func bodyOf(t *testing.T, a *npc.Agent) *world.Actor {
	t.Helper()
	actor, ok := a.Body().(*world.Actor)
	require.True(t, ok)
	return actor
}

// brute is an aggressive melee template.
func brute() *npc.Template {
	t := &npc.Template{
		ID:          "brute",
		Name:        "Brute",
		Level:       1,
		MaxHealth:   10,
		SightRange:  5,
		ResetRadius: 4,
		Aggressive:  true,
		Movement:    npc.StandStill,
		Damage:      "1d4",
	}
	if err := t.Validate(); err != nil {
		panic(err)
	}
	return t
}

// passive is a non-aggressive template that only fights back.
func passive() *npc.Template {
	t := brute()
	t.ID = "passive"
	t.Name = "Passive"
	t.Aggressive = false
	return t
}
