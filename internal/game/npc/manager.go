package npc

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcai/internal/game/dice"
	"github.com/cory-johannsen/npcai/internal/game/pathfind"
	"github.com/cory-johannsen/npcai/internal/game/world"
)

// ManagerConfig holds the shared collaborators handed to every spawned agent.
type ManagerConfig struct {
	Registry    *world.Registry
	Options     Options
	Templates   []*Template
	Spells      *SpellBook
	Combat      CombatResolver
	Conditions  ConditionEvaluator
	Notifier    Notifier
	Rand        dice.Source
	Logger      *zap.Logger
	Clock       func() int64
	PathOptions []pathfind.DirectOption
}

type managed struct {
	agent *Agent
	seq   uint64
}

// Manager tracks all live NPC agents by ID and resolves peers by map
// instance. All methods are safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	agents    map[uuid.UUID]managed
	templates map[string]*Template
	counter   atomic.Uint64

	cfg ManagerConfig
}

// NewManager creates an empty Manager.
//
// Precondition: cfg.Registry must be non-nil.
// Postcondition: Returns an error when two templates share an ID.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("npc.NewManager: registry must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	m := &Manager{
		agents:    make(map[uuid.UUID]managed),
		templates: make(map[string]*Template, len(cfg.Templates)),
		cfg:       cfg,
	}
	for _, t := range cfg.Templates {
		if _, dup := m.templates[t.ID]; dup {
			return nil, fmt.Errorf("npc template %q: duplicate id", t.ID)
		}
		m.templates[t.ID] = t
	}
	return m, nil
}

// Template returns the template with the given ID.
func (m *Manager) Template(id string) (*Template, bool) {
	t, ok := m.templates[id]
	return t, ok
}

// Templates returns every template sorted by ID.
func (m *Manager) Templates() []*Template {
	out := make([]*Template, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Spawn creates a body for tmpl at pos, registers it in the spatial index and
// starts tracking its agent.
//
// Precondition: tmpl must be non-nil; pos must be on a loaded map.
// Postcondition: Returns the new agent, or an error when the map is unknown.
func (m *Manager) Spawn(tmpl *Template, pos world.Position) (*Agent, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("npc.Manager.Spawn: tmpl must not be nil")
	}
	n := m.counter.Add(1)
	var vitals [world.VitalCount]int
	vitals[world.Health] = tmpl.MaxHealth
	vitals[world.Mana] = tmpl.MaxMana
	body := world.NewActor(world.ActorConfig{
		Name:           fmt.Sprintf("%s-%d", tmpl.Name, n),
		Kind:           world.KindNpc,
		TemplateID:     tmpl.ID,
		Position:       pos,
		Direction:      world.Down,
		MaxVitals:      vitals,
		MoveIntervalMs: tmpl.MoveIntervalMs,
	})
	if err := m.cfg.Registry.Add(body); err != nil {
		return nil, fmt.Errorf("spawning %q: %w", tmpl.ID, err)
	}

	agent := NewAgent(AgentConfig{
		Template:   tmpl,
		Options:    m.cfg.Options,
		Body:       body,
		Registry:   m.cfg.Registry,
		Path:       pathfind.NewDirect(m.cfg.Registry, body, m.cfg.PathOptions...),
		Spells:     m.cfg.Spells,
		Combat:     m.cfg.Combat,
		Conditions: m.cfg.Conditions,
		Directory:  m,
		Notifier:   m.cfg.Notifier,
		Rand:       m.cfg.Rand,
		Logger:     m.cfg.Logger,
		Clock:      m.cfg.Clock,
	})

	m.mu.Lock()
	m.agents[agent.ID()] = managed{agent: agent, seq: n}
	m.mu.Unlock()

	m.cfg.Logger.Debug("npc spawned",
		zap.String("npc_id", agent.ID().String()),
		zap.String("template", tmpl.ID),
		zap.String("position", pos.String()),
	)
	return agent, nil
}

// Despawn stops tracking the agent, removes its body from the spatial index
// and drops it from every other agent's threat table.
//
// Postcondition: Returns an error if the agent is not found.
func (m *Manager) Despawn(id uuid.UUID) error {
	m.mu.Lock()
	_, ok := m.agents[id]
	delete(m.agents, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("npc %s not found", id)
	}
	m.cfg.Registry.Remove(id)
	for _, other := range m.All() {
		other.threat.RemoveAttacker(id)
	}
	return nil
}

// Get returns the agent with the given ID.
//
// Postcondition: Returns (agent, true) if found, or (nil, false) otherwise.
func (m *Manager) Get(id uuid.UUID) (*Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.agents[id]
	return e.agent, ok
}

// Count returns the number of tracked agents.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.agents)
}

// All returns every tracked agent in spawn order.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (m *Manager) All() []*Agent {
	return m.collect(func(*Agent) bool { return true })
}

// AgentsIn returns the agents whose body is on mapID in instance, in spawn order.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (m *Manager) AgentsIn(mapID string, instance uuid.UUID) []*Agent {
	return m.collect(func(a *Agent) bool {
		p := a.body.Position()
		return p.MapID == mapID && p.Instance == instance
	})
}

func (m *Manager) collect(match func(*Agent) bool) []*Agent {
	m.mu.RLock()
	found := make([]managed, 0, len(m.agents))
	for _, e := range m.agents {
		if match(e.agent) {
			found = append(found, e)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(found, func(a, b managed) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	out := make([]*Agent, len(found))
	for i, e := range found {
		out[i] = e.agent
	}
	return out
}
