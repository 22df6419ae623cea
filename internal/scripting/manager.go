package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcai/internal/game/dice"
	"github.com/cory-johannsen/npcai/internal/game/world"
)

// GlobalScope is the reserved scope for shared scripts loaded via LoadGlobal.
// Hooks a scope does not define are looked up here.
const GlobalScope = "__global__"

// ErrNotBoolean is returned by Evaluate when a hook returns a non-boolean value.
var ErrNotBoolean = errors.New("scripting: hook did not return a boolean")

// vm is one sandboxed LState. LStates are single-threaded, so every call
// holds mu.
type vm struct {
	mu        sync.Mutex
	L         *lua.LState
	instLimit int
	closed    bool
}

// Manager owns one sandboxed VM per scope (a map ID, or GlobalScope) and
// dispatches hook calls to them.
//
// Manager is safe for concurrent use. Calls into the same VM are serialized;
// different VMs run concurrently.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	roller *dice.Roller
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no VMs.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	return &Manager{
		vms:    make(map[string]*vm),
		roller: roller,
		logger: logger,
	}
}

// LoadScope creates a sandboxed VM for scope, registers the engine module,
// then executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: scope must be non-empty; scriptDir must be a readable directory.
// Postcondition: The scope's VM is replaced; returns error on Lua load failure.
func (m *Manager) LoadScope(scope, scriptDir string, instLimit int) error {
	if scope == "" {
		return fmt.Errorf("scripting: scope must not be empty")
	}
	L := NewSandboxedState()
	m.RegisterModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, scope, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		release := limitInstructions(L, instLimit)
		err := L.DoFile(path)
		release()
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, scope, err)
		}
	}

	m.mu.Lock()
	old := m.vms[scope]
	m.vms[scope] = &vm{L: L, instLimit: instLimit}
	m.mu.Unlock()

	if old != nil {
		old.close()
	}
	m.logger.Info("scripts loaded",
		zap.String("scope", scope),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// LoadGlobal loads the shared VM used as the fallback for every scope.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.LoadScope(GlobalScope, scriptDir, instLimit)
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for scope, v := range m.vms {
		v.close()
		delete(m.vms, scope)
	}
}

func (v *vm) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.L.Close()
	v.closed = true
}

// HasHook reports whether hook is defined as a function in scope's VM or the
// global VM.
func (m *Manager) HasHook(scope, hook string) bool {
	v, _ := m.resolve(scope, hook)
	return v != nil
}

// resolve returns the VM defining hook: scope's VM first, then the global
// VM. loaded is false when neither VM exists.
func (m *Manager) resolve(scope, hook string) (v *vm, loaded bool) {
	m.mu.RLock()
	candidates := []*vm{m.vms[scope], m.vms[GlobalScope]}
	m.mu.RUnlock()
	for _, c := range candidates {
		if c == nil {
			continue
		}
		loaded = true
		c.mu.Lock()
		defined := !c.closed && c.L.GetGlobal(hook).Type() == lua.LTFunction
		c.mu.Unlock()
		if defined {
			return c, true
		}
	}
	return nil, loaded
}

// CallHook calls the named Lua global function in scope's VM, falling back to
// the global VM when scope has no VM or does not define hook. Returns
// (LNil, nil) if the hook is not defined anywhere. Lua runtime errors,
// including an exhausted instruction budget, are logged at Warn level and
// returned.
//
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error) {
	v, loaded := m.resolve(scope, hook)
	if v == nil {
		if !loaded {
			m.logger.Debug("no script VM for scope",
				zap.String("scope", scope),
				zap.String("hook", hook),
			)
		}
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	return m.call(v, scope, hook, args...)
}

// call runs hook in v.
//
// Precondition: v.mu is held.
func (m *Manager) call(v *vm, scope, hook string, args ...lua.LValue) (lua.LValue, error) {
	if v.closed {
		return lua.LNil, nil
	}
	fn := v.L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, nil
	}

	release := limitInstructions(v.L, v.instLimit)
	defer release()
	if err := v.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("Lua runtime error",
			zap.String("scope", scope),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, fmt.Errorf("scripting: calling %q in %q: %w", hook, scope, err)
	}

	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// Evaluate runs a condition hook with snapshots of self (the NPC) and subject
// (the entity being judged) and returns its boolean result. The hook runs in
// the VM of self's map, falling back to the global VM when that map does not
// define it.
//
// Postcondition: An undefined hook evaluates to false with a nil error.
// A non-boolean return yields ErrNotBoolean.
func (m *Manager) Evaluate(hook string, self, subject world.Entity) (bool, error) {
	scope := GlobalScope
	if self != nil {
		scope = self.Position().MapID
	}
	v, _ := m.resolve(scope, hook)
	if v == nil {
		return false, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false, nil
	}
	ret, err := m.call(v, scope, hook, entityTable(v.L, self), entityTable(v.L, subject))
	if err != nil {
		return false, err
	}
	if b, ok := ret.(lua.LBool); ok {
		return bool(b), nil
	}
	return false, fmt.Errorf("%w: %q returned %s", ErrNotBoolean, hook, ret.Type())
}
