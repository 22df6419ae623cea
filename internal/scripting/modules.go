package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcai/internal/game/world"
)

// RegisterModules registers the engine Lua table into L:
//
//	engine.log(msg)               logs msg at info level
//	engine.roll(expr)             rolls a dice expression, returns the total
//	engine.has_status(ent, kind)  reports whether an entity table carries a status
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", L.NewFunction(func(L *lua.LState) int {
		m.logger.Info("script", zap.String("msg", L.CheckString(1)))
		return 0
	}))
	L.SetField(engine, "roll", L.NewFunction(func(L *lua.LState) int {
		res, err := m.roller.RollExpr(L.CheckString(1))
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(lua.LNumber(res.Total()))
		return 1
	}))
	L.SetField(engine, "has_status", L.NewFunction(func(L *lua.LState) int {
		ent := L.CheckTable(1)
		kind := L.CheckString(2)
		found := false
		if statuses, ok := L.GetField(ent, "statuses").(*lua.LTable); ok {
			statuses.ForEach(func(_, v lua.LValue) {
				if v.String() == kind {
					found = true
				}
			})
		}
		L.Push(lua.LBool(found))
		return 1
	}))
	L.SetGlobal("engine", engine)
}

// entityTable snapshots e into a Lua table. A nil entity becomes LNil.
//
// Precondition: the caller holds the VM lock for L.
func entityTable(L *lua.LState, e world.Entity) lua.LValue {
	if e == nil {
		return lua.LNil
	}
	pos := e.Position()
	t := L.NewTable()
	t.RawSetString("id", lua.LString(e.ID().String()))
	t.RawSetString("name", lua.LString(e.Name()))
	t.RawSetString("kind", lua.LString(e.Kind().String()))
	t.RawSetString("template", lua.LString(world.TemplateOf(e)))
	t.RawSetString("dead", lua.LBool(e.IsDead()))
	t.RawSetString("map", lua.LString(pos.MapID))
	t.RawSetString("x", lua.LNumber(pos.X))
	t.RawSetString("y", lua.LNumber(pos.Y))

	statuses := L.NewTable()
	for _, s := range e.Statuses() {
		statuses.Append(lua.LString(s.Kind.String()))
	}
	t.RawSetString("statuses", statuses)

	if v, ok := e.(vitals); ok {
		t.RawSetString("health", lua.LNumber(v.Vital(world.Health)))
		t.RawSetString("max_health", lua.LNumber(v.MaxVital(world.Health)))
	}
	return t
}

// vitals is the optional capability of entities that expose health.
type vitals interface {
	Vital(world.Vital) int
	MaxVital(world.Vital) int
}
