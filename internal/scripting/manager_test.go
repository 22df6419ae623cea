package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/npcai/internal/game/condition"
	"github.com/cory-johannsen/npcai/internal/game/dice"
	"github.com/cory-johannsen/npcai/internal/game/world"
	"github.com/cory-johannsen/npcai/internal/scripting"
)

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	roller := dice.NewLoggedRoller(dice.NewSeededSource(7), logger)
	mgr := scripting.NewManager(roller, logger)
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func TestManager_LoadScope_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `
		function test_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, mgr.LoadScope("meadow", dir, 0))
	ret, err := mgr.CallHook("meadow", "test_hook", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(7), ret)
	assert.True(t, mgr.HasHook("meadow", "test_hook"))
	assert.False(t, mgr.HasHook("meadow", "other"))
}

func TestManager_LoadScope_Errors(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.Error(t, mgr.LoadScope("", t.TempDir(), 0))
	assert.Error(t, mgr.LoadScope("x", filepath.Join(t.TempDir(), "missing"), 0))
	assert.Error(t, mgr.LoadScope("x", writeTempLua(t, "bad.lua", "function ("), 0))
}

func TestManager_CallHook_MissingHookAndScope(t *testing.T) {
	mgr, logs := newTestManager(t)
	ret, err := mgr.CallHook("nowhere", "some_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterMessage("no script VM for scope").Len())

	require.NoError(t, mgr.LoadScope("meadow", writeTempLua(t, "empty.lua", `-- none`), 0))
	ret, err = mgr.CallHook("meadow", "nonexistent_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_FallsBackToGlobal(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadGlobal(writeTempLua(t, "g.lua", `function shared() return "global" end`), 0))
	ret, err := mgr.CallHook("meadow", "shared")
	require.NoError(t, err)
	assert.Equal(t, lua.LString("global"), ret)
}

func TestManager_CallHook_RuntimeErrorLogsWarn(t *testing.T) {
	mgr, logs := newTestManager(t)
	require.NoError(t, mgr.LoadScope("meadow", writeTempLua(t, "bad.lua", `
		function bad_hook()
			error("intentional error")
		end
	`), 0))
	_, err := mgr.CallHook("meadow", "bad_hook")
	assert.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("Lua runtime error").FilterField(zap.String("hook", "bad_hook")).Len())
}

func TestManager_InstructionLimitIsPerCall(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadScope("meadow", writeTempLua(t, "loop.lua", `
		function spin()
			while true do end
		end
		function count()
			local n = 0
			for i = 1, 100 do n = n + i end
			return n
		end
	`), 1000))

	_, err := mgr.CallHook("meadow", "spin")
	assert.Error(t, err, "infinite loop must be stopped")

	for i := 0; i < 50; i++ {
		ret, err := mgr.CallHook("meadow", "count")
		require.NoError(t, err, "call %d", i)
		assert.Equal(t, lua.LNumber(5050), ret)
	}
}

func TestManager_EngineModule(t *testing.T) {
	mgr, logs := newTestManager(t)
	require.NoError(t, mgr.LoadScope("meadow", writeTempLua(t, "engine.lua", `
		function roll_it() return engine.roll("1d2+4") end
		function say() engine.log("hello") return true end
	`), 0))
	ret, err := mgr.CallHook("meadow", "roll_it")
	require.NoError(t, err)
	assert.Contains(t, []lua.LValue{lua.LNumber(5), lua.LNumber(6)}, ret)

	_, err = mgr.CallHook("meadow", "say")
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("script").Len())
}

func TestManager_Evaluate(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadScope("meadow", writeTempLua(t, "conditions.lua", `
		function wolf_attack_on_sight(self, subject)
			return subject.kind == "player" and not engine.has_status(subject, "stealth")
		end
		function wolf_friend(self, subject)
			return subject.name == "ranger"
		end
		function broken(self, subject)
			return 42
		end
	`), 0))

	wolf := world.NewActor(world.ActorConfig{Name: "wolf", Kind: world.KindNpc, TemplateID: "wolf",
		Position: world.Position{MapID: "meadow"}})
	hero := world.NewActor(world.ActorConfig{Name: "hero", Kind: world.KindPlayer,
		MaxVitals: [world.VitalCount]int{world.Health: 10}})
	ranger := world.NewActor(world.ActorConfig{Name: "ranger", Kind: world.KindPlayer})

	ok, err := mgr.Evaluate("wolf_attack_on_sight", wolf, hero)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, hero.StatusSet().Apply(condition.Status{Kind: condition.Stealth}))
	ok, err = mgr.Evaluate("wolf_attack_on_sight", wolf, hero)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = mgr.Evaluate("wolf_friend", wolf, ranger)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mgr.Evaluate("undefined_hook", wolf, ranger)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = mgr.Evaluate("broken", wolf, ranger)
	assert.ErrorIs(t, err, scripting.ErrNotBoolean)
}

func TestManager_ConcurrentCalls(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadScope("meadow", writeTempLua(t, "add.lua", `function add(a, b) return a + b end`), 0))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ret, err := mgr.CallHook("meadow", "add", lua.LNumber(i), lua.LNumber(1))
			assert.NoError(t, err)
			assert.Equal(t, lua.LNumber(i+1), ret)
		}(i)
	}
	wg.Wait()
}

func TestProperty_EvaluateMatchesGoPredicate(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadScope("meadow", writeTempLua(t, "hp.lua", `
		function wounded(self, subject) return subject.health * 2 < subject.max_health end
	`), 0))
	wolf := world.NewActor(world.ActorConfig{Kind: world.KindNpc, Position: world.Position{MapID: "meadow"}})

	rapid.Check(t, func(rt *rapid.T) {
		maxHP := rapid.IntRange(1, 500).Draw(rt, "max")
		dmg := rapid.IntRange(0, maxHP).Draw(rt, "dmg")
		hero := world.NewActor(world.ActorConfig{Kind: world.KindPlayer,
			MaxVitals: [world.VitalCount]int{world.Health: maxHP}})
		hero.AddVital(world.Health, -dmg)

		got, err := mgr.Evaluate("wounded", wolf, hero)
		if err != nil {
			rt.Fatal(err)
		}
		want := (maxHP-dmg)*2 < maxHP
		if got != want {
			rt.Fatalf("hp %d/%d: got %v want %v", maxHP-dmg, maxHP, got, want)
		}
	})
}

func TestManager_ScopeWithoutHookFallsBackToGlobal(t *testing.T) {
	mgr, _ := newTestManager(t)
	scripts := filepath.Join("..", "..", "content", "scripts")
	require.NoError(t, mgr.LoadGlobal(scripts, 0))
	require.NoError(t, mgr.LoadScope("forest", filepath.Join(scripts, "forest"), 0))

	hero := world.NewActor(world.ActorConfig{Name: "hero", Kind: world.KindPlayer,
		MaxVitals: [world.VitalCount]int{world.Health: 20}})
	for _, mapID := range []string{"meadow", "forest"} {
		wolf := world.NewActor(world.ActorConfig{Name: "wolf", Kind: world.KindNpc, TemplateID: "wolf",
			Position: world.Position{MapID: mapID}})
		ok, err := mgr.Evaluate("is_low_level", wolf, hero)
		require.NoError(t, err, mapID)
		assert.True(t, ok, "global hook must apply in %s", mapID)
		assert.True(t, mgr.HasHook(mapID, "is_low_level"), mapID)
	}

	shaman := world.NewActor(world.ActorConfig{Name: "shaman", Kind: world.KindNpc, TemplateID: "shaman",
		Position: world.Position{MapID: "forest"}})
	ok, err := mgr.Evaluate("carries_axe", shaman, hero)
	require.NoError(t, err)
	assert.True(t, ok)

	meadowShaman := world.NewActor(world.ActorConfig{Kind: world.KindNpc, Position: world.Position{MapID: "meadow"}})
	ok, err = mgr.Evaluate("carries_axe", meadowShaman, hero)
	require.NoError(t, err)
	assert.False(t, ok, "forest hooks stay in the forest")
	assert.False(t, mgr.HasHook("meadow", "carries_axe"))
}

func TestManager_ScopeHookShadowsGlobal(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadGlobal(writeTempLua(t, "g.lua", `
		function which() return "global" end
		function only_global() return "global" end
	`), 0))
	require.NoError(t, mgr.LoadScope("forest", writeTempLua(t, "f.lua", `function which() return "forest" end`), 0))

	ret, err := mgr.CallHook("forest", "which")
	require.NoError(t, err)
	assert.Equal(t, lua.LString("forest"), ret)

	ret, err = mgr.CallHook("forest", "only_global")
	require.NoError(t, err)
	assert.Equal(t, lua.LString("global"), ret)
}

func TestManager_EvaluateAfterReload(t *testing.T) {
	mgr, _ := newTestManager(t)
	wolf := world.NewActor(world.ActorConfig{Kind: world.KindNpc, Position: world.Position{MapID: "meadow"}})
	hero := world.NewActor(world.ActorConfig{Kind: world.KindPlayer})

	require.NoError(t, mgr.LoadScope("meadow", writeTempLua(t, "a.lua", `function hostile() return false end`), 0))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Evaluate("hostile", wolf, hero)
			assert.NoError(t, err)
		}()
	}
	require.NoError(t, mgr.LoadScope("meadow", writeTempLua(t, "b.lua", `function hostile() return true end`), 0))
	wg.Wait()

	ok, err := mgr.Evaluate("hostile", wolf, hero)
	require.NoError(t, err)
	assert.True(t, ok)
}
