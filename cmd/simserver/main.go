// Package main runs the NPC combat and movement simulation over the maps,
// templates and spells of a content directory.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcai/internal/config"
	"github.com/cory-johannsen/npcai/internal/game/dice"
	"github.com/cory-johannsen/npcai/internal/game/npc"
	"github.com/cory-johannsen/npcai/internal/game/world"
	"github.com/cory-johannsen/npcai/internal/observability"
	"github.com/cory-johannsen/npcai/internal/scripting"
	"github.com/cory-johannsen/npcai/internal/server"
	"github.com/cory-johannsen/npcai/internal/simulation"
	"github.com/cory-johannsen/npcai/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "simserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger.Named("dice"))
	content := cfg.Simulation.ContentDir

	// Load world
	worldStart := time.Now()
	maps, err := world.LoadMapsFromDir(filepath.Join(content, "maps"), cfg.Map.Width, cfg.Map.Height)
	if err != nil {
		logger.Fatal("loading maps", zap.Error(err))
	}
	registry, err := world.NewRegistry(maps, cfg.Map.Width, cfg.Map.Height)
	if err != nil {
		logger.Fatal("creating world registry", zap.Error(err))
	}
	logger.Info("world loaded",
		zap.Int("maps", registry.MapCount()),
		zap.Duration("elapsed", time.Since(worldStart)),
	)

	templates, err := npc.LoadTemplates(filepath.Join(content, "npcs"))
	if err != nil {
		logger.Fatal("loading npc templates", zap.Error(err))
	}
	spells, err := npc.LoadSpells(filepath.Join(content, "spells"))
	if err != nil {
		logger.Fatal("loading spells", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("templates", len(templates)),
		zap.Int("spells", len(spells.IDs())),
	)

	scripts := scripting.NewManager(roller, logger.Named("scripting"))
	defer scripts.Close()
	if err := loadScripts(scripts, filepath.Join(content, "scripts"), maps, cfg.Simulation.ScriptInstructionLimit, logger); err != nil {
		logger.Fatal("loading scripts", zap.Error(err))
	}

	lc := server.NewLifecycle(logger)
	notifier := npc.MultiNotifier{npc.LogNotifier{Logger: logger.Named("events")}}

	if cfg.Journal.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		journal := postgres.NewJournal(pool.DB(), cfg.Journal, logger.Named("journal"))
		notifier = append(notifier, journal)
		lc.Add("journal", server.NewRunnerService(journal.Run))
	}

	var mgr *npc.Manager
	resolver := simulation.NewResolver(registry,
		simulation.AgentLookupFunc(func(id uuid.UUID) (*npc.Agent, bool) { return mgr.Get(id) }),
		roller, logger.Named("combat"),
	)
	mgr, err = npc.NewManager(npc.ManagerConfig{
		Registry:   registry,
		Options:    cfg.NpcOptions(),
		Templates:  templates,
		Spells:     spells,
		Combat:     resolver,
		Conditions: scripts,
		Notifier:   notifier,
		Rand:       dice.NewCryptoSource(),
		Logger:     logger.Named("npc"),
	})
	if err != nil {
		logger.Fatal("creating npc manager", zap.Error(err))
	}

	respawn := npc.NewRespawnManager(maps, uuid.Nil, logger.Named("respawn"))
	if err := respawn.Populate(mgr); err != nil {
		logger.Fatal("populating spawns", zap.Error(err))
	}
	logger.Info("npcs spawned", zap.Int("count", mgr.Count()))

	driver, err := simulation.NewDriver(simulation.DriverConfig{
		Manager:  mgr,
		Respawn:  respawn,
		Interval: cfg.Simulation.TickInterval,
		Workers:  cfg.Simulation.Workers,
		Logger:   logger.Named("simulation"),
	})
	if err != nil {
		logger.Fatal("creating simulation driver", zap.Error(err))
	}
	lc.Add("simulation", server.NewRunnerService(driver.Run))

	logger.Info("simserver ready", zap.Duration("startup", time.Since(start)))
	if err := lc.Run(ctx); err != nil {
		logger.Fatal("simserver stopped", zap.Error(err))
	}
}

// loadScripts loads dir as the global Lua scope and each dir/<map id>
// subdirectory as that map's scope. A missing dir disables scripting.
func loadScripts(mgr *scripting.Manager, dir string, maps []*world.Map, instLimit int, logger *zap.Logger) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Info("no script directory, condition hooks disabled", zap.String("dir", dir))
		return nil
	}
	if err := mgr.LoadGlobal(dir, instLimit); err != nil {
		return err
	}
	for _, m := range maps {
		scopeDir := filepath.Join(dir, m.ID)
		info, err := os.Stat(scopeDir)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := mgr.LoadScope(m.ID, scopeDir, instLimit); err != nil {
			return err
		}
	}
	return nil
}
