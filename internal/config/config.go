// Package config provides Viper-based configuration loading for the NPC simulation server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/npcai/internal/game/npc"
)

// DatabaseConfig holds PostgreSQL connection settings for the event journal.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// SimulationConfig controls the tick driver.
type SimulationConfig struct {
	// TickInterval is the wall-clock period between simulation ticks.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// Workers bounds how many agents are updated concurrently per tick.
	Workers int `mapstructure:"workers"`
	// ContentDir is the root of the maps/, npcs/, spells/ and scripts/ directories.
	ContentDir string `mapstructure:"content_dir"`
	// ScriptInstructionLimit caps Lua opcodes per hook call; 0 uses the scripting default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// MapConfig holds the fixed tile dimensions shared by every map.
type MapConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// NpcConfig holds the global NPC tunables.
type NpcConfig struct {
	AllowResetRadius                   bool          `mapstructure:"allow_reset_radius"`
	ResetRadius                        int           `mapstructure:"reset_radius"`
	AllowNewResetLocationBeforeFinish  bool          `mapstructure:"allow_new_reset_location_before_finish"`
	AllowEngagingWhileResetting        bool          `mapstructure:"allow_engaging_while_resetting"`
	IntangibleDuringReset              bool          `mapstructure:"intangible_during_reset"`
	ResetIfCombatTimerExceeded         bool          `mapstructure:"reset_if_combat_timer_exceeded"`
	ResetVitalsAndStatuses             bool          `mapstructure:"reset_vitals_and_statuses"`
	ContinuouslyResetVitalsAndStatuses bool          `mapstructure:"continuously_reset_vitals_and_statuses"`
	FindTargetDelay                    time.Duration `mapstructure:"find_target_delay"`
	CombatTime                         time.Duration `mapstructure:"combat_time"`
}

// JournalConfig controls the Postgres event journal sink.
type JournalConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Map        MapConfig        `mapstructure:"map"`
	Npc        NpcConfig        `mapstructure:"npc"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Journal    JournalConfig    `mapstructure:"journal"`
}

// NpcOptions converts the npc and map sections into the immutable options value
// handed to every agent at construction.
//
// Postcondition: The returned value shares no memory with c.
func (c Config) NpcOptions() npc.Options {
	return npc.Options{
		AllowResetRadius:                   c.Npc.AllowResetRadius,
		ResetRadius:                        c.Npc.ResetRadius,
		AllowNewResetLocationBeforeFinish:  c.Npc.AllowNewResetLocationBeforeFinish,
		AllowEngagingWhileResetting:        c.Npc.AllowEngagingWhileResetting,
		IntangibleDuringReset:              c.Npc.IntangibleDuringReset,
		ResetIfCombatTimerExceeded:         c.Npc.ResetIfCombatTimerExceeded,
		ResetVitalsAndStatuses:             c.Npc.ResetVitalsAndStatuses,
		ContinuouslyResetVitalsAndStatuses: c.Npc.ContinuouslyResetVitalsAndStatuses,
		FindTargetDelayMs:                  c.Npc.FindTargetDelay.Milliseconds(),
		CombatTimeMs:                       c.Npc.CombatTime.Milliseconds(),
		MapWidth:                           c.Map.Width,
		MapHeight:                          c.Map.Height,
	}
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSimulation(c.Simulation); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateMap(c.Map); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateNpc(c.Npc); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Journal.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
		if err := validateJournal(c.Journal); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSimulation(s SimulationConfig) error {
	var errs []string
	if s.TickInterval <= 0 {
		errs = append(errs, fmt.Sprintf("simulation.tick_interval must be > 0, got %s", s.TickInterval))
	}
	if s.Workers < 1 {
		errs = append(errs, fmt.Sprintf("simulation.workers must be >= 1, got %d", s.Workers))
	}
	if s.ContentDir == "" {
		errs = append(errs, "simulation.content_dir must not be empty")
	}
	if s.ScriptInstructionLimit < 0 {
		errs = append(errs, "simulation.script_instruction_limit must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateMap(m MapConfig) error {
	if m.Width < 1 || m.Height < 1 {
		return fmt.Errorf("map.width and map.height must be >= 1, got %dx%d", m.Width, m.Height)
	}
	return nil
}

func validateNpc(n NpcConfig) error {
	var errs []string
	if n.ResetRadius < 0 {
		errs = append(errs, fmt.Sprintf("npc.reset_radius must be >= 0, got %d", n.ResetRadius))
	}
	if n.FindTargetDelay < 0 {
		errs = append(errs, "npc.find_target_delay must not be negative")
	}
	if n.CombatTime < 0 {
		errs = append(errs, "npc.combat_time must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateJournal(j JournalConfig) error {
	var errs []string
	if j.BufferSize < 1 {
		errs = append(errs, fmt.Sprintf("journal.buffer_size must be >= 1, got %d", j.BufferSize))
	}
	if j.BatchSize < 1 {
		errs = append(errs, fmt.Sprintf("journal.batch_size must be >= 1, got %d", j.BatchSize))
	}
	if j.FlushInterval <= 0 {
		errs = append(errs, "journal.flush_interval must be > 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with NPCAI_ prefix
	v.SetEnvPrefix("NPCAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance populated only with default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("simulation.tick_interval", "50ms")
	v.SetDefault("simulation.workers", 4)
	v.SetDefault("simulation.content_dir", "content")
	v.SetDefault("simulation.script_instruction_limit", 0)

	v.SetDefault("map.width", 32)
	v.SetDefault("map.height", 26)

	v.SetDefault("npc.allow_reset_radius", true)
	v.SetDefault("npc.reset_radius", 8)
	v.SetDefault("npc.allow_new_reset_location_before_finish", false)
	v.SetDefault("npc.allow_engaging_while_resetting", false)
	v.SetDefault("npc.intangible_during_reset", true)
	v.SetDefault("npc.reset_if_combat_timer_exceeded", true)
	v.SetDefault("npc.reset_vitals_and_statuses", true)
	v.SetDefault("npc.continuously_reset_vitals_and_statuses", false)
	v.SetDefault("npc.find_target_delay", "500ms")
	v.SetDefault("npc.combat_time", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "npcai")
	v.SetDefault("database.password", "npcai")
	v.SetDefault("database.name", "npcai")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.buffer_size", 1024)
	v.SetDefault("journal.batch_size", 128)
	v.SetDefault("journal.flush_interval", "1s")
}
