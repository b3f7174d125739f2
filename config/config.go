// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/pphpc/engine"
	"github.com/pthm-cable/pphpc/rng"
	"github.com/pthm-cable/pphpc/telemetry"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Engine    EngineConfig              `yaml:"engine"`
	World     WorldConfig               `yaml:"world"`
	Sheep     SpeciesConfig             `yaml:"sheep"`
	Wolves    SpeciesConfig             `yaml:"wolves"`
	Behaviour BehaviourConfig           `yaml:"behaviour"`
	Telemetry TelemetryConfig           `yaml:"telemetry"`
	Bookmarks telemetry.BookmarksConfig `yaml:"bookmarks"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// EngineConfig selects the work distribution and randomness of a run.
type EngineConfig struct {
	Iterations   int             `yaml:"iterations"`
	Strategy     engine.Strategy `yaml:"strategy"`
	Workers      int             `yaml:"workers"`    // 0 = one per CPU
	BlockSize    int             `yaml:"block_size"` // ondemand only
	Seed         uint64          `yaml:"seed"`
	RNG          rng.Algorithm   `yaml:"rng"`
	Keying       rng.Keying      `yaml:"keying"`
	PhaseTimeout time.Duration   `yaml:"phase_timeout"` // 0 = wait forever
}

// WorldConfig holds the toroidal grid and grass parameters.
type WorldConfig struct {
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	GrassRestart int     `yaml:"grass_restart"`       // ticks for eaten grass to regrow
	InitialGrass float64 `yaml:"initial_grass_ratio"` // probability a cell starts with grown grass
}

// SpeciesConfig holds the parameters shared by sheep and wolves.
type SpeciesConfig struct {
	Initial            int `yaml:"initial"`
	GainFromFood       int `yaml:"gain_from_food"`
	ReproduceThreshold int `yaml:"reproduce_threshold"`
	ReproduceProb      int `yaml:"reproduce_prob"` // percent, 0-100
}

// BehaviourConfig holds agent behaviour switches.
type BehaviourConfig struct {
	Shuffle bool `yaml:"shuffle"` // shuffle agents in a cell before they act
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	LogEvery        int  `yaml:"log_every"` // ticks between stats log lines, 0 = never
	PerfWindow      int  `yaml:"perf_window"`
	BookmarkHistory int  `yaml:"bookmark_history"`
	TickLog         bool `yaml:"tick_log"` // write ticks.jsonl.zst
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Cells   int        // Width * Height
	Workers int        // effective worker count
	Keying  rng.Keying // effective keying; ondemand always keys by unit
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Defaults returns the embedded default configuration.
func Defaults() (*Config, error) {
	return Load("")
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ComputeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ComputeDerived calculates values derived from loaded config. Call it
// again after changing fields programmatically.
func (c *Config) ComputeDerived() {
	c.Derived.Cells = c.World.Width * c.World.Height

	workers := c.Engine.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if c.Engine.Strategy == engine.SingleThread {
		workers = 1
	}
	c.Derived.Workers = workers
	c.Derived.Keying = c.Engine.Strategy.Keying(c.Engine.Keying)
}

// Validate checks the configuration. All problems are reported together
// and every one wraps engine.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{engine.ErrConfiguration}, args...)...))
		}
	}

	check(c.Engine.Iterations >= 0, "engine.iterations must be >= 0, got %d", c.Engine.Iterations)
	check(c.Engine.Workers >= 0, "engine.workers must be >= 0, got %d", c.Engine.Workers)
	check(c.Engine.Strategy != engine.OnDemand || c.Engine.BlockSize >= 1,
		"engine.block_size must be >= 1 for ondemand, got %d", c.Engine.BlockSize)
	check(c.Engine.PhaseTimeout >= 0, "engine.phase_timeout must be >= 0, got %v", c.Engine.PhaseTimeout)

	check(c.World.Width >= 1, "world.width must be >= 1, got %d", c.World.Width)
	check(c.World.Height >= 1, "world.height must be >= 1, got %d", c.World.Height)
	check(c.World.GrassRestart >= 1, "world.grass_restart must be >= 1, got %d", c.World.GrassRestart)
	check(c.World.InitialGrass >= 0 && c.World.InitialGrass <= 1,
		"world.initial_grass_ratio must be in [0,1], got %v", c.World.InitialGrass)

	for _, sp := range []struct {
		name string
		s    SpeciesConfig
	}{{"sheep", c.Sheep}, {"wolves", c.Wolves}} {
		check(sp.s.Initial >= 0, "%s.initial must be >= 0, got %d", sp.name, sp.s.Initial)
		check(sp.s.GainFromFood >= 1, "%s.gain_from_food must be >= 1, got %d", sp.name, sp.s.GainFromFood)
		check(sp.s.ReproduceThreshold >= 0, "%s.reproduce_threshold must be >= 0, got %d", sp.name, sp.s.ReproduceThreshold)
		check(sp.s.ReproduceProb >= 0 && sp.s.ReproduceProb <= 100,
			"%s.reproduce_prob must be in [0,100], got %d", sp.name, sp.s.ReproduceProb)
	}

	check(c.Telemetry.LogEvery >= 0, "telemetry.log_every must be >= 0, got %d", c.Telemetry.LogEvery)
	return errors.Join(errs...)
}

// EngineOptions converts the engine section into controller options.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Strategy:     c.Engine.Strategy,
		Workers:      c.Derived.Workers,
		BlockSize:    c.Engine.BlockSize,
		RowWidth:     c.World.Width,
		Iterations:   c.Engine.Iterations,
		Seed:         c.Engine.Seed,
		RNG:          c.Engine.RNG,
		Keying:       c.Derived.Keying,
		PhaseTimeout: c.Engine.PhaseTimeout,
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
