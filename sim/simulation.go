// Package sim assembles a runnable predator-prey simulation: it builds the
// world from configuration, drives it with the engine and persists what the
// engine observes.
package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/pphpc/components"
	"github.com/pthm-cable/pphpc/config"
	"github.com/pthm-cable/pphpc/engine"
	"github.com/pthm-cable/pphpc/systems"
	"github.com/pthm-cable/pphpc/telemetry"
)

// Options holds the run parameters that are not part of the model config.
type Options struct {
	LogStats    bool   // log window and perf stats via slog
	OutputDir   string // CSV, tick log, config and manifest; empty disables
	SnapshotDir string // grid snapshots saved on bookmarks; empty disables

	// Restore starts from a saved grid instead of a fresh population.
	// The run continues at the snapshot's tick. Continuation is exact only
	// with unit keying (always the case for ondemand), since worker streams
	// are not part of a snapshot.
	Restore *telemetry.Snapshot

	// OnTick is called after every closed tick while all workers are parked.
	OnTick func(telemetry.Record)

	Logger *slog.Logger
}

// Simulation is one configured run.
type Simulation struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	world *systems.World
	stats *telemetry.GlobalStats
	ctrl  *engine.Controller

	perfCollector    *telemetry.PerfCollector
	collector        *telemetry.Collector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	tickLogger       *telemetry.TickLogger
	manifest         *telemetry.Manifest
}

// New builds the world and the engine. Nothing runs until Run.
// It recomputes cfg's derived values.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	cfg.ComputeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	grid, start, err := initialGrid(cfg, opts.Restore)
	if err != nil {
		return nil, err
	}
	world := systems.NewWorld(grid, paramsFromConfig(cfg))

	stats := telemetry.NewGlobalStats(cfg.Engine.Iterations - start + 1)
	stats.Append(census(world, start))

	s := &Simulation{
		cfg:              cfg,
		opts:             opts,
		logger:           logger,
		world:            world,
		stats:            stats,
		perfCollector:    telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		bookmarkDetector: telemetry.NewBookmarkDetector(cfg.Telemetry.BookmarkHistory, cfg.Bookmarks),
	}
	if cfg.Telemetry.LogEvery > 0 {
		s.collector = telemetry.NewCollector(cfg.Telemetry.LogEvery)
	}

	eopts := cfg.EngineOptions()
	eopts.Perf = s.perfCollector
	eopts.Logger = logger
	s.ctrl, err = engine.NewController(world, stats, eopts)
	if err != nil {
		return nil, err
	}

	if err := s.ctrl.Observe(engine.EventNewIteration, s.onTick); err != nil {
		return nil, err
	}
	if err := s.ctrl.Observe(engine.EventStop, s.onStop); err != nil {
		return nil, err
	}

	if err := s.openOutput(); err != nil {
		s.closeOutput()
		return nil, err
	}
	return s, nil
}

func initialGrid(cfg *config.Config, snap *telemetry.Snapshot) (*components.Grid, int, error) {
	if snap == nil {
		grid := components.NewGrid(cfg.World.Width, cfg.World.Height)
		if err := populate(grid, cfg); err != nil {
			return nil, 0, &engine.Error{Kind: engine.ErrRNGInitialization, Worker: -1, Tick: 0, Err: err}
		}
		return grid, 0, nil
	}

	if snap.Width != cfg.World.Width || snap.Height != cfg.World.Height {
		return nil, 0, fmt.Errorf("%w: snapshot grid %dx%d does not match world %dx%d",
			engine.ErrConfiguration, snap.Width, snap.Height, cfg.World.Width, cfg.World.Height)
	}
	grid, err := snap.Grid()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", engine.ErrConfiguration, err)
	}
	return grid, snap.Tick, nil
}

func paramsFromConfig(cfg *config.Config) systems.Params {
	species := func(sp config.SpeciesConfig) systems.Species {
		return systems.Species{
			GainFromFood:       sp.GainFromFood,
			ReproduceThreshold: sp.ReproduceThreshold,
			ReproduceProb:      sp.ReproduceProb,
		}
	}
	return systems.Params{
		GrassRestart: cfg.World.GrassRestart,
		Sheep:        species(cfg.Sheep),
		Wolves:       species(cfg.Wolves),
		Shuffle:      cfg.Behaviour.Shuffle,
	}
}

// Run executes the configured ticks. Output files are finalized whether or
// not the engine fails.
func (s *Simulation) Run(ctx context.Context) error {
	runErr := s.ctrl.Run(ctx)

	records := s.stats.Records()
	summary := telemetry.Summarize(records)
	if s.opts.LogStats {
		telemetry.LogSummary(summary)
	}
	if err := s.outputManager.WriteSummary(summary); err != nil {
		s.logger.Error("failed to write summary", "error", err)
	}

	if s.manifest != nil {
		status := telemetry.StatusCompleted
		switch {
		case runErr != nil:
			status = telemetry.StatusFailed
		case s.ctrl.Tick() < s.cfg.Engine.Iterations:
			status = telemetry.StatusStopped
		}
		s.manifest.Finish(status, s.ctrl.Tick(), runErr)
		if err := telemetry.WriteManifest(s.outputManager.Dir(), s.manifest); err != nil {
			s.logger.Error("failed to write manifest", "error", err)
		}
	}

	if err := s.closeOutput(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// Stop requests a graceful stop after the tick in flight.
func (s *Simulation) Stop() { s.ctrl.Stop() }

// Tick returns the last completed tick.
func (s *Simulation) Tick() int { return s.ctrl.Tick() }

// Stats returns the per-tick records.
func (s *Simulation) Stats() *telemetry.GlobalStats { return s.stats }

// World returns the simulated world. It must not be read while Run is
// executing, except from an observer or OnTick.
func (s *Simulation) World() *systems.World { return s.world }

// Snapshot captures the grid at the last completed tick. The same
// restriction as World applies.
func (s *Simulation) Snapshot() *telemetry.Snapshot {
	return telemetry.NewSnapshot(s.world.Grid, s.ctrl.Tick(), s.cfg.Engine.Seed)
}

// Perf returns the rolling performance statistics.
func (s *Simulation) Perf() telemetry.PerfStats { return s.perfCollector.Stats() }
