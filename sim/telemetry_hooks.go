package sim

import (
	"context"
	"errors"
	"time"

	"github.com/pthm-cable/pphpc/engine"
	"github.com/pthm-cable/pphpc/telemetry"
)

// openOutput creates the output directory files and writes the initial
// record, the config and the manifest.
func (s *Simulation) openOutput() error {
	om, err := telemetry.NewOutputManager(s.opts.OutputDir)
	if err != nil {
		return err
	}
	if om == nil {
		return nil
	}
	s.outputManager = om

	if err := om.WriteConfig(s.cfg); err != nil {
		return err
	}
	initial, _ := s.stats.Latest()
	if err := om.WriteRecords(initial); err != nil {
		return err
	}

	runID := telemetry.NewRunID()
	if s.cfg.Telemetry.TickLog {
		s.tickLogger, err = telemetry.NewTickLogger(om.Dir(), runID)
		if err != nil {
			return err
		}
		if err := s.tickLogger.WriteTick(initial); err != nil {
			return err
		}
	}

	e := s.cfg.Engine
	s.manifest = &telemetry.Manifest{
		RunID:     runID,
		Status:    telemetry.StatusRunning,
		StartedAt: time.Now().UTC(),
		Ticks:     initial.Tick,
		Engine: telemetry.EngineInfo{
			Strategy:   e.Strategy.String(),
			Workers:    s.cfg.Derived.Workers,
			BlockSize:  e.BlockSize,
			Iterations: e.Iterations,
			Seed:       e.Seed,
			RNG:        e.RNG.String(),
			Keying:     s.cfg.Derived.Keying.String(),
		},
		Host: telemetry.CollectHostInfo(context.Background()),
	}
	if e.Strategy != engine.OnDemand {
		s.manifest.Engine.BlockSize = 0
	}
	return telemetry.WriteManifest(om.Dir(), s.manifest)
}

func (s *Simulation) closeOutput() error {
	var errs []error
	if s.tickLogger != nil {
		errs = append(errs, s.tickLogger.Close())
		s.tickLogger = nil
	}
	if s.outputManager != nil {
		errs = append(errs, s.outputManager.Close())
	}
	return errors.Join(errs...)
}

// onTick persists the record of a closed tick. It runs inside the
// NEW_ITERATION release, so the grid is quiescent.
func (s *Simulation) onTick(_ engine.Event, v engine.View) {
	r, ok := v.Latest()
	if !ok {
		return
	}

	if err := s.outputManager.WriteRecords(r); err != nil {
		s.logger.Error("failed to write stats", "tick", r.Tick, "error", err)
	}
	if s.tickLogger != nil {
		if err := s.tickLogger.WriteTick(r); err != nil {
			s.logger.Error("failed to write tick log", "tick", r.Tick, "error", err)
		}
	}

	if s.collector != nil {
		s.collector.Add(r)
		if s.collector.ShouldFlush(r.Tick) {
			s.flushWindow()
		}
	}

	for _, bm := range s.bookmarkDetector.Check(r) {
		if s.opts.LogStats {
			bm.LogBookmark()
		}
		if err := s.outputManager.WriteBookmark(bm); err != nil {
			s.logger.Error("failed to write bookmark", "error", err)
		}
		if s.opts.SnapshotDir != "" {
			s.saveSnapshot(&bm)
		}
	}

	if s.opts.OnTick != nil {
		s.opts.OnTick(r)
	}
}

// onStop flushes a partially filled window.
func (s *Simulation) onStop(_ engine.Event, v engine.View) {
	if s.collector != nil && s.collector.Pending() {
		s.flushWindow()
	}
	s.logger.Info("simulation stopped", "tick", v.Tick())
}

// flushWindow logs and writes the current stats window with the perf
// statistics of the same period.
func (s *Simulation) flushWindow() {
	stats := s.collector.Flush()
	perfStats := s.perfCollector.Stats()

	if s.opts.LogStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := s.outputManager.WriteWindow(stats); err != nil {
		s.logger.Error("failed to write window", "error", err)
	}
	if err := s.outputManager.WritePerf(perfStats, stats.WindowEndTick, s.cfg.Derived.Workers); err != nil {
		s.logger.Error("failed to write perf", "error", err)
	}
}

func (s *Simulation) saveSnapshot(bm *telemetry.Bookmark) {
	snap := telemetry.NewSnapshot(s.world.Grid, bm.Tick, s.cfg.Engine.Seed)
	snap.Bookmark = bm
	path, err := telemetry.SaveSnapshot(snap, s.opts.SnapshotDir)
	if err != nil {
		s.logger.Error("failed to save snapshot", "error", err)
		return
	}
	s.logger.Info("snapshot saved", "path", path, "bookmark", string(bm.Type))
}
