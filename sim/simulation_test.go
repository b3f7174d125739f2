package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/pphpc/config"
	"github.com/pthm-cable/pphpc/engine"
	"github.com/pthm-cable/pphpc/rng"
	"github.com/pthm-cable/pphpc/systems"
	"github.com/pthm-cable/pphpc/telemetry"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig(t *testing.T, mutate ...func(*config.Config)) *config.Config {
	t.Helper()
	cfg, err := config.Defaults()
	require.NoError(t, err)

	cfg.World.Width = 20
	cfg.World.Height = 20
	cfg.Sheep.Initial = 60
	cfg.Wolves.Initial = 20
	cfg.Engine.Iterations = 30
	cfg.Engine.Seed = 1234
	cfg.Engine.Strategy = engine.EqualStatic
	cfg.Engine.Workers = 4
	cfg.Telemetry.LogEvery = 10
	cfg.Telemetry.TickLog = false

	for _, m := range mutate {
		m(cfg)
	}
	return cfg
}

func run(t *testing.T, cfg *config.Config, opts Options) (*Simulation, []telemetry.Record) {
	t.Helper()
	opts.Logger = quiet
	s, err := New(cfg, opts)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	return s, s.Stats().Records()
}

func TestNew_InitialRecord(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, Options{Logger: quiet})
	require.NoError(t, err)

	records := s.Stats().Records()
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, 0, r.Tick)
	assert.EqualValues(t, 60, r.Sheep)
	assert.EqualValues(t, 20, r.Wolves)
	assert.Positive(t, r.Grass)
	assert.Less(t, r.Grass, int64(400))
	assert.GreaterOrEqual(t, r.SheepEnergyMean, 1.0)
	assert.LessOrEqual(t, r.SheepEnergyMean, float64(2*cfg.Sheep.GainFromFood))
	assert.Zero(t, s.Tick())
}

func TestNew_InitialStateIndependentOfWorkers(t *testing.T) {
	a, err := New(testConfig(t), Options{Logger: quiet})
	require.NoError(t, err)
	b, err := New(testConfig(t, func(c *config.Config) {
		c.Engine.Strategy = engine.OnDemand
		c.Engine.Workers = 3
		c.Engine.BlockSize = 7
	}), Options{Logger: quiet})
	require.NoError(t, err)

	assert.Equal(t, a.Snapshot().Cells, b.Snapshot().Cells)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) { c.World.Width = 0 })
	_, err := New(cfg, Options{Logger: quiet})
	assert.ErrorIs(t, err, engine.ErrConfiguration)
}

// crowded is big enough that OnDemand workers contend for blocks.
func crowded(strategy engine.Strategy, workers, block int) func(*config.Config) {
	return func(c *config.Config) {
		c.World.Width = 40
		c.World.Height = 40
		c.Sheep.Initial = 400
		c.Wolves.Initial = 100
		c.Engine.Iterations = 40
		c.Engine.Strategy = strategy
		c.Engine.Workers = workers
		c.Engine.BlockSize = block
	}
}

func TestRun_Deterministic(t *testing.T) {
	tests := []struct {
		strategy engine.Strategy
		workers  int
		block    int
	}{
		{engine.SingleThread, 1, 0},
		{engine.EqualStatic, 2, 0},
		{engine.EqualStatic, 4, 0},
		{engine.EqualStatic, 8, 0},
		{engine.Exclusive, 4, 0},
		{engine.OnDemand, 2, 1},
		{engine.OnDemand, 2, 7},
		{engine.OnDemand, 2, 64},
		{engine.OnDemand, 4, 1},
		{engine.OnDemand, 4, 7},
		{engine.OnDemand, 4, 64},
		{engine.OnDemand, 8, 1},
		{engine.OnDemand, 8, 7},
		{engine.OnDemand, 8, 64},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/w%d/b%d", tt.strategy, tt.workers, tt.block), func(t *testing.T) {
			cfg := func() *config.Config {
				return testConfig(t, crowded(tt.strategy, tt.workers, tt.block))
			}
			require.Equal(t, rng.KeyByWorker, cfg().Engine.Keying)

			_, first := run(t, cfg(), Options{})
			require.Len(t, first, 41)
			for range 2 {
				_, again := run(t, cfg(), Options{})
				assert.Equal(t, first, again)
			}
		})
	}
}

func TestRun_BlockSizeIndependent(t *testing.T) {
	_, reference := run(t, testConfig(t, crowded(engine.OnDemand, 4, 1)), Options{})

	for _, block := range []int{5, 64, 1600} {
		t.Run(fmt.Sprintf("b%d", block), func(t *testing.T) {
			_, records := run(t, testConfig(t, crowded(engine.OnDemand, 4, block)), Options{})
			assert.Equal(t, reference, records)
		})
	}
}

func TestRun_PerfPhasesInTickOrder(t *testing.T) {
	s, _ := run(t, testConfig(t), Options{})
	assert.Equal(t, systems.NewSystemRegistry().IDs(), s.Perf().Phases)
}

func TestRun_PopulationBalance(t *testing.T) {
	_, records := run(t, testConfig(t), Options{})

	for i := 1; i < len(records); i++ {
		prev, r := records[i-1], records[i]
		assert.Equal(t, prev.Sheep-r.SheepDeaths-r.SheepEaten+r.SheepBirths, r.Sheep, "sheep at tick %d", r.Tick)
		assert.Equal(t, prev.Wolves-r.WolfDeaths+r.WolfBirths, r.Wolves, "wolves at tick %d", r.Tick)
		assert.LessOrEqual(t, r.GrassEaten, prev.Grass, "tick %d", r.Tick)
	}
}

func TestRun_UnitKeyingIndependentOfPartition(t *testing.T) {
	keyed := func(strategy engine.Strategy, workers, block int) *config.Config {
		return testConfig(t, func(c *config.Config) {
			c.Engine.Keying = rng.KeyByUnit
			c.Engine.Strategy = strategy
			c.Engine.Workers = workers
			c.Engine.BlockSize = block
		})
	}

	_, reference := run(t, keyed(engine.SingleThread, 1, 0), Options{})

	tests := []struct {
		strategy engine.Strategy
		workers  int
		block    int
	}{
		{engine.EqualStatic, 4, 0},
		{engine.EqualStatic, 7, 0},
		{engine.Exclusive, 3, 0},
		{engine.OnDemand, 2, 1},
		{engine.OnDemand, 4, 13},
		{engine.OnDemand, 8, 400},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/w%d/b%d", tt.strategy, tt.workers, tt.block), func(t *testing.T) {
			_, records := run(t, keyed(tt.strategy, tt.workers, tt.block), Options{})
			assert.Equal(t, reference, records)
		})
	}
}

func TestRun_OnTickStop(t *testing.T) {
	dir := t.TempDir()
	var s *Simulation
	cfg := testConfig(t)
	s, err := New(cfg, Options{
		Logger:    quiet,
		OutputDir: dir,
		OnTick: func(r telemetry.Record) {
			if r.Tick == 5 {
				s.Stop()
			}
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 5, s.Tick())
	assert.Equal(t, 6, s.Stats().Len())

	m, err := telemetry.LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, telemetry.StatusStopped, m.Status)
	assert.Equal(t, 5, m.Ticks)
}

func TestRun_WritesOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, func(c *config.Config) { c.Telemetry.TickLog = true })
	_, records := run(t, cfg, Options{OutputDir: dir})

	written, err := telemetry.ReadRecords(filepath.Join(dir, telemetry.StatsFileName))
	require.NoError(t, err)
	assert.Equal(t, records, written)

	m, err := telemetry.LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, telemetry.StatusCompleted, m.Status)
	assert.Equal(t, 30, m.Ticks)
	assert.Equal(t, "equal", m.Engine.Strategy)
	assert.Equal(t, 4, m.Engine.Workers)
	assert.Zero(t, m.Engine.BlockSize)

	entries, err := telemetry.ReadTickLog(filepath.Join(dir, telemetry.TickLogName))
	require.NoError(t, err)
	require.Len(t, entries, len(records))
	for i, e := range entries {
		assert.Equal(t, m.RunID, e.RunID)
		assert.Equal(t, records[i], e.Record)
	}

	loaded, err := config.Load(filepath.Join(dir, telemetry.ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, cfg.Engine, loaded.Engine)
	assert.Equal(t, cfg.World, loaded.World)

	for _, name := range []string{telemetry.SummaryFileName, telemetry.WindowsFileName, telemetry.PerfFileName} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}
}

func TestRun_SnapshotOnBookmark(t *testing.T) {
	out, snaps := t.TempDir(), t.TempDir()
	cfg := testConfig(t, func(c *config.Config) {
		c.Wolves.Initial = 0
		c.Engine.Iterations = 3
	})
	run(t, cfg, Options{OutputDir: out, SnapshotDir: snaps})

	path := filepath.Join(snaps, "snapshot_1_wolves_extinct.json")
	snap, err := telemetry.LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Tick)
	require.NotNil(t, snap.Bookmark)
	assert.Equal(t, telemetry.BookmarkWolvesExtinct, snap.Bookmark.Type)

	data, err := os.ReadFile(filepath.Join(out, telemetry.BookmarkFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "wolves_extinct")
}

func TestRestore_ContinuesExactly(t *testing.T) {
	unit := func(iterations int) *config.Config {
		return testConfig(t, func(c *config.Config) {
			c.Engine.Keying = rng.KeyByUnit
			c.Engine.Strategy = engine.OnDemand
			c.Engine.BlockSize = 16
			c.Engine.Iterations = iterations
		})
	}

	_, full := run(t, unit(20), Options{})

	first, _ := run(t, unit(10), Options{})
	snap := first.Snapshot()
	require.Equal(t, 10, snap.Tick)

	resumed, records := run(t, unit(20), Options{Restore: snap})
	assert.Equal(t, 20, resumed.Tick())
	require.Len(t, records, 11)

	// The restored tick carries populations only; event counters start at zero.
	assert.Equal(t, full[10].Sheep, records[0].Sheep)
	assert.Equal(t, full[10].Wolves, records[0].Wolves)
	assert.Equal(t, full[10].Grass, records[0].Grass)
	assert.Equal(t, full[11:], records[1:])
}

func TestRestore_RejectsMismatchedGrid(t *testing.T) {
	s, err := New(testConfig(t), Options{Logger: quiet})
	require.NoError(t, err)
	snap := s.Snapshot()

	cfg := testConfig(t, func(c *config.Config) { c.World.Width = 21 })
	_, err = New(cfg, Options{Logger: quiet, Restore: snap})
	assert.ErrorIs(t, err, engine.ErrConfiguration)
}

func TestRun_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	s, err := New(testConfig(t), Options{Logger: quiet, OutputDir: dir})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrSynchronization)

	m, err := telemetry.LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, telemetry.StatusFailed, m.Status)
	assert.NotEmpty(t, m.Error)
}
