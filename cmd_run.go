package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pthm-cable/pphpc/config"
	"github.com/pthm-cable/pphpc/engine"
	"github.com/pthm-cable/pphpc/rng"
	"github.com/pthm-cable/pphpc/sim"
	"github.com/pthm-cable/pphpc/telemetry"
)

var runFlags struct {
	configPath  string
	outputDir   string
	snapshotDir string
	restore     string
	metricsAddr string
	logStats    bool

	strategy   string
	workers    int
	blockSize  int
	iterations int
	seed       uint64
	rng        string
	keying     string
	noShuffle  bool
	timeout    time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long: `Run loads the configuration (embedded defaults overlaid with --config),
applies command line overrides and runs the simulation. The first interrupt
stops after the current tick; a second one aborts.`,
	Args: cobra.NoArgs,
	RunE: runSimulation,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	f.StringVar(&runFlags.outputDir, "out", "", "Output directory for CSV logs, tick log and manifest")
	f.StringVar(&runFlags.snapshotDir, "snapshot-dir", "", "Directory for grid snapshots taken on bookmarks")
	f.StringVar(&runFlags.restore, "restore", "", "Continue from a snapshot file")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	f.BoolVar(&runFlags.logStats, "log-stats", false, "Log window, perf and summary stats")

	f.StringVar(&runFlags.strategy, "strategy", "", "Work distribution: single, equal, ondemand, exclusive")
	f.IntVar(&runFlags.workers, "workers", 0, "Worker goroutines (0 = one per CPU)")
	f.IntVar(&runFlags.blockSize, "block-size", 0, "Cells claimed at once by ondemand workers")
	f.IntVar(&runFlags.iterations, "iterations", 0, "Final tick")
	f.Uint64Var(&runFlags.seed, "seed", 0, "Master RNG seed")
	f.StringVar(&runFlags.rng, "rng", "", "RNG algorithm (see list)")
	f.StringVar(&runFlags.keying, "keying", "", "RNG keying: worker or unit (ondemand always uses unit)")
	f.BoolVar(&runFlags.noShuffle, "no-shuffle", false, "Do not shuffle agents within a cell")
	f.DurationVar(&runFlags.timeout, "phase-timeout", 0, "Abort if a phase barrier takes longer (0 = wait forever)")
}

// applyOverrides copies the flags the user set onto cfg.
func applyOverrides(cfg *config.Config, flags *pflag.FlagSet) error {
	var errs []error
	flags.Visit(func(f *pflag.Flag) {
		var err error
		switch f.Name {
		case "strategy":
			cfg.Engine.Strategy, err = engine.ParseStrategy(runFlags.strategy)
		case "workers":
			cfg.Engine.Workers = runFlags.workers
		case "block-size":
			cfg.Engine.BlockSize = runFlags.blockSize
		case "iterations":
			cfg.Engine.Iterations = runFlags.iterations
		case "seed":
			cfg.Engine.Seed = runFlags.seed
		case "rng":
			cfg.Engine.RNG, err = rng.ParseAlgorithm(runFlags.rng)
		case "keying":
			cfg.Engine.Keying, err = rng.ParseKeying(runFlags.keying)
		case "no-shuffle":
			cfg.Behaviour.Shuffle = !runFlags.noShuffle
		case "phase-timeout":
			cfg.Engine.PhaseTimeout = runFlags.timeout
		}
		if err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	if err := config.Init(runFlags.configPath); err != nil {
		return err
	}
	cfg := config.Cfg()
	if err := applyOverrides(cfg, cmd.Flags()); err != nil {
		return err
	}

	opts := sim.Options{
		LogStats:    runFlags.logStats,
		OutputDir:   runFlags.outputDir,
		SnapshotDir: runFlags.snapshotDir,
	}
	if runFlags.restore != "" {
		snap, err := telemetry.LoadSnapshot(runFlags.restore)
		if err != nil {
			return err
		}
		opts.Restore = snap
	}

	s, err := sim.New(cfg, opts)
	if err != nil {
		return err
	}

	if runFlags.metricsAddr != "" {
		srv := serveMetrics(runFlags.metricsAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)
	stopSignals := handleSignals(s, cancel)
	defer stopSignals()

	slog.Info("starting simulation",
		"seed", cfg.Engine.Seed,
		"strategy", cfg.Engine.Strategy.String(),
		"workers", cfg.Derived.Workers,
		"grid", cfg.Derived.Cells,
		"iterations", cfg.Engine.Iterations,
		"output", runFlags.outputDir,
	)

	start := time.Now()
	if err := s.Run(ctx); err != nil {
		return err
	}

	latest, _ := s.Stats().Latest()
	slog.Info("simulation finished",
		"tick", s.Tick(),
		"elapsed_ms", time.Since(start).Milliseconds(),
		"final", latest,
	)
	if runFlags.logStats {
		s.Perf().LogStats()
	}
	return nil
}

// handleSignals stops gracefully on the first interrupt and cancels on the
// second. The returned function releases the signal handler.
func handleSignals(s *sim.Simulation, cancel context.CancelCauseFunc) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigs:
			slog.Info("stopping after current tick", "signal", sig.String())
			s.Stop()
		case <-done:
			return
		}
		select {
		case sig := <-sigs:
			slog.Warn("aborting", "signal", sig.String())
			cancel(errors.New("interrupted"))
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}
