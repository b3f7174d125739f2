// Package main runs a grid of headless simulations over work distribution
// strategies, worker counts and seeds, and reports throughput and final
// populations per configuration.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/pphpc/config"
	"github.com/pthm-cable/pphpc/engine"
	"github.com/pthm-cable/pphpc/sim"
	"github.com/pthm-cable/pphpc/telemetry"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	strategies := flag.String("strategies", "single,equal,ondemand,exclusive", "Comma separated strategies")
	workers := flag.String("workers", "1,2,4,8", "Comma separated worker counts")
	seeds := flag.Int("seeds", 3, "Number of seeds per configuration")
	iterations := flag.Int("iterations", 0, "Final tick (0 = config value)")
	blockSize := flag.Int("block-size", 0, "Block size for ondemand (0 = config value)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	base := config.Cfg()
	if *iterations > 0 {
		base.Engine.Iterations = *iterations
	}
	if *blockSize > 0 {
		base.Engine.BlockSize = *blockSize
	}

	plan, err := buildPlan(*strategies, *workers, *seeds)
	if err != nil {
		log.Fatal(err)
	}

	host := telemetry.CollectHostInfo(context.Background())
	if err := writeJSON(filepath.Join(*outputDir, "host.json"), host); err != nil {
		log.Printf("failed to write host info: %v", err)
	}

	fmt.Printf("Sweeping %d runs (%d ticks each) on %s, %d logical cores\n",
		len(plan), base.Engine.Iterations, host.CPUModel, host.LogicalCores)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	results := make([]Result, 0, len(plan))
	startTime := time.Now()

	for i, p := range plan {
		res, err := runOne(base, p, quiet)
		if err != nil {
			log.Fatalf("run %s/w%d/seed %d failed: %v", p.Strategy, p.Workers, p.Seed, err)
		}
		results = append(results, res)

		elapsed := time.Since(startTime)
		avg := elapsed / time.Duration(i+1)
		remaining := time.Duration(len(plan)-i-1) * avg
		fmt.Printf("Run %d/%d: %-9s w=%-3d seed=%-6d %8.1f ticks/s sheep=%d wolves=%d | elapsed: %s, ETA: %s\n",
			i+1, len(plan), res.Strategy, res.Workers, res.Seed, res.TicksPerSecond,
			res.FinalSheep, res.FinalWolves, formatDuration(elapsed), formatDuration(remaining))
	}

	if err := writeCSV(filepath.Join(*outputDir, "sweep.csv"), &results); err != nil {
		log.Fatalf("failed to write sweep.csv: %v", err)
	}

	groups := Compare(results)
	if err := writeCSV(filepath.Join(*outputDir, "compare.csv"), &groups); err != nil {
		log.Fatalf("failed to write compare.csv: %v", err)
	}

	fmt.Printf("\nSweep complete after %d runs in %s\n\n", len(results), formatDuration(time.Since(startTime)))
	for _, g := range groups {
		fmt.Printf("  %-9s w=%-3d %8.1f ± %-7.1f ticks/s  speedup=%.2f  sheep=%.1f  t(sheep)=%+.2f\n",
			g.Strategy, g.Workers, g.TicksPerSecondMean, g.TicksPerSecondStdDev,
			g.Speedup, g.FinalSheepMean, g.SheepT)
	}
}

// Point is one configuration in the sweep.
type Point struct {
	Strategy engine.Strategy
	Workers  int
	Seed     uint64
}

func buildPlan(strategies, workers string, seeds int) ([]Point, error) {
	if seeds < 1 {
		return nil, fmt.Errorf("seeds must be >= 1, got %d", seeds)
	}

	var ss []engine.Strategy
	for _, name := range strings.Split(strategies, ",") {
		s, err := engine.ParseStrategy(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		ss = append(ss, s)
	}

	var ws []int
	for _, field := range strings.Split(workers, ",") {
		w, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || w < 1 {
			return nil, fmt.Errorf("invalid worker count %q", field)
		}
		ws = append(ws, w)
	}

	var plan []Point
	for _, s := range ss {
		for _, w := range ws {
			// single-threaded ignores the worker count
			if s == engine.SingleThread && w != ws[0] {
				continue
			}
			for i := range seeds {
				plan = append(plan, Point{Strategy: s, Workers: w, Seed: uint64(i*1000 + 42)})
			}
		}
	}
	return plan, nil
}

// Result is one row of sweep.csv.
type Result struct {
	Strategy       string  `csv:"strategy"`
	Workers        int     `csv:"workers"`
	BlockSize      int     `csv:"block_size"`
	Seed           uint64  `csv:"seed"`
	Ticks          int     `csv:"ticks"`
	ElapsedMS      int64   `csv:"elapsed_ms"`
	TicksPerSecond float64 `csv:"ticks_per_sec"`
	FinalSheep     int64   `csv:"final_sheep"`
	FinalWolves    int64   `csv:"final_wolves"`
	FinalGrass     int64   `csv:"final_grass"`
}

func runOne(base *config.Config, p Point, logger *slog.Logger) (Result, error) {
	cfg := *base
	cfg.Engine.Strategy = p.Strategy
	cfg.Engine.Workers = p.Workers
	cfg.Engine.Seed = p.Seed

	s, err := sim.New(&cfg, sim.Options{Logger: logger})
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	if err := s.Run(context.Background()); err != nil {
		return Result{}, err
	}
	elapsed := time.Since(start)

	final, _ := s.Stats().Latest()
	res := Result{
		Strategy:    p.Strategy.String(),
		Workers:     cfg.Derived.Workers,
		Seed:        p.Seed,
		Ticks:       s.Tick(),
		ElapsedMS:   elapsed.Milliseconds(),
		FinalSheep:  final.Sheep,
		FinalWolves: final.Wolves,
		FinalGrass:  final.Grass,
	}
	if p.Strategy == engine.OnDemand {
		res.BlockSize = cfg.Engine.BlockSize
	}
	if elapsed > 0 {
		res.TicksPerSecond = float64(s.Tick()) / elapsed.Seconds()
	}
	return res, nil
}

func writeCSV(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(rows, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
