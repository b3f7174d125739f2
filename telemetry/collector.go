package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats aggregates the records of a window of ticks.
type WindowStats struct {
	WindowStartTick int `csv:"window_start"`
	WindowEndTick   int `csv:"window_end"`

	// Populations at the end of the window
	Sheep  int64 `csv:"sheep"`
	Wolves int64 `csv:"wolves"`
	Grass  int64 `csv:"grass"`

	// Population distribution over the window
	SheepMean float64 `csv:"sheep_mean"`
	SheepP10  float64 `csv:"sheep_p10"`
	SheepP90  float64 `csv:"sheep_p90"`
	WolfMean  float64 `csv:"wolves_mean"`
	WolfP10   float64 `csv:"wolves_p10"`
	WolfP90   float64 `csv:"wolves_p90"`

	// Event totals over the window
	SheepBirths int64 `csv:"sheep_births"`
	WolfBirths  int64 `csv:"wolf_births"`
	SheepDeaths int64 `csv:"sheep_deaths"`
	WolfDeaths  int64 `csv:"wolf_deaths"`
	SheepEaten  int64 `csv:"sheep_eaten"`
	GrassEaten  int64 `csv:"grass_eaten"`

	// PredationRate is sheep eaten per sheep-tick.
	PredationRate float64 `csv:"predation_rate"`
}

// LogStats logs the window using slog.
func (w WindowStats) LogStats() {
	slog.Info("window",
		"start", w.WindowStartTick,
		"end", w.WindowEndTick,
		"sheep", w.Sheep,
		"wolves", w.Wolves,
		"grass", w.Grass,
		"sheep_mean", w.SheepMean,
		"wolves_mean", w.WolfMean,
		"sheep_births", w.SheepBirths,
		"wolf_births", w.WolfBirths,
		"sheep_eaten", w.SheepEaten,
		"predation_rate", w.PredationRate,
	)
}

// Collector accumulates records within windows of ticks and produces WindowStats.
type Collector struct {
	windowDurationTicks int
	windowStartTick     int

	sheep  []float64
	wolves []float64
	last   Record
	events Counters
}

// NewCollector creates a collector that flushes every windowTicks ticks.
func NewCollector(windowTicks int) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		windowDurationTicks: windowTicks,
		sheep:               make([]float64, 0, windowTicks),
		wolves:              make([]float64, 0, windowTicks),
	}
}

// Add folds a closed tick into the current window.
func (c *Collector) Add(r Record) {
	if len(c.sheep) == 0 && r.Tick > 0 {
		c.windowStartTick = r.Tick - 1
	}
	c.sheep = append(c.sheep, float64(r.Sheep))
	c.wolves = append(c.wolves, float64(r.Wolves))
	c.last = r
	c.events.SheepBirths += r.SheepBirths
	c.events.WolfBirths += r.WolfBirths
	c.events.SheepDeaths += r.SheepDeaths
	c.events.WolfDeaths += r.WolfDeaths
	c.events.SheepEaten += r.SheepEaten
	c.events.GrassEaten += r.GrassEaten
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int) bool {
	return len(c.sheep) > 0 && currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Pending reports whether the current window holds unflushed records.
func (c *Collector) Pending() bool { return len(c.sheep) > 0 }

// Flush produces a WindowStats and resets the collector for the next window.
func (c *Collector) Flush() WindowStats {
	sheepMean, sheepP10, sheepP90 := distribution(c.sheep)
	wolfMean, wolfP10, wolfP90 := distribution(c.wolves)

	var sheepTicks float64
	for _, s := range c.sheep {
		sheepTicks += s
	}
	var predation float64
	if sheepTicks > 0 {
		predation = float64(c.events.SheepEaten) / sheepTicks
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   c.last.Tick,
		Sheep:           c.last.Sheep,
		Wolves:          c.last.Wolves,
		Grass:           c.last.Grass,
		SheepMean:       sheepMean,
		SheepP10:        sheepP10,
		SheepP90:        sheepP90,
		WolfMean:        wolfMean,
		WolfP10:         wolfP10,
		WolfP90:         wolfP90,
		SheepBirths:     c.events.SheepBirths,
		WolfBirths:      c.events.WolfBirths,
		SheepDeaths:     c.events.SheepDeaths,
		WolfDeaths:      c.events.WolfDeaths,
		SheepEaten:      c.events.SheepEaten,
		GrassEaten:      c.events.GrassEaten,
		PredationRate:   predation,
	}

	c.windowStartTick = c.last.Tick
	c.sheep = c.sheep[:0]
	c.wolves = c.wolves[:0]
	c.events.Reset()

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int {
	return c.windowDurationTicks
}

// distribution returns the mean, 10th and 90th percentile of xs.
func distribution(xs []float64) (mean, p10, p90 float64) {
	if len(xs) == 0 {
		return 0, 0, 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mean = stat.Mean(sorted, nil)
	p10 = stat.Quantile(0.1, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	return mean, p10, p90
}
