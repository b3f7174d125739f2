package telemetry

import (
	"log/slog"
	"sync"
)

// Record holds the merged statistics of one completed tick.
type Record struct {
	Tick int `csv:"tick" json:"tick"`

	Sheep  int64 `csv:"sheep" json:"sheep"`
	Wolves int64 `csv:"wolves" json:"wolves"`
	Grass  int64 `csv:"grass" json:"grass"`

	SheepEnergyMean    float64 `csv:"sheep_en" json:"sheep_en"`
	WolfEnergyMean     float64 `csv:"wolves_en" json:"wolves_en"`
	GrassCountdownMean float64 `csv:"grass_en" json:"grass_en"`

	// Events during the tick
	SheepBirths int64 `csv:"sheep_births" json:"sheep_births"`
	WolfBirths  int64 `csv:"wolf_births" json:"wolf_births"`
	SheepDeaths int64 `csv:"sheep_deaths" json:"sheep_deaths"`
	WolfDeaths  int64 `csv:"wolf_deaths" json:"wolf_deaths"`
	SheepEaten  int64 `csv:"sheep_eaten" json:"sheep_eaten"`
	GrassEaten  int64 `csv:"grass_eaten" json:"grass_eaten"`
}

// NewRecord closes a tick from merged counters. cells is the grid size used
// for the mean grass countdown.
func NewRecord(tick int, c Counters, cells int) Record {
	r := Record{
		Tick:        tick,
		Sheep:       c.Sheep,
		Wolves:      c.Wolves,
		Grass:       c.Grass,
		SheepBirths: c.SheepBirths,
		WolfBirths:  c.WolfBirths,
		SheepDeaths: c.SheepDeaths,
		WolfDeaths:  c.WolfDeaths,
		SheepEaten:  c.SheepEaten,
		GrassEaten:  c.GrassEaten,
	}
	if c.Sheep > 0 {
		r.SheepEnergyMean = float64(c.SheepEnergy) / float64(c.Sheep)
	}
	if c.Wolves > 0 {
		r.WolfEnergyMean = float64(c.WolfEnergy) / float64(c.Wolves)
	}
	if cells > 0 {
		r.GrassCountdownMean = float64(c.GrassCountdown) / float64(cells)
	}
	return r
}

// Metric is one named value of a record.
type Metric struct {
	Name  string
	Value float64
}

// Metrics returns the record's values in a stable order.
func (r Record) Metrics() []Metric {
	return []Metric{
		{"sheep", float64(r.Sheep)},
		{"wolves", float64(r.Wolves)},
		{"grass", float64(r.Grass)},
		{"sheep_en", r.SheepEnergyMean},
		{"wolves_en", r.WolfEnergyMean},
		{"grass_en", r.GrassCountdownMean},
		{"sheep_births", float64(r.SheepBirths)},
		{"wolf_births", float64(r.WolfBirths)},
		{"sheep_deaths", float64(r.SheepDeaths)},
		{"wolf_deaths", float64(r.WolfDeaths)},
		{"sheep_eaten", float64(r.SheepEaten)},
		{"grass_eaten", float64(r.GrassEaten)},
	}
}

// Get returns a metric by name.
func (r Record) Get(name string) (float64, bool) {
	for _, m := range r.Metrics() {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// LogValue implements slog.LogValuer for structured logging.
func (r Record) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("tick", r.Tick),
		slog.Int64("sheep", r.Sheep),
		slog.Int64("wolves", r.Wolves),
		slog.Int64("grass", r.Grass),
		slog.Float64("sheep_en", r.SheepEnergyMean),
		slog.Float64("wolves_en", r.WolfEnergyMean),
		slog.Float64("grass_en", r.GrassCountdownMean),
		slog.Int64("sheep_births", r.SheepBirths),
		slog.Int64("wolf_births", r.WolfBirths),
		slog.Int64("sheep_eaten", r.SheepEaten),
	)
}

// LogStats logs the record using slog.
func (r Record) LogStats() {
	slog.Info("stats",
		"tick", r.Tick,
		"sheep", r.Sheep,
		"wolves", r.Wolves,
		"grass", r.Grass,
		"sheep_en", r.SheepEnergyMean,
		"wolves_en", r.WolfEnergyMean,
		"grass_en", r.GrassCountdownMean,
		"sheep_births", r.SheepBirths,
		"wolf_births", r.WolfBirths,
		"sheep_deaths", r.SheepDeaths,
		"wolf_deaths", r.WolfDeaths,
		"sheep_eaten", r.SheepEaten,
		"grass_eaten", r.GrassEaten,
	)
}

// GlobalStats is the append-only sequence of per-tick records.
// Records are stored by value; once appended they are never modified.
type GlobalStats struct {
	mu      sync.RWMutex
	records []Record
}

// NewGlobalStats creates an accumulator with room for the given number of ticks.
func NewGlobalStats(capacity int) *GlobalStats {
	if capacity < 0 {
		capacity = 0
	}
	return &GlobalStats{records: make([]Record, 0, capacity)}
}

// Append closes a tick.
func (g *GlobalStats) Append(r Record) {
	g.mu.Lock()
	g.records = append(g.records, r)
	g.mu.Unlock()
}

// Len returns the number of closed ticks.
func (g *GlobalStats) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.records)
}

// Latest returns the most recently closed record.
func (g *GlobalStats) Latest() (Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.records) == 0 {
		return Record{}, false
	}
	return g.records[len(g.records)-1], true
}

// At returns the i-th record.
func (g *GlobalStats) At(i int) (Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if i < 0 || i >= len(g.records) {
		return Record{}, false
	}
	return g.records[i], true
}

// Records returns a copy of all closed records.
func (g *GlobalStats) Records() []Record {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Record, len(g.records))
	copy(out, g.records)
	return out
}
