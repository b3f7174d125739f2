package telemetry

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkSheepExtinct    BookmarkType = "sheep_extinct"
	BookmarkWolvesExtinct   BookmarkType = "wolves_extinct"
	BookmarkSheepCrash      BookmarkType = "sheep_crash"
	BookmarkWolfRecovery    BookmarkType = "wolf_recovery"
	BookmarkStableEcosystem BookmarkType = "stable_ecosystem"
)

// BookmarksConfig holds bookmark detection thresholds.
type BookmarksConfig struct {
	SheepCrash      SheepCrashConfig      `yaml:"sheep_crash"`
	WolfRecovery    WolfRecoveryConfig    `yaml:"wolf_recovery"`
	StableEcosystem StableEcosystemConfig `yaml:"stable_ecosystem"`
}

// SheepCrashConfig holds sheep crash detection parameters.
type SheepCrashConfig struct {
	DropPercent float64 `yaml:"drop_percent"` // fraction of the recent peak
	MinDrop     int64   `yaml:"min_drop"`
}

// WolfRecoveryConfig holds wolf recovery detection parameters.
type WolfRecoveryConfig struct {
	MinPopulation      int64 `yaml:"min_population"` // the low point must be at or below this
	RecoveryMultiplier int64 `yaml:"recovery_multiplier"`
	MinFinal           int64 `yaml:"min_final"`
}

// StableEcosystemConfig holds stable ecosystem detection parameters.
type StableEcosystemConfig struct {
	MinSheep    int64   `yaml:"min_sheep"`
	MinWolves   int64   `yaml:"min_wolves"`
	CVThreshold float64 `yaml:"cv_threshold"` // coefficient of variation over the history
	StableTicks int     `yaml:"stable_ticks"`
}

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Tick        int          `csv:"tick" json:"tick"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the population dynamics.
type BookmarkDetector struct {
	cfg BookmarksConfig

	// Rolling history (circular buffer)
	history     []Record
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	recentWolfMin    int64 // minimum wolf count since the last recovery
	recentSheepPeak  int64 // peak sheep count since the last crash
	stableTicksCount int   // consecutive ticks with stable populations
	sheepGone        bool
	wolvesGone       bool
	seenWolfMin      bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int, cfg BookmarksConfig) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable ecosystem detection
	}
	return &BookmarkDetector{
		cfg:         cfg,
		history:     make([]Record, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest record and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(r Record) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkExtinction(r); b != nil {
		bookmarks = append(bookmarks, b...)
	}
	if bd.historyFull || bd.historyIdx > 0 {
		if b := bd.checkWolfRecovery(r); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkSheepCrash(r); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(r)

	if b := bd.checkStableEcosystem(r); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	// Track wolf minimum and sheep peak
	if !bd.seenWolfMin || r.Wolves < bd.recentWolfMin {
		bd.recentWolfMin = r.Wolves
		bd.seenWolfMin = true
	}
	if r.Sheep > bd.recentSheepPeak {
		bd.recentSheepPeak = r.Sheep
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(r Record) {
	bd.history[bd.historyIdx] = r
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []Record {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// checkExtinction fires once per species when its population first hits zero.
func (bd *BookmarkDetector) checkExtinction(r Record) []Bookmark {
	var out []Bookmark
	if r.Sheep == 0 && !bd.sheepGone {
		bd.sheepGone = true
		out = append(out, Bookmark{
			Type:        BookmarkSheepExtinct,
			Tick:        r.Tick,
			Description: fmt.Sprintf("Sheep extinct with %d wolves left", r.Wolves),
		})
	}
	if r.Wolves == 0 && !bd.wolvesGone {
		bd.wolvesGone = true
		out = append(out, Bookmark{
			Type:        BookmarkWolvesExtinct,
			Tick:        r.Tick,
			Description: fmt.Sprintf("Wolves extinct with %d sheep left", r.Sheep),
		})
	}
	return out
}

func (bd *BookmarkDetector) checkWolfRecovery(r Record) *Bookmark {
	c := bd.cfg.WolfRecovery
	if bd.recentWolfMin == 0 || bd.recentWolfMin > c.MinPopulation {
		return nil
	}

	threshold := bd.recentWolfMin * c.RecoveryMultiplier
	if r.Wolves >= threshold && r.Wolves >= c.MinFinal {
		// Reset the minimum after triggering
		oldMin := bd.recentWolfMin
		bd.recentWolfMin = r.Wolves

		return &Bookmark{
			Type:        BookmarkWolfRecovery,
			Tick:        r.Tick,
			Description: fmt.Sprintf("Wolf population recovered from %d to %d", oldMin, r.Wolves),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkSheepCrash(r Record) *Bookmark {
	if bd.recentSheepPeak == 0 {
		return nil
	}
	c := bd.cfg.SheepCrash

	dropPercent := 1.0 - float64(r.Sheep)/float64(bd.recentSheepPeak)
	if dropPercent > c.DropPercent && r.Sheep < bd.recentSheepPeak-c.MinDrop {
		// Reset peak after crash
		oldPeak := bd.recentSheepPeak
		bd.recentSheepPeak = r.Sheep

		return &Bookmark{
			Type:        BookmarkSheepCrash,
			Tick:        r.Tick,
			Description: fmt.Sprintf("Sheep crashed %.0f%% from peak %d to %d", dropPercent*100, oldPeak, r.Sheep),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkStableEcosystem(r Record) *Bookmark {
	c := bd.cfg.StableEcosystem
	if r.Sheep < c.MinSheep || r.Wolves < c.MinWolves {
		bd.stableTicksCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 5 {
		return nil
	}

	sheep := make([]float64, len(history))
	wolves := make([]float64, len(history))
	for i, h := range history {
		sheep[i] = float64(h.Sheep)
		wolves[i] = float64(h.Wolves)
	}
	sheepCV := coefficientOfVariation(sheep)
	wolfCV := coefficientOfVariation(wolves)

	if sheepCV < c.CVThreshold && wolfCV < c.CVThreshold {
		bd.stableTicksCount++
	} else {
		bd.stableTicksCount = 0
	}

	if bd.stableTicksCount == c.StableTicks { // trigger exactly once per stable stretch
		return &Bookmark{
			Type:        BookmarkStableEcosystem,
			Tick:        r.Tick,
			Description: fmt.Sprintf("Stable ecosystem with %d sheep, %d wolves over %d ticks", r.Sheep, r.Wolves, c.StableTicks),
		}
	}

	return nil
}

func coefficientOfVariation(x []float64) float64 {
	mean, std := stat.PopMeanStdDev(x, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}
