package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase("move")
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase("settle")
		time.Sleep(200 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration")
	}

	if _, ok := stats.PhaseAvg["move"]; !ok {
		t.Error("expected move phase to be tracked")
	}

	if _, ok := stats.PhaseAvg["settle"]; !ok {
		t.Error("expected settle phase to be tracked")
	}

	if len(stats.Phases) != 2 || stats.Phases[0] != "move" || stats.Phases[1] != "settle" {
		t.Errorf("phases = %v, want [move settle]", stats.Phases)
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.StartTick()
		pc.StartPhase("grow")
		time.Sleep(10 * time.Microsecond)
		pc.EndTick()
	}

	if pc.Samples() != 5 {
		t.Errorf("samples = %d, want 5", pc.Samples())
	}

	stats := pc.Stats()
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration after window filled")
	}
	if stats.TicksPerSecond <= 0 {
		t.Error("expected positive ticks per second")
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase("fast")
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase("slow")
		time.Sleep(2 * time.Millisecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	fastPct := stats.PhasePct["fast"]
	slowPct := stats.PhasePct["slow"]

	if slowPct <= fastPct {
		t.Errorf("expected slow phase (%v%%) > fast phase (%v%%)", slowPct, fastPct)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)

	stats := pc.Stats()

	if stats.AvgTickDuration != 0 {
		t.Error("expected zero avg tick duration for empty collector")
	}
	if stats.PhaseAvg == nil {
		t.Error("expected non-nil PhaseAvg map")
	}
	if stats.PhasePct == nil {
		t.Error("expected non-nil PhasePct map")
	}
}

func TestPerfStats_ToCSV(t *testing.T) {
	s := PerfStats{
		AvgTickDuration: 1500 * time.Microsecond,
		PhaseAvg:        map[string]time.Duration{"feed": 600 * time.Microsecond, "census": 75 * time.Microsecond},
		PhasePct:        map[string]float64{"feed": 40, "census": 5},
		Phases:          []string{"feed", "census"},
		TicksPerSecond:  666,
	}

	rows := s.ToCSV(200, 4)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want one per phase", len(rows))
	}
	for _, row := range rows {
		if row.WindowEnd != 200 || row.Workers != 4 || row.AvgTickUS != 1500 {
			t.Errorf("unexpected tick columns: %+v", row)
		}
	}
	if rows[0].Phase != "feed" || rows[0].PhasePct != 40 || rows[0].PhaseAvgUS != 600 {
		t.Errorf("first row = %+v, want feed 40%% 600us", rows[0])
	}
	if rows[1].Phase != "census" || rows[1].PhasePct != 5 {
		t.Errorf("second row = %+v, want census 5%%", rows[1])
	}
}

func TestPerfStats_ToCSVWithoutPhases(t *testing.T) {
	rows := PerfStats{AvgTickDuration: time.Millisecond}.ToCSV(10, 1)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Phase != "" || rows[0].AvgTickUS != 1000 {
		t.Errorf("row = %+v", rows[0])
	}
}
