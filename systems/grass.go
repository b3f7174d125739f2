package systems

import (
	"github.com/pthm-cable/pphpc/components"
	"github.com/pthm-cable/pphpc/engine"
	"github.com/pthm-cable/pphpc/telemetry"
)

// Grow advances the regrowth countdown of cell j.
func (s *World) Grow(_ *engine.Worker, j int) error {
	c := &s.Grid.Cells[j]
	if c.Countdown > 0 {
		c.Countdown--
	}
	return nil
}

// Census adds cell j to the worker's counters.
func (s *World) Census(w *engine.Worker, j int) error {
	s.CensusCell(w.Counters(), j)
	return nil
}

// CensusCell adds cell j's population, energy and grass to ctr.
func (s *World) CensusCell(ctr *telemetry.Counters, j int) {
	c := &s.Grid.Cells[j]
	if c.Grass() {
		ctr.Grass++
	}
	ctr.GrassCountdown += int64(c.Countdown)
	for _, a := range c.Agents {
		if a.Kind == components.KindSheep {
			ctr.Sheep++
			ctr.SheepEnergy += int64(a.Energy)
		} else {
			ctr.Wolves++
			ctr.WolfEnergy += int64(a.Energy)
		}
	}
}
