package systems

import (
	"github.com/pthm-cable/pphpc/components"
	"github.com/pthm-cable/pphpc/engine"
)

// Move charges every agent in cell i one unit of energy, removes the ones
// that starve and picks a direction for the survivors. The agents stay in
// cell i until Settle gathers them at their destination.
func (s *World) Move(w *engine.Worker, i int) error {
	c := &s.Grid.Cells[i]
	if len(c.Agents) == 0 {
		return nil
	}
	ctr := w.Counters()
	r := w.RNG()

	n := 0
	for _, a := range c.Agents {
		a.Energy--
		if a.Energy < 1 {
			if a.Kind == components.KindSheep {
				ctr.SheepDeaths++
			} else {
				ctr.WolfDeaths++
			}
			continue
		}
		a.Dir = components.Direction(r.IntN(int(components.NumDirections)))
		if a.Dir != components.DirStay {
			ctr.Moves++
		}
		c.Agents[n] = a
		n++
	}
	clear(c.Agents[n:])
	c.Agents = c.Agents[:n]
	return nil
}

// Settle gathers into cell j's next buffer every agent whose chosen move
// ends at j. Sources are scanned in the fixed order stay, north, east,
// south, west, so the arrival order is independent of the partition.
// Matching on the move rather than the destination keeps each agent
// gathered exactly once even on grids one or two cells wide.
func (s *World) Settle(_ *engine.Worker, j int) error {
	dst := &s.Grid.Cells[j]
	for _, d := range components.Directions {
		src := &s.Grid.Cells[s.Grid.Neighbour(j, d)]
		want := d.Opposite()
		for _, a := range src.Agents {
			if a.Dir == want {
				dst.Arrive(a)
			}
		}
	}
	return nil
}
