package systems

import (
	"github.com/pthm-cable/pphpc/components"
	"github.com/pthm-cable/pphpc/engine"
)

// Reproduce gives every agent of cell j above its species' energy
// threshold a reproduce_prob percent chance to split its energy with a
// newborn placed in the same cell. The parent keeps the lower half.
// Newborns do not reproduce in the tick they are born.
func (s *World) Reproduce(w *engine.Worker, j int) error {
	c := &s.Grid.Cells[j]
	n := len(c.Agents)
	if n == 0 {
		return nil
	}
	ctr := w.Counters()
	r := w.RNG()

	for k := 0; k < n; k++ {
		a := c.Agents[k]
		sp := s.Params.species(a.Kind)
		if a.Energy <= sp.ReproduceThreshold || r.IntN(100) >= sp.ReproduceProb {
			continue
		}
		c.Agents[k].Energy = a.Energy / 2
		c.Agents = append(c.Agents, components.Agent{
			Kind:   a.Kind,
			Energy: a.Energy - a.Energy/2,
		})
		if a.Kind == components.KindSheep {
			ctr.SheepBirths++
		} else {
			ctr.WolfBirths++
		}
	}
	return nil
}
