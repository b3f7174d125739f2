package systems

import (
	"github.com/pthm-cable/pphpc/components"
	"github.com/pthm-cable/pphpc/engine"
	"github.com/pthm-cable/pphpc/rng"
)

// Feed commits the agents gathered by Settle into cell j, optionally
// shuffles them, and lets them eat in that order. A sheep eats grown grass
// and resets its countdown; a wolf eats one uneaten sheep of the cell.
func (s *World) Feed(w *engine.Worker, j int) error {
	c := &s.Grid.Cells[j]
	c.Commit()
	if len(c.Agents) == 0 {
		return nil
	}
	if s.Params.Shuffle && len(c.Agents) > 1 {
		shuffleAgents(c.Agents, w.ShuffleRNG())
	}

	ctr := w.Counters()
	eaten := false
	for k := range c.Agents {
		a := &c.Agents[k]
		if a.Eaten {
			continue
		}
		switch a.Kind {
		case components.KindSheep:
			if c.Grass() {
				a.Energy += s.Params.Sheep.GainFromFood
				c.Countdown = s.Params.GrassRestart
				ctr.GrassEaten++
			}
		case components.KindWolf:
			for m := range c.Agents {
				prey := &c.Agents[m]
				if prey.Kind == components.KindSheep && !prey.Eaten {
					prey.Eaten = true
					a.Energy += s.Params.Wolves.GainFromFood
					ctr.SheepEaten++
					eaten = true
					break
				}
			}
		}
	}
	if eaten {
		c.Compact()
	}
	return nil
}

// shuffleAgents is a Fisher-Yates shuffle.
func shuffleAgents(agents []components.Agent, r rng.Stream) {
	for i := len(agents) - 1; i > 0; i-- {
		k := r.IntN(i + 1)
		agents[i], agents[k] = agents[k], agents[i]
	}
}
