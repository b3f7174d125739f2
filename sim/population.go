package sim

import (
	"fmt"

	"github.com/pthm-cable/pphpc/components"
	"github.com/pthm-cable/pphpc/config"
	"github.com/pthm-cable/pphpc/rng"
	"github.com/pthm-cable/pphpc/systems"
	"github.com/pthm-cable/pphpc/telemetry"
)

// populate seeds grass and places the initial sheep and wolves.
// It draws from a dedicated stream so the initial state depends only on
// the seed and algorithm, never on the worker count.
func populate(g *components.Grid, cfg *config.Config) error {
	r, err := rng.New(cfg.Engine.RNG, cfg.Engine.Seed, rng.WorkerModifier(0, rng.PurposeInit))
	if err != nil {
		return fmt.Errorf("initial population: %w", err)
	}

	for i := range g.Cells {
		if r.Float64() < cfg.World.InitialGrass {
			g.Cells[i].Countdown = 0
		} else {
			g.Cells[i].Countdown = 1 + r.IntN(cfg.World.GrassRestart)
		}
	}

	place := func(kind components.Kind, sp config.SpeciesConfig) {
		for range sp.Initial {
			c := &g.Cells[r.IntN(len(g.Cells))]
			c.Agents = append(c.Agents, components.Agent{
				Kind:   kind,
				Energy: 1 + r.IntN(2*sp.GainFromFood),
			})
		}
	}
	place(components.KindSheep, cfg.Sheep)
	place(components.KindWolf, cfg.Wolves)
	return nil
}

// census builds the record of the world as it stands.
func census(w *systems.World, tick int) telemetry.Record {
	var ctr telemetry.Counters
	for j := range w.Size() {
		w.CensusCell(&ctr, j)
	}
	return telemetry.NewRecord(tick, ctr, w.Size())
}
