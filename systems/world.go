// Package systems implements the phases of a predator-prey tick on a grid.
//
// Every phase method has the signature of engine.Phase.Apply and touches
// only the cell it is given, except settle, which also reads the agent
// lists of the four neighbouring cells. That is what lets the engine hand
// cells to workers in any partition.
package systems

import (
	"github.com/pthm-cable/pphpc/components"
	"github.com/pthm-cable/pphpc/engine"
)

// Species holds the parameters of sheep or wolves.
type Species struct {
	GainFromFood       int
	ReproduceThreshold int
	ReproduceProb      int // percent
}

// Params are the model constants read by the phases.
type Params struct {
	GrassRestart int
	Sheep        Species
	Wolves       Species
	Shuffle      bool
}

func (p *Params) species(k components.Kind) *Species {
	if k == components.KindWolf {
		return &p.Wolves
	}
	return &p.Sheep
}

// World is the simulated grid plus its parameters. It implements engine.Model.
type World struct {
	Grid   *components.Grid
	Params Params
}

// NewWorld wraps a grid.
func NewWorld(grid *components.Grid, params Params) *World {
	return &World{Grid: grid, Params: params}
}

// Size returns the number of cells.
func (s *World) Size() int { return s.Grid.Size() }

// Phases returns the tick phases in order.
func (s *World) Phases() []engine.Phase {
	return []engine.Phase{
		{Name: PhaseMove, Apply: s.Move},
		{Name: PhaseSettle, Apply: s.Settle},
		{Name: PhaseFeed, Apply: s.Feed},
		{Name: PhaseReproduce, Apply: s.Reproduce},
		{Name: PhaseGrow, Apply: s.Grow},
		{Name: PhaseCensus, Apply: s.Census},
	}
}
