package systems

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/pphpc/components"
	"github.com/pthm-cable/pphpc/engine"
	"github.com/pthm-cable/pphpc/rng"
	"github.com/pthm-cable/pphpc/telemetry"
)

var testParams = Params{
	GrassRestart: 10,
	Sheep:        Species{GainFromFood: 4, ReproduceThreshold: 2, ReproduceProb: 4},
	Wolves:       Species{GainFromFood: 20, ReproduceThreshold: 2, ReproduceProb: 5},
}

// phaseModel runs a subset of a world's phases.
type phaseModel struct {
	world  *World
	phases []engine.Phase
}

func (m phaseModel) Size() int               { return m.world.Size() }
func (m phaseModel) Phases() []engine.Phase { return m.phases }

// runPhases executes the given phases for a number of ticks and returns the records.
func runPhases(t *testing.T, world *World, ticks, workers int, names ...string) []telemetry.Record {
	t.Helper()
	all := world.Phases()
	var phases []engine.Phase
	if len(names) == 0 {
		phases = all
	}
	for _, n := range names {
		for _, ph := range all {
			if ph.Name == n {
				phases = append(phases, ph)
			}
		}
	}
	if len(names) > 0 {
		require.Len(t, phases, len(names))
	}

	c, err := engine.NewController(phaseModel{world: world, phases: phases}, nil, engine.Options{
		Strategy:   engine.EqualStatic,
		Workers:    workers,
		Iterations: ticks,
		Seed:       7,
		RNG:        rng.PCG,
	})
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background()))
	return c.Stats().Records()
}

func TestMove_StarvationAndDirection(t *testing.T) {
	world := NewWorld(components.NewGrid(3, 3), testParams)
	world.Grid.Cells[4].Agents = []components.Agent{
		{Kind: components.KindSheep, Energy: 1},
		{Kind: components.KindWolf, Energy: 1},
		{Kind: components.KindSheep, Energy: 5},
	}

	records := runPhases(t, world, 1, 1, PhaseMove)
	require.Len(t, records, 1)
	assert.EqualValues(t, 1, records[0].SheepDeaths)
	assert.EqualValues(t, 1, records[0].WolfDeaths)

	agents := world.Grid.Cells[4].Agents
	require.Len(t, agents, 1)
	assert.Equal(t, 4, agents[0].Energy)
	assert.Less(t, agents[0].Dir, components.NumDirections)
}

func TestSettle_GathersEachAgentOnce(t *testing.T) {
	for _, size := range [][2]int{{1, 1}, {1, 2}, {2, 1}, {2, 2}, {3, 3}, {7, 4}} {
		world := NewWorld(components.NewGrid(size[0], size[1]), testParams)
		total := 0
		for i := range world.Grid.Cells {
			for _, d := range components.Directions {
				world.Grid.Cells[i].Agents = append(world.Grid.Cells[i].Agents,
					components.Agent{Kind: components.KindSheep, Energy: 10 + i, Dir: d})
				total++
			}
		}

		runPhases(t, world, 1, 2, PhaseSettle)

		gathered := 0
		for j := range world.Grid.Cells {
			for _, a := range world.Grid.Cells[j].Pending() {
				src := a.Energy - 10
				assert.Equal(t, j, world.Grid.Neighbour(src, a.Dir), "grid %v: agent from %d moving %v landed in %d", size, src, a.Dir, j)
				gathered++
			}
		}
		assert.Equal(t, total, gathered, "grid %v", size)
	}
}

func TestFeed_SheepThenWolf(t *testing.T) {
	world := NewWorld(components.NewGrid(1, 1), testParams)
	c := &world.Grid.Cells[0]
	c.Arrive(components.Agent{Kind: components.KindSheep, Energy: 3})
	c.Arrive(components.Agent{Kind: components.KindSheep, Energy: 3})
	c.Arrive(components.Agent{Kind: components.KindWolf, Energy: 5})

	records := runPhases(t, world, 1, 1, PhaseFeed)

	assert.EqualValues(t, 1, records[0].GrassEaten)
	assert.EqualValues(t, 1, records[0].SheepEaten)
	assert.Equal(t, testParams.GrassRestart, c.Countdown)
	assert.Equal(t, []components.Agent{
		{Kind: components.KindSheep, Energy: 3},
		{Kind: components.KindWolf, Energy: 25},
	}, c.Agents)
}

func TestFeed_NoGrassNoSheep(t *testing.T) {
	world := NewWorld(components.NewGrid(1, 1), testParams)
	c := &world.Grid.Cells[0]
	c.Countdown = 3
	c.Arrive(components.Agent{Kind: components.KindWolf, Energy: 5})
	c.Arrive(components.Agent{Kind: components.KindSheep, Energy: 2})

	params := testParams
	params.Shuffle = true
	world.Params = params
	runPhases(t, world, 1, 1, PhaseFeed)

	// Shuffled or not, the wolf finds the sheep and the sheep finds no grass.
	require.Len(t, c.Agents, 1)
	assert.Equal(t, components.KindWolf, c.Agents[0].Kind)
	assert.Equal(t, 25, c.Agents[0].Energy)
	assert.Equal(t, 3, c.Countdown)
}

func TestReproduce_SplitsEnergy(t *testing.T) {
	params := testParams
	params.Sheep.ReproduceProb = 100
	params.Wolves.ReproduceProb = 0
	world := NewWorld(components.NewGrid(2, 1), params)
	world.Grid.Cells[0].Agents = []components.Agent{
		{Kind: components.KindSheep, Energy: 7},
		{Kind: components.KindSheep, Energy: 2}, // at threshold: no
		{Kind: components.KindWolf, Energy: 50},
	}

	records := runPhases(t, world, 1, 1, PhaseReproduce)

	assert.EqualValues(t, 1, records[0].SheepBirths)
	assert.Zero(t, records[0].WolfBirths)
	assert.Equal(t, []components.Agent{
		{Kind: components.KindSheep, Energy: 3},
		{Kind: components.KindSheep, Energy: 2},
		{Kind: components.KindWolf, Energy: 50},
		{Kind: components.KindSheep, Energy: 4},
	}, world.Grid.Cells[0].Agents)
}

func TestGrowAndCensus(t *testing.T) {
	world := NewWorld(components.NewGrid(3, 1), testParams)
	world.Grid.Cells[0].Countdown = 3
	world.Grid.Cells[1].Countdown = 1
	world.Grid.Cells[2].Agents = []components.Agent{
		{Kind: components.KindSheep, Energy: 4},
		{Kind: components.KindSheep, Energy: 6},
		{Kind: components.KindWolf, Energy: 9},
	}

	records := runPhases(t, world, 1, 1, PhaseGrow, PhaseCensus)
	r := records[0]

	assert.Equal(t, 2, world.Grid.Cells[0].Countdown)
	assert.Equal(t, 0, world.Grid.Cells[1].Countdown)
	assert.EqualValues(t, 2, r.Grass)
	assert.EqualValues(t, 2, r.Sheep)
	assert.EqualValues(t, 1, r.Wolves)
	assert.InDelta(t, 5.0, r.SheepEnergyMean, 1e-9)
	assert.InDelta(t, 9.0, r.WolfEnergyMean, 1e-9)
	assert.InDelta(t, 2.0/3.0, r.GrassCountdownMean, 1e-9)
}

func TestFullTick_ConservesAgentsWithoutEvents(t *testing.T) {
	params := testParams
	params.Sheep.ReproduceProb = 0
	world := NewWorld(components.NewGrid(5, 5), params)
	for i := range world.Grid.Cells {
		world.Grid.Cells[i].Countdown = 5
		world.Grid.Cells[i].Agents = []components.Agent{{Kind: components.KindSheep, Energy: 100}}
	}

	records := runPhases(t, world, 3, 4)
	for _, r := range records {
		assert.EqualValues(t, 25, r.Sheep)
		assert.Zero(t, r.SheepDeaths)
	}
	sheep, wolves := world.Grid.Population()
	assert.Equal(t, 25, sheep)
	assert.Zero(t, wolves)
}

func TestSystemRegistry_MatchesPhases(t *testing.T) {
	reg := NewSystemRegistry()
	world := NewWorld(components.NewGrid(1, 1), testParams)

	var names []string
	for _, ph := range world.Phases() {
		names = append(names, ph.Name)
	}
	assert.Equal(t, reg.IDs(), names)
	assert.Equal(t, "Feed", reg.GetName(PhaseFeed))
	assert.Equal(t, "unknown", reg.GetName("unknown"))
	assert.Len(t, reg.ByCategory("agents"), 4)
}
