// Package components defines the agents and cells of the predator-prey grid.
package components

import "fmt"

// Kind distinguishes sheep from wolves.
type Kind uint8

const (
	KindSheep Kind = iota
	KindWolf
)

func (k Kind) String() string {
	switch k {
	case KindSheep:
		return "sheep"
	case KindWolf:
		return "wolf"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Direction is a move within the von Neumann neighbourhood.
type Direction uint8

const (
	DirStay Direction = iota
	DirNorth
	DirEast
	DirSouth
	DirWest
	NumDirections
)

// Directions lists all moves in the fixed gather order.
var Directions = [NumDirections]Direction{DirStay, DirNorth, DirEast, DirSouth, DirWest}

// Opposite returns the reverse move. DirStay is its own opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case DirNorth:
		return DirSouth
	case DirSouth:
		return DirNorth
	case DirEast:
		return DirWest
	case DirWest:
		return DirEast
	}
	return DirStay
}

func (d Direction) String() string {
	return [...]string{"stay", "north", "east", "south", "west"}[d]
}

// Agent is a sheep or wolf. Agents are stored by value in their cell.
type Agent struct {
	Kind   Kind
	Energy int
	Dir    Direction // move chosen for the current tick
	Eaten  bool      // sheep killed by a wolf, removed at the end of feeding
}

// Cell is one grid square.
type Cell struct {
	// Countdown is the number of ticks until the grass regrows.
	// Zero means the grass is fully grown and edible.
	Countdown int
	Agents    []Agent

	// next collects agents arriving during settle; swapped in by Commit.
	next []Agent
}

// Grass reports whether the cell holds edible grass.
func (c *Cell) Grass() bool { return c.Countdown == 0 }

// Arrive appends an incoming agent to the cell's next buffer.
func (c *Cell) Arrive(a Agent) { c.next = append(c.next, a) }

// Pending returns the agents gathered for the next commit.
func (c *Cell) Pending() []Agent { return c.next }

// Commit makes the gathered agents current and recycles the old slice.
func (c *Cell) Commit() {
	c.Agents, c.next = c.next, c.Agents[:0]
}

// Compact removes eaten agents in place, keeping order.
func (c *Cell) Compact() {
	n := 0
	for _, a := range c.Agents {
		if !a.Eaten {
			c.Agents[n] = a
			n++
		}
	}
	clear(c.Agents[n:])
	c.Agents = c.Agents[:n]
}
