package components

// Grid is a toroidal width x height lattice of cells stored row-major.
// Cell i sits at (i % Width, i / Width).
type Grid struct {
	Width  int
	Height int
	Cells  []Cell
}

// NewGrid allocates an empty grid.
func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Cells:  make([]Cell, width*height),
	}
}

// Size returns the number of cells.
func (g *Grid) Size() int { return len(g.Cells) }

// Index returns the flat index of (x, y), wrapping both coordinates.
func (g *Grid) Index(x, y int) int {
	x %= g.Width
	if x < 0 {
		x += g.Width
	}
	y %= g.Height
	if y < 0 {
		y += g.Height
	}
	return y*g.Width + x
}

// XY returns the coordinates of cell i.
func (g *Grid) XY(i int) (x, y int) {
	return i % g.Width, i / g.Width
}

// Neighbour returns the index reached from i by moving in d.
func (g *Grid) Neighbour(i int, d Direction) int {
	x, y := g.XY(i)
	switch d {
	case DirNorth:
		y--
	case DirSouth:
		y++
	case DirEast:
		x++
	case DirWest:
		x--
	default:
		return i
	}
	return g.Index(x, y)
}

// Population counts the agents of each kind over the whole grid.
func (g *Grid) Population() (sheep, wolves int) {
	for i := range g.Cells {
		for _, a := range g.Cells[i].Agents {
			if a.Kind == KindSheep {
				sheep++
			} else {
				wolves++
			}
		}
	}
	return sheep, wolves
}
