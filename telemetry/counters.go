// Package telemetry provides per-tick statistics, their persistence, and
// population event detection.
package telemetry

// Counters accumulates one worker's partial statistics during a tick.
// Every field is an integer sum so that merging is exact and the merged
// totals do not depend on the order in which workers finished.
type Counters struct {
	Sheep          int64
	Wolves         int64
	Grass          int64 // cells with fully grown grass
	SheepEnergy    int64
	WolfEnergy     int64
	GrassCountdown int64 // sum of regrowth countdowns over all cells

	SheepBirths int64
	WolfBirths  int64
	SheepDeaths int64 // starvation
	WolfDeaths  int64
	SheepEaten  int64
	GrassEaten  int64
	Moves       int64
}

// Add folds other into c.
func (c *Counters) Add(other *Counters) {
	c.Sheep += other.Sheep
	c.Wolves += other.Wolves
	c.Grass += other.Grass
	c.SheepEnergy += other.SheepEnergy
	c.WolfEnergy += other.WolfEnergy
	c.GrassCountdown += other.GrassCountdown
	c.SheepBirths += other.SheepBirths
	c.WolfBirths += other.WolfBirths
	c.SheepDeaths += other.SheepDeaths
	c.WolfDeaths += other.WolfDeaths
	c.SheepEaten += other.SheepEaten
	c.GrassEaten += other.GrassEaten
	c.Moves += other.Moves
}

// Reset clears all counters for the next tick.
func (c *Counters) Reset() {
	*c = Counters{}
}

// Merge sums the per-worker counters in slice order. Callers pass them
// indexed by worker id, never by arrival order.
func Merge(parts []Counters) Counters {
	var total Counters
	for i := range parts {
		total.Add(&parts[i])
	}
	return total
}
