package main

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/pphpc/engine"
)

// Group aggregates the runs of one strategy and worker count.
type Group struct {
	Strategy             string  `csv:"strategy"`
	Workers              int     `csv:"workers"`
	Runs                 int     `csv:"runs"`
	TicksPerSecondMean   float64 `csv:"ticks_per_sec_mean"`
	TicksPerSecondStdDev float64 `csv:"ticks_per_sec_std"`
	Speedup              float64 `csv:"speedup"` // relative to the single-threaded mean
	FinalSheepMean       float64 `csv:"final_sheep_mean"`
	FinalWolvesMean      float64 `csv:"final_wolves_mean"`

	// Welch t statistics of final populations against the single-threaded
	// runs. Large magnitudes mean the strategy shifts the dynamics.
	SheepT  float64 `csv:"sheep_t"`
	WolvesT float64 `csv:"wolves_t"`
}

type groupKey struct {
	strategy string
	workers  int
}

type samples struct {
	tps, sheep, wolves []float64
}

// Compare groups results by strategy and worker count. Groups come out in
// the order they first appear. Without single-threaded runs the speedup and
// t statistics are left at zero.
func Compare(results []Result) []Group {
	var order []groupKey
	bucket := make(map[groupKey]*samples)
	for _, r := range results {
		k := groupKey{r.Strategy, r.Workers}
		b, ok := bucket[k]
		if !ok {
			b = &samples{}
			bucket[k] = b
			order = append(order, k)
		}
		b.tps = append(b.tps, r.TicksPerSecond)
		b.sheep = append(b.sheep, float64(r.FinalSheep))
		b.wolves = append(b.wolves, float64(r.FinalWolves))
	}

	var ref *samples
	single := engine.SingleThread.String()
	for _, k := range order {
		if k.strategy == single {
			ref = bucket[k]
			break
		}
	}

	groups := make([]Group, 0, len(order))
	for _, k := range order {
		b := bucket[k]
		mean, std := meanStdDev(b.tps)
		g := Group{
			Strategy:             k.strategy,
			Workers:              k.workers,
			Runs:                 len(b.tps),
			TicksPerSecondMean:   mean,
			TicksPerSecondStdDev: std,
			FinalSheepMean:       stat.Mean(b.sheep, nil),
			FinalWolvesMean:      stat.Mean(b.wolves, nil),
		}
		if ref != nil {
			if refMean := stat.Mean(ref.tps, nil); refMean > 0 {
				g.Speedup = mean / refMean
			}
			g.SheepT = welchT(b.sheep, ref.sheep)
			g.WolvesT = welchT(b.wolves, ref.wolves)
		}
		groups = append(groups, g)
	}
	return groups
}

func meanStdDev(x []float64) (float64, float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.MeanStdDev(x, nil)
}

// welchT returns the Welch t statistic for the difference of means of a
// and b. Identical samples, or samples with no variance and equal means,
// give zero.
func welchT(a, b []float64) float64 {
	if len(a) < 2 || len(b) < 2 {
		return 0
	}
	if slices.Equal(a, b) {
		return 0
	}
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	se := math.Sqrt(va/float64(len(a)) + vb/float64(len(b)))
	if se == 0 {
		if ma == mb {
			return 0
		}
		return math.Copysign(math.Inf(1), ma-mb)
	}
	return (ma - mb) / se
}
