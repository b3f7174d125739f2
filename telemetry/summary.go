package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SummaryRow aggregates one metric over a whole run.
type SummaryRow struct {
	Metric string  `csv:"metric" json:"metric"`
	Mean   float64 `csv:"mean" json:"mean"`
	StdDev float64 `csv:"std" json:"std"`
	Min    float64 `csv:"min" json:"min"`
	Median float64 `csv:"median" json:"median"`
	Max    float64 `csv:"max" json:"max"`
	Final  float64 `csv:"final" json:"final"`
	ArgMax int     `csv:"argmax_tick" json:"argmax_tick"`
}

// Summarize computes one row per record metric, in Record.Metrics order.
// It returns nil for an empty run.
func Summarize(records []Record) []SummaryRow {
	if len(records) == 0 {
		return nil
	}

	metrics := records[0].Metrics()
	series := make([][]float64, len(metrics))
	for i := range series {
		series[i] = make([]float64, len(records))
	}
	for t, r := range records {
		for i, m := range r.Metrics() {
			series[i][t] = m.Value
		}
	}

	rows := make([]SummaryRow, len(metrics))
	for i, m := range metrics {
		xs := series[i]
		mean, std := stat.MeanStdDev(xs, nil)
		if len(xs) < 2 {
			std = 0
		}

		sorted := append([]float64(nil), xs...)
		sort.Float64s(sorted)

		rows[i] = SummaryRow{
			Metric: m.Name,
			Mean:   mean,
			StdDev: std,
			Min:    floats.Min(xs),
			Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
			Max:    floats.Max(xs),
			Final:  xs[len(xs)-1],
			ArgMax: records[floats.MaxIdx(xs)].Tick,
		}
	}
	return rows
}

// LogSummary logs the population rows of a summary.
func LogSummary(rows []SummaryRow) {
	for _, r := range rows {
		switch r.Metric {
		case "sheep", "wolves", "grass":
			slog.Info("summary",
				"metric", r.Metric,
				"mean", r.Mean,
				"std", r.StdDev,
				"min", r.Min,
				"max", r.Max,
				"final", r.Final,
			)
		}
	}
}
