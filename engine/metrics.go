package engine

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ticksTotal counts completed ticks
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pphpc_ticks_total",
		Help: "Total completed simulation ticks",
	})

	// phaseDuration tracks wall time of a phase from first claim to barrier release
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pphpc_phase_duration_seconds",
		Help:    "Phase duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // 10us to ~330ms
	}, []string{"phase"})

	// barrierWait tracks how long a worker waits at the barrier
	barrierWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pphpc_barrier_wait_seconds",
		Help:    "Time a worker spends parked at the barrier",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 12), // 1us to ~4s
	})

	// blockRefills counts atomic claims on the on-demand shared counter
	blockRefills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pphpc_ondemand_block_claims_total",
		Help: "Total atomic block claims by on-demand workers",
	})

	// runFailures counts failed runs by error kind
	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pphpc_run_failures_total",
		Help: "Total failed runs by error kind",
	}, []string{"kind"})
)

func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrWorkerExecution):
		return "worker"
	case errors.Is(err, ErrSynchronization):
		return "sync"
	case errors.Is(err, ErrConfiguration):
		return "config"
	case errors.Is(err, ErrRNGInitialization):
		return "rng"
	default:
		return "other"
	}
}
