// Package engine runs a tick-based simulation on a fixed pool of workers.
//
// Each tick is a fixed sequence of phases. In every phase each worker claims
// work-unit indices from a Provider, applies the phase to them and then
// waits at a Synchronizer barrier, so no worker starts a phase before every
// worker finished the previous one. After the last phase the per-worker
// counters are merged in worker-id order into one telemetry.Record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/pphpc/rng"
	"github.com/pthm-cable/pphpc/telemetry"
)

// Phase is one step of a tick. Apply is called once per work unit and may
// only write state owned by that unit.
type Phase struct {
	Name  string
	Apply func(w *Worker, unit int) error
}

// Model is the simulation driven by the controller.
type Model interface {
	// Size returns the number of work units (grid cells) per phase.
	Size() int
	// Phases returns the ordered phases of one tick.
	Phases() []Phase
}

// PhaseTimer receives phase boundaries. Calls happen inside barrier
// releases, never concurrently. telemetry.PerfCollector implements it.
type PhaseTimer interface {
	StartTick()
	StartPhase(name string)
	EndTick()
}

// Options configures a Controller.
type Options struct {
	Strategy  Strategy
	Workers   int
	BlockSize int // OnDemand claim size
	RowWidth  int // Exclusive row width

	// Iterations is the final tick. A run whose stats already hold tick k
	// continues with k+1.
	Iterations int

	Seed   uint64
	RNG    rng.Algorithm
	Keying rng.Keying // OnDemand overrides this with KeyByUnit

	// PhaseTimeout aborts the run if a barrier generation does not
	// complete in time. Zero waits forever.
	PhaseTimeout time.Duration

	Perf   PhaseTimer
	Logger *slog.Logger
}

// Worker is the per-goroutine context handed to Phase.Apply.
type Worker struct {
	id       int
	state    WorkerState
	counters *telemetry.Counters

	agents  rng.Stream
	shuffle rng.Stream

	keyByUnit bool
	unitMod   uint64
	agentsDue bool
	shuffDue  bool

	tick  int
	phase string
}

// ID returns the worker id in [0, workers).
func (w *Worker) ID() int { return w.id }

// Tick returns the tick being computed.
func (w *Worker) Tick() int { return w.tick }

// Phase returns the name of the phase being applied.
func (w *Worker) Phase() string { return w.phase }

// Counters returns the worker's statistics for the current tick.
func (w *Worker) Counters() *telemetry.Counters { return w.counters }

// RNG returns the stream for agent decisions.
func (w *Worker) RNG() rng.Stream {
	if w.agentsDue {
		w.agents.Reseed(w.unitMod)
		w.agentsDue = false
	}
	return w.agents
}

// ShuffleRNG returns the stream used to shuffle agents within a cell.
func (w *Worker) ShuffleRNG() rng.Stream {
	if w.shuffDue {
		w.shuffle.Reseed(rng.Derive(w.unitMod, rng.PurposeShuffle))
		w.shuffDue = false
	}
	return w.shuffle
}

// claim binds the worker's streams to a work unit when keyed by unit.
// Reseeding is deferred until a stream is actually drawn from.
func (w *Worker) claim(phase, unit int) {
	if !w.keyByUnit {
		return
	}
	w.unitMod = rng.UnitModifier(w.tick, phase, unit)
	w.agentsDue = true
	w.shuffDue = true
}

// Controller owns the worker pool and drives ticks.
type Controller struct {
	model    Model
	phases   []Phase
	opts     Options
	logger   *slog.Logger
	provider Provider
	sync     *Synchronizer
	stats    *telemetry.GlobalStats

	workers  []*Worker
	counters []telemetry.Counters
	releases []func() error // per-phase release actions

	// Written only inside barrier releases; read by workers after Arrive.
	completed  int
	more       bool
	phaseStart time.Time

	started atomic.Bool
	stop    atomic.Bool
}

// NewController validates the options and prepares workers and RNG streams.
// No goroutine is started until Run.
func NewController(model Model, stats *telemetry.GlobalStats, opts Options) (*Controller, error) {
	if model == nil {
		return nil, configError("nil model")
	}
	phases := model.Phases()
	if len(phases) == 0 {
		return nil, configError("model has no phases")
	}
	for i, ph := range phases {
		if ph.Apply == nil {
			return nil, configError("phase %d (%q) has no apply function", i, ph.Name)
		}
	}
	if opts.Iterations < 0 {
		return nil, configError("iterations must be >= 0, got %d", opts.Iterations)
	}
	if opts.PhaseTimeout < 0 {
		return nil, configError("phase timeout must be >= 0, got %v", opts.PhaseTimeout)
	}
	opts.Keying = opts.Strategy.Keying(opts.Keying)

	provider, err := NewProvider(opts.Strategy, ProviderParams{
		Size:      model.Size(),
		Workers:   opts.Workers,
		BlockSize: opts.BlockSize,
		RowWidth:  opts.RowWidth,
	})
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = telemetry.NewGlobalStats(opts.Iterations + 1)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		model:    model,
		phases:   phases,
		opts:     opts,
		logger:   logger,
		provider: provider,
		stats:    stats,
		workers:  make([]*Worker, opts.Workers),
		counters: make([]telemetry.Counters, opts.Workers),
	}
	if last, ok := stats.Latest(); ok {
		c.completed = last.Tick
	}
	c.releases = make([]func() error, len(phases))
	for pi := range phases[:len(phases)-1] {
		c.releases[pi] = c.endPhase(pi)
	}
	c.releases[len(phases)-1] = c.endTick
	c.sync = NewSynchronizer(opts.Workers, opts.PhaseTimeout, c)

	for i := range c.workers {
		agents, err := rng.New(opts.RNG, opts.Seed, rng.WorkerModifier(i, rng.PurposeAgents))
		if err != nil {
			return nil, &Error{Kind: ErrRNGInitialization, Worker: i, Tick: -1, Err: err}
		}
		shuffle, err := rng.New(opts.RNG, opts.Seed, rng.WorkerModifier(i, rng.PurposeShuffle))
		if err != nil {
			return nil, &Error{Kind: ErrRNGInitialization, Worker: i, Tick: -1, Err: err}
		}
		c.workers[i] = &Worker{
			id:        i,
			state:     provider.NewWorkerState(i),
			counters:  &c.counters[i],
			agents:    agents,
			shuffle:   shuffle,
			keyByUnit: opts.Keying == rng.KeyByUnit,
		}
	}
	return c, nil
}

// Observe registers an observer. It must be called before Run.
func (c *Controller) Observe(ev Event, fn Observer) error {
	return c.sync.Register(ev, fn)
}

// Stop requests a graceful stop: the tick in flight completes, the
// remaining ticks are skipped and STOP observers still fire.
func (c *Controller) Stop() { c.stop.Store(true) }

// Tick returns the last completed tick.
func (c *Controller) Tick() int { return c.completed }

// Latest returns the most recent statistics record.
func (c *Controller) Latest() (telemetry.Record, bool) { return c.stats.Latest() }

// Stats returns the statistics accumulator.
func (c *Controller) Stats() *telemetry.GlobalStats { return c.stats }

// Provider returns the work provider shared by all phases.
func (c *Controller) Provider() Provider { return c.provider }

// Run executes the configured ticks and returns when all workers have
// exited. A Controller runs at most once. Cancelling ctx aborts the run at
// the next barrier.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return configError("controller already ran")
	}
	if err := c.sync.Register(EventNewIteration, c.advance); err != nil {
		return err
	}
	c.sync.Seal()

	c.logger.Info("engine starting",
		"strategy", c.opts.Strategy.String(),
		"workers", len(c.workers),
		"block_size", c.opts.BlockSize,
		"iterations", c.opts.Iterations,
		"rng", c.opts.RNG.String(),
		"keying", c.opts.Keying.String(),
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	stopAbort := context.AfterFunc(gctx, func() {
		c.sync.Abort(context.Cause(gctx))
	})
	defer stopAbort()

	for _, w := range c.workers {
		g.Go(func() error { return c.work(w) })
	}
	err := g.Wait()
	if err != nil {
		// Ensure nobody can pass a barrier any more, then tell observers.
		c.sync.Abort(err)
		c.sync.Notify(EventStop)
		runFailures.WithLabelValues(failureKind(err)).Inc()
		c.logger.Error("engine failed", "tick", c.completed, "error", err)
		return err
	}

	c.logger.Info("engine finished",
		"ticks", c.completed,
		"stopped", c.stop.Load(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (c *Controller) work(w *Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: ErrWorkerExecution, Worker: w.id, Tick: w.tick, Phase: w.phase, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := c.sync.Arrive(EventStart, c.begin); err != nil {
		return err
	}
	last := len(c.phases) - 1
	for c.more {
		w.tick = c.completed + 1
		for pi, ph := range c.phases {
			w.phase = ph.Name
			if err := c.runPhase(w, pi, ph); err != nil {
				return err
			}
			ev := EventNone
			if pi == last {
				ev = EventNewIteration
			}
			if err := c.sync.Arrive(ev, c.releases[pi]); err != nil {
				return err
			}
		}
	}
	w.phase = ""
	return c.sync.Arrive(EventStop, nil)
}

func (c *Controller) runPhase(w *Worker, pi int, ph Phase) error {
	c.provider.Reset(w.state)
	for {
		unit, ok := c.provider.Next(w.state)
		if !ok {
			return nil
		}
		w.claim(pi, unit)
		if err := ph.Apply(w, unit); err != nil {
			var e *Error
			if errors.As(err, &e) {
				return err
			}
			return &Error{Kind: ErrWorkerExecution, Worker: w.id, Tick: w.tick, Phase: ph.Name, Err: err}
		}
	}
}

// begin is the START release action.
func (c *Controller) begin() error {
	c.more = c.completed < c.opts.Iterations && !c.stop.Load()
	if c.more {
		c.startTick()
	}
	return nil
}

func (c *Controller) startTick() {
	c.phaseStart = time.Now()
	if c.opts.Perf != nil {
		c.opts.Perf.StartTick()
		c.opts.Perf.StartPhase(c.phases[0].Name)
	}
}

// endPhase returns the release action of a non-final phase.
func (c *Controller) endPhase(pi int) func() error {
	return func() error {
		c.observePhase(pi)
		c.provider.ResetShared()
		if c.opts.Perf != nil {
			c.opts.Perf.StartPhase(c.phases[pi+1].Name)
		}
		return nil
	}
}

// endTick is the release action of the final phase: it closes the tick.
func (c *Controller) endTick() error {
	c.observePhase(len(c.phases) - 1)
	c.provider.ResetShared()

	c.completed++
	c.stats.Append(telemetry.NewRecord(c.completed, telemetry.Merge(c.counters), c.model.Size()))
	for i := range c.counters {
		c.counters[i].Reset()
	}
	ticksTotal.Inc()
	if c.opts.Perf != nil {
		c.opts.Perf.EndTick()
	}
	return nil
}

// advance decides whether another tick runs. It is the last NEW_ITERATION
// observer, so a Stop from any other observer takes effect immediately.
func (c *Controller) advance(Event, View) {
	c.more = c.completed < c.opts.Iterations && !c.stop.Load()
	if c.more {
		c.startTick()
	}
}

func (c *Controller) observePhase(pi int) {
	now := time.Now()
	phaseDuration.WithLabelValues(c.phases[pi].Name).Observe(now.Sub(c.phaseStart).Seconds())
	c.phaseStart = now
}
