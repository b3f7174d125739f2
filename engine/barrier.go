package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pthm-cable/pphpc/telemetry"
)

// Event names a barrier rendezvous that observers can subscribe to.
type Event uint8

const (
	// EventNone is an anonymous phase barrier with no observers.
	EventNone Event = iota
	EventStart
	EventNewIteration
	EventStop
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventStart:
		return "start"
	case EventNewIteration:
		return "new_iteration"
	case EventStop:
		return "stop"
	default:
		return fmt.Sprintf("Event(%d)", uint8(e))
	}
}

// View is the read-only state handed to observers.
type View interface {
	// Tick returns the last completed tick (0 before the first tick).
	Tick() int
	// Latest returns the most recently closed statistics record.
	Latest() (telemetry.Record, bool)
}

// Observer is called once per release of the event it was registered for.
// It runs on the goroutine of the last worker to arrive while all other
// workers are parked, so it may read simulation state without locking.
type Observer func(ev Event, v View)

// ErrAborted is wrapped by the error every waiter receives after Abort.
var ErrAborted = errors.New("barrier aborted")

// Synchronizer is a reusable generation-counted barrier for a fixed number
// of parties, with an observer bus fired on release.
type Synchronizer struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	arrived    int
	generation uint64
	event      Event
	err        error

	sealed    bool
	observers map[Event][]Observer
	view      View

	timeout time.Duration
	timer   *time.Timer
}

// NewSynchronizer creates a barrier for the given number of parties. A
// positive timeout aborts any generation that does not complete in time.
func NewSynchronizer(parties int, timeout time.Duration, view View) *Synchronizer {
	s := &Synchronizer{
		parties:   parties,
		observers: make(map[Event][]Observer),
		view:      view,
		timeout:   timeout,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Register adds an observer for ev. Fails after Seal.
func (s *Synchronizer) Register(ev Event, fn Observer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return ErrRegistrationClosed
	}
	s.observers[ev] = append(s.observers[ev], fn)
	return nil
}

// Seal closes observer registration.
func (s *Synchronizer) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// Parties returns the number of parties per generation.
func (s *Synchronizer) Parties() int { return s.parties }

// Generation returns the number of completed releases.
func (s *Synchronizer) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Err returns the abort error, if any.
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Arrive blocks until all parties of the current generation have arrived.
// The last party to arrive runs action (if non-nil) and then the observers
// of ev before anyone is released. If action fails the barrier is aborted
// and the observers do not fire.
func (s *Synchronizer) Arrive(ev Event, action func() error) error {
	start := time.Now()
	defer func() { barrierWait.Observe(time.Since(start).Seconds()) }()

	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return err
	}
	if s.arrived == 0 {
		s.event = ev
		s.armTimer()
	} else if s.event != ev {
		err := syncError(fmt.Errorf("event mismatch in generation %d: %v vs %v", s.generation, s.event, ev))
		s.abortLocked(err)
		s.mu.Unlock()
		return err
	}
	s.arrived++

	if s.arrived < s.parties {
		gen := s.generation
		for gen == s.generation && s.err == nil {
			s.cond.Wait()
		}
		defer s.mu.Unlock()
		if gen == s.generation {
			return s.err
		}
		return nil
	}

	// Last arriver. Nobody else can enter this generation, so the release
	// runs without the lock and observers may call back into View.
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	observers := s.observers[ev]
	s.mu.Unlock()

	err := s.release(ev, action, observers)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.abortLocked(err)
		return s.err
	}
	if s.err != nil {
		return s.err
	}
	s.arrived = 0
	s.generation++
	s.cond.Broadcast()
	return nil
}

func (s *Synchronizer) release(ev Event, action func() error, observers []Observer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = syncError(fmt.Errorf("panic in %v release: %v", ev, r))
		}
	}()
	if action != nil {
		if err := action(); err != nil {
			return err
		}
	}
	for _, fn := range observers {
		fn(ev, s.view)
	}
	return nil
}

// Notify fires the observers of ev outside a rendezvous. It is used to
// deliver STOP after a failed run, once every worker has exited.
func (s *Synchronizer) Notify(ev Event) {
	s.mu.Lock()
	observers := s.observers[ev]
	s.mu.Unlock()
	for _, fn := range observers {
		fn(ev, s.view)
	}
}

// Abort wakes every waiter with a synchronization error wrapping cause.
// Every later Arrive fails immediately. Only the first abort counts.
func (s *Synchronizer) Abort(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked(cause)
}

func (s *Synchronizer) abortLocked(cause error) {
	if s.err != nil {
		return
	}
	if cause == nil {
		cause = ErrAborted
	}
	var e *Error
	if errors.As(cause, &e) && e.Kind == ErrSynchronization {
		s.err = cause
	} else {
		s.err = syncError(fmt.Errorf("%w: %w", ErrAborted, cause))
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.cond.Broadcast()
}

func (s *Synchronizer) armTimer() {
	if s.timeout <= 0 {
		return
	}
	gen := s.generation
	s.timer = time.AfterFunc(s.timeout, func() { s.expire(gen) })
}

// expire aborts generation gen if it is still waiting for parties. A timer
// that fires after the last party arrived finds the generation releasing
// or already advanced and does nothing.
func (s *Synchronizer) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen && s.arrived > 0 && s.arrived < s.parties {
		s.abortLocked(syncError(fmt.Errorf("generation %d timed out after %v with %d/%d parties",
			gen, s.timeout, s.arrived, s.parties)))
	}
}
