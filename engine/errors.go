package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match with errors.Is.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrWorkerExecution   = errors.New("worker execution error")
	ErrSynchronization   = errors.New("synchronization error")
	ErrRNGInitialization = errors.New("rng initialization error")

	// ErrRegistrationClosed is returned when an observer is registered after the run started.
	ErrRegistrationClosed = errors.New("observer registration closed")
)

// Error carries the location of a failure inside a run.
// Worker, Tick and Phase are -1/empty when not applicable.
type Error struct {
	Kind   error
	Worker int
	Tick   int
	Phase  string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Worker >= 0 {
		fmt.Fprintf(&b, " (worker %d", e.Worker)
		if e.Tick >= 0 {
			fmt.Fprintf(&b, ", tick %d", e.Tick)
		}
		if e.Phase != "" {
			fmt.Fprintf(&b, ", phase %s", e.Phase)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func configError(format string, args ...any) error {
	return &Error{Kind: ErrConfiguration, Worker: -1, Tick: -1, Err: fmt.Errorf(format, args...)}
}

func syncError(err error) error {
	return &Error{Kind: ErrSynchronization, Worker: -1, Tick: -1, Err: err}
}
