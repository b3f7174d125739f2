package engine

import (
	"fmt"
	"sync/atomic"
)

// WorkerState is one worker's cursor into a provider's work. Each provider
// creates and accepts only its own variant; handing a state to a different
// provider is a programming error and panics.
type WorkerState interface {
	Worker() int
	isWorkerState()
}

// Provider hands out work-unit indices for the current phase.
type Provider interface {
	// NewWorkerState creates the cursor for a worker. Panics if the id is out of range.
	NewWorkerState(worker int) WorkerState
	// Next returns the next claimed index, or false when the phase has no more work for this worker.
	Next(s WorkerState) (int, bool)
	// Reset rewinds the worker's cursor at the start of a phase.
	Reset(s WorkerState)
	// ResetShared rewinds state shared between workers. It must only be
	// called while no worker is claiming, i.e. inside a barrier release.
	ResetShared()
	// Size returns the number of work units per phase.
	Size() int
}

func checkWorker(worker, workers int) {
	if worker < 0 || worker >= workers {
		panic(fmt.Sprintf("engine: worker id %d out of range [0,%d)", worker, workers))
	}
}

// singleState is the SingleThread cursor.
type singleState struct {
	worker  int
	counter int
}

func (s *singleState) Worker() int  { return s.worker }
func (*singleState) isWorkerState() {}

// SingleThreadProvider serves every index to its only worker.
type SingleThreadProvider struct {
	size int
}

// NewSingleThreadProvider creates a provider for one worker.
func NewSingleThreadProvider(size int) *SingleThreadProvider {
	return &SingleThreadProvider{size: size}
}

func (p *SingleThreadProvider) NewWorkerState(worker int) WorkerState {
	checkWorker(worker, 1)
	return &singleState{worker: worker}
}

func (p *SingleThreadProvider) Next(s WorkerState) (int, bool) {
	st := s.(*singleState)
	if st.counter >= p.size {
		return 0, false
	}
	i := st.counter
	st.counter++
	return i, true
}

func (p *SingleThreadProvider) Reset(s WorkerState) { s.(*singleState).counter = 0 }
func (p *SingleThreadProvider) ResetShared()        {}
func (p *SingleThreadProvider) Size() int           { return p.size }

// rangeState is a fixed [first,last) range walked by a cursor.
type rangeState struct {
	worker      int
	first, last int
	cursor      int
}

func (s *rangeState) Worker() int  { return s.worker }
func (*rangeState) isWorkerState() {}

// Range returns the worker's fixed range.
func (s *rangeState) Range() (first, last int) { return s.first, s.last }

func nextInRange(s WorkerState) (int, bool) {
	st := s.(*rangeState)
	if st.cursor >= st.last {
		return 0, false
	}
	i := st.cursor
	st.cursor++
	return i, true
}

// EqualStaticProvider splits [0,size) into one contiguous range per worker.
// Range sizes differ by at most one.
type EqualStaticProvider struct {
	size    int
	workers int
}

// NewEqualStaticProvider creates a static partition over workers.
func NewEqualStaticProvider(size, workers int) *EqualStaticProvider {
	return &EqualStaticProvider{size: size, workers: workers}
}

func (p *EqualStaticProvider) NewWorkerState(worker int) WorkerState {
	checkWorker(worker, p.workers)
	first := worker * p.size / p.workers
	last := (worker + 1) * p.size / p.workers
	return &rangeState{worker: worker, first: first, last: last, cursor: first}
}

func (p *EqualStaticProvider) Next(s WorkerState) (int, bool) { return nextInRange(s) }
func (p *EqualStaticProvider) Reset(s WorkerState) {
	st := s.(*rangeState)
	st.cursor = st.first
}
func (p *EqualStaticProvider) ResetShared() {}
func (p *EqualStaticProvider) Size() int    { return p.size }

// ExclusiveProvider is a static partition whose boundaries fall on whole
// grid rows, so every worker exclusively owns complete rows.
type ExclusiveProvider struct {
	size     int
	workers  int
	rowWidth int
}

// NewExclusiveProvider creates a row-aligned static partition.
func NewExclusiveProvider(size, workers, rowWidth int) *ExclusiveProvider {
	return &ExclusiveProvider{size: size, workers: workers, rowWidth: rowWidth}
}

func (p *ExclusiveProvider) NewWorkerState(worker int) WorkerState {
	checkWorker(worker, p.workers)
	rows := (p.size + p.rowWidth - 1) / p.rowWidth
	first := min(worker*rows/p.workers*p.rowWidth, p.size)
	last := min((worker+1)*rows/p.workers*p.rowWidth, p.size)
	return &rangeState{worker: worker, first: first, last: last, cursor: first}
}

func (p *ExclusiveProvider) Next(s WorkerState) (int, bool) { return nextInRange(s) }
func (p *ExclusiveProvider) Reset(s WorkerState) {
	st := s.(*rangeState)
	st.cursor = st.first
}
func (p *ExclusiveProvider) ResetShared() {}
func (p *ExclusiveProvider) Size() int    { return p.size }

// onDemandState is a worker's local window [current,last) refilled from the shared counter.
type onDemandState struct {
	worker  int
	current int
	last    int
}

func (s *onDemandState) Worker() int  { return s.worker }
func (*onDemandState) isWorkerState() {}

// OnDemandProvider hands out blocks of indices from a shared atomic counter.
// One atomic operation serves blockSize claims.
type OnDemandProvider struct {
	counter   atomic.Int64
	size      int
	workers   int
	blockSize int
}

// NewOnDemandProvider creates a dynamic provider with the given block size.
func NewOnDemandProvider(size, workers, blockSize int) *OnDemandProvider {
	return &OnDemandProvider{size: size, workers: workers, blockSize: blockSize}
}

func (p *OnDemandProvider) NewWorkerState(worker int) WorkerState {
	checkWorker(worker, p.workers)
	return &onDemandState{worker: worker}
}

func (p *OnDemandProvider) Next(s WorkerState) (int, bool) {
	st := s.(*onDemandState)
	if st.current >= st.last {
		st.current = int(p.counter.Add(int64(p.blockSize))) - p.blockSize
		st.last = min(st.current+p.blockSize, p.size)
		if st.current < p.size {
			blockRefills.Inc()
		}
	}
	if st.current >= p.size {
		return 0, false
	}
	i := st.current
	st.current++
	return i, true
}

// Reset clears only the worker's local window.
func (p *OnDemandProvider) Reset(s WorkerState) {
	st := s.(*onDemandState)
	st.current = 0
	st.last = 0
}

// ResetShared rewinds the shared counter to zero.
func (p *OnDemandProvider) ResetShared() { p.counter.Store(0) }

func (p *OnDemandProvider) Size() int { return p.size }

// BlockSize returns the number of indices claimed per atomic operation.
func (p *OnDemandProvider) BlockSize() int { return p.blockSize }
