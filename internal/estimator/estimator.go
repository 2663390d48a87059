// Package estimator coalesces rapid input changes into a single remote calculation.
//
// Every Update restarts a quiet-period timer and bumps a sequence number. Only the
// params of the last update reach the calculator, and a result is published only if
// no newer update arrived while it was being computed.
package estimator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultQuietPeriod is how long input must stay unchanged before calculating.
const DefaultQuietPeriod = 500 * time.Millisecond

// CalcFunc computes a result for params. It must honour ctx cancellation.
type CalcFunc[P, R any] func(ctx context.Context, params P) (R, error)

// Phase is the externally visible state of an estimate.
type Phase int

const (
	// PhaseIdle means no params have been seen yet.
	PhaseIdle Phase = iota
	// PhaseDebouncing waits for input to stay unchanged for the quiet period.
	PhaseDebouncing
	// PhaseCalculating has a CalcFunc call in flight.
	PhaseCalculating
	// PhaseSettled holds the result for the latest params.
	PhaseSettled
	// PhaseFailed holds the error for the latest params.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseDebouncing:
		return "debouncing"
	case PhaseCalculating:
		return "calculating"
	case PhaseSettled:
		return "settled"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// State is a snapshot of the estimator. Result is meaningful in PhaseSettled,
// Err in PhaseFailed. Seq identifies the update the snapshot belongs to.
type State[P, R any] struct {
	Phase  Phase
	Params P
	Result R
	Err    error
	Seq    uint64
}

// Pending reports whether a newer result is on its way.
func (s State[P, R]) Pending() bool {
	return s.Phase == PhaseDebouncing || s.Phase == PhaseCalculating
}

// Estimator debounces params updates in front of a CalcFunc.
type Estimator[P, R any] struct {
	calc     CalcFunc[P, R]
	quiet    time.Duration
	clock    Clock
	log      *zap.Logger
	observer func(State[P, R])

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	seq      uint64
	timer    Timer
	inflight context.CancelFunc
	state    State[P, R]
	closed   bool

	// snapshots not yet handed to the observer, oldest first
	pending  []State[P, R]
	draining bool
}

// Option configures an Estimator.
type Option[P, R any] func(*Estimator[P, R])

// WithQuietPeriod overrides DefaultQuietPeriod; non-positive values are ignored.
func WithQuietPeriod[P, R any](d time.Duration) Option[P, R] {
	return func(e *Estimator[P, R]) {
		if d > 0 {
			e.quiet = d
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock[P, R any](c Clock) Option[P, R] {
	return func(e *Estimator[P, R]) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger[P, R any](l *zap.Logger) Option[P, R] {
	return func(e *Estimator[P, R]) {
		if l != nil {
			e.log = l
		}
	}
}

// WithObserver registers a callback invoked with every new snapshot, in order.
// Calls happen on a separate goroutine, so a slow observer never holds up
// Update; snapshots queue until it catches up. Close drops the queue.
func WithObserver[P, R any](fn func(State[P, R])) Option[P, R] {
	return func(e *Estimator[P, R]) { e.observer = fn }
}

// New creates an estimator bound to ctx; cancelling ctx has the effect of Close.
func New[P, R any](ctx context.Context, calc CalcFunc[P, R], opts ...Option[P, R]) *Estimator[P, R] {
	e := &Estimator[P, R]{
		calc:  calc,
		quiet: DefaultQuietPeriod,
		clock: realClock{},
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	return e
}

// Update records new params and restarts the quiet period. An in-flight
// calculation for older params is cancelled and its outcome discarded.
func (e *Estimator[P, R]) Update(params P) {
	e.mu.Lock()
	if e.closed || e.ctx.Err() != nil {
		e.mu.Unlock()
		return
	}
	e.seq++
	seq := e.seq
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.inflight != nil {
		e.inflight()
		e.inflight = nil
	}
	e.state = State[P, R]{Phase: PhaseDebouncing, Params: params, Seq: seq}
	e.timer = e.clock.AfterFunc(e.quiet, func() { e.fire(seq) })
	e.publishLocked()
	e.mu.Unlock()
}

// Flush skips the rest of the quiet period and calculates the pending params
// now. It is a no-op unless the estimator is debouncing.
func (e *Estimator[P, R]) Flush() {
	e.mu.Lock()
	if e.closed || e.state.Phase != PhaseDebouncing || e.timer == nil {
		e.mu.Unlock()
		return
	}
	e.timer.Stop()
	e.timer = nil
	seq := e.seq
	e.mu.Unlock()

	go e.fire(seq)
}

func (e *Estimator[P, R]) fire(seq uint64) {
	e.mu.Lock()
	if e.closed || seq != e.seq || e.state.Phase != PhaseDebouncing || e.ctx.Err() != nil {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(e.ctx)
	e.inflight = cancel
	e.timer = nil
	params := e.state.Params
	e.state.Phase = PhaseCalculating
	e.publishLocked()
	e.mu.Unlock()

	res, err := e.calc(ctx, params)
	cancel()

	e.mu.Lock()
	if e.closed || seq != e.seq || e.ctx.Err() != nil {
		e.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			e.log.Debug("discarding stale estimate", zap.Uint64("seq", seq), zap.Error(err))
		}
		return
	}
	e.inflight = nil
	if err != nil {
		e.state.Phase = PhaseFailed
		e.state.Err = err
		e.log.Warn("estimate failed", zap.Uint64("seq", seq), zap.Error(err))
	} else {
		e.state.Phase = PhaseSettled
		e.state.Result = res
	}
	e.publishLocked()
	e.mu.Unlock()
}

// publishLocked queues the current snapshot for the observer and starts a
// drainer if none is running. e.mu must be held.
func (e *Estimator[P, R]) publishLocked() {
	if e.observer == nil {
		return
	}
	e.pending = append(e.pending, e.state)
	if !e.draining {
		e.draining = true
		go e.drain()
	}
}

// drain delivers queued snapshots one at a time. At most one drainer runs,
// which keeps observer calls ordered.
func (e *Estimator[P, R]) drain() {
	for {
		e.mu.Lock()
		if e.closed || e.ctx.Err() != nil || len(e.pending) == 0 {
			e.pending = nil
			e.draining = false
			e.mu.Unlock()
			return
		}
		st := e.pending[0]
		e.pending[0] = State[P, R]{}
		e.pending = e.pending[1:]
		e.mu.Unlock()

		e.observer(st)
	}
}

// State returns the current snapshot.
func (e *Estimator[P, R]) State() State[P, R] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Close tears the estimator down: pending timers are stopped, in-flight work is
// cancelled, queued snapshots are dropped and no further state changes happen.
func (e *Estimator[P, R]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.pending = nil
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.inflight != nil {
		e.inflight()
		e.inflight = nil
	}
	e.cancel()
}
