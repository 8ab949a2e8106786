package fetcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bool64/ctxd"
)

const (
	latchArmed int32 = iota
	latchFired
)

// GovernorState is the state of a Governor.
type GovernorState int32

const (
	// GovernorRunning means the deadline has not elapsed and some requests have not settled yet.
	GovernorRunning GovernorState = iota
	// GovernorFinalizing means the deadline fired and the governor waits for the canceled requests to settle.
	GovernorFinalizing
	// GovernorDone means all the requests have settled.
	GovernorDone
)

// DeadlineHandler is called exactly once when the deadline of a batch fires.
type DeadlineHandler func(ctx context.Context, timeout time.Duration)

// DeadlineLatch is a single-shot flag that can be fired only once.
type DeadlineLatch struct {
	state atomic.Int32
}

// Fire fires the latch. Only the first call returns true.
func (l *DeadlineLatch) Fire() bool {
	return l.state.CompareAndSwap(latchArmed, latchFired)
}

// Fired returns true if the latch has been fired.
func (l *DeadlineLatch) Fired() bool {
	return l.state.Load() == latchFired
}

// Governor enforces one deadline for all the requests of a batch.
//
//	g := NewGovernor(15*time.Second, onDeadline, log)
//	ctx = g.Start(ctx) // Every request runs with this context.
//
//	// ... dispatch requests and close settled when all of them are done.
//
//	fired := g.Race(ctx, settled)
type Governor struct {
	timeout  time.Duration
	latch    DeadlineLatch
	state    atomic.Int32
	deadline time.Time
	cancel   context.CancelFunc
	onFire   DeadlineHandler
	log      ctxd.Logger
}

// Start arms the deadline and returns the context that every request of the batch must use. The context is canceled
// when the deadline fires or when the race is over.
func (g *Governor) Start(ctx context.Context) context.Context {
	ctx, g.cancel = context.WithCancel(ctx)
	g.deadline = time.Now().Add(g.timeout)

	g.log.Debug(ctx, "armed deadline", "fetcher.timeout", g.timeout.String())

	return ctx
}

// Race waits until either the settled channel is closed or the deadline elapses, whichever comes first. If the deadline
// wins, all the outstanding requests are canceled and Race keeps waiting until they settle.
//
// It returns true if the deadline fired, Start must be called before Race.
func (g *Governor) Race(ctx context.Context, settled <-chan struct{}) bool {
	defer g.cancel()

	timer := time.NewTimer(time.Until(g.deadline))
	defer timer.Stop()

	select {
	case <-settled:
		g.state.Store(int32(GovernorDone))

		g.log.Debug(ctx, "all requests settled before deadline")

		return g.Expired()

	case <-timer.C:
		g.Fire(ctx)
	}

	<-settled

	g.state.Store(int32(GovernorDone))

	g.log.Debug(ctx, "all requests settled after deadline")

	return true
}

// Fire cancels all the outstanding requests and calls the deadline handler. It is safe to call Fire concurrently, only
// the first call has effect and returns true.
func (g *Governor) Fire(ctx context.Context) bool {
	if !g.latch.Fire() {
		return false
	}

	g.state.CompareAndSwap(int32(GovernorRunning), int32(GovernorFinalizing))

	g.log.Debug(ctx, "deadline fired, canceling outstanding requests")

	if g.cancel != nil {
		g.cancel()
	}

	if g.onFire != nil {
		g.onFire(ctx, g.timeout)
	}

	return true
}

// Expired returns true if the deadline has fired.
func (g *Governor) Expired() bool {
	return g.latch.Fired()
}

// State returns the current state.
func (g *Governor) State() GovernorState {
	return GovernorState(g.state.Load())
}

// NewGovernor creates a new Governor. The handler may be nil.
func NewGovernor(timeout time.Duration, onFire DeadlineHandler, log ctxd.Logger) *Governor {
	if log == nil {
		log = ctxd.NoOpLogger{}
	}

	return &Governor{
		timeout: timeout,
		onFire:  onFire,
		log:     log,
	}
}
