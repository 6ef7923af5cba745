package core

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one unit of work posted to an EventLoop.
type Event func(ctx context.Context)

// EventLoop binds a dedicated goroutine that executes posted events
// sequentially, simulating a UI main loop. All events run on the same
// goroutine (thread affinity), except while a bridge call on the loop's
// own call chain pumps the queue (see Pump).
//
// Key difference from a plain worker: the loop exposes Pump, the
// primitive the Blocking Bridge uses to keep the application responsive
// while an event is blocked inside a bridge call.
type EventLoop struct {
	// Event queue: Buffered channel for events
	workQueue chan Event

	// Lifecycle control
	ctx    context.Context
	cancel context.CancelFunc

	// For graceful shutdown
	stopped      chan struct{}
	once         sync.Once
	closed       atomic.Bool
	shutdownChan chan struct{}
	shutdownOnce sync.Once

	// Pump ownership. goroutineID is the loop goroutine; armed holds the
	// goroutine ids of routine bodies whose invocation originated on the
	// loop's call chain and which are therefore allowed to pump.
	goroutineID atomic.Uint64
	armedMu     sync.Mutex
	armed       map[uint64]struct{}

	// Metadata
	name string
	mu   sync.Mutex

	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler
}

// NewEventLoop creates and starts a new EventLoop with default options.
// It immediately spawns the dedicated loop goroutine.
func NewEventLoop() *EventLoop {
	return NewEventLoopWithOptions(nil)
}

// NewEventLoopWithOptions creates and starts a new EventLoop with the
// given observability hooks.
func NewEventLoopWithOptions(opts *Options) *EventLoop {
	o := opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	l := &EventLoop{
		workQueue:    make(chan Event, 100), // Buffer to avoid blocking senders
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
		shutdownChan: make(chan struct{}),
		armed:        make(map[uint64]struct{}),
		logger:       o.Logger,
		metrics:      o.Metrics,
		panicHandler: o.PanicHandler,
	}

	// Start the dedicated message loop
	go l.runLoop()

	return l
}

// Name returns the name of the event loop.
func (l *EventLoop) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// SetName sets the name of the event loop.
func (l *EventLoop) SetName(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.name = name
}

// Post submits an event for execution on the loop goroutine.
func (l *EventLoop) Post(ev Event) {
	// Check if loop is closed to avoid panic on closed channel
	if l.closed.Load() {
		return
	}

	select {
	case <-l.ctx.Done():
		// Loop stopped, drop event
		return
	case l.workQueue <- ev:
		// Successfully queued
	}
}

// PostDelayed submits an event that runs after delay.
// Uses time.AfterFunc, so timers are unaffected by loop load.
func (l *EventLoop) PostDelayed(ev Event, delay time.Duration) {
	if l.closed.Load() {
		return
	}

	select {
	case <-l.ctx.Done():
		return
	default:
		// The timer goroutine injects the event back into the loop
		time.AfterFunc(delay, func() {
			l.Post(ev)
		})
	}
}

// WaitIdle blocks until all currently queued events have completed.
// Implemented by posting a barrier event and waiting for it.
//
// Events posted after WaitIdle is called are not waited for.
func (l *EventLoop) WaitIdle(ctx context.Context) error {
	if l.IsClosed() {
		return fmt.Errorf("event loop is closed")
	}

	done := make(chan struct{})

	l.Post(func(eventCtx context.Context) {
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown marks the loop as closed and signals shutdown waiters
// without terminating the run loop. This allows events to call
// Shutdown from within themselves. Call Stop to actually terminate.
func (l *EventLoop) Shutdown() {
	l.shutdownOnce.Do(func() {
		l.closed.Store(true)
		l.cancel()
		close(l.shutdownChan)
	})
}

// WaitShutdown blocks until Shutdown is called on this loop.
func (l *EventLoop) WaitShutdown(ctx context.Context) error {
	select {
	case <-l.shutdownChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsClosed returns true if the loop has been stopped.
func (l *EventLoop) IsClosed() bool {
	return l.closed.Load()
}

// Stop stops the loop and releases resources.
func (l *EventLoop) Stop() {
	l.once.Do(func() {
		l.closed.Store(true)
		l.cancel()
		// Wait for runLoop to finish (ensures current event completes)
		<-l.stopped
	})
}

// runLoop is the core of the event loop, it occupies a dedicated goroutine.
func (l *EventLoop) runLoop() {
	defer close(l.stopped)

	l.goroutineID.Store(curGoroutineID())

	// Create context with eventLoopKey for CurrentEventLoop
	runCtx := context.WithValue(l.ctx, eventLoopKey, l)

	for {
		select {
		case ev := <-l.workQueue:
			l.dispatch(runCtx, ev)

		case <-l.ctx.Done():
			return
		}
	}
}

// dispatch executes one event with panic recovery.
func (l *EventLoop) dispatch(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.panicHandler.HandlePanic(ctx, l.Name(), r, debug.Stack())
		}
	}()
	ev(ctx)
}

// Pump processes queued events on the calling goroutine for up to
// maxTime, the equivalent of Qt's processEvents. It is the primitive
// the Blocking Bridge uses between completion polls.
//
// Pump only drains the queue when the caller owns the loop's call
// chain: either it is the loop goroutine itself, or it is a routine
// body whose invocation originated on the loop goroutine (armed by the
// task driver). Any other caller gets a no-op; the loop goroutine is
// free in that case and drains its own queue. This keeps pumping from
// worker-thread invocations sound without confining task invocation to
// the loop goroutine.
func (l *EventLoop) Pump(maxTime time.Duration) {
	cur := curGoroutineID()
	if cur != l.goroutineID.Load() && !l.pumpArmed(cur) {
		return
	}

	deadline := time.Now().Add(maxTime)
	runCtx := context.WithValue(l.ctx, eventLoopKey, l)

	for {
		select {
		case ev := <-l.workQueue:
			l.dispatch(runCtx, ev)
		default:
			return
		}

		if !time.Now().Before(deadline) {
			return
		}
	}
}

// =============================================================================
// Pump ownership handoff
// =============================================================================

// onLoopChain reports whether the calling goroutine owns the loop's
// call chain. Used by the task driver to decide whether a new routine
// body should inherit pump ownership.
func (l *EventLoop) onLoopChain() bool {
	cur := curGoroutineID()
	return cur == l.goroutineID.Load() || l.pumpArmed(cur)
}

// armPump grants pump ownership to a routine-body goroutine. The loop
// goroutine is parked inside the driving invocation for as long as the
// grant lasts, so the grantee never runs concurrently with the loop.
func (l *EventLoop) armPump(gid uint64) {
	l.armedMu.Lock()
	defer l.armedMu.Unlock()
	l.armed[gid] = struct{}{}
}

func (l *EventLoop) disarmPump(gid uint64) {
	l.armedMu.Lock()
	defer l.armedMu.Unlock()
	delete(l.armed, gid)
}

func (l *EventLoop) pumpArmed(gid uint64) bool {
	l.armedMu.Lock()
	defer l.armedMu.Unlock()
	_, ok := l.armed[gid]
	return ok
}

// curGoroutineID parses the current goroutine id out of runtime.Stack.
// Routine bodies run on their own (coroutine) goroutines, so ids are
// the only identity available for the pump ownership checks.
func curGoroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	// Parse "goroutine 123 [running]:"
	var id uint64
	for i := len("goroutine "); i < len(b); i++ {
		if b[i] >= '0' && b[i] <= '9' {
			id = id*10 + uint64(b[i]-'0')
		} else {
			break
		}
	}
	return id
}
