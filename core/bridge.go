package core

import "time"

// DefaultPollTimeout is how long one completion poll waits before the
// bridge pumps the event loop and retries.
const DefaultPollTimeout = 10 * time.Millisecond

type callConfig struct {
	pollTimeout time.Duration
	pool        *WorkerPool
}

// CallOption tunes a single bridge call.
type CallOption func(*callConfig)

// WithPollTimeout overrides the poll timeout for one call. This is an
// internal pacing parameter, not a deadline: the call still waits for
// the worker however long it takes.
func WithPollTimeout(d time.Duration) CallOption {
	return func(c *callConfig) {
		c.pollTimeout = d
	}
}

// WithPool overrides the worker pool for one call.
func WithPool(p *WorkerPool) CallOption {
	return func(c *callConfig) {
		c.pool = p
	}
}

// Bridge turns a blocking call into a non-loop-blocking one: the
// callable runs on a worker while the calling goroutine polls for
// completion and pumps the event loop between polls.
//
// Usage inside a task routine:
//
//	// Regular call
//	result, err := decode(path)
//	// Bridged call
//	result, err := bridge.Call(func() (any, error) { return decode(path) })
//
// The call is synchronous from the routine's point of view; it does not
// return until the worker finishes. The loop stays responsive because
// pending events are pumped on every poll iteration.
type Bridge struct {
	loop        *EventLoop
	pool        *WorkerPool
	pollTimeout time.Duration
}

// NewBridge creates a Bridge for the given loop and pool.
//
// loop may be nil for pure worker-thread usage; calls are then paced by
// the poll wait alone. pool may be nil, in which case each call runs on
// its own detached goroutine (a fresh single-use executor per call).
func NewBridge(loop *EventLoop, pool *WorkerPool) *Bridge {
	return &Bridge{
		loop:        loop,
		pool:        pool,
		pollTimeout: DefaultPollTimeout,
	}
}

// Loop returns the event loop this bridge pumps, or nil.
func (b *Bridge) Loop() *EventLoop {
	return b.loop
}

// Pool returns the default worker pool of this bridge, or nil.
func (b *Bridge) Pool() *WorkerPool {
	return b.pool
}

// Call submits fn to a worker immediately, then polls for its result.
// On every poll timeout the event loop is pumped for approximately the
// poll timeout before retrying.
//
// An error returned by fn is returned here. A panic raised by fn on the
// worker is re-raised on the calling goroutine with the original panic
// value; the enclosing routine handles or propagates it like any
// ordinary failure. The bridge never retries.
func (b *Bridge) Call(fn BlockingFunc, opts ...CallOption) (any, error) {
	cfg := callConfig{pollTimeout: b.pollTimeout, pool: b.pool}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.pollTimeout <= 0 {
		cfg.pollTimeout = DefaultPollTimeout
	}

	var (
		out     <-chan Outcome
		poolID  string
		metrics Metrics = &NilMetrics{}
	)
	start := time.Now()

	if pool := cfg.pool; pool != nil {
		ch, err := pool.Submit(fn)
		if err != nil {
			return nil, err
		}
		out = ch
		poolID = pool.id
		metrics = pool.metrics
	} else {
		// No pool configured: single-use executor, one detached
		// goroutine per call.
		ch := make(chan Outcome, 1)
		go func() {
			ch <- execBlocking(fn)
		}()
		out = ch
	}

	timer := time.NewTimer(cfg.pollTimeout)
	defer timer.Stop()

	for {
		select {
		case res := <-out:
			metrics.RecordBridgeWait(poolID, time.Since(start))
			if res.Panicked {
				panic(res.PanicValue)
			}
			return res.Value, res.Err

		case <-timer.C:
			if b.loop != nil {
				b.loop.Pump(cfg.pollTimeout)
			}
			timer.Reset(cfg.pollTimeout)
		}
	}
}

// Sleep is a non-loop-blocking sleep: the timed wait happens on a
// worker while the loop keeps servicing events. It does not return
// before d wall-clock time has elapsed.
func (b *Bridge) Sleep(d time.Duration, opts ...CallOption) {
	_, _ = b.Call(func() (any, error) {
		time.Sleep(d)
		return nil, nil
	}, opts...)
}

// Call is the typed variant of Bridge.Call.
func Call[T any](b *Bridge, fn func() (T, error), opts ...CallOption) (T, error) {
	v, err := b.Call(func() (any, error) {
		t, err := fn()
		return t, err
	}, opts...)
	if v == nil {
		var zero T
		return zero, err
	}
	return v.(T), err
}
