package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// BlockingFunc is one blocking operation executed on a worker goroutine.
// The error return travels back to the bridge call site; a panic is
// captured on the worker and re-raised at the call site.
type BlockingFunc func() (any, error)

// Outcome is the completion record of one submitted BlockingFunc.
type Outcome struct {
	Value      any
	Err        error
	Panicked   bool
	PanicValue any
	Stack      []byte
}

// ErrPoolClosed is returned by Submit after Shutdown or Stop.
var ErrPoolClosed = errors.New("worker pool is shut down")

// WorkerPool manages a fixed set of worker goroutines executing
// BlockingFuncs pulled from a FIFO queue. It exists purely to give the
// bridge a waitable completion signal; there is no queuing policy
// beyond first-in-first-out.
type WorkerPool struct {
	id      string
	workers int
	queue   *jobQueue
	signal  chan struct{}

	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex

	shuttingDown atomic.Bool
	active       atomic.Int32

	logger  Logger
	metrics Metrics
}

// NewWorkerPool creates a WorkerPool with default options.
// Call Start before submitting work.
func NewWorkerPool(id string, workers int) *WorkerPool {
	return NewWorkerPoolWithOptions(id, workers, nil)
}

// NewWorkerPoolWithOptions creates a WorkerPool with the given
// observability hooks.
func NewWorkerPoolWithOptions(id string, workers int, opts *Options) *WorkerPool {
	o := opts.withDefaults()
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		id:      id,
		workers: workers,
		queue:   newJobQueue(),
		signal:  make(chan struct{}, workers*2),
		logger:  o.Logger,
		metrics: o.Metrics,
	}
}

// ID returns the ID of the worker pool.
func (p *WorkerPool) ID() string {
	return p.id
}

// WorkerCount returns the number of workers.
func (p *WorkerPool) WorkerCount() int {
	return p.workers
}

// QueuedJobCount returns the number of jobs waiting for a worker.
func (p *WorkerPool) QueuedJobCount() int {
	return p.queue.Len()
}

// ActiveJobCount returns the number of jobs currently executing.
func (p *WorkerPool) ActiveJobCount() int {
	return int(p.active.Load())
}

// IsRunning returns whether the worker pool is running.
func (p *WorkerPool) IsRunning() bool {
	p.runningMu.RLock()
	defer p.runningMu.RUnlock()
	return p.running
}

// Start starts all worker goroutines.
func (p *WorkerPool) Start(ctx context.Context) {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if p.running {
		return // Already running
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.logger.Debug("worker pool started", F("pool", p.id), F("workers", p.workers))

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i, p.ctx)
	}
}

// Stop stops the pool immediately. Jobs already on a worker run to
// completion; jobs still in the queue complete with ErrPoolClosed so
// no bridge caller is left waiting.
func (p *WorkerPool) Stop() {
	p.shuttingDown.Store(true)

	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		p.failPending()
		return
	}
	p.runningMu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.failPending()

	p.runningMu.Lock()
	p.running = false
	p.runningMu.Unlock()

	p.logger.Debug("worker pool stopped", F("pool", p.id))
}

// failPending completes every queued job with ErrPoolClosed.
func (p *WorkerPool) failPending() {
	for {
		j, ok := p.queue.Pop()
		if !ok {
			return
		}
		j.out <- Outcome{Err: ErrPoolClosed}
	}
}

// StopGraceful stops the pool after the queue has drained and all
// active jobs have finished. Returns an error if timeout elapses first;
// the pool is stopped either way.
func (p *WorkerPool) StopGraceful(timeout time.Duration) error {
	p.shuttingDown.Store(true)

	deadline := time.Now().Add(timeout)
	for p.queue.Len() > 0 || p.active.Load() > 0 {
		if time.Now().After(deadline) {
			p.Stop()
			return fmt.Errorf("worker pool %q: graceful stop timed out after %v", p.id, timeout)
		}
		time.Sleep(time.Millisecond)
	}

	p.Stop()
	return nil
}

// Submit queues fn for execution on a worker and returns the channel
// its Outcome is delivered on. The channel is buffered; the worker
// never blocks on delivery.
func (p *WorkerPool) Submit(fn BlockingFunc) (<-chan Outcome, error) {
	if p.shuttingDown.Load() {
		return nil, ErrPoolClosed
	}

	out := make(chan Outcome, 1)
	p.queue.Push(job{fn: fn, out: out})
	p.metrics.RecordQueueDepth(p.id, p.queue.Len())

	select {
	case p.signal <- struct{}{}:
	default:
	}

	return out, nil
}

// workerLoop is the main loop for each worker.
func (p *WorkerPool) workerLoop(id int, ctx context.Context) {
	defer p.wg.Done()
	stopCh := ctx.Done()

	for {
		j, ok := p.getWork(stopCh)
		if !ok {
			return
		}

		p.active.Add(1)
		out := p.runJob(j)
		p.active.Add(-1)
		p.metrics.RecordQueueDepth(p.id, p.queue.Len())

		j.out <- out
	}
}

// getWork pulls the next job, parking on the signal channel when the
// queue is empty. Stop takes precedence over queued work; leftover jobs
// are failed by failPending after the workers exit.
func (p *WorkerPool) getWork(stopCh <-chan struct{}) (job, bool) {
	for {
		select {
		case <-stopCh:
			return job{}, false
		default:
		}

		if j, ok := p.queue.Pop(); ok {
			return j, true
		}

		select {
		case <-p.signal:
			continue
		case <-stopCh:
			return job{}, false
		}
	}
}

// runJob executes one job. A panic is captured into the Outcome so the
// bridge can re-raise it at the call site; workers never die.
func (p *WorkerPool) runJob(j job) Outcome {
	out := execBlocking(j.fn)
	if out.Panicked {
		p.metrics.RecordWorkerPanic(p.id)
		p.logger.Warn("worker callable panicked", F("pool", p.id), F("panic", out.PanicValue))
	}
	return out
}

// execBlocking runs one BlockingFunc, converting a panic into an
// Outcome that carries the panic value and stack.
func execBlocking(fn BlockingFunc) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Panicked: true, PanicValue: r, Stack: debug.Stack()}
		}
	}()

	v, err := fn()
	return Outcome{Value: v, Err: err}
}

// =============================================================================
// Global Worker Pool Helper (Singleton)
// =============================================================================

var (
	globalWorkerPool *WorkerPool
	globalMu         sync.Mutex
)

// InitGlobalWorkerPool initializes the global worker pool with the
// specified number of workers. It starts the pool immediately.
func InitGlobalWorkerPool(workers int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalWorkerPool != nil {
		return // Already initialized
	}

	globalWorkerPool = NewWorkerPool("global-pool", workers)
	globalWorkerPool.Start(context.Background())
}

// GetGlobalWorkerPool returns the global worker pool instance, or nil
// if InitGlobalWorkerPool has not been called.
func GetGlobalWorkerPool() *WorkerPool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalWorkerPool
}

// ShutdownGlobalWorkerPool stops the global worker pool.
func ShutdownGlobalWorkerPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalWorkerPool != nil {
		globalWorkerPool.Stop()
		globalWorkerPool = nil
	}
}
