package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling event panics
// =============================================================================

// PanicHandler is called when an event posted to an EventLoop panics.
// It is NOT involved in bridge calls: a panic inside a bridged callable
// is transported back and re-raised at the bridge call site instead.
//
// Implementations should be thread-safe as they may be called from the
// loop goroutine as well as from a pumping goroutine.
type PanicHandler interface {
	// HandlePanic is called when an event panics.
	//
	// Parameters:
	// - ctx: The context the event ran with
	// - loopName: The name of the event loop that dispatched the event
	// - panicInfo: The panic value recovered from the event
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, loopName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, loopName string, panicInfo any, stackTrace []byte) {
	fmt.Printf("[EventLoop %s] Panic: %v\nStack trace:\n%s", loopName, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting scheduler metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution.
type Metrics interface {
	// RecordTaskDuration records how long one task instance was driven,
	// from invocation to completion or abandonment.
	RecordTaskDuration(taskName string, policy Policy, duration time.Duration)

	// RecordTaskAbandoned records that a latest-wins instance was
	// superseded and stopped at a checkpoint.
	RecordTaskAbandoned(taskName string)

	// RecordBridgeWait records how long a bridge call waited for its
	// worker, pumping included.
	RecordBridgeWait(poolID string, duration time.Duration)

	// RecordWorkerPanic records that a bridged callable panicked on a
	// worker goroutine.
	RecordWorkerPanic(poolID string)

	// RecordQueueDepth records the current depth of a worker pool queue.
	RecordQueueDepth(poolID string, depth int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(taskName string, policy Policy, duration time.Duration) {}
func (m *NilMetrics) RecordTaskAbandoned(taskName string)                                      {}
func (m *NilMetrics) RecordBridgeWait(poolID string, duration time.Duration)                   {}
func (m *NilMetrics) RecordWorkerPanic(poolID string)                                          {}
func (m *NilMetrics) RecordQueueDepth(poolID string, depth int)                                {}

// =============================================================================
// Options: shared configuration for EventLoop and WorkerPool
// =============================================================================

// Options holds the observability hooks for an EventLoop or WorkerPool.
// All fields are optional; nil fields fall back to defaults.
type Options struct {
	// Logger used for lifecycle logging. Defaults to NoOpLogger.
	Logger Logger

	// Metrics sink. Defaults to NilMetrics.
	Metrics Metrics

	// PanicHandler for event panics. Defaults to DefaultPanicHandler.
	// Ignored by WorkerPool (worker panics propagate to the caller).
	PanicHandler PanicHandler
}

// DefaultOptions returns an Options with default hooks.
func DefaultOptions() *Options {
	return &Options{
		Logger:       NewNoOpLogger(),
		Metrics:      &NilMetrics{},
		PanicHandler: &DefaultPanicHandler{},
	}
}

func (o *Options) withDefaults() *Options {
	if o == nil {
		return DefaultOptions()
	}
	out := *o
	if out.Logger == nil {
		out.Logger = NewNoOpLogger()
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{}
	}
	return &out
}
