package core

import (
	"fmt"
	"iter"
)

// TaskOption configures a Definition at registration time.
type TaskOption func(*Definition)

// WithName sets the task name used in logs and metrics.
func WithName(name string) TaskOption {
	return func(d *Definition) {
		d.name = name
	}
}

// WithEventLoop binds the task to an event loop. Invocations that
// originate on the loop's call chain hand pump ownership to the routine
// body so its bridge calls keep the loop responsive. Tasks without a
// bound loop are still valid; their bridge calls are paced by the poll
// wait alone.
func WithEventLoop(loop *EventLoop) TaskOption {
	return func(d *Definition) {
		d.loop = loop
	}
}

// WithLogger sets the logger for this task. Defaults to NoOpLogger.
func WithLogger(logger Logger) TaskOption {
	return func(d *Definition) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink for this task. Defaults to NilMetrics.
func WithMetrics(metrics Metrics) TaskOption {
	return func(d *Definition) {
		if metrics != nil {
			d.metrics = metrics
		}
	}
}

// Register wraps a routine-producing factory into an invokable task.
//
// Each call of the returned Invokable:
//  1. invokes the factory with the call arguments,
//  2. fails with ErrInvalidTaskKind if the product is not a Routine
//     (no part of a non-routine body ever runs),
//  3. creates a fresh Task Instance and, under PolicyLatestWins,
//     atomically bumps the Definition version and binds the new value
//     to the instance,
//  4. drives the instance to completion or abandonment on the calling
//     goroutine.
//
// Usage:
//
//	load := core.Register(core.PolicyLatestWins, func(args ...any) any {
//		path := args[0].(string)
//		return core.Routine(func(yield func(any) bool) {
//			data, err := bridge.Call(func() (any, error) { return read(path) })
//			if !yield(data) {
//				return
//			}
//			display(data, err)
//		})
//	})
//	_ = load("/tmp/image.jpg")
func Register(policy Policy, factory Factory, opts ...TaskOption) Invokable {
	def := &Definition{
		name:    "task",
		policy:  policy,
		logger:  NewNoOpLogger(),
		metrics: &NilMetrics{},
	}
	for _, opt := range opts {
		opt(def)
	}

	return func(args ...any) error {
		produced := factory(args...)
		routine, ok := asRoutine(produced)
		if !ok {
			return fmt.Errorf("task %q: %w (factory returned %T)", def.name, ErrInvalidTaskKind, produced)
		}

		inst := &Instance{def: def, routine: routine}
		if def.policy == PolicyLatestWins {
			// Single atomic increment-and-read; two concurrent
			// invocations can never bind the same version.
			inst.boundVersion = def.version.Add(1)
		}

		inst.drive()
		return nil
	}
}

// asRoutine checks that a factory product is a resumable routine.
// Accepts both the named Routine type and a bare yield function, since
// factories commonly return the literal without a conversion.
func asRoutine(v any) (Routine, bool) {
	switch r := v.(type) {
	case iter.Seq[any]:
		return r, true
	case func(func(any) bool):
		return r, true
	default:
		return nil, false
	}
}
