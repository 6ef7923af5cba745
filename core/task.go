package core

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
)

// Routine is the resumable body of a task.
//
// A routine is written as a push iterator: every call to yield is a
// checkpoint at which the driver may decide to abandon the instance.
// The yielded value is fed straight back by the driver and carries no
// data of its own; routines typically yield the result of the bridge
// call they just completed:
//
//	func loadThumbnail(b *core.Bridge, path string) core.Routine {
//		return func(yield func(any) bool) {
//			img, err := b.Call(func() (any, error) { return decode(path) })
//			if !yield(img) {
//				return // superseded, skip the UI update
//			}
//			show(img, err)
//		}
//	}
type Routine = iter.Seq[any]

// Factory produces a fresh Routine for one invocation.
// The returned value must be a Routine; anything else makes the
// invocation fail with ErrInvalidTaskKind.
type Factory func(args ...any) any

// Invokable is a registered task. Each call creates and drives one
// Task Instance on the calling goroutine.
type Invokable func(args ...any) error

// ErrInvalidTaskKind reports that a registered factory did not produce
// a resumable routine. The routine body is never entered in that case.
var ErrInvalidTaskKind = errors.New("task must wrap a resumable routine")

// =============================================================================
// Policy: how overlapping invocations of the same task interact
// =============================================================================

type Policy int

const (
	// PolicyIndependent: every invocation runs to completion regardless
	// of other concurrent or later invocations.
	PolicyIndependent Policy = iota

	// PolicyLatestWins: only the most recent invocation continues past
	// its next checkpoint; earlier instances are abandoned silently.
	// Blocking work already in flight always completes.
	PolicyLatestWins
)

func (p Policy) String() string {
	switch p {
	case PolicyIndependent:
		return "independent"
	case PolicyLatestWins:
		return "latest-wins"
	default:
		return "unknown"
	}
}

// =============================================================================
// Definition: a registered routine plus its policy and version counter
// =============================================================================

// Definition holds the identity of a registered task: the wrapped
// factory, the concurrency policy and, for latest-wins, the invocation
// version counter. The counter is owned exclusively by the Definition
// and bumped with a single atomic increment-and-read per invocation.
type Definition struct {
	name    string
	policy  Policy
	version atomic.Uint64

	loop    *EventLoop
	logger  Logger
	metrics Metrics
}

// Name returns the task name used for logging and metrics.
func (d *Definition) Name() string {
	return d.name
}

// Policy returns the concurrency policy of the task.
func (d *Definition) Policy() Policy {
	return d.policy
}

// Version returns the current invocation version. It is 0 until the
// first latest-wins invocation and never decreases.
func (d *Definition) Version() uint64 {
	return d.version.Load()
}

// =============================================================================
// Context Helper
// =============================================================================

type eventLoopKeyType struct{}

var eventLoopKey eventLoopKeyType

// CurrentEventLoop retrieves the EventLoop that dispatched the current
// event, or nil when ctx does not originate from an event loop.
func CurrentEventLoop(ctx context.Context) *EventLoop {
	if v := ctx.Value(eventLoopKey); v != nil {
		return v.(*EventLoop)
	}
	return nil
}
