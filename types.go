package uitask

import "github.com/karlch/go-uitask/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the uitask package for most use cases.

// Routine is the resumable body of a task; every yield is a checkpoint
type Routine = core.Routine

// Factory produces a fresh Routine per invocation
type Factory = core.Factory

// Invokable is a registered task, driven on the calling goroutine
type Invokable = core.Invokable

// Policy controls how overlapping invocations of a task interact
type Policy = core.Policy

// Definition is a registered routine plus its policy and version counter
type Definition = core.Definition

// DriveState is the lifecycle state of one task instance
type DriveState = core.DriveState

// EventLoop is the dedicated serial loop with the Pump primitive
type EventLoop = core.EventLoop

// Event is one unit of work posted to an EventLoop
type Event = core.Event

// WorkerPool executes bridged callables on worker goroutines
type WorkerPool = core.WorkerPool

// BlockingFunc is one blocking operation run through the bridge
type BlockingFunc = core.BlockingFunc

// Bridge runs blocking work on a worker while pumping the event loop
type Bridge = core.Bridge

// CallOption tunes a single bridge call
type CallOption = core.CallOption

// TaskOption configures a task at registration time
type TaskOption = core.TaskOption

// Options holds observability hooks for loops and pools
type Options = core.Options

// Logger is the structured logging interface
type Logger = core.Logger

// Metrics is the observability sink interface
type Metrics = core.Metrics

// Policy constants
const (
	PolicyIndependent Policy = core.PolicyIndependent
	PolicyLatestWins  Policy = core.PolicyLatestWins
)

// Drive state constants
const (
	StateRunning   DriveState = core.StateRunning
	StateCompleted DriveState = core.StateCompleted
	StateAbandoned DriveState = core.StateAbandoned
)

// Errors
var (
	ErrInvalidTaskKind = core.ErrInvalidTaskKind
	ErrPoolClosed      = core.ErrPoolClosed
)

// Registration and construction
var (
	Register                 = core.Register
	NewEventLoop             = core.NewEventLoop
	NewEventLoopWithOptions  = core.NewEventLoopWithOptions
	NewWorkerPool            = core.NewWorkerPool
	NewBridge                = core.NewBridge
	InitGlobalWorkerPool     = core.InitGlobalWorkerPool
	GetGlobalWorkerPool      = core.GetGlobalWorkerPool
	ShutdownGlobalWorkerPool = core.ShutdownGlobalWorkerPool
)

// Task options
var (
	WithName      = core.WithName
	WithEventLoop = core.WithEventLoop
	WithLogger    = core.WithLogger
	WithMetrics   = core.WithMetrics
)

// Per-call bridge options
var (
	WithPollTimeout = core.WithPollTimeout
	WithPool        = core.WithPool
)

// CurrentEventLoop retrieves the loop that dispatched the current event
var CurrentEventLoop = core.CurrentEventLoop

// Call is the typed variant of Bridge.Call.
func Call[T any](b *Bridge, fn func() (T, error), opts ...CallOption) (T, error) {
	return core.Call[T](b, fn, opts...)
}
