package core

import (
	"iter"
	"time"
)

// DriveState is the lifecycle state of one Task Instance.
type DriveState int

const (
	// StateRunning: the instance is being driven.
	StateRunning DriveState = iota

	// StateCompleted: the routine ran to normal exhaustion.
	StateCompleted

	// StateAbandoned: a latest-wins instance was found stale at a
	// checkpoint and was stopped. Terminal, silent, not an error.
	StateAbandoned
)

func (s DriveState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Instance is one running activation of a Definition's routine.
// It is created per invocation and becomes garbage once driven to a
// terminal state; there is no explicit teardown.
type Instance struct {
	def          *Definition
	routine      Routine
	boundVersion uint64
	state        DriveState
}

// BoundVersion returns the Definition version snapshot taken when the
// instance was created. Zero for independent-policy instances.
func (in *Instance) BoundVersion() uint64 {
	return in.boundVersion
}

// State returns the current drive state of the instance.
func (in *Instance) State() DriveState {
	return in.state
}

// drive advances the routine on the calling goroutine until it
// completes or, for latest-wins instances, is found stale at a
// checkpoint. The routine body runs on a pull-iterator coroutine; the
// calling goroutine is parked inside next() while the body runs, so the
// two never execute simultaneously.
//
// A panic inside the routine body (including one re-raised by a bridge
// call) propagates out of drive to the invoker.
func (in *Instance) drive() DriveState {
	start := time.Now()
	def := in.def

	routine := in.routine
	if loop := def.loop; loop != nil && loop.onLoopChain() {
		// Invocation originates on the loop's call chain: hand pump
		// ownership to the routine-body goroutine for the duration.
		inner := routine
		routine = func(yield func(any) bool) {
			gid := curGoroutineID()
			loop.armPump(gid)
			defer loop.disarmPump(gid)
			inner(yield)
		}
	}

	next, stop := iter.Pull(routine)
	defer stop()

	for {
		if _, ok := next(); !ok {
			// Normal exhaustion.
			in.state = StateCompleted
			def.metrics.RecordTaskDuration(def.name, def.policy, time.Since(start))
			return StateCompleted
		}

		// Checkpoint. The yielded value would be fed straight back; with
		// pull stepping the round-trip collapses into the staleness
		// decision alone.
		if def.policy == PolicyLatestWins && in.boundVersion != def.version.Load() {
			in.state = StateAbandoned
			def.metrics.RecordTaskAbandoned(def.name)
			def.metrics.RecordTaskDuration(def.name, def.policy, time.Since(start))
			def.logger.Debug("task instance superseded",
				F("task", def.name),
				F("bound", in.boundVersion),
				F("current", def.version.Load()),
			)
			return StateAbandoned
		}
	}
}
