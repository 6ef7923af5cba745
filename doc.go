// Package uitask lets ordinary-looking sequential code perform blocking
// work from inside a single-threaded event loop without freezing it.
//
// Desktop-style applications run their UI on one non-reentrant loop
// goroutine: anything that blocks it for more than a few milliseconds
// makes the whole application appear frozen. uitask solves this with
// three cooperating pieces:
//
//   - A Blocking Bridge that runs a callable on a worker goroutine while
//     the caller polls for completion and pumps the event loop between
//     polls, so pending events keep being processed.
//   - Resumable task routines, written as push iterators, whose yield
//     points are checkpoints.
//   - A supersession policy: latest-wins tasks carry a version counter,
//     and only the most recent invocation is allowed to continue past a
//     checkpoint; stale instances are abandoned silently.
//
// # Quick Start
//
// Initialize the worker pool and event loop at application startup:
//
//	uitask.InitGlobalWorkerPool(4)
//	defer uitask.ShutdownGlobalWorkerPool()
//
//	loop := uitask.NewEventLoop()
//	defer loop.Stop()
//	bridge := uitask.NewBridge(loop, uitask.GetGlobalWorkerPool())
//
// Register a latest-wins task, e.g. a search that should only show the
// results of the most recent query:
//
//	search := uitask.Register(uitask.PolicyLatestWins, func(args ...any) any {
//		query := args[0].(string)
//		return uitask.Routine(func(yield func(any) bool) {
//			hits, err := bridge.Call(func() (any, error) {
//				return index.Lookup(query) // slow, runs on a worker
//			})
//			if !yield(hits) {
//				return // a newer query superseded this one
//			}
//			showResults(hits, err)
//		})
//	})
//
//	loop.Post(func(ctx context.Context) { _ = search("kitten") })
//	loop.Post(func(ctx context.Context) { _ = search("kittens") })
//	// Only "kittens" reaches showResults.
//
// # Key Concepts
//
// Routine: the resumable body of a task, an iter.Seq[any]. Every yield
// is a checkpoint at which the driver decides whether the instance may
// continue.
//
// Policy: PolicyIndependent lets every invocation run to completion;
// PolicyLatestWins abandons superseded instances at their next
// checkpoint. Abandonment is silent and never interrupts blocking work
// already in flight; only the continuation after the checkpoint is
// suppressed.
//
// Bridge: Call and Sleep are synchronous from the routine's point of
// view but keep the loop responsive by pumping it on every poll.
//
// There is no cancellation framework and no retry: a failed bridge call
// surfaces its error (or re-raises its panic) at the call site exactly
// once.
package uitask
