package uitask_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	uitask "github.com/karlch/go-uitask"
)

// TestFacade_EndToEnd tests the package through its re-exported surface
// Main test items:
// 1. Loop, pool, bridge and task wire together through the root package
// 2. A latest-wins task invoked twice from the loop only continues once
func TestFacade_EndToEnd(t *testing.T) {
	uitask.InitGlobalWorkerPool(2)
	defer uitask.ShutdownGlobalWorkerPool()

	loop := uitask.NewEventLoop()
	defer loop.Stop()

	bridge := uitask.NewBridge(loop, uitask.GetGlobalWorkerPool())

	var mu sync.Mutex
	var shown []string

	firstParked := make(chan struct{})
	releaseFirst := make(chan struct{})

	search := uitask.Register(uitask.PolicyLatestWins, func(args ...any) any {
		query := args[0].(string)
		return uitask.Routine(func(yield func(any) bool) {
			hits, err := bridge.Call(func() (any, error) {
				if query == "kitten" {
					close(firstParked)
					<-releaseFirst
				}
				return "results for " + query, nil
			}, uitask.WithPollTimeout(100*time.Microsecond))
			if !yield(hits) {
				return
			}
			if err == nil {
				mu.Lock()
				shown = append(shown, hits.(string))
				mu.Unlock()
			}
		})
	}, uitask.WithEventLoop(loop), uitask.WithName("search"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = search("kitten")
	}()

	<-firstParked
	if err := search("kittens"); err != nil {
		t.Fatalf("search failed: %v", err)
	}
	close(releaseFirst)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(shown) != 1 || shown[0] != "results for kittens" {
		t.Fatalf("Expected only the latest query to display, got %v", shown)
	}
}

// TestFacade_Errors tests the re-exported sentinel errors
// Main test items:
// 1. ErrInvalidTaskKind surfaces through the façade
// 2. ErrPoolClosed surfaces through a bridged call on a stopped pool
func TestFacade_Errors(t *testing.T) {
	broken := uitask.Register(uitask.PolicyIndependent, func(args ...any) any {
		return 42
	})
	if err := broken(); !errors.Is(err, uitask.ErrInvalidTaskKind) {
		t.Fatalf("Expected ErrInvalidTaskKind, got %v", err)
	}

	pool := uitask.NewWorkerPool("facade-pool", 1)
	pool.Start(context.Background())
	pool.Stop()

	bridge := uitask.NewBridge(nil, pool)
	if _, err := bridge.Call(func() (any, error) {
		return nil, nil
	}); !errors.Is(err, uitask.ErrPoolClosed) {
		t.Fatalf("Expected ErrPoolClosed, got %v", err)
	}
}
