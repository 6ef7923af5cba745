package core

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

// TestRegister_InvalidTaskKind tests the routine type check
// Main test items:
// 1. A factory returning a plain value fails with ErrInvalidTaskKind
// 2. A factory returning nil fails with ErrInvalidTaskKind
// 3. No part of the factory product is ever executed
func TestRegister_InvalidTaskKind(t *testing.T) {
	executed := false

	notARoutine := Register(PolicyIndependent, func(args ...any) any {
		// A plain function, not a resumable routine.
		return func() {
			executed = true
		}
	})

	err := notARoutine()
	if !errors.Is(err, ErrInvalidTaskKind) {
		t.Fatalf("Expected ErrInvalidTaskKind, got %v", err)
	}
	if executed {
		t.Error("Body of a non-routine factory product was executed")
	}

	nilProduct := Register(PolicyIndependent, func(args ...any) any {
		return nil
	})
	if err := nilProduct(); !errors.Is(err, ErrInvalidTaskKind) {
		t.Fatalf("Expected ErrInvalidTaskKind for nil product, got %v", err)
	}
}

// TestRegister_AcceptsBareYieldFunc tests factory products without the
// Routine conversion
// Main test items:
// 1. A factory returning a bare func(func(any) bool) literal is accepted
// 2. The routine runs to completion
func TestRegister_AcceptsBareYieldFunc(t *testing.T) {
	ran := false

	task := Register(PolicyIndependent, func(args ...any) any {
		return func(yield func(any) bool) {
			if !yield(nil) {
				return
			}
			ran = true
		}
	})

	if err := task(); err != nil {
		t.Fatalf("task failed: %v", err)
	}
	if !ran {
		t.Error("Routine did not run to completion")
	}
}

// TestRegister_IndependentAllComplete tests the independent policy
// Main test items:
// 1. 16 concurrent invocations each run to completion exactly once
// 2. No post-checkpoint continuation is suppressed
func TestRegister_IndependentAllComplete(t *testing.T) {
	const n = 16
	bridge := NewBridge(nil, nil)

	var mu sync.Mutex
	var calls []int

	task := Register(PolicyIndependent, func(args ...any) any {
		number := args[0].(int)
		return Routine(func(yield func(any) bool) {
			bridge.Sleep(time.Millisecond, WithPollTimeout(100*time.Microsecond))
			if !yield(nil) {
				return
			}
			mu.Lock()
			calls = append(calls, number)
			mu.Unlock()
		})
	})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := task(i); err != nil {
				t.Errorf("task(%d) failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	sort.Ints(calls)
	if len(calls) != n {
		t.Fatalf("Expected %d continuations, got %d: %v", n, len(calls), calls)
	}
	for i := 0; i < n; i++ {
		if calls[i] != i {
			t.Fatalf("Expected calls 0..%d, got %v", n-1, calls)
		}
	}
}

// TestRegister_LatestWinsOnlyLastContinues tests supersession
// Main test items:
// 1. 16 concurrent invocations all bind their version before any
//    checkpoint (barrier inside the blocking callable)
// 2. Exactly one instance continues past its checkpoint
func TestRegister_LatestWinsOnlyLastContinues(t *testing.T) {
	const n = 16
	bridge := NewBridge(nil, nil)

	var ready sync.WaitGroup
	ready.Add(n)
	release := make(chan struct{})

	var mu sync.Mutex
	var calls []int

	task := Register(PolicyLatestWins, func(args ...any) any {
		number := args[0].(int)
		return Routine(func(yield func(any) bool) {
			_, _ = bridge.Call(func() (any, error) {
				ready.Done()
				<-release
				return nil, nil
			}, WithPollTimeout(100*time.Microsecond))
			if !yield(nil) {
				return
			}
			mu.Lock()
			calls = append(calls, number)
			mu.Unlock()
		})
	})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = task(i)
		}(i)
	}

	// Every instance is now parked inside its blocking call, so all 16
	// versions are bound before the first checkpoint.
	ready.Wait()
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("Expected exactly 1 continuation, got %d: %v", len(calls), calls)
	}
}

// TestRegister_LatestWinsSecondInvocationWins tests deterministic
// two-phase supersession
// Main test items:
// 1. The first invocation parks in its blocking call
// 2. A second invocation completes while the first is parked
// 3. The first invocation is abandoned at its checkpoint, only the
//    second records
func TestRegister_LatestWinsSecondInvocationWins(t *testing.T) {
	bridge := NewBridge(nil, nil)

	firstParked := make(chan struct{})
	releaseFirst := make(chan struct{})

	var mu sync.Mutex
	var calls []int

	task := Register(PolicyLatestWins, func(args ...any) any {
		number := args[0].(int)
		return Routine(func(yield func(any) bool) {
			_, _ = bridge.Call(func() (any, error) {
				if number == 0 {
					close(firstParked)
					<-releaseFirst
				}
				return nil, nil
			}, WithPollTimeout(100*time.Microsecond))
			if !yield(nil) {
				return
			}
			mu.Lock()
			calls = append(calls, number)
			mu.Unlock()
		})
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = task(0)
	}()

	<-firstParked
	if err := task(1); err != nil {
		t.Fatalf("task(1) failed: %v", err)
	}
	close(releaseFirst)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 || calls[0] != 1 {
		t.Fatalf("Expected only invocation 1 to record, got %v", calls)
	}
}

// TestRegister_LatestWinsSequentialAllComplete tests non-overlapping
// latest-wins invocations
// Main test items:
// 1. Sequential invocations never supersede each other
// 2. Every invocation runs to completion
func TestRegister_LatestWinsSequentialAllComplete(t *testing.T) {
	bridge := NewBridge(nil, nil)

	var calls []int

	task := Register(PolicyLatestWins, func(args ...any) any {
		number := args[0].(int)
		return Routine(func(yield func(any) bool) {
			bridge.Sleep(time.Millisecond, WithPollTimeout(100*time.Microsecond))
			if !yield(nil) {
				return
			}
			calls = append(calls, number)
		})
	})

	for i := 0; i < 5; i++ {
		if err := task(i); err != nil {
			t.Fatalf("task(%d) failed: %v", i, err)
		}
	}

	if len(calls) != 5 {
		t.Fatalf("Expected 5 continuations, got %d: %v", len(calls), calls)
	}
	for i, v := range calls {
		if v != i {
			t.Fatalf("Expected calls in order 0..4, got %v", calls)
		}
	}
}

// TestRegister_MultipleCheckpoints tests value round-trips over several
// checkpoints
// Main test items:
// 1. Each bridge call returns its own result to the routine
// 2. The routine observes all results in order
func TestRegister_MultipleCheckpoints(t *testing.T) {
	const nYields = 5
	bridge := NewBridge(nil, nil)

	var values []int

	task := Register(PolicyIndependent, func(args ...any) any {
		return Routine(func(yield func(any) bool) {
			for i := 0; i < nYields; i++ {
				v, err := bridge.Call(func() (any, error) {
					return i * 42, nil
				}, WithPollTimeout(100*time.Microsecond))
				if err != nil {
					t.Errorf("bridge call %d failed: %v", i, err)
				}
				if !yield(v) {
					return
				}
				values = append(values, v.(int))
			}
		})
	})

	if err := task(); err != nil {
		t.Fatalf("task failed: %v", err)
	}

	if len(values) != nYields {
		t.Fatalf("Expected %d values, got %d", nYields, len(values))
	}
	for i, v := range values {
		if v != i*42 {
			t.Errorf("Value %d: expected %d, got %d", i, i*42, v)
		}
	}
}
