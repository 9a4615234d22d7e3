package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// TestPromise_SetGet verifies a fulfilled promise is visible through its future
// Given: A new promise
// When: Set is called from another goroutine
// Then: Get returns the value and Ready turns true
func TestPromise_SetGet(t *testing.T) {
	// Arrange
	p := NewPromise[string]()
	f := p.Future()
	if f.Ready() {
		t.Fatal("future ready before Set")
	}

	// Act
	go p.Set("value")
	v, err := f.Get()

	// Assert
	if err != nil || v != "value" {
		t.Errorf("Get() = (%q, %v), want (\"value\", nil)", v, err)
	}
	if !f.Ready() {
		t.Error("Ready() = false after Get")
	}
}

// TestPromise_DoubleSetPanics verifies a promise is single-assignment
func TestPromise_DoubleSetPanics(t *testing.T) {
	p := NewPromise[int]()
	p.SetError(errors.New("first"))

	defer func() {
		if r := recover(); r != ErrPromiseAlreadySatisfied {
			t.Errorf("recover() = %v, want ErrPromiseAlreadySatisfied", r)
		}
		if _, err := p.Future().Get(); err == nil || err.Error() != "first" {
			t.Errorf("first result overwritten: %v", err)
		}
	}()
	p.Set(2)
}

// TestFuture_WaitContext verifies waiting gives up with the context
func TestFuture_WaitContext(t *testing.T) {
	p := NewPromise[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := p.Future().WaitContext(ctx); err != context.DeadlineExceeded {
		t.Errorf("WaitContext() = %v, want DeadlineExceeded", err)
	}

	p.Set(1)
	if err := p.Future().WaitContext(context.Background()); err != nil {
		t.Errorf("WaitContext() after Set = %v", err)
	}
}

// TestTwowayExecute_Outcomes verifies values, errors and panics reach the future
func TestTwowayExecute_Outcomes(t *testing.T) {
	pool := NewStaticThreadPool(2, &PoolConfig{PanicHandler: discardPanics{}})
	defer pool.Wait()

	tests := []struct {
		name      string
		fn        func(ctx context.Context) (int, error)
		want      int
		wantErr   error
		errSubstr string
	}{
		{
			name: "value",
			fn:   func(ctx context.Context) (int, error) { return 42, nil },
			want: 42,
		},
		{
			name:    "error",
			fn:      func(ctx context.Context) (int, error) { return 0, ErrContextStopped },
			wantErr: ErrContextStopped,
		},
		{
			name:      "panic",
			fn:        func(ctx context.Context) (int, error) { panic("kaboom") },
			wantErr:   ErrTaskPanicked,
			errSubstr: "kaboom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := TwowayExecute(context.Background(), pool, tt.fn, BlockingNever, RelationshipFork)
			if err != nil {
				t.Fatalf("TwowayExecute failed: %v", err)
			}
			v, err := f.Get()
			if tt.wantErr == nil {
				if err != nil || v != tt.want {
					t.Errorf("Get() = (%d, %v), want (%d, nil)", v, err, tt.want)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Get() error = %v, want %v", err, tt.wantErr)
			}
			if tt.errSubstr != "" && !strings.Contains(err.Error(), tt.errSubstr) {
				t.Errorf("error %q does not mention %q", err, tt.errSubstr)
			}
		})
	}
}

// TestTwowayExecute_Rejected verifies a rejected submission returns no future
func TestTwowayExecute_Rejected(t *testing.T) {
	pool := NewStaticThreadPool(1, nil)
	pool.Stop()
	pool.Wait()

	f, err := TwowayExecute(context.Background(), pool, func(ctx context.Context) (int, error) {
		return 1, nil
	}, BlockingNever, RelationshipFork)
	if err != ErrPoolStopped || f != nil {
		t.Errorf("TwowayExecute() = (%v, %v), want (nil, ErrPoolStopped)", f, err)
	}
}

// TestThen verifies chained futures run on the given executor
// Given: A future of 20 from the pool
// When: It is chained with a doubling step and a failing step
// Then: The first chain yields 40 on a worker and the second propagates the error without running later steps
func TestThen(t *testing.T) {
	// Arrange
	pool := NewStaticThreadPool(2, nil)
	defer pool.Wait()
	ex := pool.Executor().WithBlocking(BlockingNever)
	first, err := ExecuteTwoway(context.Background(), ex, func(ctx context.Context) (int, error) {
		return 20, nil
	})
	if err != nil {
		t.Fatalf("ExecuteTwoway failed: %v", err)
	}

	// Act
	doubled := Then(first, ex, func(ctx context.Context, v int) (int, error) {
		if CurrentPool(ctx) != pool {
			return 0, errors.New("continuation not on a worker")
		}
		return v * 2, nil
	})
	failed := Then(first, InlineExecutor{}, func(ctx context.Context, v int) (int, error) {
		return 0, errors.New("step failed")
	})
	skipped := false
	afterFailure := Then(failed, InlineExecutor{}, func(ctx context.Context, v int) (string, error) {
		skipped = true
		return "unreachable", nil
	})

	// Assert
	if v, err := doubled.Get(); err != nil || v != 40 {
		t.Errorf("doubled.Get() = (%d, %v), want (40, nil)", v, err)
	}
	if _, err := afterFailure.Get(); err == nil || err.Error() != "step failed" {
		t.Errorf("afterFailure.Get() error = %v, want step failed", err)
	}
	if skipped {
		t.Error("step after a failure ran")
	}
}

type discardPanics struct{}

func (discardPanics) HandlePanic(ctx context.Context, executorName string, workerID int, panicInfo any, stackTrace []byte) {
}
