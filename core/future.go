package core

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// TaskWithResult is a task that produces a value.
type TaskWithResult[T any] func(ctx context.Context) (T, error)

// Promise is the write side of a single-assignment result. Exactly one of
// Set or SetError may be called; a second fulfilment panics with
// ErrPromiseAlreadySatisfied.
type Promise[T any] struct {
	mu    sync.Mutex
	done  chan struct{}
	set   bool
	value T
	err   error
}

func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Future returns the read side of p.
func (p *Promise[T]) Future() *Future[T] {
	return &Future[T]{p: p}
}

func (p *Promise[T]) Set(v T) {
	if !p.fulfil(v, nil) {
		panic(ErrPromiseAlreadySatisfied)
	}
}

func (p *Promise[T]) SetError(err error) {
	if !p.fulfil(*new(T), err) {
		panic(ErrPromiseAlreadySatisfied)
	}
}

// trySetError is used when a queued task is dropped; the task may have been
// fulfilled already by an inline run, so a second fulfilment is not an error here.
func (p *Promise[T]) trySetError(err error) {
	p.fulfil(*new(T), err)
}

func (p *Promise[T]) fulfil(v T, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set {
		return false
	}
	p.set = true
	p.value, p.err = v, err
	close(p.done)
	return true
}

// run executes fn and stores its outcome, turning a panic into ErrTaskPanicked.
func (p *Promise[T]) run(ctx context.Context, fn func(ctx context.Context) (T, error)) {
	var (
		v        T
		err      error
		finished bool
	)
	defer func() {
		if !finished {
			r := recover()
			err = errors.Wrapf(ErrTaskPanicked, "%v", r)
		}
		if err != nil {
			p.SetError(err)
			return
		}
		p.Set(v)
	}()
	v, err = fn(ctx)
	finished = true
}

// Future is the read side of a Promise.
type Future[T any] struct {
	p *Promise[T]
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.p.done
}

// Ready reports whether the result is available without blocking.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the result is available.
func (f *Future[T]) Wait() {
	<-f.p.done
}

// WaitContext blocks until the result is available or ctx is done.
func (f *Future[T]) WaitContext(ctx context.Context) error {
	select {
	case <-f.p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get waits for and returns the result.
func (f *Future[T]) Get() (T, error) {
	<-f.p.done
	return f.p.value, f.p.err
}

// Then submits fn to ex once f completes successfully and returns the future
// of fn's result. An error from f is propagated without running fn.
func Then[T, U any](f *Future[T], ex TaskExecutor, fn func(ctx context.Context, v T) (U, error)) *Future[U] {
	next := NewPromise[U]()
	go func() {
		v, err := f.Get()
		if err != nil {
			next.SetError(err)
			return
		}
		submitErr := ex.Execute(context.Background(), func(ctx context.Context) {
			next.run(ctx, func(ctx context.Context) (U, error) {
				return fn(ctx, v)
			})
		})
		if submitErr != nil {
			next.trySetError(submitErr)
		}
	}()
	return next.Future()
}
