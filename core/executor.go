package core

import "context"

// Executor is a lightweight, copyable handle onto a StaticThreadPool with a
// fixed set of execution properties. The With* methods return modified
// copies; the zero-value properties are possibly-blocking one-way fork.
type Executor struct {
	pool           *StaticThreadPool
	blocking       Blocking
	relationship   Relationship
	directionality Directionality
}

var _ TaskExecutor = Executor{}

func (e Executor) WithBlocking(b Blocking) Executor {
	e.blocking = b
	return e
}

func (e Executor) WithRelationship(r Relationship) Executor {
	e.relationship = r
	return e
}

func (e Executor) WithDirectionality(d Directionality) Executor {
	e.directionality = d
	return e
}

func (e Executor) Blocking() Blocking             { return e.blocking }
func (e Executor) Relationship() Relationship     { return e.relationship }
func (e Executor) Directionality() Directionality { return e.directionality }

// Context returns the pool this executor submits to.
func (e Executor) Context() *StaticThreadPool { return e.pool }

// Execute submits task with this executor's properties.
func (e Executor) Execute(ctx context.Context, task Task) error {
	return e.pool.Execute(ctx, task, e.blocking, e.relationship)
}

// ExecuteTwoway submits fn and returns a handle to its result.
func ExecuteTwoway[T any](ctx context.Context, e Executor, fn func(ctx context.Context) (T, error)) (*Future[T], error) {
	return TwowayExecute(ctx, e.pool, fn, e.blocking, e.relationship)
}

// TwowayExecute submits fn like Execute and returns a future that completes
// with fn's result, its error, or ErrTaskPanicked if it panicked. If the pool
// is stopped before fn starts the future fails with ErrBrokenPromise.
func TwowayExecute[T any](ctx context.Context, pool *StaticThreadPool, fn func(ctx context.Context) (T, error), blocking Blocking, relationship Relationship) (*Future[T], error) {
	promise := NewPromise[T]()
	node := &taskNode{
		task: func(ctx context.Context) {
			promise.run(ctx, fn)
		},
		abandon: func() {
			promise.trySetError(ErrBrokenPromise)
		},
	}
	if err := pool.execute(ctx, node, blocking, relationship); err != nil {
		return nil, err
	}
	return promise.Future(), nil
}

// InlineExecutor runs each task on the caller before Execute returns.
type InlineExecutor struct{}

func (InlineExecutor) Execute(ctx context.Context, task Task) error {
	task(ctx)
	return nil
}
