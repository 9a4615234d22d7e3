package coro

import (
	"context"

	"github.com/Swind/go-bsio/core"
)

// Executor starts tasks as coroutines on an Environment. Execute creates the
// coroutine and resumes it at once, so it returns at the task's first yield.
// The zero Executor uses Open(ctx) to find the Environment.
type Executor struct {
	env *Environment
}

var _ core.TaskExecutor = Executor{}

func NewExecutor(env *Environment) Executor {
	return Executor{env: env}
}

func (e Executor) environment(ctx context.Context) *Environment {
	if e.env != nil {
		return e.env
	}
	return Open(ctx)
}

// Spawn creates a coroutine running task, resumes it once and returns it.
func (e Executor) Spawn(ctx context.Context, task core.Task) (*Coroutine, error) {
	env := e.environment(ctx)
	if env == nil {
		return nil, ErrNoEnvironment
	}
	co := env.Create(ctx, task)
	co.Resume()
	return co, nil
}

func (e Executor) Execute(ctx context.Context, task core.Task) error {
	_, err := e.Spawn(ctx, task)
	return err
}
