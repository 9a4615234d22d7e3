package coro

import (
	"context"

	"github.com/Swind/go-bsio/core"
)

// Looper round-robins coroutines: Yield parks the current coroutine at the
// back of a FIFO queue and Run resumes queued coroutines until none is left.
type Looper struct {
	env     *Environment
	pending *core.FIFOTaskQueue
}

func NewLooper(env *Environment) *Looper {
	return &Looper{env: env, pending: core.NewFIFOTaskQueue()}
}

// Yield queues the current coroutine for a later Resume and suspends it.
func (l *Looper) Yield() error {
	if !l.env.Test() {
		return ErrNotCoroutine
	}
	co := l.env.Current()
	l.pending.Push(func(context.Context) { co.Resume() }, core.DefaultTaskTraits())
	l.env.Yield()
	return nil
}

// Run resumes queued coroutines in FIFO order until the queue is empty.
func (l *Looper) Run(ctx context.Context) {
	for {
		item, ok := l.pending.Pop()
		if !ok {
			return
		}
		item.Task(ctx)
	}
}

// Len returns the number of coroutines waiting to be resumed.
func (l *Looper) Len() int {
	return l.pending.Len()
}
