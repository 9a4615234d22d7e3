package core

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// PriorityContext is an execution context whose runners always take the
// highest-priority pending task next; equal priorities run in FIFO order.
// Any number of goroutines may call Run to serve it.
type PriorityContext struct {
	name   string
	cfg    PoolConfig
	queue  *PriorityTaskQueue
	signal chan struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
	active   atomic.Int32
}

// NewPriorityContext creates an idle context; call Run to serve it.
func NewPriorityContext(name string, cfg *PoolConfig) *PriorityContext {
	c := &PriorityContext{
		name:   name,
		cfg:    cfg.withDefaults(0),
		queue:  NewPriorityTaskQueue(),
		signal: make(chan struct{}, 64),
		stopCh: make(chan struct{}),
	}
	if c.name == "" {
		c.name = "priority"
	}
	return c
}

// Executor returns an executor submitting at the given priority.
func (c *PriorityContext) Executor(priority TaskPriority) PriorityExecutor {
	return PriorityExecutor{context: c, priority: priority}
}

// Enqueue queues task at priority.
func (c *PriorityContext) Enqueue(priority TaskPriority, task Task) error {
	if c.stopped.Load() {
		c.cfg.RejectedTaskHandler.HandleRejectedTask(c.name, "stopped")
		c.cfg.Metrics.RecordTaskRejected(c.name, "stopped")
		return ErrContextStopped
	}

	c.queue.Push(task, TaskTraits{Priority: priority})

	select {
	case c.signal <- struct{}{}:
	default:
		// Signal channel full, but task is already queued
	}
	return nil
}

// Run serves the context on the calling goroutine until Stop is called or
// ctx is done. Pending tasks are not drained after Stop.
func (c *PriorityContext) Run(ctx context.Context) {
	for {
		if c.stopped.Load() {
			return
		}
		if item, ok := c.queue.Pop(); ok {
			c.run(ctx, item)
			continue
		}

		select {
		case <-c.signal:
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *PriorityContext) run(ctx context.Context, item TaskItem) {
	c.active.Add(1)
	start := time.Now()
	defer func() {
		c.active.Add(-1)
		c.cfg.Metrics.RecordTaskDuration(c.name, item.Traits.Priority, time.Since(start))
		if r := recover(); r != nil {
			c.cfg.Metrics.RecordTaskPanic(c.name, r)
			c.cfg.PanicHandler.HandlePanic(ctx, c.name, -1, r, debug.Stack())
		}
	}()
	item.Task(ctx)
}

// Stop makes every runner return and drops pending tasks.
func (c *PriorityContext) Stop() {
	c.stopped.Store(true)
	c.stopOnce.Do(func() { close(c.stopCh) })
	dropped := c.queue.Clear()
	c.cfg.Logger.Info("priority context stopped", F("context", c.name), F("dropped", dropped))
}

// Stats returns current observability data for this context.
func (c *PriorityContext) Stats() PriorityStats {
	return PriorityStats{
		Name:    c.name,
		Pending: c.queue.Len(),
		Active:  int(c.active.Load()),
		Stopped: c.stopped.Load(),
	}
}

// PriorityExecutor submits to a PriorityContext at a fixed priority.
type PriorityExecutor struct {
	context  *PriorityContext
	priority TaskPriority
}

var _ TaskExecutor = PriorityExecutor{}

func (e PriorityExecutor) WithPriority(p TaskPriority) PriorityExecutor {
	e.priority = p
	return e
}

func (e PriorityExecutor) Priority() TaskPriority     { return e.priority }
func (e PriorityExecutor) Context() *PriorityContext { return e.context }

func (e PriorityExecutor) Execute(ctx context.Context, task Task) error {
	return e.context.Enqueue(e.priority, task)
}
