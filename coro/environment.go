package coro

import (
	"context"

	"github.com/Swind/go-bsio/core"
)

// DefaultRecycleCapacity bounds the per-environment pool of retired contexts.
const DefaultRecycleCapacity = 0xff

// Options configures an Environment.
type Options struct {
	// RecycleCapacity bounds the recycle pool. Zero means DefaultRecycleCapacity,
	// negative disables recycling.
	RecycleCapacity int

	// Logger receives recycle pool events. Defaults to core.NoOpLogger.
	Logger core.Logger
}

// Environment is the coroutine runtime of one goroutine ("thread"): the
// stack of currently active coroutines, with the implicit main coroutine at
// index 0, and a bounded LIFO pool of retired contexts.
//
// An Environment is not safe for concurrent use. It belongs to the goroutine
// that created it, and control moves from there into its coroutines and back
// only through Resume and Yield.
type Environment struct {
	stack []*Coroutine
	main  *Coroutine

	recycleStack []*Context
	capacity     int

	logger core.Logger

	created int
	reused  int
}

// EnvironmentStats is a snapshot of an Environment's bookkeeping.
type EnvironmentStats struct {
	Depth   int
	Pooled  int
	Created int
	Reused  int
}

func NewEnvironment(opts *Options) *Environment {
	var o Options
	if opts != nil {
		o = *opts
	}
	switch {
	case o.RecycleCapacity == 0:
		o.RecycleCapacity = DefaultRecycleCapacity
	case o.RecycleCapacity < 0:
		o.RecycleCapacity = 0
	}
	if o.Logger == nil {
		o.Logger = core.NewNoOpLogger()
	}

	e := &Environment{
		capacity:     o.RecycleCapacity,
		recycleStack: make([]*Context, 0, o.RecycleCapacity),
		logger:       o.Logger,
	}
	e.main = &Coroutine{
		state:   StateMain | StateRunning,
		context: newMainContext(),
		env:     e,
	}
	e.push(e.main)
	return e
}

// Create returns a coroutine that will run entry on first Resume. No stack
// is acquired until then. entry receives ctx with this Environment attached.
func (e *Environment) Create(ctx context.Context, entry func(ctx context.Context)) *Coroutine {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Coroutine{
		entry: entry,
		ctx:   WithEnvironment(ctx, e),
		env:   e,
	}
}

// Current returns the innermost active coroutine.
func (e *Environment) Current() *Coroutine {
	return e.stack[len(e.stack)-1]
}

// Main returns the coroutine standing for the owning goroutine's own stack.
func (e *Environment) Main() *Coroutine {
	return e.main
}

// Test reports whether control is currently inside a coroutine rather than
// on the owning goroutine's own stack.
func (e *Environment) Test() bool {
	return e.Current() != e.main
}

// Yield suspends the current coroutine and switches back to whichever
// context resumed it. On the main stack it does nothing.
func (e *Environment) Yield() {
	current := e.Current()
	if current == e.main {
		return
	}

	e.pop()
	previous := e.Current()

	if current.context != nil {
		previous.context.switchFrom(current.context)
	} else {
		// exiting: this stack is never switched into again
		previous.context.switchOnly()
	}
}

func (e *Environment) push(c *Coroutine) {
	c.active = true
	e.stack = append(e.stack, c)
}

func (e *Environment) pop() {
	n := len(e.stack) - 1
	e.stack[n].active = false
	e.stack[n] = nil
	e.stack = e.stack[:n]
}

func (e *Environment) reusable() bool {
	return len(e.recycleStack) > 0
}

func (e *Environment) reuse() *Context {
	n := len(e.recycleStack) - 1
	c := e.recycleStack[n]
	e.recycleStack[n] = nil
	e.recycleStack = e.recycleStack[:n]
	e.reused++
	return c
}

func (e *Environment) recyclable() bool {
	return len(e.recycleStack) < e.capacity
}

func (e *Environment) recycle(c *Context) {
	e.recycleStack = append(e.recycleStack, c)
}

// acquire hands out a pooled context, or a fresh one when the pool is empty.
func (e *Environment) acquire() *Context {
	if e.reusable() {
		return e.reuse()
	}
	e.created++
	return newContext()
}

// Stats returns a snapshot of the environment's bookkeeping.
func (e *Environment) Stats() EnvironmentStats {
	return EnvironmentStats{
		Depth:   len(e.stack),
		Pooled:  len(e.recycleStack),
		Created: e.created,
		Reused:  e.reused,
	}
}

// Close releases every pooled context. Suspended coroutines keep their
// stacks; they are released when they run to completion.
func (e *Environment) Close() {
	n := len(e.recycleStack)
	for i, c := range e.recycleStack {
		c.release()
		e.recycleStack[i] = nil
	}
	e.recycleStack = e.recycleStack[:0]
	e.logger.Debug("coroutine environment closed", core.F("released", n), core.F("created", e.created), core.F("reused", e.reused))
}

// =============================================================================
// Context Helper
// =============================================================================

type environmentKeyType struct{}

var environmentKey environmentKeyType

// WithEnvironment returns ctx carrying env.
func WithEnvironment(ctx context.Context, env *Environment) context.Context {
	return context.WithValue(ctx, environmentKey, env)
}

// FromContext returns the Environment attached to ctx, or nil.
func FromContext(ctx context.Context) *Environment {
	if ctx == nil {
		return nil
	}
	if v := ctx.Value(environmentKey); v != nil {
		return v.(*Environment)
	}
	return nil
}

// Open returns the Environment for ctx: the one attached to it, or else the
// per-worker Environment of the pool worker running the current task, created
// on first use. It returns nil outside both.
func Open(ctx context.Context) *Environment {
	if env := FromContext(ctx); env != nil {
		return env
	}
	v, ok := core.WorkerValue(ctx, environmentKey, func() any {
		return NewEnvironment(nil)
	})
	if !ok {
		return nil
	}
	return v.(*Environment)
}

// Yield suspends the coroutine running with ctx. Outside a coroutine it does nothing.
func Yield(ctx context.Context) {
	if env := FromContext(ctx); env != nil {
		env.Yield()
	}
}

// Current returns the innermost active coroutine of ctx's Environment, or nil.
func Current(ctx context.Context) *Coroutine {
	if env := FromContext(ctx); env != nil {
		return env.Current()
	}
	return nil
}

// Test reports whether ctx's Environment is currently inside a coroutine.
func Test(ctx context.Context) bool {
	env := FromContext(ctx)
	return env != nil && env.Test()
}
