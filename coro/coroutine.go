package coro

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/pkg/errors"
)

var (
	// ErrAlreadyActive is the panic value of resuming a coroutine that is
	// already on its environment's active stack.
	ErrAlreadyActive = errors.New("coro: coroutine already active")

	// ErrNotCoroutine is returned by operations that must run inside a coroutine.
	ErrNotCoroutine = errors.New("coro: not running in a coroutine")

	// ErrNoEnvironment is returned when ctx carries no Environment.
	ErrNoEnvironment = errors.New("coro: no environment")
)

// PanicError carries a panic raised inside a coroutine body. Resume re-panics
// with it on the resuming goroutine.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("coro: coroutine panicked: %v", p.Value)
}

// Coroutine is a cooperatively scheduled unit of work with its own stack.
//
// Lifecycle: not-started -> running on the first Resume; running <-> suspended
// across Yield/Resume; exited once entry returns. Resume on an exited
// coroutine is a no-op returning the exited state.
type Coroutine struct {
	state   State
	context *Context
	entry   func(ctx context.Context)
	ctx     context.Context
	env     *Environment
	active  bool

	panicErr *PanicError
}

// State returns the runtime bitmask.
func (c *Coroutine) State() State { return c.state }

// Exited reports whether the entry function has returned.
func (c *Coroutine) Exited() bool { return c.state&StateExit != 0 }

// Running reports whether the coroutine has started and not exited.
func (c *Coroutine) Running() bool { return c.state&StateRunning != 0 }

// Environment returns the owning Environment.
func (c *Coroutine) Environment() *Environment { return c.env }

// Resume switches into the coroutine and returns once it yields or exits.
// It must be called by whoever currently holds the Environment's control.
func (c *Coroutine) Resume() State {
	if c.state&StateExit != 0 {
		return c.state
	}
	if c.active {
		panic(ErrAlreadyActive)
	}

	e := c.env
	if c.state&StateRunning == 0 {
		c.context = e.acquire()
		c.context.prepare(routineWrapper, c)
		c.state |= StateRunning
	}

	previous := e.Current()
	e.push(c)
	c.context.switchFrom(previous.context)

	if p := c.panicErr; p != nil {
		c.panicErr = nil
		panic(p)
	}
	return c.state
}

// routineWrapper runs on the coroutine's own stack. It reports whether the
// stack was donated to the recycle pool and should stay parked.
func routineWrapper(c *Coroutine) bool {
	e := c.env
	c.invoke()
	c.state ^= StateExit | StateRunning

	ctx := c.context
	c.context = nil
	recycled := e.recyclable()
	if recycled {
		e.recycle(ctx)
	}

	e.Yield()
	return recycled
}

func (c *Coroutine) invoke() {
	defer func() {
		if r := recover(); r != nil {
			c.panicErr = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	if c.entry != nil {
		c.entry(c.ctx)
	}
}
