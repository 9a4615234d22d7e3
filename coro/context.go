package coro

// Context is the only place that transfers control between execution
// contexts. Everything else in this package goes through prepare,
// switchFrom and switchOnly.
//
// Each Context owns a goroutine, and with it a private growable stack. At
// most one Context of an Environment holds the baton at any time; the others
// are parked receiving on their resume channel. Handing the baton over is a
// synchronous channel send, so the switch involves no queueing and every
// write made before it is visible after it.
type Context struct {
	resume chan struct{}

	// set by prepare, consumed when the parked stack picks up a new entry
	entry func(*Coroutine) bool
	arg   *Coroutine

	started bool
}

func newContext() *Context {
	return &Context{resume: make(chan struct{})}
}

// newMainContext represents the goroutine that owns the Environment. It has
// no loop of its own: the owner parks on resume directly.
func newMainContext() *Context {
	return &Context{resume: make(chan struct{}), started: true}
}

// prepare arms the context so that the next switch into it calls entry(arg)
// on its own stack. It does not transfer control.
func (c *Context) prepare(entry func(*Coroutine) bool, arg *Coroutine) {
	c.entry = entry
	c.arg = arg
}

// switchFrom parks the caller in previous and continues in c. It returns
// when something switches back into previous.
func (c *Context) switchFrom(previous *Context) {
	c.start()
	c.resume <- struct{}{}
	<-previous.resume
}

// switchOnly continues in c without parking the caller. The caller's stack
// must never be switched into again.
func (c *Context) switchOnly() {
	c.start()
	c.resume <- struct{}{}
}

func (c *Context) start() {
	if !c.started {
		c.started = true
		go c.loop()
	}
}

// loop runs prepared entries. An entry returning true leaves the stack parked
// for reuse; false, or release, ends the goroutine.
func (c *Context) loop() {
	for range c.resume {
		entry, arg := c.entry, c.arg
		c.entry, c.arg = nil, nil
		if entry == nil {
			continue
		}
		if !entry(arg) {
			return
		}
	}
}

// release ends the goroutine of a parked context. It must only be called on
// contexts sitting in a recycle pool.
func (c *Context) release() {
	if c.started {
		close(c.resume)
	}
}
