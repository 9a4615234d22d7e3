//go:build linux

package reactor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/Swind/go-bsio/core"
	"github.com/Swind/go-bsio/coro"
)

// Direction is the readiness a coroutine waits for.
type Direction int

const (
	DirectionRead Direction = iota
	DirectionWrite
	DirectionError
	directionCount
)

var directionEvents = [directionCount]uint32{
	DirectionRead:  unix.EPOLLIN,
	DirectionWrite: unix.EPOLLOUT,
	DirectionError: unix.EPOLLERR,
}

var (
	// ErrBusy is returned when another coroutine already waits on the same
	// descriptor in the same direction.
	ErrBusy = errors.New("reactor: descriptor already has a waiter for this direction")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("reactor: closed")
)

// waiters is the registration of one descriptor.
type waiters struct {
	routines [directionCount]*coro.Coroutine
	mask     uint32
}

// Reactor turns blocking-style I/O into coroutine suspension on one
// Environment. A call that would block registers the descriptor with epoll,
// records the current coroutine and yields; Loop resumes it once the kernel
// reports readiness. Timed waits use a one-shot timerfd as just another
// readable descriptor.
//
// Descriptors must be in non-blocking mode. A Reactor belongs to the goroutine
// that owns its Environment and must only be used by whoever holds that
// Environment's control.
type Reactor struct {
	env    *coro.Environment
	cfg    Config
	epfd   int
	events map[int]*waiters
	buf    [64]unix.EpollEvent
	closed bool
}

// New creates a reactor bound to env with its own epoll instance.
func New(env *coro.Environment, cfg *Config) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll_create1")
	}
	return &Reactor{
		env:    env,
		cfg:    cfg.withDefaults(),
		epfd:   epfd,
		events: make(map[int]*waiters),
	}, nil
}

// Close releases the epoll instance. Coroutines still waiting are not resumed.
func (r *Reactor) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.events = nil
	return unix.Close(r.epfd)
}

// Pending returns the number of registered descriptors.
func (r *Reactor) Pending() int {
	return len(r.events)
}

// addEvent registers the current coroutine as the waiter for fd in dir.
func (r *Reactor) addEvent(fd int, dir Direction) error {
	if r.closed {
		return ErrClosed
	}
	w, exists := r.events[fd]
	op := unix.EPOLL_CTL_MOD
	if !exists {
		w = &waiters{}
		op = unix.EPOLL_CTL_ADD
	}

	bit := directionEvents[dir]
	if w.mask&bit != 0 {
		return ErrBusy
	}

	ev := unix.EpollEvent{Events: w.mask | bit, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, op, fd, &ev); err != nil {
		r.cfg.Logger.Warn("epoll registration failed", core.F("fd", fd), core.F("error", err))
		return errors.Wrap(err, "epoll_ctl")
	}
	w.mask |= bit
	w.routines[dir] = r.env.Current()
	if !exists {
		r.events[fd] = w
	}
	return nil
}

// release clears the dir registration of fd if co still holds it, which is
// the case when co was resumed by something other than the reactor.
func (r *Reactor) release(fd int, dir Direction, co *coro.Coroutine) {
	if r.closed {
		return
	}
	w, ok := r.events[fd]
	if !ok || w.routines[dir] != co {
		return
	}
	w.routines[dir] = nil
	w.mask &^= directionEvents[dir]
	if w.mask == 0 {
		delete(r.events, fd)
		_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		return
	}
	ev := unix.EpollEvent{Events: w.mask, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		r.cfg.Logger.Warn("epoll registration update failed", core.F("fd", fd), core.F("error", err))
	}
}

// forget drops every registration of fd before the descriptor is closed.
func (r *Reactor) forget(fd int) {
	if r.closed {
		return
	}
	if _, ok := r.events[fd]; ok {
		delete(r.events, fd)
		_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
}

// wait suspends until fd is ready in dir. Outside a coroutine it blocks the
// calling goroutine in poll(2) instead.
func (r *Reactor) wait(fd int, dir Direction) error {
	if !r.env.Test() {
		return blockingWait(fd, dir)
	}
	co := r.env.Current()
	if err := r.addEvent(fd, dir); err != nil {
		return err
	}
	r.env.Yield()
	r.release(fd, dir, co)
	return nil
}

func blockingWait(fd int, dir Direction) error {
	var events int16
	switch dir {
	case DirectionRead:
		events = unix.POLLIN
	case DirectionWrite:
		events = unix.POLLOUT
	default:
		events = unix.POLLERR
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

// RunOnce waits up to timeout for readiness and resumes the waiters of every
// ready descriptor, read then write then error. It returns the number of
// ready descriptors.
func (r *Reactor) RunOnce(timeout time.Duration) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	ms := int(timeout / time.Millisecond)
	if timeout < 0 {
		ms = -1
	}
	n, err := unix.EpollWait(r.epfd, r.buf[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, errors.Wrap(err, "epoll_wait")
	}

	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ready = append(ready, int(r.buf[i].Fd))
	}
	for _, fd := range ready {
		w, ok := r.events[fd]
		if !ok {
			continue
		}
		delete(r.events, fd)
		_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)

		for _, co := range w.routines {
			if co != nil {
				co.Resume()
			}
		}
	}
	return n, nil
}

// Loop dispatches readiness until ctx is done.
func (r *Reactor) Loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := r.RunOnce(r.cfg.Timeout); err != nil {
			return err
		}
	}
}

// =============================================================================
// Coroutine-aware system calls
// =============================================================================

// Read reads from fd, suspending the current coroutine while no data is
// available. It returns 0, nil at end of file.
func (r *Reactor) Read(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Read(fd, p)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			if werr := r.wait(fd, DirectionRead); werr != nil {
				return 0, werr
			}
		default:
			return 0, err
		}
	}
}

// Write writes to fd, suspending the current coroutine while fd is not writable.
func (r *Reactor) Write(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			if werr := r.wait(fd, DirectionWrite); werr != nil {
				return 0, werr
			}
		default:
			return 0, err
		}
	}
}

// Accept4 accepts a connection on listening socket fd, suspending the current
// coroutine while none is pending.
func (r *Reactor) Accept4(fd int, flags int) (int, unix.Sockaddr, error) {
	for {
		nfd, sa, err := unix.Accept4(fd, flags)
		switch err {
		case nil:
			return nfd, sa, nil
		case unix.EINTR, unix.ECONNABORTED:
			continue
		case unix.EAGAIN:
			if werr := r.wait(fd, DirectionRead); werr != nil {
				return -1, nil, werr
			}
		default:
			return -1, nil, err
		}
	}
}

// Connect connects non-blocking socket fd to sa, suspending while the
// handshake is in flight. Refusals and transient failures are retried up to
// Config.Connect.MaxRetries attempts, backing off after the third; then it
// fails with ETIMEDOUT.
func (r *Reactor) Connect(fd int, sa unix.Sockaddr) error {
	policy := r.cfg.Connect
	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		if attempt >= connectBackoffAfter {
			if _, err := r.timedWait(policy.Delay(attempt - connectBackoffAfter)); err != nil {
				return err
			}
		}

		switch err := unix.Connect(fd, sa); err {
		case nil, unix.EISCONN:
			return nil
		case unix.EINPROGRESS, unix.EALREADY, unix.EINTR, unix.EAGAIN:
		case unix.EADDRINUSE, unix.EADDRNOTAVAIL, unix.ENETUNREACH, unix.ECONNREFUSED:
			continue
		default:
			return err
		}

		if err := r.wait(fd, DirectionWrite); err != nil {
			return err
		}

		soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return errors.Wrap(err, "getsockopt")
		}
		switch errno := unix.Errno(soerr); errno {
		case 0, unix.EINTR, unix.EINPROGRESS, unix.EALREADY, unix.EISCONN:
			if _, err := unix.Getpeername(fd); err != nil {
				continue
			}
			return nil
		case unix.EAGAIN, unix.EADDRINUSE, unix.EADDRNOTAVAIL, unix.ENETUNREACH, unix.ECONNREFUSED:
			continue
		default:
			return errno
		}
	}
	return unix.ETIMEDOUT
}

// Sleep suspends the current coroutine for seconds and returns the number of
// seconds left unslept, which is zero unless the timer could not be used.
func (r *Reactor) Sleep(seconds uint) uint {
	start := time.Now()
	total := time.Duration(seconds) * time.Second
	left, err := r.timedWait(total)
	if err != nil {
		left = total - time.Since(start)
		if left < 0 {
			left = 0
		}
	}
	return uint(left / time.Second)
}

// Usleep suspends the current coroutine for usec microseconds, which must be
// below one second.
func (r *Reactor) Usleep(usec uint32) error {
	if usec >= 1000000 {
		return unix.EINVAL
	}
	_, err := r.timedWait(time.Duration(usec) * time.Microsecond)
	return err
}

// timedWait arms a one-shot timerfd for d, waits until it fires and returns
// the time still left on it.
func (r *Reactor) timedWait(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, nil
	}
	tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return d, errors.Wrap(err, "timerfd_create")
	}
	defer unix.Close(tfd)
	defer r.forget(tfd)

	expiry := unix.ItimerSpec{Value: unix.NsecToTimespec(d.Nanoseconds())}
	if err := unix.TimerfdSettime(tfd, 0, &expiry, nil); err != nil {
		return d, errors.Wrap(err, "timerfd_settime")
	}
	if err := r.wait(tfd, DirectionRead); err != nil {
		return d, err
	}

	var left unix.ItimerSpec
	if err := unix.TimerfdGettime(tfd, &left); err != nil {
		return d, errors.Wrap(err, "timerfd_gettime")
	}
	return time.Duration(left.Value.Nano()), nil
}

// Poll has poll(2) semantics but suspends the current coroutine instead of
// blocking. timeout is in milliseconds; negative waits indefinitely. The
// descriptors are watched through a private epoll instance that is itself
// registered with the reactor, together with a timerfd for the timeout.
func (r *Reactor) Poll(fds []unix.PollFd, timeout int) (int, error) {
	n, err := pollNow(fds)
	if n != 0 || err != nil || timeout == 0 {
		return n, err
	}
	if !r.env.Test() {
		for {
			n, err := unix.Poll(fds, timeout)
			if err == unix.EINTR {
				continue
			}
			return n, err
		}
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return -1, errors.Wrap(err, "epoll_create1")
	}
	defer unix.Close(epfd)
	defer r.forget(epfd)

	for i := range fds {
		fds[i].Revents = 0
		ev := unix.EpollEvent{Events: uint32(uint16(fds[i].Events)), Fd: int32(i)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, int(fds[i].Fd), &ev); err != nil && err != unix.EEXIST {
			fds[i].Revents = unix.POLLNVAL
		}
	}

	timerIndex := int32(len(fds))
	if timeout > 0 {
		tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
		if err != nil {
			return -1, errors.Wrap(err, "timerfd_create")
		}
		defer unix.Close(tfd)

		expiry := unix.ItimerSpec{Value: unix.NsecToTimespec((time.Duration(timeout) * time.Millisecond).Nanoseconds())}
		if err := unix.TimerfdSettime(tfd, 0, &expiry, nil); err != nil {
			return -1, errors.Wrap(err, "timerfd_settime")
		}
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: timerIndex}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, tfd, &ev); err != nil {
			return -1, errors.Wrap(err, "epoll_ctl")
		}
	}

	invalid := 0
	for i := range fds {
		if fds[i].Revents == unix.POLLNVAL {
			invalid++
		}
	}
	if invalid > 0 {
		return invalid, nil
	}

	if err := r.wait(epfd, DirectionRead); err != nil {
		return -1, err
	}

	events := make([]unix.EpollEvent, len(fds)+1)
	m, err := unix.EpollWait(epfd, events, 0)
	if err != nil {
		return -1, errors.Wrap(err, "epoll_wait")
	}
	ready := 0
	for _, ev := range events[:m] {
		if ev.Fd == timerIndex {
			continue
		}
		fds[ev.Fd].Revents = int16(ev.Events)
		ready++
	}
	return ready, nil
}

// pollNow is a non-blocking poll(2) of fds.
func pollNow(fds []unix.PollFd) (int, error) {
	if len(fds) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// =============================================================================
// Context Helper
// =============================================================================

type reactorKeyType struct{}

var reactorKey reactorKeyType

// WithReactor returns ctx carrying r.
func WithReactor(ctx context.Context, r *Reactor) context.Context {
	return context.WithValue(ctx, reactorKey, r)
}

// FromContext returns the Reactor attached to ctx, or nil.
func FromContext(ctx context.Context) *Reactor {
	if v := ctx.Value(reactorKey); v != nil {
		return v.(*Reactor)
	}
	return nil
}
