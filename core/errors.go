package core

import "github.com/pkg/errors"

var (
	// ErrPoolStopped is returned for submissions after Stop.
	ErrPoolStopped = errors.New("bsio: pool stopped")

	// ErrPoolClosed is returned for submissions from outside the pool once
	// Wait has drained it and every worker has left.
	ErrPoolClosed = errors.New("bsio: pool closed")

	// ErrPromiseAlreadySatisfied is the panic value of a second fulfilment.
	ErrPromiseAlreadySatisfied = errors.New("bsio: promise already satisfied")

	// ErrBrokenPromise is the error of a future whose task was abandoned.
	ErrBrokenPromise = errors.New("bsio: broken promise")

	// ErrTaskPanicked wraps the value recovered from a panicking two-way task.
	ErrTaskPanicked = errors.New("bsio: task panicked")

	// ErrContextStopped is returned by PriorityContext after Stop.
	ErrContextStopped = errors.New("bsio: execution context stopped")
)
