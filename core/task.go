package core

import (
	"context"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// =============================================================================
// Execution properties: how a submission relates to its caller
// =============================================================================

// Blocking describes whether a submission may return before the task completes.
type Blocking int

const (
	// BlockingPossibly lets the executor pick. The pool runs inline when the
	// caller is one of its workers and queues otherwise.
	BlockingPossibly Blocking = iota

	// BlockingNever returns without waiting for the task.
	BlockingNever

	// BlockingAlways returns only after the task has finished.
	BlockingAlways
)

func (b Blocking) String() string {
	switch b {
	case BlockingPossibly:
		return "possibly"
	case BlockingNever:
		return "never"
	case BlockingAlways:
		return "always"
	default:
		return "unknown"
	}
}

// Relationship describes how submitted work relates to the submitter.
type Relationship int

const (
	// RelationshipFork means the task has no ordering relation to the caller's
	// continuation.
	RelationshipFork Relationship = iota

	// RelationshipContinuation means the task is what the caller does next.
	// From a worker it is deferred to that worker's private FIFO queue.
	RelationshipContinuation
)

func (r Relationship) String() string {
	switch r {
	case RelationshipFork:
		return "fork"
	case RelationshipContinuation:
		return "continuation"
	default:
		return "unknown"
	}
}

// Directionality describes whether the caller gets a result handle back.
type Directionality int

const (
	DirectionalityOneway Directionality = iota
	DirectionalityTwoway
)

func (d Directionality) String() string {
	if d == DirectionalityTwoway {
		return "twoway"
	}
	return "oneway"
}

// =============================================================================
// TaskTraits: used by PriorityContext
// =============================================================================

type TaskPriority int

const (
	// TaskPriorityBestEffort: Lowest priority
	TaskPriorityBestEffort TaskPriority = iota

	// TaskPriorityUserVisible: Default priority
	TaskPriorityUserVisible

	// TaskPriorityUserBlocking: Highest priority
	TaskPriorityUserBlocking
)

type TaskTraits struct {
	Priority TaskPriority
	Category string
}

func DefaultTaskTraits() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserVisible}
}

func TraitsUserBlocking() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserBlocking}
}

func TraitsBestEffort() TaskTraits {
	return TaskTraits{Priority: TaskPriorityBestEffort}
}

func TraitsUserVisible() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserVisible}
}

// =============================================================================
// Executor: task submission interface
// =============================================================================

// TaskExecutor is implemented by everything tasks can be submitted to: pool
// executors, priority executors, the inline executor and coroutine executors.
type TaskExecutor interface {
	Execute(ctx context.Context, task Task) error
}

// =============================================================================
// Context Helper
// =============================================================================
type workerKeyType struct{}

var workerKey workerKeyType

// workerFromContext returns the private data of the pool worker running the
// task that owns ctx, or nil when ctx does not belong to a worker.
func workerFromContext(ctx context.Context) *threadPrivateData {
	if ctx == nil {
		return nil
	}
	if v := ctx.Value(workerKey); v != nil {
		return v.(*threadPrivateData)
	}
	return nil
}

// CurrentPool returns the pool whose worker is running the task that owns ctx.
func CurrentPool(ctx context.Context) *StaticThreadPool {
	if w := workerFromContext(ctx); w != nil {
		return w.owner
	}
	return nil
}

// WorkerID returns the id of the worker running the task that owns ctx, or -1.
func WorkerID(ctx context.Context) int {
	if w := workerFromContext(ctx); w != nil {
		return w.id
	}
	return -1
}

// WorkerValue returns the worker-local value stored under key, creating it
// with init on first use. ok is false when ctx does not belong to a worker.
// Values live until the worker exits; those with a Close() method are closed then.
func WorkerValue(ctx context.Context, key any, init func() any) (v any, ok bool) {
	w := workerFromContext(ctx)
	if w == nil {
		return nil, false
	}
	if w.locals == nil {
		w.locals = make(map[any]any)
	}
	if v, found := w.locals[key]; found {
		return v, true
	}
	v = init()
	w.locals[key] = v
	return v, true
}
