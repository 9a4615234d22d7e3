package bsio

import "github.com/Swind/go-bsio/core"

// Task is the unit of work
type Task = core.Task

// TaskTraits describes priority metadata for PriorityContext
type TaskTraits = core.TaskTraits

// TaskPriority is the priority level of a task
type TaskPriority = core.TaskPriority

// StaticThreadPool is re-exported for type compatibility
type StaticThreadPool = core.StaticThreadPool

// PoolConfig configures a StaticThreadPool
type PoolConfig = core.PoolConfig

// Executor is a pool handle with execution properties
type Executor = core.Executor

// TaskExecutor is anything tasks can be submitted to
type TaskExecutor = core.TaskExecutor

type (
	Blocking       = core.Blocking
	Relationship   = core.Relationship
	Directionality = core.Directionality
)

// Future and Promise for two-way submissions
type Future[T any] = core.Future[T]
type Promise[T any] = core.Promise[T]

// Execution properties
const (
	BlockingPossibly = core.BlockingPossibly
	BlockingNever    = core.BlockingNever
	BlockingAlways   = core.BlockingAlways

	RelationshipFork         = core.RelationshipFork
	RelationshipContinuation = core.RelationshipContinuation

	DirectionalityOneway = core.DirectionalityOneway
	DirectionalityTwoway = core.DirectionalityTwoway
)

// Priority constants
const (
	TaskPriorityBestEffort   TaskPriority = core.TaskPriorityBestEffort
	TaskPriorityUserVisible  TaskPriority = core.TaskPriorityUserVisible
	TaskPriorityUserBlocking TaskPriority = core.TaskPriorityUserBlocking
)

// Convenience functions for creating TaskTraits
var (
	DefaultTaskTraits  = core.DefaultTaskTraits
	TraitsUserBlocking = core.TraitsUserBlocking
	TraitsBestEffort   = core.TraitsBestEffort
	TraitsUserVisible  = core.TraitsUserVisible
)

// NewStaticThreadPool creates a pool and starts its workers.
func NewStaticThreadPool(workers int, cfg *PoolConfig) *StaticThreadPool {
	return core.NewStaticThreadPool(workers, cfg)
}

// NewPriorityContext creates a priority-ordered task context.
func NewPriorityContext(name string, cfg *PoolConfig) *core.PriorityContext {
	return core.NewPriorityContext(name, cfg)
}

// CurrentPool retrieves the pool whose worker runs the task owning ctx
var CurrentPool = core.CurrentPool

// WorkerID returns the id of the worker running the task owning ctx, or -1
var WorkerID = core.WorkerID
