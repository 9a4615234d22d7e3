package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
// This allows custom panic handling, logging, and recovery strategies.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context of the panicked task (carries the worker identity)
	// - executorName: The pool or context where the panic occurred
	// - workerID: The ID of the worker, -1 when the task ran outside a worker
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, executorName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, executorName string, workerID int, panicInfo any, stackTrace []byte) {
	if workerID >= 0 {
		fmt.Printf("[Worker %d @ %s] Panic: %v\nStack trace:\n%s",
			workerID, executorName, panicInfo, stackTrace)
	} else {
		fmt.Printf("[Executor %s] Panic: %v\nStack trace:\n%s",
			executorName, panicInfo, stackTrace)
	}
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(executorName string, priority TaskPriority, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(executorName string, panicInfo any)

	// RecordQueueDepth records the shared list depth after a change.
	RecordQueueDepth(executorName string, depth int)

	// RecordTaskRejected records that a submission was refused (stopped or drained pool).
	RecordTaskRejected(executorName string, reason string)
}

// DispatchPath is where the pool sent a submission.
type DispatchPath string

const (
	// DispatchInline: run on the submitting worker before Execute returned.
	DispatchInline DispatchPath = "inline"
	// DispatchPrivate: deferred to the submitting worker's continuation queue.
	DispatchPrivate DispatchPath = "private"
	// DispatchShared: pushed onto the shared list.
	DispatchShared DispatchPath = "shared"
)

// SubmissionRecorder is an optional Metrics extension. A StaticThreadPool
// whose Metrics also implements it reports how each accepted submission was
// dispatched and how many queued tasks were abandoned.
type SubmissionRecorder interface {
	RecordSubmission(executorName string, blocking Blocking, relationship Relationship, path DispatchPath)
	RecordAbandoned(executorName string, count int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(executorName string, priority TaskPriority, duration time.Duration) {
}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(executorName string, panicInfo any) {
}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(executorName string, depth int) {
}

// RecordTaskRejected is a no-op.
func (m *NilMetrics) RecordTaskRejected(executorName string, reason string) {
}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a submission is refused because the pool
// was stopped or has already drained.
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	HandleRejectedTask(executorName string, reason string)
}

// DefaultRejectedTaskHandler provides a basic handler that logs rejected tasks.
type DefaultRejectedTaskHandler struct{}

// HandleRejectedTask logs the rejected task.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(executorName string, reason string) {
	fmt.Printf("[Executor %s] Task rejected: %s\n", executorName, reason)
}

// =============================================================================
// WakePolicy: how many workers a shared-list push wakes
// =============================================================================

// WakePolicy decides whether a push onto the shared list wakes every blocked
// worker instead of one. depth is the list length before the push.
type WakePolicy interface {
	WakeAll(depth int) bool
}

// WakeOne always signals a single worker.
type WakeOne struct{}

func (WakeOne) WakeAll(depth int) bool { return false }

// EagerWake wakes all workers once the shared list holds at least Threshold
// pending nodes.
type EagerWake struct {
	Threshold int
}

func (w EagerWake) WakeAll(depth int) bool {
	return w.Threshold > 0 && depth >= w.Threshold
}

// =============================================================================
// PoolConfig: Configuration for StaticThreadPool
// =============================================================================

// PoolConfig holds configuration options for StaticThreadPool.
// All handlers are optional; if not provided, default implementations will be used.
type PoolConfig struct {
	// ID names the pool in logs and metrics. Defaults to "pool-<workers>".
	ID string

	// Logger receives lifecycle events. Defaults to NoOpLogger.
	Logger Logger

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record task execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a task is rejected. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler

	// WakePolicy picks notify-one or notify-all on shared pushes. Defaults to WakeOne.
	WakePolicy WakePolicy

	// QueueForkOnWorker sends never-block fork submissions made from a worker
	// to the shared list instead of running them inline.
	QueueForkOnWorker bool
}

// DefaultPoolConfig returns a config with default handlers.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Logger:              NewNoOpLogger(),
		PanicHandler:        &DefaultPanicHandler{},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{},
		WakePolicy:          WakeOne{},
	}
}

// withDefaults fills the unset fields of a copy of cfg.
func (cfg *PoolConfig) withDefaults(workers int) PoolConfig {
	var c PoolConfig
	if cfg != nil {
		c = *cfg
	}
	if c.ID == "" {
		c.ID = fmt.Sprintf("pool-%d", workers)
	}
	if c.Logger == nil {
		c.Logger = NewNoOpLogger()
	}
	if c.PanicHandler == nil {
		c.PanicHandler = &DefaultPanicHandler{}
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
	if c.RejectedTaskHandler == nil {
		c.RejectedTaskHandler = &DefaultRejectedTaskHandler{}
	}
	if c.WakePolicy == nil {
		c.WakePolicy = WakeOne{}
	}
	return c
}
