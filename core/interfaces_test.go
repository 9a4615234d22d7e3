package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Test PanicHandler
// =============================================================================

// TestPanicHandler is a mock panic handler for testing
type TestPanicHandler struct {
	mu            sync.Mutex
	calls         []PanicCall
	onPanicCalled func(ctx context.Context, executorName string, workerID int, panicInfo interface{}, stackTrace []byte)
}

type PanicCall struct {
	ExecutorName string
	WorkerID   int
	PanicInfo  interface{}
}

func NewTestPanicHandler() *TestPanicHandler {
	return &TestPanicHandler{
		calls: make([]PanicCall, 0),
	}
}

func (h *TestPanicHandler) HandlePanic(ctx context.Context, executorName string, workerID int, panicInfo interface{}, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, PanicCall{
		ExecutorName: executorName,
		WorkerID:   workerID,
		PanicInfo:  panicInfo,
	})

	if h.onPanicCalled != nil {
		h.onPanicCalled(ctx, executorName, workerID, panicInfo, stackTrace)
	}
}

func (h *TestPanicHandler) GetCalls() []PanicCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (h *TestPanicHandler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = make([]PanicCall, 0)
}

func (h *TestPanicHandler) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func TestDefaultPanicHandler(t *testing.T) {
	// Given: A DefaultPanicHandler
	handler := &DefaultPanicHandler{}

	// When: HandlePanic is called
	ctx := context.Background()
	handler.HandlePanic(ctx, "test-pool", 42, "test panic", []byte("stack trace"))

	// Then: No panic should occur (handler should not crash)
	// This is just a sanity test to ensure the handler works
}

// =============================================================================
// Test Metrics
// =============================================================================

// TestMetrics is a mock metrics collector for testing
type TestMetrics struct {
	mu                  sync.Mutex
	taskDurations       []TaskDurationMetric
	taskPanics          []TaskPanicMetric
	queueDepths         []QueueDepthMetric
	taskRejections      []TaskRejectionMetric
	onTaskDuration      func(executorName string, priority TaskPriority, duration time.Duration)
	onTaskPanic         func(executorName string, panicInfo interface{})
	onQueueDepth        func(executorName string, depth int)
	onTaskRejected      func(executorName string, reason string)
}

type TaskDurationMetric struct {
	ExecutorName string
	Priority   TaskPriority
	Duration   time.Duration
}

type TaskPanicMetric struct {
	ExecutorName string
	PanicInfo  interface{}
}

type QueueDepthMetric struct {
	ExecutorName string
	Depth      int
}

type TaskRejectionMetric struct {
	ExecutorName string
	Reason     string
}

func NewTestMetrics() *TestMetrics {
	return &TestMetrics{
		taskDurations:  make([]TaskDurationMetric, 0),
		taskPanics:     make([]TaskPanicMetric, 0),
		queueDepths:    make([]QueueDepthMetric, 0),
		taskRejections: make([]TaskRejectionMetric, 0),
	}
}

func (m *TestMetrics) RecordTaskDuration(executorName string, priority TaskPriority, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.taskDurations = append(m.taskDurations, TaskDurationMetric{
		ExecutorName: executorName,
		Priority:   priority,
		Duration:   duration,
	})

	if m.onTaskDuration != nil {
		m.onTaskDuration(executorName, priority, duration)
	}
}

func (m *TestMetrics) RecordTaskPanic(executorName string, panicInfo interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.taskPanics = append(m.taskPanics, TaskPanicMetric{
		ExecutorName: executorName,
		PanicInfo:  panicInfo,
	})

	if m.onTaskPanic != nil {
		m.onTaskPanic(executorName, panicInfo)
	}
}

func (m *TestMetrics) RecordQueueDepth(executorName string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queueDepths = append(m.queueDepths, QueueDepthMetric{
		ExecutorName: executorName,
		Depth:      depth,
	})

	if m.onQueueDepth != nil {
		m.onQueueDepth(executorName, depth)
	}
}

func (m *TestMetrics) RecordTaskRejected(executorName string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.taskRejections = append(m.taskRejections, TaskRejectionMetric{
		ExecutorName: executorName,
		Reason:     reason,
	})

	if m.onTaskRejected != nil {
		m.onTaskRejected(executorName, reason)
	}
}

func (m *TestMetrics) GetTaskDurations() []TaskDurationMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taskDurations
}

func (m *TestMetrics) GetTaskPanics() []TaskPanicMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taskPanics
}

func (m *TestMetrics) GetQueueDepths() []QueueDepthMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queueDepths
}

func (m *TestMetrics) GetTaskRejections() []TaskRejectionMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taskRejections
}

func (m *TestMetrics) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskDurations = make([]TaskDurationMetric, 0)
	m.taskPanics = make([]TaskPanicMetric, 0)
	m.queueDepths = make([]QueueDepthMetric, 0)
	m.taskRejections = make([]TaskRejectionMetric, 0)
}

func TestNilMetrics(t *testing.T) {
	// Given: A NilMetrics
	metrics := &NilMetrics{}

	// When: All methods are called
	metrics.RecordTaskDuration("test-pool", TaskPriorityUserVisible, time.Second)
	metrics.RecordTaskPanic("test-pool", "panic")
	metrics.RecordQueueDepth("test-pool", 10)
	metrics.RecordTaskRejected("test-pool", "shutdown")

	// Then: No panic should occur (all methods are no-ops)
	// This is just a sanity test to ensure the no-op implementation works
}

func TestTestMetrics(t *testing.T) {
	// Given: A TestMetrics
	metrics := NewTestMetrics()

	// When: Metrics are recorded
	metrics.RecordTaskDuration("pool1", TaskPriorityUserBlocking, 100*time.Millisecond)
	metrics.RecordTaskDuration("pool1", TaskPriorityBestEffort, 200*time.Millisecond)
	metrics.RecordTaskPanic("pool2", "test panic")
	metrics.RecordQueueDepth("pool1", 5)
	metrics.RecordTaskRejected("pool3", "backpressure")

	// Then: Metrics should be recorded correctly
	if len(metrics.GetTaskDurations()) != 2 {
		t.Errorf("Expected 2 task durations, got %d", len(metrics.GetTaskDurations()))
	}

	if len(metrics.GetTaskPanics()) != 1 {
		t.Errorf("Expected 1 task panic, got %d", len(metrics.GetTaskPanics()))
	}

	if len(metrics.GetQueueDepths()) != 1 {
		t.Errorf("Expected 1 queue depth, got %d", len(metrics.GetQueueDepths()))
	}

	if len(metrics.GetTaskRejections()) != 1 {
		t.Errorf("Expected 1 task rejection, got %d", len(metrics.GetTaskRejections()))
	}

	// Verify values
	durations := metrics.GetTaskDurations()
	if durations[0].ExecutorName != "pool1" || durations[0].Duration != 100*time.Millisecond {
		t.Errorf("Unexpected first duration: %+v", durations[0])
	}

	panics := metrics.GetTaskPanics()
	if panics[0].ExecutorName != "pool2" || panics[0].PanicInfo != "test panic" {
		t.Errorf("Unexpected panic: %+v", panics[0])
	}
}

// =============================================================================
// Test RejectedTaskHandler
// =============================================================================

// TestRejectedTaskHandler is a mock rejected task handler for testing
type TestRejectedTaskHandler struct {
	mu                  sync.Mutex
	rejections          []TaskRejection
	onRejectedTaskCalled func(executorName string, reason string)
}

type TaskRejection struct {
	ExecutorName string
	Reason     string
}

func NewTestRejectedTaskHandler() *TestRejectedTaskHandler {
	return &TestRejectedTaskHandler{
		rejections: make([]TaskRejection, 0),
	}
}

func (h *TestRejectedTaskHandler) HandleRejectedTask(executorName string, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rejections = append(h.rejections, TaskRejection{
		ExecutorName: executorName,
		Reason:     reason,
	})

	if h.onRejectedTaskCalled != nil {
		h.onRejectedTaskCalled(executorName, reason)
	}
}

func (h *TestRejectedTaskHandler) GetRejections() []TaskRejection {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rejections
}

func (h *TestRejectedTaskHandler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rejections = make([]TaskRejection, 0)
}

func (h *TestRejectedTaskHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rejections)
}

func TestDefaultRejectedTaskHandler(t *testing.T) {
	// Given: A DefaultRejectedTaskHandler
	handler := &DefaultRejectedTaskHandler{}

	// When: HandleRejectedTask is called
	handler.HandleRejectedTask("test-pool", "shutdown")

	// Then: No panic should occur (handler should not crash)
	// This is just a sanity test to ensure the handler works
}

func TestTestRejectedTaskHandler(t *testing.T) {
	// Given: A TestRejectedTaskHandler
	handler := NewTestRejectedTaskHandler()

	// When: Tasks are rejected
	handler.HandleRejectedTask("pool1", "shutdown")
	handler.HandleRejectedTask("pool2", "backpressure")
	handler.HandleRejectedTask("pool1", "queue full")

	// Then: Rejections should be recorded correctly
	if handler.Count() != 3 {
		t.Errorf("Expected 3 rejections, got %d", handler.Count())
	}

	rejections := handler.GetRejections()
	if rejections[0].ExecutorName != "pool1" || rejections[0].Reason != "shutdown" {
		t.Errorf("Unexpected first rejection: %+v", rejections[0])
	}

	if rejections[1].ExecutorName != "pool2" || rejections[1].Reason != "backpressure" {
		t.Errorf("Unexpected second rejection: %+v", rejections[1])
	}
}

// =============================================================================
// Test PoolConfig
// =============================================================================

func TestDefaultPoolConfig(t *testing.T) {
	// Given: Default config
	config := DefaultPoolConfig()

	// Then: All handlers should be non-nil
	if config.PanicHandler == nil {
		t.Error("PanicHandler should not be nil")
	}
	if config.Metrics == nil {
		t.Error("Metrics should not be nil")
	}
	if config.RejectedTaskHandler == nil {
		t.Error("RejectedTaskHandler should not be nil")
	}

	// Verify types
	if _, ok := config.PanicHandler.(*DefaultPanicHandler); !ok {
		t.Errorf("PanicHandler should be *DefaultPanicHandler, got %T", config.PanicHandler)
	}
	if _, ok := config.Metrics.(*NilMetrics); !ok {
		t.Errorf("Metrics should be *NilMetrics, got %T", config.Metrics)
	}
	if _, ok := config.WakePolicy.(WakeOne); !ok {
		t.Errorf("WakePolicy should be WakeOne, got %T", config.WakePolicy)
	}
}

func TestPoolConfig_WithDefaults(t *testing.T) {
	// Given: Partial config (only Metrics set)
	metrics := NewTestMetrics()
	config := &PoolConfig{Metrics: metrics}

	// When: Defaults are filled in
	filled := config.withDefaults(3)

	// Then: Metrics is kept and everything else is defaulted
	if filled.Metrics != metrics {
		t.Error("Metrics not kept")
	}
	if filled.ID != "pool-3" {
		t.Errorf("ID = %q, want pool-3", filled.ID)
	}
	if filled.PanicHandler == nil || filled.RejectedTaskHandler == nil || filled.Logger == nil || filled.WakePolicy == nil {
		t.Errorf("unset handlers not defaulted: %+v", filled)
	}

	// And: the caller's config is untouched, and nil is accepted
	if config.PanicHandler != nil {
		t.Error("withDefaults modified the caller's config")
	}
	var nilConfig *PoolConfig
	if got := nilConfig.withDefaults(1); got.Metrics == nil {
		t.Error("nil config not defaulted")
	}
}

func TestEagerWake(t *testing.T) {
	tests := []struct {
		policy WakePolicy
		depth  int
		want   bool
	}{
		{WakeOne{}, 1000, false},
		{EagerWake{Threshold: 4}, 3, false},
		{EagerWake{Threshold: 4}, 4, true},
		{EagerWake{}, 1000, false},
	}
	for _, tt := range tests {
		if got := tt.policy.WakeAll(tt.depth); got != tt.want {
			t.Errorf("%#v.WakeAll(%d) = %v, want %v", tt.policy, tt.depth, got, tt.want)
		}
	}
}

// =============================================================================
// Integration Test: StaticThreadPool with custom handlers
// =============================================================================

func TestStaticThreadPool_WithCustomHandlers(t *testing.T) {
	// Given: A pool with custom handlers
	panicHandler := NewTestPanicHandler()
	metrics := NewTestMetrics()
	rejectedHandler := NewTestRejectedTaskHandler()

	pool := NewStaticThreadPool(2, &PoolConfig{
		ID:                  "custom",
		PanicHandler:        panicHandler,
		Metrics:             metrics,
		RejectedTaskHandler: rejectedHandler,
	})

	// When: A task panics and another runs normally
	pool.Execute(context.Background(), func(_ context.Context) {
		panic("test panic")
	}, BlockingAlways, RelationshipFork)
	pool.Execute(context.Background(), func(_ context.Context) {}, BlockingAlways, RelationshipFork)

	// Then: The panic reached the handler and the pool kept working
	if panicHandler.CallCount() != 1 {
		t.Fatalf("Expected 1 panic call, got %d", panicHandler.CallCount())
	}
	call := panicHandler.GetCalls()[0]
	if call.ExecutorName != "custom" || call.PanicInfo != "test panic" {
		t.Errorf("Unexpected panic call: %+v", call)
	}
	if len(metrics.GetTaskPanics()) != 1 {
		t.Errorf("Expected 1 task panic metric, got %d", len(metrics.GetTaskPanics()))
	}
	if len(metrics.GetTaskDurations()) != 2 {
		t.Errorf("Expected 2 task durations, got %d", len(metrics.GetTaskDurations()))
	}

	// When: The pool is stopped and a task is submitted
	pool.Stop()
	err := pool.Execute(context.Background(), func(_ context.Context) {
		t.Error("Task should not be executed after Stop")
	}, BlockingNever, RelationshipFork)
	pool.Wait()

	// Then: The rejection handlers were called
	if err != ErrPoolStopped {
		t.Errorf("Execute after Stop = %v, want ErrPoolStopped", err)
	}
	if rejectedHandler.Count() != 1 {
		t.Fatalf("Expected 1 rejection, got %d", rejectedHandler.Count())
	}
	if rejectedHandler.GetRejections()[0].Reason != "stopped" {
		t.Errorf("Expected rejection reason 'stopped', got '%s'", rejectedHandler.GetRejections()[0].Reason)
	}
	if len(metrics.GetTaskRejections()) != 1 {
		t.Errorf("Expected 1 task rejection metric, got %d", len(metrics.GetTaskRejections()))
	}
}

func ExamplePoolConfig() {
	// Create config with custom handlers
	config := &PoolConfig{
		ID:                  "io",
		PanicHandler:        &DefaultPanicHandler{},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{},
		WakePolicy:          EagerWake{Threshold: 64},
	}

	// Create pool with config
	pool := NewStaticThreadPool(4, config)
	pool.Wait()
}
