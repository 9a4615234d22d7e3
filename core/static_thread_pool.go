package core

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// StaticThreadPool owns a fixed set of worker goroutines pulling from one
// mutex-guarded shared task list.
//
// Submissions made from inside one of its workers take fast paths that avoid
// the mutex: blocking and possibly-blocking work runs inline, and
// continuations go to the worker's private FIFO queue, which is spliced onto
// the shared list after the current task returns.
type StaticThreadPool struct {
	id          string
	workers     int
	cfg         PoolConfig
	submissions SubmissionRecorder

	mu   sync.Mutex
	cv   *sync.Cond
	list taskList

	// stopped forces workers out even with pending work.
	stopped bool
	// running starts at 1 and is decremented once by Wait. Workers that see
	// running == 0 drain the list before leaving.
	running int
	// live counts workers that have not left their loop yet.
	live     int
	attached int
	closed   bool

	stoppedFlag atomic.Bool
	stopCh      chan struct{}
	stopOnce    sync.Once
	waitOnce    sync.Once
	wg          sync.WaitGroup

	active   atomic.Int32
	executed atomic.Int64
	rejected atomic.Int64
}

// threadPrivateData is the scratch state of one worker. It is reachable only
// through the ctx handed to tasks running on that worker.
type threadPrivateData struct {
	owner  *StaticThreadPool
	id     int
	queue  privateQueue
	locals map[any]any
}

// NewStaticThreadPool creates a pool and starts its workers immediately.
// The worker count is fixed for the pool's lifetime.
func NewStaticThreadPool(workers int, cfg *PoolConfig) *StaticThreadPool {
	if workers < 0 {
		workers = 0
	}
	p := &StaticThreadPool{
		workers: workers,
		cfg:     cfg.withDefaults(workers),
		running: 1,
		live:    workers,
		stopCh:  make(chan struct{}),
	}
	p.id = p.cfg.ID
	p.cv = sync.NewCond(&p.mu)
	if rec, ok := p.cfg.Metrics.(SubmissionRecorder); ok {
		p.submissions = rec
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer p.wg.Done()
			p.workerLoop(context.Background(), id)
		}(i)
	}

	p.cfg.Logger.Info("thread pool started", F("pool", p.id), F("workers", workers))
	return p
}

// ID returns the ID of the thread pool
func (p *StaticThreadPool) ID() string {
	return p.id
}

// WorkerCount returns the number of workers started by the constructor
func (p *StaticThreadPool) WorkerCount() int {
	return p.workers
}

// Executor returns the default executor: one-way, possibly blocking, fork.
func (p *StaticThreadPool) Executor() Executor {
	return Executor{pool: p, blocking: BlockingPossibly, relationship: RelationshipFork}
}

// Execute submits task with the given blocking and relationship semantics.
//
// From a worker of this pool: always- and possibly-blocking work runs inline;
// never-blocking continuations go to the worker's private queue; never-blocking
// forks run inline unless QueueForkOnWorker is set. Otherwise the task is
// pushed onto the shared list, and always-blocking callers wait for it.
//
// Tasks in one private queue run in submission order. The shared list hands
// out directly submitted tasks in no guaranteed order.
func (p *StaticThreadPool) Execute(ctx context.Context, task Task, blocking Blocking, relationship Relationship) error {
	return p.execute(ctx, &taskNode{task: task}, blocking, relationship)
}

func (p *StaticThreadPool) execute(ctx context.Context, node *taskNode, blocking Blocking, relationship Relationship) error {
	w := workerFromContext(ctx)
	onWorker := w != nil && w.owner == p

	if p.stoppedFlag.Load() {
		return p.reject(ErrPoolStopped, "stopped")
	}

	switch blocking {
	case BlockingAlways:
		if onWorker {
			p.recordSubmission(blocking, relationship, DispatchInline)
			p.run(ctx, w.id, node.task)
			return nil
		}
		return p.executeAndWait(ctx, node, relationship)

	case BlockingPossibly:
		if onWorker {
			p.recordSubmission(blocking, relationship, DispatchInline)
			p.run(ctx, w.id, node.task)
			return nil
		}

	case BlockingNever:
		if onWorker {
			if relationship == RelationshipContinuation {
				// deferred until the current task returns
				p.recordSubmission(blocking, relationship, DispatchPrivate)
				w.queue.push(node)
				return nil
			}
			if !p.cfg.QueueForkOnWorker {
				p.recordSubmission(blocking, relationship, DispatchInline)
				p.run(ctx, w.id, node.task)
				return nil
			}
		}
	}

	if err := p.pushShared(node, onWorker); err != nil {
		return err
	}
	p.recordSubmission(blocking, relationship, DispatchShared)
	return nil
}

func (p *StaticThreadPool) recordSubmission(blocking Blocking, relationship Relationship, path DispatchPath) {
	if p.submissions != nil {
		p.submissions.RecordSubmission(p.id, blocking, relationship, path)
	}
}

// executeAndWait queues node and blocks until it has run or was abandoned
// without running. A task already started when the pool stops is waited for.
// It never spins, so it is safe against a pool whose workers are all busy.
func (p *StaticThreadPool) executeAndWait(ctx context.Context, node *taskNode, relationship Relationship) error {
	done := make(chan struct{})
	abandoned := make(chan struct{})
	task, abandon := node.task, node.abandon
	wrapped := &taskNode{
		task: func(ctx context.Context) {
			defer close(done)
			task(ctx)
		},
		abandon: func() {
			if abandon != nil {
				abandon()
			}
			close(abandoned)
		},
	}
	if err := p.pushShared(wrapped, false); err != nil {
		return err
	}
	p.recordSubmission(BlockingAlways, relationship, DispatchShared)

	select {
	case <-done:
		return nil
	case <-abandoned:
		if p.stoppedFlag.Load() {
			return ErrPoolStopped
		}
		return ErrPoolClosed
	}
}

func (p *StaticThreadPool) pushShared(node *taskNode, onWorker bool) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return p.reject(ErrPoolStopped, "stopped")
	}
	if p.closed || (!onWorker && p.running == 0 && p.live == 0) {
		p.mu.Unlock()
		return p.reject(ErrPoolClosed, "closed")
	}

	wakeAll := p.cfg.WakePolicy.WakeAll(p.list.len())
	p.list.push(node)
	depth := p.list.len()
	p.mu.Unlock()

	p.cfg.Metrics.RecordQueueDepth(p.id, depth)

	// Too many pending nodes: let every idle worker compete for them
	if wakeAll {
		p.cv.Broadcast()
	} else {
		p.cv.Signal()
	}
	return nil
}

func (p *StaticThreadPool) reject(err error, reason string) error {
	p.rejected.Add(1)
	p.cfg.RejectedTaskHandler.HandleRejectedTask(p.id, reason)
	p.cfg.Metrics.RecordTaskRejected(p.id, reason)
	p.cfg.Logger.Debug("submission rejected", F("pool", p.id), F("reason", reason))
	return err
}

// Attach turns the calling goroutine into an extra worker until the pool is
// stopped or drained by Wait. Its tasks see ctx as their parent context.
// Once Wait has started the call returns at once; Wait joins every goroutine
// attached before it.
func (p *StaticThreadPool) Attach(ctx context.Context) {
	p.mu.Lock()
	if p.stopped || p.closed || p.running == 0 {
		p.mu.Unlock()
		return
	}
	id := p.workers + p.attached
	p.attached++
	p.live++
	// counted under mu, before Wait can release running and join
	p.wg.Add(1)
	p.mu.Unlock()

	defer p.wg.Done()
	p.workerLoop(ctx, id)
}

// workerLoop cycles BLOCKED_WAITING -> DEQUEUE -> EXECUTE -> FLUSH_PRIVATE.
// p.live must already count this worker.
func (p *StaticThreadPool) workerLoop(parent context.Context, id int) {
	data := &threadPrivateData{owner: p, id: id}
	ctx := context.WithValue(parent, workerKey, data)

	p.mu.Lock()
	for {
		for !p.stopped && p.running != 0 && p.list.empty() {
			p.cv.Wait()
		}
		if p.stopped {
			break
		}
		// Everyone is waiting but tasks are still queued: finish them first
		if p.running == 0 && p.list.empty() {
			break
		}

		node := p.list.consumeOne()
		depth := p.list.len()
		p.mu.Unlock()

		p.cfg.Metrics.RecordQueueDepth(p.id, depth)
		p.run(ctx, id, node.task)
		node.task = nil

		p.mu.Lock()
		data.queue.detachInto(&p.list)
	}

	var abandoned *taskNode
	if p.stopped {
		abandoned = p.takeAllLocked()
	}
	p.live--
	p.mu.Unlock()

	p.recordAbandoned(abandoned)
	abandonChain(abandoned)
	for _, v := range data.locals {
		if c, ok := v.(interface{ Close() }); ok {
			c.Close()
		}
	}
	p.cfg.Logger.Debug("worker exited", F("pool", p.id), F("worker", id))
}

// run invokes task, recovering and reporting a panic.
func (p *StaticThreadPool) run(ctx context.Context, workerID int, task Task) {
	p.active.Add(1)
	start := time.Now()
	defer func() {
		p.active.Add(-1)
		p.executed.Add(1)
		p.cfg.Metrics.RecordTaskDuration(p.id, TaskPriorityUserVisible, time.Since(start))
		if r := recover(); r != nil {
			p.cfg.Metrics.RecordTaskPanic(p.id, r)
			p.cfg.PanicHandler.HandlePanic(ctx, p.id, workerID, r, debug.Stack())
		}
	}()
	task(ctx)
}

// takeAllLocked detaches the whole shared list.
func (p *StaticThreadPool) takeAllLocked() *taskNode {
	first := p.list.next
	p.list.clear()
	return first
}

func (p *StaticThreadPool) recordAbandoned(first *taskNode) {
	if p.submissions == nil || first == nil {
		return
	}
	n := 0
	for node := first; node != nil; node = node.next {
		n++
	}
	p.submissions.RecordAbandoned(p.id, n)
}

// abandonChain drops queued nodes, breaking any promise attached to them.
func abandonChain(node *taskNode) {
	for node != nil {
		next := node.next
		if node.abandon != nil {
			node.abandon()
		}
		node.task, node.next, node.abandon = nil, nil, nil
		node = next
	}
}

// Stop forces every worker out. Queued tasks that have not started are
// abandoned, and submissions made from now on are rejected.
func (p *StaticThreadPool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.stoppedFlag.Store(true)
	pending := p.list.len()
	abandoned := p.takeAllLocked()
	p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.cv.Broadcast()

	p.recordAbandoned(abandoned)
	abandonChain(abandoned)
	p.cfg.Logger.Info("thread pool stopped", F("pool", p.id), F("abandoned", pending))
}

// Wait drains the pool: it releases the initial running count, lets workers
// finish every queued task, and joins them, attached goroutines included.
// Tasks left over because no worker was ever there to run them are
// abandoned, breaking their promises. Afterwards the pool rejects
// submissions. Only the first call does work; later calls block until it has
// finished. Wait must not be called from one of the pool's own workers.
func (p *StaticThreadPool) Wait() {
	p.waitOnce.Do(func() {
		p.mu.Lock()
		p.running--
		p.mu.Unlock()
		p.cv.Broadcast()

		p.wg.Wait()

		p.mu.Lock()
		p.closed = true
		leftover := p.list.len()
		abandoned := p.takeAllLocked()
		p.mu.Unlock()

		p.recordAbandoned(abandoned)
		abandonChain(abandoned)
		if leftover > 0 {
			p.cfg.Logger.Warn("thread pool drained without workers", F("pool", p.id), F("abandoned", leftover))
		}
		p.cfg.Logger.Info("thread pool drained", F("pool", p.id), F("executed", p.executed.Load()))
	})
}

// Close is Stop followed by Wait.
func (p *StaticThreadPool) Close() {
	p.Stop()
	p.Wait()
}

// IsRunning reports whether the pool still accepts outside submissions.
func (p *StaticThreadPool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.stopped && !p.closed && p.running > 0
}

func (p *StaticThreadPool) QueuedTaskCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.list.len()
}

func (p *StaticThreadPool) ActiveTaskCount() int {
	return int(p.active.Load())
}

// Stats returns current observability data for this pool.
func (p *StaticThreadPool) Stats() PoolStats {
	p.mu.Lock()
	stats := PoolStats{
		ID:      p.id,
		Workers: p.live,
		Queued:  p.list.len(),
		Running: !p.stopped && !p.closed && p.running > 0,
		Stopped: p.stopped,
	}
	p.mu.Unlock()
	stats.Active = int(p.active.Load())
	stats.Executed = p.executed.Load()
	stats.Rejected = p.rejected.Load()
	return stats
}
