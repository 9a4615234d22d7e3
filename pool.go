package bsio

import (
	"context"
	"sync"

	"github.com/Swind/go-bsio/core"
)

// =============================================================================
// Global Thread Pool Helper (Singleton)
// =============================================================================

var (
	globalThreadPool *StaticThreadPool
	globalMu         sync.Mutex
)

// InitGlobalThreadPool initializes the global thread pool with specified number of workers.
// It starts the pool immediately.
func InitGlobalThreadPool(workers int) {
	InitGlobalThreadPoolWithConfig(workers, nil)
}

// InitGlobalThreadPoolWithConfig is InitGlobalThreadPool with explicit handlers.
func InitGlobalThreadPoolWithConfig(workers int, cfg *PoolConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		return // Already initialized
	}

	var c PoolConfig
	if cfg != nil {
		c = *cfg
	} else {
		c = *core.DefaultPoolConfig()
	}
	if c.ID == "" {
		c.ID = "global-pool"
	}
	globalThreadPool = core.NewStaticThreadPool(workers, &c)
}

// GetGlobalThreadPool returns the global thread pool instance.
// It panics if InitGlobalThreadPool has not been called.
func GetGlobalThreadPool() *StaticThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool == nil {
		panic("GlobalThreadPool not initialized. Call InitGlobalThreadPool() first.")
	}
	return globalThreadPool
}

// ShutdownGlobalThreadPool drains the global thread pool and forgets it.
func ShutdownGlobalThreadPool() {
	globalMu.Lock()
	pool := globalThreadPool
	globalThreadPool = nil
	globalMu.Unlock()

	if pool != nil {
		pool.Wait()
	}
}

// Post submits a never-blocking fork to the global pool.
func Post(ctx context.Context, task Task) error {
	return GetGlobalThreadPool().Execute(ctx, task, BlockingNever, RelationshipFork)
}

// Go submits fn to the global pool and returns a future for its result.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (*Future[T], error) {
	return core.TwowayExecute(ctx, GetGlobalThreadPool(), fn, BlockingNever, RelationshipFork)
}
