package bsio

import (
	"context"
	"sync/atomic"
	"testing"
)

func TestGlobalThreadPool_Lifecycle(t *testing.T) {
	// Given an initialized global pool
	InitGlobalThreadPool(2)

	// When initializing again, the first pool is kept
	first := GetGlobalThreadPool()
	InitGlobalThreadPool(8)
	if GetGlobalThreadPool() != first {
		t.Fatal("second InitGlobalThreadPool replaced the pool")
	}
	if first.ID() != "global-pool" {
		t.Errorf("expected ID 'global-pool', got %s", first.ID())
	}
	if first.WorkerCount() != 2 {
		t.Errorf("expected 2 workers, got %d", first.WorkerCount())
	}

	// Then posted work is drained by shutdown
	var counter atomic.Int32
	for i := 0; i < 100; i++ {
		if err := Post(context.Background(), func(ctx context.Context) {
			counter.Add(1)
		}); err != nil {
			t.Fatalf("Post failed: %v", err)
		}
	}
	ShutdownGlobalThreadPool()

	if got := counter.Load(); got != 100 {
		t.Errorf("expected 100 tasks executed, got %d", got)
	}
	if first.IsRunning() {
		t.Error("pool should not be running after shutdown")
	}
}

func TestInitGlobalThreadPoolWithConfig_KeepsCallerConfig(t *testing.T) {
	ShutdownGlobalThreadPool()
	defer ShutdownGlobalThreadPool()

	// Given a config without an ID
	cfg := &PoolConfig{QueueForkOnWorker: true}

	// When it seeds the global pool
	InitGlobalThreadPoolWithConfig(1, cfg)

	// Then the pool gets the default ID and the caller's struct is untouched
	if got := GetGlobalThreadPool().ID(); got != "global-pool" {
		t.Errorf("expected ID 'global-pool', got %s", got)
	}
	if cfg.ID != "" {
		t.Errorf("caller config ID was changed to %q", cfg.ID)
	}
}

func TestGetGlobalThreadPool_PanicsUninitialized(t *testing.T) {
	ShutdownGlobalThreadPool()

	defer func() {
		if recover() == nil {
			t.Error("expected panic from uninitialized global pool")
		}
	}()
	GetGlobalThreadPool()
}

func TestGo_ReturnsResult(t *testing.T) {
	InitGlobalThreadPool(1)
	defer ShutdownGlobalThreadPool()

	f, err := Go(context.Background(), func(ctx context.Context) (string, error) {
		if CurrentPool(ctx) == nil {
			return "", nil
		}
		return "on worker", nil
	})
	if err != nil {
		t.Fatalf("Go failed: %v", err)
	}
	v, err := f.Get()
	if err != nil || v != "on worker" {
		t.Errorf("expected 'on worker', got %q (err %v)", v, err)
	}
}
