package prometheus

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Swind/go-bsio/core"
)

type poolStub struct {
	stats core.PoolStats
}

func (s poolStub) Stats() core.PoolStats { return s.stats }

type priorityStub struct {
	stats core.PriorityStats
}

func (s priorityStub) Stats() core.PriorityStats { return s.stats }

func TestSnapshotPoller_CollectsPoolAndPriorityStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddPool("pool-a", poolStub{stats: core.PoolStats{
		Queued:   4,
		Active:   2,
		Workers:  8,
		Executed: 100,
		Rejected: 3,
		Running:  true,
	}})
	poller.AddPriorityContext("ctx-a", priorityStub{stats: core.PriorityStats{
		Pending: 5,
		Active:  1,
		Stopped: true,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		pending := testutil.ToFloat64(poller.priorityPending.WithLabelValues("ctx-a"))
		active := testutil.ToFloat64(poller.poolActive.WithLabelValues("pool-a"))
		return pending == 5 && active == 2
	})

	if got := testutil.ToFloat64(poller.priorityStopped.WithLabelValues("ctx-a")); got != 1 {
		t.Fatalf("priority stopped gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.poolRunning.WithLabelValues("pool-a")); got != 1 {
		t.Fatalf("pool running gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.poolExecuted.WithLabelValues("pool-a")); got != 100 {
		t.Fatalf("pool executed gauge = %v, want 100", got)
	}
}

func TestSnapshotPoller_RealPool(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, time.Hour)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	pool := core.NewStaticThreadPool(3, nil)
	poller.AddPool("", pool)
	poller.collectOnce()

	if got := testutil.ToFloat64(poller.poolWorkers.WithLabelValues("pool")); got != 3 {
		t.Fatalf("pool workers gauge = %v, want 3", got)
	}

	pool.Wait()
	poller.collectOnce()
	if got := testutil.ToFloat64(poller.poolRunning.WithLabelValues("pool")); got != 0 {
		t.Fatalf("pool running gauge = %v, want 0", got)
	}
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
