package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-bsio/core"
)

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// PrioritySnapshotProvider provides current priority context stats snapshots.
type PrioritySnapshotProvider interface {
	Stats() core.PriorityStats
}

// SnapshotPoller periodically exports pool and priority context Stats()
// snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	contextsMu sync.RWMutex
	contexts   map[string]PrioritySnapshotProvider

	poolQueued   *prom.GaugeVec
	poolActive   *prom.GaugeVec
	poolWorkers  *prom.GaugeVec
	poolRunning  *prom.GaugeVec
	poolExecuted *prom.GaugeVec
	poolRejected *prom.GaugeVec

	priorityPending *prom.GaugeVec
	priorityActive  *prom.GaugeVec
	priorityStopped *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{Namespace: "bsio", Name: name, Help: help}, labels)
	}
	p := &SnapshotPoller{
		interval: interval,
		pools:    make(map[string]PoolSnapshotProvider),
		contexts: make(map[string]PrioritySnapshotProvider),

		poolQueued:   gauge("pool_queued", "Tasks on the shared list per pool.", "pool"),
		poolActive:   gauge("pool_active", "Tasks executing per pool.", "pool"),
		poolWorkers:  gauge("pool_workers", "Live workers per pool.", "pool"),
		poolRunning:  gauge("pool_running", "Pool running state (1=accepting, 0=stopped or drained).", "pool"),
		poolExecuted: gauge("pool_executed", "Executed task count snapshot per pool.", "pool"),
		poolRejected: gauge("pool_rejected", "Rejected submission count snapshot per pool.", "pool"),

		priorityPending: gauge("priority_pending", "Pending tasks per priority context.", "context"),
		priorityActive:  gauge("priority_active", "Tasks executing per priority context.", "context"),
		priorityStopped: gauge("priority_stopped", "Priority context stopped state (1=stopped, 0=serving).", "context"),
	}

	for _, vec := range []**prom.GaugeVec{
		&p.poolQueued, &p.poolActive, &p.poolWorkers, &p.poolRunning, &p.poolExecuted, &p.poolRejected,
		&p.priorityPending, &p.priorityActive, &p.priorityStopped,
	} {
		registered, err := registerCollector(reg, *vec)
		if err != nil {
			return nil, err
		}
		*vec = registered
	}
	return p, nil
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// AddPriorityContext adds or replaces a priority context snapshot provider by name.
func (p *SnapshotPoller) AddPriorityContext(name string, provider PrioritySnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "context")
	p.contextsMu.Lock()
	p.contexts[name] = provider
	p.contextsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	done := p.done
	p.stateMu.Unlock()

	go p.loop(pollCtx, done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (p *SnapshotPoller) collectOnce() {
	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
		p.poolExecuted.WithLabelValues(name).Set(float64(stats.Executed))
		p.poolRejected.WithLabelValues(name).Set(float64(stats.Rejected))
	}
	p.poolsMu.RUnlock()

	p.contextsMu.RLock()
	for name, provider := range p.contexts {
		stats := provider.Stats()
		p.priorityPending.WithLabelValues(name).Set(float64(stats.Pending))
		p.priorityActive.WithLabelValues(name).Set(float64(stats.Active))
		p.priorityStopped.WithLabelValues(name).Set(boolGauge(stats.Stopped))
	}
	p.contextsMu.RUnlock()
}
