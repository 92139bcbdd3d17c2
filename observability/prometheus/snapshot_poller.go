package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-task-scaling/core"
)

// ExecutorSnapshotProvider provides current executor stats snapshots.
type ExecutorSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports executor Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	executorsMu sync.RWMutex
	executors   map[string]ExecutorSnapshotProvider

	executorQueued  *prom.GaugeVec
	executorActive  *prom.GaugeVec
	executorPeak    *prom.GaugeVec
	executorWorkers *prom.GaugeVec
	executorRunning *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	labels := []string{"executor", "kind"}
	executorQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "executor_queued",
		Help:      "Queued tasks per executor.",
	}, labels)
	executorActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "executor_active",
		Help:      "Running tasks per executor.",
	}, labels)
	executorPeak := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "executor_peak_active",
		Help:      "Highest number of tasks running at once per executor.",
	}, labels)
	executorWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "executor_workers",
		Help:      "Worker count or thread budget per executor (0 = unbounded).",
	}, labels)
	executorRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "executor_running",
		Help:      "Executor running state (1=running, 0=stopped).",
	}, labels)

	var err error
	if executorQueued, err = registerCollector(reg, executorQueued); err != nil {
		return nil, err
	}
	if executorActive, err = registerCollector(reg, executorActive); err != nil {
		return nil, err
	}
	if executorPeak, err = registerCollector(reg, executorPeak); err != nil {
		return nil, err
	}
	if executorWorkers, err = registerCollector(reg, executorWorkers); err != nil {
		return nil, err
	}
	if executorRunning, err = registerCollector(reg, executorRunning); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:        interval,
		executors:       make(map[string]ExecutorSnapshotProvider),
		executorQueued:  executorQueued,
		executorActive:  executorActive,
		executorPeak:    executorPeak,
		executorWorkers: executorWorkers,
		executorRunning: executorRunning,
	}, nil
}

// AddExecutor adds or replaces an executor snapshot provider by name.
func (p *SnapshotPoller) AddExecutor(name string, provider ExecutorSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "executor")
	p.executorsMu.Lock()
	p.executors[name] = provider
	p.executorsMu.Unlock()
}

// RemoveExecutor takes a final snapshot of name and stops polling it.
func (p *SnapshotPoller) RemoveExecutor(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "executor")
	p.executorsMu.Lock()
	if provider, ok := p.executors[name]; ok {
		p.export(name, provider.Stats())
		delete(p.executors, name)
	}
	p.executorsMu.Unlock()
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
	p.stateMu.Unlock()

	go p.loop(pollCtx)
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

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

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

func (p *SnapshotPoller) collectOnce() {
	p.executorsMu.RLock()
	for name, provider := range p.executors {
		p.export(name, provider.Stats())
	}
	p.executorsMu.RUnlock()
}

func (p *SnapshotPoller) export(name string, stats core.PoolStats) {
	kind := normalizeLabel(stats.Kind, "unknown")
	p.executorQueued.WithLabelValues(name, kind).Set(float64(stats.Queued))
	p.executorActive.WithLabelValues(name, kind).Set(float64(stats.Active))
	p.executorPeak.WithLabelValues(name, kind).Set(float64(stats.Peak))
	p.executorWorkers.WithLabelValues(name, kind).Set(float64(stats.Workers))
	if stats.Running {
		p.executorRunning.WithLabelValues(name, kind).Set(1)
	} else {
		p.executorRunning.WithLabelValues(name, kind).Set(0)
	}
}
