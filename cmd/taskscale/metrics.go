package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	taskscaling "github.com/Swind/go-task-scaling"
	"github.com/Swind/go-task-scaling/config"
	"github.com/Swind/go-task-scaling/core"
	obs "github.com/Swind/go-task-scaling/observability/prometheus"
)

// metricsServer exposes harness collectors plus Go runtime thread and
// goroutine counts on one HTTP endpoint.
type metricsServer struct {
	exporter *obs.MetricsExporter
	poller   *obs.SnapshotPoller
	server   *http.Server
	logger   core.Logger
}

func startMetrics(ctx context.Context, cfg config.MetricsConfig, logger core.Logger) (*metricsServer, error) {
	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := obs.NewMetricsExporter(cfg.Namespace, reg, obs.ExporterOptions{})
	if err != nil {
		return nil, err
	}
	poller, err := obs.NewSnapshotPoller(cfg.Namespace, reg, cfg.PollInterval)
	if err != nil {
		return nil, err
	}
	poller.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: cfg.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", core.F("address", cfg.Address), core.F("error", err))
		}
	}()
	logger.Info("metrics endpoint listening", core.F("address", cfg.Address), core.F("path", cfg.Path))

	return &metricsServer{exporter: exporter, poller: poller, server: server, logger: logger}, nil
}

// options wires the exporter and poller into a harness run.
func (m *metricsServer) options() []taskscaling.Option {
	if m == nil {
		return nil
	}
	return []taskscaling.Option{
		taskscaling.WithMetrics(m.exporter),
		taskscaling.WithObserver(func(e taskscaling.Executor) {
			m.poller.AddExecutor(e.Name(), e)
		}),
	}
}

// release takes the final snapshot of an executor after its run.
func (m *metricsServer) release(name string) {
	if m == nil {
		return
	}
	m.poller.RemoveExecutor(name)
}

func (m *metricsServer) Close() {
	if m == nil {
		return
	}
	m.poller.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.server.Shutdown(ctx); err != nil {
		m.logger.Warn("metrics endpoint shutdown", core.F("error", err))
	}
}
