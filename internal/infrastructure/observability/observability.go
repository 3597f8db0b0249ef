// Package observability assembles the tracing, logging and metrics adapters behind the
// observability.Observability port.
package observability

import (
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Options struct {
	ServiceName string
	// Logger defaults to zap.NewNop.
	Logger *zap.Logger
	// Registerer defaults to prometheus.DefaultRegisterer, which promhttp.Handler serves.
	Registerer prometheus.Registerer
	// Namespace prefixes every metric name. Empty keeps the bare names.
	Namespace string
}

// New wires the otel tracer, the zap logger and the standard Prometheus instruments.
// It registers collectors, so call it once per registerer.
func New(opts Options) observability.Observability {
	base := opts.Logger
	if base == nil {
		base = zap.NewNop()
	}
	counters, histograms := prometrics.Standard(prometrics.New(opts.Namespace, opts.Registerer))

	return &provider{
		tracer:  oteltrace.New(opts.ServiceName),
		logger:  zaplogger.New(base),
		metrics: metricSet{counters: counters, histograms: histograms},
	}
}

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

func (p *provider) Tracer() observability.Tracer   { return p.tracer }
func (p *provider) Logger() observability.Logger   { return p.logger }
func (p *provider) Metrics() observability.Metrics { return p.metrics }

// metricSet resolves keys to registered instruments. Unknown keys get no-op
// instruments so a missing registration never breaks a caller.
type metricSet struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (m metricSet) Counter(name observability.MetricKey) observability.Counter {
	if c := m.counters[name]; c != nil {
		return c
	}
	return observability.NopCounter()
}

func (m metricSet) Histogram(name observability.MetricKey) observability.Histogram {
	if h := m.histograms[name]; h != nil {
		return h
	}
	return observability.NopHistogram()
}
