package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kongfanmiao/hrms/internal/ports"
	"github.com/kongfanmiao/hrms/internal/sweep"
)

// PromObs implements the observability port with zap structured logging
// and Prometheus metrics for the sweep loop.
type PromObs struct {
	logger   *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

var _ ports.Observability = (*PromObs)(nil)

// NewPromObs registers the sweep metrics on reg. Pass a fresh registry
// in tests; prometheus.DefaultRegisterer otherwise.
func NewPromObs(logger *zap.Logger, reg prometheus.Registerer) *PromObs {
	samples := prometheus.NewCounter(prometheus.CounterOpts{
		Name: sweep.MetricSamplesTotal,
		Help: "Total current samples read from the electrometer.",
	})
	rangeChanges := prometheus.NewCounter(prometheus.CounterOpts{
		Name: sweep.MetricRangeChangesTotal,
		Help: "Total measurement range transitions applied.",
	})
	flagged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: sweep.MetricFlaggedTotal,
		Help: "Samples invalidated after range transitions or faults.",
	})
	sweeps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: sweep.MetricSweepsTotal,
		Help: "Completed sweeps across all sessions.",
	})
	measRange := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: sweep.MetricMeasureRangeAmps,
		Help: "Currently selected measurement range in amps.",
	})
	sourceVoltage := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: sweep.MetricSourceVoltage,
		Help: "Last programmed source voltage.",
	})
	stepSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    sweep.MetricStepSeconds,
		Help:    "Wall time per staircase step including settle and readings.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	reg.MustRegister(samples, rangeChanges, flagged, sweeps, measRange, sourceVoltage, stepSeconds)

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			sweep.MetricSamplesTotal:      samples,
			sweep.MetricRangeChangesTotal: rangeChanges,
			sweep.MetricFlaggedTotal:      flagged,
			sweep.MetricSweepsTotal:       sweeps,
		},
		gauges: map[string]prometheus.Gauge{
			sweep.MetricMeasureRangeAmps: measRange,
			sweep.MetricSourceVoltage:    sourceVoltage,
		},
		histos: map[string]prometheus.Observer{
			sweep.MetricStepSeconds: stepSeconds,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	// a critical failure still returns control to the session for cleanup
	p.logger.Error(msg, append(zapFields(fields), zap.Error(err), zap.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
