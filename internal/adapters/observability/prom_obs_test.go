package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kongfanmiao/hrms/internal/ports"
	"github.com/kongfanmiao/hrms/internal/sweep"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObs(zap.NewNop(), reg)

	obs.IncCounter(sweep.MetricSamplesTotal, 5)
	if got := testutil.ToFloat64(obs.counters[sweep.MetricSamplesTotal]); got != 5 {
		t.Fatalf("expected samples counter 5, got %f", got)
	}

	obs.IncCounter(sweep.MetricRangeChangesTotal, 2)
	if got := testutil.ToFloat64(obs.counters[sweep.MetricRangeChangesTotal]); got != 2 {
		t.Fatalf("expected range change counter 2, got %f", got)
	}

	obs.SetGauge(sweep.MetricMeasureRangeAmps, 2e-10)
	if got := testutil.ToFloat64(obs.gauges[sweep.MetricMeasureRangeAmps]); got != 2e-10 {
		t.Fatalf("expected range gauge 2e-10, got %g", got)
	}

	obs.ObserveLatency(sweep.MetricStepSeconds, 0.5)
	hCollector := obs.histos[sweep.MetricStepSeconds].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected step histogram to record 1 sample, got %d", samples)
	}

	// unknown names are ignored, not registered lazily
	obs.IncCounter("hrms_unknown_total", 1)
	obs.SetGauge("hrms_unknown", 1)
	obs.ObserveLatency("hrms_unknown_seconds", 1)
}

func TestPromObsLogging(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObs(zap.NewNop(), reg)

	// must not panic with or without fields
	obs.LogInfo("sweep started", ports.Field{Key: "sweep", Value: 1})
	obs.LogError("read failed", errors.New("timeout"))
	obs.LogCritical("interlock open", errors.New("door open"), ports.Field{Key: "max_v", Value: 800.0})
}
