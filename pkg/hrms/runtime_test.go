package hrms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kongfanmiao/hrms/internal/app/config"
	"github.com/kongfanmiao/hrms/internal/domain"
	"github.com/kongfanmiao/hrms/internal/ports"
)

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) SetGauge(string, float64)                  {}
func (nopObs) ObserveLatency(string, float64)            {}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Sample: domain.Sample{
			Name:          "SimR",
			Label:         1,
			ContactMethod: "probe",
		},
		Sweep: domain.SweepParameters{
			MaxVoltage:    10,
			StepVoltage:   2,
			PointsPerStep: 1,
			NumSweeps:     2,
			StartFrom:     domain.StartFromMax,
		},
		Experiment: "staircase_sweep",
		Data:       config.DataConfig{Dir: t.TempDir()},
		Journal:    config.JournalConfig{Dir: t.TempDir()},
		// empty addr keeps the metrics listener off in tests
		Metrics: config.MetricsConfig{},
	}
}

func TestRuntimeRunsSimulatedSession(t *testing.T) {
	sim := NewSimulatedElectrometer(1e10)

	rt, err := New(testConfig(t),
		WithElectrometer(sim),
		WithObservability(nopObs{}))
	require.NoError(t, err)
	defer rt.Shutdown(context.Background())

	result, err := rt.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 2, result.NumSweeps())
	assert.False(t, result.PartialSession)
	assert.NotEmpty(t, result.RunID)

	// sweep 1 descends from +10 V, sweep 2 is its mirror
	assert.Equal(t, []float64{10, 8, 6, 4, 2, 0, -2, -4, -6, -8}, result.Records[0].Voltages)
	assert.Equal(t, []float64{-10, -8, -6, -4, -2, 0, 2, 4, 6, 8}, result.Records[1].Voltages)

	// ohmic sample: I = V / 1e10
	assert.InDelta(t, 1e-9, result.Records[0].Currents[0], 1e-15)
}

func TestRuntimeExtraRecorder(t *testing.T) {
	sim := NewSimulatedElectrometer(1e10)
	extra := &countingRecorder{}

	rt, err := New(testConfig(t),
		WithElectrometer(sim),
		WithObservability(nopObs{}),
		WithRecorder(extra))
	require.NoError(t, err)
	defer rt.Shutdown(context.Background())

	_, err = rt.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, extra.sweeps)
	assert.True(t, extra.finalized)
}

func TestRuntimeCancellation(t *testing.T) {
	sim := NewSimulatedElectrometer(1e10)

	cfg := testConfig(t)
	cfg.Sweep.StepTime = time.Hour

	rt, err := New(cfg,
		WithElectrometer(sim),
		WithObservability(nopObs{}))
	require.NoError(t, err)
	defer rt.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_, err := rt.Run(ctx)
		assert.Error(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation did not interrupt the settle wait")
	}
}

func TestRuntimeRequiresConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

type countingRecorder struct {
	sweeps    int
	finalized bool
}

func (c *countingRecorder) RecordResult(int, []float64, []float64, []float64) error {
	c.sweeps++
	return nil
}

func (c *countingRecorder) Finalize(*domain.SessionResult) error {
	c.finalized = true
	return nil
}
