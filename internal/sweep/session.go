package sweep

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/kongfanmiao/hrms/internal/domain"
	"github.com/kongfanmiao/hrms/internal/ports"
)

// HazardousVoltage is the level above which the 6517A requires the test
// fixture interlock to be satisfied.
const HazardousVoltage = 36.0

// Session orchestrates a full measurement: interlock precheck, num_sweeps
// alternating-direction sweeps with optional relax pauses, per-sweep
// persistence, and the final aggregation. The source output is disabled on
// every return path.
type Session struct {
	instr      ports.Electrometer
	driver     *Driver
	sampler    *StepSampler
	recorders  []ports.Recorder
	obs        ports.Observability
	params     domain.SweepParameters
	sample     *domain.Sample
	experiment string
}

func NewSession(instr ports.Electrometer, driver *Driver, sampler *StepSampler,
	params domain.SweepParameters, sample *domain.Sample, experiment string,
	obs ports.Observability, recorders ...ports.Recorder) *Session {
	return &Session{
		instr:      instr,
		driver:     driver,
		sampler:    sampler,
		recorders:  recorders,
		obs:        obs,
		params:     params,
		sample:     sample,
		experiment: experiment,
	}
}

// Run executes the session. The returned result always holds every sweep
// that completed, even when err is non-nil; those sweeps have already been
// handed to the recorders.
func (s *Session) Run(ctx context.Context) (*domain.SessionResult, error) {
	if err := s.params.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkInterlock(); err != nil {
		return nil, err
	}

	result := &domain.SessionResult{
		RunID:      uuid.NewString(),
		Name:       s.params.MeasurementName(s.sample, s.experiment),
		Experiment: s.experiment,
		Sample:     s.sample,
		Parameters: s.params,
		StartedAt:  time.Now(),
	}

	s.obs.LogInfo("session_started",
		ports.Field{Key: "run_id", Value: result.RunID},
		ports.Field{Key: "measurement", Value: result.Name},
		ports.Field{Key: "sample", Value: s.sample.FullName()})

	// recorders that tag rows with the run id learn it up front
	for _, rec := range s.recorders {
		if t, ok := rec.(interface{ SetRunID(string) }); ok {
			t.SetRunID(result.RunID)
		}
	}

	// Never leave the source energized, not even on panic paths.
	defer func() {
		if err := s.instr.SetSourceOutput(false); err != nil {
			s.obs.LogCritical("source_output_disable_failed", err)
		}
	}()

	start, step, stop := s.params.Ramp()
	runErr := s.runSweeps(ctx, result, start, step, stop)

	result.RealSweepRate = realSweepRate(result.Records)
	result.PartialSession = runErr != nil

	if len(result.Records) > 0 {
		s.finalize(result)
	}

	if runErr != nil {
		s.obs.LogError("session_aborted", runErr,
			ports.Field{Key: "completed_sweeps", Value: len(result.Records)})
		return result, runErr
	}

	s.obs.LogInfo("session_completed",
		ports.Field{Key: "run_id", Value: result.RunID},
		ports.Field{Key: "sweeps", Value: len(result.Records)},
		ports.Field{Key: "real_sweep_rate_v_per_s", Value: result.RealSweepRate})
	return result, nil
}

func (s *Session) runSweeps(ctx context.Context, result *domain.SessionResult, start, step, stop float64) error {
	for i := 0; i < s.params.NumSweeps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.obs.LogInfo("sweep_started", ports.Field{Key: "sweep", Value: i + 1})
		rec, err := s.driver.Run(ctx, start, step, stop)
		if err != nil {
			return err
		}

		result.Records = append(result.Records, rec)
		s.obs.IncCounter(MetricSweepsTotal, 1)
		s.record(i, rec)

		if s.params.RelaxTime > 0 && i < s.params.NumSweeps-1 {
			if err := s.relax(ctx); err != nil {
				return err
			}
		}

		// Sweep back the other way.
		start, step, stop = -start, -step, -stop
	}
	return nil
}

// relax de-energizes the source and waits the configured pause.
func (s *Session) relax(ctx context.Context) error {
	if err := s.instr.SetSourceOutput(false); err != nil {
		return err
	}
	s.sampler.OutputDisabled()
	return sleepCtx(ctx, s.params.RelaxTime)
}

func (s *Session) checkInterlock() error {
	if s.params.MaxVoltage < HazardousVoltage {
		return nil
	}
	closed, err := s.instr.InterlockClosed()
	if err != nil {
		return err
	}
	if !closed {
		return &SafetyError{MaxVoltage: s.params.MaxVoltage}
	}
	return nil
}

func (s *Session) record(sweepIdx int, rec domain.SweepRecord) {
	for _, r := range s.recorders {
		if err := r.RecordResult(sweepIdx, rec.Voltages, rec.Currents, rec.Times); err != nil {
			s.obs.LogError("record_sweep_failed", err,
				ports.Field{Key: "sweep", Value: sweepIdx})
		}
	}
}

func (s *Session) finalize(result *domain.SessionResult) {
	for _, r := range s.recorders {
		if err := r.Finalize(result); err != nil {
			s.obs.LogError("finalize_recorder_failed", err)
		}
	}
}

// realSweepRate is the mean absolute slope of voltage against time across
// sweeps, a diagnostic for how fast the staircase actually ran. Invalidated
// (NaN) samples are excluded; sweeps with fewer than two valid samples do
// not contribute.
func realSweepRate(records []domain.SweepRecord) float64 {
	var sum float64
	var n int
	for _, rec := range records {
		times := make([]float64, 0, len(rec.Times))
		volts := make([]float64, 0, len(rec.Voltages))
		for i := range rec.Times {
			if math.IsNaN(rec.Times[i]) || math.IsNaN(rec.Voltages[i]) {
				continue
			}
			times = append(times, rec.Times[i])
			volts = append(volts, rec.Voltages[i])
		}
		if len(times) < 2 {
			continue
		}
		_, slope := stat.LinearRegression(times, volts, nil, false)
		if math.IsNaN(slope) || math.IsInf(slope, 0) {
			continue
		}
		sum += math.Abs(slope)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// IsCancellation reports whether err stems from cooperative cancellation
// rather than an instrument or safety fault.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
