package sweep

import (
	"context"
	"time"

	"github.com/kongfanmiao/hrms/internal/ports"
)

// Reading is one raw (current, timestamp) pair from the instrument.
type Reading struct {
	Current   float64
	Timestamp float64
}

// StepSampler drives one voltage step: command the source level, make sure
// the output is energized, then dwell and read PointsPerStep sub-samples.
// Device failures propagate verbatim; retrying is a transport concern.
type StepSampler struct {
	instr         ports.Electrometer
	pointsPerStep int
	stepTime      time.Duration

	outputOn bool
}

func NewStepSampler(instr ports.Electrometer, pointsPerStep int, stepTime time.Duration) *StepSampler {
	if pointsPerStep < 1 {
		pointsPerStep = 1
	}
	return &StepSampler{instr: instr, pointsPerStep: pointsPerStep, stepTime: stepTime}
}

// Step programs the target voltage and returns the ordered sub-samples taken
// there. The settle wait before each sub-sample honours ctx so a session can
// be cancelled between readings without leaving the loop mid-sleep.
func (s *StepSampler) Step(ctx context.Context, voltage float64) ([]Reading, error) {
	if err := s.instr.SetSourceLevel(voltage); err != nil {
		return nil, err
	}
	if !s.outputOn {
		if err := s.instr.SetSourceOutput(true); err != nil {
			return nil, err
		}
		s.outputOn = true
	}

	readings := make([]Reading, 0, s.pointsPerStep)
	for i := 0; i < s.pointsPerStep; i++ {
		if err := sleepCtx(ctx, s.stepTime); err != nil {
			return readings, err
		}
		current, ts, err := s.instr.ReadSample()
		if err != nil {
			return readings, err
		}
		readings = append(readings, Reading{Current: current, Timestamp: ts})
	}
	return readings, nil
}

// OutputDisabled tells the sampler the source output was switched off
// externally, e.g. during the relax pause between sweeps.
func (s *StepSampler) OutputDisabled() { s.outputOn = false }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
