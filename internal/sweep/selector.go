package sweep

import "math"

// RangeConfig holds the tunables of the range-decision state machine. The
// flap band and the avoided 2 nA decade are empirical quirks of one physical
// 6517A; they are kept configurable and must not be "generalized" without
// new calibration data.
type RangeConfig struct {
	// Epsilon is the magnitude below which the log-scale floor/ceiling
	// computation would diverge; such readings clamp to MinRange.
	Epsilon float64
	// MinRange is the narrowest current range the instrument supports.
	MinRange float64
	// AvoidRange is a decade the instrument misbehaves on (the 2 nA range);
	// floor/ceiling candidates landing on it are pushed one decade away.
	AvoidRange float64
	// SettleRange is the range whose selection leaves the input filter
	// unsettled; narrowing onto it flags SettleCount steps as unreliable.
	SettleRange float64
	SettleCount int
	// OverflowCeiling bounds decade-widening while the reading is saturated.
	OverflowCeiling float64

	// FlapLow..FlapHigh is the magnitude band that makes the instrument
	// oscillate while configured at FlapRange. After FlapThreshold
	// consecutive in-band readings the selector pins SafeRange and reports
	// the affected steps for invalidation.
	FlapLow       float64
	FlapHigh      float64
	FlapRange     float64
	FlapThreshold int
	SafeRange     float64
}

// DefaultRangeConfig returns the values calibrated on the bench instrument.
func DefaultRangeConfig() RangeConfig {
	return RangeConfig{
		Epsilon:         2e-15,
		MinRange:        2e-12,
		AvoidRange:      2e-9,
		SettleRange:     2e-10,
		SettleCount:     3,
		OverflowCeiling: 2e-3,
		FlapLow:         1.4e-10,
		FlapHigh:        1.44e-10,
		FlapRange:       2e-9,
		FlapThreshold:   5,
		SafeRange:       2e-9,
	}
}

// Decision is the outcome of one range evaluation. Range is always a valid
// (possibly unchanged) range; Flagged lists step indices whose samples must
// be invalidated later. Detection is separated from invalidation: the caller
// applies the flags after the ramp finishes.
type Decision struct {
	Range   float64
	Flagged []int
}

// RangeSelector decides, from the magnitude of the latest reading and the
// currently configured range, whether the measurement range should change.
// It holds no reference to the instrument; commanding the change is the
// driver's job.
type RangeSelector struct {
	cfg RangeConfig

	flapStreak int
	flapSteps  []int
}

func NewRangeSelector(cfg RangeConfig) *RangeSelector {
	if cfg.SettleCount <= 0 {
		cfg.SettleCount = 1
	}
	if cfg.FlapThreshold <= 0 {
		cfg.FlapThreshold = 1
	}
	return &RangeSelector{cfg: cfg}
}

// Decide evaluates one reading taken at the given step index. In auto mode
// the instrument manages its own range and the selector is a no-op.
func (s *RangeSelector) Decide(magnitude, currentRange float64, auto bool, step int) Decision {
	if auto {
		return Decision{Range: currentRange}
	}

	if d, forced := s.trackFlap(magnitude, currentRange, step); forced {
		return d
	}

	floor, ceiling := s.bounds(magnitude)

	switch {
	case currentRange > ceiling:
		// Range too coarse for a reading that shrank; narrow down.
		d := Decision{Range: ceiling}
		if ceiling == s.cfg.SettleRange {
			// The instrument filter needs a few steps to settle after
			// landing on this range; those samples are unreliable.
			for i := 0; i < s.cfg.SettleCount; i++ {
				d.Flagged = append(d.Flagged, step+i)
			}
		}
		return d
	case currentRange <= floor:
		if magnitude > 0 && magnitude < 1 {
			// Reading exceeds the range but is not saturated yet.
			return Decision{Range: ceiling}
		}
		if magnitude >= 1 && currentRange <= s.cfg.OverflowCeiling {
			// Saturated; feel upward one decade at a time.
			return Decision{Range: stepDecade(currentRange, 1)}
		}
	}
	return Decision{Range: currentRange}
}

// bounds returns the floor and ceiling ranges enclosing the magnitude on the
// 2x10^n scale, with the avoided decade pushed out of the way.
func (s *RangeSelector) bounds(magnitude float64) (floor, ceiling float64) {
	if magnitude < s.cfg.Epsilon {
		return s.cfg.MinRange, s.cfg.MinRange
	}
	floor = 2 * math.Pow(10, math.Floor(math.Log10(magnitude/2)))
	ceiling = 2 * math.Pow(10, math.Ceil(math.Log10(magnitude/2)))
	if s.cfg.AvoidRange != 0 {
		if ceiling == s.cfg.AvoidRange {
			ceiling = stepDecade(ceiling, 1)
		}
		if floor == s.cfg.AvoidRange {
			floor = stepDecade(floor, -1)
		}
	}
	return floor, ceiling
}

// stepDecade moves a 2x10^n range value by d decades. Re-deriving the value
// from its exponent keeps the result on the discrete grid; a plain multiply
// or divide by 10 drifts off it (2e-6 * 10 != 2e-5 in float64).
func stepDecade(r float64, d int) float64 {
	return 2 * math.Pow(10, math.Round(math.Log10(r/2))+float64(d))
}

// trackFlap maintains the sticky-fault counter. Returns a forced decision
// once FlapThreshold consecutive readings landed in the fragile band.
func (s *RangeSelector) trackFlap(magnitude, currentRange float64, step int) (Decision, bool) {
	inBand := magnitude >= s.cfg.FlapLow && magnitude <= s.cfg.FlapHigh &&
		currentRange == s.cfg.FlapRange
	if !inBand {
		s.flapStreak = 0
		s.flapSteps = s.flapSteps[:0]
		return Decision{}, false
	}

	s.flapStreak++
	s.flapSteps = append(s.flapSteps, step)
	if s.flapStreak < s.cfg.FlapThreshold {
		return Decision{}, false
	}

	flagged := make([]int, len(s.flapSteps))
	copy(flagged, s.flapSteps)
	s.flapStreak = 0
	s.flapSteps = s.flapSteps[:0]
	return Decision{Range: s.cfg.SafeRange, Flagged: flagged}, true
}
