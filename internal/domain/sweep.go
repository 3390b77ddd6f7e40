package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StartFrom selects which extremum the staircase ramp begins at.
const (
	StartFromMax    = "max"
	StartFromNegMax = "-max"
)

// SweepParameters holds one session's staircase configuration. It is created
// once per session and never mutated afterwards.
type SweepParameters struct {
	MaxVoltage    float64       `yaml:"max_voltage"`
	StepVoltage   float64       `yaml:"step_voltage"`
	PointsPerStep int           `yaml:"points_per_step"`
	StepTime      time.Duration `yaml:"step_time"`
	NumSweeps     int           `yaml:"num_sweeps"`
	StartFrom     string        `yaml:"start_from"`
	RelaxTime     time.Duration `yaml:"relax_time"`
}

// UnmarshalYAML decodes the sweep block with human-friendly duration
// strings ("1s", "10m") for step_time and relax_time.
func (p *SweepParameters) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		MaxVoltage    float64 `yaml:"max_voltage"`
		StepVoltage   float64 `yaml:"step_voltage"`
		PointsPerStep int     `yaml:"points_per_step"`
		StepTime      string  `yaml:"step_time"`
		NumSweeps     int     `yaml:"num_sweeps"`
		StartFrom     string  `yaml:"start_from"`
		RelaxTime     string  `yaml:"relax_time"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	stepTime, err := parseDuration("step_time", raw.StepTime)
	if err != nil {
		return err
	}
	relaxTime, err := parseDuration("relax_time", raw.RelaxTime)
	if err != nil {
		return err
	}

	*p = SweepParameters{
		MaxVoltage:    raw.MaxVoltage,
		StepVoltage:   raw.StepVoltage,
		PointsPerStep: raw.PointsPerStep,
		StepTime:      stepTime,
		NumSweeps:     raw.NumSweeps,
		StartFrom:     raw.StartFrom,
		RelaxTime:     relaxTime,
	}
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}

// ValidationError reports an out-of-bound sweep parameter. It is raised at
// configuration time, before any hardware interaction, and never retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid sweep parameter %s: %s", e.Field, e.Msg)
}

// Validate enforces the staircase invariants:
// 0 <= step_voltage <= max_voltage <= 1000, num_sweeps >= 1.
func (p SweepParameters) Validate() error {
	if p.MaxVoltage < 0 || p.MaxVoltage > 1000 {
		return &ValidationError{Field: "max_voltage", Msg: fmt.Sprintf("%g V is outside [0, 1000]", p.MaxVoltage)}
	}
	if p.StepVoltage < 0 || p.StepVoltage > p.MaxVoltage {
		return &ValidationError{Field: "step_voltage", Msg: fmt.Sprintf("%g V is outside [0, max_voltage=%g]", p.StepVoltage, p.MaxVoltage)}
	}
	if p.StepVoltage == 0 && p.MaxVoltage != 0 {
		return &ValidationError{Field: "step_voltage", Msg: "zero step would never terminate"}
	}
	if p.PointsPerStep < 1 {
		return &ValidationError{Field: "points_per_step", Msg: "must be at least 1"}
	}
	if p.StepTime < 0 {
		return &ValidationError{Field: "step_time", Msg: "must not be negative"}
	}
	if p.NumSweeps < 1 {
		return &ValidationError{Field: "num_sweeps", Msg: "must be at least 1"}
	}
	if p.RelaxTime < 0 {
		return &ValidationError{Field: "relax_time", Msg: "must not be negative"}
	}
	switch p.StartFrom {
	case StartFromMax, StartFromNegMax:
	default:
		return &ValidationError{Field: "start_from", Msg: fmt.Sprintf("%q is not one of %q, %q", p.StartFrom, StartFromMax, StartFromNegMax)}
	}
	return nil
}

// Ramp returns the initial start, step, and stop voltages for the first sweep.
func (p SweepParameters) Ramp() (start, step, stop float64) {
	if p.StartFrom == StartFromNegMax {
		return -p.MaxVoltage, p.StepVoltage, p.MaxVoltage
	}
	return p.MaxVoltage, -p.StepVoltage, -p.MaxVoltage
}

// NominalSweepRate is step voltage over step time, in V/s.
func (p SweepParameters) NominalSweepRate() float64 {
	if p.StepTime <= 0 {
		return 0
	}
	return p.StepVoltage / p.StepTime.Seconds()
}

// MeasurementName derives the canonical measurement name from the sample and
// experiment metadata, e.g.
// "BaTiO3-07__staircase_sweep__pad__2V-s__800V__2 sweeps__start from max".
func (p SweepParameters) MeasurementName(sample *Sample, experiment string) string {
	rate := p.NominalSweepRate()
	var rateStr string
	if rate == math.Trunc(rate) {
		rateStr = fmt.Sprintf("%dV-s", int(rate))
	} else {
		rateStr = strings.ReplaceAll(fmt.Sprintf("%gV-s", rate), ".", "-")
	}

	parts := []string{
		sample.FullName(),
		experiment,
		sample.ContactMethod,
		rateStr,
		fmt.Sprintf("%gV", p.MaxVoltage),
		fmt.Sprintf("%d sweeps", p.NumSweeps),
		"start from " + p.StartFrom,
	}
	if p.RelaxTime != 0 {
		parts = append(parts, fmt.Sprintf("relax %dmins", int(p.RelaxTime.Minutes())))
	}
	return strings.Trim(strings.Join(parts, "__"), "_")
}

// SweepRecord is one sweep's ordered (voltage, current, timestamp) triples
// plus the indices invalidated after range transitions. It is created empty
// at sweep start, appended to during the sweep, and frozen into a
// SessionResult at sweep end.
type SweepRecord struct {
	Voltages []float64
	Currents []float64
	Times    []float64
	Bad      []int
}

// Len is the number of samples in the record.
func (r *SweepRecord) Len() int { return len(r.Currents) }

// Append adds one sample in traversal order.
func (r *SweepRecord) Append(voltage, current, timestamp float64) {
	r.Voltages = append(r.Voltages, voltage)
	r.Currents = append(r.Currents, current)
	r.Times = append(r.Times, timestamp)
}

// Invalidate overwrites the sample at idx with NaN markers and remembers the
// index. Out-of-range indices are ignored; a ramp may end inside the settle
// window of a late range change.
func (r *SweepRecord) Invalidate(idx int) {
	if idx < 0 || idx >= len(r.Currents) {
		return
	}
	r.Voltages[idx] = math.NaN()
	r.Currents[idx] = math.NaN()
	r.Times[idx] = math.NaN()
	r.Bad = append(r.Bad, idx)
}

// SessionResult aggregates all sweeps of a session, keyed by sweep index.
// Immutable once the session completes.
type SessionResult struct {
	RunID          string
	Name           string
	Experiment     string
	Sample         *Sample
	Parameters     SweepParameters
	Records        []SweepRecord
	StartedAt      time.Time
	RealSweepRate  float64
	PartialSession bool // true when the session was cut short but earlier sweeps survived
}

// NumSweeps is the number of completed sweeps in the result.
func (sr *SessionResult) NumSweeps() int { return len(sr.Records) }
