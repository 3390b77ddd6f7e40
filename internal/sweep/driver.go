package sweep

import (
	"context"
	"math"
	"time"

	"github.com/kongfanmiao/hrms/internal/domain"
	"github.com/kongfanmiao/hrms/internal/ports"
)

// Metric names published by the driver and session.
const (
	MetricSamplesTotal      = "hrms_samples_total"
	MetricRangeChangesTotal = "hrms_range_changes_total"
	MetricFlaggedTotal      = "hrms_flagged_samples_total"
	MetricSweepsTotal       = "hrms_sweeps_completed_total"
	MetricMeasureRangeAmps  = "hrms_measure_range_amps"
	MetricSourceVoltage     = "hrms_source_voltage"
	MetricStepSeconds       = "hrms_step_duration_seconds"
)

// Driver runs one directional staircase sweep, applying the range selector
// after every step. It owns no cross-sweep state; the Session recreates the
// ramp bounds and reverses them between sweeps.
type Driver struct {
	instr    ports.Electrometer
	sampler  *StepSampler
	selector *RangeSelector
	obs      ports.Observability

	pointsPerStep int
	autoRange     bool
}

func NewDriver(instr ports.Electrometer, sampler *StepSampler, selector *RangeSelector,
	pointsPerStep int, autoRange bool, obs ports.Observability) *Driver {
	if pointsPerStep < 1 {
		pointsPerStep = 1
	}
	return &Driver{
		instr:         instr,
		sampler:       sampler,
		selector:      selector,
		obs:           obs,
		pointsPerStep: pointsPerStep,
		autoRange:     autoRange,
	}
}

// Run sweeps from start toward stop by step over the half-open interval
// [start, stop): the endpoint itself is never sampled. start == stop yields
// a valid empty record.
func (d *Driver) Run(ctx context.Context, start, step, stop float64) (domain.SweepRecord, error) {
	var rec domain.SweepRecord

	if step == 0 {
		if start == stop {
			return rec, nil
		}
		return rec, &domain.ValidationError{Field: "step_voltage", Msg: "zero step would never terminate"}
	}

	if err := d.widenSourceRange(stop); err != nil {
		return rec, err
	}

	n := rampPoints(start, step, stop)
	flagged := make(map[int]struct{})

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			d.applyFlags(&rec, flagged)
			return rec, err
		}

		v := start + float64(i)*step
		stepStart := time.Now()

		readings, err := d.sampler.Step(ctx, v)
		if err != nil {
			d.applyFlags(&rec, flagged)
			return rec, err
		}
		for _, r := range readings {
			rec.Append(v, r.Current, r.Timestamp)
		}
		d.obs.IncCounter(MetricSamplesTotal, float64(len(readings)))
		d.obs.SetGauge(MetricSourceVoltage, v)
		d.obs.ObserveLatency(MetricStepSeconds, time.Since(stepStart).Seconds())

		if !d.autoRange {
			if err := d.adjustRange(readings[0], i, flagged); err != nil {
				d.applyFlags(&rec, flagged)
				return rec, err
			}
		}
	}

	d.applyFlags(&rec, flagged)
	d.dropOverflows(&rec)
	return rec, nil
}

// adjustRange reads the configured range, asks the selector for a decision,
// and commands the instrument when the decision differs.
func (d *Driver) adjustRange(first Reading, stepIdx int, flagged map[int]struct{}) error {
	current, err := d.instr.GetMeasureRange()
	if err != nil {
		return err
	}
	decision := d.selector.Decide(math.Abs(first.Current), current, false, stepIdx)
	for _, f := range decision.Flagged {
		flagged[f] = struct{}{}
	}
	if decision.Range == current {
		return nil
	}
	if err := d.instr.SetMeasureRange(decision.Range); err != nil {
		return err
	}
	d.obs.IncCounter(MetricRangeChangesTotal, 1)
	d.obs.SetGauge(MetricMeasureRangeAmps, decision.Range)
	d.obs.LogInfo("measure_range_changed",
		ports.Field{Key: "from", Value: current},
		ports.Field{Key: "to", Value: decision.Range},
		ports.Field{Key: "step", Value: stepIdx})
	return nil
}

// applyFlags expands flagged step indices to sample indices and overwrites
// them with NaN markers.
func (d *Driver) applyFlags(rec *domain.SweepRecord, flagged map[int]struct{}) {
	for stepIdx := range flagged {
		base := stepIdx * d.pointsPerStep
		for k := 0; k < d.pointsPerStep; k++ {
			rec.Invalidate(base + k)
		}
	}
	if n := len(rec.Bad); n > 0 {
		d.obs.IncCounter(MetricFlaggedTotal, float64(n))
	}
}

// dropOverflows blanks the current (only the current) of any sample beyond
// the instrument-unit overflow sentinel.
func (d *Driver) dropOverflows(rec *domain.SweepRecord) {
	for i, c := range rec.Currents {
		if math.Abs(c) > 1 {
			rec.Currents[i] = math.NaN()
		}
	}
}

// widenSourceRange raises the V-source output range when the sweep extremum
// exceeds it. The range is never narrowed at sweep start; only the operator
// does that.
func (d *Driver) widenSourceRange(stop float64) error {
	configured, err := d.instr.GetSourceRange()
	if err != nil {
		return err
	}
	if math.Abs(stop) > configured {
		return d.instr.SetSourceRange(sourceRangeFor(stop))
	}
	return nil
}

// sourceRangeFor picks the 6517A V-source decade covering the extremum.
func sourceRangeFor(extremum float64) float64 {
	if math.Abs(extremum) > 100 {
		return 1000
	}
	return 100
}

// rampPoints is ceil((stop-start)/step) for a half-open arithmetic ramp,
// computed by index so float accumulation cannot change the point count.
func rampPoints(start, step, stop float64) int {
	if step == 0 {
		return 0
	}
	n := (stop - start) / step
	if n <= 0 {
		return 0
	}
	// A hair of tolerance keeps an exact division from picking up the
	// excluded endpoint through float noise.
	return int(math.Ceil(n - 1e-9))
}
