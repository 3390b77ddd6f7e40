package sweep

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(instr *fakeInstrument, pointsPerStep int, auto bool) *Driver {
	sampler := NewStepSampler(instr, pointsPerStep, 0)
	sel := NewRangeSelector(DefaultRangeConfig())
	return NewDriver(instr, sampler, sel, pointsPerStep, auto, nopObs{})
}

func TestDriverStaircaseVoltageSequence(t *testing.T) {
	instr := newFakeInstrument()
	d := newTestDriver(instr, 1, true)

	rec, err := d.Run(context.Background(), 10, -2, -10)
	require.NoError(t, err)

	want := []float64{10, 8, 6, 4, 2, 0, -2, -4, -6, -8}
	assert.Equal(t, want, rec.Voltages, "half-open ramp excludes the endpoint")
	assert.Equal(t, 10, rec.Len())
}

func TestDriverReversedSweepNegatesVoltages(t *testing.T) {
	forward := newTestDriver(newFakeInstrument(), 1, true)
	backward := newTestDriver(newFakeInstrument(), 1, true)

	fwd, err := forward.Run(context.Background(), 10, -2, -10)
	require.NoError(t, err)
	bwd, err := backward.Run(context.Background(), -10, 2, 10)
	require.NoError(t, err)

	require.Equal(t, fwd.Len(), bwd.Len())
	for i := range fwd.Voltages {
		assert.Equal(t, -fwd.Voltages[i], bwd.Voltages[i])
	}
}

func TestDriverSampleCountWithPointsPerStep(t *testing.T) {
	instr := newFakeInstrument()
	d := newTestDriver(instr, 4, true)

	rec, err := d.Run(context.Background(), 0, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 5*4, rec.Len())
}

func TestDriverEmptySweep(t *testing.T) {
	instr := newFakeInstrument()
	d := newTestDriver(instr, 1, true)

	rec, err := d.Run(context.Background(), 3, 1, 3)
	require.NoError(t, err)
	assert.Zero(t, rec.Len(), "start == stop is a valid degenerate sweep")
}

func TestDriverZeroStepRejected(t *testing.T) {
	instr := newFakeInstrument()
	d := newTestDriver(instr, 1, true)

	_, err := d.Run(context.Background(), 0, 0, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step")
}

func TestDriverWidensSourceRangeBeforeRamp(t *testing.T) {
	instr := newFakeInstrument()
	instr.sourceRange = 100
	d := newTestDriver(instr, 1, true)

	_, err := d.Run(context.Background(), 800, -800, -800)
	require.NoError(t, err)
	assert.Equal(t, []float64{1000}, instr.sourceRanges)

	// A sweep inside the configured range never narrows it.
	instr2 := newFakeInstrument()
	instr2.sourceRange = 1000
	d2 := newTestDriver(instr2, 1, true)
	_, err = d2.Run(context.Background(), 10, -2, -10)
	require.NoError(t, err)
	assert.Empty(t, instr2.sourceRanges)
}

func TestDriverAppliesRangeDecision(t *testing.T) {
	instr := newFakeInstrument()
	instr.measRange = 2e-4
	instr.readFn = func(n int) (float64, float64, error) { return 5e-7, float64(n), nil }
	d := newTestDriver(instr, 1, false)

	_, err := d.Run(context.Background(), 0, 1, 3)
	require.NoError(t, err)
	require.NotEmpty(t, instr.rangeSets)
	assert.Equal(t, 2e-6, instr.rangeSets[0], "first step narrows 2e-4 -> 2e-6")
	assert.Len(t, instr.rangeSets, 1, "once in scale the range stays put")
}

func TestDriverFlagsSettleWindowAsNaN(t *testing.T) {
	instr := newFakeInstrument()
	instr.measRange = 2e-8
	// First reading forces a narrow onto the settle range, the rest sit
	// comfortably inside it.
	instr.readFn = func(n int) (float64, float64, error) {
		if n == 0 {
			return 7e-11, float64(n), nil
		}
		return 1.0e-10, float64(n), nil
	}
	d := newTestDriver(instr, 1, false)

	rec, err := d.Run(context.Background(), 0, 1, 6)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.True(t, math.IsNaN(rec.Currents[i]), "sample %d should be invalidated", i)
		assert.True(t, math.IsNaN(rec.Voltages[i]))
		assert.True(t, math.IsNaN(rec.Times[i]))
	}
	for i := 3; i < 6; i++ {
		assert.False(t, math.IsNaN(rec.Currents[i]), "sample %d should survive", i)
	}
	assert.ElementsMatch(t, []int{0, 1, 2}, rec.Bad)
}

func TestDriverOverflowCurrentsBecomeNaN(t *testing.T) {
	instr := newFakeInstrument()
	instr.readFn = func(n int) (float64, float64, error) {
		if n == 2 {
			return 9.9e99, float64(n), nil
		}
		return 1e-9, float64(n), nil
	}
	d := newTestDriver(instr, 1, true)

	rec, err := d.Run(context.Background(), 0, 1, 5)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(rec.Currents[2]))
	assert.False(t, math.IsNaN(rec.Voltages[2]), "overflow blanks only the current")
	assert.False(t, math.IsNaN(rec.Times[2]))
}

func TestDriverDeviceErrorKeepsPartialRecord(t *testing.T) {
	instr := newFakeInstrument()
	instr.readFn = func(n int) (float64, float64, error) {
		if n == 3 {
			return 0, 0, assert.AnError
		}
		return 1e-9, float64(n), nil
	}
	d := newTestDriver(instr, 1, true)

	rec, err := d.Run(context.Background(), 0, 1, 10)
	require.Error(t, err)
	assert.Equal(t, 3, rec.Len(), "samples taken before the fault survive")
}
