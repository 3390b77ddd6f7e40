package sweep

import (
	"sync"

	"github.com/kongfanmiao/hrms/internal/ports"
)

// fakeInstrument is an in-memory Electrometer whose readings are scripted
// per call. It records every source/range command for assertions.
type fakeInstrument struct {
	mu sync.Mutex

	level       float64
	output      bool
	sourceRange float64
	measRange   float64
	interlock   bool

	// readFn supplies the n-th reading (0-based). When nil, reads return
	// a constant 1e-9 A with a monotonically increasing timestamp.
	readFn    func(n int) (current, ts float64, err error)
	readCalls int

	outputChanges []bool
	rangeSets     []float64
	sourceRanges  []float64
	levels        []float64

	failSetLevel error
	failRead     error
}

func newFakeInstrument() *fakeInstrument {
	return &fakeInstrument{sourceRange: 100, measRange: 2e-3, interlock: true}
}

func (f *fakeInstrument) SetSourceLevel(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetLevel != nil {
		return f.failSetLevel
	}
	f.level = v
	f.levels = append(f.levels, v)
	return nil
}

func (f *fakeInstrument) SetSourceOutput(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.output = on
	f.outputChanges = append(f.outputChanges, on)
	return nil
}

func (f *fakeInstrument) SetSourceRange(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sourceRange = v
	f.sourceRanges = append(f.sourceRanges, v)
	return nil
}

func (f *fakeInstrument) GetSourceRange() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sourceRange, nil
}

func (f *fakeInstrument) SetMeasureRange(r float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.measRange = r
	f.rangeSets = append(f.rangeSets, r)
	return nil
}

func (f *fakeInstrument) GetMeasureRange() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.measRange, nil
}

func (f *fakeInstrument) ReadSample() (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRead != nil {
		return 0, 0, f.failRead
	}
	n := f.readCalls
	f.readCalls++
	if f.readFn != nil {
		return f.readFn(n)
	}
	return 1e-9, float64(n), nil
}

func (f *fakeInstrument) InterlockClosed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interlock, nil
}

var _ ports.Electrometer = (*fakeInstrument)(nil)

// nopObs satisfies the observability port without side effects.
type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) SetGauge(string, float64)                  {}
func (nopObs) ObserveLatency(string, float64)            {}
