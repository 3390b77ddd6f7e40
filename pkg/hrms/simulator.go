package hrms

import (
	"sync"

	"github.com/kongfanmiao/hrms/internal/ports"
)

// SimulatedElectrometer models an ohmic sample behind an ideal source
// and ammeter. It exists for examples, dry runs, and tests; swap it in
// with WithElectrometer.
type SimulatedElectrometer struct {
	// Resistance of the simulated sample in ohms.
	Resistance float64
	// TickSeconds advances the relative timestamp per reading.
	TickSeconds float64

	mu           sync.Mutex
	level        float64
	output       bool
	sourceRange  float64
	measureRange float64
	elapsed      float64
}

var _ ports.Electrometer = (*SimulatedElectrometer)(nil)

// NewSimulatedElectrometer returns a simulator with the given sample
// resistance, ticking one second per reading.
func NewSimulatedElectrometer(resistance float64) *SimulatedElectrometer {
	return &SimulatedElectrometer{
		Resistance:   resistance,
		TickSeconds:  1,
		sourceRange:  100,
		measureRange: 2e-3,
	}
}

func (s *SimulatedElectrometer) SetSourceLevel(voltage float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = voltage
	return nil
}

func (s *SimulatedElectrometer) SetSourceOutput(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = enabled
	return nil
}

func (s *SimulatedElectrometer) SetSourceRange(voltage float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceRange = voltage
	return nil
}

func (s *SimulatedElectrometer) GetSourceRange() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceRange, nil
}

func (s *SimulatedElectrometer) SetMeasureRange(rangeValue float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.measureRange = rangeValue
	return nil
}

func (s *SimulatedElectrometer) GetMeasureRange() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.measureRange, nil
}

func (s *SimulatedElectrometer) ReadSample() (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := 0.0
	if s.output && s.Resistance > 0 {
		current = s.level / s.Resistance
	}
	ts := s.elapsed
	s.elapsed += s.TickSeconds
	return current, ts, nil
}

func (s *SimulatedElectrometer) InterlockClosed() (bool, error) { return true, nil }
