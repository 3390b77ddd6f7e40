package domain

import "fmt"

// Sample describes the physical specimen under test.
type Sample struct {
	Name          string  `yaml:"name"`
	Label         int     `yaml:"label"`
	ContactMethod string  `yaml:"contact_method"`
	ProbeDistance float64 `yaml:"probe_distance_mm"`

	// FilePath is assigned once during session setup and points at the
	// directory holding everything written for this sample.
	FilePath string `yaml:"-"`
}

// FullName is the sample name plus its zero-padded label, e.g. "BaTiO3-07".
func (s *Sample) FullName() string {
	return fmt.Sprintf("%s-%02d", s.Name, s.Label)
}

func (s *Sample) String() string {
	return fmt.Sprintf(
		"Compound: %s\nLabel: %d\nSample name: %s\nContact method: %s\nProbe distance: %g mm\n",
		s.Name, s.Label, s.FullName(), s.ContactMethod, s.ProbeDistance)
}
