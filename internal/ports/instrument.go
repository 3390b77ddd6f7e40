package ports

// Electrometer is the collaborator interface the sweep core drives. The
// concrete implementation (VISA or Prologix-GPIB transport to a Keithley
// 6517A) lives in internal/adapters.
type Electrometer interface {
	// SetSourceLevel programs the V-source to the given level in volts.
	SetSourceLevel(voltage float64) error
	// SetSourceOutput energizes (true) or de-energizes (false) the source.
	SetSourceOutput(enabled bool) error
	// SetSourceRange selects the V-source output range in volts.
	SetSourceRange(voltage float64) error
	GetSourceRange() (float64, error)

	// SetMeasureRange selects the manual current-measurement range in amps.
	SetMeasureRange(rangeValue float64) error
	GetMeasureRange() (float64, error)

	// ReadSample returns the latest current reading in amps and its
	// relative timestamp in seconds.
	ReadSample() (current, timestamp float64, err error)

	// InterlockClosed reports the safety-door sensor state.
	InterlockClosed() (bool, error)
}
