package hrms

import (
	base "github.com/kongfanmiao/hrms/pkg/hrms"
)

// Re-exported errors for convenience.
var ErrChannelRecorderClosed = base.ErrChannelRecorderClosed

// Type aliases so consumers can import github.com/kongfanmiao/hrms directly.
type (
	Config             = base.Config
	InstrumentConfig   = base.InstrumentConfig
	DataConfig         = base.DataConfig
	PostgresConfig     = base.PostgresConfig
	JournalConfig      = base.JournalConfig
	MetricsConfig      = base.MetricsConfig
	LogConfig          = base.LogConfig
	Sample             = base.Sample
	SweepParameters    = base.SweepParameters
	SweepRecord        = base.SweepRecord
	SessionResult      = base.SessionResult
	RangeConfig        = base.RangeConfig
	Electrometer       = base.Electrometer
	Recorder           = base.Recorder
	Observability      = base.Observability
	Field              = base.Field
	DeviceError        = base.DeviceError
	DeviceTimeoutError = base.DeviceTimeoutError
	SafetyError        = base.SafetyError
	SweepUpdate        = base.SweepUpdate
	SweepJournal       = base.SweepJournal
	JournalEntry       = base.JournalEntry
	JournalEntryID     = base.JournalEntryID
	Runtime            = base.Runtime
	Option             = base.Option

	SimulatedElectrometer = base.SimulatedElectrometer
)

// Transport names accepted by InstrumentConfig.
const (
	TransportVISA     = base.TransportVISA
	TransportPrologix = base.TransportPrologix
)

// Starting polarity values for SweepParameters.StartFrom.
const (
	StartFromMax    = base.StartFromMax
	StartFromNegMax = base.StartFromNegMax
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultRangeConfig() RangeConfig {
	return base.DefaultRangeConfig()
}

// Runtime and options.
func New(cfg *Config, opts ...Option) (*Runtime, error) {
	return base.New(cfg, opts...)
}

func WithElectrometer(instr Electrometer) Option {
	return base.WithElectrometer(instr)
}

func WithRecorder(r Recorder) Option {
	return base.WithRecorder(r)
}

func WithObservability(obs Observability) Option {
	return base.WithObservability(obs)
}

func WithAutoRange() Option {
	return base.WithAutoRange()
}

// Recorder adapters.
func NewChannelRecorder(buffer int) (Recorder, <-chan SweepUpdate, func()) {
	return base.NewChannelRecorder(buffer)
}

func OpenJournal(dir string) (*SweepJournal, error) {
	return base.OpenJournal(dir)
}

// Simulated instrument for development without hardware.
func NewSimulatedElectrometer(resistance float64) *SimulatedElectrometer {
	return base.NewSimulatedElectrometer(resistance)
}

// Error helpers.
func IsDeviceError(err error) bool { return base.IsDeviceError(err) }

func IsDeviceTimeout(err error) bool { return base.IsDeviceTimeout(err) }
