package hrms

import (
	"github.com/kongfanmiao/hrms/internal/adapters/journal"
	"github.com/kongfanmiao/hrms/internal/adapters/recorder"
	"github.com/kongfanmiao/hrms/internal/app/config"
	"github.com/kongfanmiao/hrms/internal/domain"
	"github.com/kongfanmiao/hrms/internal/ports"
	"github.com/kongfanmiao/hrms/internal/sweep"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// InstrumentConfig selects the transport and its connection details.
	InstrumentConfig = config.InstrumentConfig
	// DataConfig sets where CSV files and run logs land.
	DataConfig = config.DataConfig
	// PostgresConfig configures the optional database recorder.
	PostgresConfig = config.PostgresConfig
	// JournalConfig configures on-disk durability for sweep data.
	JournalConfig = config.JournalConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LogConfig configures the rotating structured log.
	LogConfig = config.LogConfig
)

// Transport names accepted by InstrumentConfig.
const (
	TransportVISA     = config.TransportVISA
	TransportPrologix = config.TransportPrologix
)

// Sample identifies the material under test.
type Sample = domain.Sample

// SweepParameters defines the staircase ramp for a session.
type SweepParameters = domain.SweepParameters

// SweepRecord holds one sweep worth of points.
type SweepRecord = domain.SweepRecord

// SessionResult is the frozen outcome of a full session.
type SessionResult = domain.SessionResult

// Starting polarity values for SweepParameters.StartFrom.
const (
	StartFromMax    = domain.StartFromMax
	StartFromNegMax = domain.StartFromNegMax
)

// Electrometer is the instrument port the sweep engine drives.
type Electrometer = ports.Electrometer

// Recorder receives completed sweeps and the finalized session.
type Recorder = ports.Recorder

// Observability combines structured logging with metrics hooks.
type Observability = ports.Observability

// Field is a structured log attribute.
type Field = ports.Field

// DeviceError wraps a failed instrument operation.
type DeviceError = ports.DeviceError

// DeviceTimeoutError marks an instrument operation that timed out.
type DeviceTimeoutError = ports.DeviceTimeoutError

// SafetyError aborts a session before any voltage is sourced.
type SafetyError = sweep.SafetyError

// RangeConfig tunes the adaptive range selection thresholds.
type RangeConfig = sweep.RangeConfig

// SweepUpdate is delivered on the channel returned by NewChannelRecorder.
type SweepUpdate = recorder.SweepUpdate

// SweepJournal is the append-only on-disk journal.
type SweepJournal = journal.SweepJournal

// JournalEntry is one journaled sweep.
type JournalEntry = journal.Entry

// JournalEntryID orders journal entries.
type JournalEntryID = journal.EntryID

// ErrChannelRecorderClosed is returned after the channel recorder's close
// function has run.
var ErrChannelRecorderClosed = recorder.ErrChannelRecorderClosed

// IsDeviceError reports whether err originated at the instrument layer.
func IsDeviceError(err error) bool { return ports.IsDeviceError(err) }

// IsDeviceTimeout reports whether err was an instrument timeout.
func IsDeviceTimeout(err error) bool { return ports.IsDeviceTimeout(err) }

// LoadConfig loads and validates YAML from disk.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultRangeConfig returns the stock range selection thresholds.
func DefaultRangeConfig() RangeConfig {
	return sweep.DefaultRangeConfig()
}

// NewChannelRecorder returns a Recorder that forwards sweeps to the returned
// channel for live consumers. Call the close function when done.
func NewChannelRecorder(buffer int) (Recorder, <-chan SweepUpdate, func()) {
	return recorder.NewChannelRecorder(buffer)
}

// OpenJournal opens (or creates) a sweep journal in dir.
func OpenJournal(dir string) (*SweepJournal, error) {
	return journal.Open(dir)
}
