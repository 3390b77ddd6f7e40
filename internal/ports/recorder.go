package ports

import "github.com/kongfanmiao/hrms/internal/domain"

// Recorder persists sweep data. RecordResult is called once per completed
// sweep, so partially finished sessions still keep every sweep that ran to
// completion. Finalize is called once with the frozen session result;
// recorders that only care about per-sweep arrays may ignore it.
type Recorder interface {
	RecordResult(sweepIndex int, voltages, currents, times []float64) error
	Finalize(result *domain.SessionResult) error
}
