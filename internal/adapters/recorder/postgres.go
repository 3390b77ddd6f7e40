package recorder

import (
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/kongfanmiao/hrms/internal/domain"
	"github.com/kongfanmiao/hrms/internal/ports"
)

// PostgresRecorder streams sweep samples into a samples table as each
// sweep completes and writes one sessions row at finalize time. Every
// sample row carries the recorder's batch id; Finalize links the batch
// to the session run id. Inserts are idempotent via the unique key, so
// a recovery replay after a crash cannot duplicate rows.
type PostgresRecorder struct {
	db            *sql.DB
	samplesTable  string
	sessionsTable string
	batchID       string
}

func NewPostgresRecorder(db *sql.DB, samplesTable, sessionsTable string) *PostgresRecorder {
	return &PostgresRecorder{
		db:            db,
		samplesTable:  samplesTable,
		sessionsTable: sessionsTable,
		batchID:       uuid.NewString(),
	}
}

var _ ports.Recorder = (*PostgresRecorder)(nil)

// BatchID identifies all sample rows written by this recorder instance.
func (p *PostgresRecorder) BatchID() string { return p.batchID }

func (p *PostgresRecorder) RecordResult(sweepIndex int, voltages, currents, times []float64) error {
	if len(voltages) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.samplesTable)
	b.WriteString(" (batch_id, sweep, idx, voltage, current, elapsed) VALUES ")

	args := make([]any, 0, len(voltages)*6)
	for i := range voltages {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5, len(args)+6))
		args = append(args,
			p.batchID,
			sweepIndex,
			i,
			nullable(voltages[i]),
			nullable(currents[i]),
			nullable(times[i]),
		)
	}

	b.WriteString(" ON CONFLICT (batch_id, sweep, idx) DO NOTHING")

	_, err := p.db.Exec(b.String(), args...)
	return err
}

func (p *PostgresRecorder) Finalize(result *domain.SessionResult) error {
	query := "INSERT INTO " + p.sessionsTable +
		" (batch_id, run_id, name, experiment, sample, started_at, real_sweep_rate, partial)" +
		" VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (run_id) DO NOTHING"
	_, err := p.db.Exec(query,
		p.batchID,
		result.RunID,
		result.Name,
		result.Experiment,
		result.Sample.FullName(),
		result.StartedAt,
		nullable(result.RealSweepRate),
		result.PartialSession,
	)
	return err
}

// nullable maps invalidated (NaN) samples to SQL NULL.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
