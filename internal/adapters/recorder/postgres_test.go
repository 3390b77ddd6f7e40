package recorder

import (
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kongfanmiao/hrms/internal/domain"
)

func TestPostgresRecorderRecordResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rec := NewPostgresRecorder(db, "sweep_samples", "sweep_sessions")

	expectedQuery := regexp.QuoteMeta("INSERT INTO sweep_samples (batch_id, sweep, idx, voltage, current, elapsed) VALUES ($1,$2,$3,$4,$5,$6),($7,$8,$9,$10,$11,$12) ON CONFLICT (batch_id, sweep, idx) DO NOTHING")
	mock.ExpectExec(expectedQuery).
		WithArgs(
			rec.BatchID(), 0, 0, 10.0, 1e-9, 0.0,
			rec.BatchID(), 0, 1, 8.0, nil, 1.0,
		).
		WillReturnResult(sqlmock.NewResult(1, 2))

	err = rec.RecordResult(0,
		[]float64{10, 8},
		[]float64{1e-9, math.NaN()},
		[]float64{0, 1})
	if err != nil {
		t.Fatalf("record result: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRecorderRecordResultEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rec := NewPostgresRecorder(db, "sweep_samples", "sweep_sessions")
	if err := rec.RecordResult(0, nil, nil, nil); err != nil {
		t.Fatalf("expected nil error for empty sweep, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRecorderFinalize(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rec := NewPostgresRecorder(db, "sweep_samples", "sweep_sessions")
	started := time.Now()

	result := &domain.SessionResult{
		RunID:         "run-1",
		Name:          "meas-name",
		Experiment:    "staircase_sweep",
		Sample:        &domain.Sample{Name: "BaTiO3", Label: 7, ContactMethod: "pad"},
		StartedAt:     started,
		RealSweepRate: 2.0,
	}

	expectedQuery := regexp.QuoteMeta("INSERT INTO sweep_sessions (batch_id, run_id, name, experiment, sample, started_at, real_sweep_rate, partial) VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (run_id) DO NOTHING")
	mock.ExpectExec(expectedQuery).
		WithArgs(rec.BatchID(), "run-1", "meas-name", "staircase_sweep", "BaTiO3-07", started, 2.0, false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := rec.Finalize(result); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
