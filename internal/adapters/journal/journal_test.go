package journal

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kongfanmiao/hrms/internal/domain"
)

func TestJournalAppendRecover(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()

	j.SetRunID("run-1")
	if err := j.RecordResult(0, []float64{10, 8}, []float64{1e-9, math.NaN()}, []float64{0, 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.RecordResult(1, []float64{-10}, []float64{-1e-9}, []float64{2}); err != nil {
		t.Fatalf("record: %v", err)
	}

	var entries []*Entry
	err = j.Recover(func(id EntryID, e *Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("recovered %d entries, want 2", len(entries))
	}
	if entries[0].RunID != "run-1" || entries[0].SweepIndex != 0 {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	currents := Floats(entries[0].Currents)
	if currents[0] != 1e-9 || !math.IsNaN(currents[1]) {
		t.Fatalf("NaN did not round-trip: %v", currents)
	}
}

func TestJournalFinalizeCommits(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}

	if err := j.RecordResult(0, []float64{10}, []float64{1e-9}, []float64{0}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Finalize(&domain.SessionResult{RunID: "run-1"}); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	j.Close()

	// a reopened journal must not replay committed sweeps
	j2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer j2.Close()

	count := 0
	err = j2.Recover(func(id EntryID, e *Entry) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if count != 0 {
		t.Fatalf("replayed %d committed entries, want 0", count)
	}
}

func TestJournalUncommittedSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if err := j.RecordResult(0, []float64{10}, []float64{1e-9}, []float64{0}); err != nil {
		t.Fatalf("record: %v", err)
	}
	// no Finalize: the session faulted
	j.Close()

	j2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer j2.Close()

	count := 0
	err = j2.Recover(func(id EntryID, e *Entry) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if count != 1 {
		t.Fatalf("recovered %d entries, want 1", count)
	}
}

func TestJournalTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if err := j.RecordResult(0, []float64{10}, []float64{1e-9}, []float64{0}); err != nil {
		t.Fatalf("record: %v", err)
	}
	j.Close()

	// simulate a crash mid-write by chopping bytes off the tail
	path := filepath.Join(dir, "sweeps.journal")
	stat, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, stat.Size()-5); err != nil {
		t.Fatal(err)
	}

	j2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen after truncation: %v", err)
	}
	defer j2.Close()

	count := 0
	err = j2.Recover(func(id EntryID, e *Entry) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("recover after truncation: %v", err)
	}
	if count != 0 {
		t.Fatalf("recovered %d entries from torn journal, want 0", count)
	}
}

func TestJournalReplayIncludesCommitted(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()

	j.SetRunID("run-1")
	if err := j.RecordResult(0, []float64{10}, []float64{1e-9}, []float64{0}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Finalize(&domain.SessionResult{RunID: "run-1"}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	j.SetRunID("run-2")
	if err := j.RecordResult(0, []float64{-10}, []float64{-1e-9}, []float64{0}); err != nil {
		t.Fatalf("record: %v", err)
	}

	var runs []string
	err = j.Replay(func(id EntryID, e *Entry) error {
		runs = append(runs, e.RunID)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(runs) != 2 || runs[0] != "run-1" || runs[1] != "run-2" {
		t.Fatalf("replayed runs %v, want [run-1 run-2]", runs)
	}
}
