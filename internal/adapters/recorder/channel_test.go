package recorder

import (
	"errors"
	"testing"

	"github.com/kongfanmiao/hrms/internal/domain"
)

func TestChannelRecorderDeliversUpdates(t *testing.T) {
	rec, ch, closeFn := NewChannelRecorder(4)
	defer closeFn()

	if err := rec.RecordResult(0, []float64{10, 8}, []float64{1e-9, 2e-9}, []float64{0, 1}); err != nil {
		t.Fatalf("record result: %v", err)
	}

	u := <-ch
	if u.SweepIndex != 0 {
		t.Fatalf("sweep index = %d, want 0", u.SweepIndex)
	}
	if len(u.Voltages) != 2 || u.Voltages[0] != 10 {
		t.Fatalf("unexpected voltages %v", u.Voltages)
	}
	if u.Final != nil {
		t.Fatal("intermediate update should not carry the final result")
	}
}

func TestChannelRecorderFinalUpdate(t *testing.T) {
	rec, ch, closeFn := NewChannelRecorder(1)
	defer closeFn()

	result := &domain.SessionResult{RunID: "run-1"}
	if err := rec.Finalize(result); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	u := <-ch
	if u.Final == nil || u.Final.RunID != "run-1" {
		t.Fatalf("final update missing result: %+v", u)
	}
}

func TestChannelRecorderClosed(t *testing.T) {
	rec, _, closeFn := NewChannelRecorder(1)
	closeFn()

	err := rec.RecordResult(0, []float64{1}, []float64{1}, []float64{1})
	if !errors.Is(err, ErrChannelRecorderClosed) {
		t.Fatalf("expected ErrChannelRecorderClosed, got %v", err)
	}
}
