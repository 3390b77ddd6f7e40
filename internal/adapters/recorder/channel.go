package recorder

import (
	"errors"
	"sync"

	"github.com/kongfanmiao/hrms/internal/domain"
	"github.com/kongfanmiao/hrms/internal/ports"
)

// ErrChannelRecorderClosed is returned when a channel recorder receives
// data after being closed.
var ErrChannelRecorderClosed = errors.New("recorder: channel recorder closed")

// SweepUpdate is one completed sweep as delivered to live consumers.
type SweepUpdate struct {
	SweepIndex int
	Voltages   []float64
	Currents   []float64
	Times      []float64
	// Final carries the session result on the last update, nil otherwise.
	Final *domain.SessionResult
}

// NewChannelRecorder exposes sweep completions via a channel for live
// plotting or monitoring. It returns the recorder, the read-only update
// channel, and a close function the consumer should call on shutdown.
func NewChannelRecorder(buffer int) (ports.Recorder, <-chan SweepUpdate, func()) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan SweepUpdate, buffer)
	r := &channelRecorder{
		ch:     ch,
		closed: make(chan struct{}),
	}
	return r, ch, func() { r.close() }
}

type channelRecorder struct {
	ch     chan SweepUpdate
	closed chan struct{}
	once   sync.Once
}

func (r *channelRecorder) RecordResult(sweepIndex int, voltages, currents, times []float64) error {
	return r.send(SweepUpdate{
		SweepIndex: sweepIndex,
		Voltages:   append([]float64(nil), voltages...),
		Currents:   append([]float64(nil), currents...),
		Times:      append([]float64(nil), times...),
	})
}

func (r *channelRecorder) Finalize(result *domain.SessionResult) error {
	return r.send(SweepUpdate{SweepIndex: -1, Final: result})
}

func (r *channelRecorder) send(u SweepUpdate) error {
	select {
	case <-r.closed:
		return ErrChannelRecorderClosed
	default:
	}
	select {
	case <-r.closed:
		return ErrChannelRecorderClosed
	case r.ch <- u:
		return nil
	}
}

func (r *channelRecorder) close() {
	r.once.Do(func() {
		close(r.closed)
		close(r.ch)
	})
}
