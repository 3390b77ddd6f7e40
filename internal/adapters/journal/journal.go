// Package journal persists completed sweeps to an append-only log so a
// session cut short by a crash or power loss still leaves its finished
// sweeps recoverable. The journal doubles as a recorder: every completed
// sweep is appended, and finalizing a session commits its entries.
package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/kongfanmiao/hrms/internal/domain"
	"github.com/kongfanmiao/hrms/internal/ports"
)

const entryHeaderLen = 12

// EntryID is the monotonically increasing journal sequence number.
type EntryID uint64

// Entry is one journaled sweep.
type Entry struct {
	RunID      string      `json:"run_id,omitempty"`
	SweepIndex int         `json:"sweep"`
	Voltages   []JSONFloat `json:"voltages"`
	Currents   []JSONFloat `json:"currents"`
	Times      []JSONFloat `json:"times"`
}

// JSONFloat is a float64 whose NaN values round-trip through JSON as
// null. Invalidated samples are NaN in memory and encoding/json refuses
// plain NaN.
type JSONFloat float64

func (f JSONFloat) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

func (f *JSONFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = JSONFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = JSONFloat(v)
	return nil
}

// SweepJournal is a single-writer append-only sweep log with a side meta
// file tracking the highest committed entry. A truncated tail left by a
// crash is cut off at open time.
type SweepJournal struct {
	mu        sync.Mutex
	path      string
	metaPath  string
	file      *os.File
	writer    *bufio.Writer
	nextID    EntryID
	committed EntryID
	sizeBytes int64
	runID     string
}

var _ ports.Recorder = (*SweepJournal)(nil)

func Open(dir string) (*SweepJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "sweeps.journal")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	j := &SweepJournal{
		path:     path,
		metaPath: filepath.Join(dir, "sweeps.meta"),
		file:     f,
		writer:   bufio.NewWriterSize(f, 1<<20),
	}
	if err := j.bootstrap(); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

func (j *SweepJournal) bootstrap() error {
	if err := j.scanExisting(); err != nil {
		return err
	}
	if err := j.loadCommitted(); err != nil {
		return err
	}
	if j.nextID < j.committed {
		j.nextID = j.committed
	}
	_, err := j.file.Seek(0, io.SeekEnd)
	return err
}

func (j *SweepJournal) scanExisting() error {
	stat, err := os.Stat(j.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err != nil || stat.Size() == 0 {
		return nil
	}

	rf, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	reader := bufio.NewReader(rf)
	var (
		offset int64
		lastID EntryID
	)

	for {
		var hdr [entryHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				if err := j.file.Truncate(offset); err != nil {
					return err
				}
				break
			}
			return errors.Wrap(err, "journal scan header")
		}
		id := EntryID(binary.BigEndian.Uint64(hdr[0:8]))
		length := binary.BigEndian.Uint32(hdr[8:12])
		offset += entryHeaderLen

		if length > 0 {
			if _, err := io.CopyN(io.Discard, reader, int64(length)); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					// drop the dangling header along with the torn body
					offset -= entryHeaderLen
					if err := j.file.Truncate(offset); err != nil {
						return err
					}
					break
				}
				return errors.Wrap(err, "journal scan body")
			}
			offset += int64(length)
		}
		lastID = id
	}

	j.sizeBytes = offset
	j.nextID = lastID
	return nil
}

func (j *SweepJournal) loadCommitted() error {
	data, err := os.ReadFile(j.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return errors.Wrap(err, "journal meta parse")
	}
	j.committed = EntryID(u)
	return nil
}

// RecordResult appends one completed sweep and flushes it to the OS.
func (j *SweepJournal) RecordResult(sweepIndex int, voltages, currents, times []float64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := Entry{
		RunID:      j.runID,
		SweepIndex: sweepIndex,
		Voltages:   toJSONFloats(voltages),
		Currents:   toJSONFloats(currents),
		Times:      toJSONFloats(times),
	}
	_, err := j.appendLocked(&entry)
	if err != nil {
		return err
	}
	return j.writer.Flush()
}

// Finalize commits every appended entry. Committed entries are skipped
// by Recover, so only sweeps from an unfinished session replay.
func (j *SweepJournal) Finalize(result *domain.SessionResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		return err
	}
	j.committed = j.nextID
	return j.persistMetaLocked()
}

// SetRunID tags subsequent entries with the session run id.
func (j *SweepJournal) SetRunID(runID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runID = runID
}

func (j *SweepJournal) appendLocked(e *Entry) (EntryID, error) {
	id := j.nextID + 1

	b, err := json.Marshal(e)
	if err != nil {
		return 0, err
	}

	// entry format: [8 bytes id][4 bytes len][len bytes json]
	var hdr [entryHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))

	if _, err := j.writer.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := j.writer.Write(b); err != nil {
		return 0, err
	}

	j.nextID = id
	j.sizeBytes += int64(len(b) + len(hdr))
	return id, nil
}

// Recover replays every uncommitted entry in append order. Use it at
// startup to salvage sweeps from a session that never finalized.
func (j *SweepJournal) Recover(fn func(id EntryID, e *Entry) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.replayLocked(j.committed, fn)
}

// Replay replays every entry, committed or not. Export tooling uses it to
// rebuild a session's sweeps from disk.
func (j *SweepJournal) Replay(fn func(id EntryID, e *Entry) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.replayLocked(0, fn)
}

func (j *SweepJournal) replayLocked(after EntryID, fn func(id EntryID, e *Entry) error) error {
	if err := j.writer.Flush(); err != nil {
		return err
	}

	f, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		var hdr [entryHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "journal recover header")
		}
		id := EntryID(binary.BigEndian.Uint64(hdr[0:8]))
		l := binary.BigEndian.Uint32(hdr[8:12])

		b := make([]byte, l)
		if _, err := io.ReadFull(r, b); err != nil {
			return errors.Wrap(err, "corrupt journal entry")
		}
		if id <= after {
			continue
		}

		var e Entry
		if err := json.Unmarshal(b, &e); err != nil {
			return errors.Wrap(err, "corrupt journal entry")
		}
		if err := fn(id, &e); err != nil {
			return err
		}
	}
}

// Stats reports journal occupancy for observability surfaces.
type Stats struct {
	OldestUncommitted EntryID
	LatestAppended    EntryID
	SizeBytes         int64
}

func (j *SweepJournal) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Stats{
		OldestUncommitted: j.committed + 1,
		LatestAppended:    j.nextID,
		SizeBytes:         j.sizeBytes,
	}
}

// Close flushes buffered entries and releases the file.
func (j *SweepJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		j.file.Close()
		return err
	}
	return j.file.Close()
}

func (j *SweepJournal) persistMetaLocked() error {
	data := []byte(fmt.Sprintf("%d\n", j.committed))
	return os.WriteFile(j.metaPath, data, 0o644)
}

func toJSONFloats(values []float64) []JSONFloat {
	out := make([]JSONFloat, len(values))
	for i, v := range values {
		out[i] = JSONFloat(v)
	}
	return out
}

// Floats converts a journaled series back to float64s, nulls to NaN.
func Floats(values []JSONFloat) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
