// Package recorder persists sweep data. Each recorder receives sweeps as
// they complete and the full session result at the end, so a faulted
// session still leaves its finished sweeps on disk.
package recorder

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/kongfanmiao/hrms/internal/domain"
	"github.com/kongfanmiao/hrms/internal/ports"
)

type bufferedSweep struct {
	voltages []float64
	currents []float64
	times    []float64
}

// CSVRecorder writes one annotated CSV per session plus an append-only
// run-id log per sample. The CSV carries a human-readable header block
// with the sample and parameter metadata followed by the data table in
// V-n, I-n, t-n column triples.
type CSVRecorder struct {
	dir string

	mu     sync.Mutex
	sweeps []bufferedSweep
}

func NewCSVRecorder(dir string) *CSVRecorder {
	return &CSVRecorder{dir: dir}
}

var _ ports.Recorder = (*CSVRecorder)(nil)

// RecordResult buffers one completed sweep for the final write.
func (c *CSVRecorder) RecordResult(sweepIndex int, voltages, currents, times []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweeps = append(c.sweeps, bufferedSweep{
		voltages: append([]float64(nil), voltages...),
		currents: append([]float64(nil), currents...),
		times:    append([]float64(nil), times...),
	})
	return nil
}

// Finalize writes the session CSV and appends the run-id log entry.
func (c *CSVRecorder) Finalize(result *domain.SessionResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return errors.Wrap(err, "create data directory")
	}

	name := fmt.Sprintf("%s__runid %s__%s__%s.csv",
		result.StartedAt.Format("20060102"),
		shortID(result.RunID),
		result.Sample.FullName(),
		result.Experiment)
	path := filepath.Join(c.dir, name)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open session csv")
	}
	defer f.Close()

	if err := c.writeHeader(f, result); err != nil {
		return err
	}
	if err := c.writeTable(f); err != nil {
		return err
	}
	return c.logRunID(result)
}

func (c *CSVRecorder) writeHeader(f *os.File, result *domain.SessionResult) error {
	p := result.Parameters
	var b strings.Builder
	fmt.Fprintf(&b, "\nTime, \t%s\n", result.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Experiment, \t%s\n", result.Experiment)
	fmt.Fprintf(&b, "Measurement name, \t%s\n", result.Name)
	if result.PartialSession {
		fmt.Fprintf(&b, "Partial session, \ttrue\n")
	}
	fmt.Fprintf(&b, "\nSample:\n")
	fmt.Fprintf(&b, "\tSample full name, %s\n", result.Sample.FullName())
	fmt.Fprintf(&b, "\tContact method, %s\n", result.Sample.ContactMethod)
	fmt.Fprintf(&b, "\tProbe distance, %g mm\n", result.Sample.ProbeDistance)
	if result.Sample.FilePath != "" {
		fmt.Fprintf(&b, "\tData directory, %s\n", result.Sample.FilePath)
	}
	fmt.Fprintf(&b, "\nParameters:\n")
	fmt.Fprintf(&b, "\tmax_voltage,\t%g\n", p.MaxVoltage)
	fmt.Fprintf(&b, "\tstep_voltage,\t%g\n", p.StepVoltage)
	fmt.Fprintf(&b, "\tpoints_per_step,\t%d\n", p.PointsPerStep)
	fmt.Fprintf(&b, "\tstep_time,\t%s\n", p.StepTime)
	fmt.Fprintf(&b, "\tnum_sweeps,\t%d\n", p.NumSweeps)
	fmt.Fprintf(&b, "\tstart_from,\t%s\n", p.StartFrom)
	fmt.Fprintf(&b, "\trelax_time,\t%s\n", p.RelaxTime)
	fmt.Fprintf(&b, "\n\tNominal sweep rate, \t%.2f V/s\n", p.NominalSweepRate())
	fmt.Fprintf(&b, "\tReal sweep rate, \t%.2f V/s\n", result.RealSweepRate)
	fmt.Fprintf(&b, "\nRun id, \t%s\n\nData:\n", result.RunID)
	_, err := f.WriteString(b.String())
	return errors.Wrap(err, "write csv header")
}

func (c *CSVRecorder) writeTable(f *os.File) error {
	w := csv.NewWriter(f)

	header := make([]string, 0, len(c.sweeps)*3)
	rows := 0
	for i, s := range c.sweeps {
		header = append(header,
			fmt.Sprintf("V-%d", i+1),
			fmt.Sprintf("I-%d", i+1),
			fmt.Sprintf("t-%d", i+1))
		if len(s.voltages) > rows {
			rows = len(s.voltages)
		}
	}
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "write csv table header")
	}

	for row := 0; row < rows; row++ {
		record := make([]string, 0, len(header))
		for _, s := range c.sweeps {
			record = append(record,
				cell(s.voltages, row),
				cell(s.currents, row),
				cell(s.times, row))
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flush csv")
}

func (c *CSVRecorder) logRunID(result *domain.SessionResult) error {
	path := filepath.Join(c.dir, result.Sample.FullName()+"_runid.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open runid log")
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s: %s\n", result.RunID, result.Name)
	return errors.Wrap(err, "append runid log")
}

// cell renders one value; invalidated samples become blank cells.
func cell(values []float64, row int) string {
	if row >= len(values) || math.IsNaN(values[row]) {
		return ""
	}
	return fmt.Sprintf("%g", values[row])
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
