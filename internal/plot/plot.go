// Package plot renders I-V figures for finished sessions.
package plot

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/kongfanmiao/hrms/internal/domain"
)

var unitNames = map[int]string{
	3:  "mA",
	6:  "uA",
	9:  "nA",
	12: "pA",
}

// Session draws every sweep of the session as one I-V trace and saves
// the figure (format chosen by the path extension, .png or .pdf).
func Session(result *domain.SessionResult, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Run id: %s\n%s", result.RunID, result.Name)
	p.X.Label.Text = "Voltage (V)"

	scale := autoScale(allCurrents(result))
	p.Y.Label.Text = fmt.Sprintf("Current (%s)", unitNames[scale])

	for i, rec := range result.Records {
		line, err := plotter.NewLine(points(rec.Voltages, rec.Currents, scale))
		if err != nil {
			return errors.Wrapf(err, "sweep %d trace", i+1)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(sweepLabel(i), line)
	}
	p.Legend.Top = true

	return errors.Wrap(p.Save(8*vg.Inch, 6*vg.Inch, path), "save figure")
}

// SessionLog draws every sweep on log axes: sign(V)*log10|V| against
// log10|I|, the same mapping the workbook's log sheets use. Zero samples
// are dropped.
func SessionLog(result *domain.SessionResult, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Run id: %s\n%s", result.RunID, result.Name)
	p.X.Label.Text = "sign(V) log10|V|"
	p.Y.Label.Text = "log10|I| (A)"

	for i, rec := range result.Records {
		line, err := plotter.NewLine(logPoints(rec.Voltages, rec.Currents))
		if err != nil {
			return errors.Wrapf(err, "sweep %d log trace", i+1)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(sweepLabel(i), line)
	}
	p.Legend.Top = true

	return errors.Wrap(p.Save(8*vg.Inch, 6*vg.Inch, path), "save figure")
}

// Average draws the pointwise forward and backward averages across
// sweeps. Forward sweeps are the even-indexed ones; reversal flips the
// polarity every sweep.
func Average(result *domain.SessionResult, path string) error {
	if len(result.Records) == 0 {
		return errors.New("no sweeps to average")
	}

	fwV, fwI := averageBranch(result.Records, 0)
	p := plot.New()
	p.Title.Text = result.Name + "\nAVERAGE"
	p.X.Label.Text = "Voltage (V)"

	scale := autoScale(fwI)
	p.Y.Label.Text = fmt.Sprintf("Current (%s)", unitNames[scale])

	fwLine, err := plotter.NewLine(points(fwV, fwI, scale))
	if err != nil {
		return errors.Wrap(err, "forward average trace")
	}
	p.Add(fwLine)
	p.Legend.Add("Forward Average", fwLine)

	if len(result.Records) > 1 {
		bwV, bwI := averageBranch(result.Records, 1)
		bwLine, err := plotter.NewLine(points(bwV, bwI, scale))
		if err != nil {
			return errors.Wrap(err, "backward average trace")
		}
		bwLine.Color = plotutil.Color(1)
		p.Add(bwLine)
		p.Legend.Add("Backward Average", bwLine)
	}

	return errors.Wrap(p.Save(8*vg.Inch, 6*vg.Inch, path), "save figure")
}

// averageBranch averages currents over every second sweep starting at
// offset, NaN samples excluded. Voltages come from the first sweep of
// the branch; all sweeps of one branch traverse the same ramp.
func averageBranch(records []domain.SweepRecord, offset int) (voltages, currents []float64) {
	if offset >= len(records) {
		return nil, nil
	}
	n := records[offset].Len()
	voltages = append([]float64(nil), records[offset].Voltages...)
	currents = make([]float64, n)

	for i := 0; i < n; i++ {
		sum, count := 0.0, 0
		for s := offset; s < len(records); s += 2 {
			if i >= records[s].Len() {
				continue
			}
			c := records[s].Currents[i]
			if math.IsNaN(c) {
				continue
			}
			sum += c
			count++
		}
		if count == 0 {
			currents[i] = math.NaN()
			continue
		}
		currents[i] = sum / float64(count)
	}
	return voltages, currents
}

// points converts one series to plot coordinates, scaling current by
// 10^scale and dropping invalidated samples.
func points(voltages, currents []float64, scale int) plotter.XYs {
	factor := math.Pow(10, float64(scale))
	xys := make(plotter.XYs, 0, len(voltages))
	for i := range voltages {
		if math.IsNaN(voltages[i]) || math.IsNaN(currents[i]) {
			continue
		}
		xys = append(xys, plotter.XY{X: voltages[i], Y: currents[i] * factor})
	}
	return xys
}

// logPoints maps one series onto log coordinates, dropping invalidated
// and zero samples.
func logPoints(voltages, currents []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(voltages))
	for i := range voltages {
		v, c := voltages[i], currents[i]
		if math.IsNaN(v) || math.IsNaN(c) || v == 0 || c == 0 {
			continue
		}
		sign := 1.0
		if v < 0 {
			sign = -1.0
		}
		xys = append(xys, plotter.XY{
			X: sign * math.Log10(math.Abs(v)),
			Y: math.Log10(math.Abs(c)),
		})
	}
	return xys
}

// autoScale picks the current unit as the nearest power-of-1000 that
// keeps the largest reading in a readable magnitude.
func autoScale(currents []float64) int {
	maxAbs := 0.0
	for _, c := range currents {
		if math.IsNaN(c) {
			continue
		}
		if a := math.Abs(c); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 {
		return 12
	}
	scale := int(math.Ceil(math.Abs(math.Log10(maxAbs))/3) * 3)
	if scale < 3 {
		scale = 3
	}
	if scale > 12 {
		scale = 12
	}
	return scale
}

func allCurrents(result *domain.SessionResult) []float64 {
	var out []float64
	for _, rec := range result.Records {
		out = append(out, rec.Currents...)
	}
	return out
}

func sweepLabel(i int) string {
	direction := "forward"
	if i%2 == 1 {
		direction = "backward"
	}
	return fmt.Sprintf("Sweep %d (%s)", i/2+1, direction)
}
