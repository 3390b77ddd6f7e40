// Package export renders finished sessions into analysis-ready files.
package export

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/kongfanmiao/hrms/internal/domain"
)

// Sheet names of the session workbook. The "half" sheets keep only one
// polarity per sweep, alternating, so forward and return branches can be
// fitted separately.
const (
	SheetLinear     = "linear"
	SheetLinearHalf = "linear half"
	SheetLog        = "log"
	SheetLogHalf    = "log half"
)

// WriteWorkbook writes the four-sheet Excel workbook for a session.
// Zero voltages and invalidated samples come out as blank cells.
func WriteWorkbook(result *domain.SessionResult, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := []struct {
		name string
		cols func(i int, rec domain.SweepRecord) (header []string, v, c []float64)
	}{
		{SheetLinear, linearColumns},
		{SheetLinearHalf, linearHalfColumns},
		{SheetLog, logColumns},
		{SheetLogHalf, logHalfColumns},
	}

	for _, sheet := range sheets {
		if _, err := f.NewSheet(sheet.name); err != nil {
			return errors.Wrapf(err, "create sheet %q", sheet.name)
		}
		if err := writeSheet(f, sheet.name, result, sheet.cols); err != nil {
			return err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return errors.Wrap(err, "drop default sheet")
	}
	return errors.Wrap(f.SaveAs(path), "save workbook")
}

func writeSheet(f *excelize.File, name string, result *domain.SessionResult,
	cols func(i int, rec domain.SweepRecord) ([]string, []float64, []float64)) error {

	col := 1
	for i, rec := range result.Records {
		header, voltages, currents := cols(i, rec)
		for pair, series := range [][]float64{voltages, currents} {
			cell, err := excelize.CoordinatesToCellName(col+pair, 1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, cell, header[pair]); err != nil {
				return errors.Wrapf(err, "sheet %q header", name)
			}
			for row, v := range series {
				if math.IsNaN(v) {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(col+pair, row+2)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(name, cell, v); err != nil {
					return errors.Wrapf(err, "sheet %q cell", name)
				}
			}
		}
		col += 2
	}
	return nil
}

func linearColumns(i int, rec domain.SweepRecord) ([]string, []float64, []float64) {
	v := blankZeroVoltages(rec.Voltages)
	c := append([]float64(nil), rec.Currents...)
	return []string{
		fmt.Sprintf("V-%d", i+1),
		fmt.Sprintf("I-%d", i+1),
	}, v, c
}

func linearHalfColumns(i int, rec domain.SweepRecord) ([]string, []float64, []float64) {
	header, v, c := linearColumns(i, rec)
	maskHalf(i, v, c)
	return header, v, c
}

func logColumns(i int, rec domain.SweepRecord) ([]string, []float64, []float64) {
	v := blankZeroVoltages(rec.Voltages)
	c := append([]float64(nil), rec.Currents...)
	logTransform(v, c)
	return []string{
		fmt.Sprintf("logV-%d", i+1),
		fmt.Sprintf("logI-%d", i+1),
	}, v, c
}

func logHalfColumns(i int, rec domain.SweepRecord) ([]string, []float64, []float64) {
	v := blankZeroVoltages(rec.Voltages)
	c := append([]float64(nil), rec.Currents...)
	maskHalf(i, v, c)
	logTransform(v, c)
	return []string{
		fmt.Sprintf("logV-%d", i+1),
		fmt.Sprintf("logI-%d", i+1),
	}, v, c
}

// blankZeroVoltages copies the series with exact zeros removed; log10 of
// zero has no meaning and the zero-crossing point distorts fits.
func blankZeroVoltages(voltages []float64) []float64 {
	out := append([]float64(nil), voltages...)
	for i, v := range out {
		if v == 0 {
			out[i] = math.NaN()
		}
	}
	return out
}

// maskHalf keeps the positive branch on even sweeps and the negative
// branch on odd sweeps.
func maskHalf(sweep int, voltages, currents []float64) {
	for i, v := range voltages {
		if math.IsNaN(v) {
			continue
		}
		drop := v < 0
		if sweep%2 == 1 {
			drop = v > 0
		}
		if drop {
			voltages[i] = math.NaN()
			currents[i] = math.NaN()
		}
	}
}

// logTransform maps voltage to sign(V)*log10|V| and current to log10|I|
// in place.
func logTransform(voltages, currents []float64) {
	for i, v := range voltages {
		if !math.IsNaN(v) {
			sign := 1.0
			if v < 0 {
				sign = -1.0
			}
			voltages[i] = sign * math.Log10(math.Abs(v))
		}
	}
	for i, c := range currents {
		switch {
		case math.IsNaN(c):
		case c == 0:
			currents[i] = math.NaN()
		default:
			currents[i] = math.Log10(math.Abs(c))
		}
	}
}
