package keithley

import (
	"fmt"

	"github.com/pkg/errors"
)

// SequenceParam describes one settable parameter of a built-in test
// sequence: its SCPI mnemonic and the range the instrument accepts.
type SequenceParam struct {
	Raw   string
	Label string
	Unit  string
	Min   float64
	Max   float64
}

// Sequence is one built-in test sequence with its parameter set.
type Sequence struct {
	Raw    string
	Label  string
	Params map[string]SequenceParam
}

// Diode leakage, capacitor leakage, cable insulation and the other
// exotic sequences are omitted; nothing here drives them.
var sequences = map[string]Sequence{
	"sresistivity": {
		Raw: "SRES", Label: "Surface Resistivity Test",
		Params: map[string]SequenceParam{
			"pdtime":   {Raw: "PDTime", Label: "pre-discharge time", Unit: "s", Min: 0, Max: 99999.9},
			"svoltage": {Raw: "SVOLtage", Label: "bias voltage", Unit: "V", Min: -1000, Max: 1000},
			"stime":    {Raw: "STIMe", Label: "bias time", Unit: "s", Min: 0, Max: 99999.9},
			"mvoltage": {Raw: "MVOLtage", Label: "measure voltage", Unit: "V", Min: -1000, Max: 1000},
			"mtime":    {Raw: "MTIMe", Label: "measure time", Unit: "s", Min: 0, Max: 9999.9},
			"dtime":    {Raw: "DTIMe", Label: "discharge time", Unit: "s", Min: 0, Max: 99999.9},
		},
	},
	"vresistivity": {
		Raw: "VRES", Label: "Volume Resistivity Test",
		Params: map[string]SequenceParam{
			"pdtime":   {Raw: "PDTime", Label: "pre-discharge time", Unit: "s", Min: 0, Max: 99999.9},
			"svoltage": {Raw: "SVOLtage", Label: "bias voltage", Unit: "V", Min: -1000, Max: 1000},
			"stime":    {Raw: "STIMe", Label: "bias time", Unit: "s", Min: 0, Max: 99999.9},
			"mvoltage": {Raw: "MVOLtage", Label: "measure voltage", Unit: "V", Min: -1000, Max: 1000},
			"mtime":    {Raw: "MTIMe", Label: "measure time", Unit: "s", Min: 0, Max: 9999.9},
			"dtime":    {Raw: "DTIMe", Label: "discharge time", Unit: "s", Min: 0, Max: 99999.9},
		},
	},
	"sqsweep": {
		Raw: "SQSW", Label: "Square Wave Sweep Test",
		Params: map[string]SequenceParam{
			"hlevel": {Raw: "HLEVel", Label: "high level voltage", Unit: "V", Min: -1000, Max: 1000},
			"htime":  {Raw: "HTIMe", Label: "high level time", Unit: "s", Min: 0, Max: 9999.9},
			"llevel": {Raw: "LLEVel", Label: "low level voltage", Unit: "V", Min: -1000, Max: 1000},
			"ltime":  {Raw: "LTIMe", Label: "low level time", Unit: "s", Min: 0, Max: 9999.9},
			"count":  {Raw: "COUNt", Label: "cycle count", Min: 0, Max: 3500},
		},
	},
	"stsweep": {
		Raw: "STSW", Label: "Staircase Sweep Test",
		Params: map[string]SequenceParam{
			"start": {Raw: "STARt", Label: "start voltage", Unit: "V", Min: -1000, Max: 1000},
			"step":  {Raw: "STEP", Label: "step voltage", Unit: "V", Min: -1000, Max: 1000},
			"stop":  {Raw: "STOP", Label: "stop voltage", Unit: "V", Min: -1000, Max: 1000},
			"stime": {Raw: "STIMe", Label: "bias time", Unit: "s", Min: 0, Max: 9999.9},
		},
	},
	"altpolarity": {
		Raw: "ALTP", Label: "Alternating Polarity Resistance/Resistivity Test",
		Params: map[string]SequenceParam{
			"ofsvoltage": {Raw: "OFSVoltage", Label: "offset voltage", Unit: "V", Min: -1000, Max: 1000},
			"altvoltage": {Raw: "ALTVoltage", Label: "alternating voltage", Unit: "V", Min: -1000, Max: 1000},
			"mtime":      {Raw: "MTIMe", Label: "measure time", Unit: "s", Min: 0.5, Max: 9999.9},
			"readings":   {Raw: "READings", Label: "number of readings to store", Min: 0, Max: 3500},
			"discard":    {Raw: "DISCard", Label: "number of readings to discard", Min: 0, Max: 9999},
		},
	},
}

// Sequences lists the supported test sequence names.
func Sequences() []string {
	names := make([]string, 0, len(sequences))
	for name := range sequences {
		names = append(names, name)
	}
	return names
}

func lookupParam(sequence, param string) (Sequence, SequenceParam, error) {
	seq, ok := sequences[sequence]
	if !ok {
		return Sequence{}, SequenceParam{}, errors.Errorf("unknown test sequence %q", sequence)
	}
	p, ok := seq.Params[param]
	if !ok {
		return Sequence{}, SequenceParam{}, errors.Errorf("test sequence %q has no parameter %q", sequence, param)
	}
	return seq, p, nil
}

// SelectSequence picks the active built-in test sequence.
func (d *Device6517A) SelectSequence(sequence string) error {
	seq, ok := sequences[sequence]
	if !ok {
		return errors.Errorf("unknown test sequence %q", sequence)
	}
	return d.conn.Write(fmt.Sprintf(":TSEQuence:TYPE %s", seq.Raw))
}

// SetSequenceParam validates value against the table and writes it.
func (d *Device6517A) SetSequenceParam(sequence, param string, value float64) error {
	seq, p, err := lookupParam(sequence, param)
	if err != nil {
		return err
	}
	if value < p.Min || value > p.Max {
		return errors.Errorf("%s (%s): %g outside [%g, %g]", p.Label, seq.Label, value, p.Min, p.Max)
	}
	return d.conn.Write(fmt.Sprintf(":TSEQuence:%s:%s %g", seq.Raw, p.Raw, value))
}

// QuerySequenceParam reads back one parameter of a test sequence.
func (d *Device6517A) QuerySequenceParam(sequence, param string) (float64, error) {
	seq, p, err := lookupParam(sequence, param)
	if err != nil {
		return 0, err
	}
	return d.queryFloat(fmt.Sprintf(":TSEQuence:%s:%s?", seq.Raw, p.Raw))
}

// StaircaseSetup programs the built-in staircase sweep sequence. The
// adaptive sweep in internal/sweep does not use it; it exists for
// operators who want the instrument to run the ramp on its own.
func (d *Device6517A) StaircaseSetup(start, step, stop, stepTime float64) error {
	if err := d.SelectSequence("stsweep"); err != nil {
		return err
	}
	for _, kv := range []struct {
		param string
		value float64
	}{
		{"start", start},
		{"step", step},
		{"stop", stop},
		{"stime", stepTime},
	} {
		if err := d.SetSequenceParam("stsweep", kv.param, kv.value); err != nil {
			return err
		}
	}
	return nil
}
