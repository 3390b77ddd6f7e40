// Package keithley drives a Keithley 6517A electrometer over a SCPI
// connection. The 6517A measures current in resistance mode with a
// manually ranged V-source, which is what a staircase resistivity sweep
// needs: program a level, operate the source, read back current.
package keithley

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kongfanmiao/hrms/internal/ports"
)

// Conn is the SCPI transport the driver talks through. Both the VISA and
// the Prologix adapters satisfy it.
type Conn interface {
	Query(cmd string) (string, error)
	Write(cmd string) error
	// WriteRaw skips any post-write error-queue check. Several 6517A
	// setup commands leave the error queue in a state that confuses the
	// check, so Configure uses this variant.
	WriteRaw(cmd string) error
}

// Device6517A implements the electrometer port for the Keithley 6517A.
type Device6517A struct {
	conn Conn

	// now supplies the wall clock for the calibration commands.
	// Overridable in tests.
	now func() time.Time
}

var _ ports.Electrometer = (*Device6517A)(nil)

// New wraps an open SCPI connection. Call Configure before sweeping.
func New(conn Conn) *Device6517A {
	return &Device6517A{conn: conn, now: time.Now}
}

// Configure prepares the instrument for a current measurement with a
// manually ranged V-source. maxVoltage picks the source range: levels
// above 100 V need the 1000 V range. The zero check stays engaged for
// the whole sequence so range and function changes cannot glitch the
// input stage.
func (d *Device6517A) Configure(maxVoltage float64) error {
	vsRange := 100.0
	if maxVoltage > 100 {
		vsRange = 1000.0
	}
	t := d.now()
	seq := []string{
		":SYSTem:ZCHeck 1",
		fmt.Sprintf(":SYSTem:DATE %d,%d,%d", t.Year(), int(t.Month()), t.Day()),
		fmt.Sprintf(":SYSTem:TIME %d,%d,%d", t.Hour(), t.Minute(), t.Second()),
		":SYSTem:PRESet",
		`:SENSe:FUNCtion "CURR:DC"`,
		":SENSe:CURRent:DAMPing 0",
		":SOURce:VOLTage:MCONnect 1",
		":SENSe:RESistance:VSControl MAN",
		fmt.Sprintf(":SENSe:RESistance:MANual:VSOurce:RANGe %g", vsRange),
		":FORMat:ELEMents READ,UNIT,TST,VSO",
		":SENSe:CURRent:DC:RANGe:AUTO 0",
		":SYSTem:TSTamp:TYPE REL",
		":SYSTem:TSTamp:RELative:RESet",
		":SYSTem:ZCHeck 0",
	}
	for _, cmd := range seq {
		if err := d.conn.WriteRaw(cmd); err != nil {
			return err
		}
	}
	return nil
}

// SetSourceLevel programs the manual V-source amplitude in volts.
func (d *Device6517A) SetSourceLevel(voltage float64) error {
	return d.conn.Write(fmt.Sprintf(":SENSe:RESistance:MANual:VSOurce:AMPLitude %g", voltage))
}

// SetSourceOutput switches the V-source between operate and standby.
func (d *Device6517A) SetSourceOutput(enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return d.conn.Write(fmt.Sprintf(":SENSe:RESistance:MANual:VSOurce:OPERate %d", v))
}

// SetSourceRange selects the V-source range, 100 V or 1000 V.
func (d *Device6517A) SetSourceRange(voltage float64) error {
	return d.conn.Write(fmt.Sprintf(":SENSe:RESistance:MANual:VSOurce:RANGe %g", voltage))
}

func (d *Device6517A) GetSourceRange() (float64, error) {
	return d.queryFloat(":SENSe:RESistance:MANual:VSOurce:RANGe?")
}

// SetMeasureRange selects the manual current range in amps.
func (d *Device6517A) SetMeasureRange(rangeValue float64) error {
	return d.conn.Write(fmt.Sprintf(":SENSe:CURRent:DC:RANGe %g", rangeValue))
}

func (d *Device6517A) GetMeasureRange() (float64, error) {
	return d.queryFloat(":SENSe:CURRent:DC:RANGe?")
}

// ReadSample fetches the latest reading and parses the ASCII data string.
func (d *Device6517A) ReadSample() (float64, float64, error) {
	raw, err := d.conn.Query(":SENSe:DATA?")
	if err != nil {
		return 0, 0, err
	}
	s, err := ParseSample(raw)
	if err != nil {
		return 0, 0, ports.NewDeviceError(":SENSe:DATA?", err)
	}
	return s.Current, s.Timestamp, nil
}

// InterlockClosed reads the test-fixture interlock state. Without the
// interlock cable the instrument cannot tell whether the fixture lid is
// open, so an open interlock must block any hazardous-voltage sweep.
func (d *Device6517A) InterlockClosed() (bool, error) {
	res, err := d.conn.Query(":SYSTem:INTerlock?")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(res) == "1", nil
}

// Identify returns the *IDN? response.
func (d *Device6517A) Identify() (string, error) {
	return d.conn.Query("*IDN?")
}

func (d *Device6517A) queryFloat(cmd string) (float64, error) {
	res, err := d.conn.Query(cmd)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(res), 64)
	if err != nil {
		return 0, ports.NewDeviceError(cmd, errors.Wrapf(err, "parse %q", res))
	}
	return v, nil
}

// Sample is one parsed entry of the instrument data string.
type Sample struct {
	Current   float64 // amps
	Timestamp float64 // seconds, relative
	Voltage   float64 // programmed source level, volts
	Units     string
}

// ParseSample decodes a data string produced with elements
// READ,UNIT,TST,VSO and relative timestamps, e.g.
//
//	-1.234567E-09ADC,+0.123456789secs,+1.000000E+01Vsrc
//
// The reading occupies the first 13 characters of its field with the
// units glued on behind; the timestamp and source fields carry "secs"
// and "Vsrc" suffixes.
func ParseSample(raw string) (Sample, error) {
	fields := strings.Split(raw, ",")
	if len(fields) < 3 {
		return Sample{}, errors.Errorf("malformed data string %q: want 3 fields, got %d", raw, len(fields))
	}
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}

	r := fields[0]
	if len(r) < 13 {
		return Sample{}, errors.Errorf("reading field %q shorter than 13 chars", r)
	}
	current, err := strconv.ParseFloat(r[:13], 64)
	if err != nil {
		return Sample{}, errors.Wrapf(err, "parse reading %q", r[:13])
	}
	units := r[13:]

	ts := strings.TrimSuffix(fields[1], "secs")
	timestamp, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return Sample{}, errors.Wrapf(err, "parse timestamp %q", fields[1])
	}

	vs := strings.TrimSuffix(fields[2], "Vsrc")
	voltage, err := strconv.ParseFloat(vs, 64)
	if err != nil {
		return Sample{}, errors.Wrapf(err, "parse vsource %q", fields[2])
	}

	return Sample{Current: current, Timestamp: timestamp, Voltage: voltage, Units: units}, nil
}
