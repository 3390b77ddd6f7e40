// GPIB/VISA transport for SCPI instruments via the NI-VISA runtime.

package visa

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jpoirier/visa"
	"github.com/pkg/errors"

	"github.com/kongfanmiao/hrms/internal/ports"
)

const bufferSize = 1024

// Conn wraps one VISA instrument session. Query/Write mirror the SCPI
// request/response cycle and surface failures as DeviceError; an expired
// bus timeout becomes DeviceTimeoutError instead of hanging forever.
type Conn struct {
	ResourceName    string
	ResourceManager *visa.Session
	Timeout         time.Duration

	instr      *visa.Object
	errorQuery string
	info       map[string]string
}

// Open connects to the resource, applies the I/O timeout, and reads *IDN?.
func (c *Conn) Open() error {
	instr, status := c.ResourceManager.Open(c.ResourceName, uint32(visa.NULL), uint32(visa.NULL))
	if status != visa.SUCCESS {
		return ports.NewDeviceError("open",
			errors.Wrapf(statusError(&instr, status), "connect to %q", c.ResourceName))
	}
	c.instr = &instr

	if c.Timeout > 0 {
		if status := c.instr.SetAttribute(visa.ATTR_TMO_VALUE, uint32(c.Timeout.Milliseconds())); status != visa.SUCCESS {
			return ports.NewDeviceError("set timeout", statusError(c.instr, status))
		}
	}

	response, err := c.Query("*IDN?")
	if err != nil {
		return err
	}
	fields := strings.Split(response, ",")
	if len(fields) < 4 {
		return ports.NewDeviceError("*IDN?", fmt.Errorf("short identification %q", response))
	}
	c.info = map[string]string{
		"Manufacturer": strings.TrimSpace(fields[0]),
		"Model":        strings.TrimSpace(fields[1]),
		"Serial":       strings.TrimSpace(fields[2]),
		"Version":      strings.TrimSpace(fields[3]),
	}
	return nil
}

// Query writes cmd and reads the response up to the terminator.
func (c *Conn) Query(cmd string) (string, error) {
	if _, status := c.instr.Write([]byte(cmd), uint32(len(cmd))); status != visa.SUCCESS {
		return "", c.wrapStatus(cmd, status, "write")
	}

	raw, _, status := c.instr.Read(bufferSize)
	if status != visa.SUCCESS {
		if instrErr := c.checkErrors(); instrErr != nil {
			return "", ports.NewDeviceError(cmd, errors.Wrap(instrErr, "instrument error after query"))
		}
		return "", c.wrapStatus(cmd, status, "read")
	}

	response := string(raw)
	if response == "" {
		return "", ports.NewDeviceError(cmd, fmt.Errorf("empty response"))
	}
	if i := strings.Index(response, "\n"); i >= 0 {
		response = response[:i]
	}
	return strings.TrimRight(response, "\r"), nil
}

// Write sends cmd and then drains the instrument error queue.
func (c *Conn) Write(cmd string) error {
	if err := c.WriteRaw(cmd); err != nil {
		return err
	}
	if instrErr := c.checkErrors(); instrErr != nil {
		return ports.NewDeviceError(cmd, errors.Wrap(instrErr, "instrument error after write"))
	}
	return nil
}

// WriteRaw sends cmd without the error-queue round trip. Some setup
// commands on the 6517A choke the error query, so configuration sequences
// use this variant.
func (c *Conn) WriteRaw(cmd string) error {
	if _, status := c.instr.Write([]byte(cmd), uint32(len(cmd))); status != visa.SUCCESS {
		return c.wrapStatus(cmd, status, "write")
	}
	return nil
}

// SetErrorQuery configures the SCPI error-queue query, e.g. "SYST:ERR?".
func (c *Conn) SetErrorQuery(query string) { c.errorQuery = query }

func (c *Conn) checkErrors() error {
	if c.errorQuery == "" {
		return nil
	}
	res, err := c.Query(c.errorQuery + ";*CLS")
	if err != nil {
		return nil // the queue itself is unreachable; report the original failure
	}
	res = strings.ReplaceAll(res, `"`, "")
	fields := strings.Split(res, ",")
	code, _ := strconv.Atoi(strings.TrimSpace(fields[0]))
	if code != 0 {
		return fmt.Errorf("%s", res)
	}
	return nil
}

// Close releases the VISA object.
func (c *Conn) Close() error {
	if c.instr == nil {
		return nil
	}
	if status := c.instr.Close(); status != visa.SUCCESS {
		return ports.NewDeviceError("close", statusError(c.instr, status))
	}
	c.instr = nil
	return nil
}

// String renders the *IDN? identification block.
func (c *Conn) String() string {
	return fmt.Sprintf("Manufacturer:\t%s\nModel:\t\t%s\nSerial:\t\t%s\nVersion:\t%s\n",
		c.info["Manufacturer"], c.info["Model"], c.info["Serial"], c.info["Version"])
}

func (c *Conn) wrapStatus(cmd string, status visa.Status, op string) error {
	err := errors.Wrapf(statusError(c.instr, status), "%s %q", op, cmd)
	if status == visa.ERROR_TMO {
		return &ports.DeviceTimeoutError{DeviceError: ports.DeviceError{Op: cmd, Err: err}}
	}
	return ports.NewDeviceError(cmd, err)
}

func statusError(obj *visa.Object, status visa.Status) error {
	desc, _ := obj.StatusDesc(status)
	if i := strings.Index(desc, "."); i >= 0 {
		desc = desc[:i]
	}
	return fmt.Errorf("%d, %s", status, desc)
}
