// GPIB transport over a Prologix (or AR488) USB controller. An alternative
// to the NI-VISA runtime for hosts without the vendor stack installed.

package prologix

import (
	"io"
	"strings"
	"time"

	"github.com/gotmc/prologix"
	"github.com/soypat/cereal"

	"github.com/kongfanmiao/hrms/internal/ports"
)

// Config describes the serial link and GPIB addressing for one instrument.
type Config struct {
	SerialPort  string
	BaudRate    int
	ReadTimeout time.Duration
	WriteDelay  time.Duration
	PrimaryAddr int
}

// Conn drives one GPIB instrument through a Prologix controller.
type Conn struct {
	port io.ReadWriteCloser
	gpib *prologix.Controller
}

// Open opens the serial port and initializes the GPIB controller. AR488
// clones dislike the clear-on-init, so it stays off.
func Open(cfg Config) (*Conn, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = 115200
	}
	port, err := cereal.Tarm{}.OpenPort(cfg.SerialPort, cereal.Mode{
		BaudRate:    baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, ports.NewDeviceError("open serial", err)
	}

	var opts []prologix.ControllerOption
	if cfg.WriteDelay > 0 {
		opts = append(opts, prologix.WithWriteDelay(cfg.WriteDelay))
	}
	gpib, err := prologix.NewController(port, cfg.PrimaryAddr, false, opts...)
	if err != nil {
		port.Close()
		return nil, ports.NewDeviceError("init controller", err)
	}
	return &Conn{port: port, gpib: gpib}, nil
}

// Query writes cmd and reads one terminated response line.
func (c *Conn) Query(cmd string) (string, error) {
	response, err := c.gpib.Query(cmd)
	if err != nil {
		return "", ports.NewDeviceError(cmd, err)
	}
	return strings.TrimRight(response, "\r\n"), nil
}

// Write sends cmd with no response expected.
func (c *Conn) Write(cmd string) error {
	if err := c.gpib.Command(cmd); err != nil {
		return ports.NewDeviceError(cmd, err)
	}
	return nil
}

// WriteRaw is identical to Write. The Prologix path has no error-queue
// round trip to skip; the method exists to satisfy the same connection
// surface as the VISA transport.
func (c *Conn) WriteRaw(cmd string) error { return c.Write(cmd) }

// Close returns the instrument to local front-panel control and closes
// the serial port.
func (c *Conn) Close() error {
	if err := c.gpib.FrontPanel(true); err != nil {
		c.port.Close()
		return ports.NewDeviceError("front panel", err)
	}
	if err := c.port.Close(); err != nil {
		return ports.NewDeviceError("close serial", err)
	}
	return nil
}
