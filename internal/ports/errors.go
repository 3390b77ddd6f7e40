package ports

import (
	"errors"
	"fmt"
)

// DeviceError wraps an instrument communication failure. The core never
// retries these; any retry policy belongs to the transport adapter.
type DeviceError struct {
	Op  string // the command or query that failed
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error during %q: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// DeviceTimeoutError is a DeviceError whose underlying cause is an expired
// I/O timeout rather than a protocol failure.
type DeviceTimeoutError struct {
	DeviceError
}

func (e *DeviceTimeoutError) Error() string {
	return fmt.Sprintf("device timeout during %q: %v", e.Op, e.Err)
}

// NewDeviceError wraps err for the given operation, preserving timeout-ness
// when err already is (or wraps) a DeviceTimeoutError.
func NewDeviceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var timeout *DeviceTimeoutError
	if errors.As(err, &timeout) {
		return &DeviceTimeoutError{DeviceError{Op: op, Err: err}}
	}
	return &DeviceError{Op: op, Err: err}
}

// IsDeviceError reports whether err is any instrument communication failure,
// timeouts included.
func IsDeviceError(err error) bool {
	var de *DeviceError
	var dte *DeviceTimeoutError
	return errors.As(err, &de) || errors.As(err, &dte)
}

// IsDeviceTimeout reports whether err is an expired instrument I/O timeout.
func IsDeviceTimeout(err error) bool {
	var dte *DeviceTimeoutError
	return errors.As(err, &dte)
}
