package sweep

import "fmt"

// SafetyError means the interlock is not satisfied for a hazardous voltage.
// It is fatal to the session and requires human intervention; the source
// output is guaranteed to be left disabled.
type SafetyError struct {
	MaxVoltage float64
}

func (e *SafetyError) Error() string {
	return fmt.Sprintf("interlock open: close the cabinet door before sourcing hazardous voltage (%g V)", e.MaxVoltage)
}
