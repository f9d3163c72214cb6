package machine

import "fmt"

// ContextValidationError is returned when an observed context does not satisfy
// the machine's context schema.
type ContextValidationError struct {
	MachineID string
	Err       error
}

func (e *ContextValidationError) Error() string {
	return fmt.Sprintf("machine %s: invalid context: %v", e.MachineID, e.Err)
}

func (e *ContextValidationError) Unwrap() error { return e.Err }
