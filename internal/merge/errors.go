package merge

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks a precondition violation by the caller. Data
// disagreements between branches are never errors; they are reported as
// warnings.
var ErrInvalidInput = errors.New("invalid merge input")

// InputError describes which input was rejected and why.
type InputError struct {
	// Input names the rejected argument ("base", "main", "incoming",
	// "registry", "options").
	Input  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Input, e.Reason)
}

// Is makes every InputError match ErrInvalidInput.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func invalid(input, reason string, err error) error {
	return &InputError{Input: input, Reason: reason, Err: err}
}
