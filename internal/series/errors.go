package series

import (
	"errors"
	"fmt"
	"time"
)

var ErrValidation = errors.New("validation failed")

// ValidationError reports malformed numeric or temporal input.
// Index is -1 when the offending value is not part of a sequence.
type ValidationError struct {
	Field  string
	Index  int
	Time   time.Time
	Value  float64
	Reason string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Index >= 0 {
		msg += fmt.Sprintf(" (index %d", e.Index)
		if !e.Time.IsZero() {
			msg += " at " + e.Time.UTC().Format(time.RFC3339)
		}
		msg += ")"
	}
	return msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(field, reason string, value float64) *ValidationError {
	return &ValidationError{Field: field, Index: -1, Value: value, Reason: reason}
}
