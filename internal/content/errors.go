package content

import (
	"errors"
	"fmt"
)

// ErrValidation marks a malformed source document.
var ErrValidation = errors.New("content: invalid document")

// ValidationError describes which entry failed validation and why.
type ValidationError struct {
	Key    string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("content: invalid document %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("content: invalid document %q: field %q %s", e.Key, e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
