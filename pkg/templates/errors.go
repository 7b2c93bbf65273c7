package templates

import (
	"errors"
	"fmt"
)

var (
	ErrBuiltinTemplate = errors.New("cannot modify built-in templates")
	ErrValidation      = errors.New("validation error")
	ErrStoreClosed     = errors.New("template store closed")
)

// ValidationError reports invalid template data.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ErrValidation.Error()
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
