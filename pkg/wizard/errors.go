package wizard

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNoCandidate      = errors.New("no value selected for the current step")
	ErrFetchInFlight    = errors.New("a suggestion request is already in flight")
	ErrFetchSuperseded  = errors.New("suggestion request superseded")
	ErrWizardCancelled  = errors.New("wizard was cancelled")
	ErrWizardDone       = errors.New("wizard is already complete")
	ErrNameNotSubmitted = errors.New("template name has not been submitted")
	ErrNameSubmitted    = errors.New("template name was already submitted")
)

// ValidationError rejects user input before anything is sent to the model.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
