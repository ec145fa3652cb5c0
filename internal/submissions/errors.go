package submissions

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("submission not found")
	ErrForbidden          = errors.New("not permitted")
	ErrPreconditionFailed = errors.New("submission is not in the required state")
	ErrValidation         = errors.New("validation failed")
)

// Comment stored on a submission whose parse job hit a system fault.
const internalParseComment = "internal error while parsing"

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func preconditionError(id string, current, want Status) error {
	return fmt.Errorf("%w: submission %s is %s, expected %s", ErrPreconditionFailed, id, current, want)
}
