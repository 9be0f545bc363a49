package wizard

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	ErrStepIncomplete     = errors.New("step incomplete")
	ErrForwardJump        = errors.New("can only jump back to an earlier step")
	ErrAtFirstStep        = errors.New("already at the first step")
	ErrAtLastStep         = errors.New("already at the last step")
	ErrNotReviewing       = errors.New("templates are created from the review step")
	ErrDatasetFileMissing = errors.New("dataset file missing, please re-upload")
)

// GuardError reports why a step cannot be left.
type GuardError struct {
	Step   Step
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step.Title(), e.Reason)
}

// Is matches ErrStepIncomplete.
func (e *GuardError) Is(target error) bool {
	return target == ErrStepIncomplete
}
