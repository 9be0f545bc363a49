package audience

import (
	"errors"
	"fmt"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// Sentinel errors for errors.Is checks.
var (
	ErrConditionNotFound  = errors.New("condition not found")
	ErrInvalidLogic       = errors.New("filter logic must be AND or OR")
	ErrUnknownColumn      = errors.New("unknown column")
	ErrUnknownField       = errors.New("unknown condition field")
	ErrOperatorNotAllowed = errors.New("operator not allowed")
	ErrInvalidValue       = errors.New("invalid condition value")
	ErrEmptySchema        = errors.New("no dataset schema: upload a dataset first")
)

// OperatorNotAllowedError is returned when an operator is outside the domain
// of the column type.
type OperatorNotAllowedError struct {
	Column   string
	Type     core.ColumnType
	Operator core.Operator
}

func (e *OperatorNotAllowedError) Error() string {
	return fmt.Sprintf("operator %q is not allowed for %s column %q (allowed: %v)",
		e.Operator, e.Type, e.Column, OperatorsFor(e.Type))
}

// Is matches ErrOperatorNotAllowed.
func (e *OperatorNotAllowedError) Is(target error) bool {
	return target == ErrOperatorNotAllowed
}

// InvalidValueError is returned when a numeric condition value is not a number.
type InvalidValueError struct {
	Column string
	Value  string
	Err    error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("value %q for numeric column %q is not a number", e.Value, e.Column)
}

// Unwrap returns the parse error.
func (e *InvalidValueError) Unwrap() error {
	return e.Err
}

// Is matches ErrInvalidValue.
func (e *InvalidValueError) Is(target error) bool {
	return target == ErrInvalidValue
}
