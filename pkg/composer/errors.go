package composer

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is checks.
var (
	ErrInvalidColumnReference  = errors.New("invalid column reference")
	ErrUnknownTemplateVariable = errors.New("unknown template variable")
)

// InvalidColumnReferenceError is returned when a pill names a column
// that is not part of the bound schema.
type InvalidColumnReferenceError struct {
	Column string
}

func (e *InvalidColumnReferenceError) Error() string {
	return fmt.Sprintf("invalid column reference %q: column is not in the dataset schema", e.Column)
}

// Is matches ErrInvalidColumnReference.
func (e *InvalidColumnReferenceError) Is(target error) bool {
	return target == ErrInvalidColumnReference
}

// UnknownTemplateVariableError lists placeholders that do not match any schema column.
type UnknownTemplateVariableError struct {
	Names []string
}

func (e *UnknownTemplateVariableError) Error() string {
	return fmt.Sprintf("invalid variable(s) detected: %s; use only variables from the dataset schema",
		strings.Join(e.Names, ", "))
}

// Is matches ErrUnknownTemplateVariable.
func (e *UnknownTemplateVariableError) Is(target error) bool {
	return target == ErrUnknownTemplateVariable
}
