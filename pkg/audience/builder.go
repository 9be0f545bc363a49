package audience

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// Field names a mutable part of a condition.
type Field string

// Condition fields accepted by UpdateCondition.
const (
	FieldColumn   Field = "column"
	FieldOperator Field = "operator"
	FieldValue    Field = "value"
)

// Condition is one column/operator/value rule. Value is kept as typed text
// and only coerced when the payload is built.
type Condition struct {
	ID       string        `json:"id"`
	Column   string        `json:"column"`
	Operator core.Operator `json:"operator"`
	Value    string        `json:"value"`
}

// State is the serializable form of a Builder, stored in wizard drafts.
type State struct {
	Logic        core.FilterLogic `json:"logic"`
	Conditions   []Condition      `json:"conditions"`
	Tested       bool             `json:"tested"`
	MatchedCount *int             `json:"matched_count,omitempty"`
	MatchedRows  []core.Row       `json:"matched_rows,omitempty"`
}

// Builder edits the filter definition for one dataset schema.
type Builder struct {
	schema     core.Schema
	logic      core.FilterLogic
	conditions []Condition
	tested     bool
	result     *core.FilterResult
	newID      func() string
}

// NewBuilder creates an empty AND filter over schema.
func NewBuilder(schema core.Schema) *Builder {
	return &Builder{
		schema: schema,
		logic:  core.LogicAnd,
		newID:  uuid.NewString,
	}
}

// Restore rebuilds a builder from a saved state. Conditions that no longer fit
// the schema are rejected.
func Restore(schema core.Schema, st State) (*Builder, error) {
	b := NewBuilder(schema)
	if st.Logic != "" {
		if !st.Logic.Valid() {
			return nil, ErrInvalidLogic
		}
		b.logic = st.Logic
	}
	for _, c := range st.Conditions {
		col, ok := schema.Lookup(c.Column)
		if !ok {
			return nil, fmt.Errorf("condition %s: %w %q", c.ID, ErrUnknownColumn, c.Column)
		}
		if !Allowed(col.Type, c.Operator) {
			return nil, &OperatorNotAllowedError{Column: col.Name, Type: col.Type, Operator: c.Operator}
		}
		if c.ID == "" {
			c.ID = b.newID()
		}
		b.conditions = append(b.conditions, c)
	}
	b.tested = st.Tested
	if st.Tested && st.MatchedCount != nil {
		b.result = &core.FilterResult{MatchedCount: *st.MatchedCount, MatchedRows: st.MatchedRows}
	}
	return b, nil
}

// State returns a snapshot suitable for persisting.
func (b *Builder) State() State {
	st := State{
		Logic:      b.logic,
		Conditions: slices.Clone(b.conditions),
		Tested:     b.tested,
	}
	if b.result != nil {
		n := b.result.MatchedCount
		st.MatchedCount = &n
		st.MatchedRows = b.result.Rows()
	}
	return st
}

// Schema returns the schema conditions are checked against.
func (b *Builder) Schema() core.Schema {
	return b.schema
}

// Logic returns the condition join.
func (b *Builder) Logic() core.FilterLogic {
	return b.logic
}

// Conditions returns a copy of the conditions in order.
func (b *Builder) Conditions() []Condition {
	return slices.Clone(b.conditions)
}

// Len returns the number of conditions.
func (b *Builder) Len() int {
	return len(b.conditions)
}

// Tested reports whether the current condition set has a test result.
func (b *Builder) Tested() bool {
	return b.tested
}

// Result returns the last recorded test result, or nil.
func (b *Builder) Result() *core.FilterResult {
	return b.result
}

// Ready reports whether the targeting step may be left: either there are no
// conditions or the current set has been tested.
func (b *Builder) Ready() bool {
	return len(b.conditions) == 0 || b.tested
}

// AddCondition appends a condition on the first schema column with
// operator == and an empty value.
func (b *Builder) AddCondition() (Condition, error) {
	col, ok := b.schema.First()
	if !ok {
		return Condition{}, ErrEmptySchema
	}
	c := Condition{
		ID:       b.newID(),
		Column:   col.Name,
		Operator: core.OpEqual,
	}
	b.conditions = append(b.conditions, c)
	b.invalidate()
	return c, nil
}

// UpdateCondition changes one field of a condition. Changing the column
// resets the operator to ==.
func (b *Builder) UpdateCondition(id string, field Field, value string) error {
	i := b.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrConditionNotFound, id)
	}
	c := &b.conditions[i]

	switch field {
	case FieldColumn:
		col, ok := b.schema.Lookup(value)
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownColumn, value)
		}
		c.Column = col.Name
		c.Operator = core.OpEqual
	case FieldOperator:
		op, ok := ParseOperator(strings.TrimSpace(value))
		col, _ := b.schema.Lookup(c.Column)
		if !ok || !Allowed(col.Type, op) {
			return &OperatorNotAllowedError{Column: c.Column, Type: col.Type, Operator: core.Operator(value)}
		}
		c.Operator = op
	case FieldValue:
		c.Value = value
	default:
		return fmt.Errorf("%w %q", ErrUnknownField, field)
	}

	b.invalidate()
	return nil
}

// RemoveCondition deletes a condition. Removing the last condition leaves
// the builder implicitly tested.
func (b *Builder) RemoveCondition(id string) error {
	i := b.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrConditionNotFound, id)
	}
	b.conditions = slices.Delete(b.conditions, i, i+1)
	b.invalidate()
	if len(b.conditions) == 0 {
		b.tested = true
	}
	return nil
}

// SetLogic sets the condition join.
func (b *Builder) SetLogic(logic core.FilterLogic) error {
	logic = core.FilterLogic(strings.ToUpper(strings.TrimSpace(string(logic))))
	if !logic.Valid() {
		return ErrInvalidLogic
	}
	if logic != b.logic {
		b.logic = logic
		b.invalidate()
	}
	return nil
}

// MarkTested records a successful server-side test of the current conditions.
func (b *Builder) MarkTested(result core.FilterResult) {
	b.tested = true
	b.result = &result
}

// Clear removes all conditions.
func (b *Builder) Clear() {
	b.conditions = nil
	b.logic = core.LogicAnd
	b.tested = false
	b.result = nil
}

func (b *Builder) invalidate() {
	b.tested = false
	b.result = nil
}

func (b *Builder) index(id string) int {
	return slices.IndexFunc(b.conditions, func(c Condition) bool { return c.ID == id })
}
