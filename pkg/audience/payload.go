package audience

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// Payload builds the filter definition sent to the backend. It returns nil
// when there are no conditions: no filter targets every row.
//
// Column names are normalized the way the backend normalizes CSV headers.
// Values of numeric columns are converted to float64; other values are trimmed.
func (b *Builder) Payload() (*core.FilterPayload, error) {
	if len(b.conditions) == 0 {
		return nil, nil
	}

	p := &core.FilterPayload{
		Logic:      b.logic,
		Conditions: make([]core.ConditionPayload, 0, len(b.conditions)),
	}
	for _, c := range b.conditions {
		cp, err := b.coerce(c)
		if err != nil {
			return nil, err
		}
		p.Conditions = append(p.Conditions, cp)
	}
	return p, nil
}

func (b *Builder) coerce(c Condition) (core.ConditionPayload, error) {
	col, ok := b.schema.Lookup(c.Column)
	if !ok {
		return core.ConditionPayload{}, fmt.Errorf("%w %q", ErrUnknownColumn, c.Column)
	}
	if !Allowed(col.Type, c.Operator) {
		return core.ConditionPayload{}, &OperatorNotAllowedError{Column: col.Name, Type: col.Type, Operator: c.Operator}
	}

	cp := core.ConditionPayload{
		Column:   core.NormalizeName(col.Name),
		Operator: c.Operator,
	}
	value := strings.TrimSpace(c.Value)
	if col.Type.IsNumeric() {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
			err = strconv.ErrRange
		}
		if err != nil {
			return core.ConditionPayload{}, &InvalidValueError{Column: col.Name, Value: c.Value, Err: err}
		}
		cp.Value = f
	} else {
		cp.Value = value
	}
	return cp, nil
}

// FromPayload rebuilds an editable builder from a stored filter definition,
// such as the filter of an existing template. A nil payload gives an empty
// builder. The result is untested.
func FromPayload(schema core.Schema, p *core.FilterPayload) (*Builder, error) {
	if p == nil {
		return NewBuilder(schema), nil
	}
	st := State{Logic: core.FilterLogic(strings.ToUpper(strings.TrimSpace(string(p.Logic))))}
	for _, c := range p.Conditions {
		op := c.Operator
		if parsed, ok := ParseOperator(string(op)); ok {
			op = parsed
		}
		st.Conditions = append(st.Conditions, Condition{
			Column:   c.Column,
			Operator: op,
			Value:    payloadValue(c.Value),
		})
	}
	return Restore(schema, st)
}

// payloadValue turns a decoded payload value back into condition text.
func payloadValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
