package audience

import (
	"slices"
	"strings"

	"github.com/campaignhq/campaignhq/pkg/core"
)

var (
	numericOperators = []core.Operator{
		core.OpEqual,
		core.OpLess,
		core.OpGreater,
		core.OpLessEqual,
		core.OpGreaterEqual,
	}
	textOperators = []core.Operator{
		core.OpEqual,
		core.OpContains,
	}
)

// OperatorsFor returns the operators offered for a column type.
// Numeric columns get ordering comparisons; everything else gets == and contains.
func OperatorsFor(t core.ColumnType) []core.Operator {
	if t.IsNumeric() {
		return slices.Clone(numericOperators)
	}
	return slices.Clone(textOperators)
}

// Allowed reports whether op is in the domain of the column type.
func Allowed(t core.ColumnType, op core.Operator) bool {
	if t.IsNumeric() {
		return slices.Contains(numericOperators, op)
	}
	return slices.Contains(textOperators, op)
}

// ParseOperator maps user input to an operator. "=" and "eq" style aliases
// are accepted for command-line use, in any case.
func ParseOperator(s string) (core.Operator, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "==", "=", "eq":
		return core.OpEqual, true
	case "<", "lt":
		return core.OpLess, true
	case ">", "gt":
		return core.OpGreater, true
	case "<=", "le", "lte":
		return core.OpLessEqual, true
	case ">=", "ge", "gte":
		return core.OpGreaterEqual, true
	case "contains", "~":
		return core.OpContains, true
	default:
		return "", false
	}
}
