package core

// FilterLogic joins filter conditions.
type FilterLogic string

// Filter logic operators.
const (
	LogicAnd FilterLogic = "AND"
	LogicOr  FilterLogic = "OR"
)

// Valid reports whether the logic is AND or OR.
func (l FilterLogic) Valid() bool {
	return l == LogicAnd || l == LogicOr
}

// Operator is a filter comparison operator.
type Operator string

// Filter operators understood by the backend filter engine.
const (
	OpEqual        Operator = "=="
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
	OpContains     Operator = "contains"
)

// ConditionPayload is one condition as sent to the backend.
// Value is a float64 for numeric columns and a string otherwise.
type ConditionPayload struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// FilterPayload is the filter definition sent to the backend.
// A nil *FilterPayload means "no filter, target every row".
type FilterPayload struct {
	Logic      FilterLogic        `json:"logic"`
	Conditions []ConditionPayload `json:"conditions"`
}

// FilterResult is the backend's answer to a test-filter request.
type FilterResult struct {
	MatchedCount int    `json:"matched_count"`
	MatchedRows  []Row  `json:"matched_rows"`
	SampleRows   []Row  `json:"sample_rows,omitempty"`
	Schema       Schema `json:"schema,omitempty"`
}

// Rows returns matched rows, falling back to sample rows for older servers.
func (r *FilterResult) Rows() []Row {
	if len(r.MatchedRows) > 0 {
		return r.MatchedRows
	}
	return r.SampleRows
}
