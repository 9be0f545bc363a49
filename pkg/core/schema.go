package core

import (
	"strings"
)

// ColumnType is the inferred type of a dataset column.
type ColumnType string

// Column types reported by the dataset upload endpoint.
const (
	ColumnString ColumnType = "string"
	ColumnNumber ColumnType = "number"
)

// IsNumeric reports whether the column type accepts ordering comparisons.
func (t ColumnType) IsNumeric() bool {
	return t == ColumnNumber
}

// Column describes one dataset column.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema is the ordered column list of an uploaded dataset.
// It is immutable for the duration of a wizard session.
type Schema []Column

// NormalizeName normalizes a column name the way the backend does:
// byte-order marks are removed, whitespace trimmed and the result lowercased.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "\ufeff", "")))
}

// Lookup finds a column by name, ignoring case and surrounding whitespace.
func (s Schema) Lookup(name string) (Column, bool) {
	key := NormalizeName(name)
	if key == "" {
		return Column{}, false
	}
	for _, col := range s {
		if NormalizeName(col.Name) == key {
			return col, true
		}
	}
	return Column{}, false
}

// Has reports whether the schema contains a column with the given name.
func (s Schema) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, col := range s {
		names[i] = col.Name
	}
	return names
}

// First returns the first column, used as the default for new filter conditions.
func (s Schema) First() (Column, bool) {
	if len(s) == 0 {
		return Column{}, false
	}
	return s[0], true
}

// SchemaFromNames builds a string-typed schema from bare column names.
// Used when a stored template carries its variable list but no dataset schema.
func SchemaFromNames(names []string) Schema {
	schema := make(Schema, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		key := NormalizeName(n)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		schema = append(schema, Column{Name: n, Type: ColumnString})
	}
	return schema
}

// Row is one dataset record as returned by the backend preview endpoints.
type Row map[string]any

// Get returns the value for a column, falling back to a case-insensitive key match.
func (r Row) Get(name string) (any, bool) {
	if v, ok := r[name]; ok {
		return v, true
	}
	if v, ok := r[strings.ToLower(name)]; ok {
		return v, true
	}
	key := NormalizeName(name)
	for k, v := range r {
		if NormalizeName(k) == key {
			return v, true
		}
	}
	return nil, false
}
