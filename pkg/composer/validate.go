package composer

import (
	"github.com/campaignhq/campaignhq/pkg/core"
)

// ExtractVariables returns the distinct placeholder names in text, in order
// of first appearance. Names are compared case-insensitively and the first
// spelling wins.
func ExtractVariables(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, tok := range NewLexer(text).Tokenize() {
		if tok.Type != TokenPlaceholder {
			continue
		}
		key := core.NormalizeName(tok.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, tok.Value)
	}
	return names
}

// UnknownVariables returns the placeholder names in text that are not schema columns.
func UnknownVariables(text string, schema core.Schema) []string {
	var unknown []string
	for _, name := range ExtractVariables(text) {
		if !schema.Has(name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateVariables fails with *UnknownTemplateVariableError when text uses
// a placeholder that is not a schema column.
func ValidateVariables(text string, schema core.Schema) error {
	if unknown := UnknownVariables(text, schema); len(unknown) > 0 {
		return &UnknownTemplateVariableError{Names: unknown}
	}
	return nil
}
