package composer

import (
	"strings"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// Serialize converts the document to the canonical placeholder string.
//
// Pills become {{column}}, non-breaking spaces become ordinary spaces and the
// result is trimmed. A separator only produces a space when the next position
// starts a word or a pill, so a separator followed by typed whitespace or
// punctuation never doubles up.
func (d *Document) Serialize() string {
	var sb strings.Builder
	for i, u := range d.units {
		switch u.kind {
		case SegmentText:
			if u.r == nbsp {
				sb.WriteByte(' ')
			} else {
				sb.WriteRune(u.r)
			}
		case SegmentVariable:
			sb.WriteString(Placeholder(u.column))
		case SegmentSeparator:
			if i+1 < len(d.units) && d.units[i+1].isWordStart() {
				sb.WriteByte(' ')
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

// Placeholder returns the canonical placeholder for a column.
func Placeholder(column string) string {
	return "{{" + column + "}}"
}

// Deserialize rebuilds a document from a stored template body.
//
// Only placeholders naming one of variableNames that also exists in schema
// become pills; anything else stays literal text. An empty variableNames
// accepts every schema column. When schema is empty the declared variable
// names are used as a string-typed schema.
func Deserialize(stored string, variableNames []string, schema core.Schema) *Document {
	if len(schema) == 0 {
		schema = core.SchemaFromNames(variableNames)
	}
	declared := make(map[string]bool, len(variableNames))
	for _, name := range variableNames {
		declared[core.NormalizeName(name)] = true
	}
	return build(stored, schema, func(name string) bool {
		return len(declared) == 0 || declared[core.NormalizeName(name)]
	})
}

// Parse builds a document from placeholder text, turning every placeholder
// that names a schema column into a pill.
func Parse(text string, schema core.Schema) *Document {
	return build(text, schema, func(string) bool { return true })
}

func build(text string, schema core.Schema, allow func(string) bool) *Document {
	d := New(schema)
	for _, tok := range NewLexer(normalizeBreaks(text)).Tokenize() {
		switch tok.Type {
		case TokenText:
			d.units = append(d.units, textUnits(tok.Value)...)
		case TokenPlaceholder:
			if _, ok := schema.Lookup(tok.Value); ok && allow(tok.Value) {
				// keep the spelling used in the body
				d.units = append(d.units, unit{kind: SegmentVariable, column: tok.Value})
			} else {
				d.units = append(d.units, textUnits(tok.Raw)...)
			}
		}
	}
	d.caret = len(d.units)
	d.refresh()
	return d
}
