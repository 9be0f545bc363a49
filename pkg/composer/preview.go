package composer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// MissingVariable is rendered in place of a pill whose value the sample row lacks.
const MissingVariable = "Missing Variable"

// RenderPreview renders the document with every pill replaced by the value
// from row. The document itself is never modified.
func (d *Document) RenderPreview(row core.Row) string {
	return d.RenderPreviewWith(row, nil)
}

// RenderPreviewWith is RenderPreview with a decorator applied to every
// substituted value, so terminals can highlight pills. missing is true when
// value is the MissingVariable marker.
func (d *Document) RenderPreviewWith(row core.Row, decorate func(value string, missing bool) string) string {
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
			value, missing := lookupValue(row, u.column)
			if decorate != nil {
				value = decorate(value, missing)
			}
			sb.WriteString(value)
		case SegmentSeparator:
			if i+1 < len(d.units) && d.units[i+1].isWordStart() {
				sb.WriteByte(' ')
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

// RenderText substitutes placeholders in a serialized body with values from
// row. Placeholders not found in row render as MissingVariable.
func RenderText(text string, row core.Row) string {
	var sb strings.Builder
	for _, tok := range NewLexer(text).Tokenize() {
		switch tok.Type {
		case TokenText:
			sb.WriteString(tok.Value)
		case TokenPlaceholder:
			value, _ := lookupValue(row, tok.Value)
			sb.WriteString(value)
		}
	}
	return sb.String()
}

func lookupValue(row core.Row, column string) (string, bool) {
	v, ok := row.Get(column)
	if !ok || v == nil {
		return MissingVariable, true
	}
	return FormatValue(v), false
}

// FormatValue formats a sample cell the way a browser would display it.
// Whole floats print without a fractional part.
func FormatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
