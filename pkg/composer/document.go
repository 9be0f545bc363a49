package composer

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// nbsp is the non-breaking space the web editor used between pills and text.
const nbsp = '\u00a0'

// Document is an editable message body bound to a dataset schema.
// The zero value is not usable; create documents with New.
type Document struct {
	schema   core.Schema
	units    []unit
	caret    int
	detached bool
	text     string // cached canonical serialization
}

// New creates an empty document bound to schema.
func New(schema core.Schema) *Document {
	return &Document{schema: schema}
}

// FromSegments rebuilds a document from persisted segments.
// Every pill must reference a column in schema.
func FromSegments(schema core.Schema, segments []Segment, caret int) (*Document, error) {
	d := New(schema)
	for _, seg := range segments {
		switch seg.Kind {
		case SegmentText:
			d.units = append(d.units, textUnits(seg.Text)...)
		case SegmentVariable:
			if !schema.Has(seg.Column) {
				return nil, &InvalidColumnReferenceError{Column: seg.Column}
			}
			d.units = append(d.units, unit{kind: SegmentVariable, column: seg.Column})
		case SegmentSeparator:
			d.units = append(d.units, unit{kind: SegmentSeparator})
		default:
			return nil, fmt.Errorf("invalid segment kind %d", int(seg.Kind))
		}
	}
	d.SetCaret(caret)
	d.refresh()
	return d, nil
}

// Schema returns the schema the document is bound to.
func (d *Document) Schema() core.Schema {
	return d.schema
}

// Len returns the number of caret positions in the document.
func (d *Document) Len() int {
	return len(d.units)
}

// Caret returns the caret index.
func (d *Document) Caret() int {
	return d.caret
}

// SetCaret moves the caret, clamping it to the document bounds, and attaches it.
func (d *Document) SetCaret(i int) {
	d.caret = max(0, min(i, len(d.units)))
	d.detached = false
}

// Detach marks the caret as outside the editable surface.
// The next insertion goes to the end of the document.
func (d *Document) Detach() {
	d.detached = true
}

// Detached reports whether the caret is outside the editable surface.
func (d *Document) Detached() bool {
	return d.detached
}

// MoveLeft moves the caret one position left. Pills are skipped as a whole.
func (d *Document) MoveLeft() { d.SetCaret(d.insertionPoint() - 1) }

// MoveRight moves the caret one position right.
func (d *Document) MoveRight() { d.SetCaret(d.insertionPoint() + 1) }

// MoveToStart moves the caret before the first position.
func (d *Document) MoveToStart() { d.SetCaret(0) }

// MoveToEnd moves the caret after the last position.
func (d *Document) MoveToEnd() { d.SetCaret(len(d.units)) }

// InsertText inserts literal text at the caret.
// Carriage returns are normalized to line feeds.
func (d *Document) InsertText(s string) {
	if s == "" {
		return
	}
	d.insert(textUnits(normalizeBreaks(s)))
}

// LineBreak inserts a literal line break. The document is flat: no block
// structure is ever created.
func (d *Document) LineBreak() {
	d.insert([]unit{{kind: SegmentText, r: '\n'}})
}

// InsertVariable inserts a pill for column at the caret, or at the end when
// the caret is detached, followed by one separator. The caret ends up after
// the separator.
func (d *Document) InsertVariable(column string) error {
	col, ok := d.schema.Lookup(column)
	if !ok {
		return &InvalidColumnReferenceError{Column: column}
	}
	d.insert([]unit{
		{kind: SegmentVariable, column: col.Name},
		{kind: SegmentSeparator},
	})
	return nil
}

// Backspace removes the position before the caret. A pill is removed whole.
// It reports whether anything was removed.
func (d *Document) Backspace() bool {
	at := d.insertionPoint()
	if at == 0 {
		d.SetCaret(0)
		return false
	}
	d.units = append(d.units[:at-1], d.units[at:]...)
	d.SetCaret(at - 1)
	d.refresh()
	return true
}

// Delete removes the position after the caret. A pill is removed whole.
func (d *Document) Delete() bool {
	at := d.insertionPoint()
	if at >= len(d.units) {
		d.SetCaret(at)
		return false
	}
	d.units = append(d.units[:at], d.units[at+1:]...)
	d.SetCaret(at)
	d.refresh()
	return true
}

// Clear empties the document.
func (d *Document) Clear() {
	d.units = nil
	d.caret = 0
	d.detached = false
	d.refresh()
}

// Segments returns the document as runs of text, pills and separators.
func (d *Document) Segments() []Segment {
	var segs []Segment
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			segs = append(segs, Text(run.String()))
			run.Reset()
		}
	}
	for _, u := range d.units {
		switch u.kind {
		case SegmentText:
			run.WriteRune(u.r)
		case SegmentVariable:
			flush()
			segs = append(segs, Variable(u.column))
		case SegmentSeparator:
			flush()
			segs = append(segs, Separator())
		}
	}
	flush()
	return segs
}

// Variables returns the distinct pill columns in document order.
func (d *Document) Variables() []string {
	var names []string
	seen := make(map[string]bool)
	for _, u := range d.units {
		if u.kind != SegmentVariable {
			continue
		}
		key := core.NormalizeName(u.column)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, u.column)
	}
	return names
}

// Text returns the cached canonical serialization.
func (d *Document) Text() string {
	return d.text
}

// IsEmpty reports whether the serialized body is empty.
func (d *Document) IsEmpty() bool {
	return d.text == ""
}

// Clone returns an independent copy of the document.
func (d *Document) Clone() *Document {
	c := *d
	c.units = append([]unit(nil), d.units...)
	return &c
}

// Validate checks the serialized body against the bound schema.
func (d *Document) Validate() error {
	return ValidateVariables(d.text, d.schema)
}

type documentJSON struct {
	Segments []Segment `json:"segments"`
	Caret    int       `json:"caret"`
}

// MarshalJSON encodes the document content and caret. The schema is not
// included; it travels with the wizard draft.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(documentJSON{Segments: d.Segments(), Caret: d.caret})
}

// UnmarshalDocument decodes a document produced by MarshalJSON and binds it to schema.
func UnmarshalDocument(data []byte, schema core.Schema) (*Document, error) {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return FromSegments(schema, raw.Segments, raw.Caret)
}

// insertionPoint returns where the next edit applies.
func (d *Document) insertionPoint() int {
	if d.detached {
		return len(d.units)
	}
	return d.caret
}

func (d *Document) insert(us []unit) {
	at := d.insertionPoint()
	out := make([]unit, 0, len(d.units)+len(us))
	out = append(out, d.units[:at]...)
	out = append(out, us...)
	out = append(out, d.units[at:]...)
	d.units = out
	d.SetCaret(at + len(us))
	d.refresh()
}

func (d *Document) refresh() {
	d.text = d.Serialize()
}

func textUnits(s string) []unit {
	us := make([]unit, 0, len(s))
	for _, r := range s {
		us = append(us, unit{kind: SegmentText, r: r})
	}
	return us
}

func normalizeBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
