package composer

import "fmt"

// SegmentKind identifies the type of a document segment.
type SegmentKind int

// SegmentKind constants.
const (
	SegmentText      SegmentKind = iota // Literal text run
	SegmentVariable                     // Pill bound to a schema column
	SegmentSeparator                    // Spacer inserted after a pill
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentText:
		return "text"
	case SegmentVariable:
		return "variable"
	case SegmentSeparator:
		return "separator"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name so persisted drafts stay readable.
func (k SegmentKind) MarshalText() ([]byte, error) {
	s := k.String()
	if s == "unknown" {
		return nil, fmt.Errorf("invalid segment kind %d", int(k))
	}
	return []byte(s), nil
}

// UnmarshalText decodes a kind name.
func (k *SegmentKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "text":
		*k = SegmentText
	case "variable":
		*k = SegmentVariable
	case "separator":
		*k = SegmentSeparator
	default:
		return fmt.Errorf("invalid segment kind %q", string(b))
	}
	return nil
}

// Segment is one run of a document: a text run, a pill or a separator.
type Segment struct {
	Kind   SegmentKind `json:"kind"`
	Text   string      `json:"text,omitempty"`
	Column string      `json:"column,omitempty"`
}

// Text creates a literal text segment.
func Text(s string) Segment { return Segment{Kind: SegmentText, Text: s} }

// Variable creates a pill segment bound to a column.
func Variable(column string) Segment { return Segment{Kind: SegmentVariable, Column: column} }

// Separator creates a pill separator segment.
func Separator() Segment { return Segment{Kind: SegmentSeparator} }

// unit is one caret position of a document: a single rune, a pill or a separator.
type unit struct {
	kind   SegmentKind
	r      rune
	column string
}

func (u unit) isWordStart() bool {
	return u.kind == SegmentVariable || (u.kind == SegmentText && isWordRune(u.r))
}
