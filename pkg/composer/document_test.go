package composer

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignhq/campaignhq/pkg/core"
)

func attendanceSchema() core.Schema {
	return core.Schema{
		{Name: "Attendance", Type: core.ColumnNumber},
		{Name: "Name", Type: core.ColumnString},
	}
}

func buildAttendanceDoc(t *testing.T) *Document {
	t.Helper()
	d := New(attendanceSchema())
	require.NoError(t, d.InsertVariable("Name"))
	d.InsertText(" has ")
	require.NoError(t, d.InsertVariable("Attendance"))
	d.InsertText("%.")
	return d
}

func TestDocument_AttendanceScenario(t *testing.T) {
	d := buildAttendanceDoc(t)

	assert.Equal(t, "{{Name}} has {{Attendance}}%.", d.Serialize())
	assert.Equal(t, d.Serialize(), d.Text(), "cached text tracks every edit")
	assert.Equal(t, "Asha has 72%.", d.RenderPreview(core.Row{"Name": "Asha", "Attendance": 72}))

	want := []Segment{
		Variable("Name"),
		Separator(),
		Text(" has "),
		Variable("Attendance"),
		Separator(),
		Text("%."),
	}
	if diff := cmp.Diff(want, d.Segments()); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestDocument_InsertVariable(t *testing.T) {
	t.Run("unknown column is rejected", func(t *testing.T) {
		d := New(attendanceSchema())
		err := d.InsertVariable("phone")

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidColumnReference))
		var colErr *InvalidColumnReferenceError
		require.ErrorAs(t, err, &colErr)
		assert.Equal(t, "phone", colErr.Column)
		assert.Equal(t, 0, d.Len(), "document must be unchanged")
	})

	t.Run("uses the schema spelling", func(t *testing.T) {
		d := New(attendanceSchema())
		require.NoError(t, d.InsertVariable("name"))
		assert.Equal(t, "{{Name}}", d.Serialize())
	})

	t.Run("caret lands after the separator", func(t *testing.T) {
		d := New(attendanceSchema())
		d.InsertText("ab")
		d.MoveLeft()
		require.NoError(t, d.InsertVariable("Name"))

		assert.Equal(t, 3, d.Caret())
		assert.Equal(t, "a{{Name}} b", d.Serialize())
	})

	t.Run("consecutive pills stay apart", func(t *testing.T) {
		d := New(attendanceSchema())
		require.NoError(t, d.InsertVariable("Name"))
		require.NoError(t, d.InsertVariable("Attendance"))
		assert.Equal(t, "{{Name}} {{Attendance}}", d.Serialize())
	})

	t.Run("detached caret inserts at the end", func(t *testing.T) {
		d := New(attendanceSchema())
		d.InsertText("Hello")
		d.MoveToStart()
		d.Detach()
		require.True(t, d.Detached())

		require.NoError(t, d.InsertVariable("Name"))
		assert.Equal(t, "Hello{{Name}}", d.Serialize())
		assert.False(t, d.Detached())
		assert.Equal(t, d.Len(), d.Caret())
	})
}

func TestDocument_Editing(t *testing.T) {
	t.Run("line break is literal", func(t *testing.T) {
		d := New(nil)
		d.InsertText("Hi")
		d.LineBreak()
		d.InsertText("there")

		assert.Equal(t, "Hi\nthere", d.Serialize())
		assert.Equal(t, []Segment{Text("Hi\nthere")}, d.Segments())
	})

	t.Run("carriage returns are normalized", func(t *testing.T) {
		d := New(nil)
		d.InsertText("a\r\nb\rc")
		assert.Equal(t, "a\nb\nc", d.Serialize())
	})

	t.Run("backspace removes a pill whole", func(t *testing.T) {
		d := New(attendanceSchema())
		d.InsertText("x")
		require.NoError(t, d.InsertVariable("Name"))

		assert.True(t, d.Backspace()) // separator
		assert.Equal(t, "x{{Name}}", d.Serialize())
		assert.True(t, d.Backspace()) // pill
		assert.Equal(t, "x", d.Serialize())
		assert.Equal(t, 1, d.Caret())
	})

	t.Run("backspace at start is a no-op", func(t *testing.T) {
		d := New(nil)
		d.InsertText("a")
		d.MoveToStart()
		assert.False(t, d.Backspace())
		assert.Equal(t, "a", d.Serialize())
	})

	t.Run("delete removes the next position", func(t *testing.T) {
		d := New(attendanceSchema())
		require.NoError(t, d.InsertVariable("Name"))
		d.MoveToStart()

		assert.True(t, d.Delete())
		assert.Empty(t, d.Variables())
		d.MoveToEnd()
		assert.False(t, d.Delete())
	})

	t.Run("caret is clamped", func(t *testing.T) {
		d := New(nil)
		d.InsertText("abc")
		d.SetCaret(10)
		assert.Equal(t, 3, d.Caret())
		d.SetCaret(-4)
		assert.Equal(t, 0, d.Caret())
		d.MoveLeft()
		assert.Equal(t, 0, d.Caret())
	})

	t.Run("whitespace only body is empty", func(t *testing.T) {
		d := New(nil)
		d.InsertText("  \n ")
		assert.True(t, d.IsEmpty())
		d.Clear()
		assert.Equal(t, 0, d.Len())
	})

	t.Run("clone is independent", func(t *testing.T) {
		d := buildAttendanceDoc(t)
		c := d.Clone()
		c.InsertText("!")
		assert.Equal(t, "{{Name}} has {{Attendance}}%.", d.Serialize())
		assert.Equal(t, "{{Name}} has {{Attendance}}%.!", c.Serialize())
	})
}

func TestDocument_Variables(t *testing.T) {
	d := New(attendanceSchema())
	require.NoError(t, d.InsertVariable("Name"))
	require.NoError(t, d.InsertVariable("Attendance"))
	require.NoError(t, d.InsertVariable("name"))

	assert.Equal(t, []string{"Name", "Attendance"}, d.Variables())
}

func TestDocument_JSON(t *testing.T) {
	d := buildAttendanceDoc(t)
	d.SetCaret(2)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"variable"`)

	restored, err := UnmarshalDocument(data, attendanceSchema())
	require.NoError(t, err)

	if diff := cmp.Diff(d.Segments(), restored.Segments()); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, d.Text(), restored.Text())
	assert.Equal(t, 2, restored.Caret())
}

func TestFromSegments_UnknownColumn(t *testing.T) {
	_, err := FromSegments(core.Schema{{Name: "email"}}, []Segment{Variable("phone")}, 0)
	assert.ErrorIs(t, err, ErrInvalidColumnReference)
}

func TestSegmentKind_Text(t *testing.T) {
	for _, k := range []SegmentKind{SegmentText, SegmentVariable, SegmentSeparator} {
		b, err := k.MarshalText()
		require.NoError(t, err)

		var got SegmentKind
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, k, got)
	}

	var k SegmentKind
	assert.Error(t, k.UnmarshalText([]byte("paragraph")))
	_, err := SegmentKind(7).MarshalText()
	assert.Error(t, err)
}
