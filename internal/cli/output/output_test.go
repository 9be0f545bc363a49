package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(mode Mode, tty bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, tty, mode), out, errOut
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		mode Mode
		tty  bool
		want Mode
	}{
		{ModeAuto, true, ModeText},
		{ModeAuto, false, ModeMarkdown},
		{"", false, ModeMarkdown},
		{ModeText, false, ModeText},
		{ModeMarkdown, true, ModeMarkdown},
		{ModeJSON, true, ModeJSON},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r, _, _ := newTestRenderer(tt.mode, tt.tty)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestModeValid(t *testing.T) {
	for _, m := range Modes() {
		assert.True(t, Mode(m).Valid(), m)
	}
	assert.True(t, Mode("").Valid())
	assert.False(t, Mode("yaml").Valid())
}

func TestRenderer_Markdown(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeMarkdown, false)

	r.Header(1, "Templates")
	r.StatusLine("tpl-1", "published", "v2")
	r.KeyValue("Name", "Welcome")
	r.Muted("nothing else")
	r.Warning("careful")

	got := out.String()
	assert.Contains(t, got, "# Templates\n")
	assert.Contains(t, got, "- **tpl-1**: published (v2)")
	assert.Contains(t, got, "- **Name:** Welcome")
	assert.Contains(t, got, "_nothing else_")
	assert.NotContains(t, got, "\x1b[")
	assert.Equal(t, "Warning: careful\n", errOut.String())
}

func TestRenderer_TableMarkdown(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)

	r.Table([]string{"ID", "Name"}, [][]string{{"1", "a|b"}, {"2", "multi\nline"}})

	assert.Equal(t, "| ID | Name |\n| --- | --- |\n| 1 | a\\|b |\n| 2 | multi line |\n\n", out.String())
}

func TestRenderer_TableText(t *testing.T) {
	r, out, _ := newTestRenderer(ModeText, false)

	r.Table([]string{"ID", "Name"}, [][]string{{"1", "Asha"}})

	assert.Contains(t, out.String(), "Asha")
	assert.Contains(t, out.String(), "┌")
}

func TestRenderer_JSON(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON, false)

	require.NoError(t, r.JSON(map[string]int{"total": 3}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 3, got["total"])
}

func TestRenderer_PlainWithoutTTY(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeText, false)

	r.Success("done")
	r.Error("broken")

	assert.Equal(t, "done\n", out.String())
	assert.Equal(t, "Error: broken\n", errOut.String())
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Review & Create", Title("review & create"))
	assert.Equal(t, "In Progress", Title("in_progress"))
}
