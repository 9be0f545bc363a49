package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportHTML(t *testing.T) {
	tests := []struct {
		name     string
		markup   string
		expected string
		vars     []string
	}{
		{
			name:     "pills with separators",
			markup:   `<span data-variable="Name" contenteditable="false">Name</span>&nbsp;has <span data-variable="Attendance">Attendance</span>&nbsp;%.`,
			expected: "{{Name}} has {{Attendance}}%.",
			vars:     []string{"Name", "Attendance"},
		},
		{
			name:     "br breaks",
			markup:   `Hi<br>there`,
			expected: "Hi\nthere",
		},
		{
			name:     "div blocks",
			markup:   `<div>Hi</div><div>there</div>`,
			expected: "Hi\nthere",
		},
		{
			name:     "paragraph blocks",
			markup:   `<p>Hi</p><p>there</p>`,
			expected: "Hi\nthere",
		},
		{
			name:     "text then block",
			markup:   `Hi<div>there</div>`,
			expected: "Hi\nthere",
		},
		{
			name:     "empty line block",
			markup:   `<div>a</div><div><br></div><div>b</div>`,
			expected: "a\n\nb",
		},
		{
			name:     "unknown variable stays literal",
			markup:   `Call <span data-variable="phone">phone</span>`,
			expected: "Call {{phone}}",
		},
		{
			name:     "schema spelling",
			markup:   `<span data-variable="name">x</span>`,
			expected: "{{Name}}",
			vars:     []string{"Name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ImportHTML(tt.markup, attendanceSchema())
			require.NoError(t, err)

			assert.Equal(t, tt.expected, d.Serialize())
			assert.Equal(t, tt.vars, d.Variables())
			assert.Equal(t, d.Len(), d.Caret())
		})
	}
}
