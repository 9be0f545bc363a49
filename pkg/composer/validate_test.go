package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignhq/campaignhq/pkg/core"
)

func TestValidateVariables(t *testing.T) {
	schema := core.Schema{{Name: "email", Type: core.ColumnString}}

	t.Run("reports unknown names", func(t *testing.T) {
		err := ValidateVariables("Hi {{email}} re {{phone}}", schema)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownTemplateVariable)

		var varErr *UnknownTemplateVariableError
		require.ErrorAs(t, err, &varErr)
		assert.Equal(t, []string{"phone"}, varErr.Names)
		assert.Contains(t, err.Error(), "phone")
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.NoError(t, ValidateVariables("Hi {{EMAIL}}", schema))
	})

	t.Run("no placeholders", func(t *testing.T) {
		assert.NoError(t, ValidateVariables("plain text", schema))
	})

	t.Run("document validation", func(t *testing.T) {
		d := Deserialize("{{email}} {{phone}}", []string{"email", "phone"}, schema)
		assert.ErrorIs(t, d.Validate(), ErrUnknownTemplateVariable)
	})
}

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"no vars", nil},
		{"{{a}} {{A}} {{ b }}", []string{"a", "b"}},
		{"{{}} {{x", nil},
		{"{{first name}} and {{last_name}}", []string{"first name", "last_name"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractVariables(tt.input))
		})
	}
}

func TestUnknownVariables(t *testing.T) {
	schema := core.Schema{{Name: "Name"}, {Name: "City"}}
	assert.Equal(t, []string{"Zip", "phone"}, UnknownVariables("{{name}} {{Zip}} {{city}} {{phone}}", schema))
	assert.Empty(t, UnknownVariables("{{NAME}}", schema))
}
