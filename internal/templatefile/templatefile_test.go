package templatefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignhq/campaignhq/pkg/audience"
	"github.com/campaignhq/campaignhq/pkg/composer"
	"github.com/campaignhq/campaignhq/pkg/core"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func upload() *core.UploadResult {
	return &core.UploadResult{
		TempDatasetID: "ds-1",
		Schema: core.Schema{
			{Name: "name", Type: core.ColumnString},
			{Name: "attendance", Type: core.ColumnNumber},
			{Name: "phone", Type: core.ColumnString},
		},
		RowCount: 3,
	}
}

const validFile = `
name: Attendance reminder
dataset: students.csv
template: "{{name}} has {{attendance}}%."
filter:
  logic: or
  conditions:
    - column: Attendance
      operator: "<"
      value: 75
    - {column: name, operator: contains, value: "a"}
publish: true
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reminder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validFile), 0o600))

	f, err := newValidator(t).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Attendance reminder", f.Name)
	assert.Equal(t, filepath.Join(dir, "students.csv"), f.Dataset)
	assert.True(t, f.Publish)
	require.NotNil(t, f.Filter)
	assert.Len(t, f.Filter.Conditions, 2)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := newValidator(t).Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing template",
			content: "name: x\ndataset: a.csv\n",
			want:    "template",
		},
		{
			name:    "empty name",
			content: "name: ''\ndataset: a.csv\ntemplate: hi\n",
			want:    "/name",
		},
		{
			name:    "unknown key",
			content: "name: x\ndataset: a.csv\ntemplate: hi\nchannel: sms\n",
			want:    "channel",
		},
		{
			name:    "bad logic",
			content: "name: x\ndataset: a.csv\ntemplate: hi\nfilter: {logic: XOR}\n",
			want:    "/filter/logic",
		},
		{
			name:    "condition without value",
			content: "name: x\ndataset: a.csv\ntemplate: hi\nfilter:\n  conditions:\n    - {column: a, operator: '=='}\n",
			want:    "/filter/conditions/0",
		},
		{
			name:    "list value",
			content: "name: x\ndataset: a.csv\ntemplate: hi\nfilter:\n  conditions:\n    - {column: a, operator: '==', value: [1]}\n",
			want:    "/filter/conditions/0/value",
		},
	}
	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Parse("file.yaml", []byte(tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := newValidator(t).Parse("file.yaml", []byte("name: [unclosed"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "failed to parse file.yaml")
}

func TestFile_Request(t *testing.T) {
	f, err := newValidator(t).Parse("file.yaml", []byte(validFile))
	require.NoError(t, err)

	req, err := f.Request(upload())
	require.NoError(t, err)

	assert.Equal(t, &core.CreateTemplateRequest{
		Name:          "Attendance reminder",
		Description:   DefaultDescription,
		TempDatasetID: "ds-1",
		Body:          "{{name}} has {{attendance}}%.",
		Filter: &core.FilterPayload{
			Logic: core.LogicOr,
			Conditions: []core.ConditionPayload{
				{Column: "attendance", Operator: core.OpLess, Value: 75.0},
				{Column: "name", Operator: core.OpContains, Value: "a"},
			},
		},
	}, req)
}

func TestFile_RequestWithoutFilter(t *testing.T) {
	f := &File{Name: "Hello", Description: "greeting", Template: "Hi {{name}}"}

	req, err := f.Request(upload())
	require.NoError(t, err)
	assert.Nil(t, req.Filter)
	assert.Equal(t, "greeting", req.Description)
}

func TestFile_RequestErrors(t *testing.T) {
	tests := []struct {
		name string
		file File
		want error
	}{
		{
			name: "unknown variable",
			file: File{Name: "x", Template: "Hi {{email}}"},
			want: composer.ErrUnknownTemplateVariable,
		},
		{
			name: "unknown column",
			file: File{Name: "x", Template: "Hi", Filter: &Filter{Conditions: []Condition{{Column: "email", Operator: "==", Value: "a"}}}},
			want: audience.ErrUnknownColumn,
		},
		{
			name: "operator outside domain",
			file: File{Name: "x", Template: "Hi", Filter: &Filter{Conditions: []Condition{{Column: "name", Operator: "<", Value: "a"}}}},
			want: audience.ErrOperatorNotAllowed,
		},
		{
			name: "non numeric value",
			file: File{Name: "x", Template: "Hi", Filter: &Filter{Conditions: []Condition{{Column: "attendance", Operator: ">", Value: "high"}}}},
			want: audience.ErrInvalidValue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.file.Request(upload())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
