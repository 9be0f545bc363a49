// Package templatefile loads campaign template definitions from YAML files.
//
// A file names the dataset CSV, the message body and an optional filter:
//
//	name: Attendance reminder
//	dataset: students.csv
//	template: "{{name}} has {{attendance}}%."
//	filter:
//	  logic: AND
//	  conditions:
//	    - {column: attendance, operator: "<", value: 75}
//	publish: true
//
// Files are checked against an embedded JSON Schema before decoding; the
// filter and placeholders are checked against the uploaded dataset schema
// with the same rules the wizard applies.
package templatefile

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/campaignhq/campaignhq/pkg/audience"
	"github.com/campaignhq/campaignhq/pkg/composer"
	"github.com/campaignhq/campaignhq/pkg/core"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "https://campaignhq.dev/schemas/template-file.json"

// ErrInvalid is matched by every schema violation.
var ErrInvalid = errors.New("invalid template file")

// File is a template definition.
type File struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Dataset     string  `yaml:"dataset"`
	Template    string  `yaml:"template"`
	Publish     bool    `yaml:"publish"`
	Filter      *Filter `yaml:"filter"`
}

// Filter is the optional audience filter of a template file.
type Filter struct {
	Logic      string      `yaml:"logic"`
	Conditions []Condition `yaml:"conditions"`
}

// Condition is one filter rule. Value is written as a string or a number.
type Condition struct {
	Column   string `yaml:"column"`
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value"`
}

// ValidationError lists schema violations by location.
type ValidationError struct {
	Path       string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, strings.Join(e.Violations, "; "))
}

// Is reports whether target is ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Validator checks template files against the embedded schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal template file schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add template file schema: %w", err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile template file schema: %w", err)
	}
	return &Validator{schema: sch}, nil
}

// Load reads, validates and decodes the file at path. A relative dataset
// path is resolved against the file's directory.
func (v *Validator) Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	f, err := v.Parse(path, data)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(f.Dataset) {
		f.Dataset = filepath.Join(filepath.Dir(path), f.Dataset)
	}
	return f, nil
}

// Parse validates and decodes YAML content. name labels errors.
func (v *Validator) Parse(name string, data []byte) (*File, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	doc, err := toJSONValue(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return nil, &ValidationError{Path: name, Violations: collectViolations(verr)}
		}
		return nil, fmt.Errorf("failed to validate %s: %w", name, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return &f, nil
}

// toJSONValue round-trips YAML output through JSON so maps, numbers and
// strings take the shapes the schema validator expects.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/" + strings.Join(verr.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}
	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}

// Builder returns the audience filter the file describes, bound to schema.
func (f *File) Builder(schema core.Schema) (*audience.Builder, error) {
	b := audience.NewBuilder(schema)
	if f.Filter == nil {
		return b, nil
	}
	if f.Filter.Logic != "" {
		if err := b.SetLogic(core.FilterLogic(strings.ToUpper(f.Filter.Logic))); err != nil {
			return nil, err
		}
	}
	for i, fc := range f.Filter.Conditions {
		c, err := b.AddCondition()
		if err != nil {
			return nil, err
		}
		updates := []struct {
			field audience.Field
			value string
		}{
			{audience.FieldColumn, fc.Column},
			{audience.FieldOperator, fc.Operator},
			{audience.FieldValue, composer.FormatValue(fc.Value)},
		}
		for _, u := range updates {
			if err := b.UpdateCondition(c.ID, u.field, u.value); err != nil {
				return nil, fmt.Errorf("filter condition %d: %w", i+1, err)
			}
		}
	}
	return b, nil
}

// Request builds the creation request for an uploaded dataset. Placeholders
// and filter conditions are checked against the dataset schema.
func (f *File) Request(upload *core.UploadResult) (*core.CreateTemplateRequest, error) {
	if err := composer.ValidateVariables(f.Template, upload.Schema); err != nil {
		return nil, err
	}
	b, err := f.Builder(upload.Schema)
	if err != nil {
		return nil, err
	}
	filter, err := b.Payload()
	if err != nil {
		return nil, err
	}
	desc := strings.TrimSpace(f.Description)
	if desc == "" {
		desc = DefaultDescription
	}
	return &core.CreateTemplateRequest{
		Name:          strings.TrimSpace(f.Name),
		Description:   desc,
		TempDatasetID: upload.TempDatasetID,
		Body:          f.Template,
		Filter:        filter,
	}, nil
}

// DefaultDescription describes templates created from files without one.
const DefaultDescription = "Created from template file"
