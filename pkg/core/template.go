package core

// TemplateStatus is the lifecycle state of a stored template version.
type TemplateStatus string

// Template statuses.
const (
	TemplateDraft     TemplateStatus = "draft"
	TemplatePublished TemplateStatus = "published"
)

// Template is a stored campaign template (latest version of a logical id).
type Template struct {
	LogicalID     string         `json:"logical_id"`
	Version       int            `json:"version"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Status        TemplateStatus `json:"status"`
	Body          string         `json:"template"`
	Variables     []string       `json:"variables"`
	Filter        *FilterPayload `json:"filter_dsl,omitempty"`
	DatasetID     int64          `json:"dataset_id,omitempty"`
	DatasetSchema Schema         `json:"dataset_schema,omitempty"`
	SchemaAlt     Schema         `json:"schema,omitempty"`
	UpdatedAt     *Timestamp     `json:"updated_at,omitempty"`
}

// ColumnSchema returns the dataset schema attached to the template, if any.
func (t *Template) ColumnSchema() Schema {
	if len(t.DatasetSchema) > 0 {
		return t.DatasetSchema
	}
	return t.SchemaAlt
}

// CreateTemplateRequest is the body of POST /campaign-template/.
// Filter is always serialized; nil encodes as JSON null ("all rows").
type CreateTemplateRequest struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	TempDatasetID string         `json:"temp_dataset_id"`
	Body          string         `json:"template"`
	Filter        *FilterPayload `json:"filter_definition"`
}

// CreateTemplateResult is the backend's answer to a template creation.
type CreateTemplateResult struct {
	LogicalID string `json:"logical_id"`
	Version   int    `json:"version"`
	DatasetID int64  `json:"dataset_id"`
}

// UpdateTemplateRequest is the body of PUT /campaign-template/{id}.
// Every update creates a new draft version on the server.
type UpdateTemplateRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Body        string         `json:"template"`
	Filter      *FilterPayload `json:"filter_dsl"`
}

// UpdateTemplateResult is the backend's answer to a template update.
type UpdateTemplateResult struct {
	LogicalID string `json:"logical_id"`
	Version   int    `json:"version"`
}
