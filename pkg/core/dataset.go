package core

// UploadResult is returned by the temporary dataset upload endpoint.
type UploadResult struct {
	TempDatasetID string `json:"temp_dataset_id"`
	Schema        Schema `json:"schema"`
	PreviewRows   []Row  `json:"preview_rows,omitempty"`
	SampleRows    []Row  `json:"sample_rows,omitempty"`
	RowCount      int    `json:"row_count"`
}

// Rows returns the preview rows, accepting either field name the backend uses.
func (r *UploadResult) Rows() []Row {
	if len(r.PreviewRows) > 0 {
		return r.PreviewRows
	}
	return r.SampleRows
}
