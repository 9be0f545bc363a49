package wizard

import (
	"github.com/campaignhq/campaignhq/pkg/audience"
	"github.com/campaignhq/campaignhq/pkg/core"
)

// Review summarizes what Submit would create.
type Review struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Dataset     *Dataset             `json:"dataset,omitempty"`
	Logic       core.FilterLogic     `json:"logic"`
	Conditions  []audience.Condition `json:"conditions"`
	// Audience is the number of targeted rows, or -1 when the filter has
	// conditions that were never tested.
	Audience int `json:"audience"`
	// ZeroMatch is set when a tested filter matched no rows; creating the
	// template should be confirmed.
	ZeroMatch  bool     `json:"zero_match"`
	Body       string   `json:"template"`
	Variables  []string `json:"variables"`
	PreviewRow core.Row `json:"preview_row,omitempty"`
	Preview    string   `json:"preview"`
}

// Review builds the review summary from the current state.
func (w *Wizard) Review() Review {
	r := Review{
		Name:        w.name,
		Description: w.description,
		Dataset:     w.dataset,
		Logic:       w.filter.Logic(),
		Conditions:  w.filter.Conditions(),
		Audience:    -1,
		Body:        w.doc.Serialize(),
		Variables:   w.doc.Variables(),
	}
	if r.Description == "" {
		r.Description = DefaultDescription
	}

	result := w.filter.Result()
	switch {
	case w.filter.Len() == 0:
		if w.dataset != nil {
			r.Audience = w.dataset.RowCount
		}
	case result != nil:
		r.Audience = result.MatchedCount
		r.ZeroMatch = result.MatchedCount == 0
	}

	if result != nil && len(result.Rows()) > 0 {
		r.PreviewRow = result.Rows()[0]
	} else if w.dataset != nil && len(w.dataset.SampleRows) > 0 {
		r.PreviewRow = w.dataset.SampleRows[0]
	}
	if r.PreviewRow != nil {
		r.Preview = w.doc.RenderPreview(r.PreviewRow)
	} else {
		r.Preview = r.Body
	}
	return r
}
