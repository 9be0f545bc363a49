package wizard

import (
	"encoding/json"
	"fmt"

	"github.com/campaignhq/campaignhq/pkg/audience"
	"github.com/campaignhq/campaignhq/pkg/composer"
)

// CacheKey is the fixed key wizard drafts are stored under.
const CacheKey = "campaign_template_wizard_draft"

// draftVersion is bumped when the draft layout changes incompatibly.
const draftVersion = 1

// Draft is the persisted form of a Wizard.
type Draft struct {
	Version     int             `json:"version"`
	Step        Step            `json:"step"`
	Dataset     *Dataset        `json:"dataset,omitempty"`
	Filter      audience.State  `json:"filter"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Document    json.RawMessage `json:"document"`
	Body        string          `json:"body"`
}

// Snapshot captures the complete wizard state.
func (w *Wizard) Snapshot() (*Draft, error) {
	doc, err := json.Marshal(w.doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return &Draft{
		Version:     draftVersion,
		Step:        w.step,
		Dataset:     w.dataset,
		Filter:      w.filter.State(),
		Name:        w.name,
		Description: w.description,
		Document:    doc,
		Body:        w.doc.Serialize(),
	}, nil
}

// Rehydrate rebuilds a Wizard from a draft.
func Rehydrate(d *Draft) (*Wizard, error) {
	if d.Version != draftVersion {
		return nil, fmt.Errorf("unsupported draft version %d", d.Version)
	}
	if !d.Step.Valid() {
		return nil, fmt.Errorf("invalid draft step %d", d.Step)
	}

	w := New()
	w.step = d.Step
	w.name = d.Name
	w.description = d.Description
	if d.Dataset != nil {
		ds := *d.Dataset
		w.dataset = &ds
	}
	schema := w.Schema()

	filter, err := audience.Restore(schema, d.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to restore filter: %w", err)
	}
	w.filter = filter

	switch {
	case len(d.Document) > 0 && string(d.Document) != "null":
		doc, err := composer.UnmarshalDocument(d.Document, schema)
		if err != nil {
			return nil, fmt.Errorf("failed to restore document: %w", err)
		}
		w.doc = doc
	case d.Body != "":
		w.doc = composer.Parse(d.Body, schema)
	default:
		w.doc = composer.New(schema)
	}
	return w, nil
}

// MarshalDraft encodes a draft for storage.
func MarshalDraft(d *Draft) ([]byte, error) {
	return json.Marshal(d)
}

// UnmarshalDraft decodes a stored draft.
func UnmarshalDraft(data []byte) (*Draft, error) {
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	return &d, nil
}
