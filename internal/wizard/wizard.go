package wizard

import (
	"strings"

	"github.com/campaignhq/campaignhq/pkg/audience"
	"github.com/campaignhq/campaignhq/pkg/composer"
	"github.com/campaignhq/campaignhq/pkg/core"
)

// Dataset is the uploaded dataset a template is built from.
// Path is the local CSV, needed again when the filter is tested.
type Dataset struct {
	ID         string      `json:"temp_dataset_id"`
	Path       string      `json:"path"`
	Name       string      `json:"name"`
	RowCount   int         `json:"row_count"`
	Schema     core.Schema `json:"schema"`
	SampleRows []core.Row  `json:"sample_rows,omitempty"`
}

// Wizard is the step state machine. It performs no I/O.
type Wizard struct {
	step        Step
	dataset     *Dataset
	filter      *audience.Builder
	name        string
	description string
	doc         *composer.Document
}

// New returns a wizard at the first step.
func New() *Wizard {
	return &Wizard{
		step:   StepUploadData,
		filter: audience.NewBuilder(nil),
		doc:    composer.New(nil),
	}
}

// Step returns the active step.
func (w *Wizard) Step() Step { return w.step }

// Dataset returns the uploaded dataset, or nil.
func (w *Wizard) Dataset() *Dataset { return w.dataset }

// Schema returns the dataset schema, or nil before upload.
func (w *Wizard) Schema() core.Schema {
	if w.dataset == nil {
		return nil
	}
	return w.dataset.Schema
}

// Filter returns the audience filter builder.
func (w *Wizard) Filter() *audience.Builder { return w.filter }

// Document returns the message document.
func (w *Wizard) Document() *composer.Document { return w.doc }

// Name returns the template name.
func (w *Wizard) Name() string { return w.name }

// Description returns the template description.
func (w *Wizard) Description() string { return w.description }

// Body returns the serialized message body.
func (w *Wizard) Body() string { return w.doc.Serialize() }

// SetDataset replaces the dataset. The filter starts over on the new
// schema; the message keeps its text and pills are re-bound by column name,
// so references to columns the new dataset lacks become literal placeholders.
func (w *Wizard) SetDataset(ds Dataset) {
	w.dataset = &ds
	w.filter = audience.NewBuilder(ds.Schema)
	w.doc = composer.Parse(w.doc.Serialize(), ds.Schema)
}

// SetName sets the template name.
func (w *Wizard) SetName(name string) { w.name = strings.TrimSpace(name) }

// SetDescription sets the template description.
func (w *Wizard) SetDescription(desc string) { w.description = strings.TrimSpace(desc) }

// SetDocument replaces the message document.
func (w *Wizard) SetDocument(doc *composer.Document) { w.doc = doc }

// Guard returns nil when step may be left with Next.
func (w *Wizard) Guard(step Step) error {
	switch step {
	case StepUploadData:
		if w.dataset == nil || w.dataset.ID == "" {
			return &GuardError{Step: step, Reason: "upload a dataset first"}
		}
	case StepTargetAudience:
		if !w.filter.Ready() {
			return &GuardError{Step: step, Reason: "test the filter or remove all conditions"}
		}
	case StepComposeMessage:
		if w.name == "" {
			return &GuardError{Step: step, Reason: "template name is required"}
		}
		if w.doc.Serialize() == "" {
			return &GuardError{Step: step, Reason: "message body is required"}
		}
	case StepReviewAndCreate:
		return ErrAtLastStep
	}
	return nil
}

// CanProceed reports whether Next would succeed.
func (w *Wizard) CanProceed() bool {
	return w.Guard(w.step) == nil
}

// Next advances one step when the current step's guard holds.
func (w *Wizard) Next() error {
	if err := w.Guard(w.step); err != nil {
		return err
	}
	w.step++
	return nil
}

// Back returns to the previous step.
func (w *Wizard) Back() error {
	if w.step <= StepUploadData {
		return ErrAtFirstStep
	}
	w.step--
	return nil
}

// JumpTo moves directly to an earlier step. Jumping to the current step is
// a no-op; later steps are only reachable through Next.
func (w *Wizard) JumpTo(step Step) error {
	switch {
	case !step.Valid():
		return ErrForwardJump
	case step > w.step:
		return ErrForwardJump
	}
	w.step = step
	return nil
}
