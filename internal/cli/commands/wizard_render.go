package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/campaignhq/campaignhq/internal/cli/output"
	"github.com/campaignhq/campaignhq/internal/wizard"
	"github.com/campaignhq/campaignhq/pkg/audience"
	"github.com/campaignhq/campaignhq/pkg/composer"
	"github.com/campaignhq/campaignhq/pkg/core"
)

// maxPreviewRows caps how many rows tables print.
const maxPreviewRows = 10

// wizardStatus is the JSON shape of `wizard status`.
type wizardStatus struct {
	Session     string               `json:"session"`
	Recovered   bool                 `json:"recovered"`
	Step        int                  `json:"step"`
	StepName    string               `json:"step_name"`
	CanProceed  bool                 `json:"can_proceed"`
	Blocked     string               `json:"blocked,omitempty"`
	Dataset     *wizard.Dataset      `json:"dataset,omitempty"`
	Logic       core.FilterLogic     `json:"logic"`
	Conditions  []audience.Condition `json:"conditions"`
	Tested      bool                 `json:"tested"`
	Matched     *int                 `json:"matched_count,omitempty"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Body        string               `json:"template"`
	Variables   []string             `json:"variables"`
}

func statusOf(s *wizard.Session) wizardStatus {
	w := s.Wizard()
	st := wizardStatus{
		Session:     s.Name(),
		Recovered:   s.Recovered(),
		Step:        int(w.Step()),
		StepName:    w.Step().String(),
		CanProceed:  w.CanProceed(),
		Dataset:     w.Dataset(),
		Logic:       w.Filter().Logic(),
		Conditions:  w.Filter().Conditions(),
		Tested:      w.Filter().Tested(),
		Name:        w.Name(),
		Description: w.Description(),
		Body:        w.Body(),
		Variables:   w.Document().Variables(),
	}
	if err := w.Guard(w.Step()); err != nil && w.Step() != wizard.StepReviewAndCreate {
		st.Blocked = err.Error()
	}
	if res := w.Filter().Result(); res != nil {
		n := res.MatchedCount
		st.Matched = &n
	}
	if st.Conditions == nil {
		st.Conditions = []audience.Condition{}
	}
	if st.Variables == nil {
		st.Variables = []string{}
	}
	return st
}

func renderWizardStatus(r *output.Renderer, s *wizard.Session) error {
	st := statusOf(s)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(st)
	}

	w := s.Wizard()
	r.Header(1, "Campaign Wizard")
	r.KeyValue("Session", st.Session)
	if st.Recovered {
		r.Muted("Recovered saved draft")
	}
	renderSteps(r, w)
	r.Println()

	renderDataset(r, w.Dataset())
	r.Println()
	renderFilter(r, w.Filter())
	r.Println()

	r.Header(2, "Message")
	r.KeyValue("Name", orNone(st.Name))
	r.KeyValue("Description", orNone(st.Description))
	r.KeyValue("Body", orNone(st.Body))
	return nil
}

func renderSteps(r *output.Renderer, w *wizard.Wizard) {
	current := w.Step()
	for _, step := range wizard.Steps() {
		label := fmt.Sprintf("%d. %s", int(step), step.Title())
		switch {
		case step < current:
			r.StatusLine(label, "done", "")
		case step > current:
			r.StatusLine(label, "pending", "")
		default:
			detail := ""
			if err := w.Guard(step); err != nil && step != wizard.StepReviewAndCreate {
				detail = err.Error()
			}
			status := "current"
			if detail != "" {
				status = "blocked"
			}
			r.StatusLine(label, status, detail)
		}
	}
}

func renderStepChange(r *output.Renderer, w *wizard.Wizard) {
	step := w.Step()
	r.Success(fmt.Sprintf("Step %d/%d: %s", int(step), len(wizard.Steps()), step.Title()))
}

func renderDataset(r *output.Renderer, ds *wizard.Dataset) {
	r.Header(2, "Dataset")
	if ds == nil {
		r.Muted("No dataset uploaded")
		return
	}
	r.KeyValue("File", ds.Name)
	r.KeyValue("Rows", strconv.Itoa(ds.RowCount))
	r.KeyValue("Columns", schemaSummary(ds.Schema))
}

func schemaSummary(schema core.Schema) string {
	parts := make([]string, len(schema))
	for i, col := range schema {
		parts[i] = fmt.Sprintf("%s (%s)", col.Name, col.Type)
	}
	return strings.Join(parts, ", ")
}

func renderFilter(r *output.Renderer, b *audience.Builder) {
	r.Header(2, "Audience")
	if b.Len() == 0 {
		r.Muted("No conditions: every row is targeted")
		return
	}
	r.KeyValue("Logic", string(b.Logic()))
	renderConditions(r, b.Conditions())
	switch res := b.Result(); {
	case res != nil:
		r.KeyValue("Matched", strconv.Itoa(res.MatchedCount))
	case !b.Tested():
		r.Muted("Not tested since the last change")
	}
}

func renderConditions(r *output.Renderer, conds []audience.Condition) {
	rows := make([][]string, len(conds))
	for i, c := range conds {
		rows[i] = []string{strconv.Itoa(i + 1), shortID(c.ID), c.Column, string(c.Operator), c.Value}
	}
	r.Table([]string{"#", "ID", "Column", "Operator", "Value"}, rows)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// renderRows prints up to maxPreviewRows rows in schema column order.
func renderRows(r *output.Renderer, schema core.Schema, rows []core.Row) {
	if len(rows) == 0 {
		r.Muted("No rows")
		return
	}
	names := schema.Names()
	if len(names) == 0 {
		for k := range rows[0] {
			names = append(names, k)
		}
	}
	limit := min(len(rows), maxPreviewRows)
	out := make([][]string, limit)
	for i := range limit {
		cells := make([]string, len(names))
		for j, name := range names {
			if v, ok := rows[i].Get(name); ok && v != nil {
				cells[j] = composer.FormatValue(v)
			}
		}
		out[i] = cells
	}
	r.Table(names, out)
	if len(rows) > limit {
		r.Muted(fmt.Sprintf("... %d more rows", len(rows)-limit))
	}
}

// renderPreview renders doc against row, highlighting substituted values.
func renderPreview(r *output.Renderer, doc *composer.Document, row core.Row) string {
	styles := r.Styles()
	return doc.RenderPreviewWith(row, func(value string, missing bool) string {
		if missing {
			return styles.Missing.Render(value)
		}
		return styles.Pill.Render(value)
	})
}

func renderReview(r *output.Renderer, w *wizard.Wizard) error {
	rv := w.Review()
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(rv)
	}

	r.Header(1, "Review & Create")
	r.KeyValue("Name", orNone(rv.Name))
	r.KeyValue("Description", rv.Description)
	if rv.Dataset != nil {
		r.KeyValue("Dataset", fmt.Sprintf("%s (%d rows)", rv.Dataset.Name, rv.Dataset.RowCount))
	}
	switch {
	case rv.Audience < 0:
		r.KeyValue("Audience", "untested")
	case len(rv.Conditions) == 0:
		r.KeyValue("Audience", fmt.Sprintf("all %d rows", rv.Audience))
	default:
		r.KeyValue("Audience", fmt.Sprintf("%d rows matching %d condition(s) joined by %s", rv.Audience, len(rv.Conditions), rv.Logic))
	}
	r.KeyValue("Template", orNone(rv.Body))
	if len(rv.Variables) > 0 {
		r.KeyValue("Variables", strings.Join(rv.Variables, ", "))
	}
	r.Println()
	r.Header(2, "Preview")
	if rv.PreviewRow != nil {
		r.Println(renderPreview(r, w.Document(), rv.PreviewRow))
	} else {
		r.Println(rv.Preview)
	}
	if rv.ZeroMatch {
		r.Println()
		r.Warning("the filter matched no rows")
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
