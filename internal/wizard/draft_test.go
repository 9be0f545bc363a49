package wizard

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignhq/campaignhq/pkg/audience"
	"github.com/campaignhq/campaignhq/pkg/composer"
	"github.com/campaignhq/campaignhq/pkg/core"
)

func TestDraft_RoundTrip(t *testing.T) {
	w := readyWizard(t)
	w.SetDescription("Monthly nudge")
	c, err := w.Filter().AddCondition()
	require.NoError(t, err)
	require.NoError(t, w.Filter().UpdateCondition(c.ID, audience.FieldColumn, "attendance"))
	require.NoError(t, w.Filter().UpdateCondition(c.ID, audience.FieldOperator, "<"))
	require.NoError(t, w.Filter().UpdateCondition(c.ID, audience.FieldValue, "75"))
	w.Filter().MarkTested(core.FilterResult{MatchedCount: 1, MatchedRows: []core.Row{{"name": "Asha"}}})

	doc := composer.New(testSchema)
	require.NoError(t, doc.InsertVariable("name"))
	doc.InsertText("has ")
	require.NoError(t, doc.InsertVariable("attendance"))
	doc.InsertText("%.")
	doc.MoveLeft()
	w.SetDocument(doc)
	require.NoError(t, w.Next())
	require.NoError(t, w.Next())

	d, err := w.Snapshot()
	require.NoError(t, err)
	data, err := MarshalDraft(d)
	require.NoError(t, err)

	decoded, err := UnmarshalDraft(data)
	require.NoError(t, err)
	restored, err := Rehydrate(decoded)
	require.NoError(t, err)

	assert.Equal(t, StepComposeMessage, restored.Step())
	assert.Equal(t, w.Name(), restored.Name())
	assert.Equal(t, w.Description(), restored.Description())
	assert.Equal(t, w.Body(), restored.Body())
	assert.Equal(t, w.Document().Caret(), restored.Document().Caret())
	if diff := cmp.Diff(w.Document().Segments(), restored.Document().Segments()); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(w.Filter().State(), restored.Filter().State()); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, restored.Filter().Tested())

	again, err := restored.Snapshot()
	require.NoError(t, err)
	againData, err := MarshalDraft(again)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(againData), "rehydrate(persist(state)) == state")
}

func TestDraft_FreshWizard(t *testing.T) {
	d, err := New().Snapshot()
	require.NoError(t, err)

	w, err := Rehydrate(d)
	require.NoError(t, err)
	assert.Equal(t, StepUploadData, w.Step())
	assert.Nil(t, w.Dataset())
	assert.True(t, w.Document().IsEmpty())
}

func TestRehydrate_Errors(t *testing.T) {
	valid := func() *Draft {
		d, err := readyWizard(t).Snapshot()
		require.NoError(t, err)
		return d
	}

	tests := []struct {
		name   string
		mutate func(d *Draft)
		errMsg string
	}{
		{name: "version", mutate: func(d *Draft) { d.Version = 99 }, errMsg: "unsupported draft version"},
		{name: "step", mutate: func(d *Draft) { d.Step = 7 }, errMsg: "invalid draft step"},
		{
			name: "condition on a missing column",
			mutate: func(d *Draft) {
				d.Filter.Conditions = []audience.Condition{{ID: "c1", Column: "email", Operator: core.OpEqual}}
			},
			errMsg: "failed to restore filter",
		},
		{
			name: "pill on a missing column",
			mutate: func(d *Draft) {
				d.Document = json.RawMessage(`{"segments":[{"kind":"variable","column":"email"}],"caret":1}`)
			},
			errMsg: "failed to restore document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(d)
			_, err := Rehydrate(d)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRehydrate_BodyFallback(t *testing.T) {
	d, err := readyWizard(t).Snapshot()
	require.NoError(t, err)
	d.Document = nil
	d.Body = "Hello {{name}}"

	w, err := Rehydrate(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, w.Document().Variables())
}

func TestUnmarshalDraft_Invalid(t *testing.T) {
	_, err := UnmarshalDraft([]byte("{not json"))
	assert.ErrorContains(t, err, "failed to decode draft")
}
