package audience

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignhq/campaignhq/pkg/core"
)

func testSchema() core.Schema {
	return core.Schema{
		{Name: "Attendance", Type: core.ColumnNumber},
		{Name: "Name", Type: core.ColumnString},
		{Name: "City", Type: core.ColumnString},
	}
}

// newTestBuilder returns a builder with predictable condition ids.
func newTestBuilder() *Builder {
	b := NewBuilder(testSchema())
	n := 0
	b.newID = func() string {
		n++
		return fmt.Sprintf("c%d", n)
	}
	return b
}

func TestBuilder_AddCondition(t *testing.T) {
	b := newTestBuilder()
	b.MarkTested(core.FilterResult{MatchedCount: 3})

	c, err := b.AddCondition()
	require.NoError(t, err)

	assert.Equal(t, Condition{ID: "c1", Column: "Attendance", Operator: core.OpEqual}, c)
	assert.False(t, b.Tested(), "adding a condition clears the tested flag")
	assert.Nil(t, b.Result())
	assert.False(t, b.Ready())
}

func TestBuilder_AddCondition_EmptySchema(t *testing.T) {
	b := NewBuilder(nil)
	_, err := b.AddCondition()
	assert.ErrorIs(t, err, ErrEmptySchema)
}

func TestBuilder_UpdateCondition(t *testing.T) {
	t.Run("column change resets operator", func(t *testing.T) {
		b := newTestBuilder()
		c, _ := b.AddCondition()
		require.NoError(t, b.UpdateCondition(c.ID, FieldOperator, ">="))
		require.NoError(t, b.UpdateCondition(c.ID, FieldColumn, "name"))

		got := b.Conditions()[0]
		assert.Equal(t, "Name", got.Column)
		assert.Equal(t, core.OpEqual, got.Operator)
	})

	t.Run("any change clears tested", func(t *testing.T) {
		b := newTestBuilder()
		c, _ := b.AddCondition()
		b.MarkTested(core.FilterResult{MatchedCount: 1})
		require.True(t, b.Ready())

		require.NoError(t, b.UpdateCondition(c.ID, FieldValue, "75"))
		assert.False(t, b.Tested())
		assert.False(t, b.Ready())
	})

	t.Run("operator aliases", func(t *testing.T) {
		b := newTestBuilder()
		c, _ := b.AddCondition()
		require.NoError(t, b.UpdateCondition(c.ID, FieldOperator, "lt"))
		assert.Equal(t, core.OpLess, b.Conditions()[0].Operator)
	})

	t.Run("operator input is case insensitive", func(t *testing.T) {
		b := newTestBuilder()
		c, _ := b.AddCondition()
		require.NoError(t, b.UpdateCondition(c.ID, FieldColumn, "name"))
		require.NoError(t, b.UpdateCondition(c.ID, FieldOperator, "Contains"))
		assert.Equal(t, core.OpContains, b.Conditions()[0].Operator)
	})

	t.Run("unknown id", func(t *testing.T) {
		b := newTestBuilder()
		assert.ErrorIs(t, b.UpdateCondition("nope", FieldValue, "x"), ErrConditionNotFound)
	})

	t.Run("unknown column", func(t *testing.T) {
		b := newTestBuilder()
		c, _ := b.AddCondition()
		assert.ErrorIs(t, b.UpdateCondition(c.ID, FieldColumn, "Zip"), ErrUnknownColumn)
		assert.Equal(t, "Attendance", b.Conditions()[0].Column)
	})

	t.Run("unknown field", func(t *testing.T) {
		b := newTestBuilder()
		c, _ := b.AddCondition()
		assert.ErrorIs(t, b.UpdateCondition(c.ID, Field("id"), "x"), ErrUnknownField)
	})
}

func TestBuilder_RemoveCondition(t *testing.T) {
	b := newTestBuilder()
	c1, _ := b.AddCondition()
	c2, _ := b.AddCondition()

	require.NoError(t, b.RemoveCondition(c1.ID))
	assert.Equal(t, 1, b.Len())
	assert.False(t, b.Ready(), "remaining conditions still need a test")

	require.NoError(t, b.RemoveCondition(c2.ID))
	assert.True(t, b.Tested(), "an empty list is implicitly tested")
	assert.True(t, b.Ready())

	assert.ErrorIs(t, b.RemoveCondition(c2.ID), ErrConditionNotFound)
}

func TestBuilder_SetLogic(t *testing.T) {
	b := newTestBuilder()
	_, _ = b.AddCondition()
	b.MarkTested(core.FilterResult{})

	require.NoError(t, b.SetLogic(core.LogicAnd))
	assert.True(t, b.Tested(), "same logic is not a change")

	require.NoError(t, b.SetLogic("or"))
	assert.Equal(t, core.LogicOr, b.Logic())
	assert.False(t, b.Tested())

	assert.ErrorIs(t, b.SetLogic("XOR"), ErrInvalidLogic)
}

func TestBuilder_EmptyFilter(t *testing.T) {
	b := newTestBuilder()

	assert.True(t, b.Ready(), "no conditions needs no test call")
	p, err := b.Payload()
	require.NoError(t, err)
	assert.Nil(t, p)

	data, err := json.Marshal(map[string]any{"filter_definition": p})
	require.NoError(t, err)
	assert.JSONEq(t, `{"filter_definition": null}`, string(data))
}

func TestBuilder_StateRoundTrip(t *testing.T) {
	b := newTestBuilder()
	c, _ := b.AddCondition()
	require.NoError(t, b.UpdateCondition(c.ID, FieldOperator, "<"))
	require.NoError(t, b.UpdateCondition(c.ID, FieldValue, "75"))
	require.NoError(t, b.SetLogic(core.LogicOr))
	b.MarkTested(core.FilterResult{MatchedCount: 2, MatchedRows: []core.Row{{"name": "Asha"}}})

	data, err := json.Marshal(b.State())
	require.NoError(t, err)

	var st State
	require.NoError(t, json.Unmarshal(data, &st))
	restored, err := Restore(testSchema(), st)
	require.NoError(t, err)

	assert.Equal(t, b.Conditions(), restored.Conditions())
	assert.Equal(t, core.LogicOr, restored.Logic())
	assert.True(t, restored.Tested())
	require.NotNil(t, restored.Result())
	assert.Equal(t, 2, restored.Result().MatchedCount)
	assert.Equal(t, "Asha", restored.Result().MatchedRows[0]["name"])
}

func TestRestore_Rejects(t *testing.T) {
	tests := []struct {
		name string
		st   State
		err  error
	}{
		{"bad logic", State{Logic: "NAND"}, ErrInvalidLogic},
		{"unknown column", State{Conditions: []Condition{{ID: "a", Column: "Zip", Operator: core.OpEqual}}}, ErrUnknownColumn},
		{"operator outside domain", State{Conditions: []Condition{{ID: "a", Column: "Name", Operator: core.OpLess}}}, ErrOperatorNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Restore(testSchema(), tt.st)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
