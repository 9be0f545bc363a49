package wizard_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignhq/campaignhq/internal/api"
	"github.com/campaignhq/campaignhq/internal/api/apitest"
	"github.com/campaignhq/campaignhq/internal/state"
	"github.com/campaignhq/campaignhq/internal/testutil"
	"github.com/campaignhq/campaignhq/internal/wizard"
	"github.com/campaignhq/campaignhq/pkg/audience"
	"github.com/campaignhq/campaignhq/pkg/composer"
	"github.com/campaignhq/campaignhq/pkg/core"
)

type fixture struct {
	srv    *apitest.Server
	client *api.Client
	store  *state.SQLiteStore
	csv    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.NewServer(t)
	client, err := api.New(srv.URL, api.WithTokenSource(api.StaticToken(apitest.Token)))
	require.NoError(t, err)

	store, err := state.OpenStore(filepath.Join(t.TempDir(), "state.db"), testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &fixture{
		srv:    srv,
		client: client,
		store:  store,
		csv:    testutil.WriteCSV(t, "attendance.csv", testutil.AttendanceCSV),
	}
}

func (f *fixture) open(t *testing.T, session string) *wizard.Session {
	t.Helper()
	s, err := wizard.Open(context.Background(), f.store, f.client, wizard.Options{
		Session: session,
		Logger:  testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return s
}

func snapshotJSON(t *testing.T, s *wizard.Session) string {
	t.Helper()
	d, err := s.Wizard().Snapshot()
	require.NoError(t, err)
	data, err := wizard.MarshalDraft(d)
	require.NoError(t, err)
	return string(data)
}

func TestSession_FullFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.open(t, "")
	assert.False(t, s.Recovered())
	assert.Equal(t, wizard.DefaultSession, s.Name())

	res, err := s.Upload(ctx, f.csv)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowCount)
	require.NoError(t, s.Next(ctx))

	c, err := s.AddCondition(ctx)
	require.NoError(t, err)
	require.NoError(t, s.UpdateCondition(ctx, c.ID, audience.FieldColumn, "Attendance"))
	require.NoError(t, s.UpdateCondition(ctx, c.ID, audience.FieldOperator, "<"))
	require.NoError(t, s.UpdateCondition(ctx, c.ID, audience.FieldValue, "75"))
	assert.ErrorIs(t, s.Next(ctx), wizard.ErrStepIncomplete)

	matched, err := s.TestFilter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, matched.MatchedCount)
	assert.Equal(t, &core.FilterPayload{
		Logic:      core.LogicAnd,
		Conditions: []core.ConditionPayload{{Column: "attendance", Operator: core.OpLess, Value: 75.0}},
	}, f.srv.LastFilter())
	require.NoError(t, s.Next(ctx))

	require.NoError(t, s.SetName(ctx, "Attendance reminder"))
	require.NoError(t, s.Edit(ctx, func(doc *composer.Document) error {
		if err := doc.InsertVariable("name"); err != nil {
			return err
		}
		doc.InsertText("has ")
		if err := doc.InsertVariable("attendance"); err != nil {
			return err
		}
		doc.InsertText("%.")
		return nil
	}))
	require.NoError(t, s.Next(ctx))
	assert.Equal(t, wizard.StepReviewAndCreate, s.Wizard().Step())

	review := s.Wizard().Review()
	assert.Equal(t, 2, review.Audience)
	assert.Equal(t, "Asha has 72%.", review.Preview)

	created, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, created.Version)

	req := f.srv.LastCreate()
	require.NotNil(t, req)
	assert.Equal(t, "Attendance reminder", req.Name)
	assert.Equal(t, wizard.DefaultDescription, req.Description)
	assert.Equal(t, "{{name}} has {{attendance}}%.", req.Body)
	assert.Equal(t, res.TempDatasetID, req.TempDatasetID)
	require.NotNil(t, req.Filter)

	d, err := f.store.LoadDraft(ctx, wizard.DefaultSession, wizard.CacheKey)
	require.NoError(t, err)
	assert.Nil(t, d, "draft deleted after submit")
	assert.Equal(t, wizard.StepUploadData, s.Wizard().Step())
}

func TestSession_DraftPersistenceIdempotence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := f.open(t, "ops")
	_, err := s.Upload(ctx, f.csv)
	require.NoError(t, err)
	require.NoError(t, s.Next(ctx))
	c, err := s.AddCondition(ctx)
	require.NoError(t, err)
	require.NoError(t, s.UpdateCondition(ctx, c.ID, audience.FieldValue, "Ravi"))
	_, err = s.TestFilter(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SetLogic(ctx, "or"))
	require.NoError(t, s.Compose(ctx, "Hi {{name}}\nCall {{phone}}"))
	require.NoError(t, s.SetName(ctx, "Callback"))
	require.NoError(t, s.SetDescription(ctx, "follow up"))

	want := snapshotJSON(t, s)

	reopened := f.open(t, "ops")
	assert.True(t, reopened.Recovered())
	assert.JSONEq(t, want, snapshotJSON(t, reopened))
	assert.Equal(t, wizard.StepTargetAudience, reopened.Wizard().Step())
	assert.Equal(t, "Hi {{name}}\nCall {{phone}}", reopened.Wizard().Body())
	assert.Len(t, reopened.Wizard().Filter().Conditions(), 1)
	assert.False(t, reopened.Wizard().Filter().Tested(), "changing the logic invalidated the test")

	// saving the rehydrated state again changes nothing
	require.NoError(t, reopened.SetName(ctx, "Callback"))
	assert.JSONEq(t, want, snapshotJSON(t, f.open(t, "ops")))

	other := f.open(t, "someone-else")
	assert.False(t, other.Recovered(), "drafts are scoped by session")
}

func TestSession_Reset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := f.open(t, "")
	_, err := s.Upload(ctx, f.csv)
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))
	assert.Nil(t, s.Wizard().Dataset())
	assert.False(t, f.open(t, "").Recovered())
}

func TestSession_NetworkFailureLeavesState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.open(t, "")

	f.srv.Fail(http.MethodPost, "/dataset/temp-upload", http.StatusBadRequest, "CSV has no rows")
	_, err := s.Upload(ctx, f.csv)
	require.Error(t, err)
	assert.Equal(t, "CSV has no rows", err.Error())
	assert.Nil(t, s.Wizard().Dataset())

	_, err = s.Upload(ctx, f.csv)
	require.NoError(t, err)
	_, err = s.AddCondition(ctx)
	require.NoError(t, err)
	before := snapshotJSON(t, s)

	f.srv.Fail(http.MethodPost, "/campaign-template/test-filter", http.StatusInternalServerError, "")
	_, err = s.TestFilter(ctx)
	require.Error(t, err)
	assert.Equal(t, "filter test failed (HTTP 500)", err.Error())
	assert.JSONEq(t, before, snapshotJSON(t, s))
	assert.False(t, s.Wizard().Filter().Tested())
}

func TestSession_DatasetFileMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.open(t, "")

	_, err := s.Upload(ctx, f.csv)
	require.NoError(t, err)
	require.NoError(t, os.Remove(f.csv))

	_, err = s.TestFilter(ctx)
	assert.ErrorIs(t, err, wizard.ErrDatasetFileMissing)
}

func TestSession_SubmitUnknownVariable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.open(t, "")

	_, err := s.Upload(ctx, f.csv)
	require.NoError(t, err)
	require.NoError(t, s.Next(ctx))
	require.NoError(t, s.Next(ctx))
	require.NoError(t, s.SetName(ctx, "x"))

	err = s.Compose(ctx, "Hi {{email}}")
	assert.ErrorIs(t, err, composer.ErrUnknownTemplateVariable)
	assert.Empty(t, s.Wizard().Body(), "rejected text is not applied")

	require.NoError(t, s.Compose(ctx, "Hi {{name}}"))
	require.NoError(t, s.Next(ctx))

	// the dataset changes under the review step: {{phone}} no longer resolves
	require.NoError(t, s.JumpTo(ctx, wizard.StepUploadData))
	require.NoError(t, s.Compose(ctx, "Hi {{name}} {{phone}}"))
	other := testutil.WriteCSV(t, "names.csv", "Name\nAsha\n")
	_, err = s.Upload(ctx, other)
	require.NoError(t, err)
	for range 3 {
		require.NoError(t, s.Next(ctx))
	}

	_, err = s.Submit(ctx)
	var unknown *composer.UnknownTemplateVariableError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"phone"}, unknown.Names)
	assert.Equal(t, wizard.StepComposeMessage, s.Wizard().Step())
	assert.Nil(t, f.srv.LastCreate())
}

func TestSession_SubmitUntestedFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.open(t, "")

	_, err := s.Upload(ctx, f.csv)
	require.NoError(t, err)
	require.NoError(t, s.Next(ctx))
	require.NoError(t, s.Next(ctx))
	require.NoError(t, s.SetName(ctx, "x"))
	require.NoError(t, s.Compose(ctx, "Hi {{name}}"))
	require.NoError(t, s.Next(ctx))
	require.Equal(t, wizard.StepReviewAndCreate, s.Wizard().Step())

	// a condition edited on the review step has not been tested
	c, err := s.AddCondition(ctx)
	require.NoError(t, err)
	require.NoError(t, s.UpdateCondition(ctx, c.ID, audience.FieldValue, "zzz"))
	require.False(t, s.Wizard().Filter().Ready())

	_, err = s.Submit(ctx)
	var guard *wizard.GuardError
	require.ErrorAs(t, err, &guard)
	assert.Equal(t, wizard.StepTargetAudience, guard.Step)
	assert.ErrorIs(t, err, wizard.ErrStepIncomplete)
	assert.Equal(t, wizard.StepTargetAudience, s.Wizard().Step())
	assert.Nil(t, f.srv.LastCreate())

	d, err := f.store.LoadDraft(ctx, wizard.DefaultSession, wizard.CacheKey)
	require.NoError(t, err)
	require.NotNil(t, d, "draft kept")
	reopened := f.open(t, "")
	assert.Equal(t, wizard.StepTargetAudience, reopened.Wizard().Step())

	_, err = s.TestFilter(ctx)
	require.NoError(t, err)
	for range 2 {
		require.NoError(t, s.Next(ctx))
	}
	_, err = s.Submit(ctx)
	require.NoError(t, err)
	require.NotNil(t, f.srv.LastCreate())
}

func TestSession_SubmitOutsideReview(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, "")

	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, wizard.ErrNotReviewing)
}

func TestOpen_DiscardsUnreadableDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveDraft(ctx, "broken", wizard.CacheKey, []byte(`{"version":1,"step":42}`)))

	s := f.open(t, "broken")
	assert.False(t, s.Recovered())
	assert.Equal(t, wizard.StepUploadData, s.Wizard().Step())

	d, err := f.store.LoadDraft(ctx, "broken", wizard.CacheKey)
	require.NoError(t, err)
	assert.Nil(t, d)
}

type failingStore struct {
	core.DraftStore
	err error
}

func (s failingStore) SaveDraft(context.Context, string, string, []byte) error { return s.err }

func (s failingStore) LoadDraft(context.Context, string, string) (*core.Draft, error) {
	return nil, nil
}

func TestSession_SaveFailure(t *testing.T) {
	boom := errors.New("disk full")
	s, err := wizard.Open(context.Background(), failingStore{err: boom}, nil, wizard.Options{})
	require.NoError(t, err)

	err = s.SetName(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "failed to save draft")
}

func TestSession_ImportHTML(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.open(t, "html")
	_, err := s.Upload(ctx, f.csv)
	require.NoError(t, err)

	err = s.ImportHTML(ctx, `<span data-variable="name">name</span>&nbsp;has <span data-variable="attendance">attendance</span>&nbsp;%.`)
	require.NoError(t, err)
	assert.Equal(t, "{{name}} has {{attendance}}%.", s.Wizard().Body())

	err = s.ImportHTML(ctx, `Hi <span data-variable="email">email</span>`)
	var unknown *composer.UnknownTemplateVariableError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "{{name}} has {{attendance}}%.", s.Wizard().Body(), "failed import keeps the previous body")

	reopened := f.open(t, "html")
	assert.Equal(t, "{{name}} has {{attendance}}%.", reopened.Wizard().Body())
}
