package state

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignhq/campaignhq/internal/testutil"
	"github.com/campaignhq/campaignhq/pkg/core"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"), "failed to open store")
	require.NoError(t, store.InitSchema(), "failed to init schema")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)

	require.NoError(t, store.Open(":memory:"))
	assert.Equal(t, ":memory:", store.Path())
	require.NoError(t, store.Close())
}

func TestSQLiteStore_InitSchema(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"drafts", "credentials"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if assert.NoError(t, err, "table %s does not exist", table) {
			_ = rows.Close()
		}
	}

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Re-running migrations is a no-op.
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	assert.EqualError(t, store.InitSchema(), "database not opened")
	assert.EqualError(t, store.SaveDraft(ctx, "s", "k", []byte("{}")), "database not opened")
	_, err := store.LoadDraft(ctx, "s", "k")
	assert.EqualError(t, err, "database not opened")
	assert.EqualError(t, store.DeleteDraft(ctx, "s", "k"), "database not opened")
	_, err = store.ListDrafts(ctx)
	assert.EqualError(t, err, "database not opened")
	_, err = store.LoadCredentials(ctx, "default")
	assert.EqualError(t, err, "database not opened")
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_OpenStoreOnDisk(t *testing.T) {
	path := t.TempDir() + "/nested/state.db"

	store, err := OpenStore(path, testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, store.SaveDraft(context.Background(), "default", "k", []byte(`{"a":1}`)))
	require.NoError(t, store.Close())

	reopened, err := OpenStore(path, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	d, err := reopened.LoadDraft(context.Background(), "default", "k")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.JSONEq(t, `{"a":1}`, string(d.Payload))
}

func TestSQLiteStore_Drafts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	d, err := store.LoadDraft(ctx, "default", "wizard")
	require.NoError(t, err)
	assert.Nil(t, d, "missing draft is not an error")

	before := time.Now().Add(-time.Second)
	require.NoError(t, store.SaveDraft(ctx, "default", "wizard", []byte(`{"step":1}`)))
	require.NoError(t, store.SaveDraft(ctx, "default", "wizard", []byte(`{"step":2}`)))
	require.NoError(t, store.SaveDraft(ctx, "other", "wizard", []byte(`{"step":3}`)))

	d, err = store.LoadDraft(ctx, "default", "wizard")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, `{"step":2}`, string(d.Payload), "last write wins")
	assert.True(t, d.CreatedAt.After(before))
	assert.False(t, d.UpdatedAt.Before(d.CreatedAt))

	drafts, err := store.ListDrafts(ctx)
	require.NoError(t, err)
	assert.Len(t, drafts, 2)

	require.NoError(t, store.DeleteDraft(ctx, "default", "wizard"))
	require.NoError(t, store.DeleteDraft(ctx, "default", "wizard"), "deleting twice is fine")

	d, err = store.LoadDraft(ctx, "default", "wizard")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = store.LoadDraft(ctx, "other", "wizard")
	require.NoError(t, err)
	assert.NotNil(t, d, "sessions are independent")
}

func TestSQLiteStore_Credentials(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	c, err := store.LoadCredentials(ctx, "default")
	require.NoError(t, err)
	assert.Nil(t, c)

	assert.Error(t, store.SaveCredentials(ctx, &core.Credentials{Profile: "default"}))

	require.NoError(t, store.SaveCredentials(ctx, &core.Credentials{
		Profile:      "default",
		Email:        "ops@example.com",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}))
	require.NoError(t, store.SaveCredentials(ctx, &core.Credentials{
		Profile:     "default",
		Email:       "ops@example.com",
		AccessToken: "access-2",
		TokenType:   "bearer",
	}))

	c, err = store.LoadCredentials(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "access-2", c.AccessToken)
	assert.Equal(t, "", c.RefreshToken)
	assert.Equal(t, "bearer", c.TokenType)
	assert.Equal(t, "ops@example.com", c.Email)

	require.NoError(t, store.DeleteCredentials(ctx, "default"))
	c, err = store.LoadCredentials(ctx, "default")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func mockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSQLiteStore(testutil.NewTestLogger(t))
	store.db = db
	return store, mock
}

func TestSQLiteStore_DatabaseErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		setup  func(mock sqlmock.Sqlmock)
		call   func(s *SQLiteStore) error
		errMsg string
	}{
		{
			name: "save draft",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO drafts").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				return s.SaveDraft(ctx, "default", "k", []byte("{}"))
			},
			errMsg: "failed to save draft",
		},
		{
			name: "load draft",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT payload, created_at, updated_at FROM drafts").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				_, err := s.LoadDraft(ctx, "default", "k")
				return err
			},
			errMsg: "failed to load draft",
		},
		{
			name: "delete draft",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM drafts").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				return s.DeleteDraft(ctx, "default", "k")
			},
			errMsg: "failed to delete draft",
		},
		{
			name: "list drafts scan",
			setup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"session", "key", "payload", "created_at", "updated_at"}).
					AddRow("default", "k", []byte("{}"), "not-a-number", 1)
				mock.ExpectQuery("SELECT session, key, payload").WillReturnRows(rows)
			},
			call: func(s *SQLiteStore) error {
				_, err := s.ListDrafts(ctx)
				return err
			},
			errMsg: "failed to scan draft",
		},
		{
			name: "save credentials",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO credentials").WillReturnError(sql.ErrConnDone)
			},
			call: func(s *SQLiteStore) error {
				return s.SaveCredentials(ctx, &core.Credentials{Profile: "p", AccessToken: "t"})
			},
			errMsg: "failed to save credentials",
		},
		{
			name: "load credentials",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT email, access_token").WillReturnError(sql.ErrConnDone)
			},
			call: func(s *SQLiteStore) error {
				_, err := s.LoadCredentials(ctx, "p")
				return err
			},
			errMsg: "failed to load credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := mockStore(t)
			tt.setup(mock)

			err := tt.call(store)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
