package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// SaveDraft inserts or replaces the draft stored under session and key.
// Concurrent writers to the same key are last-writer-wins.
func (s *SQLiteStore) SaveDraft(ctx context.Context, session, key string, payload []byte) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := toMillis(time.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (session, key, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (session, key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		session, key, payload, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}

	s.logger.Debug("draft saved", "session", session, "key", key, "bytes", len(payload))
	return nil
}

// LoadDraft returns the draft stored under session and key, or nil when none exists.
func (s *SQLiteStore) LoadDraft(ctx context.Context, session, key string) (*core.Draft, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	d := &core.Draft{Session: session, Key: key}
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at, updated_at FROM drafts WHERE session = ? AND key = ?`,
		session, key,
	).Scan(&d.Payload, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	d.CreatedAt = fromMillis(created)
	d.UpdatedAt = fromMillis(updated)
	return d, nil
}

// DeleteDraft removes a draft. Deleting a missing draft is not an error.
func (s *SQLiteStore) DeleteDraft(ctx context.Context, session, key string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM drafts WHERE session = ? AND key = ?`, session, key,
	); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}

	s.logger.Debug("draft deleted", "session", session, "key", key)
	return nil
}

// ListDrafts returns every stored draft, most recently updated first.
func (s *SQLiteStore) ListDrafts(ctx context.Context) ([]*core.Draft, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session, key, payload, created_at, updated_at FROM drafts ORDER BY updated_at DESC, session`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var drafts []*core.Draft
	for rows.Next() {
		d := &core.Draft{}
		var created, updated int64
		if err := rows.Scan(&d.Session, &d.Key, &d.Payload, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		d.CreatedAt = fromMillis(created)
		d.UpdatedAt = fromMillis(updated)
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	return drafts, nil
}
