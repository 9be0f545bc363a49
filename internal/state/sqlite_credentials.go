package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// SaveCredentials stores the tokens for a profile, replacing earlier ones.
func (s *SQLiteStore) SaveCredentials(ctx context.Context, creds *core.Credentials) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if creds == nil || creds.AccessToken == "" {
		return fmt.Errorf("credentials without access token")
	}

	if creds.CreatedAt.IsZero() {
		creds.CreatedAt = time.Now().UTC()
	}
	tokenType := creds.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (profile, email, access_token, refresh_token, token_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (profile) DO UPDATE SET
		   email = excluded.email,
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   token_type = excluded.token_type,
		   created_at = excluded.created_at`,
		creds.Profile, creds.Email, creds.AccessToken, creds.RefreshToken, tokenType, toMillis(creds.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// LoadCredentials returns the stored tokens for a profile, or nil when the
// profile is not logged in.
func (s *SQLiteStore) LoadCredentials(ctx context.Context, profile string) (*core.Credentials, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	c := &core.Credentials{Profile: profile}
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT email, access_token, refresh_token, token_type, created_at FROM credentials WHERE profile = ?`,
		profile,
	).Scan(&c.Email, &c.AccessToken, &c.RefreshToken, &c.TokenType, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	c.CreatedAt = fromMillis(created)
	return c, nil
}

// DeleteCredentials forgets the tokens of a profile.
func (s *SQLiteStore) DeleteCredentials(ctx context.Context, profile string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE profile = ?`, profile); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}
