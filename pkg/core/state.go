package core

import (
	"context"
	"time"
)

// Store defines the interface for local state management operations.
// It replaces the browser's session and local storage.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	DraftStore
	CredentialStore
}

// DraftStore persists wizard drafts keyed by session and cache key.
type DraftStore interface {
	SaveDraft(ctx context.Context, session, key string, payload []byte) error
	// LoadDraft returns (nil, nil) when no draft exists.
	LoadDraft(ctx context.Context, session, key string) (*Draft, error)
	DeleteDraft(ctx context.Context, session, key string) error
	ListDrafts(ctx context.Context) ([]*Draft, error)
}

// CredentialStore persists bearer tokens per profile.
type CredentialStore interface {
	SaveCredentials(ctx context.Context, creds *Credentials) error
	// LoadCredentials returns (nil, nil) when the profile is not logged in.
	LoadCredentials(ctx context.Context, profile string) (*Credentials, error)
	DeleteCredentials(ctx context.Context, profile string) error
}

// Draft is a persisted wizard draft.
type Draft struct {
	Session   string
	Key       string
	Payload   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Credentials holds the tokens returned by the login endpoint.
type Credentials struct {
	Profile      string
	Email        string
	AccessToken  string
	RefreshToken string
	TokenType    string
	CreatedAt    time.Time
}
