// Package state persists local CLI state in SQLite: wizard drafts and the
// tokens obtained at login.
//
// Note: the interfaces and entity types live in pkg/core. This package
// re-exports them via type aliases so callers can depend on state alone.
package state

import (
	"github.com/campaignhq/campaignhq/pkg/core"
)

type (
	// Store is an alias for core.Store.
	Store = core.Store

	// DraftStore is an alias for core.DraftStore.
	DraftStore = core.DraftStore

	// CredentialStore is an alias for core.CredentialStore.
	CredentialStore = core.CredentialStore

	// Draft is an alias for core.Draft.
	Draft = core.Draft

	// Credentials is an alias for core.Credentials.
	Credentials = core.Credentials
)

// Compile-time check.
var _ Store = (*SQLiteStore)(nil)
