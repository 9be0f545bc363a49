// Package core defines the shared language of the CampaignHQ toolkit.
//
// This package contains:
//   - Dataset entities (Column, Schema, Row)
//   - Filter and template payloads exchanged with the backend
//   - Execution status, progress snapshots and delivery logs
//   - Service interfaces for local state (Store)
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
