// Package wizard implements the four-step template creation flow.
//
// A Wizard is the in-memory state machine: the active step, the uploaded
// dataset, the audience filter, the template name and the composer
// document. A Session binds a Wizard to a draft store and a backend so
// that every change is persisted and a later process picks up where the
// previous one stopped.
//
// Steps advance with Next only when the current step's guard holds:
//
//	UploadData      a dataset has been uploaded
//	TargetAudience  the filter was tested or has no conditions
//	ComposeMessage  the name and the serialized body are non-empty
//	ReviewAndCreate terminal; Submit creates the template
//
// Back and JumpTo move to earlier steps without checks.
package wizard
