// Package composer implements the message composer's document model.
//
// A Document is a flat sequence of literal text, variable references ("pills")
// bound to dataset columns, and separators that follow inserted pills. The
// caret is an index over that sequence in which every pill and separator counts
// as a single position, so ordinary editing can never split a pill.
//
// The canonical text form replaces every pill with {{column}}. It is what the
// backend stores as the template body and what Deserialize reads back.
package composer
