// Package apperr holds the sentinel errors shared across fme packages.
package apperr

import "errors"

var (
	// ErrNoFrontmatter means the document does not open with a frontmatter block.
	ErrNoFrontmatter = errors.New("no frontmatter block")
	// ErrMalformedFrontmatter means a block exists but cannot be decoded into a header.
	ErrMalformedFrontmatter = errors.New("malformed frontmatter")

	ErrUnknownOperation = errors.New("unknown operation")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrJournalDisabled  = errors.New("journal is disabled")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
)
