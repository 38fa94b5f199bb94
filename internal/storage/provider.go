// Package storage defines the note directory abstraction.
package storage

import "github.com/starford/fme/internal/models"

// Provider is the interface for note file operations. Paths are relative to Root.
type Provider interface {
	// Root returns the absolute directory the provider operates on.
	Root() string
	// List returns metadata for the .md files under dir. Without recursive only
	// direct children of dir are listed.
	List(dir string, recursive bool) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the content of the file at path.
	Write(path string, content []byte) error
}
