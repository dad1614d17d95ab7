// Package storage defines the document library file-system abstraction.
package storage

import "github.com/starford/keyline/internal/models"

// Provider is the interface for library file operations.
type Provider interface {
	// List returns metadata for every matching file under dir (relative to root).
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Exists reports whether a file is stored at path (relative to root).
	Exists(path string) (bool, error)
	// Delete removes the file at path (relative to root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to root). It fails
	// with fs.ErrExist when newPath is taken.
	Move(oldPath, newPath string) error
}
