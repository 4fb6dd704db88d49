// Package storage defines the read-only view of a workspace's install areas.
package storage

import (
	"github.com/starford/sm/internal/descriptor"
	"github.com/starford/sm/internal/models"
)

// Provider is the interface for workspace inventory reads.
type Provider interface {
	// Root returns the absolute workspace root.
	Root() string
	// List returns every package installed directly under the workspace's
	// install areas. An empty area lists both.
	List(area models.Area) ([]models.PackageMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the workspace root).
	Read(path string) ([]byte, error)
	// Descriptor loads the descriptor of the package at path (relative to the workspace root).
	Descriptor(path string) (*descriptor.Descriptor, error)
}
