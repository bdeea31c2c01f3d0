// Package store keeps generated meshes so they can be listed, exported and
// served after generation.
package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"terrainmesh/internal/config"
	"terrainmesh/internal/mesh"
)

// ErrNotFound is returned when a mesh id is not in the store.
var ErrNotFound = errors.New("mesh not found")

// Store provides persistent storage for generated meshes.
type Store interface {
	Save(m *mesh.Mesh) error
	Load(id uuid.UUID) (*mesh.Mesh, error)
	Delete(id uuid.UUID) error
	// List returns summaries ordered by creation time, oldest first.
	List() ([]mesh.Summary, error)
	Close() error
}

// Open creates the store selected by cfg.Driver.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.StoreMemory, "":
		return NewMemory(), nil
	case config.StoreDisk:
		return OpenDisk(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
