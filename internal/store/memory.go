package store

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"terrainmesh/internal/mesh"
)

type memoryStore struct {
	mu     sync.RWMutex
	meshes map[uuid.UUID]*mesh.Mesh
}

func NewMemory() Store {
	return &memoryStore{
		meshes: make(map[uuid.UUID]*mesh.Mesh),
	}
}

func (s *memoryStore) Save(m *mesh.Mesh) error {
	if err := m.Validate(); err != nil {
		return err
	}
	dup := m.Clone()
	s.mu.Lock()
	s.meshes[m.ID] = dup
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Load(id uuid.UUID) (*mesh.Mesh, error) {
	s.mu.RLock()
	m, ok := s.meshes[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *memoryStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meshes[id]; !ok {
		return ErrNotFound
	}
	delete(s.meshes, id)
	return nil
}

func (s *memoryStore) List() ([]mesh.Summary, error) {
	s.mu.RLock()
	summaries := make([]mesh.Summary, 0, len(s.meshes))
	for _, m := range s.meshes {
		summaries = append(summaries, m.Summary())
	}
	s.mu.RUnlock()
	sortSummaries(summaries)
	return summaries, nil
}

func (s *memoryStore) Close() error {
	return nil
}

func sortSummaries(summaries []mesh.Summary) {
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}
