package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"terrainmesh/internal/config"
	"terrainmesh/internal/mesh"
)

func sampleMesh(seed int64, created time.Time) *mesh.Mesh {
	m := &mesh.Mesh{
		ID:        uuid.New(),
		Seed:      seed,
		CreatedAt: created,
		Cols:      2,
		Rows:      2,
		Vertices: []mgl32.Vec3{
			{-1, float32(seed), -1}, {1, 0, -1},
			{-1, 0, 1}, {1, 0, 1},
		},
		Indices: []uint32{0, 2, 1, 1, 2, 3},
	}
	m.RecomputeNormals()
	return m
}

func openStores(t *testing.T) map[string]func() Store {
	t.Helper()
	dir := t.TempDir()
	return map[string]func() Store{
		"memory": func() Store { return NewMemory() },
		"disk": func() Store {
			s, err := OpenDisk(filepath.Join(dir, "meshes.log"))
			if err != nil {
				t.Fatalf("open disk store: %v", err)
			}
			return s
		},
	}
}

func TestStoreSaveLoadDeleteList(t *testing.T) {
	for name, open := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			older := sampleMesh(1, base)
			newer := sampleMesh(2, base.Add(time.Minute))

			for _, m := range []*mesh.Mesh{newer, older} {
				if err := s.Save(m); err != nil {
					t.Fatalf("save: %v", err)
				}
			}

			got, err := s.Load(older.ID)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.ID != older.ID || got.Seed != 1 || got.Vertices[0] != older.Vertices[0] {
				t.Fatalf("unexpected mesh %+v", got.Summary())
			}
			got.Vertices[0][1] = 100
			again, err := s.Load(older.ID)
			if err != nil {
				t.Fatalf("load again: %v", err)
			}
			if again.Vertices[0][1] == 100 {
				t.Fatalf("loaded mesh shares storage with the store")
			}

			list, err := s.List()
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 2 || list[0].ID != older.ID || list[1].ID != newer.ID {
				t.Fatalf("unexpected listing %+v", list)
			}

			if err := s.Delete(older.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := s.Load(older.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
			if err := s.Delete(older.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
			}
		})
	}
}

func TestStoreRejectsInvalidMesh(t *testing.T) {
	for name, open := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			bad := sampleMesh(3, time.Now())
			bad.Indices = append(bad.Indices, 9, 9, 9)
			if err := s.Save(bad); err == nil {
				t.Fatalf("expected invalid mesh to be rejected")
			}
		})
	}
}

func TestDiskStoreRebuildsIndexOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "meshes.log")

	s, err := OpenDisk(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	kept := sampleMesh(10, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	dropped := sampleMesh(11, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	if err := s.Save(kept); err != nil {
		t.Fatalf("save kept: %v", err)
	}
	if err := s.Save(dropped); err != nil {
		t.Fatalf("save dropped: %v", err)
	}
	kept.Seed = 12
	if err := s.Save(kept); err != nil {
		t.Fatalf("overwrite kept: %v", err)
	}
	if err := s.Delete(dropped.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenDisk(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	list, err := reopened.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != kept.ID || list[0].Seed != 12 {
		t.Fatalf("unexpected listing after reopen %+v", list)
	}
	got, err := reopened.Load(kept.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Seed != 12 || !got.CreatedAt.Equal(kept.CreatedAt) {
		t.Fatalf("expected latest record to win, got %+v", got.Summary())
	}
}

func TestDiskStoreDetectsTruncatedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshes.log")
	s, err := OpenDisk(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Save(sampleMesh(1, time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := os.Truncate(path, info.Size()-3); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	_, err = OpenDisk(path)
	if err == nil || !strings.Contains(err.Error(), "read mesh record") {
		t.Fatalf("expected truncated payload error, got %v", err)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	s, err := Open(config.StoreConfig{Driver: config.StoreMemory})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	s.Close()

	path := filepath.Join(t.TempDir(), "m.log")
	s, err = Open(config.StoreConfig{Driver: config.StoreDisk, Path: path})
	if err != nil {
		t.Fatalf("open disk: %v", err)
	}
	s.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected disk log to exist: %v", err)
	}

	if _, err := Open(config.StoreConfig{Driver: "redis"}); err == nil {
		t.Fatalf("expected unknown driver to fail")
	}
}
