// Package mesh holds generated terrain surfaces and the encoders used to hand
// them to renderers, storage and HTTP clients.
package mesh

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Mesh is an indexed triangle surface laid out on a regular Cols x Rows grid.
// Vertex (col,row) lives at index row*Cols+col.
type Mesh struct {
	ID        uuid.UUID    `json:"id"`
	Seed      int64        `json:"seed"`
	CreatedAt time.Time    `json:"createdAt"`
	Cols      int          `json:"cols"`
	Rows      int          `json:"rows"`
	Vertices  []mgl32.Vec3 `json:"vertices"`
	Normals   []mgl32.Vec3 `json:"normals"`
	UVs       []mgl32.Vec2 `json:"uvs"`
	Indices   []uint32     `json:"indices"`
}

// Summary is the lightweight description returned by listings.
type Summary struct {
	ID        uuid.UUID  `json:"id"`
	Seed      int64      `json:"seed"`
	CreatedAt time.Time  `json:"createdAt"`
	Cols      int        `json:"cols"`
	Rows      int        `json:"rows"`
	Vertices  int        `json:"vertexCount"`
	Triangles int        `json:"triangleCount"`
	Min       mgl32.Vec3 `json:"min"`
	Max       mgl32.Vec3 `json:"max"`
}

// Index returns the vertex index of grid cell (col,row).
func (m *Mesh) Index(col, row int) int {
	return row*m.Cols + col
}

// Height returns the Y coordinate of grid cell (col,row).
func (m *Mesh) Height(col, row int) float32 {
	return m.Vertices[m.Index(col, row)].Y()
}

// Validate checks that the buffers agree with the grid dimensions.
func (m *Mesh) Validate() error {
	if m.Cols < 2 || m.Rows < 2 {
		return fmt.Errorf("mesh grid %dx%d too small", m.Cols, m.Rows)
	}
	if len(m.Vertices) != m.Cols*m.Rows {
		return fmt.Errorf("mesh has %d vertices, grid needs %d", len(m.Vertices), m.Cols*m.Rows)
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("mesh has %d normals for %d vertices", len(m.Normals), len(m.Vertices))
	}
	if len(m.UVs) != 0 && len(m.UVs) != len(m.Vertices) {
		return fmt.Errorf("mesh has %d uvs for %d vertices", len(m.UVs), len(m.Vertices))
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("mesh index count %d is not a multiple of 3", len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("mesh index %d references vertex %d out of %d", i, idx, len(m.Vertices))
		}
	}
	return nil
}

// Bounds returns the axis aligned bounding box of the vertices.
func (m *Mesh) Bounds() (min, max mgl32.Vec3) {
	if len(m.Vertices) == 0 {
		return min, max
	}
	min, max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		for axis := 0; axis < 3; axis++ {
			if v[axis] < min[axis] {
				min[axis] = v[axis]
			}
			if v[axis] > max[axis] {
				max[axis] = v[axis]
			}
		}
	}
	return min, max
}

// RecomputeNormals rebuilds smooth per-vertex normals from the triangle list.
// Every face adds its unit normal to its corners, so faces weigh equally
// regardless of area. Degenerate faces are skipped.
func (m *Mesh) RecomputeNormals() {
	normals := make([]mgl32.Vec3, len(m.Vertices))
	for i := 0; i+2 < len(m.Indices); i += 3 {
		ia, ib, ic := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		a, b, c := m.Vertices[ia], m.Vertices[ib], m.Vertices[ic]
		face := b.Sub(a).Cross(c.Sub(a))
		if face.LenSqr() == 0 {
			continue
		}
		face = face.Normalize()
		normals[ia] = normals[ia].Add(face)
		normals[ib] = normals[ib].Add(face)
		normals[ic] = normals[ic].Add(face)
	}
	for i, n := range normals {
		if n.LenSqr() == 0 {
			normals[i] = mgl32.Vec3{0, 1, 0}
			continue
		}
		normals[i] = n.Normalize()
	}
	m.Normals = normals
}

func (m *Mesh) Summary() Summary {
	min, max := m.Bounds()
	return Summary{
		ID:        m.ID,
		Seed:      m.Seed,
		CreatedAt: m.CreatedAt,
		Cols:      m.Cols,
		Rows:      m.Rows,
		Vertices:  len(m.Vertices),
		Triangles: len(m.Indices) / 3,
		Min:       min,
		Max:       max,
	}
}

// Clone returns a deep copy of m.
func (m *Mesh) Clone() *Mesh {
	dup := *m
	dup.Vertices = append([]mgl32.Vec3(nil), m.Vertices...)
	dup.Normals = append([]mgl32.Vec3(nil), m.Normals...)
	dup.UVs = append([]mgl32.Vec2(nil), m.UVs...)
	dup.Indices = append([]uint32(nil), m.Indices...)
	return &dup
}
