package terrain

import (
	"github.com/go-gl/mathgl/mgl32"

	"terrainmesh/internal/mesh"
)

// NewPlane builds a flat grid centred on the origin in the XZ plane.
// subdivisions counts interior cut lines per axis, so each axis has
// subdivisions+2 vertices.
func NewPlane(width, depth float64, subdivisions int) *mesh.Mesh {
	if subdivisions < 0 {
		subdivisions = 0
	}
	cols := subdivisions + 2
	rows := subdivisions + 2

	m := &mesh.Mesh{
		Cols:     cols,
		Rows:     rows,
		Vertices: make([]mgl32.Vec3, 0, cols*rows),
		UVs:      make([]mgl32.Vec2, 0, cols*rows),
		Indices:  make([]uint32, 0, (cols-1)*(rows-1)*6),
	}

	stepX := width / float64(cols-1)
	stepZ := depth / float64(rows-1)
	for row := 0; row < rows; row++ {
		z := -depth/2 + float64(row)*stepZ
		v := float32(row) / float32(rows-1)
		for col := 0; col < cols; col++ {
			x := -width/2 + float64(col)*stepX
			u := float32(col) / float32(cols-1)
			m.Vertices = append(m.Vertices, mgl32.Vec3{float32(x), 0, float32(z)})
			m.UVs = append(m.UVs, mgl32.Vec2{u, v})
		}
	}

	for row := 0; row < rows-1; row++ {
		for col := 0; col < cols-1; col++ {
			i00 := uint32(row*cols + col)
			i10 := i00 + 1
			i01 := i00 + uint32(cols)
			i11 := i01 + 1
			// Counter-clockwise seen from +Y.
			m.Indices = append(m.Indices, i00, i01, i10, i10, i01, i11)
		}
	}
	return m
}
