package mesh

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	binaryVersion uint16 = 1

	flagNormals uint16 = 1 << 0
	flagUVs     uint16 = 1 << 1
)

var binaryMagic = [4]byte{'T', 'M', 'S', 'H'}

// binaryHeader precedes the little-endian float32/uint32 buffers.
type binaryHeader struct {
	Magic     [4]byte
	Version   uint16
	Flags     uint16
	ID        [16]byte
	Seed      int64
	CreatedAt int64 // unix nanoseconds, 0 for the zero time
	Cols      uint32
	Rows      uint32
	Vertices  uint32
	Indices   uint32
}

// MarshalBinary encodes m into the compact storage format.
func (m *Mesh) MarshalBinary() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	header := binaryHeader{
		Magic:    binaryMagic,
		Version:  binaryVersion,
		ID:       m.ID,
		Seed:     m.Seed,
		Cols:     uint32(m.Cols),
		Rows:     uint32(m.Rows),
		Vertices: uint32(len(m.Vertices)),
		Indices:  uint32(len(m.Indices)),
	}
	if !m.CreatedAt.IsZero() {
		header.CreatedAt = m.CreatedAt.UnixNano()
	}
	if len(m.Normals) > 0 {
		header.Flags |= flagNormals
	}
	if len(m.UVs) > 0 {
		header.Flags |= flagUVs
	}

	var buf bytes.Buffer
	buf.Grow(binary.Size(header) + len(m.Vertices)*32 + len(m.Indices)*4)
	for _, part := range []any{header, m.Vertices, m.Normals, m.UVs, m.Indices} {
		if err := binary.Write(&buf, binary.LittleEndian, part); err != nil {
			return nil, fmt.Errorf("encode mesh: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes data produced by MarshalBinary into m.
func (m *Mesh) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var header binaryHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("decode mesh header: %w", err)
	}
	if header.Magic != binaryMagic {
		return errors.New("decode mesh: bad magic")
	}
	if header.Version != binaryVersion {
		return fmt.Errorf("decode mesh: unsupported version %d", header.Version)
	}

	verts := uint64(header.Vertices)
	want := verts*12 + uint64(header.Indices)*4
	if header.Flags&flagNormals != 0 {
		want += verts * 12
	}
	if header.Flags&flagUVs != 0 {
		want += verts * 8
	}
	if uint64(r.Len()) != want {
		return fmt.Errorf("decode mesh: payload is %d bytes, header describes %d", r.Len(), want)
	}

	out := Mesh{
		ID:       header.ID,
		Seed:     header.Seed,
		Cols:     int(header.Cols),
		Rows:     int(header.Rows),
		Vertices: make([]mgl32.Vec3, verts),
		Indices:  make([]uint32, header.Indices),
	}
	if header.CreatedAt != 0 {
		out.CreatedAt = time.Unix(0, header.CreatedAt).UTC()
	}
	if header.Flags&flagNormals != 0 {
		out.Normals = make([]mgl32.Vec3, verts)
	}
	if header.Flags&flagUVs != 0 {
		out.UVs = make([]mgl32.Vec2, verts)
	}

	for _, part := range []any{out.Vertices, out.Normals, out.UVs, out.Indices} {
		if err := binary.Read(r, binary.LittleEndian, part); err != nil {
			return fmt.Errorf("decode mesh buffers: %w", err)
		}
	}
	if err := out.Validate(); err != nil {
		return fmt.Errorf("decode mesh: %w", err)
	}
	*m = out
	return nil
}
