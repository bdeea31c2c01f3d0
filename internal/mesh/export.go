package mesh

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteOBJ encodes m as a Wavefront OBJ document with positions, texture
// coordinates and normals. Triangles are counter-clockwise seen from +Y.
func (m *Mesh) WriteOBJ(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# terrain %s seed %d\n", m.ID, m.Seed)
	fmt.Fprintf(bw, "o terrain_%d\n", m.Seed)

	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "v %s %s %s\n", fmtFloat(v[0]), fmtFloat(v[1]), fmtFloat(v[2]))
	}
	for _, uv := range m.UVs {
		fmt.Fprintf(bw, "vt %s %s\n", fmtFloat(uv[0]), fmtFloat(uv[1]))
	}
	for _, n := range m.Normals {
		fmt.Fprintf(bw, "vn %s %s %s\n", fmtFloat(n[0]), fmtFloat(n[1]), fmtFloat(n[2]))
	}

	hasUV := len(m.UVs) == len(m.Vertices)
	hasNormal := len(m.Normals) == len(m.Vertices)
	for i := 0; i+2 < len(m.Indices); i += 3 {
		bw.WriteString("f")
		for _, idx := range m.Indices[i : i+3] {
			// OBJ indices are 1-based.
			ref := strconv.FormatUint(uint64(idx)+1, 10)
			switch {
			case hasUV && hasNormal:
				fmt.Fprintf(bw, " %s/%s/%s", ref, ref, ref)
			case hasNormal:
				fmt.Fprintf(bw, " %s//%s", ref, ref)
			case hasUV:
				fmt.Fprintf(bw, " %s/%s", ref, ref)
			default:
				fmt.Fprintf(bw, " %s", ref)
			}
		}
		bw.WriteString("\n")
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write obj: %w", err)
	}
	return nil
}

// WriteJSON encodes the full mesh, buffers included, as JSON.
func (m *Mesh) WriteJSON(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("encode mesh json: %w", err)
	}
	return nil
}

func fmtFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}
