package mesh

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

// WritePreview renders the height field as a grayscale PNG of size x size
// pixels. Row 0 of the grid is the top of the image, low ground is dark.
func WritePreview(w io.Writer, m *Mesh, size int) error {
	if m == nil {
		return fmt.Errorf("mesh is nil")
	}
	if size <= 0 {
		return fmt.Errorf("invalid preview size %d", size)
	}
	if err := m.Validate(); err != nil {
		return err
	}

	src := Heightmap(m)
	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	if err := png.Encode(w, dst); err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	return nil
}

// Heightmap maps each grid vertex to one gray pixel, normalised between the
// lowest and highest vertex. A flat mesh renders mid gray.
func Heightmap(m *Mesh) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Cols, m.Rows))
	min, max := m.Bounds()
	span := max.Y() - min.Y()
	for row := 0; row < m.Rows; row++ {
		for col := 0; col < m.Cols; col++ {
			level := uint8(128)
			if span > 0 {
				t := (m.Height(col, row) - min.Y()) / span
				level = uint8(t*255 + 0.5)
			}
			img.SetGray(col, row, color.Gray{Y: level})
		}
	}
	return img
}
