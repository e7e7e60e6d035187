// Package render draws adjacency matrices as grayscale heatmap images.
//
// Zero-weight cells render white and the matrix maximum renders black,
// mirroring an inverted-gray colormap. There is no text or axis
// rendering; titles and orientation belong to the caller's output
// naming.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/GrantMcConachie/FlyWireInitialScrape/internal/matrix"
)

// PairGutter is the pixel gap between the two heatmaps of a paired render.
const PairGutter = 8

// Heatmap renders m as a grayscale image with cell pixels per matrix
// cell. Shading is scaled to m's own maximum; an all-zero matrix
// renders entirely white.
func Heatmap(m *matrix.Matrix, cell int) *image.Gray {
	if cell < 1 {
		cell = 1
	}
	w := m.Cols() * cell
	h := m.Rows() * cell
	img := image.NewGray(image.Rect(0, 0, w, h))

	// White background covers zero-sized matrices too.
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)

	max := m.Max()
	if max == 0 {
		return img
	}

	for i, row := range m.Data {
		for j, v := range row {
			if v == 0 {
				continue
			}
			shade := uint8(255 - (v/max)*255)
			fill(img, j*cell, i*cell, cell, color.Gray{Y: shade})
		}
	}

	return img
}

// Pair renders two directional matrices side by side with a gutter,
// each shaded against its own maximum.
func Pair(ab, ba *matrix.Matrix, cell int) *image.Gray {
	left := Heatmap(ab, cell)
	right := Heatmap(ba, cell)

	lb := left.Bounds()
	rb := right.Bounds()
	w := lb.Dx() + PairGutter + rb.Dx()
	h := lb.Dy()
	if rb.Dy() > h {
		h = rb.Dy()
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)
	draw.Draw(img, lb, left, image.Point{}, draw.Src)
	draw.Draw(img, rb.Add(image.Point{X: lb.Dx() + PairGutter}), right, image.Point{}, draw.Src)

	return img
}

// WritePNG writes img to path as a PNG file.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating image file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}

	return nil
}

func fill(img *image.Gray, x, y, size int, c color.Gray) {
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			img.SetGray(x+dx, y+dy, c)
		}
	}
}
