// Package gradient computes and holds the Sobel 5x5 gradient field of an
// 8-bit raster.
package gradient

import (
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/amrel/internal/geom"
	"github.com/banshee-data/amrel/internal/raster"
)

// Sobel 5x5 horizontal kernel; the vertical kernel is its transpose.
var kernelX = [5][5]int32{
	{-1, -2, 0, 2, 1},
	{-4, -8, 0, 8, 4},
	{-6, -12, 0, 12, 6},
	{-4, -8, 0, 8, 4},
	{-1, -2, 0, 2, 1},
}

// Map is a dense field of signed integer gradient vectors.
type Map struct {
	W       int
	H       int
	Vectors []geom.Vr2i
}

// NewMap wraps an existing vector field.
func NewMap(w, h int, vectors []geom.Vr2i) *Map {
	return &Map{W: w, H: h, Vectors: vectors}
}

// Sobel5x5 computes the gradient map of an 8-bit raster. Border pixels
// (two outermost rings) keep a zero gradient.
func Sobel5x5(src *raster.Image8) *Map {
	m := &Map{W: src.W, H: src.H, Vectors: make([]geom.Vr2i, src.W*src.H)}
	for y := 2; y < src.H-2; y++ {
		for x := 2; x < src.W-2; x++ {
			var gx, gy int32
			for j := -2; j <= 2; j++ {
				for i := -2; i <= 2; i++ {
					v := int32(src.At(x+i, y+j))
					gx += kernelX[j+2][i+2] * v
					gy += kernelX[i+2][j+2] * v
				}
			}
			m.Vectors[y*src.W+x] = geom.Vr2i{X: gx, Y: gy}
		}
	}
	return m
}

// At returns the gradient vector at (x, y).
func (m *Map) At(x, y int) geom.Vr2i { return m.Vectors[y*m.W+x] }

// SqNorm returns the squared gradient magnitude at (x, y).
func (m *Map) SqNorm(x, y int) int64 { return m.Vectors[y*m.W+x].SqNorm() }

// MagnitudeImage renders the gradient magnitudes normalized over the full
// 8-bit range, for preview output.
func (m *Map) MagnitudeImage() *raster.Image8 {
	mag := make([]float64, len(m.Vectors))
	for i, v := range m.Vectors {
		mag[i] = float64(v.SqNorm())
	}
	im := raster.NewImage8(m.W, m.H)
	lo, hi := floats.Min(mag), floats.Max(mag)
	if hi <= lo {
		return im
	}
	for i, v := range mag {
		im.Bits[i] = byte((v - lo) * 255 / (hi - lo))
	}
	return im
}
