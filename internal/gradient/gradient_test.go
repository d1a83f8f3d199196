package gradient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/amrel/internal/raster"
)

// vertical step edge: dark west half, bright east half.
func stepImage(w, h int) *raster.Image8 {
	im := raster.NewImage8(w, h)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			im.Set(x, y, 200)
		}
	}
	return im
}

func TestSobelStepEdge(t *testing.T) {
	t.Parallel()

	m := Sobel5x5(stepImage(16, 16))
	v := m.At(8, 8)
	assert.Positive(t, v.X, "west-to-east step gives positive dx")
	assert.Zero(t, v.Y, "no vertical variation")
	assert.Positive(t, m.SqNorm(8, 8))

	// Far from the edge the gradient vanishes.
	assert.Zero(t, m.SqNorm(3, 8))
	// Border ring stays zero.
	assert.Zero(t, m.SqNorm(0, 0))
	assert.Zero(t, m.SqNorm(1, 8))
}

func TestSobelFlat(t *testing.T) {
	t.Parallel()

	im := raster.NewImage8(10, 10)
	im.Fill(77)
	m := Sobel5x5(im)
	for _, v := range m.Vectors {
		assert.Zero(t, v.SqNorm())
	}
}

func TestMagnitudeImage(t *testing.T) {
	t.Parallel()

	m := Sobel5x5(stepImage(16, 16))
	im := m.MagnitudeImage()
	assert.Equal(t, byte(255), maxByte(im.Bits))
	assert.Equal(t, byte(0), im.At(0, 0))
}

func maxByte(b []byte) byte {
	var m byte
	for _, v := range b {
		if v > m {
			m = v
		}
	}
	return m
}
