package rorpo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/amrel/internal/raster"
)

func TestFilterKeepsLongRidge(t *testing.T) {
	t.Parallel()

	src := raster.NewImage8(60, 20)
	for x := 0; x < 60; x++ {
		src.Set(x, 10, 200)
	}
	dst := raster.NewImage8(60, 20)
	Filter(dst, src, 12, 1)
	assert.Equal(t, byte(200), dst.At(30, 10), "long ridge survives")
	assert.Equal(t, byte(0), dst.At(30, 5), "background stays flat")
}

func TestFilterSuppressesCompactBlob(t *testing.T) {
	t.Parallel()

	src := raster.NewImage8(40, 40)
	for y := 18; y <= 21; y++ {
		for x := 18; x <= 21; x++ {
			src.Set(x, y, 250)
		}
	}
	dst := raster.NewImage8(40, 40)
	Filter(dst, src, 16, 1)
	assert.Equal(t, byte(0), dst.At(20, 20), "4x4 blob shorter than the path is removed")
}

func TestFilterDeterministic(t *testing.T) {
	t.Parallel()

	src := raster.NewImage8(30, 30)
	for i := range src.Bits {
		src.Bits[i] = byte((i * 37) % 251)
	}
	a := raster.NewImage8(30, 30)
	b := raster.NewImage8(30, 30)
	Filter(a, src, 10, 2)
	Filter(b, src, 10, 2)
	assert.Equal(t, a.Bits, b.Bits)
}
