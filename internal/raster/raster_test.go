package raster

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/amrel/internal/geom"
)

func TestLabelMapAdd(t *testing.T) {
	t.Parallel()

	m := NewLabelMap(8, 8)
	lab := m.Add([][]geom.Pt2i{{{X: 1, Y: 1}, {X: 2, Y: 1}}, {{X: 1, Y: 2}}})
	assert.Equal(t, uint16(1), lab)
	assert.Equal(t, 1, m.NumberOfRoads())
	assert.True(t, m.Occupied(geom.Pt2i{X: 1, Y: 1}))
	assert.True(t, m.Occupied(geom.Pt2i{X: 1, Y: 2}))
	assert.False(t, m.Occupied(geom.Pt2i{X: 3, Y: 3}))
}

func TestLabelMapNeverOverwrites(t *testing.T) {
	t.Parallel()

	m := NewLabelMap(4, 4)
	m.Add([][]geom.Pt2i{{{X: 1, Y: 1}}})
	lab2 := m.Add([][]geom.Pt2i{{{X: 1, Y: 1}, {X: 2, Y: 2}}})

	// First label survives the overlapping stamp; only the free pixel
	// receives the second label.
	assert.Equal(t, uint16(1), m.At(1, 1))
	assert.Equal(t, lab2, m.At(2, 2))
	assert.Equal(t, 2, m.NumberOfRoads())
}

func TestLabelMapIgnoresOutOfBounds(t *testing.T) {
	t.Parallel()

	m := NewLabelMap(4, 4)
	m.Add([][]geom.Pt2i{{{X: -1, Y: 0}, {X: 4, Y: 0}, {X: 0, Y: 9}, {X: 3, Y: 3}}})
	assert.Equal(t, uint16(1), m.At(3, 3))
}

func TestLabelMapFlip(t *testing.T) {
	t.Parallel()

	m := NewLabelMap(3, 3)
	m.Add([][]geom.Pt2i{{{X: 0, Y: 0}}})
	// Row y=0 is stored in the last storage row.
	assert.Equal(t, uint16(1), m.Labels()[2*3+0])
}

func TestLabelMapBounds(t *testing.T) {
	t.Parallel()

	m := NewLabelMap(8, 8)
	m.Add([][]geom.Pt2i{{{X: 2, Y: 3}, {X: 5, Y: 4}, {X: 3, Y: 6}}})
	minX, minY, maxX, maxY, err := m.Bounds(1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 5, 6}, []int{minX, minY, maxX, maxY})

	_, _, _, _, err = m.Bounds(9)
	assert.Error(t, err)
}

func TestSavePNG(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	im := NewImage8(4, 4)
	im.Set(1, 2, 200)
	require.NoError(t, SavePNG(im, filepath.Join(dir, "a.png")))

	m := NewLabelMap(4, 4)
	m.Add([][]geom.Pt2i{{{X: 0, Y: 0}}})
	require.NoError(t, SaveLabelPNG(m, im, false, filepath.Join(dir, "b.png")))
	require.NoError(t, SaveLabelPNG(m, nil, true, filepath.Join(dir, "c.png")))
}
