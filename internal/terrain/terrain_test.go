package terrain

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/amrel/internal/raster"
)

// flatTile builds a tw x th tile of vertical normals at (xm, ym) metres.
func flatTile(tw, th int, cell float32, xm, ym float64) *Tile {
	t := &Tile{Cols: tw, Rows: th, CellSize: cell, XMin: xm, YMin: ym,
		Normals: make([]float32, 3*tw*th)}
	for c := 0; c < tw*th; c++ {
		t.Normals[3*c+2] = 1
	}
	return t
}

func writeTiles(t *testing.T, dir string, cols, rows, tw, th int, cell float32) (*Map, int64, int64) {
	t.Helper()
	m := NewMap()
	for ty := 0; ty < rows; ty++ {
		for tx := 0; tx < cols; tx++ {
			// ty counts from the north, world y from the south.
			xm := float64(tx) * float64(cell) * float64(tw)
			ym := float64(rows-1-ty) * float64(cell) * float64(th)
			tile := flatTile(tw, th, cell, xm, ym)
			path := filepath.Join(dir, fmt.Sprintf("t%d_%d.nvm", tx, ty))
			require.NoError(t, tile.Save(path))
			m.AddNormalMapFile(path)
		}
	}
	return m, 0, 0
}

func TestNVMRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tile := flatTile(4, 3, 0.5, 12.5, 7.25)
	path := filepath.Join(dir, "a.nvm")
	require.NoError(t, tile.Save(path))

	got, err := LoadNVM(path)
	require.NoError(t, err)
	assert.Equal(t, tile, got)

	head, err := LoadNVMInfo(path)
	require.NoError(t, err)
	assert.Nil(t, head.Normals)
	assert.Equal(t, 4, head.Cols)
}

func TestAssembleMap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, xref, yref := writeTiles(t, dir, 2, 2, 4, 4, 1.0)
	require.NoError(t, m.AssembleMap(2, 2, xref, yref))
	assert.Equal(t, 8, m.Width())
	assert.Equal(t, 8, m.Height())
	assert.Equal(t, float32(1.0), m.CellSize())
}

func TestAssembleMapMisaligned(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := NewMap()
	tile := flatTile(4, 4, 1.0, 1.5, 0) // off-grid x
	path := filepath.Join(dir, "bad.nvm")
	require.NoError(t, tile.Save(path))
	m.AddNormalMapFile(path)
	err := m.AssembleMap(1, 1, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aligned")
}

func TestAssembleMapEmpty(t *testing.T) {
	t.Parallel()

	err := NewMap().AssembleMap(1, 1, 0, 0)
	assert.Error(t, err)
}

func TestShadeModes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, xref, yref := writeTiles(t, dir, 1, 1, 4, 4, 1.0)
	require.NoError(t, m.AssembleMap(1, 1, xref, yref))

	// Vertical normals: no slope, bright-ish hill shade.
	assert.Equal(t, byte(0), m.Get(1, 1, ShadeSlope))
	hill := m.Get(1, 1, ShadeHill)
	assert.InDelta(t, 255*math.Sqrt2/2, float64(hill), 1)
}

func TestExpandedSlopeStretch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tile := flatTile(4, 4, 1.0, 0, 0)
	// West half flat, east half tilted: slope 0 and 0.6.
	for j := 0; j < 4; j++ {
		for i := 2; i < 4; i++ {
			base := 3 * (j*4 + i)
			tile.Normals[base] = 0.6
			tile.Normals[base+1] = 0
			tile.Normals[base+2] = 0.8
		}
	}
	path := filepath.Join(dir, "t.nvm")
	require.NoError(t, tile.Save(path))
	m := NewMap()
	m.AddNormalMapFile(path)
	require.NoError(t, m.AssembleMap(1, 1, 0, 0))

	// The slope range is stretched over the full dynamic range.
	assert.Equal(t, byte(0), m.Get(0, 0, ShadeExpSlope))
	assert.Equal(t, byte(255), m.Get(3, 0, ShadeExpSlope))
}

func TestPadIterationCoversSector(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, xref, yref := writeTiles(t, dir, 4, 4, 2, 2, 1.0)
	m.SetPadSize(3)
	require.NoError(t, m.ArrangeFiles(4, 4, xref, yref, false))
	m.AdjustPadSize()
	assert.Equal(t, 3, m.PadWidth())

	dst := raster.NewImage8(m.PadWidth()*m.TileWidth(), m.PadHeight()*m.TileHeight())
	covered := make(map[int]bool)
	for k := m.NextPad(dst); k != -1; k = m.NextPad(dst) {
		kx := k % 4
		ky := k / 4
		for ty := ky; ty < ky+m.PadHeight(); ty++ {
			for tx := kx; tx < kx+m.PadWidth(); tx++ {
				covered[ty*4+tx] = true
			}
		}
	}
	assert.Len(t, covered, 16, "every tile covered by some pad")
}

func TestPadSizeClampedToSector(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, xref, yref := writeTiles(t, dir, 2, 2, 2, 2, 1.0)
	m.SetPadSize(5)
	require.NoError(t, m.ArrangeFiles(2, 2, xref, yref, false))
	m.AdjustPadSize()
	assert.Equal(t, 2, m.PadWidth())
	assert.Equal(t, 2, m.PadHeight())
}

func TestImportASC(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tile.asc")
	asc := "ncols 3\nnrows 3\nxllcorner 0\nyllcorner 0\ncellsize 1.0\n" +
		"5 5 5\n5 5 5\n5 5 5\n"
	require.NoError(t, os.WriteFile(path, []byte(asc), 0o644))

	tile, err := ImportASC(path)
	require.NoError(t, err)
	assert.Equal(t, 3, tile.Cols)
	nx, ny, nz := tile.NormalAt(1, 1)
	assert.InDelta(t, 0, float64(nx), 1e-6)
	assert.InDelta(t, 0, float64(ny), 1e-6)
	assert.InDelta(t, 1, float64(nz), 1e-6)
}
