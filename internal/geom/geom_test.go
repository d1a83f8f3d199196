package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerpentineOrder(t *testing.T) {
	t.Parallel()

	s := NewSerpentine(3, 3)
	var got []int
	for k := s.Next(); k != -1; k = s.Next() {
		got = append(got, k)
	}
	// Rows 0 and 2 west to east, row 1 east to west.
	assert.Equal(t, []int{0, 1, 2, 5, 4, 3, 6, 7, 8}, got)

	// Exhausted cursor stays exhausted.
	assert.Equal(t, -1, s.Next())
	s.Reset()
	assert.Equal(t, 0, s.Next())
}

func TestSerpentineSingleColumn(t *testing.T) {
	t.Parallel()

	s := NewSerpentine(1, 4)
	var got []int
	for k := s.Next(); k != -1; k = s.Next() {
		got = append(got, k)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, got)
}

func TestTileOfClamps(t *testing.T) {
	t.Parallel()

	g := TileGeometry{Cols: 3, Rows: 2, TileW: 10, TileH: 10}
	cases := []struct {
		name   string
		p      Pt2i
		tx, ty int
	}{
		{"interior", Pt2i{15, 5}, 1, 0},
		{"east overhang", Pt2i{31, 5}, 2, 0},
		{"south overhang", Pt2i{5, 25}, 0, 1},
		{"negative", Pt2i{-3, -3}, 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tx, ty := g.TileOf(c.p)
			assert.Equal(t, c.tx, tx)
			assert.Equal(t, c.ty, ty)
		})
	}
}

func TestFlipIndexRoundTrip(t *testing.T) {
	t.Parallel()

	w, h := 7, 5
	seen := make(map[int]bool)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := FlipIndex(w, h, x, y)
			require.GreaterOrEqual(t, idx, 0)
			require.Less(t, idx, w*h)
			require.False(t, seen[idx], "index %d reused", idx)
			seen[idx] = true
		}
	}
	// Row 0 maps to the last storage row.
	assert.Equal(t, (h-1)*w, FlipIndex(w, h, 0, 0))
	assert.Equal(t, 0, FlipIndex(w, h, 0, h-1))
}

func TestPixelToWorld(t *testing.T) {
	t.Parallel()

	g := TileGeometry{Cols: 2, Rows: 2, TileW: 4, TileH: 4, CellMu: 1_000_000, X0: 10_000_000, Y0: 20_000_000}
	x, y := g.PixelToWorld(0, g.Height()-1)
	assert.Equal(t, int64(10_000_000), x)
	assert.Equal(t, int64(20_000_000), y)
	x, y = g.PixelToWorld(3, 0)
	assert.Equal(t, int64(13_000_000), x)
	assert.Equal(t, int64(27_000_000), y)
}
