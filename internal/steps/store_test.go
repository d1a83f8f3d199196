package steps

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/amrel/internal/fbsd"
	"github.com/banshee-data/amrel/internal/fsutil"
	"github.com/banshee-data/amrel/internal/geom"
	"github.com/banshee-data/amrel/internal/gradient"
	"github.com/banshee-data/amrel/internal/raster"
)

func memStore() (*Store, *fsutil.MemoryFileSystem) {
	fs := fsutil.NewMemoryFileSystem()
	return NewStoreFS(fs, "steps"), fs
}

func TestByteMapRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := memStore()
	im := raster.NewImage8(6, 4)
	for i := range im.Bits {
		im.Bits[i] = byte(i * 11)
	}
	require.NoError(t, s.SaveByteMap(ShadeMapFile, im, 1.25))
	assert.True(t, s.Has(ShadeMapFile))

	got, csize, err := s.LoadByteMap(ShadeMapFile)
	require.NoError(t, err)
	assert.Equal(t, float32(1.25), csize)
	assert.Empty(t, cmp.Diff(im.Bits, got.Bits))
}

func TestByteMapIdempotent(t *testing.T) {
	t.Parallel()

	s, fs := memStore()
	im := raster.NewImage8(5, 5)
	im.Set(2, 2, 9)
	require.NoError(t, s.SaveByteMap(RorpoMapFile, im, 1))
	first, err := fs.ReadFile("steps/" + RorpoMapFile)
	require.NoError(t, err)
	require.NoError(t, s.SaveByteMap(RorpoMapFile, im, 1))
	second, err := fs.ReadFile("steps/" + RorpoMapFile)
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical save produces identical bytes")
}

func TestGradientMapRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := memStore()
	vectors := []geom.Vr2i{{X: 1, Y: -2}, {X: 3, Y: 4}, {X: -5, Y: 6}, {X: 0, Y: 0}}
	m := gradient.NewMap(2, 2, vectors)
	require.NoError(t, s.SaveGradientMap(m, 0.5))

	got, csize, err := s.LoadGradientMap()
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), csize)
	assert.Equal(t, m.Vectors, got.Vectors)
	assert.Equal(t, int64(5), got.SqNorm(0, 0))
}

func TestDSSRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := memStore()
	dss := []fbsd.DSS{
		fbsd.PointDSS(1, 2, 30, 40),
		{X1: fbsd.Rat{Num: 7, Den: 2}, Y1: fbsd.Rat{Num: 9, Den: 4},
			X2: fbsd.Rat{Num: 21, Den: 2}, Y2: fbsd.Rat{Num: 5, Den: 1}, Len2: 55},
	}
	require.NoError(t, s.SaveDSS(dss, 100, 80, 1.0, 2, 2))

	got, w, h, csize, tsw, tsh, err := s.LoadDSS()
	require.NoError(t, err)
	assert.Equal(t, dss, got)
	assert.Equal(t, []int{100, 80, 2, 2}, []int{w, h, tsw, tsh})
	assert.Equal(t, float32(1.0), csize)
}

func TestSeedsRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := memStore()
	// 2x2 grid of 10-pixel tiles.
	buckets := make([][]geom.Pt2i, 4)
	buckets[0] = []geom.Pt2i{{X: 2, Y: 3}, {X: 6, Y: 3}}
	buckets[3] = []geom.Pt2i{{X: 14, Y: 15}, {X: 18, Y: 15}, {X: 12, Y: 11}, {X: 16, Y: 11}}
	require.NoError(t, s.SaveSeeds(buckets, 20, 20, 1.0, 2, 2))

	got, w, h, _, tsw, tsh, err := s.LoadSeeds()
	require.NoError(t, err)
	assert.Equal(t, 20, w)
	assert.Equal(t, 20, h)
	assert.Equal(t, 2, tsw)
	assert.Equal(t, 2, tsh)
	// Re-bucketed by midpoint: same contents per tile.
	assert.ElementsMatch(t, buckets[0], got[0])
	assert.Len(t, got[3], 4)
	assert.Empty(t, got[1])
	assert.Empty(t, got[2])
}

func TestLoadMissingArtifact(t *testing.T) {
	t.Parallel()

	s, _ := memStore()
	_, _, err := s.LoadByteMap(ShadeMapFile)
	assert.Error(t, err)
	_, _, _, _, _, _, err = s.LoadSeeds()
	assert.Error(t, err)
	assert.False(t, s.Has(SeedsFile))
}

func TestSaveSucseeds(t *testing.T) {
	t.Parallel()

	s, fs := memStore()
	buckets := make([][]geom.Pt2i, 1)
	buckets[0] = []geom.Pt2i{{X: 0, Y: 0}, {X: 2, Y: 0}}
	require.NoError(t, s.SaveSucseeds(buckets, 1, 1, 1000000, 2000000, 500000))

	data, err := fs.ReadFile("steps/" + SucseedsFile)
	require.NoError(t, err)
	assert.Equal(t, "1250000 2250000 2250000 2250000\n", string(data))
}

func TestSaveDetectorStatus(t *testing.T) {
	t.Parallel()

	s, fs := memStore()
	require.NoError(t, s.SaveDetectorStatus(DetectorStatus{
		Version:   "1.1.1",
		Tile:      "last_tiles",
		Connected: true,
	}))
	data, err := fs.ReadFile("steps/" + AutodetFile)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "[AMREL]\n"))
	assert.Contains(t, text, "[CTrack]\n")
	assert.Contains(t, text, "Connected=true\n")
}
