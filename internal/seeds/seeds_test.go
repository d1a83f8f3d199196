package seeds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/amrel/internal/fbsd"
	"github.com/banshee-data/amrel/internal/geom"
)

func grid(cols, rows, tw, th int) geom.TileGeometry {
	return geom.TileGeometry{Cols: cols, Rows: rows, TileW: tw, TileH: th}
}

func allDeclared(int) bool { return true }

func TestBuildSpacingAndOrientation(t *testing.T) {
	t.Parallel()

	g := grid(1, 1, 100, 100)
	b := NewBuilder()
	b.SetSeedShift(10)
	b.SetSeedWidth(10)

	// Horizontal segment along y=49, from x=20 to x=70.
	dss := []fbsd.DSS{fbsd.PointDSS(20, 49, 70, 49)}
	out := make([][]geom.Pt2i, 1)
	st := b.Build(dss, g, 0, 0, 1, allDeclared, out)

	// Length 50, spacing 10: positions 0..50 give 6 seeds.
	assert.Equal(t, 6, st.Seeds)
	require.Len(t, out[0], 12)
	p1, p2 := out[0][0], out[0][1]
	// Seed pair is orthogonal to the segment: same x, 2*w2 apart in y.
	assert.Equal(t, p1.X, p2.X)
	assert.Equal(t, 10, p2.Y-p1.Y)
	// Midpoint sits on the segment (flipped to sector coordinates).
	assert.Equal(t, 99-49, p1.Mid(p2).Y)
}

func TestBuildRejectsShortSegments(t *testing.T) {
	t.Parallel()

	g := grid(1, 1, 100, 100)
	b := NewBuilder()
	b.SetMinBSLength(60)
	out := make([][]geom.Pt2i, 1)
	st := b.Build([]fbsd.DSS{fbsd.PointDSS(0, 50, 50, 50)}, g, 0, 0, 1, allDeclared, out)
	assert.Equal(t, 1, st.Rejected)
	assert.Zero(t, st.Seeds)

	// Floor zero admits everything.
	b.SetMinBSLength(-5)
	assert.Zero(t, b.MinBSLength())
	st = b.Build([]fbsd.DSS{fbsd.PointDSS(0, 50, 50, 50)}, g, 0, 0, 1, allDeclared, out)
	assert.Positive(t, st.Seeds)
}

func TestBuildSkipsOutOfSector(t *testing.T) {
	t.Parallel()

	g := grid(1, 1, 40, 40)
	b := NewBuilder()
	b.SetSeedShift(10)
	b.SetSeedWidth(10)
	// Segment near the south rim: p1 of each seed leaves the raster.
	out := make([][]geom.Pt2i, 1)
	st := b.Build([]fbsd.DSS{fbsd.PointDSS(5, 38, 35, 38)}, g, 0, 0, 1, allDeclared, out)
	assert.Zero(t, st.Seeds)
	assert.Equal(t, 4, st.Outside)
}

func TestBuildBucketsByMidpointTile(t *testing.T) {
	t.Parallel()

	g := grid(2, 1, 50, 50)
	b := NewBuilder()
	b.SetSeedShift(10)
	b.SetSeedWidth(10)
	out := make([][]geom.Pt2i, 2)
	st := b.Build([]fbsd.DSS{fbsd.PointDSS(10, 25, 90, 25)}, g, 0, 0, 1, allDeclared, out)
	assert.Positive(t, st.Seeds)
	assert.NotEmpty(t, out[0])
	assert.NotEmpty(t, out[1])
}

func TestBuildUndeclaredTile(t *testing.T) {
	t.Parallel()

	g := grid(2, 1, 50, 50)
	b := NewBuilder()
	out := make([][]geom.Pt2i, 2)
	st := b.Build([]fbsd.DSS{fbsd.PointDSS(10, 25, 90, 25)}, g, 0, 0, 1,
		func(k int) bool { return k == 0 }, out)
	assert.Empty(t, out[1])
	assert.Positive(t, st.Outside)
}

func TestPadOffsets(t *testing.T) {
	t.Parallel()

	g := grid(3, 3, 10, 10)
	b := NewBuilder()
	b.SetSeedShift(10)
	b.SetSeedWidth(10)
	out := make([][]geom.Pt2i, 9)
	// Pad anchored at tile (1, 1), one tile high: pad-local y counts down
	// from the top of the anchor row.
	st := b.Build([]fbsd.DSS{fbsd.PointDSS(0, 4, 9, 4)}, g, 1, 1, 1, allDeclared, out)
	assert.Positive(t, st.Seeds)
	for k, bucket := range out {
		if len(bucket) == 0 {
			continue
		}
		assert.Equal(t, 4, k, "seeds land on the pad anchor tile")
		for _, p := range bucket {
			assert.GreaterOrEqual(t, p.X, 10)
			assert.Less(t, p.X, 20)
		}
	}
}

func TestKnobClamps(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	b.SetSeedShift(3)
	assert.Equal(t, MinSeedShift, b.SeedShift())
	b.SetSeedWidth(2)
	assert.Equal(t, MinSeedWidth, b.SeedWidth())
}

func TestHalfSizeHalvesKnobs(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	b.SetMinBSLength(80)
	b.SetSeedShift(24)
	b.SetSeedWidth(40)
	b.SetHalfSize(true)
	assert.Equal(t, 40, b.MinBSLength())
	assert.Equal(t, 12, b.SeedShift())
	assert.Equal(t, 20, b.SeedWidth())

	// Knobs set while in half-size mode are halved too.
	b.SetSeedShift(30)
	assert.Equal(t, 15, b.SeedShift())
}

func TestExpandHalfSizeRoundTrip(t *testing.T) {
	t.Parallel()

	g := grid(2, 2, 20, 20)
	buckets := make([][]geom.Pt2i, 4)
	orig1 := geom.Pt2i{X: 5, Y: 7}
	orig2 := geom.Pt2i{X: 11, Y: 3}
	buckets[0] = []geom.Pt2i{orig1, orig2}

	out, outliers := ExpandHalfSize(buckets, g)
	assert.Zero(t, outliers)
	require.Len(t, out, 16)

	var p1, p2 geom.Pt2i
	found := false
	for _, bucket := range out {
		if len(bucket) == 2 {
			p1, p2 = bucket[0], bucket[1]
			found = true
		}
	}
	require.True(t, found)
	// Coordinates are 2*original plus at most one nudge pixel.
	assert.LessOrEqual(t, absInt(p1.X-2*orig1.X), 1)
	assert.LessOrEqual(t, absInt(p1.Y-2*orig1.Y), 1)
	assert.LessOrEqual(t, absInt(p2.X-2*orig2.X), 1)
	assert.LessOrEqual(t, absInt(p2.Y-2*orig2.Y), 1)
	// Orientation preserved.
	assert.Positive(t, p2.X-p1.X)
	assert.Negative(t, p2.Y-p1.Y)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
