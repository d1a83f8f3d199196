package config

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/amrel/internal/cloud"
)

// chdirT changes the working directory to dir and restores the previous
// directory on test cleanup (polyfill for testing.T.Chdir on Go < 1.24).
func chdirT(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(prev))
	})
}

// writeTopTile builds a 4x4-cell TOP tile with one point per cell under
// til/top/.
func writeTopTile(t *testing.T, name string) {
	t.Helper()
	var sb strings.Builder
	for yi := 0; yi < 4; yi++ {
		for xi := 0; xi < 4; xi++ {
			fmt.Fprintf(&sb, "%f %f %f\n", 0.5+float64(xi), 0.5+float64(yi), 100.0)
		}
	}
	xyz := "pts.xyz"
	require.NoError(t, os.WriteFile(xyz, []byte(sb.String()), 0o644))
	tile := &cloud.Tile{Access: cloud.TOP, Cols: 4, Rows: 4, CellMu: cloud.XYZUnit}
	require.NoError(t, tile.LoadXYZ(xyz))
	require.NoError(t, os.MkdirAll("til/top", 0o755))
	require.NoError(t, tile.Save("til/top/top_"+name+".til"))
}

func TestCreateAltTile(t *testing.T) {
	chdirT(t, t.TempDir())
	require.NoError(t, os.MkdirAll("til/mid", 0o755))
	writeTopTile(t, "t0")

	c := New()
	c.Verbose = false
	c.CloudAccess = cloud.MID
	require.True(t, c.CreateAltTile("t0"))

	var derived cloud.Tile
	require.NoError(t, derived.Load("til/mid/mid_t0.til"))
	assert.Equal(t, cloud.MID, derived.Access)
	assert.Equal(t, 2, derived.Cols)
	assert.Equal(t, 16, derived.PointCount())
}

func TestCreateAltTileNoSource(t *testing.T) {
	chdirT(t, t.TempDir())
	c := New()
	c.Verbose = false
	c.CloudAccess = cloud.MID
	assert.False(t, c.CreateAltTile("ghost"))
}

func TestAltTileFunc(t *testing.T) {
	chdirT(t, t.TempDir())
	require.NoError(t, os.MkdirAll("til/eco", 0o755))
	writeTopTile(t, "t1")

	c := New()
	c.Verbose = false
	c.CloudAccess = cloud.ECO
	assert.True(t, c.AltTileFunc("til/eco/eco_t1.til"))
	assert.True(t, c.fs.Exists("til/eco/eco_t1.til"))

	// A path that does not match the class naming is refused outright.
	assert.False(t, c.AltTileFunc("til/eco/other_t1.til"))
}
