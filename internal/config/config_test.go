package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/amrel/internal/cloud"
	"github.com/banshee-data/amrel/internal/fsutil"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	c := New()
	assert.Equal(t, cloud.TOP, c.CloudAccess)
	assert.Equal(t, 7, c.MaxBSThickness)
	assert.Equal(t, 80, c.MinBSLength)
	assert.Equal(t, 24, c.SeedShift)
	assert.Equal(t, 40, c.SeedWidth)
	assert.Zero(t, c.PadSize)
	assert.Zero(t, c.BufferSize)
	assert.Equal(t, StepAll, c.Step)
	assert.False(t, c.RorpoOff)
	assert.True(t, c.Connected)
	assert.True(t, c.Verbose)
	assert.False(t, c.TailMinSet)
}

func TestClamps(t *testing.T) {
	t.Parallel()

	c := New()
	c.SetMaxBSThickness(1)
	assert.Equal(t, 3, c.MaxBSThickness)
	c.SetMinBSLength(-2)
	assert.Zero(t, c.MinBSLength)
	c.SetSeedShift(4)
	assert.Equal(t, 10, c.SeedShift)
	c.SetSeedWidth(4)
	assert.Equal(t, 10, c.SeedWidth)

	assert.Error(t, c.SetPadSize(4))
	assert.Error(t, c.SetPadSize(-1))
	assert.NoError(t, c.SetPadSize(0))
	assert.NoError(t, c.SetPadSize(5))
	assert.Error(t, c.SetBufferSize(2))
	assert.NoError(t, c.SetBufferSize(3))
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	fs.WriteFile(ConfigFile, []byte(
		"CLOUD_ACCESS MID\nMAX_BS_THICKNESS 9\nMIN_BS_LENGTH 60\n"+
			"SEED_SHIFT 12\nSEED_WIDTH 20\nPAD_SIZE 3\nBUFFER_SIZE 5\n"+
			"TAIL_MIN_SIZE 8\nRORPO OFF\nCONNECTED OFF\nSTEP SOBEL\nOUT_MAP ON\n"+
			"BACK_DTM ON\nFALSE_COLOR ON\nVERBOSE OFF\n"), 0o644)
	c := NewFS(fs)
	require.NoError(t, c.Load())
	assert.Equal(t, cloud.MID, c.CloudAccess)
	assert.Equal(t, 9, c.MaxBSThickness)
	assert.Equal(t, 60, c.MinBSLength)
	assert.Equal(t, 12, c.SeedShift)
	assert.Equal(t, 20, c.SeedWidth)
	assert.Equal(t, 3, c.PadSize)
	assert.Equal(t, 5, c.BufferSize)
	assert.Equal(t, 8, c.TailMinSize)
	assert.True(t, c.TailMinSet)
	assert.True(t, c.RorpoOff)
	assert.False(t, c.Connected)
	assert.Equal(t, StepSobel, c.Step)
	assert.True(t, c.OutMap)
	assert.True(t, c.BackDtm)
	assert.True(t, c.FalseColor)
	assert.False(t, c.Verbose)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"unknown key", "NO_SUCH_KEY 1\n"},
		{"bad int", "SEED_SHIFT twelve\n"},
		{"bad status", "CONNECTED MAYBE\n"},
		{"bad step", "STEP NOWHERE\n"},
		{"even pad", "PAD_SIZE 2\n"},
		{"missing value", "SEED_WIDTH"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fs := fsutil.NewMemoryFileSystem()
			fs.WriteFile(ConfigFile, []byte(tc.body), 0o644)
			assert.Error(t, NewFS(fs).Load())
		})
	}
}

func TestLoadMissingConfigIsFine(t *testing.T) {
	t.Parallel()

	c := NewFS(fsutil.NewMemoryFileSystem())
	assert.NoError(t, c.Load())
}

func TestSetInputNameConflict(t *testing.T) {
	t.Parallel()

	c := New()
	require.NoError(t, c.SetInputName("sector_a"))
	assert.Equal(t, "sector_a", c.InputName())
	assert.Error(t, c.SetInputName("sector_b"))
}

func TestTilPrefix(t *testing.T) {
	t.Parallel()

	c := New()
	assert.Equal(t, "til/top/top_", c.TilPrefix())
	c.CloudAccess = cloud.ECO
	assert.Equal(t, "til/eco/eco_", c.TilPrefix())
	assert.Equal(t, "til/eco/eco_t4.til", c.TilPath("t4"))
}

func TestSetTilesFromNamedSet(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	fs.WriteFile(TilesetDir+"hills"+TxtSuffix, []byte("t1\nt2\n"), 0o644)
	c := NewFS(fs)
	c.Verbose = false
	require.NoError(t, c.SetInputName("hills"))
	require.NoError(t, c.SetTiles())

	// The named set becomes the remembered default.
	data, err := fs.ReadFile(TilesetDir + LastSetName + TxtSuffix)
	require.NoError(t, err)
	assert.Equal(t, "hills\n", string(data))

	names, err := c.TileSetNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, names)
}

func TestSetTilesFromCliNames(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	fs.WriteFile(NvmDir+"t7.nvm", []byte("x"), 0o644)
	fs.WriteFile(TilDir+"top/top_t7.til", []byte("x"), 0o644)
	c := NewFS(fs)
	c.Verbose = false
	c.AddTileName("t7")
	require.NoError(t, c.SetTiles())

	assert.Equal(t, LastTiles, c.InputName())
	data, err := fs.ReadFile(TilesetDir + LastTiles + TxtSuffix)
	require.NoError(t, err)
	assert.Equal(t, "t7\n", string(data))
}

func TestSetTilesUnknownTile(t *testing.T) {
	t.Parallel()

	c := NewFS(fsutil.NewMemoryFileSystem())
	c.Verbose = false
	c.AddTileName("ghost")
	assert.Error(t, c.SetTiles())
}

func TestSetTilesNothingSpecified(t *testing.T) {
	t.Parallel()

	c := NewFS(fsutil.NewMemoryFileSystem())
	c.Verbose = false
	assert.Error(t, c.SetTiles())
}

func TestSetImportFileRouting(t *testing.T) {
	t.Parallel()

	c := New()
	c.SetImportFile("tile.asc")
	c.SetImportFile("points.xyz")
	assert.Equal(t, []string{"tile.asc"}, c.DtmImports)
	assert.Equal(t, "points.xyz", c.XyzFile)
	assert.True(t, c.ImportRequested())
}

func TestStepString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ALL", StepAll.String())
	assert.Equal(t, "SAWING", StepSawing.String())
	assert.Equal(t, "ASD", StepAsd.String())
}
