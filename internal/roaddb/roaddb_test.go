package roaddb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "amrel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndGetRun(t *testing.T) {
	t.Parallel()

	db := openTemp(t)
	run := &Run{
		Sector:      "hills",
		Step:        "ALL",
		CloudAccess: 1,
		PadSize:     0,
		BufferSize:  3,
		Seeds:       240,
		Unused:      12,
		Roads:       5,
		Duration:    90 * time.Second,
		StartedAt:   time.Unix(1_700_000_000, 0),
	}
	require.NoError(t, db.RecordRun(run))
	require.NotEmpty(t, run.ID, "id assigned on insert")

	got, err := db.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "hills", got.Sector)
	assert.Equal(t, 5, got.Roads)
	assert.Equal(t, 90*time.Second, got.Duration)
	assert.True(t, got.StartedAt.Equal(run.StartedAt))

	n, err := db.RunCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertAndListRoads(t *testing.T) {
	t.Parallel()

	db := openTemp(t)
	run := &Run{Sector: "s", Step: "ASD", StartedAt: time.Unix(0, 0)}
	require.NoError(t, db.RecordRun(run))

	for lab := 2; lab >= 1; lab-- {
		require.NoError(t, db.InsertRoad(&Road{
			RunID: run.ID, Label: lab, PixelCount: 10 * lab,
			MinX: 1, MinY: 2, MaxX: 3, MaxY: 4,
			SeedX1: 5, SeedY1: 6, SeedX2: 7, SeedY2: 8,
		}))
	}
	roads, err := db.RoadsOfRun(run.ID)
	require.NoError(t, err)
	require.Len(t, roads, 2)
	assert.Equal(t, 1, roads[0].Label, "ordered by label")
	assert.Equal(t, 20, roads[1].PixelCount)
}

func TestReopenKeepsSchema(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "amrel.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.RecordRun(&Run{Sector: "a", Step: "ALL", StartedAt: time.Unix(0, 0)}))
	require.NoError(t, db.Close())

	// Second open runs migrations as a no-op and sees the data.
	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()
	n, err := db2.RunCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
