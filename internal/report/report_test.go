package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerOrder(t *testing.T) {
	t.Parallel()

	tm := NewTimer()
	done := tm.Stage("SHADE")
	done()
	tm.Record("RORPO", 2*time.Second)
	tm.Record("SOBEL", 3*time.Second)

	stages := tm.Stages()
	require.Len(t, stages, 3)
	assert.Equal(t, "SHADE", stages[0].Name)
	assert.Equal(t, "RORPO", stages[1].Name)
	assert.GreaterOrEqual(t, tm.Total(), 5*time.Second)
}

func TestWriteHTML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.html")
	stages := []StageTime{
		{Name: "SHADE", Duration: time.Second},
		{Name: "ASD", Duration: 4 * time.Second},
	}
	require.NoError(t, WriteHTML(path, stages, Summary{Sector: "hills", Roads: 3, Seeds: 120, Unused: 7}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "AMREL stage timings")
	assert.Contains(t, text, "hills")
	assert.Contains(t, text, "SHADE")
}
