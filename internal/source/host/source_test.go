package host

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	monerrors "github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/errors"
)

const statT0 = `cpu  1000 50 300 6000 200 10 40 0 0 0
cpu0 500 25 150 3000 100 5 20 0 0 0
intr 12345
`

// 400 busy and 600 idle jiffies elapsed since statT0: 40% busy.
const statT1 = `cpu  1300 70 370 6550 250 15 45 0 0 0
cpu0 650 35 185 3275 125 8 22 0 0 0
intr 23456
`

const meminfoData = `MemTotal:       16384000 kB
MemFree:         2048000 kB
MemAvailable:    4096000 kB
Buffers:          512000 kB
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSource_Poll(t *testing.T) {
	statPath := writeTemp(t, "stat", statT0)
	src := &Source{
		statPath:    statPath,
		meminfoPath: writeTemp(t, "meminfo", meminfoData),
	}

	// First poll: no CPU delta yet, RAM only.
	reading, err := src.Poll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, reading.Host)
	assert.Nil(t, reading.Host.CPUUtilPct)
	require.NotNil(t, reading.Host.RAMUtilPct)
	assert.InDelta(t, 75.0, *reading.Host.RAMUtilPct, 0.001) // (16384000-4096000)/16384000

	// Second poll: counters moved, CPU percentage appears.
	require.NoError(t, os.WriteFile(statPath, []byte(statT1), 0o644))
	reading, err = src.Poll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, reading.Host.CPUUtilPct)
	assert.InDelta(t, 40.0, *reading.Host.CPUUtilPct, 0.001)
}

func TestSource_Poll_ProcfsUnreadable(t *testing.T) {
	src := &Source{
		statPath:    filepath.Join(t.TempDir(), "missing"),
		meminfoPath: writeTemp(t, "meminfo", meminfoData),
	}

	_, err := src.Poll(context.Background())
	var sue *monerrors.SourceUnavailableError
	require.ErrorAs(t, err, &sue)
	assert.Equal(t, "host", sue.Source)
}

func TestSource_Poll_UnchangedCountersYieldNoCPU(t *testing.T) {
	src := &Source{
		statPath:    writeTemp(t, "stat", statT0),
		meminfoPath: writeTemp(t, "meminfo", meminfoData),
	}

	_, err := src.Poll(context.Background())
	require.NoError(t, err)

	// Same counters again: zero elapsed jiffies, no percentage to report.
	reading, err := src.Poll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, reading.Host.CPUUtilPct)
}

func TestParseCPULine(t *testing.T) {
	c, err := parseCPULine([]byte(statT0))
	require.NoError(t, err)
	assert.Equal(t, uint64(7600), c.total)
	assert.Equal(t, uint64(6200), c.idle) // idle + iowait
}

func TestParseCPULine_Errors(t *testing.T) {
	_, err := parseCPULine([]byte("intr 12345\n"))
	assert.Error(t, err)

	_, err = parseCPULine([]byte("cpu  1000 50\n"))
	assert.Error(t, err)

	_, err = parseCPULine([]byte("cpu  1000 50 x 6000\n"))
	assert.Error(t, err)
}

func TestParseMeminfo(t *testing.T) {
	pct, err := parseMeminfo([]byte(meminfoData))
	require.NoError(t, err)
	assert.InDelta(t, 75.0, *pct, 0.001)
}

func TestParseMeminfo_MemFreeFallback(t *testing.T) {
	data := `MemTotal:       1000000 kB
MemFree:         400000 kB
`
	pct, err := parseMeminfo([]byte(data))
	require.NoError(t, err)
	assert.InDelta(t, 60.0, *pct, 0.001)
}

func TestParseMeminfo_NoTotal(t *testing.T) {
	_, err := parseMeminfo([]byte("MemFree: 400000 kB\n"))
	assert.Error(t, err)
}
