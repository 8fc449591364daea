package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampedName(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "live_graph_2025-03-04T05-06-07", TimestampedName("live_graph", at))
}

func TestNextAvailableFilename(t *testing.T) {
	dir := t.TempDir()
	first := NextAvailableFilename(dir, "serial_log", ".txt")
	assert.Equal(t, filepath.Join(dir, "serial_log.txt"), first)

	require.NoError(t, os.WriteFile(first, nil, 0o644))
	assert.Equal(t, filepath.Join(dir, "serial_log_1.txt"), NextAvailableFilename(dir, "serial_log", ".txt"))
}
