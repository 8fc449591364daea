package recorder

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livegraph/models"
)

func TestExportCSV(t *testing.T) {
	names := []string{"Channel 1", "Channel 2", "Channel 3", "Channel 4"}

	t.Run("nothing to export", func(t *testing.T) {
		var buf bytes.Buffer
		assert.ErrorIs(t, ExportCSV(&buf, names, nil), ErrNothingToExport)
		assert.Zero(t, buf.Len())
	})

	t.Run("layout", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ExportCSV(&buf, names, []models.Sample{{1, 2, 3, 0}, {0.5, -4, 1e-7, 12345678.9}}))
		assert.Equal(t, "Channel 1,Channel 2,Channel 3,Channel 4\n1,2,3,0\n0.5,-4,1e-07,1.23456789e+07", buf.String())
	})

	t.Run("round trip", func(t *testing.T) {
		samples := []models.Sample{
			{1, 2, 3, 0},
			{math.Pi, -math.E, 0.1 + 0.2, math.MaxFloat64},
			{-0.0001, 1e300, math.SmallestNonzeroFloat64, 42},
		}
		var buf bytes.Buffer
		require.NoError(t, ExportCSV(&buf, names, samples))

		gotNames, gotSamples, err := ParseCSV(&buf)
		require.NoError(t, err)
		assert.Equal(t, names, gotNames)
		assert.Equal(t, samples, gotSamples)
	})

	t.Run("parse rejects junk", func(t *testing.T) {
		_, _, err := ParseCSV(strings.NewReader("a,b\n1,zz\n"))
		assert.Error(t, err)
		_, _, err = ParseCSV(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrNothingToExport)
	})
}

func TestExportLog(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, ExportLog(&buf, nil), ErrNothingToExport)
	require.NoError(t, ExportLog(&buf, []string{"hello", "SENT: x"}))
	assert.Equal(t, "hello\nSENT: x", buf.String())
}

func TestRecorder(t *testing.T) {
	t.Run("writes header backlog and appended rows", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "rec.csv")
		r := NewRecorder(2, nil)
		assert.False(t, r.Active())
		require.NoError(t, r.Append("ignored"))

		require.NoError(t, r.Start(path, "a,b", []string{"1,2"}))
		assert.True(t, r.Active())
		assert.ErrorIs(t, r.Start(path, "a,b", nil), ErrAlreadyRecording)

		require.NoError(t, r.Append("3,4"))
		require.NoError(t, r.Append("5,6"))
		assert.Equal(t, 3, r.Rows())

		stopped, err := r.Stop()
		require.NoError(t, err)
		assert.Equal(t, path, stopped)
		assert.False(t, r.Active())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "a,b\n1,2\n3,4\n5,6\n", string(data))

		names, samples, err := ParseCSV(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, names)
		assert.Len(t, samples, 3)
	})

	t.Run("zstd", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rec.txt"+ZSTD_EXT)
		r := NewRecorder(0, nil)
		require.NoError(t, r.Start(path, "", nil))
		require.NoError(t, r.Append("line one"))
		require.NoError(t, r.Append("line two"))
		_, err := r.Stop()
		require.NoError(t, err)

		reader, err := OpenRecording(path)
		require.NoError(t, err)
		defer reader.Close()

		var out bytes.Buffer
		_, err = out.ReadFrom(reader)
		require.NoError(t, err)
		assert.Equal(t, "line one\nline two\n", out.String())
	})

	t.Run("open plain recording", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rec.txt")
		require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
		reader, err := OpenRecording(path)
		require.NoError(t, err)
		defer reader.Close()
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "x\n", string(data))
	})

	t.Run("stop when idle", func(t *testing.T) {
		path, err := NewRecorder(0, nil).Stop()
		assert.NoError(t, err)
		assert.Empty(t, path)
	})
}
