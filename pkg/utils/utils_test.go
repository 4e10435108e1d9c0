package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"2m", 2 * time.Minute},
		{"soon", time.Minute},
		{"-5s", time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseDuration(tt.in, time.Minute), tt.in)
	}
}

func TestOutputManagerPaths(t *testing.T) {
	base := t.TempDir()
	om := NewOutputManager(base)

	dir, err := om.CreateJobOutputDir("abc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "abc"), dir)
	assert.DirExists(t, dir)

	assert.Equal(t, filepath.Join(base, "abc", "passwd"), om.GetOutputFilePath("abc", "../../etc/passwd"))
	assert.Equal(t, filepath.Join(base, "x", "f.csv"), om.GetOutputFilePath("../x", "f.csv"))
	assert.Equal(t, "/api/v1/download/abc/gdp_statistics.csv", om.GetDownloadURL("abc", "dir/gdp_statistics.csv"))
}

func TestOutputManagerFileTypes(t *testing.T) {
	om := NewOutputManager("")

	assert.Equal(t, "csv", om.GetFileType("a.CSV"))
	assert.Equal(t, "excel", om.GetFileType("a.xlsx"))
	assert.Equal(t, "image", om.GetFileType("chart.png"))
	assert.Equal(t, "unknown", om.GetFileType("runs.db"))

	assert.Equal(t, "image/png", om.GetContentType("chart.png"))
	assert.Equal(t, "text/csv", om.GetContentType("a.csv"))
	assert.Equal(t, "application/octet-stream", om.GetContentType("runs.db"))
}

func TestGetFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	om := NewOutputManager("")
	size, err := om.GetFileSize(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	_, err = om.GetFileSize(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
