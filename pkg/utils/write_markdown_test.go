package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMarkdown(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results", "AAPL")

	path, err := WriteMarkdown(dir, "AAPL_2024-01-01_2024-02-01.md", "# Newsletter\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "AAPL_2024-01-01_2024-02-01.md"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Newsletter\n", string(b))
}

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "BRK.B_report.md", SafeFileName("BRK.B report.md"))
	assert.Equal(t, "etc_passwd", SafeFileName("../etc/passwd"))
	assert.Equal(t, "untitled.md", SafeFileName(" / "))
}
