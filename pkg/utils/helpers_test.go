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
	assert.Equal(t, 30*time.Second, ParseDuration("30s"))
	assert.Equal(t, 2*time.Hour, ParseDuration("2h"))
	assert.Equal(t, 5*time.Minute, ParseDuration(""))
	assert.Equal(t, 5*time.Minute, ParseDuration("never"))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-3, 0, 255))
	assert.Equal(t, 255.0, Clamp(300, 0, 255))
	assert.Equal(t, 42.5, Clamp(42.5, 0, 255))
}

func TestOutputManagerWriteArtifact(t *testing.T) {
	om := NewOutputManager(t.TempDir())

	path, err := om.WriteArtifact("run_x", "work/run_x/digital_twin.npy", []byte("twin"))
	require.NoError(t, err)
	assert.Equal(t, "digital_twin.npy", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("twin"), data)

	// Nested keys flatten into the run directory.
	path, err = om.WriteArtifact("run_x", "work/run_x/processed_png/0003.png", []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "processed_png_0003.png", filepath.Base(path))
	assert.Equal(t, filepath.Join(om.BaseOutputDir, "run_x"), filepath.Dir(path))
}

func TestOutputManagerFileType(t *testing.T) {
	om := NewOutputManager(t.TempDir())
	assert.Equal(t, "array", om.GetFileType("digital_twin.npy"))
	assert.Equal(t, "array-archive", om.GetFileType("chestmnist.npz"))
	assert.Equal(t, "image", om.GetFileType("0001.PNG"))
	assert.Equal(t, "status", om.GetFileType("status.json"))
	assert.Equal(t, "unknown", om.GetFileType("notes.txt"))
}

func TestOutputManagerFileSize(t *testing.T) {
	om := NewOutputManager(t.TempDir())
	path, err := om.WriteArtifact("run_y", "work/run_y/status.json", []byte(`{"ok":true}`))
	require.NoError(t, err)

	size, err := om.GetFileSize(path)
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)
}
