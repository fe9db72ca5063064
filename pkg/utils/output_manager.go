package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputManager handles local staging of downloaded run artifacts,
// organizing files into one directory per run.
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager.
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// CreateRunOutputDir creates a directory for a run's downloaded outputs.
func (om *OutputManager) CreateRunOutputDir(runID string) (string, error) {
	runDir := filepath.Join(om.BaseOutputDir, runID)

	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run output directory: %w", err)
	}
	return runDir, nil
}

// WriteArtifact stages the bytes of a downloaded artifact under the
// run's directory, flattening the storage key into a file name.
func (om *OutputManager) WriteArtifact(runID, storageKey string, data []byte) (string, error) {
	runDir, err := om.CreateRunOutputDir(runID)
	if err != nil {
		return "", err
	}

	// work/<run>/digital_twin.npy → digital_twin.npy,
	// work/<run>/processed_png/0003.png → processed_png_0003.png
	rel := strings.TrimPrefix(storageKey, "work/"+runID+"/")
	fileName := strings.ReplaceAll(rel, "/", "_")
	path := filepath.Join(runDir, filepath.Base(fileName))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", storageKey, err)
	}
	return path, nil
}

// GetFileType determines the file type based on extension.
func (om *OutputManager) GetFileType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".npy":
		return "array"
	case ".npz":
		return "array-archive"
	case ".png":
		return "image"
	case ".json":
		return "status"
	default:
		return "unknown"
	}
}

// GetFileSize returns the size of a staged file in bytes.
func (om *OutputManager) GetFileSize(filePath string) (int64, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return fileInfo.Size(), nil
}
