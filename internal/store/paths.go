package store

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	ResponseKey = "response.md"
	InputKey    = "INPUT"
	StatusKey   = "STATUS"
)

// ResolveRootPath resolves the configured storage root.
// If empty, it falls back to ~/.scout/storage.
func ResolveRootPath(rootPath string) (string, error) {
	if trimmed := strings.TrimSpace(rootPath); trimmed != "" {
		return filepath.Clean(os.ExpandEnv(trimmed)), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".scout", "storage"), nil
}

// GetRunPath returns the base path for a run.
func GetRunPath(runID string, rootPath string) (string, error) {
	root, err := ResolveRootPath(rootPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, runID), nil
}

// GetKeyValueStoreDir returns the key-value store directory of a run.
func GetKeyValueStoreDir(runID string, rootPath string) (string, error) {
	base, err := GetRunPath(runID, rootPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "key_value_store"), nil
}

// GetDatasetPath returns the dataset file of a run, one JSON item per line.
func GetDatasetPath(runID string, rootPath string) (string, error) {
	base, err := GetRunPath(runID, rootPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "dataset.jsonl"), nil
}

// GetTranscriptPath returns the conversation transcript file of a run.
func GetTranscriptPath(runID string, rootPath string) (string, error) {
	base, err := GetRunPath(runID, rootPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "transcript.jsonl"), nil
}
