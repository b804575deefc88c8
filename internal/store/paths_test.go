package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveRootPath_DefaultsUnderHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("user home dir: %v", err)
	}

	got, err := ResolveRootPath("  ")
	if err != nil {
		t.Fatalf("resolve root path: %v", err)
	}

	want := filepath.Join(home, ".scout", "storage")
	if got != want {
		t.Fatalf("path mismatch: got %q want %q", got, want)
	}
}

func TestRunPaths(t *testing.T) {
	t.Setenv("SCOUT_TEST_ROOT", "/tmp/scout-root")

	dataset, err := GetDatasetPath("01RUN", "$SCOUT_TEST_ROOT")
	if err != nil {
		t.Fatalf("dataset path: %v", err)
	}
	if want := filepath.Join("/tmp/scout-root", "01RUN", "dataset.jsonl"); dataset != want {
		t.Fatalf("dataset path = %q, want %q", dataset, want)
	}

	kv, err := GetKeyValueStoreDir("01RUN", "/tmp/scout-root/")
	if err != nil {
		t.Fatalf("kv path: %v", err)
	}
	if want := filepath.Join("/tmp/scout-root", "01RUN", "key_value_store"); kv != want {
		t.Fatalf("kv path = %q, want %q", kv, want)
	}
}
