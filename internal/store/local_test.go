package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	local, err := NewLocal(config.StoreConfig{Path: t.TempDir(), LockRetry: "5ms"}, "01TESTRUN")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return local
}

func TestLocalRecords(t *testing.T) {
	local := newTestLocal(t)
	ctx := context.Background()

	if _, err := local.GetRecord(ctx, ResponseKey); !errors.Is(err, scoutErrors.ErrNotFound) {
		t.Fatalf("Expected not found before write, got %v", err)
	}

	if err := local.SetRecord(ctx, ResponseKey, []byte("# First"), "text/markdown"); err != nil {
		t.Fatalf("SetRecord: %v", err)
	}
	if err := local.SetRecord(ctx, ResponseKey, []byte("# Second"), "text/markdown"); err != nil {
		t.Fatalf("SetRecord overwrite: %v", err)
	}

	got, err := local.GetRecord(ctx, ResponseKey)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if string(got) != "# Second" {
		t.Fatalf("record = %q, want %q", got, "# Second")
	}

	url := local.RecordURL(ResponseKey)
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "/01TESTRUN/key_value_store/response.md") {
		t.Fatalf("unexpected record URL %q", url)
	}
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	local := newTestLocal(t)

	for _, key := range []string{"", "..", "../x", "a/b"} {
		err := local.SetRecord(context.Background(), key, []byte("x"), "text/plain")
		if !errors.Is(err, scoutErrors.ErrInvalidArgument) {
			t.Errorf("key %q: expected invalid argument, got %v", key, err)
		}
	}
}

func TestLocalPushItemsConcurrently(t *testing.T) {
	local := newTestLocal(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := local.PushItems(ctx, []map[string]interface{}{{"n": i}, {"n": i}}); err != nil {
				t.Errorf("PushItems: %v", err)
			}
		}(i)
	}
	wg.Wait()

	items, err := local.Items(ctx)
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 10 {
		t.Fatalf("len(items) = %d, want 10", len(items))
	}
}

func TestLocalStatus(t *testing.T) {
	local := newTestLocal(t)
	ctx := context.Background()

	if err := local.SetStatusMessage(ctx, "Success!", true); err != nil {
		t.Fatalf("SetStatusMessage: %v", err)
	}

	status, err := local.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Message != "Success!" || !status.Terminal {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestLocalTranscript(t *testing.T) {
	local := newTestLocal(t)
	entries := []TranscriptEntry{
		{ID: "1", Timestamp: time.Now(), Role: RoleUser, Content: "tents"},
		{ID: "2", Timestamp: time.Now(), Role: RoleTool, Name: "search", ToolCallID: "call_1", Content: "[]"},
	}

	if err := local.WriteTranscript(context.Background(), entries); err != nil {
		t.Fatalf("WriteTranscript: %v", err)
	}
	if err := local.WriteTranscript(context.Background(), nil); err != nil {
		t.Fatalf("WriteTranscript(nil): %v", err)
	}
}

func TestNewLocalRequiresRunID(t *testing.T) {
	if _, err := NewLocal(config.StoreConfig{Path: t.TempDir()}, " "); !errors.Is(err, scoutErrors.ErrInvalidArgument) {
		t.Fatalf("Expected invalid argument, got %v", err)
	}
}
