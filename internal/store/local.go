package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"

	"github.com/natefinch/atomic"
)

// Local keeps the key-value store, dataset and transcript of one run on disk.
// It mirrors the platform storage when scout runs outside of it.
type Local struct {
	runID      string
	basePath   string
	kvDir      string
	dataset    string
	transcript string
	lockCfg    *FileLockConfig
}

func NewLocal(cfg config.StoreConfig, runID string) (*Local, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, scoutErrors.InvalidArgument("run id is required")
	}

	lockCfg, err := FileLockConfigFrom(cfg)
	if err != nil {
		return nil, err
	}

	basePath, err := GetRunPath(runID, cfg.Path)
	if err != nil {
		return nil, scoutErrors.Wrap(err, "resolve run path")
	}
	kvDir, err := GetKeyValueStoreDir(runID, cfg.Path)
	if err != nil {
		return nil, scoutErrors.Wrap(err, "resolve key-value store path")
	}
	dataset, err := GetDatasetPath(runID, cfg.Path)
	if err != nil {
		return nil, scoutErrors.Wrap(err, "resolve dataset path")
	}
	transcript, err := GetTranscriptPath(runID, cfg.Path)
	if err != nil {
		return nil, scoutErrors.Wrap(err, "resolve transcript path")
	}

	if err := os.MkdirAll(kvDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run storage: %w", err)
	}

	return &Local{
		runID:      runID,
		basePath:   basePath,
		kvDir:      kvDir,
		dataset:    dataset,
		transcript: transcript,
		lockCfg:    lockCfg,
	}, nil
}

func (l *Local) BasePath() string {
	return l.basePath
}

func (l *Local) GetRecord(ctx context.Context, key string) ([]byte, error) {
	path, err := l.recordPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, scoutErrors.NotFound(fmt.Sprintf("record %s", key))
	}
	return data, err
}

// SetRecord replaces a record atomically.
func (l *Local) SetRecord(ctx context.Context, key string, value []byte, contentType string) error {
	path, err := l.recordPath(key)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(value)); err != nil {
		return fmt.Errorf("failed to write record %s: %w", key, err)
	}
	slog.Debug("Record stored", "run_id", l.runID, "key", key, "content_type", contentType, "bytes", len(value))
	return nil
}

// RecordURL is a file URL pointing at the stored record.
func (l *Local) RecordURL(key string) string {
	path, err := l.recordPath(key)
	if err != nil {
		return ""
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// PushItems appends items to the run dataset under the run lock.
func (l *Local) PushItems(ctx context.Context, items []map[string]interface{}) error {
	if len(items) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return scoutErrors.Wrap(err, "encode dataset item")
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	return l.appendLocked(ctx, l.dataset, buf.Bytes())
}

// Items reads the run dataset back.
func (l *Local) Items(ctx context.Context) ([]map[string]interface{}, error) {
	f, err := os.Open(l.dataset)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var items []map[string]interface{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var item map[string]interface{}
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, scoutErrors.Wrap(err, "decode dataset item")
		}
		items = append(items, item)
	}
	return items, scanner.Err()
}

// SetStatusMessage stores the run status as the STATUS record.
func (l *Local) SetStatusMessage(ctx context.Context, message string, terminal bool) error {
	data, err := json.MarshalIndent(Status{Message: message, Terminal: terminal, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}
	slog.Info("Run status", "run_id", l.runID, "status", message, "terminal", terminal)
	return l.SetRecord(ctx, StatusKey, data, "application/json")
}

// Status reads the STATUS record.
func (l *Local) Status(ctx context.Context) (*Status, error) {
	data, err := l.GetRecord(ctx, StatusKey)
	if err != nil {
		return nil, err
	}
	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, scoutErrors.Wrap(err, "decode status")
	}
	return &status, nil
}

// WriteTranscript appends conversation entries to the run transcript.
func (l *Local) WriteTranscript(ctx context.Context, entries []TranscriptEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return scoutErrors.Wrap(err, "encode transcript entry")
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return l.appendLocked(ctx, l.transcript, buf.Bytes())
}

func (l *Local) appendLocked(ctx context.Context, path string, data []byte) error {
	lock, err := NewFileLock(ctx, l.runID, l.basePath, l.lockCfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func (l *Local) recordPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", scoutErrors.InvalidArgument(fmt.Sprintf("invalid record key %q", key))
	}
	return filepath.Join(l.kvDir, key), nil
}
