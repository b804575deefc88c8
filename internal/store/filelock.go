package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"

	"github.com/gofrs/flock"
)

const lockFileName = "run.lock"

// FileLock serializes writers of one run directory across processes.
type FileLock struct {
	fileLock   *flock.Flock
	lockPath   string
	runID      string
	acquiredAt time.Time
	mu         sync.RWMutex
}

type FileLockConfig struct {
	LockTimeout  time.Duration
	LockRetry    time.Duration
	LockMaxRetry int
}

func DefaultFileLockConfig() *FileLockConfig {
	lockTimeout, _ := config.DurationOrDefault(config.DefaultStoreLockTimeout, config.DefaultStoreLockTimeout)
	lockRetry, _ := config.DurationOrDefault(config.DefaultStoreLockRetry, config.DefaultStoreLockRetry)

	return &FileLockConfig{
		LockTimeout:  lockTimeout,
		LockRetry:    lockRetry,
		LockMaxRetry: config.DefaultStoreLockMaxRetry,
	}
}

// FileLockConfigFrom reads lock settings from the store config.
func FileLockConfigFrom(cfg config.StoreConfig) (*FileLockConfig, error) {
	lockTimeout, err := config.DurationOrDefault(cfg.LockTimeout, config.DefaultStoreLockTimeout)
	if err != nil {
		return nil, scoutErrors.Configuration(fmt.Sprintf("store.lock_timeout: %v", err))
	}
	lockRetry, err := config.DurationOrDefault(cfg.LockRetry, config.DefaultStoreLockRetry)
	if err != nil {
		return nil, scoutErrors.Configuration(fmt.Sprintf("store.lock_retry: %v", err))
	}
	maxRetry := cfg.LockMaxRetry
	if maxRetry <= 0 {
		maxRetry = config.DefaultStoreLockMaxRetry
	}

	return &FileLockConfig{
		LockTimeout:  lockTimeout,
		LockRetry:    lockRetry,
		LockMaxRetry: maxRetry,
	}, nil
}

// NewFileLock blocks until the lock of basePath is held, the retries run out
// or ctx is done.
func NewFileLock(ctx context.Context, runID, basePath string, cfg *FileLockConfig) (*FileLock, error) {
	if cfg == nil {
		cfg = DefaultFileLockConfig()
	}

	lockPath := filepath.Join(basePath, lockFileName)
	fl := &FileLock{
		fileLock: flock.New(lockPath),
		lockPath: lockPath,
		runID:    runID,
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.LockTimeout)
	defer cancel()

	if err := fl.acquireWithRetry(ctx, cfg); err != nil {
		return nil, err
	}

	fl.acquiredAt = time.Now()
	slog.Debug("File lock acquired", "run_id", runID, "path", lockPath)

	return fl, nil
}

func (fl *FileLock) acquireWithRetry(ctx context.Context, cfg *FileLockConfig) error {
	for i := 0; i < cfg.LockMaxRetry; i++ {
		locked, err := fl.fileLock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to attempt lock: %w", err)
		}
		if locked {
			return nil
		}

		if i == cfg.LockMaxRetry-1 {
			break
		}
		select {
		case <-ctx.Done():
			return scoutErrors.WrapWithCategory(ctx.Err(), "lock acquisition cancelled", scoutErrors.ErrTransient)
		case <-time.After(cfg.LockRetry):
		}
	}

	return scoutErrors.Transient(fmt.Sprintf("run %s is locked by another writer (timeout after %v)", fl.runID, cfg.LockTimeout))
}

func (fl *FileLock) Unlock() {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.fileLock == nil {
		slog.Warn("FileLock already unlocked", "run_id", fl.runID)
		return
	}

	if err := fl.fileLock.Unlock(); err != nil {
		slog.Error("Failed to release file lock", "run_id", fl.runID, "path", fl.lockPath, "error", err)
	} else {
		slog.Debug("File lock released", "run_id", fl.runID, "held_duration_ms", time.Since(fl.acquiredAt).Milliseconds())
	}

	fl.fileLock = nil
}

func (fl *FileLock) IsLocked() bool {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	return fl.fileLock != nil
}

func (fl *FileLock) HeldDuration() time.Duration {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	if fl.acquiredAt.IsZero() {
		return 0
	}
	return time.Since(fl.acquiredAt)
}
