package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"specbook/internal/domain"
	"specbook/internal/ports"
)

const (
	lockPollInterval = 50 * time.Millisecond
	lockStaleAfter   = 10 * time.Minute
)

// MappingStore implements ports.MappingStore as a single JSON document.
// Writes go to a temp file in the same directory that is renamed over the
// index, so readers see either the old or the new snapshot. Read-modify-write
// cycles are serialised across processes with an exclusive lock file.
type MappingStore struct {
	path     string
	lockPath string
}

var _ ports.MappingStore = (*MappingStore)(nil)

// NewMappingStore creates a store for the index at path
func NewMappingStore(path string) *MappingStore {
	return &MappingStore{
		path:     path,
		lockPath: filepath.Join(filepath.Dir(path), "mapping.lock"),
	}
}

// Path returns the location of the index file
func (s *MappingStore) Path() string {
	return s.path
}

// Load reads the index, returning nil when no scan has been persisted yet
func (s *MappingStore) Load(ctx context.Context) (*domain.FeatureMappingIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping index: %w", err)
	}

	var idx domain.FeatureMappingIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse mapping index %s: %w", s.path, err)
	}
	return &idx, nil
}

// Replace writes idx as the new snapshot
func (s *MappingStore) Replace(ctx context.Context, idx *domain.FeatureMappingIndex) error {
	return s.withLock(ctx, func() error {
		return s.write(ctx, idx)
	})
}

// Update runs fn on the current snapshot and persists its result, holding
// the lock for the whole cycle
func (s *MappingStore) Update(ctx context.Context, fn func(*domain.FeatureMappingIndex) (*domain.FeatureMappingIndex, error)) error {
	return s.withLock(ctx, func() error {
		current, err := s.Load(ctx)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		return s.write(ctx, next)
	})
}

// Reset deletes the index file
func (s *MappingStore) Reset(ctx context.Context) error {
	return s.withLock(ctx, func() error {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove mapping index: %w", err)
		}
		return nil
	})
}

func (s *MappingStore) write(ctx context.Context, idx *domain.FeatureMappingIndex) error {
	if idx == nil {
		return fmt.Errorf("refusing to write an empty mapping index")
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode mapping index: %w", err)
	}
	data = append(data, '\n')

	// Last point where a cancelled scan can back out
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFileAtomic(s.path, data, 0o644)
}

// writeFileAtomic writes data to a temp file next to path, syncs it, and
// renames it over path
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func (s *MappingStore) withLock(ctx context.Context, fn func() error) error {
	release, err := acquireLock(ctx, s.lockPath)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// lockInfo is the content of the lock file
type lockInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"startedAt"`
}

// acquireLock creates the lock file exclusively, waiting for another holder
// to release it until ctx is done. A lock older than lockStaleAfter is
// considered abandoned and taken over.
func acquireLock(ctx context.Context, path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	hostname, _ := os.Hostname()
	for {
		info := lockInfo{PID: os.Getpid(), Hostname: hostname, StartedAt: time.Now()}
		content, err := json.Marshal(info)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal lock: %w", err)
		}

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = f.Write(content)
			_ = f.Close()
			return func() { releaseLock(path, content) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		if st, statErr := os.Stat(path); statErr == nil && time.Since(st.ModTime()) > lockStaleAfter {
			takeOverStale(path)
			continue
		}

		select {
		case <-ctx.Done():
			if holder := describeHolder(path); holder != "" {
				return nil, fmt.Errorf("mapping index is locked by %s: %w", holder, ctx.Err())
			}
			return nil, fmt.Errorf("mapping index is locked: %w", ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}
}

// takeOverStale moves an abandoned lock out of the way. The rename is atomic,
// so of several waiters that saw the same stale lock only one moves it. A
// waiter that instead moved a fresh lock puts it back and reports false.
func takeOverStale(path string) bool {
	aside := fmt.Sprintf("%s.stale.%d.%d", path, os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(path, aside); err != nil {
		return false
	}
	defer os.Remove(aside)

	if st, err := os.Stat(aside); err == nil && time.Since(st.ModTime()) <= lockStaleAfter {
		// Link fails when a third process created a lock meanwhile
		_ = os.Link(aside, path)
		return false
	}
	return true
}

// releaseLock removes the lock only while it still holds content
func releaseLock(path string, content []byte) {
	current, err := os.ReadFile(path)
	if err != nil || string(current) != string(content) {
		return
	}
	_ = os.Remove(path)
}

func describeHolder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return ""
	}
	var info lockInfo
	if json.Unmarshal(data, &info) != nil || info.PID == 0 {
		return "process " + string(data)
	}
	return fmt.Sprintf("process %d on %s since %s", info.PID, info.Hostname, info.StartedAt.Format(time.RFC3339))
}
