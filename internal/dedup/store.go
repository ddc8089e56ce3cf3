// Package dedup remembers which library events have already been announced.
//
// The store is a single JSON file holding an insertion-ordered list of keys.
// Every read-modify-write cycle runs under an exclusive flock on a sidecar
// lock file so that overlapping invocations, which are separate processes,
// never both observe a key as absent.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

var (
	ErrLockTimeout = errors.New("timed out waiting for dedup store lock")
	ErrKeyNotFound = errors.New("key not recorded")
)

// Status describes how far an announced key got.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRecorded Status = "recorded"
	StatusSent     Status = "sent"
	StatusFailed   Status = "failed"
)

const (
	DefaultCapacity    = 200
	DefaultLockTimeout = 5 * time.Second
	defaultRetryDelay  = 50 * time.Millisecond
)

// Entry is one announced key.
type Entry struct {
	Key        string    `json:"key"`
	RecordedAt time.Time `json:"recorded_at"`
	Status     Status    `json:"status,omitempty"`
}

// Config holds store settings.
type Config struct {
	Path        string
	Capacity    int
	LockTimeout time.Duration
}

// Store is the persisted, bounded set of announced keys.
type Store struct {
	path        string
	lockPath    string
	capacity    int
	lockTimeout time.Duration
	retryDelay  time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewStore creates a store backed by cfg.Path. The file is created lazily on
// the first write.
func NewStore(cfg Config, logger zerolog.Logger) *Store {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}

	return &Store{
		path:        cfg.Path,
		lockPath:    cfg.Path + ".lock",
		capacity:    capacity,
		lockTimeout: lockTimeout,
		retryDelay:  defaultRetryDelay,
		logger:      logger.With().Str("component", "dedup").Logger(),
		now:         time.Now,
	}
}

// Path returns the data file location.
func (s *Store) Path() string {
	return s.path
}

// Contains reports whether key is currently recorded.
func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	var found bool
	err := s.withLock(ctx, func() error {
		entries := s.load()
		found = indexOf(entries, key) >= 0
		return nil
	})
	return found, err
}

// Reserve records key as pending unless it is already present. It returns
// true when this call added the key. Check and append happen in one critical
// section, so of several racing callers at most one gets true.
func (s *Store) Reserve(ctx context.Context, key string) (bool, error) {
	var added bool
	err := s.withLock(ctx, func() error {
		entries := s.load()
		if indexOf(entries, key) >= 0 {
			return nil
		}
		added = true
		return s.persist(s.appendEntry(entries, key, StatusPending))
	})
	return added, err
}

// Record appends key with the current time. A key that is already present
// keeps its position; a pending reservation is promoted to recorded.
func (s *Store) Record(ctx context.Context, key string) error {
	return s.withLock(ctx, func() error {
		entries := s.load()
		if i := indexOf(entries, key); i >= 0 {
			if entries[i].Status != StatusPending {
				return nil
			}
			entries[i].Status = StatusRecorded
			return s.persist(entries)
		}
		return s.persist(s.appendEntry(entries, key, StatusRecorded))
	})
}

// SetStatus updates the status of a recorded key.
func (s *Store) SetStatus(ctx context.Context, key string, status Status) error {
	return s.withLock(ctx, func() error {
		entries := s.load()
		i := indexOf(entries, key)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
		}
		entries[i].Status = status
		return s.persist(entries)
	})
}

// Entries returns a snapshot of the recorded keys, oldest first.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := s.withLock(ctx, func() error {
		out = s.load()
		return nil
	})
	return out, err
}

// withLock runs fn while holding the exclusive cross-process lock. The lock
// is released on every return path.
func (s *Store) withLock(ctx context.Context, fn func() error) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	lock := flock.New(s.lockPath)
	locked, err := lock.TryLockContext(lockCtx, s.retryDelay)
	if err != nil || !locked {
		if ctx.Err() == nil && (err == nil || errors.Is(err, context.DeadlineExceeded)) {
			s.logger.Error().Str("path", s.lockPath).Dur("timeout", s.lockTimeout).Msg("Dedup store lock not acquired")
			return fmt.Errorf("%w after %s", ErrLockTimeout, s.lockTimeout)
		}
		if err == nil {
			err = ctx.Err()
		}
		return fmt.Errorf("failed to lock dedup store: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn().Err(err).Str("path", s.lockPath).Msg("Failed to release dedup store lock")
		}
	}()

	return fn()
}

// load reads the store file. A missing, empty or unparseable file yields an
// empty list; the last case is logged because dedup history was lost.
func (s *Store) load() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Dedup store unreadable, starting empty")
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Dedup store corrupt, starting empty")
		return nil
	}
	return s.normalize(entries)
}

// normalize drops blank and repeated keys, keeping first occurrences, and
// trims to capacity.
func (s *Store) normalize(entries []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		if _, dup := seen[e.Key]; dup {
			continue
		}
		seen[e.Key] = struct{}{}
		out = append(out, e)
	}
	return s.trim(out)
}

func (s *Store) appendEntry(entries []Entry, key string, status Status) []Entry {
	entries = append(entries, Entry{
		Key:        key,
		RecordedAt: s.now().UTC(),
		Status:     status,
	})
	return s.trim(entries)
}

// trim evicts the oldest entries by insertion order until at most capacity
// remain.
func (s *Store) trim(entries []Entry) []Entry {
	if over := len(entries) - s.capacity; over > 0 {
		s.logger.Debug().Int("evicted", over).Msg("Evicting oldest dedup entries")
		entries = append([]Entry(nil), entries[over:]...)
	}
	return entries
}

// persist atomically replaces the store file: write to a temp file in the
// same directory, sync, then rename over the old file.
func (s *Store) persist(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dedup store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp store file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

func indexOf(entries []Entry, key string) int {
	for i := range entries {
		if entries[i].Key == key {
			return i
		}
	}
	return -1
}
