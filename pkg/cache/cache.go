// Package cache memoises API listings on disk for a fixed freshness window.
//
// Entries are plain files named after their key. A file is fresh while its modification time
// is younger than the TTL. Writers do not coordinate: a write lands in a temporary file that
// is renamed over the entry, so readers never observe a partial file and the last writer wins.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTTL is the freshness window applied when none is configured.
	DefaultTTL = 900 * time.Second

	fileExtension = ".json"
	keySeparator  = "__"
	dirPerm       = 0o755
	filePerm      = 0o644
)

// ErrNotCached is returned by ReadStale when no entry exists for a key.
var ErrNotCached = errors.New("cache: entry not found")

var (
	errEmptyKey   = errors.New("cache: key is required")
	errNilFetch   = errors.New("cache: fetch function is required")
	unsafeKeyRune = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// Observer is told about every lookup; hit is false when fetch had to run.
type Observer interface {
	ObserveLookup(hit bool)
}

type noopObserver struct{}

func (noopObserver) ObserveLookup(bool) {}

// FetchFunc produces the bytes for a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Config configures New.
type Config struct {
	Dir      string
	TTL      time.Duration
	Refresh  bool
	Now      func() time.Time
	Observer Observer
	Logger   *zap.Logger
}

// Store is an on-disk cache rooted at Dir.
type Store struct {
	dir      string
	ttl      time.Duration
	refresh  bool
	now      func() time.Time
	observer Observer
	logger   *zap.Logger
}

// New returns a Store. The directory is created on the first write.
func New(cfg Config) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		dir:      cfg.Dir,
		ttl:      ttl,
		refresh:  cfg.Refresh,
		now:      now,
		observer: observer,
		logger:   logger,
	}
}

// Key builds a cache key from a resource type and its scope parameters. Empty parameters are
// kept so that different scopes never collide.
func Key(resource string, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, resource)
	parts = append(parts, params...)

	return strings.Join(parts, keySeparator)
}

// Dir reports the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file backing key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, sanitize(key)+fileExtension)
}

// GetOrFetch returns the cached bytes for key when they are younger than ttl. Otherwise it
// runs fetch, persists the result and returns it. A non-positive ttl selects the store TTL.
// When fetch fails the error is returned and any previous entry is left untouched.
func (s *Store) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	if key == "" {
		return nil, errEmptyKey
	}

	if fetch == nil {
		return nil, errNilFetch
	}

	if ttl <= 0 {
		ttl = s.ttl
	}

	path := s.Path(key)

	if !s.refresh {
		data, ok := s.readFresh(path, ttl)
		if ok {
			s.observer.ObserveLookup(true)
			s.logger.Debug("cache hit", zap.String("key", key))

			return data, nil
		}
	}

	s.observer.ObserveLookup(false)
	s.logger.Debug("cache miss", zap.String("key", key), zap.Bool("refresh", s.refresh))

	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	writeErr := s.write(path, data)
	if writeErr != nil {
		return nil, writeErr
	}

	return data, nil
}

// ReadStale returns the stored bytes for key regardless of age, along with their write time.
func (s *Store) ReadStale(key string) ([]byte, time.Time, error) {
	path := s.Path(key)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrNotCached, key)
	}

	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat cache entry: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read cache entry: %w", err)
	}

	return data, info.ModTime(), nil
}

// Invalidate removes the entry for key. A missing entry is not an error.
func (s *Store) Invalidate(key string) error {
	err := os.Remove(s.Path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache entry: %w", err)
	}

	return nil
}

// Clear removes every cache entry and reports how many were deleted. Files that do not look
// like cache entries are left alone.
func (s *Store) Clear() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("read cache directory: %w", err)
	}

	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != fileExtension {
			continue
		}

		err = os.Remove(filepath.Join(s.dir, entry.Name()))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove cache entry: %w", err)
		}

		removed++
	}

	return removed, nil
}

func (s *Store) readFresh(path string, ttl time.Duration) ([]byte, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}

	if s.now().Sub(info.ModTime()) >= ttl {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("unreadable cache entry", zap.String("path", path), zap.Error(err))

		return nil, false
	}

	return data, true
}

func (s *Store) write(path string, data []byte) error {
	err := os.MkdirAll(s.dir, dirPerm)
	if err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}

	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(filePerm)
	}

	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("write cache entry: %w", err)
	}

	err = os.Rename(tmpName, path)
	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("commit cache entry: %w", err)
	}

	// Entry age is measured against the store clock.
	now := s.now()
	_ = os.Chtimes(path, now, now)

	return nil
}

func sanitize(key string) string {
	return unsafeKeyRune.ReplaceAllString(key, "_")
}

// Fetch is the typed form of GetOrFetch: values are stored as JSON. A nil store disables
// caching and calls fetch directly. A fresh entry that no longer decodes into T is discarded
// and fetched again once.
func Fetch[T any](ctx context.Context, store *Store, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if store == nil {
		return fetch(ctx)
	}

	fetched := false
	load := func(ctx context.Context) ([]byte, error) {
		fetched = true

		value, fetchErr := fetch(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}

		encoded, encodeErr := json.Marshal(value)
		if encodeErr != nil {
			return nil, fmt.Errorf("encode cache entry: %w", encodeErr)
		}

		return encoded, nil
	}

	data, err := store.GetOrFetch(ctx, key, 0, load)
	if err != nil {
		return zero, err
	}

	value, err := decode[T](key, data)
	if err == nil || fetched {
		return value, err
	}

	store.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))

	err = store.Invalidate(key)
	if err != nil {
		return zero, err
	}

	data, err = store.GetOrFetch(ctx, key, 0, load)
	if err != nil {
		return zero, err
	}

	return decode[T](key, data)
}

func decode[T any](key string, data []byte) (T, error) {
	var value T

	err := json.Unmarshal(data, &value)
	if err != nil {
		var zero T

		return zero, fmt.Errorf("decode cache entry %s: %w", key, err)
	}

	return value, nil
}
