// Package cache stores validated observation tables on disk, one file per
// (granularity, station, model) combination.
package cache

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/lox/meteodaily/internal/models"
)

const formatVersion = 1

// ErrFormat is returned when a cache file cannot be decoded or was written
// by an incompatible version.
var ErrFormat = errors.New("cache: unrecognised file format")

type envelope struct {
	Version int                       `msgpack:"v"`
	Rows    []models.DailyObservation `msgpack:"rows"`
}

// Cache is a directory of msgpack-encoded tables.
type Cache struct {
	dir string
}

func New(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) Dir() string { return c.dir }

// Key derives the file name for a remote endpoint path.
func Key(endpointPath string) string {
	sum := md5.Sum([]byte(endpointPath))
	return hex.EncodeToString(sum[:])
}

// Path returns the location of key inside subdir.
func (c *Cache) Path(subdir, key string) string {
	return filepath.Join(c.dir, subdir, key)
}

// Fresh reports whether path exists and was written less than maxAge ago.
func (c *Cache) Fresh(path string, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return time.Since(info.ModTime()) < maxAge
}

// Read decodes the table stored at path.
func (c *Cache) Read(path string) ([]models.DailyObservation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}

	var env envelope
	if err := msgpack.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if env.Version != formatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrFormat, env.Version)
	}
	for i := range env.Rows {
		env.Rows[i].Date = env.Rows[i].Date.UTC()
	}
	return env.Rows, nil
}

// Write stores rows at path. The file is written to a temporary name in the
// same directory and renamed into place, so readers never see a partial
// entry.
func (c *Cache) Write(path string, rows []models.DailyObservation) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(envelope{Version: formatVersion, Rows: rows}); err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// Clear removes files in subdir older than maxAge and returns how many were
// removed. A missing subdir is not an error.
func (c *Cache) Clear(subdir string, maxAge time.Duration) (int, error) {
	dir := filepath.Join(c.dir, subdir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
