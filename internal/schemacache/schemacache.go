// Package schemacache persists fetched service SDL on disk so projects can
// keep validating against the last known schema while offline.
package schemacache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Bump when the payload format changes; stale entries are ignored.
const cacheSchemaVersion uint16 = 1

// Cache stores one msgpack payload per (origin, tag) pair under the user
// cache directory. Thread-safe for concurrent access.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

type payload struct {
	Schema    uint16
	Origin    string
	Tag       string
	SDL       string
	FetchedAt time.Time
}

// Open initializes a cache at the standard location ($XDG_CACHE_HOME/<app>,
// falling back to ~/.cache/<app>).
func Open(app string) (*Cache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// OpenAt initializes a cache rooted at dir.
func OpenAt(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) pathFor(origin, tag string) string {
	sum := sha256.Sum256([]byte(origin + "\x00" + tag))
	return filepath.Join(c.dir, "schemas", hex.EncodeToString(sum[:])+".mp")
}

// Put writes the SDL fetched for (origin, tag), replacing any prior entry
// atomically.
func (c *Cache) Put(origin, tag, sdl string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(origin, tag)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(&payload{
		Schema:    cacheSchemaVersion,
		Origin:    origin,
		Tag:       tag,
		SDL:       sdl,
		FetchedAt: time.Now(),
	}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads the cached SDL for (origin, tag). The second result is false
// when no usable entry exists.
func (c *Cache) Get(origin, tag string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(origin, tag))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	defer f.Close()

	var p payload
	if err := msgpack.NewDecoder(f).Decode(&p); err != nil {
		return "", false, err
	}
	if p.Schema != cacheSchemaVersion || p.Origin != origin || p.Tag != tag {
		return "", false, nil
	}
	return p.SDL, true, nil
}

// DropAll removes every cached schema, useful after format changes.
func (c *Cache) DropAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(filepath.Join(c.dir, "schemas"))
}
