// Package kv is the durable key-value storage the store mirrors preferences
// into. Values are opaque strings; a missing key is core.ErrKeyNotFound.
package kv

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/quantumlife/hearth/internal/core"
)

// Store is a string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

// Options selects and configures a backend for Open.
type Options struct {
	Backend Backend
	// Path is the file for the file and sqlite backends. A directory is
	// accepted and gets a default file name.
	Path      string
	RedisAddr string
	// Passphrase, when set, wraps the backend in Encrypted.
	Passphrase string
}

// Open creates the configured store.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case BackendMemory, "":
		s = NewMemory()
	case BackendFile:
		s, err = OpenFile(defaultName(opts.Path, "preferences.json"))
	case BackendSQLite:
		s, err = OpenSQLite(defaultName(opts.Path, "hearth.db"))
	case BackendRedis:
		s, err = OpenRedis(ctx, RedisOptions{Addr: opts.RedisAddr})
	default:
		return nil, fmt.Errorf("%w: storage backend %q", core.ErrInvalidInput, opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	if opts.Passphrase == "" {
		return s, nil
	}
	enc, err := NewEncrypted(ctx, s, opts.Passphrase)
	if err != nil {
		Close(s)
		return nil, err
	}
	return enc, nil
}

// Close releases s if it holds resources.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func defaultName(path, name string) string {
	if path == "" {
		return name
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, name)
	}
	if filepath.Ext(path) == "" {
		return filepath.Join(path, name)
	}
	return path
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", core.ErrKeyNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys lists stored keys in ascending order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
