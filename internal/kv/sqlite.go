package kv

import (
	"github.com/quantumlife/hearth/internal/storage"
)

// SQLite is a Store backed by the kv table of a hearth database.
type SQLite struct {
	*storage.KVStore
	db    *storage.DB
	owned bool
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := storage.Open(storage.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{KVStore: storage.NewKVStore(db), db: db, owned: true}, nil
}

// NewSQLite uses an already migrated database. Close leaves db open.
func NewSQLite(db *storage.DB) *SQLite {
	return &SQLite{KVStore: storage.NewKVStore(db), db: db}
}

// DB returns the underlying database, shared with the notification service.
func (s *SQLite) DB() *storage.DB {
	return s.db
}

// Close closes the database if OpenSQLite opened it.
func (s *SQLite) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
