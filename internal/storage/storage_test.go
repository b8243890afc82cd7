package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quantumlife/hearth/internal/core"
)

// testDB creates an in-memory database for testing
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// =============================================================================
// DB Tests
// =============================================================================

func TestDB_Open_InMemory(t *testing.T) {
	db, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if db.conn == nil {
		t.Error("db.conn should not be nil")
	}
	if !db.isMemory {
		t.Error("db.isMemory should be true for in-memory database")
	}
}

func TestDB_Open_InMemoryIsolated(t *testing.T) {
	ctx := context.Background()
	a := testDB(t)
	b := testDB(t)

	if err := NewKVStore(a).Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := NewKVStore(b).Get(ctx, "k"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Errorf("Get() on second database error = %v, want %v", err, core.ErrKeyNotFound)
	}
}

func TestDB_Open_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if db.isMemory {
		t.Error("db.isMemory should be false for file database")
	}
	if db.Path() != path {
		t.Errorf("db.Path() = %v, want %v", db.Path(), path)
	}
}

func TestDB_Open_RequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open() with no path should fail")
	}
}

func TestDB_Migrate_Idempotent(t *testing.T) {
	db := testDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	names, err := db.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations() error = %v", err)
	}
	if v, err := db.SchemaVersion(); err != nil || v != 2 {
		t.Errorf("SchemaVersion() = %d, %v, want 2", v, err)
	}

	want := []string{"001_kv.sql", "002_toasts.sql"}
	if len(names) != len(want) {
		t.Fatalf("AppliedMigrations() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("AppliedMigrations()[%d] = %v, want %v", i, names[i], want[i])
		}
	}
}

func TestDB_Transaction_Rollback(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	errBoom := errors.New("boom")
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES ('a', 'b', 0)`); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Transaction() error = %v, want %v", err, errBoom)
	}

	if _, err := NewKVStore(db).Get(ctx, "a"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Errorf("Get() after rollback error = %v, want %v", err, core.ErrKeyNotFound)
	}
}

func TestLoadMigrations(t *testing.T) {
	tests := []struct {
		name    string
		files   fstest.MapFS
		want    []int
		wantErr bool
	}{
		{
			name: "ordered by version",
			files: fstest.MapFS{
				"migrations/010_late.sql": {Data: []byte("SELECT 1")},
				"migrations/002_b.sql":    {Data: []byte("SELECT 1")},
				"migrations/README.md":    {Data: []byte("ignored")},
			},
			want: []int{2, 10},
		},
		{
			name:    "missing version",
			files:   fstest.MapFS{"migrations/init.sql": {Data: []byte("SELECT 1")}},
			wantErr: true,
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"migrations/003_a.sql": {Data: []byte("SELECT 1")},
				"migrations/03_b.sql":  {Data: []byte("SELECT 1")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadMigrations(tt.files)
			if tt.wantErr {
				if !errors.Is(err, core.ErrMigrationFailed) {
					t.Errorf("loadMigrations() error = %v, want %v", err, core.ErrMigrationFailed)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadMigrations() error = %v", err)
			}
			var versions []int
			for _, m := range got {
				versions = append(versions, m.version)
			}
			if len(versions) != len(tt.want) {
				t.Fatalf("versions = %v, want %v", versions, tt.want)
			}
			for i := range tt.want {
				if versions[i] != tt.want[i] {
					t.Errorf("versions[%d] = %d, want %d", i, versions[i], tt.want[i])
				}
			}
		})
	}
}

func TestDB_Transaction_PanicRollsBack(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Transaction() should re-panic")
			}
		}()
		db.Transaction(ctx, func(tx *sql.Tx) error {
			tx.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES ('p', 'q', 0)`)
			panic("boom")
		})
	}()

	if _, err := NewKVStore(db).Get(ctx, "p"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Errorf("Get() after panic error = %v, want %v", err, core.ErrKeyNotFound)
	}
}

// =============================================================================
// KVStore Tests
// =============================================================================

func TestKVStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(testDB(t))

	if _, err := store.Get(ctx, "app_theme"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Errorf("Get() missing error = %v, want %v", err, core.ErrKeyNotFound)
	}

	if err := store.Set(ctx, "app_theme", "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "app_theme", "light"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	got, err := store.Get(ctx, "app_theme")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "light" {
		t.Errorf("Get() = %v, want %v", got, "light")
	}

	if _, err := store.UpdatedAt(ctx, "app_theme"); err != nil {
		t.Errorf("UpdatedAt() error = %v", err)
	}

	if err := store.Set(ctx, "shopping_preferences", `{"filterMode":"all"}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "app_theme" || keys[1] != "shopping_preferences" {
		t.Errorf("Keys() = %v", keys)
	}

	if err := store.Delete(ctx, "app_theme"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "app_theme"); err != nil {
		t.Errorf("Delete() missing key error = %v", err)
	}
	if _, err := store.Get(ctx, "app_theme"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Errorf("Get() after delete error = %v, want %v", err, core.ErrKeyNotFound)
	}
}

func TestKVStore_CGoDriver(t *testing.T) {
	ctx := context.Background()
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "cgo.db"), Driver: "sqlite3"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	store := NewKVStore(db)
	if err := store.Set(ctx, "app_theme", "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := store.Get(ctx, "app_theme")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "dark" {
		t.Errorf("Get() = %v, want %v", got, "dark")
	}
}
