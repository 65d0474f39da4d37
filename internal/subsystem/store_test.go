package subsystem

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the config_entries table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE config_entries (
			id TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			title TEXT NOT NULL,
			supports_remove_device INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func setupStore(t *testing.T) *Store {
	t.Helper()

	store := NewStore(NewSQLiteRepository(setupTestDB(t)))
	if err := store.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	return store
}

func TestStore_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates entry and serves it from cache", func(t *testing.T) {
		store := setupStore(t)

		created, err := store.Create(ctx, &ConfigEntry{
			Domain:               "hue",
			Title:                "Philips Hue",
			SupportsRemoveDevice: true,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if created.ID == "" {
			t.Error("Create() assigned no ID")
		}

		got, err := store.Get(created.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Domain != "hue" || !got.SupportsRemoveDevice {
			t.Errorf("Get() = %+v, want hue entry with removal support", got)
		}
	})

	t.Run("missing domain rejected", func(t *testing.T) {
		store := setupStore(t)

		_, err := store.Create(ctx, &ConfigEntry{Title: "No domain"})
		if !errors.Is(err, ErrInvalidEntry) {
			t.Errorf("Create() error = %v, want ErrInvalidEntry", err)
		}
	})

	t.Run("empty title defaults to domain", func(t *testing.T) {
		store := setupStore(t)

		created, err := store.Create(ctx, &ConfigEntry{Domain: "zwave"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if created.Title != "zwave" {
			t.Errorf("Title = %q, want domain fallback", created.Title)
		}
	})

	t.Run("duplicate ID rejected", func(t *testing.T) {
		store := setupStore(t)

		if _, err := store.Create(ctx, &ConfigEntry{ID: "entry-1", Domain: "hue"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		_, err := store.Create(ctx, &ConfigEntry{ID: "entry-1", Domain: "zwave"})
		if !errors.Is(err, ErrEntryExists) {
			t.Errorf("Create() duplicate error = %v, want ErrEntryExists", err)
		}
	})
}

func TestStore_Get(t *testing.T) {
	store := setupStore(t)

	_, err := store.Get("no-such")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes existing entry", func(t *testing.T) {
		store := setupStore(t)

		created, err := store.Create(ctx, &ConfigEntry{Domain: "hue"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		if err := store.Delete(ctx, created.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := store.Get(created.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("missing entry returns ErrNotFound", func(t *testing.T) {
		store := setupStore(t)

		if err := store.Delete(ctx, "no-such"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete() error = %v, want ErrNotFound", err)
		}
	})
}

func TestStore_RefreshCache(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	if err := repo.Insert(ctx, &ConfigEntry{ID: "entry-1", Domain: "hue", Title: "Hue"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	store := NewStore(repo)
	if store.Count() != 0 {
		t.Error("new store should have empty cache before refresh")
	}

	if err := store.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("Count() = %d after refresh, want 1", store.Count())
	}
	if _, err := store.Get("entry-1"); err != nil {
		t.Errorf("Get() after refresh error = %v", err)
	}
}
