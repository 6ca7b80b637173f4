package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"recipe-companion/internal/database"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFileStore(filepath.Join(t.TempDir(), "device"))
	if err != nil {
		t.Fatalf("Failed to create FileStore: %v", err)
	}

	db, err := database.NewDB(filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]Store{
		"file":   fileStore,
		"sqlite": NewSQLStore(db.SQL),
		"memory": NewMemoryStore(),
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("GetMissing", func(t *testing.T) {
				_, ok, err := store.Get(ctx, "accessToken")
				if err != nil {
					t.Fatalf("Get failed: %v", err)
				}
				if ok {
					t.Error("Expected key to be missing")
				}
			})

			t.Run("SetMany", func(t *testing.T) {
				err := store.SetMany(ctx, map[string]string{
					"accessToken":  "a1",
					"refreshToken": "r1",
					"user":         `{"id":"u1"}`,
				})
				if err != nil {
					t.Fatalf("SetMany failed: %v", err)
				}
				v, ok, err := store.Get(ctx, "user")
				if err != nil || !ok {
					t.Fatalf("Expected user to be stored, ok=%v err=%v", ok, err)
				}
				if v != `{"id":"u1"}` {
					t.Errorf("Expected stored JSON, got %s", v)
				}
			})

			t.Run("Overwrite", func(t *testing.T) {
				if err := store.SetMany(ctx, map[string]string{"accessToken": "a2"}); err != nil {
					t.Fatalf("SetMany failed: %v", err)
				}
				v, _, _ := store.Get(ctx, "accessToken")
				if v != "a2" {
					t.Errorf("Expected a2, got %s", v)
				}
			})

			t.Run("Remove", func(t *testing.T) {
				if err := store.Remove(ctx, "accessToken", "refreshToken", "user", "neverSet"); err != nil {
					t.Fatalf("Remove failed: %v", err)
				}
				for _, k := range []string{"accessToken", "refreshToken", "user"} {
					if _, ok, _ := store.Get(ctx, k); ok {
						t.Errorf("Expected %s to be removed", k)
					}
				}
			})
		})
	}
}

func TestFileStoreRejectsBadKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create FileStore: %v", err)
	}
	if err := store.SetMany(context.Background(), map[string]string{"../escape": "x"}); err == nil {
		t.Error("Expected an error for a path-like key")
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	if err := store.SetMany(context.Background(), map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("SetMany failed: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("Unexpected temp file left behind: %s", e.Name())
		}
	}
	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Expected keys [a b], got %v", keys)
	}
}
