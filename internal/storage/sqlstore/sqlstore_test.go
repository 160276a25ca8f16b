package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/storage"
	"github.com/mmynk/fairshare/internal/storage/storagetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "data", "test.db")
	store, err := New(context.Background(), DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestSQLiteStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return newTestStore(t)
	})
}

func TestNewCreatesDatabaseDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deeper")
	store, err := New(context.Background(), DriverSQLite, filepath.Join(dir, "fairshare.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Expected database directory to exist: %v", err)
	}
}

func TestNewIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	first, err := New(ctx, DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("First New failed: %v", err)
	}
	first.Close()

	// Migrations already applied: opening again must not fail
	second, err := New(ctx, DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("Second New failed: %v", err)
	}
	second.Close()
}

func TestMigrateDownAndUp(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := Migrate(ctx, store.db, "down"); err != nil {
		t.Fatalf("Migrate down failed: %v", err)
	}
	if _, err := store.GetGroup(ctx, "any"); err == nil {
		t.Error("Expected query on dropped schema to fail")
	}

	if err := Migrate(ctx, store.db, "up"); err != nil {
		t.Fatalf("Migrate up failed: %v", err)
	}
	if err := Migrate(ctx, store.db, "status"); err != nil {
		t.Fatalf("Migrate status failed: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "whatever"); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestCreatedAtMatchesStoredPrecision(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	at := time.Date(2026, 3, 1, 9, 0, 0, 700_123, time.UTC)

	user := &models.User{ID: "alice", Name: "Alice", CreatedAt: at}
	if err := store.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	group := &models.Group{Name: "Trip", CreatedBy: "alice", CreatedAt: at}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	// Defaulted timestamps are truncated too
	defaulted := &models.Group{Name: "Rent", CreatedBy: "alice"}
	if err := store.CreateGroup(ctx, defaulted); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	want := at.Truncate(time.Millisecond)
	if !group.CreatedAt.Equal(want) {
		t.Errorf("group.CreatedAt = %v, want %v", group.CreatedAt, want)
	}

	gotUser, err := store.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if !gotUser.CreatedAt.Equal(user.CreatedAt) {
		t.Errorf("user created_at: returned %v, stored %v", user.CreatedAt, gotUser.CreatedAt)
	}
	for _, g := range []*models.Group{group, defaulted} {
		got, err := store.GetGroup(ctx, g.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if !got.CreatedAt.Equal(g.CreatedAt) {
			t.Errorf("group %s created_at: returned %v, stored %v", g.Name, g.CreatedAt, got.CreatedAt)
		}
	}
}
