package upload

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"coachportal/internal/adapters/storage"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func testUpload(id, key string) Upload {
	return Upload{
		ID:          id,
		UploaderID:  "coach-1",
		ObjectKey:   key,
		ContentType: "image/png",
		SizeBytes:   2048,
		PublicURL:   "https://cdn.example/portal/" + key,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestInsertAndGet(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	u := testUpload("u-1", "photos/u-1.png")
	if err := store.Insert(ctx, u); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "u-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ObjectKey != u.ObjectKey || got.SizeBytes != u.SizeBytes {
		t.Errorf("got %+v, want %+v", got, u)
	}
}

func TestInsert_DuplicateKey(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	if err := store.Insert(ctx, testUpload("u-1", "photos/same.png")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	err := store.Insert(ctx, testUpload("u-2", "photos/same.png"))
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("got %v, want ErrDuplicate", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	if err := store.Insert(ctx, testUpload("u-1", "photos/u-1.png")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.Delete(ctx, "u-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.GetByID(ctx, "u-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("row should be gone, got %v", err)
	}
}

func TestListByUploader(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	for i, key := range []string{"photos/a.png", "photos/b.png"} {
		u := testUpload("u-"+key, key)
		u.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		if err := store.Insert(ctx, u); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	other := testUpload("u-x", "photos/x.png")
	other.UploaderID = "coach-2"
	if err := store.Insert(ctx, other); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	uploads, err := store.ListByUploader(ctx, "coach-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(uploads) != 2 {
		t.Fatalf("got %d uploads, want 2", len(uploads))
	}
	if uploads[0].ObjectKey != "photos/b.png" {
		t.Errorf("newest first, got %q", uploads[0].ObjectKey)
	}
}
