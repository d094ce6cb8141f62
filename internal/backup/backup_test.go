package backup

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/vault"
)

const testPassphrase = "correct horse battery"

func setup(t *testing.T, retain int) (*Manager, *sql.DB, *vault.LocalStore) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "hearth.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	blobs, err := vault.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(db, store.NewBackupStore(db), blobs, testPassphrase, retain, logger), db, blobs
}

func TestRunStoresDecryptableSnapshot(t *testing.T) {
	m, db, blobs := setup(t, 3)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `INSERT INTO households (name) VALUES ('Smiths')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m.now = func() time.Time { return time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC) }

	rec, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.StorageKey != "backups/hearth-20250601T030000Z.db.enc" {
		t.Errorf("key = %q", rec.StorageKey)
	}

	rc, err := blobs.Get(ctx, rec.StorageKey)
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	sealed, _ := io.ReadAll(rc)
	rc.Close()
	if int64(len(sealed)) != rec.SizeBytes {
		t.Errorf("size = %d, blob has %d bytes", rec.SizeBytes, len(sealed))
	}

	plain, err := Open(sealed, testPassphrase)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	path := filepath.Join(t.TempDir(), "restored.db")
	if err := os.WriteFile(path, plain, 0o600); err != nil {
		t.Fatal(err)
	}
	restored, err := database.Open(path)
	if err != nil {
		t.Fatalf("open restored db: %v", err)
	}
	defer restored.Close()

	var name string
	if err := restored.QueryRowContext(ctx, `SELECT name FROM households`).Scan(&name); err != nil {
		t.Fatalf("query restored: %v", err)
	}
	if name != "Smiths" {
		t.Errorf("restored household = %q, want Smiths", name)
	}
}

func TestRunPrunesBeyondRetention(t *testing.T) {
	m, _, blobs := setup(t, 2)
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	var keys []string
	for i := 0; i < 4; i++ {
		now := at.AddDate(0, 0, i)
		m.now = func() time.Time { return now }
		rec, err := m.Run(ctx)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		keys = append(keys, rec.StorageKey)
	}

	list, err := m.records.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("kept %d backups, want 2", len(list))
	}
	if list[0].StorageKey != keys[3] || list[1].StorageKey != keys[2] {
		t.Errorf("kept %s and %s, want the two newest", list[0].StorageKey, list[1].StorageKey)
	}
	for _, key := range keys[:2] {
		if _, err := blobs.Get(ctx, key); err != vault.ErrBlobNotFound {
			t.Errorf("blob %s: got %v, want ErrBlobNotFound", key, err)
		}
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	m, _, _ := setup(t, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.Run(context.Background()); err != ErrInProgress {
		t.Errorf("got %v, want ErrInProgress", err)
	}
}
