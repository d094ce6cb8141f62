// Package backup takes encrypted snapshots of the whole database and keeps
// the most recent ones in blob storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/vault"
)

const keyPrefix = "backups/"

// ErrInProgress is returned when a snapshot is already running.
var ErrInProgress = errors.New("backup already in progress")

type Manager struct {
	db         *sql.DB
	records    *store.BackupStore
	blobs      vault.BlobStore
	passphrase string
	retain     int
	logger     *slog.Logger
	now        func() time.Time
	mu         sync.Mutex
}

func NewManager(db *sql.DB, records *store.BackupStore, blobs vault.BlobStore, passphrase string, retain int, logger *slog.Logger) *Manager {
	return &Manager{
		db:         db,
		records:    records,
		blobs:      blobs,
		passphrase: passphrase,
		retain:     max(retain, 1),
		logger:     logger.With("component", "backup"),
		now:        time.Now,
	}
}

// Key returns the storage key for a snapshot taken at t.
func Key(t time.Time) string {
	return keyPrefix + "hearth-" + t.UTC().Format("20060102T150405Z") + ".db.enc"
}

// Run snapshots the database, stores it sealed, records it and prunes
// snapshots beyond the retention count.
func (m *Manager) Run(ctx context.Context) (*model.Backup, error) {
	if !m.mu.TryLock() {
		return nil, ErrInProgress
	}
	defer m.mu.Unlock()

	start := m.now()
	plaintext, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sealed, err := Seal(plaintext, m.passphrase)
	if err != nil {
		return nil, fmt.Errorf("seal snapshot: %w", err)
	}

	key := Key(start)
	if err := m.blobs.Put(ctx, key, bytes.NewReader(sealed), int64(len(sealed)), "application/octet-stream"); err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}
	rec, err := m.records.Create(ctx, key, int64(len(sealed)), start)
	if err != nil {
		if delErr := m.blobs.Delete(ctx, key); delErr != nil {
			m.logger.Warn("orphaned snapshot blob", "key", key, "error", delErr)
		}
		return nil, err
	}

	m.logger.Info("backup complete", "key", key, "bytes", len(sealed), "duration", m.now().Sub(start))

	if err := m.prune(ctx); err != nil {
		m.logger.Error("prune backups", "error", err)
	}
	return rec, nil
}

// snapshot writes a consistent copy of the database with VACUUM INTO and
// returns its bytes.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "hearth-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

func (m *Manager) prune(ctx context.Context) error {
	backups, err := m.records.List(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= m.retain {
		return nil
	}
	for _, b := range backups[m.retain:] {
		if err := m.blobs.Delete(ctx, b.StorageKey); err != nil {
			return fmt.Errorf("delete blob %s: %w", b.StorageKey, err)
		}
		if err := m.records.Delete(ctx, b.ID); err != nil {
			return err
		}
		m.logger.Debug("backup pruned", "key", b.StorageKey)
	}
	return nil
}
