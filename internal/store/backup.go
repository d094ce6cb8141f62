package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

// BackupStore tracks database snapshots. Snapshots cover every household, so
// unlike the other stores it is not scoped by household.
type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

func (s *BackupStore) Create(ctx context.Context, key string, size int64, at time.Time) (*model.Backup, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO backups (storage_key, size_bytes, created_at) VALUES (?, ?, ?)`, key, size, at.UTC())
	if err != nil {
		return nil, fmt.Errorf("insert backup: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.Backup{ID: id, StorageKey: key, SizeBytes: size, CreatedAt: at.UTC()}, nil
}

// List returns snapshots newest first.
func (s *BackupStore) List(ctx context.Context) ([]model.Backup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, storage_key, size_bytes, created_at FROM backups ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	backups := []model.Backup{}
	for rows.Next() {
		var b model.Backup
		if err := rows.Scan(&b.ID, &b.StorageKey, &b.SizeBytes, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}

func (s *BackupStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}
