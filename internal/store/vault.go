package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

type VaultStore struct {
	db *sql.DB
}

func NewVaultStore(db *sql.DB) *VaultStore {
	return &VaultStore{db: db}
}

func scanVaultItem(s scanner) (*model.VaultItem, error) {
	var v model.VaultItem
	var createdBy sql.NullInt64
	var content sql.NullString
	var restricted int
	err := s.Scan(&v.ID, &v.HouseholdID, &createdBy, &v.Title, &v.Category, &content, &restricted, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.CreatedByID = int64Ptr(createdBy)
	v.Content = content.String
	v.Restricted = restricted != 0
	v.Documents = []model.VaultDocument{}
	return &v, nil
}

const vaultCols = `id, household_id, created_by_id, title, category, content, restricted, created_at, updated_at`

// Create stores a vault item. Content is persisted exactly as given.
func (s *VaultStore) Create(ctx context.Context, v *model.VaultItem) (*model.VaultItem, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO vault_items (household_id, created_by_id, title, category, content, restricted) VALUES (?, ?, ?, ?, ?, ?)`,
		v.HouseholdID, nullInt64(v.CreatedByID), v.Title, v.Category, nullString(v.Content), boolInt(v.Restricted),
	)
	if err != nil {
		return nil, fmt.Errorf("insert vault item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, v.HouseholdID, id)
}

// Get returns the item with its documents, regardless of the restricted flag.
func (s *VaultStore) Get(ctx context.Context, householdID, id int64) (*model.VaultItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+vaultCols+` FROM vault_items WHERE id = ? AND household_id = ?`, id, householdID)
	v, err := scanVaultItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vault item: %w", err)
	}
	docs, err := s.ListDocuments(ctx, householdID, v.ID)
	if err != nil {
		return nil, err
	}
	v.Documents = docs
	return v, nil
}

// VaultFilter narrows List.
type VaultFilter struct {
	Category          string
	IncludeRestricted bool
}

func (s *VaultStore) List(ctx context.Context, householdID int64, f VaultFilter) ([]model.VaultItem, error) {
	query := `SELECT ` + vaultCols + ` FROM vault_items WHERE household_id = ?`
	args := []any{householdID}
	if !f.IncludeRestricted {
		query += ` AND restricted = 0`
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	query += ` ORDER BY category ASC, title ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list vault items: %w", err)
	}
	defer rows.Close()

	items := []model.VaultItem{}
	for rows.Next() {
		v, err := scanVaultItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vault item: %w", err)
		}
		items = append(items, *v)
	}
	return items, rows.Err()
}

func (s *VaultStore) Update(ctx context.Context, v *model.VaultItem) (*model.VaultItem, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE vault_items SET title = ?, category = ?, content = ?, restricted = ?, updated_at = ? WHERE id = ? AND household_id = ?`,
		v.Title, v.Category, nullString(v.Content), boolInt(v.Restricted), time.Now().UTC(), v.ID, v.HouseholdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update vault item: %w", err)
	}
	return s.Get(ctx, v.HouseholdID, v.ID)
}

func (s *VaultStore) Delete(ctx context.Context, householdID, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM vault_items WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete vault item: %w", err)
	}
	return nil
}

// --- Document methods ---

const documentCols = `d.id, d.vault_item_id, d.file_name, d.content_type, d.size_bytes, d.storage_key, d.created_at`

func scanDocument(s scanner) (*model.VaultDocument, error) {
	var d model.VaultDocument
	err := s.Scan(&d.ID, &d.VaultItemID, &d.FileName, &d.ContentType, &d.SizeBytes, &d.StorageKey, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AddDocument records a stored blob. Callers verify the item belongs to householdID.
func (s *VaultStore) AddDocument(ctx context.Context, householdID int64, d *model.VaultDocument) (*model.VaultDocument, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO vault_documents (vault_item_id, file_name, content_type, size_bytes, storage_key) VALUES (?, ?, ?, ?, ?)`,
		d.VaultItemID, d.FileName, d.ContentType, d.SizeBytes, d.StorageKey,
	)
	if err != nil {
		return nil, fmt.Errorf("insert vault document: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	doc, _, err := s.GetDocument(ctx, householdID, id)
	return doc, err
}

// GetDocument returns a document and whether its parent item is restricted.
func (s *VaultStore) GetDocument(ctx context.Context, householdID, id int64) (*model.VaultDocument, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentCols+`, v.restricted FROM vault_documents d
		 JOIN vault_items v ON v.id = d.vault_item_id
		 WHERE d.id = ? AND v.household_id = ?`,
		id, householdID,
	)
	var d model.VaultDocument
	var restricted int
	err := row.Scan(&d.ID, &d.VaultItemID, &d.FileName, &d.ContentType, &d.SizeBytes, &d.StorageKey, &d.CreatedAt, &restricted)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get vault document: %w", err)
	}
	return &d, restricted != 0, nil
}

func (s *VaultStore) ListDocuments(ctx context.Context, householdID, itemID int64) ([]model.VaultDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentCols+` FROM vault_documents d
		 JOIN vault_items v ON v.id = d.vault_item_id
		 WHERE d.vault_item_id = ? AND v.household_id = ? ORDER BY d.created_at ASC, d.id ASC`,
		itemID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list vault documents: %w", err)
	}
	defer rows.Close()

	docs := []model.VaultDocument{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vault document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}
