package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

type GroceryStore struct {
	db *sql.DB
}

func NewGroceryStore(db *sql.DB) *GroceryStore {
	return &GroceryStore{db: db}
}

const grocerySelect = `SELECT g.id, g.household_id, g.added_by_id, g.name, g.quantity, g.category, g.checked,
	COALESCE(m.name, ''), g.created_at, g.updated_at
	FROM grocery_items g LEFT JOIN members m ON m.id = g.added_by_id`

func scanItem(s scanner) (*model.GroceryItem, error) {
	var item model.GroceryItem
	var addedBy sql.NullInt64
	var quantity, category sql.NullString
	var checked int
	err := s.Scan(&item.ID, &item.HouseholdID, &addedBy, &item.Name, &quantity, &category, &checked,
		&item.AddedByName, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.AddedByID = int64Ptr(addedBy)
	item.Quantity = quantity.String
	item.Category = category.String
	item.Checked = checked != 0
	return &item, nil
}

func (s *GroceryStore) Create(ctx context.Context, item *model.GroceryItem) (*model.GroceryItem, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO grocery_items (household_id, added_by_id, name, quantity, category) VALUES (?, ?, ?, ?, ?)`,
		item.HouseholdID, nullInt64(item.AddedByID), item.Name, nullString(item.Quantity), nullString(item.Category),
	)
	if err != nil {
		return nil, fmt.Errorf("insert grocery item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, item.HouseholdID, id)
}

func (s *GroceryStore) Get(ctx context.Context, householdID, id int64) (*model.GroceryItem, error) {
	row := s.db.QueryRowContext(ctx, grocerySelect+` WHERE g.id = ? AND g.household_id = ?`, id, householdID)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get grocery item: %w", err)
	}
	return item, nil
}

// List returns unchecked items first, grouped by category, newest first within a group.
func (s *GroceryStore) List(ctx context.Context, householdID int64) ([]model.GroceryItem, error) {
	rows, err := s.db.QueryContext(ctx,
		grocerySelect+` WHERE g.household_id = ? ORDER BY g.checked ASC, g.category ASC, g.created_at DESC, g.id DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list grocery items: %w", err)
	}
	defer rows.Close()

	items := []model.GroceryItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grocery item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *GroceryStore) Update(ctx context.Context, item *model.GroceryItem) (*model.GroceryItem, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE grocery_items SET name = ?, quantity = ?, category = ?, checked = ?, updated_at = ?
		 WHERE id = ? AND household_id = ?`,
		item.Name, nullString(item.Quantity), nullString(item.Category), boolInt(item.Checked), time.Now().UTC(),
		item.ID, item.HouseholdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update grocery item: %w", err)
	}
	return s.Get(ctx, item.HouseholdID, item.ID)
}

func (s *GroceryStore) Delete(ctx context.Context, householdID, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM grocery_items WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete grocery item: %w", err)
	}
	return nil
}

// ClearChecked removes every checked item and returns how many were deleted.
func (s *GroceryStore) ClearChecked(ctx context.Context, householdID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM grocery_items WHERE household_id = ? AND checked = 1`, householdID)
	if err != nil {
		return 0, fmt.Errorf("clear checked items: %w", err)
	}
	return result.RowsAffected()
}
