package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

const messageSelect = `SELECT n.id, n.household_id, n.author_id, n.type, n.title, n.content, n.pinned,
	m.name, m.color, n.created_at, n.updated_at
	FROM messages n JOIN members m ON m.id = n.author_id`

func scanMessage(s scanner) (*model.Message, error) {
	var msg model.Message
	var title sql.NullString
	var pinned int
	err := s.Scan(&msg.ID, &msg.HouseholdID, &msg.AuthorID, &msg.Type, &title, &msg.Content, &pinned,
		&msg.AuthorName, &msg.AuthorColor, &msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	msg.Title = title.String
	msg.Pinned = pinned != 0
	return &msg, nil
}

func (s *MessageStore) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (household_id, author_id, type, title, content, pinned) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.HouseholdID, msg.AuthorID, msg.Type, nullString(msg.Title), msg.Content, boolInt(msg.Pinned),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, msg.HouseholdID, id)
}

func (s *MessageStore) Get(ctx context.Context, householdID, id int64) (*model.Message, error) {
	row := s.db.QueryRowContext(ctx, messageSelect+` WHERE n.id = ? AND n.household_id = ?`, id, householdID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// MessageFilter narrows List. Zero values mean no constraint.
type MessageFilter struct {
	Type       string
	PinnedOnly bool
	Limit      int
}

// List returns pinned messages first, then newest first.
func (s *MessageStore) List(ctx context.Context, householdID int64, f MessageFilter) ([]model.Message, error) {
	query := messageSelect + ` WHERE n.household_id = ?`
	args := []any{householdID}
	if f.Type != "" {
		query += ` AND n.type = ?`
		args = append(args, f.Type)
	}
	if f.PinnedOnly {
		query += ` AND n.pinned = 1`
	}
	query += ` ORDER BY n.pinned DESC, n.created_at DESC, n.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func (s *MessageStore) Update(ctx context.Context, msg *model.Message) (*model.Message, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET type = ?, title = ?, content = ?, pinned = ?, updated_at = ? WHERE id = ? AND household_id = ?`,
		msg.Type, nullString(msg.Title), msg.Content, boolInt(msg.Pinned), time.Now().UTC(), msg.ID, msg.HouseholdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	return s.Get(ctx, msg.HouseholdID, msg.ID)
}

func (s *MessageStore) Delete(ctx context.Context, householdID, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
