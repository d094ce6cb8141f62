package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
)

// ErrPendingInvitation is returned when the email already has a live invitation to the household.
var ErrPendingInvitation = errors.New("invitation already pending")

type InvitationStore struct {
	db *sql.DB
}

func NewInvitationStore(db *sql.DB) *InvitationStore {
	return &InvitationStore{db: db}
}

func scanInvitation(s scanner) (*model.Invitation, error) {
	var inv model.Invitation
	var invitedBy sql.NullInt64
	var role string
	err := s.Scan(&inv.ID, &inv.HouseholdID, &inv.Email, &role, &inv.Status, &invitedBy, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	inv.Role = auth.Role(role)
	inv.InvitedByID = int64Ptr(invitedBy)
	return &inv, nil
}

const invitationCols = `id, household_id, email, role, status, invited_by_id, expires_at, created_at`

// Create records a PENDING invitation. A stale pending invitation for the same
// email is expired first; a live one yields ErrPendingInvitation.
func (s *InvitationStore) Create(ctx context.Context, householdID int64, email string, role auth.Role, invitedBy int64, now time.Time) (*model.Invitation, error) {
	email = strings.ToLower(email)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE invitations SET status = ?, updated_at = ?
		 WHERE household_id = ? AND email = ? AND status = ? AND expires_at <= ?`,
		model.InvitationExpired, now.UTC(), householdID, email, model.InvitationPending, now.UTC(),
	); err != nil {
		return nil, fmt.Errorf("expire stale invitation: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO invitations (household_id, email, role, status, invited_by_id, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		householdID, email, string(role), model.InvitationPending, invitedBy, now.Add(model.InvitationTTL).UTC(),
	)
	if isUniqueViolation(err) {
		return nil, ErrPendingInvitation
	}
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit invitation: %w", err)
	}
	return s.Get(ctx, householdID, id)
}

func (s *InvitationStore) Get(ctx context.Context, householdID, id int64) (*model.Invitation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invitationCols+` FROM invitations WHERE id = ? AND household_id = ?`, id, householdID,
	)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

// GetPending returns the live pending invitation for email in householdID, or nil.
func (s *InvitationStore) GetPending(ctx context.Context, householdID int64, email string, now time.Time) (*model.Invitation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invitationCols+` FROM invitations
		 WHERE household_id = ? AND email = ? AND status = ? AND expires_at > ?`,
		householdID, strings.ToLower(email), model.InvitationPending, now.UTC(),
	)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending invitation: %w", err)
	}
	return inv, nil
}

// List returns the household's invitations, newest first.
func (s *InvitationStore) List(ctx context.Context, householdID int64) ([]model.Invitation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invitationCols+` FROM invitations WHERE household_id = ? ORDER BY created_at DESC, id DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	invitations := []model.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invitations = append(invitations, *inv)
	}
	return invitations, rows.Err()
}

func (s *InvitationStore) Delete(ctx context.Context, householdID, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM invitations WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	return nil
}

// ExpireStale marks every past-due PENDING invitation EXPIRED and returns how many changed.
// Maintenance sweep across all households.
func (s *InvitationStore) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invitations SET status = ?, updated_at = ? WHERE status = ? AND expires_at <= ?`,
		model.InvitationExpired, now.UTC(), model.InvitationPending, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("expire invitations: %w", err)
	}
	return res.RowsAffected()
}
