package store

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
)

// ErrAlreadyMember is returned when an identity that already belongs to a
// household attempts onboarding.
var ErrAlreadyMember = errors.New("already a member of a household")

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(s scanner) (*model.Household, error) {
	var h model.Household
	var location, kiosk sql.NullString
	err := s.Scan(&h.ID, &h.Name, &location, &h.Timezone, &kiosk, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	h.Location = location.String
	h.KioskSet = kiosk.Valid && kiosk.String != ""
	return &h, nil
}

const householdCols = `id, name, location, timezone, kiosk_token, created_at, updated_at`

func (s *HouseholdStore) GetByID(ctx context.Context, id int64) (*model.Household, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

// Onboard creates a household and binds the principal to it as its first ADMIN.
func (s *HouseholdStore) Onboard(ctx context.Context, p auth.Principal, name, location, timezone string) (*model.Household, *model.Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM members WHERE external_id = ?`, p.ExternalID).Scan(&existing)
	if err == nil {
		return nil, nil, ErrAlreadyMember
	}
	if err != sql.ErrNoRows {
		return nil, nil, fmt.Errorf("check membership: %w", err)
	}

	if timezone == "" {
		timezone = "America/Denver"
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO households (name, location, timezone) VALUES (?, ?, ?)`,
		name, nullString(location), timezone,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("insert household: %w", err)
	}
	householdID, err := res.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("last insert id: %w", err)
	}

	memberID, err := insertMember(ctx, tx, householdID, p, auth.RoleAdmin)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit onboarding: %w", err)
	}

	h, err := s.GetByID(ctx, householdID)
	if err != nil {
		return nil, nil, err
	}
	m, err := NewMemberStore(s.db).Get(ctx, householdID, memberID)
	if err != nil {
		return nil, nil, err
	}
	return h, m, nil
}

// Update replaces the editable settings of a household.
func (s *HouseholdStore) Update(ctx context.Context, h *model.Household) (*model.Household, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE households SET name = ?, location = ?, timezone = ?, updated_at = ? WHERE id = ?`,
		h.Name, nullString(h.Location), h.Timezone, time.Now().UTC(), h.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update household: %w", err)
	}
	return s.GetByID(ctx, h.ID)
}

// SetKioskToken stores digest as the household's kiosk credential. An empty
// digest clears it.
func (s *HouseholdStore) SetKioskToken(ctx context.Context, householdID int64, digest string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE households SET kiosk_token = ?, updated_at = ? WHERE id = ?`,
		nullString(digest), time.Now().UTC(), householdID,
	)
	if err != nil {
		return fmt.Errorf("set kiosk token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set kiosk token: household %d not found", householdID)
	}
	return nil
}

// GetByKioskToken returns the household whose stored digest equals digest, or nil.
func (s *HouseholdStore) GetByKioskToken(ctx context.Context, digest string) (*model.Household, error) {
	if digest == "" {
		return nil, nil
	}
	var stored string
	row := s.db.QueryRowContext(ctx,
		`SELECT kiosk_token, `+householdCols+` FROM households WHERE kiosk_token = ?`, digest,
	)
	var h model.Household
	var location, kiosk sql.NullString
	err := row.Scan(&stored, &h.ID, &h.Name, &location, &h.Timezone, &kiosk, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household by kiosk token: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(digest)) != 1 {
		return nil, nil
	}
	h.Location = location.String
	h.KioskSet = true
	return &h, nil
}

// StoredKioskToken returns the raw persisted digest for a household.
func (s *HouseholdStore) StoredKioskToken(ctx context.Context, householdID int64) (string, error) {
	var digest sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT kiosk_token FROM households WHERE id = ?`, householdID).Scan(&digest)
	if err != nil {
		return "", fmt.Errorf("get kiosk token: %w", err)
	}
	return digest.String, nil
}
