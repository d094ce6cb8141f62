package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

// memberColors cycles through a palette so each new member gets a distinct tag.
var memberColors = []string{"#3B82F6", "#EF4444", "#10B981", "#F59E0B", "#8B5CF6", "#EC4899", "#14B8A6", "#F97316"}

func scanMember(s scanner) (*model.Member, error) {
	var m model.Member
	var avatar sql.NullString
	var role string
	err := s.Scan(&m.ID, &m.HouseholdID, &m.ExternalID, &m.Email, &m.Name, &avatar, &m.Color, &role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.AvatarURL = avatar.String
	m.Role = auth.Role(role)
	return &m, nil
}

const memberCols = `id, household_id, external_id, email, name, avatar_url, color, role, created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertMember(ctx context.Context, ex execer, householdID int64, p auth.Principal, role auth.Role) (int64, error) {
	var count int
	if err := ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE household_id = ?`, householdID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	name := p.Name
	if name == "" {
		name = strings.SplitN(p.Email, "@", 2)[0]
	}
	res, err := ex.ExecContext(ctx,
		`INSERT INTO members (household_id, external_id, email, name, avatar_url, color, role) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		householdID, p.ExternalID, strings.ToLower(p.Email), name, nullString(p.Picture),
		memberColors[count%len(memberColors)], string(role),
	)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, fmt.Errorf("insert member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Get returns the member with id inside householdID, or nil.
func (s *MemberStore) Get(ctx context.Context, householdID, id int64) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberCols+` FROM members WHERE id = ? AND household_id = ?`, id, householdID,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// GetByExternalID resolves a federated identity key to its member row, or nil.
func (s *MemberStore) GetByExternalID(ctx context.Context, externalID string) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE external_id = ?`, externalID)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member by external id: %w", err)
	}
	return m, nil
}

// GetByEmail returns the member with email inside householdID, or nil.
func (s *MemberStore) GetByEmail(ctx context.Context, householdID int64, email string) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberCols+` FROM members WHERE household_id = ? AND email = ?`,
		householdID, strings.ToLower(email),
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member by email: %w", err)
	}
	return m, nil
}

// List returns the household's members in creation order.
func (s *MemberStore) List(ctx context.Context, householdID int64) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberCols+` FROM members WHERE household_id = ? ORDER BY created_at ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []model.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// First returns the earliest-created member of the household, or nil when it has none.
func (s *MemberStore) First(ctx context.Context, householdID int64) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberCols+` FROM members WHERE household_id = ? ORDER BY created_at ASC, id ASC LIMIT 1`,
		householdID,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first member: %w", err)
	}
	return m, nil
}

// Update writes role, display name and color for a member of householdID.
func (s *MemberStore) Update(ctx context.Context, householdID int64, m *model.Member) (*model.Member, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE members SET name = ?, color = ?, role = ?, updated_at = ? WHERE id = ? AND household_id = ?`,
		m.Name, m.Color, string(m.Role), time.Now().UTC(), m.ID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return s.Get(ctx, householdID, m.ID)
}

// CountAdmins returns how many ADMIN members the household has.
func (s *MemberStore) CountAdmins(ctx context.Context, householdID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE household_id = ? AND role = ?`, householdID, string(auth.RoleAdmin),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

func (s *MemberStore) Delete(ctx context.Context, householdID, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

// AcceptInvitation binds the principal to the newest acceptable invitation for
// its email. It returns nil when no such invitation exists.
func (s *MemberStore) AcceptInvitation(ctx context.Context, p auth.Principal, now time.Time) (*model.Member, error) {
	if p.Email == "" {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var invID, householdID int64
	var role string
	err = tx.QueryRowContext(ctx,
		`SELECT id, household_id, role FROM invitations
		 WHERE email = ? AND status = ? AND expires_at > ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		strings.ToLower(p.Email), model.InvitationPending, now.UTC(),
	).Scan(&invID, &householdID, &role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find invitation: %w", err)
	}

	memberID, err := insertMember(ctx, tx, householdID, p, auth.Role(role))
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE invitations SET status = ?, updated_at = ? WHERE id = ?`,
		model.InvitationAccepted, now.UTC(), invID,
	); err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit acceptance: %w", err)
	}
	return s.Get(ctx, householdID, memberID)
}
