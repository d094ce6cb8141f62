package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/hearth/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const pushCols = `id, household_id, member_id, endpoint, p256dh, auth, user_agent, created_at`

func scanSubscription(s scanner) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	var ua sql.NullString
	err := s.Scan(&sub.ID, &sub.HouseholdID, &sub.MemberID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &ua, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	sub.UserAgent = ua.String
	return &sub, nil
}

// Upsert saves a browser subscription for the member. A known endpoint is
// rebound to the caller since it identifies a single device.
func (s *PushStore) Upsert(ctx context.Context, sub *model.PushSubscription) (*model.PushSubscription, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (household_id, member_id, endpoint, p256dh, auth, user_agent)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET household_id = excluded.household_id, member_id = excluded.member_id,
		   p256dh = excluded.p256dh, auth = excluded.auth, user_agent = excluded.user_agent`,
		sub.HouseholdID, sub.MemberID, sub.Endpoint, sub.P256dh, sub.Auth, nullString(sub.UserAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert push subscription: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pushCols+` FROM push_subscriptions WHERE endpoint = ? AND household_id = ?`,
		sub.Endpoint, sub.HouseholdID,
	)
	out, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return out, nil
}

// ListForMember returns the member's own subscriptions.
func (s *PushStore) ListForMember(ctx context.Context, householdID, memberID int64) ([]model.PushSubscription, error) {
	return s.query(ctx,
		`SELECT `+pushCols+` FROM push_subscriptions WHERE household_id = ? AND member_id = ? ORDER BY created_at ASC, id ASC`,
		householdID, memberID,
	)
}

// ListForHousehold returns every subscription in the household except those of excludeMember.
func (s *PushStore) ListForHousehold(ctx context.Context, householdID, excludeMember int64) ([]model.PushSubscription, error) {
	return s.query(ctx,
		`SELECT `+pushCols+` FROM push_subscriptions WHERE household_id = ? AND member_id != ? ORDER BY id ASC`,
		householdID, excludeMember,
	)
}

func (s *PushStore) query(ctx context.Context, query string, args ...any) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []model.PushSubscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// Delete removes a subscription owned by memberID and reports whether a row was removed.
func (s *PushStore) Delete(ctx context.Context, householdID, memberID, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE id = ? AND household_id = ? AND member_id = ?`,
		id, householdID, memberID,
	)
	if err != nil {
		return false, fmt.Errorf("delete push subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteByEndpoint drops a subscription the push service reported as gone.
func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}
