package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedHousehold onboards a household with an ADMIN bound to "<name>-admin".
func seedHousehold(t *testing.T, db *sql.DB, name string) (*model.Household, *model.Member) {
	t.Helper()
	h, m, err := NewHouseholdStore(db).Onboard(context.Background(), auth.Principal{
		ExternalID: name + "-admin",
		Email:      name + "-admin@example.com",
		Name:       name + " Admin",
	}, name, "Denver, CO", "")
	if err != nil {
		t.Fatalf("onboard %s: %v", name, err)
	}
	return h, m
}

// addMember inserts a member with role directly into household h.
func addMember(t *testing.T, db *sql.DB, h *model.Household, name string, role auth.Role) *model.Member {
	t.Helper()
	ctx := context.Background()
	id, err := insertMember(ctx, db, h.ID, auth.Principal{
		ExternalID: fmt.Sprintf("%d-%s", h.ID, name),
		Email:      name + "@example.com",
		Name:       name,
	}, role)
	if err != nil {
		t.Fatalf("insert member %s: %v", name, err)
	}
	m, err := NewMemberStore(db).Get(ctx, h.ID, id)
	if err != nil || m == nil {
		t.Fatalf("get member %s: %v", name, err)
	}
	return m
}
