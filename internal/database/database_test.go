package database

import (
	"path/filepath"
	"testing"
)

func TestOpenRunsMigrations(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	tables := []string{
		"households", "members", "invitations", "calendar_events", "chores",
		"chore_assignments", "recipes", "meal_plans", "grocery_items", "messages",
		"budget_categories", "expenses", "allowances", "vault_items", "vault_documents",
		"pets", "pet_care_tasks", "pet_care_logs", "pet_health_records", "push_subscriptions",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenEnforcesForeignKeys(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`INSERT INTO members (household_id, external_id, email, name) VALUES (42, 'x', 'x@example.com', 'X')`)
	if err == nil {
		t.Fatal("expected foreign key violation for unknown household")
	}
}

func TestOpenFileIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hearth.db")
	for i := 0; i < 2; i++ {
		db, err := Open(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		db.Close()
	}
}
