package store

import (
	"context"
	"testing"

	"github.com/dukerupert/hearth/internal/model"
)

func TestGroceryListOrdering(t *testing.T) {
	db := setupTestDB(t)
	gs := NewGroceryStore(db)
	ctx := context.Background()
	h, admin := seedHousehold(t, db, "Smith")

	milk, _ := gs.Create(ctx, &model.GroceryItem{HouseholdID: h.ID, AddedByID: &admin.ID, Name: "Milk", Category: "Dairy"})
	gs.Create(ctx, &model.GroceryItem{HouseholdID: h.ID, Name: "Apples", Category: "Produce"})

	milk.Checked = true
	if _, err := gs.Update(ctx, milk); err != nil {
		t.Fatalf("update: %v", err)
	}

	items, err := gs.List(ctx, h.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Name != "Apples" || items[1].Name != "Milk" {
		t.Errorf("order = [%s %s], want unchecked first", items[0].Name, items[1].Name)
	}
	if items[1].AddedByName != admin.Name {
		t.Errorf("added by = %q, want %q", items[1].AddedByName, admin.Name)
	}
}

func TestGroceryClearCheckedScoped(t *testing.T) {
	db := setupTestDB(t)
	gs := NewGroceryStore(db)
	ctx := context.Background()
	h1, _ := seedHousehold(t, db, "One")
	h2, _ := seedHousehold(t, db, "Two")

	for _, h := range []int64{h1.ID, h2.ID} {
		item, _ := gs.Create(ctx, &model.GroceryItem{HouseholdID: h, Name: "Bread"})
		item.Checked = true
		gs.Update(ctx, item)
		gs.Create(ctx, &model.GroceryItem{HouseholdID: h, Name: "Eggs"})
	}

	n, err := gs.ClearChecked(ctx, h1.ID)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared = %d, want 1", n)
	}
	if items, _ := gs.List(ctx, h1.ID); len(items) != 1 {
		t.Errorf("household one items = %d, want 1", len(items))
	}
	if items, _ := gs.List(ctx, h2.ID); len(items) != 2 {
		t.Errorf("household two items = %d, want 2 (untouched)", len(items))
	}
}
