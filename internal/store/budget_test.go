package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
)

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(time.Date(2026, 2, 17, 15, 4, 5, 0, time.UTC))
	if !start.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", end)
	}
}

func TestCategorySpentThisMonth(t *testing.T) {
	db := setupTestDB(t)
	bs := NewBudgetStore(db)
	ctx := context.Background()
	h, admin := seedHousehold(t, db, "Smith")

	limit := 500.0
	c, err := bs.CreateCategory(ctx, &model.BudgetCategory{HouseholdID: h.ID, Name: "Groceries", MonthlyLimit: &limit, Color: model.DefaultCategoryColor})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	for _, e := range []model.Expense{
		{CategoryID: c.ID, MemberID: &admin.ID, Amount: 40, Description: "Market", Date: now.AddDate(0, 0, -3)},
		{CategoryID: c.ID, Amount: 60, Description: "Costco", Date: now.AddDate(0, 0, -1)},
		{CategoryID: c.ID, Amount: 99, Description: "Last month", Date: now.AddDate(0, -1, 0)},
	} {
		if _, err := bs.CreateExpense(ctx, h.ID, &e); err != nil {
			t.Fatalf("create expense: %v", err)
		}
	}

	got, err := bs.GetCategory(ctx, h.ID, c.ID, now)
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if got.SpentThisMonth != 100 {
		t.Errorf("spent = %v, want 100", got.SpentThisMonth)
	}

	start, end := MonthBounds(now)
	expenses, _ := bs.ListExpenses(ctx, h.ID, ExpenseFilter{From: start, To: end})
	if len(expenses) != 2 || expenses[0].Description != "Costco" {
		t.Errorf("expenses = %+v, want newest first", expenses)
	}
	if expenses[0].CategoryName != "Groceries" {
		t.Errorf("category name = %q", expenses[0].CategoryName)
	}
}

func TestExpenseTenantIsolation(t *testing.T) {
	db := setupTestDB(t)
	bs := NewBudgetStore(db)
	ctx := context.Background()
	h1, _ := seedHousehold(t, db, "One")
	h2, _ := seedHousehold(t, db, "Two")

	c, _ := bs.CreateCategory(ctx, &model.BudgetCategory{HouseholdID: h1.ID, Name: "Fun", Color: model.DefaultCategoryColor})
	e, _ := bs.CreateExpense(ctx, h1.ID, &model.Expense{CategoryID: c.ID, Amount: 20, Description: "Movies", Date: time.Now()})

	if got, _ := bs.GetExpense(ctx, h2.ID, e.ID); got != nil {
		t.Error("expense visible from another household")
	}
	bs.DeleteExpense(ctx, h2.ID, e.ID)
	if got, _ := bs.GetExpense(ctx, h1.ID, e.ID); got == nil {
		t.Error("expense deleted through another household")
	}
	if got, _ := bs.ListCategories(ctx, h2.ID, time.Now()); len(got) != 0 {
		t.Errorf("household two lists %d categories, want 0", len(got))
	}
}

func TestAllowanceUpsert(t *testing.T) {
	db := setupTestDB(t)
	bs := NewBudgetStore(db)
	ctx := context.Background()
	h, _ := seedHousehold(t, db, "Smith")
	kid := addMember(t, db, h, "kid", auth.RoleChild)

	if _, err := bs.UpsertAllowance(ctx, h.ID, kid.ID, 5, model.AllowanceWeekly); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	a, err := bs.UpsertAllowance(ctx, h.ID, kid.ID, 10, model.AllowanceMonthly)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if a.Amount != 10 || a.Frequency != model.AllowanceMonthly {
		t.Errorf("allowance = %+v", a)
	}
	list, _ := bs.ListAllowances(ctx, h.ID)
	if len(list) != 1 {
		t.Errorf("allowances = %d, want 1", len(list))
	}
}
