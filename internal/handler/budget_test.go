package handler

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
)

func newBudgetHandler(e *testEnv, now time.Time) *BudgetHandler {
	h := NewBudgetHandler(e.budget, e.members, e.households, e.hub, e.logger)
	h.now = func() time.Time { return now }
	return h
}

func TestBudgetCategoryDefaults(t *testing.T) {
	e := newTestEnv(t)
	admin := e.onboard(t, "Smiths")
	h := newBudgetHandler(e, time.Now())

	rec := serve(t, h.CreateCategory, "POST", "/api/budget/categories", map[string]any{"name": " Groceries "}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decodeBody[model.BudgetCategory](t, rec)
	assert.Equal(t, "Groceries", c.Name)
	assert.Equal(t, model.DefaultCategoryColor, c.Color)
	assert.Nil(t, c.MonthlyLimit)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"bad color", map[string]any{"name": "Fun", "color": "red"}},
		{"short color", map[string]any{"name": "Fun", "color": "#FFF"}},
		{"negative limit", map[string]any{"name": "Fun", "monthly_limit": -1}},
		{"blank name", map[string]any{"name": "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, h.CreateCategory, "POST", "/api/budget/categories", tt.body, admin)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, errorMessage(t, rec))
		})
	}
}

func TestExpenseSelfAttributionAndMonthFilter(t *testing.T) {
	e := newTestEnv(t)
	admin := e.onboard(t, "Smiths")
	member := e.join(t, admin, "sam", auth.RoleMember)
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	h := newBudgetHandler(e, now)

	rec := serve(t, h.CreateCategory, "POST", "/api/budget/categories", map[string]any{"name": "Food", "monthly_limit": 400}, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	cat := decodeBody[model.BudgetCategory](t, rec)

	body := map[string]any{
		"category_id": cat.ID,
		"amount":      42.5,
		"description": "Market",
		"member_id":   admin.MemberID,
	}
	rec = serve(t, h.CreateExpense, "POST", "/api/budget/expenses", body, member)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	exp := decodeBody[model.Expense](t, rec)
	require.NotNil(t, exp.MemberID)
	assert.Equal(t, member.MemberID, *exp.MemberID, "body-supplied member id is ignored")

	body["date"] = "2025-02-10"
	rec = serve(t, h.CreateExpense, "POST", "/api/budget/expenses", body, member)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(t, h.ListExpenses, "GET", "/api/budget/expenses?month=2025-03", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Expense](t, rec), 1)

	rec = serve(t, h.ListExpenses, "GET", "/api/budget/expenses?month=March", nil, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h.ListCategories, "GET", "/api/budget/categories", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decodeBody[[]model.BudgetCategory](t, rec)
	require.Len(t, cats, 1)
	assert.InDelta(t, 42.5, cats[0].SpentThisMonth, 0.001)
}

func TestExpenseForeignCategory(t *testing.T) {
	e := newTestEnv(t)
	smiths := e.onboard(t, "Smiths")
	joneses := e.onboard(t, "Joneses")
	h := newBudgetHandler(e, time.Now())

	rec := serve(t, h.CreateCategory, "POST", "/api/budget/categories", map[string]any{"name": "Food"}, smiths)
	require.Equal(t, http.StatusCreated, rec.Code)
	cat := decodeBody[model.BudgetCategory](t, rec)

	rec = serve(t, h.CreateExpense, "POST", "/api/budget/expenses", map[string]any{
		"category_id": cat.ID, "amount": 10, "description": "Sneaky",
	}, joneses)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Category not found", errorMessage(t, rec))

	id := strconv.FormatInt(cat.ID, 10)
	rec = serve(t, h.DeleteCategory, "DELETE", "/api/budget/categories/"+id, nil, joneses, "id", id)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAllowanceOnlyForChildren(t *testing.T) {
	e := newTestEnv(t)
	admin := e.onboard(t, "Smiths")
	member := e.join(t, admin, "sam", auth.RoleMember)
	child := e.join(t, admin, "kid", auth.RoleChild)
	other := e.onboard(t, "Joneses")
	h := newBudgetHandler(e, time.Now())

	rec := serve(t, h.UpsertAllowance, "POST", "/api/budget/allowances", map[string]any{
		"member_id": member.MemberID, "amount": 5, "frequency": "WEEKLY",
	}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h.UpsertAllowance, "POST", "/api/budget/allowances", map[string]any{
		"member_id": other.MemberID, "amount": 5, "frequency": "WEEKLY",
	}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, h.UpsertAllowance, "POST", "/api/budget/allowances", map[string]any{
		"member_id": child.MemberID, "amount": 5, "frequency": "DAILY",
	}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, amount := range []float64{5, 7.5} {
		rec = serve(t, h.UpsertAllowance, "POST", "/api/budget/allowances", map[string]any{
			"member_id": child.MemberID, "amount": amount, "frequency": "BIWEEKLY",
		}, admin)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = serve(t, h.ListAllowances, "GET", "/api/budget/allowances", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]model.Allowance](t, rec)
	require.Len(t, list, 1)
	assert.InDelta(t, 7.5, list[0].Amount, 0.001)
	assert.Equal(t, model.AllowanceBiweekly, list[0].Frequency)
}

func TestBudgetPartialUpdates(t *testing.T) {
	e := newTestEnv(t)
	admin := e.onboard(t, "Smiths")
	member := e.join(t, admin, "sam", auth.RoleMember)
	h := newBudgetHandler(e, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))

	rec := serve(t, h.CreateCategory, "POST", "/api/budget/categories", map[string]any{
		"name": "Food", "monthly_limit": 400, "color": "#10B981",
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decodeBody[model.BudgetCategory](t, rec)
	cid := strconv.FormatInt(c.ID, 10)

	rec = serve(t, h.UpdateCategory, "PUT", "/api/budget/categories/"+cid, map[string]any{"name": "Groceries"}, admin, "id", cid)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[model.BudgetCategory](t, rec)
	assert.Equal(t, "Groceries", got.Name)
	require.NotNil(t, got.MonthlyLimit)
	assert.Equal(t, 400.0, *got.MonthlyLimit)
	assert.Equal(t, "#10B981", got.Color)

	rec = serve(t, h.UpdateCategory, "PUT", "/api/budget/categories/"+cid, map[string]any{"monthly_limit": -5}, admin, "id", cid)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h.UpdateCategory, "PUT", "/api/budget/categories/"+cid, map[string]any{"monthly_limit": nil}, admin, "id", cid)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeBody[model.BudgetCategory](t, rec).MonthlyLimit)

	rec = serve(t, h.CreateExpense, "POST", "/api/budget/expenses", map[string]any{
		"category_id": c.ID, "amount": 20, "description": "Bread", "date": "2025-03-10",
	}, member)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ex := decodeBody[model.Expense](t, rec)
	eid := strconv.FormatInt(ex.ID, 10)

	rec = serve(t, h.UpdateExpense, "PUT", "/api/budget/expenses/"+eid, map[string]any{"amount": 25.5}, admin, "id", eid)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[model.Expense](t, rec)
	assert.Equal(t, 25.5, updated.Amount)
	assert.Equal(t, "Bread", updated.Description)
	assert.Equal(t, c.ID, updated.CategoryID)
	assert.True(t, ex.Date.Equal(updated.Date), "date unchanged")
	require.NotNil(t, updated.MemberID)
	assert.Equal(t, member.MemberID, *updated.MemberID)
}
