package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/validate"
	"github.com/dukerupert/hearth/internal/websocket"
)

// BudgetHandler serves categories, expenses and allowances. Its routes are
// gated on the budget capability.
type BudgetHandler struct {
	budget     *store.BudgetStore
	members    *store.MemberStore
	households *store.HouseholdStore
	hub        *websocket.Hub
	logger     *slog.Logger
	now        func() time.Time
}

func NewBudgetHandler(bs *store.BudgetStore, ms *store.MemberStore, hs *store.HouseholdStore, hub *websocket.Hub, logger *slog.Logger) *BudgetHandler {
	return &BudgetHandler{
		budget:     bs,
		members:    ms,
		households: hs,
		hub:        hub,
		logger:     logger.With("component", "budget"),
		now:        time.Now,
	}
}

func (h *BudgetHandler) localNow(ctx context.Context, householdID int64) time.Time {
	return localNow(ctx, h.households, householdID, h.now())
}

// --- Categories ---

type categoryRequest struct {
	Name         string   `json:"name" validate:"notblank,max=100"`
	MonthlyLimit *float64 `json:"monthly_limit" validate:"omitnil,gte=0"`
	Color        string   `json:"color" validate:"omitempty,hexcolor6"`
}

// categoryUpdateRequest changes only the fields present. monthly_limit: null
// removes the limit.
type categoryUpdateRequest struct {
	Name         *string                    `json:"name" validate:"omitnil,notblank,max=100"`
	MonthlyLimit validate.Nullable[float64] `json:"monthly_limit"`
	Color        *string                    `json:"color" validate:"omitnil,hexcolor6"`
}

func (h *BudgetHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	categories, err := h.budget.ListCategories(r.Context(), id.HouseholdID, h.localNow(r.Context(), id.HouseholdID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *BudgetHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req categoryRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Color == "" {
		req.Color = model.DefaultCategoryColor
	}

	c, err := h.budget.CreateCategory(r.Context(), &model.BudgetCategory{
		HouseholdID:  id.HouseholdID,
		Name:         strings.TrimSpace(req.Name),
		MonthlyLimit: req.MonthlyLimit,
		Color:        req.Color,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("budget_category", "created", c.ID, nil))
	writeJSON(w, http.StatusCreated, c)
}

func (h *BudgetHandler) getCategory(ctx context.Context, householdID, categoryID int64) (*model.BudgetCategory, error) {
	c, err := h.budget.GetCategory(ctx, householdID, categoryID, h.localNow(ctx, householdID))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, notFound("Category")
	}
	return c, nil
}

func (h *BudgetHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	categoryID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	existing, err := h.getCategory(r.Context(), id.HouseholdID, categoryID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req categoryUpdateRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if v := req.MonthlyLimit.Value; v != nil {
		if err := validate.Var("monthly_limit", *v, "gte=0"); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	if req.Name != nil {
		existing.Name = strings.TrimSpace(*req.Name)
	}
	if req.MonthlyLimit.Set {
		existing.MonthlyLimit = req.MonthlyLimit.Value
	}
	if req.Color != nil {
		existing.Color = *req.Color
	}
	c, err := h.budget.UpdateCategory(r.Context(), existing)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("budget_category", "updated", c.ID, nil))
	writeJSON(w, http.StatusOK, c)
}

// DeleteCategory removes the category and, by cascade, its expenses.
func (h *BudgetHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	categoryID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if _, err := h.getCategory(r.Context(), id.HouseholdID, categoryID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.budget.DeleteCategory(r.Context(), id.HouseholdID, categoryID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("budget_category", "deleted", categoryID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// --- Expenses ---

type expenseRequest struct {
	CategoryID  int64   `json:"category_id" validate:"required,gt=0"`
	Amount      float64 `json:"amount" validate:"gt=0,lte=1000000"`
	Description string  `json:"description" validate:"notblank,max=200"`
	Date        string  `json:"date"`
	ReceiptURL  string  `json:"receipt_url" validate:"omitempty,http_url,max=500"`
}

type expenseUpdateRequest struct {
	CategoryID  *int64   `json:"category_id" validate:"omitnil,gt=0"`
	Amount      *float64 `json:"amount" validate:"omitnil,gt=0,lte=1000000"`
	Description *string  `json:"description" validate:"omitnil,notblank,max=200"`
	Date        *string  `json:"date"`
	ReceiptURL  *string  `json:"receipt_url" validate:"omitnil,max=500"`
}

// ListExpenses supports month=YYYY-MM (household time) and category_id.
func (h *BudgetHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	q := r.URL.Query()
	var f store.ExpenseFilter

	if v := q.Get("month"); v != "" {
		loc := h.localNow(r.Context(), id.HouseholdID).Location()
		month, err := time.ParseInLocation("2006-01", v, loc)
		if err != nil {
			writeError(w, h.logger, validate.Errorf("month must be in YYYY-MM format"))
			return
		}
		f.From, f.To = store.MonthBounds(month)
	}
	if v := q.Get("category_id"); v != "" {
		categoryID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, h.logger, validate.Errorf("category_id must be a number"))
			return
		}
		f.CategoryID = categoryID
	}

	expenses, err := h.budget.ListExpenses(r.Context(), id.HouseholdID, f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

// toExpense checks the category belongs to the household and parses the date,
// defaulting to now.
func (h *BudgetHandler) toExpense(ctx context.Context, householdID int64, req expenseRequest) (*model.Expense, error) {
	if _, err := h.getCategory(ctx, householdID, req.CategoryID); err != nil {
		return nil, err
	}
	now := h.localNow(ctx, householdID)
	date := now
	if req.Date != "" {
		var err error
		if date, err = parseTime("date", req.Date, now.Location()); err != nil {
			return nil, err
		}
	}
	return &model.Expense{
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		Date:        date,
		ReceiptURL:  req.ReceiptURL,
	}, nil
}

// CreateExpense stamps the session member as the spender.
func (h *BudgetHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req expenseRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	e, err := h.toExpense(r.Context(), id.HouseholdID, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	e.MemberID = &id.MemberID

	created, err := h.budget.CreateExpense(r.Context(), id.HouseholdID, e)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("expense", "created", created.ID, nil))
	writeJSON(w, http.StatusCreated, created)
}

func (h *BudgetHandler) getExpense(r *http.Request) (*model.Expense, error) {
	expenseID, err := parseIDParam(r)
	if err != nil {
		return nil, err
	}
	e, err := h.budget.GetExpense(r.Context(), identity(r).HouseholdID, expenseID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, notFound("Expense")
	}
	return e, nil
}

func (h *BudgetHandler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.getExpense(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var upd expenseUpdateRequest
	if err := validate.Decode(r, &upd); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req := expenseRequest{
		CategoryID:  existing.CategoryID,
		Amount:      existing.Amount,
		Description: existing.Description,
		Date:        existing.Date.Format(time.RFC3339),
		ReceiptURL:  existing.ReceiptURL,
	}
	if upd.CategoryID != nil {
		req.CategoryID = *upd.CategoryID
	}
	if upd.Amount != nil {
		req.Amount = *upd.Amount
	}
	if upd.Description != nil {
		req.Description = *upd.Description
	}
	if upd.Date != nil && *upd.Date != "" {
		req.Date = *upd.Date
	}
	if upd.ReceiptURL != nil {
		if err := validate.Var("receipt_url", *upd.ReceiptURL, "omitempty,http_url"); err != nil {
			writeError(w, h.logger, err)
			return
		}
		req.ReceiptURL = *upd.ReceiptURL
	}
	e, err := h.toExpense(r.Context(), id.HouseholdID, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	e.ID = existing.ID
	e.MemberID = existing.MemberID

	updated, err := h.budget.UpdateExpense(r.Context(), id.HouseholdID, e)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("expense", "updated", updated.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *BudgetHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.getExpense(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.budget.DeleteExpense(r.Context(), id.HouseholdID, existing.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("expense", "deleted", existing.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// --- Allowances ---

type allowanceRequest struct {
	MemberID  int64   `json:"member_id" validate:"required,gt=0"`
	Amount    float64 `json:"amount" validate:"gte=0,lte=10000"`
	Frequency string  `json:"frequency" validate:"required,oneof=WEEKLY BIWEEKLY MONTHLY"`
}

func (h *BudgetHandler) ListAllowances(w http.ResponseWriter, r *http.Request) {
	allowances, err := h.budget.ListAllowances(r.Context(), identity(r).HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, allowances)
}

// UpsertAllowance sets a CHILD member's allowance.
func (h *BudgetHandler) UpsertAllowance(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req allowanceRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	m, err := h.members.Get(r.Context(), id.HouseholdID, req.MemberID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if m == nil {
		writeError(w, h.logger, notFound("Member"))
		return
	}
	if m.Role != auth.RoleChild {
		writeError(w, h.logger, validate.Errorf("Allowances can only be set for child members"))
		return
	}

	a, err := h.budget.UpsertAllowance(r.Context(), id.HouseholdID, m.ID, req.Amount, req.Frequency)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("allowance", "updated", a.ID, nil))
	writeJSON(w, http.StatusOK, a)
}
