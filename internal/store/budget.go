package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

type BudgetStore struct {
	db *sql.DB
}

func NewBudgetStore(db *sql.DB) *BudgetStore {
	return &BudgetStore{db: db}
}

// --- Category methods ---

func scanCategory(s scanner) (*model.BudgetCategory, error) {
	var c model.BudgetCategory
	var limit sql.NullFloat64
	err := s.Scan(&c.ID, &c.HouseholdID, &c.Name, &limit, &c.Color, &c.SpentThisMonth, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if limit.Valid {
		c.MonthlyLimit = &limit.Float64
	}
	return &c, nil
}

const categorySelect = `SELECT c.id, c.household_id, c.name, c.monthly_limit, c.color,
	COALESCE((SELECT SUM(e.amount) FROM expenses e WHERE e.category_id = c.id AND e.date >= ? AND e.date < ?), 0),
	c.created_at, c.updated_at
	FROM budget_categories c`

// MonthBounds returns [start of month, start of next month) for t in its location.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

func (s *BudgetStore) CreateCategory(ctx context.Context, c *model.BudgetCategory) (*model.BudgetCategory, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO budget_categories (household_id, name, monthly_limit, color) VALUES (?, ?, ?, ?)`,
		c.HouseholdID, c.Name, nullFloat(c.MonthlyLimit), c.Color,
	)
	if err != nil {
		return nil, fmt.Errorf("insert budget category: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetCategory(ctx, c.HouseholdID, id, time.Now())
}

// GetCategory returns the category with its spending for the month containing now.
func (s *BudgetStore) GetCategory(ctx context.Context, householdID, id int64, now time.Time) (*model.BudgetCategory, error) {
	start, end := MonthBounds(now)
	row := s.db.QueryRowContext(ctx, categorySelect+` WHERE c.id = ? AND c.household_id = ?`,
		start.UTC(), end.UTC(), id, householdID)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget category: %w", err)
	}
	return c, nil
}

func (s *BudgetStore) ListCategories(ctx context.Context, householdID int64, now time.Time) ([]model.BudgetCategory, error) {
	start, end := MonthBounds(now)
	rows, err := s.db.QueryContext(ctx, categorySelect+` WHERE c.household_id = ? ORDER BY c.name ASC, c.id ASC`,
		start.UTC(), end.UTC(), householdID)
	if err != nil {
		return nil, fmt.Errorf("list budget categories: %w", err)
	}
	defer rows.Close()

	categories := []model.BudgetCategory{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (s *BudgetStore) UpdateCategory(ctx context.Context, c *model.BudgetCategory) (*model.BudgetCategory, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE budget_categories SET name = ?, monthly_limit = ?, color = ?, updated_at = ? WHERE id = ? AND household_id = ?`,
		c.Name, nullFloat(c.MonthlyLimit), c.Color, time.Now().UTC(), c.ID, c.HouseholdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update budget category: %w", err)
	}
	return s.GetCategory(ctx, c.HouseholdID, c.ID, time.Now())
}

func (s *BudgetStore) DeleteCategory(ctx context.Context, householdID, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM budget_categories WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete budget category: %w", err)
	}
	return nil
}

// --- Expense methods ---

const expenseSelect = `SELECT e.id, e.category_id, e.member_id, e.amount, e.description, e.date, e.receipt_url,
	c.name, COALESCE(m.name, ''), e.created_at, e.updated_at
	FROM expenses e
	JOIN budget_categories c ON c.id = e.category_id
	LEFT JOIN members m ON m.id = e.member_id`

func scanExpense(s scanner) (*model.Expense, error) {
	var e model.Expense
	var memberID sql.NullInt64
	var receipt sql.NullString
	err := s.Scan(&e.ID, &e.CategoryID, &memberID, &e.Amount, &e.Description, &e.Date, &receipt,
		&e.CategoryName, &e.MemberName, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.MemberID = int64Ptr(memberID)
	e.ReceiptURL = receipt.String
	return &e, nil
}

// CreateExpense records an expense. Callers verify the category belongs to householdID.
func (s *BudgetStore) CreateExpense(ctx context.Context, householdID int64, e *model.Expense) (*model.Expense, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (category_id, member_id, amount, description, date, receipt_url) VALUES (?, ?, ?, ?, ?, ?)`,
		e.CategoryID, nullInt64(e.MemberID), e.Amount, e.Description, e.Date.UTC(), nullString(e.ReceiptURL),
	)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetExpense(ctx, householdID, id)
}

func (s *BudgetStore) GetExpense(ctx context.Context, householdID, id int64) (*model.Expense, error) {
	row := s.db.QueryRowContext(ctx, expenseSelect+` WHERE e.id = ? AND c.household_id = ?`, id, householdID)
	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// ExpenseFilter narrows ListExpenses. Zero values mean no constraint.
type ExpenseFilter struct {
	CategoryID int64
	From       time.Time
	To         time.Time
}

func (s *BudgetStore) ListExpenses(ctx context.Context, householdID int64, f ExpenseFilter) ([]model.Expense, error) {
	query := expenseSelect + ` WHERE c.household_id = ?`
	args := []any{householdID}
	if f.CategoryID != 0 {
		query += ` AND e.category_id = ?`
		args = append(args, f.CategoryID)
	}
	if !f.From.IsZero() {
		query += ` AND e.date >= ?`
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		query += ` AND e.date < ?`
		args = append(args, f.To.UTC())
	}
	query += ` ORDER BY e.date DESC, e.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []model.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

func (s *BudgetStore) UpdateExpense(ctx context.Context, householdID int64, e *model.Expense) (*model.Expense, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE expenses SET category_id = ?, amount = ?, description = ?, date = ?, receipt_url = ?, updated_at = ?
		 WHERE id = ? AND category_id IN (SELECT id FROM budget_categories WHERE household_id = ?)`,
		e.CategoryID, e.Amount, e.Description, e.Date.UTC(), nullString(e.ReceiptURL), time.Now().UTC(),
		e.ID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	return s.GetExpense(ctx, householdID, e.ID)
}

func (s *BudgetStore) DeleteExpense(ctx context.Context, householdID, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND category_id IN (SELECT id FROM budget_categories WHERE household_id = ?)`,
		id, householdID,
	)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

// --- Allowance methods ---

const allowanceSelect = `SELECT a.id, a.member_id, a.amount, a.frequency, a.balance, m.name, a.created_at, a.updated_at
	FROM allowances a JOIN members m ON m.id = a.member_id`

func scanAllowance(s scanner) (*model.Allowance, error) {
	var a model.Allowance
	err := s.Scan(&a.ID, &a.MemberID, &a.Amount, &a.Frequency, &a.Balance, &a.MemberName, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAllowance sets the allowance for a member. Callers verify the member belongs to householdID.
func (s *BudgetStore) UpsertAllowance(ctx context.Context, householdID, memberID int64, amount float64, frequency string) (*model.Allowance, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO allowances (member_id, amount, frequency) VALUES (?, ?, ?)
		 ON CONFLICT (member_id) DO UPDATE SET amount = excluded.amount, frequency = excluded.frequency,
		   updated_at = CURRENT_TIMESTAMP`,
		memberID, amount, frequency,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert allowance: %w", err)
	}
	row := s.db.QueryRowContext(ctx, allowanceSelect+` WHERE a.member_id = ? AND m.household_id = ?`, memberID, householdID)
	a, err := scanAllowance(row)
	if err != nil {
		return nil, fmt.Errorf("get allowance: %w", err)
	}
	return a, nil
}

func (s *BudgetStore) ListAllowances(ctx context.Context, householdID int64) ([]model.Allowance, error) {
	rows, err := s.db.QueryContext(ctx, allowanceSelect+` WHERE m.household_id = ? ORDER BY m.name ASC`, householdID)
	if err != nil {
		return nil, fmt.Errorf("list allowances: %w", err)
	}
	defer rows.Close()

	allowances := []model.Allowance{}
	for rows.Next() {
		a, err := scanAllowance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan allowance: %w", err)
		}
		allowances = append(allowances, *a)
	}
	return allowances, rows.Err()
}
