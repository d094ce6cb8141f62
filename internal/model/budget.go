package model

import "time"

// Allowance frequencies.
const (
	AllowanceWeekly   = "WEEKLY"
	AllowanceBiweekly = "BIWEEKLY"
	AllowanceMonthly  = "MONTHLY"
)

// DefaultCategoryColor is applied when a budget category is created without a color.
const DefaultCategoryColor = "#6B7280"

type BudgetCategory struct {
	ID             int64     `json:"id"`
	HouseholdID    int64     `json:"household_id"`
	Name           string    `json:"name"`
	MonthlyLimit   *float64  `json:"monthly_limit"`
	Color          string    `json:"color"`
	SpentThisMonth float64   `json:"spent_this_month"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Expense struct {
	ID           int64     `json:"id"`
	CategoryID   int64     `json:"category_id"`
	MemberID     *int64    `json:"member_id"`
	Amount       float64   `json:"amount"`
	Description  string    `json:"description"`
	Date         time.Time `json:"date"`
	ReceiptURL   string    `json:"receipt_url"`
	CategoryName string    `json:"category_name"`
	MemberName   string    `json:"member_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Allowance struct {
	ID         int64     `json:"id"`
	MemberID   int64     `json:"member_id"`
	Amount     float64   `json:"amount"`
	Frequency  string    `json:"frequency"`
	Balance    float64   `json:"balance"`
	MemberName string    `json:"member_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
