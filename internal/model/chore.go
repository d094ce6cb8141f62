package model

import "time"

// Chore frequencies.
const (
	FrequencyDaily   = "DAILY"
	FrequencyWeekly  = "WEEKLY"
	FrequencyMonthly = "MONTHLY"
	FrequencyOneTime = "ONE_TIME"
)

type Chore struct {
	ID            int64     `json:"id"`
	HouseholdID   int64     `json:"household_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Frequency     string    `json:"frequency"`
	Points        int       `json:"points"`
	RotationOrder []int64   `json:"rotation_order"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ChoreAssignment struct {
	ID            int64      `json:"id"`
	ChoreID       int64      `json:"chore_id"`
	MemberID      int64      `json:"member_id"`
	DueDate       time.Time  `json:"due_date"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at"`
	CompletedByID *int64     `json:"completed_by_id"`
	ChoreTitle    string     `json:"chore_title"`
	ChorePoints   int        `json:"chore_points"`
	MemberName    string     `json:"member_name"`
	MemberColor   string     `json:"member_color"`
	Status        string     `json:"status,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
