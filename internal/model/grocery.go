package model

import "time"

type GroceryItem struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	AddedByID   *int64    `json:"added_by_id"`
	Name        string    `json:"name"`
	Quantity    string    `json:"quantity"`
	Category    string    `json:"category"`
	Checked     bool      `json:"checked"`
	AddedByName string    `json:"added_by_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
