package model

import "time"

// Vault categories.
var VaultCategories = []string{"INSURANCE", "MEDICAL", "FINANCIAL", "LEGAL", "IDENTIFICATION", "EMERGENCY", "OTHER"}

type VaultItem struct {
	ID          int64           `json:"id"`
	HouseholdID int64           `json:"household_id"`
	CreatedByID *int64          `json:"created_by_id"`
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Content     string          `json:"content"`
	Restricted  bool            `json:"restricted"`
	Documents   []VaultDocument `json:"documents"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type VaultDocument struct {
	ID          int64     `json:"id"`
	VaultItemID int64     `json:"vault_item_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StorageKey  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
