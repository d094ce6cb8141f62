package model

import "time"

// Backup records an encrypted database snapshot held in document storage.
type Backup struct {
	ID         int64     `json:"id"`
	StorageKey string    `json:"storage_key"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}
