package model

import "time"

// Message types.
const (
	MessageAnnouncement = "ANNOUNCEMENT"
	MessageNote         = "NOTE"
	MessageDiscussion   = "DISCUSSION_TOPIC"
)

type Message struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	AuthorID    int64     `json:"author_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Pinned      bool      `json:"pinned"`
	AuthorName  string    `json:"author_name"`
	AuthorColor string    `json:"author_color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
