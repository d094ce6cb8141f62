package model

import "time"

// CalendarEvent is a one-off event or, with a RecurrenceRule, the first
// instance of a series. Expanded occurrences carry SeriesStart.
type CalendarEvent struct {
	ID             int64      `json:"id"`
	HouseholdID    int64      `json:"household_id"`
	MemberID       *int64     `json:"member_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	AllDay         bool       `json:"all_day"`
	Location       string     `json:"location"`
	Color          string     `json:"color"`
	RecurrenceRule string     `json:"recurrence_rule,omitempty"`
	Repeats        string     `json:"repeats,omitempty"`
	SeriesStart    *time.Time `json:"series_start,omitempty"`
	MemberName     string     `json:"member_name,omitempty"`
	MemberColor    string     `json:"member_color,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
