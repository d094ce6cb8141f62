package model

import "time"

// Pet care task types.
const (
	CareFeeding    = "FEEDING"
	CareWalk       = "WALK"
	CareMedication = "MEDICATION"
	CareGrooming   = "GROOMING"
	CareVet        = "VET"
)

// Health record types.
const (
	HealthVaccine    = "VACCINE"
	HealthVetVisit   = "VET_VISIT"
	HealthMedication = "MEDICATION"
	HealthOther      = "OTHER"
)

type Pet struct {
	ID          int64      `json:"id"`
	HouseholdID int64      `json:"household_id"`
	Name        string     `json:"name"`
	Species     string     `json:"species"`
	Breed       string     `json:"breed"`
	BirthDate   *time.Time `json:"birth_date"`
	PhotoURL    string     `json:"photo_url"`
	Notes       string     `json:"notes"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PetCareTask is a recurring care duty. A nil IntervalHours means unscheduled.
type PetCareTask struct {
	ID            int64       `json:"id"`
	PetID         int64       `json:"pet_id"`
	Type          string      `json:"type"`
	Title         string      `json:"title"`
	IntervalHours *int        `json:"interval_hours"`
	PetName       string      `json:"pet_name"`
	LastLog       *PetCareLog `json:"last_log"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type PetCareLog struct {
	ID          int64     `json:"id"`
	TaskID      int64     `json:"task_id"`
	MemberID    *int64    `json:"member_id"`
	MemberName  string    `json:"member_name,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
	Notes       string    `json:"notes"`
	DurationMin *int      `json:"duration_min"`
}

type PetHealthRecord struct {
	ID        int64      `json:"id"`
	PetID     int64      `json:"pet_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Date      time.Time  `json:"date"`
	Notes     string     `json:"notes"`
	NextDue   *time.Time `json:"next_due"`
	CreatedAt time.Time  `json:"created_at"`
}

// Pending reports whether the task is due at now: never logged, or scheduled
// and its interval has elapsed since the last log.
func (t PetCareTask) Pending(now time.Time) bool {
	if t.LastLog == nil {
		return true
	}
	if t.IntervalHours == nil || *t.IntervalHours <= 0 {
		return false
	}
	next := t.LastLog.CompletedAt.Add(time.Duration(*t.IntervalHours) * time.Hour)
	return !now.Before(next)
}
