package model

import (
	"time"

	"github.com/dukerupert/hearth/internal/auth"
)

type Household struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Timezone  string    `json:"timezone"`
	KioskSet  bool      `json:"kiosk_enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member is a person belonging to exactly one household.
type Member struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	ExternalID  string    `json:"-"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	AvatarURL   string    `json:"avatar_url"`
	Color       string    `json:"color"`
	Role        auth.Role `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HouseholdWithMembers is the household payload returned to members.
type HouseholdWithMembers struct {
	Household
	Members []Member `json:"members"`
}

// Invitation status values.
const (
	InvitationPending  = "PENDING"
	InvitationAccepted = "ACCEPTED"
	InvitationExpired  = "EXPIRED"
)

// InvitationTTL is how long an invitation stays acceptable.
const InvitationTTL = 7 * 24 * time.Hour

type Invitation struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	Email       string    `json:"email"`
	Role        auth.Role `json:"role"`
	Status      string    `json:"status"`
	InvitedByID *int64    `json:"invited_by_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Acceptable reports whether the invitation may still be accepted at now.
func (i Invitation) Acceptable(now time.Time) bool {
	return i.Status == InvitationPending && now.Before(i.ExpiresAt)
}
