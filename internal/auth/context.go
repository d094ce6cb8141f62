package auth

import "context"

type identityKey struct{}
type kioskKey struct{}

// Principal is the externally authenticated person behind a session.
type Principal struct {
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Picture    string `json:"picture,omitempty"`
}

// Identity is the resolved session caller. HouseholdID is zero until the
// principal has a member row.
type Identity struct {
	Principal
	MemberID    int64  `json:"member_id"`
	HouseholdID int64  `json:"household_id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
}

// HasHousehold reports whether the identity resolved to a member.
func (i Identity) HasHousehold() bool {
	return i.MemberID != 0 && i.HouseholdID != 0
}

// Can reports whether the identity may exercise c.
func (i Identity) Can(c Capability) bool {
	return i.HasHousehold() && i.Role.Can(c)
}

// Require returns ErrNoHousehold or ErrForbidden when the identity may not exercise c.
func (i Identity) Require(c Capability) error {
	if !i.HasHousehold() {
		return ErrNoHousehold
	}
	if !i.Role.Can(c) {
		return ErrForbidden
	}
	return nil
}

// KioskScope is the household bound to a kiosk bearer token. It carries no member.
type KioskScope struct {
	HouseholdID int64
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func WithKiosk(ctx context.Context, scope KioskScope) context.Context {
	return context.WithValue(ctx, kioskKey{}, scope)
}

func KioskFromContext(ctx context.Context) (KioskScope, bool) {
	scope, ok := ctx.Value(kioskKey{}).(KioskScope)
	return scope, ok
}

// HouseholdID returns the household of whichever caller is in ctx, or 0.
func HouseholdID(ctx context.Context) int64 {
	if id, ok := FromContext(ctx); ok {
		return id.HouseholdID
	}
	if scope, ok := KioskFromContext(ctx); ok {
		return scope.HouseholdID
	}
	return 0
}

// MemberID returns the session member in ctx, or 0 for kiosk and anonymous callers.
func MemberID(ctx context.Context) int64 {
	id, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return id.MemberID
}
