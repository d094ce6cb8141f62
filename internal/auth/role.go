package auth

import "fmt"

// Role is a member's capability tier within a household.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleChild  Role = "CHILD"
)

// Capability names an action class gated by role.
type Capability string

const (
	CapBudget          Capability = "budget"
	CapSettings        Capability = "household:settings"
	CapInvite          Capability = "household:invite"
	CapManageMembers   Capability = "household:members"
	CapKioskAdmin      Capability = "kiosk:admin"
	CapVaultWrite      Capability = "vault:write"
	CapVaultRestricted Capability = "vault:restricted"
	CapModerate        Capability = "messages:moderate"
)

// roleCapabilities is the single source of truth for what each role may do
// beyond the household-wide resources every member can use.
var roleCapabilities = map[Role][]Capability{
	RoleAdmin: {
		CapBudget,
		CapSettings,
		CapInvite,
		CapManageMembers,
		CapKioskAdmin,
		CapVaultWrite,
		CapVaultRestricted,
		CapModerate,
	},
	RoleMember: {
		CapBudget,
		CapVaultWrite,
		CapVaultRestricted,
	},
	RoleChild: {},
}

// ParseRole converts s to a Role, rejecting anything outside the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleCapabilities[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Can reports whether r grants c. Unknown roles grant nothing.
func (r Role) Can(c Capability) bool {
	for _, granted := range roleCapabilities[r] {
		if granted == c {
			return true
		}
	}
	return false
}

// Capabilities returns a copy of the capabilities granted to r.
func (r Role) Capabilities() []Capability {
	caps := roleCapabilities[r]
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}
