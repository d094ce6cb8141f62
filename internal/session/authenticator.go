package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
)

// MemberStore is the member lookup the authenticator needs.
type MemberStore interface {
	GetByExternalID(ctx context.Context, externalID string) (*model.Member, error)
	AcceptInvitation(ctx context.Context, p auth.Principal, now time.Time) (*model.Member, error)
}

// Authenticator resolves session credentials to identities. The member row is
// read on every request so role changes and removals apply immediately.
type Authenticator struct {
	secret  []byte
	members MemberStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewAuthenticator(secret string, members MemberStore, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		secret:  []byte(secret),
		members: members,
		logger:  logger.With("component", "session"),
		now:     time.Now,
	}
}

// Authenticate verifies credential and attaches the caller's membership. A
// valid credential without a member yields an identity with HouseholdID 0.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (auth.Identity, error) {
	p, err := ParseCredential(a.secret, credential, a.now())
	if err != nil {
		return auth.Identity{}, err
	}
	m, err := a.members.GetByExternalID(ctx, p.ExternalID)
	if err != nil {
		return auth.Identity{}, err
	}
	return IdentityFor(p, m), nil
}

// SignIn binds a freshly authenticated principal to a household: an existing
// member is returned as is, otherwise a pending invitation for the principal's
// email is accepted.
func (a *Authenticator) SignIn(ctx context.Context, p auth.Principal) (auth.Identity, error) {
	m, err := a.members.GetByExternalID(ctx, p.ExternalID)
	if err != nil {
		return auth.Identity{}, err
	}
	if m == nil {
		m, err = a.members.AcceptInvitation(ctx, p, a.now())
		if err != nil {
			return auth.Identity{}, err
		}
		if m != nil {
			a.logger.Info("invitation accepted", "household_id", m.HouseholdID, "member_id", m.ID, "role", m.Role)
		}
	}
	return IdentityFor(p, m), nil
}

// IdentityFor combines a principal with its member row, which may be nil.
func IdentityFor(p auth.Principal, m *model.Member) auth.Identity {
	id := auth.Identity{Principal: p, DisplayName: p.Name}
	if m == nil {
		return id
	}
	id.MemberID = m.ID
	id.HouseholdID = m.HouseholdID
	id.Role = m.Role
	id.DisplayName = m.Name
	id.Color = m.Color
	return id
}
