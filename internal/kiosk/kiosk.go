// Package kiosk implements the session-less bearer token that lets a wall
// display read and act on one household's data.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
)

type tokenError struct{ msg string }

func (e *tokenError) Error() string { return e.msg }
func (e *tokenError) Unwrap() error { return auth.ErrUnauthenticated }

var (
	ErrTokenRequired error = &tokenError{"Token is required"}
	ErrInvalidToken  error = &tokenError{"Invalid kiosk token"}

	// ErrNoMembers is returned when a kiosk write needs an attributable member
	// and the household has none.
	ErrNoMembers = errors.New("No members found in household")
)

// TokenStore persists kiosk digests on households.
type TokenStore interface {
	SetKioskToken(ctx context.Context, householdID int64, digest string) error
	GetByKioskToken(ctx context.Context, digest string) (*model.Household, error)
}

// MemberLookup finds the member kiosk actions are attributed to.
type MemberLookup interface {
	First(ctx context.Context, householdID int64) (*model.Member, error)
}

type Service struct {
	tokens   TokenStore
	members  MemberLookup
	logger   *slog.Logger
	generate func() (string, error)
}

func NewService(tokens TokenStore, members MemberLookup, logger *slog.Logger) *Service {
	return &Service{
		tokens:   tokens,
		members:  members,
		logger:   logger.With("component", "kiosk"),
		generate: generateToken,
	}
}

// Issue mints a new kiosk secret for the caller's household, replacing any
// previous one. The plaintext is returned once and never stored.
func (s *Service) Issue(ctx context.Context, id auth.Identity) (string, error) {
	if err := id.Require(auth.CapKioskAdmin); err != nil {
		return "", err
	}
	token, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("generate kiosk token: %w", err)
	}
	if err := s.tokens.SetKioskToken(ctx, id.HouseholdID, HashToken(token)); err != nil {
		return "", err
	}
	s.logger.Info("kiosk token issued", "household_id", id.HouseholdID, "member_id", id.MemberID)
	return token, nil
}

// Revoke clears the household's kiosk secret. Revoking twice is not an error.
func (s *Service) Revoke(ctx context.Context, id auth.Identity) error {
	if err := id.Require(auth.CapKioskAdmin); err != nil {
		return err
	}
	if err := s.tokens.SetKioskToken(ctx, id.HouseholdID, ""); err != nil {
		return err
	}
	s.logger.Info("kiosk token revoked", "household_id", id.HouseholdID, "member_id", id.MemberID)
	return nil
}

// Authenticate resolves a presented secret to the household it was issued for.
func (s *Service) Authenticate(ctx context.Context, presented string) (auth.KioskScope, error) {
	if presented == "" {
		return auth.KioskScope{}, ErrTokenRequired
	}
	h, err := s.tokens.GetByKioskToken(ctx, HashToken(presented))
	if err != nil {
		return auth.KioskScope{}, err
	}
	if h == nil {
		return auth.KioskScope{}, ErrInvalidToken
	}
	return auth.KioskScope{HouseholdID: h.ID}, nil
}

// ActingMember returns the member kiosk writes are attributed to: the
// household's earliest member.
func (s *Service) ActingMember(ctx context.Context, scope auth.KioskScope) (*model.Member, error) {
	m, err := s.members.First(ctx, scope.HouseholdID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNoMembers
	}
	return m, nil
}

// TokenFromRequest reads the kiosk secret from the token query parameter or a
// Bearer authorization header.
func TokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}
