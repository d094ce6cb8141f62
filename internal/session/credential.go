// Package session turns a signed session cookie into a household identity.
package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/auth"
)

// Claims is the payload of a session credential. Subject holds the external
// identity key.
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// Issuer mints session credentials.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// TTL is the lifetime of credentials minted by i.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Sign returns an HS256 credential for p valid from now for the issuer's TTL.
func (i *Issuer) Sign(p auth.Principal, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ExternalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
		Email:   p.Email,
		Name:    p.Name,
		Picture: p.Picture,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing session: %w", err)
	}
	return signed, nil
}

// ParseCredential verifies credential against secret at now and returns the
// principal it names. Every failure wraps auth.ErrUnauthenticated.
func ParseCredential(secret []byte, credential string, now time.Time) (auth.Principal, error) {
	if credential == "" {
		return auth.Principal{}, auth.ErrUnauthenticated
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("%w: %w", auth.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return auth.Principal{}, fmt.Errorf("%w: missing subject", auth.ErrUnauthenticated)
	}
	return auth.Principal{
		ExternalID: claims.Subject,
		Email:      claims.Email,
		Name:       claims.Name,
		Picture:    claims.Picture,
	}, nil
}
