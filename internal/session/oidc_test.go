package session

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/hearth/internal/config"
)

// fakeIssuer is a minimal OpenID provider: discovery, JWKS and a token
// endpoint that returns an RS256 ID token for any code.
type fakeIssuer struct {
	srv    *httptest.Server
	key    *rsa.PrivateKey
	claims jwt.MapClaims
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	f := &fakeIssuer{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                f.srv.URL,
			"authorization_endpoint":                f.srv.URL + "/authorize",
			"token_endpoint":                        f.srv.URL + "/token",
			"jwks_uri":                              f.srv.URL + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("GET /jwks", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "test",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, f.claims)
		tok.Header["kid"] = "test"
		idToken, err := tok.SignedString(f.key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIssuer) provider(t *testing.T) *OIDCProvider {
	t.Helper()
	p, err := NewOIDCProvider(context.Background(), config.OIDCConfig{
		IssuerURL:    f.srv.URL,
		ClientID:     "hearth",
		ClientSecret: "shh",
		RedirectURL:  "http://localhost:8080/auth/callback",
	})
	require.NoError(t, err)
	return p
}

func TestOIDCExchange(t *testing.T) {
	f := newFakeIssuer(t)
	p := f.provider(t)
	now := time.Now()
	f.claims = jwt.MapClaims{
		"iss":     f.srv.URL,
		"aud":     "hearth",
		"sub":     "subject-1",
		"email":   "pat@example.com",
		"name":    "Pat",
		"picture": "https://example.com/p.png",
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	}

	got, err := p.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "subject-1", got.ExternalID)
	assert.Equal(t, "pat@example.com", got.Email)
	assert.Equal(t, "Pat", got.Name)
}

func TestOIDCExchangeRejects(t *testing.T) {
	f := newFakeIssuer(t)
	p := f.provider(t)
	now := time.Now()

	tests := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{"wrong audience", jwt.MapClaims{"iss": f.srv.URL, "aud": "other", "sub": "s", "email": "a@b.c", "exp": now.Add(time.Hour).Unix()}},
		{"expired", jwt.MapClaims{"iss": f.srv.URL, "aud": "hearth", "sub": "s", "email": "a@b.c", "exp": now.Add(-time.Hour).Unix()}},
		{"no email", jwt.MapClaims{"iss": f.srv.URL, "aud": "hearth", "sub": "s", "exp": now.Add(time.Hour).Unix()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.claims = tt.claims
			_, err := p.Exchange(context.Background(), "code")
			assert.Error(t, err)
		})
	}

	_, err := p.Exchange(context.Background(), "")
	assert.Error(t, err)
}

func TestOIDCAuthCodeURL(t *testing.T) {
	f := newFakeIssuer(t)
	p := f.provider(t)

	u, err := url.Parse(p.AuthCodeURL("state-123"))
	require.NoError(t, err)
	assert.Equal(t, "/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "hearth", q.Get("client_id"))
	assert.Contains(t, q.Get("scope"), "openid")
}

func TestNewState(t *testing.T) {
	a, err := NewState()
	require.NoError(t, err)
	b, _ := NewState()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
