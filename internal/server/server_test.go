package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/config"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/email"
	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/dukerupert/hearth/internal/ratelimit"
	"github.com/dukerupert/hearth/internal/session"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/vault"
	"github.com/dukerupert/hearth/internal/weather"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type noWeather struct{}

func (noWeather) Current(context.Context, string) (*weather.Data, error) {
	return nil, weather.ErrUnavailable
}

// stubProvider signs in whichever principal the test sets.
type stubProvider struct {
	principal *auth.Principal
}

func (p stubProvider) AuthCodeURL(state string) string {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state)
}

func (p stubProvider) Exchange(context.Context, string) (auth.Principal, error) {
	return *p.principal, nil
}

type testServer struct {
	t       *testing.T
	db      *sql.DB
	handler http.Handler
	issuer  *session.Issuer
	signIn  auth.Principal
}

func newTestServer(t *testing.T, limit int) *testServer {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	cfg.Session.Secret = testSecret
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	blobs, err := vault.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	cipher, err := vault.NewCipher("")
	require.NoError(t, err)

	ts := &testServer{t: t, db: db, issuer: session.NewIssuer(testSecret, time.Hour)}
	srv := New(Deps{
		DB:       db,
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics.New(),
		Limiter:  ratelimit.NewLimiter(ratelimit.NewMemoryStore(), limit, time.Minute, logger),
		Provider: stubProvider{principal: &ts.signIn},
		Weather:  noWeather{},
		Mailer:   email.NewClient("", "", "http://localhost"),
		Cipher:   cipher,
		Blobs:    blobs,
	})
	ts.handler = srv.Router()
	return ts
}

func (s *testServer) cookie(p auth.Principal) *http.Cookie {
	cred, err := s.issuer.Sign(p, time.Now())
	require.NoError(s.t, err)
	return &http.Cookie{Name: session.CookieName, Value: cred}
}

func (s *testServer) do(method, target string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = "192.0.2.1:1234"
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// onboard creates a household through the API and returns its admin cookie.
func (s *testServer) onboard(name string) (*http.Cookie, int64) {
	s.t.Helper()
	c := s.cookie(auth.Principal{ExternalID: name + "-admin", Email: name + "@example.com", Name: name})
	rec := s.do("POST", "/api/household", map[string]string{"name": name}, c)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var hh struct {
		ID int64 `json:"id"`
	}
	require.NoError(s.t, json.NewDecoder(rec.Body).Decode(&hh))
	return c, hh.ID
}

// invite adds a member with role through an invitation and returns its cookie.
func (s *testServer) invite(admin *http.Cookie, name string, role auth.Role) *http.Cookie {
	s.t.Helper()
	email := name + "@example.com"
	rec := s.do("POST", "/api/household/invitations", map[string]string{"email": email, "role": string(role)}, admin)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	// Acceptance happens at sign-in, which needs the identity provider.
	p := auth.Principal{ExternalID: name, Email: email, Name: name}
	m, err := store.NewMemberStore(s.db).AcceptInvitation(context.Background(), p, time.Now())
	require.NoError(s.t, err)
	require.NotNil(s.t, m)
	return s.cookie(p)
}

func TestSignInAcceptsInvitation(t *testing.T) {
	s := newTestServer(t, 1000)
	admin, householdID := s.onboard("Smiths")
	rec := s.do("POST", "/api/household/invitations", map[string]string{"email": "kid@example.com", "role": "CHILD"}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do("GET", "/sign-in?callbackUrl=%2Fchores", nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	var state *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "hearth_oauth_state" {
			state = c
		}
	}
	require.NotNil(t, state)
	nonce, _, _ := strings.Cut(state.Value, "|")

	s.signIn = auth.Principal{ExternalID: "kid-sub", Email: "KID@example.com", Name: "Kid"}
	req := httptest.NewRequest("GET", "/auth/callback?code=abc&state="+url.QueryEscape(nonce), nil)
	req.AddCookie(state)
	callback := httptest.NewRecorder()
	s.handler.ServeHTTP(callback, req)

	require.Equal(t, http.StatusSeeOther, callback.Code)
	assert.Equal(t, "/chores", callback.Header().Get("Location"))
	var sess *http.Cookie
	for _, c := range callback.Result().Cookies() {
		if c.Name == session.CookieName {
			sess = c
		}
	}
	require.NotNil(t, sess)

	rec = s.do("GET", "/api/me", nil, sess)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Identity     auth.Identity `json:"identity"`
		HasHousehold bool          `json:"has_household"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.True(t, me.HasHousehold)
	assert.Equal(t, householdID, me.Identity.HouseholdID)
	assert.Equal(t, auth.RoleChild, me.Identity.Role)

	rec = s.do("GET", "/api/budget/categories", nil, sess)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSignInWithoutInvitationNeedsOnboarding(t *testing.T) {
	s := newTestServer(t, 1000)
	rec := s.do("GET", "/sign-in", nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	state := rec.Result().Cookies()[0]
	nonce, _, _ := strings.Cut(state.Value, "|")

	s.signIn = auth.Principal{ExternalID: "new-sub", Email: "new@example.com", Name: "New"}
	req := httptest.NewRequest("GET", "/auth/callback?code=abc&state="+url.QueryEscape(nonce), nil)
	req.AddCookie(state)
	callback := httptest.NewRecorder()
	s.handler.ServeHTTP(callback, req)

	require.Equal(t, http.StatusSeeOther, callback.Code)
	assert.Equal(t, "/onboarding", callback.Header().Get("Location"))
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	s := newTestServer(t, 100)
	rec := s.do("GET", "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUnauthenticatedAPI(t *testing.T) {
	s := newTestServer(t, 100)
	rec := s.do("GET", "/api/chores", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bogus := &http.Cookie{Name: session.CookieName, Value: "not-a-credential"}
	rec = s.do("GET", "/api/chores", nil, bogus)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNoHouseholdYet(t *testing.T) {
	s := newTestServer(t, 100)
	c := s.cookie(auth.Principal{ExternalID: "drifter", Email: "drifter@example.com", Name: "Drifter"})

	rec := s.do("GET", "/api/chores", nil, c)
	require.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "/onboarding", body["redirect"])

	rec = s.do("GET", "/api/me", nil, c)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoleGating(t *testing.T) {
	s := newTestServer(t, 1000)
	admin, _ := s.onboard("Smiths")
	member := s.invite(admin, "sam", auth.RoleMember)
	child := s.invite(admin, "kid", auth.RoleChild)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		cookie *http.Cookie
		want   int
	}{
		{"child reads budget", "GET", "/api/budget/categories", nil, child, http.StatusForbidden},
		{"child writes expense", "POST", "/api/budget/expenses", map[string]any{"category_id": 1, "amount": 5, "description": "x"}, child, http.StatusForbidden},
		{"member reads budget", "GET", "/api/budget/categories", nil, member, http.StatusOK},
		{"member edits household", "PUT", "/api/household", map[string]string{"name": "Nope"}, member, http.StatusForbidden},
		{"member invites", "POST", "/api/household/invitations", map[string]string{"email": "x@example.com"}, member, http.StatusForbidden},
		{"member issues kiosk token", "POST", "/api/kiosk/token", nil, member, http.StatusForbidden},
		{"child writes vault", "POST", "/api/vault", map[string]string{"title": "Passport"}, child, http.StatusForbidden},
		{"child reads chores", "GET", "/api/chores", nil, child, http.StatusOK},
		{"admin edits household", "PUT", "/api/household", map[string]string{"name": "Smith Family"}, admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body, tt.cookie)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestTenantIsolation(t *testing.T) {
	s := newTestServer(t, 1000)
	smiths, _ := s.onboard("Smiths")
	joneses, _ := s.onboard("Joneses")

	rec := s.do("POST", "/api/grocery", map[string]string{"name": "Milk"}, smiths)
	require.Equal(t, http.StatusCreated, rec.Code)
	var item struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&item))
	path := "/api/grocery/" + strconv.FormatInt(item.ID, 10)

	rec = s.do("PUT", path, map[string]bool{"checked": true}, joneses)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do("DELETE", path, nil, joneses)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do("GET", "/api/grocery", nil, joneses)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = s.do("DELETE", path, nil, smiths)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestKioskRoundTrip(t *testing.T) {
	s := newTestServer(t, 1000)
	admin, householdID := s.onboard("Smiths")

	rec := s.do("GET", "/api/kiosk/dashboard", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do("POST", "/api/kiosk/token", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var issued map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&issued))
	token := issued["token"]
	require.NotEmpty(t, token)

	dashboard := "/api/kiosk/dashboard?token=" + url.QueryEscape(token)
	rec = s.do("GET", dashboard, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var snap map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Contains(t, snap, "chores")
	assert.Nil(t, snap["weather"])

	// The digest, not the token, is what the database holds.
	stored, err := store.NewHouseholdStore(s.db).StoredKioskToken(context.Background(), householdID)
	require.NoError(t, err)
	assert.NotEqual(t, token, stored)

	rec = s.do("POST", "/api/kiosk/action?token="+url.QueryEscape(token), map[string]string{"type": "dance"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("DELETE", "/api/kiosk/token", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do("GET", dashboard, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	for i := 0; i < 2; i++ {
		rec := s.do("GET", "/health", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := s.do("GET", "/health", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 100)
	s.do("GET", "/health", nil, nil)

	rec := s.do("GET", "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="GET /health"`)
}
