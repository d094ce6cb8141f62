package kiosk

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	svc := NewService(store.NewHouseholdStore(db), store.NewMemberStore(db), testLogger())
	return svc, db
}

func onboard(t *testing.T, db *sql.DB, name string) auth.Identity {
	t.Helper()
	h, m, err := store.NewHouseholdStore(db).Onboard(context.Background(),
		auth.Principal{ExternalID: name, Email: name + "@example.com", Name: name}, name, "", "")
	require.NoError(t, err)
	return auth.Identity{MemberID: m.ID, HouseholdID: h.ID, Role: m.Role}
}

func TestHashToken(t *testing.T) {
	d := HashToken("secret")
	assert.Len(t, d, 64)
	assert.Equal(t, d, HashToken("secret"))
	assert.NotEqual(t, d, HashToken("Secret"))
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), d)
	// sha256("") is a well-known constant
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashToken(""))
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken(bytes.NewReader(bytes.Repeat([]byte{0xab}, 32)))
	require.NoError(t, err)
	assert.Equal(t, string(bytes.Repeat([]byte("ab"), 32)), tok)

	_, err = GenerateToken(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err, "short entropy source must fail")
}

func TestIssueAuthenticateRevoke(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	admin := onboard(t, db, "smith")

	token, err := svc.Issue(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	scope, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, admin.HouseholdID, scope.HouseholdID)

	stored, err := store.NewHouseholdStore(db).StoredKioskToken(ctx, admin.HouseholdID)
	require.NoError(t, err)
	assert.NotEqual(t, token, stored, "plaintext must not be persisted")
	assert.Equal(t, HashToken(token), stored)

	// the stored digest is not itself a valid credential
	_, err = svc.Authenticate(ctx, stored)
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.Revoke(ctx, admin))
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	require.NoError(t, svc.Revoke(ctx, admin), "revoke is idempotent")
}

func TestReissueInvalidatesPrevious(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	admin := onboard(t, db, "smith")

	first, err := svc.Issue(ctx, admin)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, admin)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = svc.Authenticate(ctx, first)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Authenticate(ctx, second)
	assert.NoError(t, err)
}

func TestTokensScopedToHousehold(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	one := onboard(t, db, "one")
	two := onboard(t, db, "two")

	t1, err := svc.Issue(ctx, one)
	require.NoError(t, err)
	t2, err := svc.Issue(ctx, two)
	require.NoError(t, err)

	s1, err := svc.Authenticate(ctx, t1)
	require.NoError(t, err)
	s2, err := svc.Authenticate(ctx, t2)
	require.NoError(t, err)
	assert.Equal(t, one.HouseholdID, s1.HouseholdID)
	assert.Equal(t, two.HouseholdID, s2.HouseholdID)
}

func TestIssueRequiresAdmin(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	admin := onboard(t, db, "smith")

	for _, role := range []auth.Role{auth.RoleMember, auth.RoleChild} {
		id := admin
		id.Role = role
		_, err := svc.Issue(ctx, id)
		assert.ErrorIs(t, err, auth.ErrForbidden, role)
		assert.ErrorIs(t, svc.Revoke(ctx, id), auth.ErrForbidden, role)
	}

	_, err := svc.Issue(ctx, auth.Identity{})
	assert.ErrorIs(t, err, auth.ErrNoHousehold)

	stored, _ := store.NewHouseholdStore(db).StoredKioskToken(ctx, admin.HouseholdID)
	assert.Empty(t, stored, "denied issue must not write a token")
}

func TestAuthenticateErrors(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, ErrTokenRequired)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.Equal(t, "Token is required", err.Error())

	_, err = svc.Authenticate(ctx, "not-a-real-token")
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, "Invalid kiosk token", err.Error())
}

func TestActingMember(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	admin := onboard(t, db, "smith")
	scope := auth.KioskScope{HouseholdID: admin.HouseholdID}

	m, err := svc.ActingMember(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, admin.MemberID, m.ID)

	require.NoError(t, store.NewMemberStore(db).Delete(ctx, admin.HouseholdID, admin.MemberID))
	_, err = svc.ActingMember(ctx, scope)
	assert.ErrorIs(t, err, ErrNoMembers)
	assert.Equal(t, "No members found in household", err.Error())
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/kiosk/dashboard?token=abc", nil)
	assert.Equal(t, "abc", TokenFromRequest(r))

	r = httptest.NewRequest("GET", "/api/kiosk/dashboard", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", TokenFromRequest(r))

	r = httptest.NewRequest("GET", "/api/kiosk/dashboard", nil)
	assert.Empty(t, TokenFromRequest(r))
}

// digestArg captures the value bound for the kiosk_token column.
type digestArg struct{ got string }

func (d *digestArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	d.got = s
	return true
}

func TestIssuePersistsDigestForCallerHousehold(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	svc := NewService(store.NewHouseholdStore(db), store.NewMemberStore(db), testLogger())

	digest := &digestArg{}
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE households SET kiosk_token = ?, updated_at = ? WHERE id = ?`)).
		WithArgs(digest, sqlmock.AnyArg(), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	token, err := svc.Issue(context.Background(), auth.Identity{MemberID: 7, HouseholdID: 42, Role: auth.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, HashToken(token), digest.got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthenticateLooksUpByDigest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	svc := NewService(store.NewHouseholdStore(db), store.NewMemberStore(db), testLogger())

	now := time.Now()
	d := HashToken("presented")
	rows := sqlmock.NewRows([]string{"kiosk_token", "id", "name", "location", "timezone", "kiosk_token", "created_at", "updated_at"}).
		AddRow(d, 9, "Smith", nil, "America/Denver", d, now, now)
	mock.ExpectQuery(`SELECT kiosk_token, .* FROM households WHERE kiosk_token = \?`).
		WithArgs(d).
		WillReturnRows(rows)

	scope, err := svc.Authenticate(context.Background(), "presented")
	require.NoError(t, err)
	assert.Equal(t, int64(9), scope.HouseholdID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthenticateStoreFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	svc := NewService(store.NewHouseholdStore(db), store.NewMemberStore(db), testLogger())

	boom := errors.New("disk on fire")
	mock.ExpectQuery(`SELECT kiosk_token`).WillReturnError(boom)

	_, err = svc.Authenticate(context.Background(), "presented")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, auth.ErrUnauthenticated)
}
