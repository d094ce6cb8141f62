package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv wires every store against one in-memory database.
type testEnv struct {
	db          *sql.DB
	households  *store.HouseholdStore
	members     *store.MemberStore
	invitations *store.InvitationStore
	events      *store.EventStore
	chores      *store.ChoreStore
	meals       *store.MealStore
	groceries   *store.GroceryStore
	messages    *store.MessageStore
	budget      *store.BudgetStore
	vault       *store.VaultStore
	pets        *store.PetStore
	push        *store.PushStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := discardLogger()
	return &testEnv{
		db:          db,
		households:  store.NewHouseholdStore(db),
		members:     store.NewMemberStore(db),
		invitations: store.NewInvitationStore(db),
		events:      store.NewEventStore(db),
		chores:      store.NewChoreStore(db),
		meals:       store.NewMealStore(db),
		groceries:   store.NewGroceryStore(db),
		messages:    store.NewMessageStore(db),
		budget:      store.NewBudgetStore(db),
		vault:       store.NewVaultStore(db),
		pets:        store.NewPetStore(db),
		push:        store.NewPushStore(db),
		hub:         websocket.NewHub(nil, logger),
		logger:      logger,
	}
}

func identityOf(m *model.Member) auth.Identity {
	return auth.Identity{
		Principal:   auth.Principal{ExternalID: m.ExternalID, Email: m.Email, Name: m.Name},
		MemberID:    m.ID,
		HouseholdID: m.HouseholdID,
		Role:        m.Role,
		DisplayName: m.Name,
		Color:       m.Color,
	}
}

// onboard creates a household named name and returns its ADMIN.
func (e *testEnv) onboard(t *testing.T, name string) auth.Identity {
	t.Helper()
	_, m, err := e.households.Onboard(context.Background(), auth.Principal{
		ExternalID: name + "-admin",
		Email:      name + "-admin@example.com",
		Name:       name + " Admin",
	}, name, "", "UTC")
	require.NoError(t, err)
	return identityOf(m)
}

// join adds a member with role to admin's household through an invitation.
func (e *testEnv) join(t *testing.T, admin auth.Identity, name string, role auth.Role) auth.Identity {
	t.Helper()
	ctx := context.Background()
	email := name + "@example.com"
	_, err := e.invitations.Create(ctx, admin.HouseholdID, email, role, admin.MemberID, time.Now())
	require.NoError(t, err)
	m, err := e.members.AcceptInvitation(ctx, auth.Principal{ExternalID: name, Email: email, Name: name}, time.Now())
	require.NoError(t, err)
	require.NotNil(t, m)
	return identityOf(m)
}

// serve runs fn for a request carrying id. pathValues alternate name, value.
func serve(t *testing.T, fn http.HandlerFunc, method, target string, body any, id auth.Identity, pathValues ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	req = req.WithContext(auth.WithIdentity(req.Context(), id))
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[map[string]string](t, rec)["error"]
}
