package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/kiosk"
	"github.com/dukerupert/hearth/internal/model"
)

func newKioskHandler(e *testEnv) *KioskHandler {
	chores := NewChoreHandler(e.chores, e.members, e.households, e.hub, e.logger)
	return NewKioskHandler(kiosk.NewService(e.households, e.members, e.logger), nil, chores, e.pets, e.hub, e.logger)
}

func kioskAct(t *testing.T, h *KioskHandler, householdID int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/api/kiosk/action", bytes.NewReader(b))
	req = req.WithContext(auth.WithKiosk(req.Context(), auth.KioskScope{HouseholdID: householdID}))
	rec := httptest.NewRecorder()
	h.Action(rec, req)
	return rec
}

func TestKioskActionsAttributeToFirstMember(t *testing.T) {
	e := newTestEnv(t)
	admin := e.onboard(t, "Smiths")
	child := e.join(t, admin, "kid", auth.RoleChild)
	ctx := context.Background()

	c, err := e.chores.Create(ctx, &model.Chore{HouseholdID: admin.HouseholdID, Title: "Feed fish", Frequency: model.FrequencyDaily})
	require.NoError(t, err)
	a, err := e.chores.CreateAssignment(ctx, admin.HouseholdID, c.ID, child.MemberID, time.Now())
	require.NoError(t, err)

	h := newKioskHandler(e)
	rec := kioskAct(t, h, admin.HouseholdID, map[string]any{"type": "complete-chore", "assignment_id": a.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	done, err := e.chores.GetAssignment(ctx, admin.HouseholdID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedByID)
	assert.Equal(t, admin.MemberID, *done.CompletedByID)

	pet, err := e.pets.Create(ctx, &model.Pet{HouseholdID: admin.HouseholdID, Name: "Bubbles", Species: "Fish"})
	require.NoError(t, err)
	task, err := e.pets.CreateTask(ctx, admin.HouseholdID, &model.PetCareTask{PetID: pet.ID, Type: model.CareFeeding, Title: "Flakes"})
	require.NoError(t, err)

	rec = kioskAct(t, h, admin.HouseholdID, map[string]any{"type": "log-pet-care", "task_id": task.ID, "notes": "pinch"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	other := e.onboard(t, "Joneses")
	rec = kioskAct(t, h, other.HouseholdID, map[string]any{"type": "log-pet-care", "task_id": task.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = kioskAct(t, h, admin.HouseholdID, map[string]any{"type": "add-grocery"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unknown action type", errorMessage(t, rec))

	rec = kioskAct(t, h, admin.HouseholdID, map[string]any{"type": "complete-chore"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKioskActionWithoutMembers(t *testing.T) {
	e := newTestEnv(t)
	admin := e.onboard(t, "Smiths")
	ctx := context.Background()

	pet, err := e.pets.Create(ctx, &model.Pet{HouseholdID: admin.HouseholdID, Name: "Rex", Species: "Dog"})
	require.NoError(t, err)
	task, err := e.pets.CreateTask(ctx, admin.HouseholdID, &model.PetCareTask{PetID: pet.ID, Type: model.CareWalk, Title: "Walk"})
	require.NoError(t, err)
	require.NoError(t, e.members.Delete(ctx, admin.HouseholdID, admin.MemberID))

	rec := kioskAct(t, newKioskHandler(e), admin.HouseholdID, map[string]any{"type": "log-pet-care", "task_id": task.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No members found in household", errorMessage(t, rec))
}
