package handler

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
)

func TestGroceryAddedByIgnoresBody(t *testing.T) {
	e := newTestEnv(t)
	admin := e.onboard(t, "Smiths")
	child := e.join(t, admin, "kid", auth.RoleChild)
	h := NewGroceryHandler(e.groceries, e.hub, e.logger)

	rec := serve(t, h.Create, "POST", "/api/grocery", map[string]any{
		"name": "Milk", "added_by_id": admin.MemberID,
	}, child)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decodeBody[model.GroceryItem](t, rec)
	require.NotNil(t, item.AddedByID)
	assert.Equal(t, child.MemberID, *item.AddedByID)
	assert.NotEmpty(t, item.Category, "category inferred from the name")

	rec = serve(t, h.List, "GET", "/api/grocery", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeBody[[]model.GroceryItem](t, rec)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].AddedByID)
	assert.Equal(t, child.MemberID, *items[0].AddedByID)
}

func TestGroceryCheckKeepsOtherFields(t *testing.T) {
	e := newTestEnv(t)
	admin := e.onboard(t, "Smiths")
	h := NewGroceryHandler(e.groceries, e.hub, e.logger)

	rec := serve(t, h.Create, "POST", "/api/grocery", map[string]any{
		"name": "Eggs", "quantity": "12", "category": "Dairy",
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decodeBody[model.GroceryItem](t, rec)

	id := strconv.FormatInt(item.ID, 10)
	rec = serve(t, h.Update, "PUT", "/api/grocery/"+id, map[string]any{"checked": true}, admin, "id", id)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[model.GroceryItem](t, rec)
	assert.True(t, got.Checked)
	assert.Equal(t, "Eggs", got.Name)
	assert.Equal(t, "12", got.Quantity)
	assert.Equal(t, "Dairy", got.Category)

	other := e.onboard(t, "Joneses")
	rec = serve(t, h.Update, "PUT", "/api/grocery/"+id, map[string]any{"checked": false}, other, "id", id)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
