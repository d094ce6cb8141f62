package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/hearth/internal/grocery"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/validate"
	"github.com/dukerupert/hearth/internal/websocket"
)

type GroceryHandler struct {
	groceries *store.GroceryStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewGroceryHandler(gs *store.GroceryStore, hub *websocket.Hub, logger *slog.Logger) *GroceryHandler {
	return &GroceryHandler{groceries: gs, hub: hub, logger: logger.With("component", "grocery")}
}

type groceryCreateRequest struct {
	Name     string `json:"name" validate:"notblank,max=200"`
	Quantity string `json:"quantity" validate:"max=50"`
	Category string `json:"category" validate:"max=50"`
}

// Create stamps the session member as the item's adder. A missing category
// is inferred from the name.
func (h *GroceryHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req groceryCreateRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = grocery.Categorize(name)
	}

	item, err := h.groceries.Create(r.Context(), &model.GroceryItem{
		HouseholdID: id.HouseholdID,
		AddedByID:   &id.MemberID,
		Name:        name,
		Quantity:    strings.TrimSpace(req.Quantity),
		Category:    category,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("grocery_item", "created", item.ID, nil))
	writeJSON(w, http.StatusCreated, item)
}

// List returns unchecked items first, then by category, newest first.
func (h *GroceryHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.groceries.List(r.Context(), identity(r).HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type groceryUpdateRequest struct {
	Name     *string `json:"name" validate:"omitnil,notblank,max=200"`
	Quantity *string `json:"quantity" validate:"omitnil,max=50"`
	Category *string `json:"category" validate:"omitnil,max=50"`
	Checked  *bool   `json:"checked"`
}

func (h *GroceryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	itemID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	existing, err := h.groceries.Get(r.Context(), id.HouseholdID, itemID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeError(w, h.logger, notFound("Item"))
		return
	}

	var req groceryUpdateRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Name != nil {
		existing.Name = strings.TrimSpace(*req.Name)
	}
	if req.Quantity != nil {
		existing.Quantity = strings.TrimSpace(*req.Quantity)
	}
	if req.Category != nil {
		existing.Category = strings.TrimSpace(*req.Category)
		if existing.Category == "" {
			existing.Category = grocery.Categorize(existing.Name)
		}
	}
	if req.Checked != nil {
		existing.Checked = *req.Checked
	}

	item, err := h.groceries.Update(r.Context(), existing)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("grocery_item", "updated", item.ID, nil))
	writeJSON(w, http.StatusOK, item)
}

func (h *GroceryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	itemID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	existing, err := h.groceries.Get(r.Context(), id.HouseholdID, itemID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeError(w, h.logger, notFound("Item"))
		return
	}
	if err := h.groceries.Delete(r.Context(), id.HouseholdID, itemID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("grocery_item", "deleted", itemID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// ClearChecked handles DELETE /api/grocery?checked=true.
func (h *GroceryHandler) ClearChecked(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if r.URL.Query().Get("checked") != "true" {
		writeError(w, h.logger, validate.Errorf("checked=true is required"))
		return
	}
	n, err := h.groceries.ClearChecked(r.Context(), id.HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("grocery_item", "cleared", 0, map[string]any{"count": n}))
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
