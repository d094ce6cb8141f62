package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/kiosk"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/validate"
	"github.com/dukerupert/hearth/internal/websocket"
)

// KioskHandler serves token management for admins and the token-scoped
// dashboard and actions for wall displays.
type KioskHandler struct {
	kiosk     *kiosk.Service
	snapshots *Snapshotter
	chores    *ChoreHandler
	pets      *store.PetStore
	hub       *websocket.Hub
	logger    *slog.Logger
	now       func() time.Time
}

func NewKioskHandler(ks *kiosk.Service, snapshots *Snapshotter, chores *ChoreHandler, ps *store.PetStore, hub *websocket.Hub, logger *slog.Logger) *KioskHandler {
	return &KioskHandler{
		kiosk:     ks,
		snapshots: snapshots,
		chores:    chores,
		pets:      ps,
		hub:       hub,
		logger:    logger.With("component", "kiosk"),
		now:       time.Now,
	}
}

// IssueToken returns the new plaintext token once, with the kiosk page URL.
func (h *KioskHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.kiosk.Issue(r.Context(), identity(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"url":   "/kiosk?token=" + url.QueryEscape(token),
	})
}

func (h *KioskHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	if err := h.kiosk.Revoke(r.Context(), identity(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func kioskScope(r *http.Request) auth.KioskScope {
	scope, _ := auth.KioskFromContext(r.Context())
	return scope
}

func (h *KioskHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Build(r.Context(), kioskScope(r).HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type kioskAction struct {
	Type         string `json:"type" validate:"required"`
	AssignmentID int64  `json:"assignment_id"`
	TaskID       int64  `json:"task_id"`
	Notes        string `json:"notes" validate:"max=500"`
}

// Action performs one of the whitelisted kiosk writes, attributed to the
// household's first member.
func (h *KioskHandler) Action(w http.ResponseWriter, r *http.Request) {
	scope := kioskScope(r)
	var req kioskAction
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	switch req.Type {
	case "complete-chore":
		if req.AssignmentID <= 0 {
			writeError(w, h.logger, validate.Errorf("assignment_id is required"))
			return
		}
		actor, err := h.kiosk.ActingMember(r.Context(), scope)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		result, err := h.chores.complete(r.Context(), scope.HouseholdID, req.AssignmentID, actor.ID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		broadcast(h.hub, scope.HouseholdID, websocket.NewMessage("chore_assignment", "completed", req.AssignmentID, nil))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "assignment": result.Assignment, "next": result.Next})

	case "log-pet-care":
		if req.TaskID <= 0 {
			writeError(w, h.logger, validate.Errorf("task_id is required"))
			return
		}
		task, err := h.pets.GetTask(r.Context(), scope.HouseholdID, req.TaskID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if task == nil {
			writeError(w, h.logger, notFound("Task"))
			return
		}
		actor, err := h.kiosk.ActingMember(r.Context(), scope)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		log, err := h.pets.LogCare(r.Context(), &model.PetCareLog{
			TaskID:      task.ID,
			MemberID:    &actor.ID,
			CompletedAt: h.now(),
			Notes:       strings.TrimSpace(req.Notes),
		})
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		broadcast(h.hub, scope.HouseholdID, websocket.NewMessage("pet_care", "logged", task.ID, nil))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "log": log})

	default:
		writeError(w, h.logger, validate.Errorf("Unknown action type"))
	}
}
