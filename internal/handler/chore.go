package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/chore"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/validate"
	"github.com/dukerupert/hearth/internal/websocket"
)

type ChoreHandler struct {
	chores     *store.ChoreStore
	members    *store.MemberStore
	households *store.HouseholdStore
	hub        *websocket.Hub
	logger     *slog.Logger
	now        func() time.Time
}

func NewChoreHandler(cs *store.ChoreStore, ms *store.MemberStore, hs *store.HouseholdStore, hub *websocket.Hub, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{
		chores:     cs,
		members:    ms,
		households: hs,
		hub:        hub,
		logger:     logger.With("component", "chore"),
		now:        time.Now,
	}
}

type choreRequest struct {
	Title         string  `json:"title" validate:"notblank,max=100"`
	Description   string  `json:"description" validate:"max=500"`
	Frequency     string  `json:"frequency" validate:"required,oneof=DAILY WEEKLY MONTHLY ONE_TIME"`
	Points        int     `json:"points" validate:"gte=0,lte=1000"`
	RotationOrder []int64 `json:"rotation_order" validate:"max=50"`
}

type choreUpdateRequest struct {
	Title         *string  `json:"title" validate:"omitnil,notblank,max=100"`
	Description   *string  `json:"description" validate:"omitnil,max=500"`
	Frequency     *string  `json:"frequency" validate:"omitnil,oneof=DAILY WEEKLY MONTHLY ONE_TIME"`
	Points        *int     `json:"points" validate:"omitnil,gte=0,lte=1000"`
	RotationOrder *[]int64 `json:"rotation_order" validate:"omitnil,max=50"`
}

// checkRotation rejects rotation entries that are not household members.
func (h *ChoreHandler) checkRotation(ctx context.Context, householdID int64, rotation []int64) error {
	for _, id := range rotation {
		m, err := h.members.Get(ctx, householdID, id)
		if err != nil {
			return err
		}
		if m == nil {
			return notFound("Member")
		}
	}
	return nil
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req choreRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.checkRotation(r.Context(), id.HouseholdID, req.RotationOrder); err != nil {
		writeError(w, h.logger, err)
		return
	}

	c, err := h.chores.Create(r.Context(), &model.Chore{
		HouseholdID:   id.HouseholdID,
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		Frequency:     req.Frequency,
		Points:        req.Points,
		RotationOrder: req.RotationOrder,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("chore", "created", c.ID, nil))
	writeJSON(w, http.StatusCreated, c)
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	chores, err := h.chores.List(r.Context(), identity(r).HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) get(r *http.Request) (*model.Chore, error) {
	choreID, err := parseIDParam(r)
	if err != nil {
		return nil, err
	}
	c, err := h.chores.Get(r.Context(), identity(r).HouseholdID, choreID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, notFound("Chore")
	}
	return c, nil
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.get(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.get(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req choreUpdateRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.RotationOrder != nil {
		if err := h.checkRotation(r.Context(), id.HouseholdID, *req.RotationOrder); err != nil {
			writeError(w, h.logger, err)
			return
		}
		existing.RotationOrder = *req.RotationOrder
	}
	if req.Title != nil {
		existing.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		existing.Description = strings.TrimSpace(*req.Description)
	}
	set(&existing.Frequency, req.Frequency)
	set(&existing.Points, req.Points)

	c, err := h.chores.Update(r.Context(), existing)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("chore", "updated", c.ID, nil))
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.get(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.chores.Delete(r.Context(), id.HouseholdID, existing.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("chore", "deleted", existing.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// ListAssignments supports today=true, pending=true and member_id filters.
// Status is computed in the household's timezone.
func (h *ChoreHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	now := localNow(r.Context(), h.households, id.HouseholdID, h.now())
	q := r.URL.Query()

	var f store.AssignmentFilter
	if q.Get("today") == "true" {
		f.DueFrom = chore.StartOfDay(now)
		f.DueTo = f.DueFrom.AddDate(0, 0, 1)
	}
	if q.Get("pending") == "true" {
		f.PendingOnly = true
	}
	if v := q.Get("member_id"); v != "" {
		memberID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, h.logger, validate.Errorf("member_id must be a number"))
			return
		}
		f.MemberID = memberID
	}

	assignments, err := h.chores.ListAssignments(r.Context(), id.HouseholdID, f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	chore.Annotate(assignments, now)
	writeJSON(w, http.StatusOK, assignments)
}

type assignmentRequest struct {
	ChoreID  int64  `json:"chore_id" validate:"required,gt=0"`
	MemberID int64  `json:"member_id" validate:"required,gt=0"`
	DueDate  string `json:"due_date" validate:"required"`
}

func (h *ChoreHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req assignmentRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	now := localNow(r.Context(), h.households, id.HouseholdID, h.now())
	due, err := parseTime("due_date", req.DueDate, now.Location())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	c, err := h.chores.Get(r.Context(), id.HouseholdID, req.ChoreID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if c == nil {
		writeError(w, h.logger, notFound("Chore"))
		return
	}
	m, err := h.members.Get(r.Context(), id.HouseholdID, req.MemberID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if m == nil {
		writeError(w, h.logger, notFound("Member"))
		return
	}

	a, err := h.chores.CreateAssignment(r.Context(), id.HouseholdID, c.ID, m.ID, due)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	a.Status = string(chore.ComputeStatus(*a, now))
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("chore_assignment", "created", a.ID, nil))
	writeJSON(w, http.StatusCreated, a)
}

// completion is the result of completing an assignment. Next is the
// follow-up assignment for recurring chores.
type completion struct {
	Assignment *model.ChoreAssignment `json:"assignment"`
	Next       *model.ChoreAssignment `json:"next"`
}

// complete marks an assignment done by completedBy and, for recurring chores,
// assigns the next occurrence to the following member in the rotation. The
// completion and the follow-up are written together, so racing completions
// produce a single follow-up.
func (h *ChoreHandler) complete(ctx context.Context, householdID, assignmentID, completedBy int64) (*completion, error) {
	existing, err := h.chores.GetAssignment(ctx, householdID, assignmentID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, notFound("Assignment")
	}
	if existing.Completed {
		return nil, validate.Errorf("Assignment already completed")
	}

	now := localNow(ctx, h.households, householdID, h.now())
	next, err := h.nextAssignment(ctx, householdID, existing, now.Location())
	if err != nil {
		return nil, err
	}

	done, created, err := h.chores.CompleteAssignment(ctx, householdID, assignmentID, completedBy, now, next)
	if errors.Is(err, store.ErrAlreadyCompleted) {
		return nil, validate.Errorf("Assignment already completed")
	}
	if err != nil {
		return nil, err
	}
	if done == nil {
		return nil, notFound("Assignment")
	}
	done.Status = string(chore.StatusCompleted)
	out := &completion{Assignment: done}
	if created == nil {
		return out, nil
	}
	created.Status = string(chore.ComputeStatus(*created, now))
	out.Next = created

	h.logger.Info("chore completed", "household_id", householdID, "assignment_id", done.ID,
		"next_assignment_id", created.ID, "next_member_id", created.MemberID)
	return out, nil
}

// nextAssignment schedules the follow-up of a, or returns nil for one-time
// chores. A rotation member who has left the household is skipped in favor
// of a's member.
func (h *ChoreHandler) nextAssignment(ctx context.Context, householdID int64, a *model.ChoreAssignment, loc *time.Location) (*store.NextAssignment, error) {
	c, err := h.chores.Get(ctx, householdID, a.ChoreID)
	if err != nil || c == nil {
		return nil, err
	}
	due, ok := chore.NextDue(c.Frequency, a.DueDate.In(loc))
	if !ok {
		return nil, nil
	}
	assignee := chore.NextAssignee(c.RotationOrder, a.MemberID)
	if assignee != a.MemberID {
		m, err := h.members.Get(ctx, householdID, assignee)
		if err != nil {
			return nil, err
		}
		if m == nil {
			assignee = a.MemberID
		}
	}
	return &store.NextAssignment{MemberID: assignee, Due: due}, nil
}

// Complete records the session member as the completer.
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	assignmentID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.complete(r.Context(), id.HouseholdID, assignmentID, id.MemberID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("chore_assignment", "completed", assignmentID, nil))
	writeJSON(w, http.StatusOK, result)
}
