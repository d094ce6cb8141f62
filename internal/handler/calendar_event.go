package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/recurrence"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/validate"
	"github.com/dukerupert/hearth/internal/websocket"
)

type CalendarEventHandler struct {
	events     *store.EventStore
	households *store.HouseholdStore
	hub        *websocket.Hub
	logger     *slog.Logger
	now        func() time.Time
}

func NewCalendarEventHandler(es *store.EventStore, hs *store.HouseholdStore, hub *websocket.Hub, logger *slog.Logger) *CalendarEventHandler {
	return &CalendarEventHandler{
		events:     es,
		households: hs,
		hub:        hub,
		logger:     logger.With("component", "calendar"),
		now:        time.Now,
	}
}

type eventRequest struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	Description string `json:"description" validate:"max=2000"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	AllDay      bool   `json:"all_day"`
	Location    string `json:"location" validate:"max=200"`
	Color       string `json:"color" validate:"omitempty,hexcolor6"`
	Recurrence  string `json:"recurrence_rule" validate:"max=200"`
}

type eventUpdateRequest struct {
	Title       *string `json:"title" validate:"omitnil,notblank,max=200"`
	Description *string `json:"description" validate:"omitnil,max=2000"`
	StartTime   *string `json:"start_time" validate:"omitnil,notblank"`
	EndTime     *string `json:"end_time" validate:"omitnil,notblank"`
	AllDay      *bool   `json:"all_day"`
	Location    *string `json:"location" validate:"omitnil,max=200"`
	Color       *string `json:"color" validate:"omitnil,hexcolor6"`
	Recurrence  *string `json:"recurrence_rule" validate:"omitnil,max=200"`
}

// merge overlays the fields present in upd on e's current values.
func (upd eventUpdateRequest) merge(e *model.CalendarEvent) eventRequest {
	req := eventRequest{
		Title:       e.Title,
		Description: e.Description,
		StartTime:   e.StartTime.Format(time.RFC3339),
		EndTime:     e.EndTime.Format(time.RFC3339),
		AllDay:      e.AllDay,
		Location:    e.Location,
		Color:       e.Color,
		Recurrence:  e.RecurrenceRule,
	}
	set(&req.Title, upd.Title)
	set(&req.Description, upd.Description)
	set(&req.StartTime, upd.StartTime)
	set(&req.EndTime, upd.EndTime)
	set(&req.AllDay, upd.AllDay)
	set(&req.Location, upd.Location)
	set(&req.Color, upd.Color)
	set(&req.Recurrence, upd.Recurrence)
	return req
}

// toEvent parses the request times in loc, checks end >= start and stores
// any recurrence rule in canonical form.
func (req eventRequest) toEvent(loc *time.Location) (*model.CalendarEvent, error) {
	start, err := parseTime("start_time", req.StartTime, loc)
	if err != nil {
		return nil, err
	}
	end, err := parseTime("end_time", req.EndTime, loc)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, validate.Errorf("End time must be after start time")
	}
	var rule string
	if strings.TrimSpace(req.Recurrence) != "" {
		r, err := recurrence.Parse(req.Recurrence)
		if err != nil {
			return nil, validate.Errorf("%s", err.Error())
		}
		rule = r.String()
	}
	return &model.CalendarEvent{
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		StartTime:      start,
		EndTime:        end,
		AllDay:         req.AllDay,
		Location:       strings.TrimSpace(req.Location),
		Color:          req.Color,
		RecurrenceRule: rule,
	}, nil
}

// Create stamps the session member as the event's owner.
func (h *CalendarEventHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req eventRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	loc := localNow(r.Context(), h.households, id.HouseholdID, h.now()).Location()
	e, err := req.toEvent(loc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	e.HouseholdID = id.HouseholdID
	e.MemberID = &id.MemberID

	event, err := h.events.Create(r.Context(), e)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("calendar_event", "created", event.ID, nil))
	writeJSON(w, http.StatusCreated, event)
}

// List supports start/end (window), upcoming=true and limit. Recurring
// events appear once per occurrence when a window start is given.
func (h *CalendarEventHandler) List(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	q := r.URL.Query()
	now := localNow(r.Context(), h.households, id.HouseholdID, h.now())

	var f store.EventFilter
	var err error
	if v := q.Get("start"); v != "" {
		if f.From, err = parseTime("start", v, now.Location()); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	if v := q.Get("end"); v != "" {
		if f.To, err = parseTime("end", v, now.Location()); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	if q.Get("upcoming") == "true" {
		f.From = now
	}
	f.From = f.From.In(now.Location())
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, h.logger, validate.Errorf("limit must be between 1 and 500"))
			return
		}
		f.Limit = n
	}

	events, err := h.events.List(r.Context(), id.HouseholdID, f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *CalendarEventHandler) get(r *http.Request) (*model.CalendarEvent, error) {
	eventID, err := parseIDParam(r)
	if err != nil {
		return nil, err
	}
	e, err := h.events.Get(r.Context(), identity(r).HouseholdID, eventID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, notFound("Event")
	}
	return e, nil
}

func (h *CalendarEventHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.get(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *CalendarEventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.get(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var upd eventUpdateRequest
	if err := validate.Decode(r, &upd); err != nil {
		writeError(w, h.logger, err)
		return
	}
	loc := localNow(r.Context(), h.households, id.HouseholdID, h.now()).Location()
	e, err := upd.merge(existing).toEvent(loc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	e.ID = existing.ID
	e.HouseholdID = existing.HouseholdID
	e.MemberID = existing.MemberID

	event, err := h.events.Update(r.Context(), e)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("calendar_event", "updated", event.ID, nil))
	writeJSON(w, http.StatusOK, event)
}

func (h *CalendarEventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.get(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.events.Delete(r.Context(), id.HouseholdID, existing.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("calendar_event", "deleted", existing.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}
