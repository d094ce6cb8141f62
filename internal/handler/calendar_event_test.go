package handler

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
)

func TestCalendarEventOwnership(t *testing.T) {
	e := newTestEnv(t)
	admin := e.onboard(t, "Smiths")
	child := e.join(t, admin, "kid", auth.RoleChild)
	h := NewCalendarEventHandler(e.events, e.households, e.hub, e.logger)

	rec := serve(t, h.Create, "POST", "/api/calendar", map[string]any{
		"title":      "Recital",
		"start_time": "2025-06-02T18:00:00Z",
		"end_time":   "2025-06-02T19:00:00Z",
		"member_id":  admin.MemberID,
	}, child)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ev := decodeBody[model.CalendarEvent](t, rec)
	require.NotNil(t, ev.MemberID)
	assert.Equal(t, child.MemberID, *ev.MemberID)
	assert.Empty(t, ev.RecurrenceRule)

	rec = serve(t, h.Create, "POST", "/api/calendar", map[string]any{
		"title":      "Backwards",
		"start_time": "2025-06-02T18:00:00Z",
		"end_time":   "2025-06-02T17:00:00Z",
	}, child)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "End time must be after start time", errorMessage(t, rec))

	id := strconv.FormatInt(ev.ID, 10)
	other := e.onboard(t, "Joneses")
	rec = serve(t, h.Delete, "DELETE", "/api/calendar/"+id, nil, other, "id", id)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalendarRecurringEvents(t *testing.T) {
	e := newTestEnv(t)
	admin := e.onboard(t, "Smiths")
	h := NewCalendarEventHandler(e.events, e.households, e.hub, e.logger)
	h.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	rec := serve(t, h.Create, "POST", "/api/calendar", map[string]any{
		"title":           "Trash day",
		"start_time":      "2025-06-03",
		"end_time":        "2025-06-03",
		"all_day":         true,
		"recurrence_rule": "freq=weekly;count=3",
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ev := decodeBody[model.CalendarEvent](t, rec)
	assert.Equal(t, "FREQ=WEEKLY;COUNT=3", ev.RecurrenceRule)
	assert.Equal(t, "Repeats weekly, 3 times", ev.Repeats)

	rec = serve(t, h.List, "GET", "/api/calendar?start=2025-06-01&end=2025-07-01", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody[[]model.CalendarEvent](t, rec)
	require.Len(t, events, 3)
	assert.Equal(t, 17, events[2].StartTime.Day())
	for _, o := range events {
		assert.Equal(t, ev.ID, o.ID)
		require.NotNil(t, o.SeriesStart)
	}

	rec = serve(t, h.List, "GET", "/api/calendar", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.CalendarEvent](t, rec), 1, "no window lists the series once")

	rec = serve(t, h.Create, "POST", "/api/calendar", map[string]any{
		"title":           "Bad",
		"start_time":      "2025-06-03",
		"end_time":        "2025-06-03",
		"recurrence_rule": "FREQ=HOURLY",
	}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "invalid recurrence rule")
}

func TestCalendarEventPartialUpdate(t *testing.T) {
	e := newTestEnv(t)
	admin := e.onboard(t, "Smiths")
	h := NewCalendarEventHandler(e.events, e.households, e.hub, e.logger)

	rec := serve(t, h.Create, "POST", "/api/calendar", map[string]any{
		"title":           "Trash day",
		"location":        "Curb",
		"start_time":      "2025-06-03",
		"end_time":        "2025-06-03",
		"all_day":         true,
		"recurrence_rule": "FREQ=WEEKLY;COUNT=3",
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ev := decodeBody[model.CalendarEvent](t, rec)

	id := strconv.FormatInt(ev.ID, 10)
	rec = serve(t, h.Update, "PUT", "/api/calendar/"+id, map[string]any{"title": "Bins out"}, admin, "id", id)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[model.CalendarEvent](t, rec)
	assert.Equal(t, "Bins out", got.Title)
	assert.Equal(t, "Curb", got.Location)
	assert.True(t, got.AllDay)
	assert.True(t, ev.StartTime.Equal(got.StartTime))
	assert.True(t, ev.EndTime.Equal(got.EndTime))
	assert.Equal(t, "FREQ=WEEKLY;COUNT=3", got.RecurrenceRule)

	rec = serve(t, h.Update, "PUT", "/api/calendar/"+id, map[string]any{"end_time": "2025-06-02"}, admin, "id", id)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "End time must be after start time", errorMessage(t, rec))
}
