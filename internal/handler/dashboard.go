package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/hearth/internal/chore"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/weather"
)

// WeatherSource looks up current conditions for a location.
type WeatherSource interface {
	Current(ctx context.Context, location string) (*weather.Data, error)
}

// Snapshot is the one-screen household summary shown on the dashboard and
// the kiosk display.
type Snapshot struct {
	Household     snapshotHousehold       `json:"household"`
	Date          string                  `json:"date"`
	Events        []model.CalendarEvent   `json:"events"`
	Chores        []model.ChoreAssignment `json:"chores"`
	Meals         []model.MealPlan        `json:"meals"`
	Announcements []model.Message         `json:"announcements"`
	PetCareTasks  []model.PetCareTask     `json:"pet_care_tasks"`
	Weather       *weather.Data           `json:"weather"`
}

type snapshotHousehold struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Snapshotter assembles snapshots from the household stores.
type Snapshotter struct {
	households *store.HouseholdStore
	events     *store.EventStore
	chores     *store.ChoreStore
	meals      *store.MealStore
	messages   *store.MessageStore
	pets       *store.PetStore
	weather    WeatherSource
	logger     *slog.Logger
	now        func() time.Time
}

func NewSnapshotter(hs *store.HouseholdStore, es *store.EventStore, cs *store.ChoreStore, ms *store.MealStore, msgs *store.MessageStore, ps *store.PetStore, ws WeatherSource, logger *slog.Logger) *Snapshotter {
	return &Snapshotter{
		households: hs,
		events:     es,
		chores:     cs,
		meals:      ms,
		messages:   msgs,
		pets:       ps,
		weather:    ws,
		logger:     logger.With("component", "dashboard"),
		now:        time.Now,
	}
}

// householdLocation returns the household's zone, falling back to UTC for an
// unknown name.
func householdLocation(hh *model.Household) *time.Location {
	loc, err := time.LoadLocation(hh.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// localNow returns now in the household's timezone, or UTC when the
// household cannot be read.
func localNow(ctx context.Context, hs *store.HouseholdStore, householdID int64, now time.Time) time.Time {
	hh, err := hs.GetByID(ctx, householdID)
	if err != nil || hh == nil {
		return now.UTC()
	}
	return now.In(householdLocation(hh))
}

// Build computes "today" in the household's timezone. A weather failure
// leaves Weather nil.
func (s *Snapshotter) Build(ctx context.Context, householdID int64) (*Snapshot, error) {
	hh, err := s.households.GetByID(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if hh == nil {
		return nil, notFound("Household")
	}

	now := s.now().In(householdLocation(hh))
	start := chore.StartOfDay(now)
	end := start.AddDate(0, 0, 1)
	today := start.Format("2006-01-02")

	snap := &Snapshot{
		Household: snapshotHousehold{Name: hh.Name, Timezone: hh.Timezone},
		Date:      today,
	}

	if snap.Events, err = s.events.List(ctx, householdID, store.EventFilter{From: start, To: end}); err != nil {
		return nil, err
	}
	if snap.Chores, err = s.chores.ListAssignments(ctx, householdID, store.AssignmentFilter{
		DueFrom: start, DueTo: end, PendingOnly: true,
	}); err != nil {
		return nil, err
	}
	chore.Annotate(snap.Chores, now)
	if snap.Meals, err = s.meals.ListPlans(ctx, householdID, today, today); err != nil {
		return nil, err
	}
	if snap.Announcements, err = s.messages.List(ctx, householdID, store.MessageFilter{
		Type: model.MessageAnnouncement, PinnedOnly: true, Limit: 10,
	}); err != nil {
		return nil, err
	}

	tasks, err := s.pets.ListAllTasks(ctx, householdID)
	if err != nil {
		return nil, err
	}
	snap.PetCareTasks = []model.PetCareTask{}
	for _, t := range tasks {
		if t.Pending(now) {
			snap.PetCareTasks = append(snap.PetCareTasks, t)
		}
	}

	if hh.Location != "" && s.weather != nil {
		data, err := s.weather.Current(ctx, hh.Location)
		if err != nil {
			s.logger.Debug("dashboard weather unavailable", "household_id", householdID, "error", err)
		} else {
			snap.Weather = data
		}
	}
	return snap, nil
}

// DashboardHandler serves the session dashboard.
type DashboardHandler struct {
	snapshots *Snapshotter
	logger    *slog.Logger
}

func NewDashboardHandler(s *Snapshotter, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{snapshots: s, logger: logger.With("component", "dashboard")}
}

func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Build(r.Context(), identity(r).HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
