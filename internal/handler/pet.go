package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/validate"
	"github.com/dukerupert/hearth/internal/websocket"
)

type PetHandler struct {
	pets       *store.PetStore
	households *store.HouseholdStore
	hub        *websocket.Hub
	logger     *slog.Logger
	now        func() time.Time
}

func NewPetHandler(ps *store.PetStore, hs *store.HouseholdStore, hub *websocket.Hub, logger *slog.Logger) *PetHandler {
	return &PetHandler{
		pets:       ps,
		households: hs,
		hub:        hub,
		logger:     logger.With("component", "pet"),
		now:        time.Now,
	}
}

func (h *PetHandler) location(ctx context.Context, householdID int64) *time.Location {
	return localNow(ctx, h.households, householdID, h.now()).Location()
}

// --- Pets ---

type petRequest struct {
	Name      string `json:"name" validate:"notblank,max=100"`
	Species   string `json:"species" validate:"notblank,max=50"`
	Breed     string `json:"breed" validate:"max=100"`
	BirthDate string `json:"birth_date" validate:"omitempty,ymd"`
	PhotoURL  string `json:"photo_url" validate:"omitempty,http_url,max=500"`
	Notes     string `json:"notes" validate:"max=2000"`
}

// petUpdateRequest changes only the fields present. An empty birth_date
// clears it.
type petUpdateRequest struct {
	Name      *string `json:"name" validate:"omitnil,notblank,max=100"`
	Species   *string `json:"species" validate:"omitnil,notblank,max=50"`
	Breed     *string `json:"breed" validate:"omitnil,max=100"`
	BirthDate *string `json:"birth_date" validate:"omitnil"`
	PhotoURL  *string `json:"photo_url" validate:"omitnil,max=500"`
	Notes     *string `json:"notes" validate:"omitnil,max=2000"`
}

func (upd petUpdateRequest) merge(p *model.Pet, loc *time.Location) (petRequest, error) {
	req := petRequest{Name: p.Name, Species: p.Species, Breed: p.Breed, PhotoURL: p.PhotoURL, Notes: p.Notes}
	if p.BirthDate != nil {
		req.BirthDate = p.BirthDate.In(loc).Format("2006-01-02")
	}
	set(&req.Name, upd.Name)
	set(&req.Species, upd.Species)
	set(&req.Breed, upd.Breed)
	set(&req.BirthDate, upd.BirthDate)
	set(&req.PhotoURL, upd.PhotoURL)
	set(&req.Notes, upd.Notes)
	return req, validate.Struct(req)
}

func (req petRequest) apply(p *model.Pet, loc *time.Location) error {
	p.Name = strings.TrimSpace(req.Name)
	p.Species = strings.TrimSpace(req.Species)
	p.Breed = strings.TrimSpace(req.Breed)
	p.PhotoURL = req.PhotoURL
	p.Notes = strings.TrimSpace(req.Notes)
	p.BirthDate = nil
	if req.BirthDate != "" {
		t, err := parseTime("birth_date", req.BirthDate, loc)
		if err != nil {
			return err
		}
		p.BirthDate = &t
	}
	return nil
}

func (h *PetHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req petRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	p := &model.Pet{HouseholdID: id.HouseholdID}
	if err := req.apply(p, h.location(r.Context(), id.HouseholdID)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	pet, err := h.pets.Create(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("pet", "created", pet.ID, nil))
	writeJSON(w, http.StatusCreated, pet)
}

func (h *PetHandler) List(w http.ResponseWriter, r *http.Request) {
	pets, err := h.pets.List(r.Context(), identity(r).HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pets)
}

// getPet loads the {id} pet of the caller's household.
func (h *PetHandler) getPet(r *http.Request) (*model.Pet, error) {
	petID, err := parseIDParam(r)
	if err != nil {
		return nil, err
	}
	p, err := h.pets.Get(r.Context(), identity(r).HouseholdID, petID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound("Pet")
	}
	return p, nil
}

func (h *PetHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.getPet(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.getPet(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var upd petUpdateRequest
	if err := validate.Decode(r, &upd); err != nil {
		writeError(w, h.logger, err)
		return
	}
	loc := h.location(r.Context(), id.HouseholdID)
	req, err := upd.merge(existing, loc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := req.apply(existing, loc); err != nil {
		writeError(w, h.logger, err)
		return
	}

	pet, err := h.pets.Update(r.Context(), existing)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("pet", "updated", pet.ID, nil))
	writeJSON(w, http.StatusOK, pet)
}

func (h *PetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.getPet(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.pets.Delete(r.Context(), id.HouseholdID, existing.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("pet", "deleted", existing.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// --- Care tasks ---

type taskRequest struct {
	Type          string `json:"type" validate:"required,oneof=FEEDING WALK MEDICATION GROOMING VET"`
	Title         string `json:"title" validate:"notblank,max=200"`
	IntervalHours *int   `json:"interval_hours" validate:"omitnil,gte=1,lte=8760"`
}

// taskUpdateRequest changes only the fields present. interval_hours: null
// makes the task unscheduled.
type taskUpdateRequest struct {
	Type          *string                `json:"type" validate:"omitnil,oneof=FEEDING WALK MEDICATION GROOMING VET"`
	Title         *string                `json:"title" validate:"omitnil,notblank,max=200"`
	IntervalHours validate.Nullable[int] `json:"interval_hours"`
}

func (h *PetHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	p, err := h.getPet(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	tasks, err := h.pets.ListTasks(r.Context(), id.HouseholdID, p.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *PetHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	p, err := h.getPet(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req taskRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	t, err := h.pets.CreateTask(r.Context(), id.HouseholdID, &model.PetCareTask{
		PetID:         p.ID,
		Type:          req.Type,
		Title:         strings.TrimSpace(req.Title),
		IntervalHours: req.IntervalHours,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("pet_care_task", "created", t.ID, nil))
	writeJSON(w, http.StatusCreated, t)
}

// getTask loads the {taskId} task. When the route also names a pet, the task
// must belong to it.
func (h *PetHandler) getTask(r *http.Request) (*model.PetCareTask, error) {
	id := identity(r)
	taskID, err := parsePathID(r, "taskId")
	if err != nil {
		return nil, err
	}
	t, err := h.pets.GetTask(r.Context(), id.HouseholdID, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, notFound("Task")
	}
	if r.PathValue("id") != "" {
		petID, err := parseIDParam(r)
		if err != nil {
			return nil, err
		}
		if t.PetID != petID {
			return nil, notFound("Task")
		}
	}
	return t, nil
}

func (h *PetHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.getTask(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req taskUpdateRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if v := req.IntervalHours.Value; v != nil {
		if err := validate.Var("interval_hours", *v, "gte=1,lte=8760"); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	set(&existing.Type, req.Type)
	if req.Title != nil {
		existing.Title = strings.TrimSpace(*req.Title)
	}
	if req.IntervalHours.Set {
		existing.IntervalHours = req.IntervalHours.Value
	}

	t, err := h.pets.UpdateTask(r.Context(), id.HouseholdID, existing)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("pet_care_task", "updated", t.ID, nil))
	writeJSON(w, http.StatusOK, t)
}

func (h *PetHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.getTask(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.pets.DeleteTask(r.Context(), id.HouseholdID, existing.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("pet_care_task", "deleted", existing.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// PendingTasks returns the household's tasks that are due now.
func (h *PetHandler) PendingTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.pets.ListAllTasks(r.Context(), identity(r).HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	now := h.now()
	pending := make([]model.PetCareTask, 0, len(tasks))
	for _, t := range tasks {
		if t.Pending(now) {
			pending = append(pending, t)
		}
	}
	writeJSON(w, http.StatusOK, pending)
}

type careLogRequest struct {
	Notes       string `json:"notes" validate:"max=1000"`
	DurationMin *int   `json:"duration_min" validate:"omitnil,gte=0,lte=1440"`
}

// LogCare records the session member completing a task.
func (h *PetHandler) LogCare(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	t, err := h.getTask(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req careLogRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	l, err := h.pets.LogCare(r.Context(), &model.PetCareLog{
		TaskID:      t.ID,
		MemberID:    &id.MemberID,
		CompletedAt: h.now(),
		Notes:       strings.TrimSpace(req.Notes),
		DurationMin: req.DurationMin,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("pet_care_task", "logged", t.ID, nil))
	writeJSON(w, http.StatusCreated, l)
}

// --- Health records ---

type healthRequest struct {
	Type    string `json:"type" validate:"required,oneof=VACCINE VET_VISIT MEDICATION OTHER"`
	Title   string `json:"title" validate:"notblank,max=200"`
	Date    string `json:"date" validate:"required"`
	Notes   string `json:"notes" validate:"max=2000"`
	NextDue string `json:"next_due"`
}

func (h *PetHandler) ListHealth(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	p, err := h.getPet(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	records, err := h.pets.ListHealthRecords(r.Context(), id.HouseholdID, p.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *PetHandler) CreateHealth(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	p, err := h.getPet(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req healthRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	loc := h.location(r.Context(), id.HouseholdID)
	date, err := parseTime("date", req.Date, loc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	rec := &model.PetHealthRecord{
		PetID: p.ID,
		Type:  req.Type,
		Title: strings.TrimSpace(req.Title),
		Date:  date,
		Notes: strings.TrimSpace(req.Notes),
	}
	if req.NextDue != "" {
		next, err := parseTime("next_due", req.NextDue, loc)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		rec.NextDue = &next
	}

	created, err := h.pets.CreateHealthRecord(r.Context(), rec)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("pet_health_record", "created", created.ID, nil))
	writeJSON(w, http.StatusCreated, created)
}
