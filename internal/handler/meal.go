package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/chore"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/validate"
	"github.com/dukerupert/hearth/internal/websocket"
)

type MealHandler struct {
	meals      *store.MealStore
	households *store.HouseholdStore
	hub        *websocket.Hub
	logger     *slog.Logger
	now        func() time.Time
}

func NewMealHandler(ms *store.MealStore, hs *store.HouseholdStore, hub *websocket.Hub, logger *slog.Logger) *MealHandler {
	return &MealHandler{
		meals:      ms,
		households: hs,
		hub:        hub,
		logger:     logger.With("component", "meal"),
		now:        time.Now,
	}
}

// --- Meal plans ---

type mealPlanRequest struct {
	Date        string `json:"date" validate:"required,ymd"`
	MealType    string `json:"meal_type" validate:"required,oneof=BREAKFAST LUNCH DINNER SNACK"`
	RecipeID    *int64 `json:"recipe_id" validate:"omitnil,gt=0"`
	CustomTitle string `json:"custom_title" validate:"max=200"`
	Notes       string `json:"notes" validate:"max=500"`
}

// mealPlanUpdateRequest changes only the fields present. recipe_id: null
// detaches the recipe, which then needs a custom title.
type mealPlanUpdateRequest struct {
	RecipeID    validate.Nullable[int64] `json:"recipe_id"`
	CustomTitle *string                  `json:"custom_title" validate:"omitnil,max=200"`
	Notes       *string                  `json:"notes" validate:"omitnil,max=500"`
}

// checkPlanTarget requires a recipe of this household or a custom title.
func (h *MealHandler) checkPlanTarget(ctx context.Context, householdID int64, recipeID *int64, customTitle string) error {
	if recipeID == nil {
		if customTitle == "" {
			return validate.Errorf("Either recipe_id or custom_title is required")
		}
		return nil
	}
	rec, err := h.meals.GetRecipe(ctx, householdID, *recipeID)
	if err != nil {
		return err
	}
	if rec == nil {
		return notFound("Recipe")
	}
	return nil
}

// ListPlans returns plans between start and end (YYYY-MM-DD, inclusive),
// defaulting to the seven days from today.
func (h *MealHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	q := r.URL.Query()
	today := chore.StartOfDay(localNow(r.Context(), h.households, id.HouseholdID, h.now()))

	from := q.Get("start")
	if from == "" {
		from = today.Format("2006-01-02")
	}
	to := q.Get("end")
	if to == "" {
		to = today.AddDate(0, 0, 6).Format("2006-01-02")
	}
	if err := validate.Var("start", from, "ymd"); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Var("end", to, "ymd"); err != nil {
		writeError(w, h.logger, err)
		return
	}

	plans, err := h.meals.ListPlans(r.Context(), id.HouseholdID, from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

// UpsertPlan fills the (date, meal type) slot, replacing what was there.
func (h *MealHandler) UpsertPlan(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req mealPlanRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.CustomTitle = strings.TrimSpace(req.CustomTitle)
	if err := h.checkPlanTarget(r.Context(), id.HouseholdID, req.RecipeID, req.CustomTitle); err != nil {
		writeError(w, h.logger, err)
		return
	}

	plan, err := h.meals.UpsertPlan(r.Context(), &model.MealPlan{
		HouseholdID: id.HouseholdID,
		Date:        req.Date,
		MealType:    req.MealType,
		RecipeID:    req.RecipeID,
		CustomTitle: req.CustomTitle,
		Notes:       strings.TrimSpace(req.Notes),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("meal_plan", "updated", plan.ID, nil))
	writeJSON(w, http.StatusCreated, plan)
}

func (h *MealHandler) getPlan(r *http.Request) (*model.MealPlan, error) {
	planID, err := parseIDParam(r)
	if err != nil {
		return nil, err
	}
	p, err := h.meals.GetPlan(r.Context(), identity(r).HouseholdID, planID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound("Meal plan")
	}
	return p, nil
}

func (h *MealHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.getPlan(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req mealPlanUpdateRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.RecipeID.Set {
		if v := req.RecipeID.Value; v != nil && *v <= 0 {
			writeError(w, h.logger, validate.Errorf("recipe_id must be greater than 0"))
			return
		}
		existing.RecipeID = req.RecipeID.Value
	}
	if req.CustomTitle != nil {
		existing.CustomTitle = strings.TrimSpace(*req.CustomTitle)
	}
	if req.Notes != nil {
		existing.Notes = strings.TrimSpace(*req.Notes)
	}
	if err := h.checkPlanTarget(r.Context(), id.HouseholdID, existing.RecipeID, existing.CustomTitle); err != nil {
		writeError(w, h.logger, err)
		return
	}
	plan, err := h.meals.UpdatePlan(r.Context(), existing)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("meal_plan", "updated", plan.ID, nil))
	writeJSON(w, http.StatusOK, plan)
}

func (h *MealHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.getPlan(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.meals.DeletePlan(r.Context(), id.HouseholdID, existing.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("meal_plan", "deleted", existing.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// --- Recipes ---

type recipeRequest struct {
	Title        string             `json:"title" validate:"notblank,max=200"`
	Description  string             `json:"description" validate:"max=2000"`
	Ingredients  []model.Ingredient `json:"ingredients" validate:"required,min=1,max=100,dive"`
	Instructions string             `json:"instructions" validate:"max=20000"`
	PrepTime     *int               `json:"prep_time" validate:"omitnil,gte=0,lte=1440"`
	CookTime     *int               `json:"cook_time" validate:"omitnil,gte=0,lte=1440"`
	Servings     *int               `json:"servings" validate:"omitnil,gte=1,lte=100"`
	ImageURL     string             `json:"image_url" validate:"omitempty,http_url,max=500"`
	Tags         []string           `json:"tags" validate:"max=20,dive,notblank,max=50"`
}

// recipeUpdateRequest changes only the fields present. null clears a time or
// the servings.
type recipeUpdateRequest struct {
	Title        *string                `json:"title"`
	Description  *string                `json:"description"`
	Ingredients  *[]model.Ingredient    `json:"ingredients"`
	Instructions *string                `json:"instructions"`
	PrepTime     validate.Nullable[int] `json:"prep_time"`
	CookTime     validate.Nullable[int] `json:"cook_time"`
	Servings     validate.Nullable[int] `json:"servings"`
	ImageURL     *string                `json:"image_url"`
	Tags         *[]string              `json:"tags"`
}

// merge overlays upd on rec and validates the result with the create rules.
func (upd recipeUpdateRequest) merge(rec *model.Recipe) (recipeRequest, error) {
	req := recipeRequest{
		Title:        rec.Title,
		Description:  rec.Description,
		Ingredients:  rec.Ingredients,
		Instructions: rec.Instructions,
		PrepTime:     rec.PrepTime,
		CookTime:     rec.CookTime,
		Servings:     rec.Servings,
		ImageURL:     rec.ImageURL,
		Tags:         rec.Tags,
	}
	set(&req.Title, upd.Title)
	set(&req.Description, upd.Description)
	set(&req.Ingredients, upd.Ingredients)
	set(&req.Instructions, upd.Instructions)
	set(&req.ImageURL, upd.ImageURL)
	set(&req.Tags, upd.Tags)
	if upd.PrepTime.Set {
		req.PrepTime = upd.PrepTime.Value
	}
	if upd.CookTime.Set {
		req.CookTime = upd.CookTime.Value
	}
	if upd.Servings.Set {
		req.Servings = upd.Servings.Value
	}
	return req, validate.Struct(req)
}

func (req recipeRequest) apply(rec *model.Recipe) {
	rec.Title = strings.TrimSpace(req.Title)
	rec.Description = strings.TrimSpace(req.Description)
	rec.Ingredients = req.Ingredients
	rec.Instructions = strings.TrimSpace(req.Instructions)
	rec.PrepTime = req.PrepTime
	rec.CookTime = req.CookTime
	rec.Servings = req.Servings
	rec.ImageURL = req.ImageURL
	rec.Tags = make([]string, 0, len(req.Tags))
	for _, t := range req.Tags {
		rec.Tags = append(rec.Tags, strings.ToLower(strings.TrimSpace(t)))
	}
}

// CreateRecipe stamps the session member as the author.
func (h *MealHandler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req recipeRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	rec := &model.Recipe{HouseholdID: id.HouseholdID, CreatedByID: &id.MemberID}
	req.apply(rec)

	created, err := h.meals.CreateRecipe(r.Context(), rec)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("recipe", "created", created.ID, nil))
	writeJSON(w, http.StatusCreated, created)
}

// ListRecipes supports search and tag filters.
func (h *MealHandler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recipes, err := h.meals.ListRecipes(r.Context(), identity(r).HouseholdID, q.Get("search"), strings.ToLower(q.Get("tag")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (h *MealHandler) getRecipe(r *http.Request) (*model.Recipe, error) {
	recipeID, err := parseIDParam(r)
	if err != nil {
		return nil, err
	}
	rec, err := h.meals.GetRecipe(r.Context(), identity(r).HouseholdID, recipeID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFound("Recipe")
	}
	return rec, nil
}

func (h *MealHandler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := h.getRecipe(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *MealHandler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.getRecipe(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var upd recipeUpdateRequest
	if err := validate.Decode(r, &upd); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req, err := upd.merge(existing)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.apply(existing)

	rec, err := h.meals.UpdateRecipe(r.Context(), existing)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("recipe", "updated", rec.ID, nil))
	writeJSON(w, http.StatusOK, rec)
}

func (h *MealHandler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.getRecipe(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.meals.DeleteRecipe(r.Context(), id.HouseholdID, existing.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("recipe", "deleted", existing.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}
