package model

import "time"

// Meal types.
const (
	MealBreakfast = "BREAKFAST"
	MealLunch     = "LUNCH"
	MealDinner    = "DINNER"
	MealSnack     = "SNACK"
)

type Ingredient struct {
	Name   string `json:"name" validate:"required,max=200"`
	Amount string `json:"amount,omitempty" validate:"max=50"`
	Unit   string `json:"unit,omitempty" validate:"max=50"`
}

type Recipe struct {
	ID           int64        `json:"id"`
	HouseholdID  int64        `json:"household_id"`
	CreatedByID  *int64       `json:"created_by_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions string       `json:"instructions"`
	PrepTime     *int         `json:"prep_time"`
	CookTime     *int         `json:"cook_time"`
	Servings     *int         `json:"servings"`
	ImageURL     string       `json:"image_url"`
	Tags         []string     `json:"tags"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// MealPlan is one slot of the household meal calendar. Date is YYYY-MM-DD.
type MealPlan struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	Date        string    `json:"date"`
	MealType    string    `json:"meal_type"`
	RecipeID    *int64    `json:"recipe_id"`
	RecipeTitle string    `json:"recipe_title,omitempty"`
	CustomTitle string    `json:"custom_title"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DisplayTitle is the recipe title when linked, otherwise the custom title.
func (m MealPlan) DisplayTitle() string {
	if m.RecipeTitle != "" {
		return m.RecipeTitle
	}
	return m.CustomTitle
}
