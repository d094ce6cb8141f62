package store

import (
	"context"
	"testing"

	"github.com/dukerupert/hearth/internal/model"
)

func TestRecipeSearchAndTags(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMealStore(db)
	ctx := context.Background()
	h, admin := seedHousehold(t, db, "Smith")

	r, err := ms.CreateRecipe(ctx, &model.Recipe{
		HouseholdID: h.ID,
		CreatedByID: &admin.ID,
		Title:       "Tacos",
		Ingredients: []model.Ingredient{{Name: "Tortillas", Amount: "8"}},
		Tags:        []string{"mexican", "quick"},
	})
	if err != nil {
		t.Fatalf("create recipe: %v", err)
	}
	if len(r.Ingredients) != 1 || r.Ingredients[0].Name != "Tortillas" {
		t.Errorf("ingredients = %+v", r.Ingredients)
	}
	ms.CreateRecipe(ctx, &model.Recipe{HouseholdID: h.ID, Title: "Lasagna", Tags: []string{"italian"}})

	got, _ := ms.ListRecipes(ctx, h.ID, "tac", "")
	if len(got) != 1 || got[0].Title != "Tacos" {
		t.Errorf("search = %+v", got)
	}
	got, _ = ms.ListRecipes(ctx, h.ID, "", "italian")
	if len(got) != 1 || got[0].Title != "Lasagna" {
		t.Errorf("tag = %+v", got)
	}
	got, _ = ms.ListRecipes(ctx, h.ID, "", "")
	if len(got) != 2 {
		t.Errorf("all = %d, want 2", len(got))
	}
}

func TestMealPlanUpsertAndRange(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMealStore(db)
	ctx := context.Background()
	h, _ := seedHousehold(t, db, "Smith")

	r, _ := ms.CreateRecipe(ctx, &model.Recipe{HouseholdID: h.ID, Title: "Chili"})
	first, err := ms.UpsertPlan(ctx, &model.MealPlan{HouseholdID: h.ID, Date: "2026-03-10", MealType: model.MealDinner, CustomTitle: "Leftovers"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := ms.UpsertPlan(ctx, &model.MealPlan{HouseholdID: h.ID, Date: "2026-03-10", MealType: model.MealDinner, RecipeID: &r.ID})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert created a new row: %d != %d", second.ID, first.ID)
	}
	if second.DisplayTitle() != "Chili" {
		t.Errorf("display title = %q, want Chili", second.DisplayTitle())
	}

	ms.UpsertPlan(ctx, &model.MealPlan{HouseholdID: h.ID, Date: "2026-03-10", MealType: model.MealBreakfast, CustomTitle: "Eggs"})
	ms.UpsertPlan(ctx, &model.MealPlan{HouseholdID: h.ID, Date: "2026-03-12", MealType: model.MealLunch, CustomTitle: "Out of range"})

	plans, err := ms.ListPlans(ctx, h.ID, "2026-03-09", "2026-03-11")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(plans) != 2 || plans[0].MealType != model.MealBreakfast {
		t.Errorf("plans = %+v, want breakfast then dinner", plans)
	}
}

func TestRecipeTenantIsolation(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMealStore(db)
	ctx := context.Background()
	h1, _ := seedHousehold(t, db, "One")
	h2, _ := seedHousehold(t, db, "Two")

	r, _ := ms.CreateRecipe(ctx, &model.Recipe{HouseholdID: h1.ID, Title: "Family secret"})
	if got, _ := ms.GetRecipe(ctx, h2.ID, r.ID); got != nil {
		t.Error("recipe visible from another household")
	}
	if got, _ := ms.ListRecipes(ctx, h2.ID, "", ""); len(got) != 0 {
		t.Errorf("household two lists %d recipes, want 0", len(got))
	}
}
