package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

type MealStore struct {
	db *sql.DB
}

func NewMealStore(db *sql.DB) *MealStore {
	return &MealStore{db: db}
}

// --- Recipe methods ---

func scanRecipe(s scanner) (*model.Recipe, error) {
	var r model.Recipe
	var createdBy, prep, cook, servings sql.NullInt64
	var description, instructions, imageURL sql.NullString
	var ingredients, tags string
	err := s.Scan(&r.ID, &r.HouseholdID, &createdBy, &r.Title, &description, &ingredients, &instructions,
		&prep, &cook, &servings, &imageURL, &tags, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.CreatedByID = int64Ptr(createdBy)
	r.PrepTime = intPtr(prep)
	r.CookTime = intPtr(cook)
	r.Servings = intPtr(servings)
	r.Description = description.String
	r.Instructions = instructions.String
	r.ImageURL = imageURL.String
	r.Ingredients = []model.Ingredient{}
	r.Tags = []string{}
	if err := json.Unmarshal([]byte(ingredients), &r.Ingredients); err != nil {
		return nil, fmt.Errorf("decode ingredients: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return &r, nil
}

const recipeCols = `id, household_id, created_by_id, title, description, ingredients, instructions,
	prep_time, cook_time, servings, image_url, tags, created_at, updated_at`

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *MealStore) CreateRecipe(ctx context.Context, r *model.Recipe) (*model.Recipe, error) {
	ingredients, err := encodeJSON(r.Ingredients)
	if err != nil {
		return nil, fmt.Errorf("encode ingredients: %w", err)
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	tags, err := encodeJSON(r.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO recipes (household_id, created_by_id, title, description, ingredients, instructions,
		 prep_time, cook_time, servings, image_url, tags) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.HouseholdID, nullInt64(r.CreatedByID), r.Title, nullString(r.Description), ingredients,
		nullString(r.Instructions), nullInt(r.PrepTime), nullInt(r.CookTime), nullInt(r.Servings),
		nullString(r.ImageURL), tags,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recipe: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetRecipe(ctx, r.HouseholdID, id)
}

func (s *MealStore) GetRecipe(ctx context.Context, householdID, id int64) (*model.Recipe, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recipeCols+` FROM recipes WHERE id = ? AND household_id = ?`, id, householdID)
	r, err := scanRecipe(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	return r, nil
}

// ListRecipes returns recipes matching an optional title/description search and tag.
func (s *MealStore) ListRecipes(ctx context.Context, householdID int64, search, tag string) ([]model.Recipe, error) {
	query := `SELECT ` + recipeCols + ` FROM recipes WHERE household_id = ?`
	args := []any{householdID}
	if search = strings.TrimSpace(search); search != "" {
		query += ` AND (title LIKE ? OR description LIKE ?)`
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	if tag != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(recipes.tags) WHERE json_each.value = ?)`
		args = append(args, tag)
	}
	query += ` ORDER BY title ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	recipes := []model.Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, *r)
	}
	return recipes, rows.Err()
}

func (s *MealStore) UpdateRecipe(ctx context.Context, r *model.Recipe) (*model.Recipe, error) {
	ingredients, err := encodeJSON(r.Ingredients)
	if err != nil {
		return nil, fmt.Errorf("encode ingredients: %w", err)
	}
	tags, err := encodeJSON(r.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE recipes SET title = ?, description = ?, ingredients = ?, instructions = ?, prep_time = ?,
		 cook_time = ?, servings = ?, image_url = ?, tags = ?, updated_at = ? WHERE id = ? AND household_id = ?`,
		r.Title, nullString(r.Description), ingredients, nullString(r.Instructions), nullInt(r.PrepTime),
		nullInt(r.CookTime), nullInt(r.Servings), nullString(r.ImageURL), tags, time.Now().UTC(),
		r.ID, r.HouseholdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update recipe: %w", err)
	}
	return s.GetRecipe(ctx, r.HouseholdID, r.ID)
}

func (s *MealStore) DeleteRecipe(ctx context.Context, householdID, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM recipes WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	return nil
}

// --- Meal plan methods ---

const planSelect = `SELECT p.id, p.household_id, p.date, p.meal_type, p.recipe_id, COALESCE(r.title, ''),
	p.custom_title, p.notes, p.created_at, p.updated_at
	FROM meal_plans p LEFT JOIN recipes r ON r.id = p.recipe_id`

func scanPlan(s scanner) (*model.MealPlan, error) {
	var p model.MealPlan
	var recipeID sql.NullInt64
	var customTitle, notes sql.NullString
	err := s.Scan(&p.ID, &p.HouseholdID, &p.Date, &p.MealType, &recipeID, &p.RecipeTitle,
		&customTitle, &notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.RecipeID = int64Ptr(recipeID)
	p.CustomTitle = customTitle.String
	p.Notes = notes.String
	return &p, nil
}

// UpsertPlan creates or replaces the plan for (household, date, meal type).
func (s *MealStore) UpsertPlan(ctx context.Context, p *model.MealPlan) (*model.MealPlan, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meal_plans (household_id, date, meal_type, recipe_id, custom_title, notes) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (household_id, date, meal_type) DO UPDATE SET
		   recipe_id = excluded.recipe_id, custom_title = excluded.custom_title, notes = excluded.notes,
		   updated_at = CURRENT_TIMESTAMP`,
		p.HouseholdID, p.Date, p.MealType, nullInt64(p.RecipeID), nullString(p.CustomTitle), nullString(p.Notes),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert meal plan: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		planSelect+` WHERE p.household_id = ? AND p.date = ? AND p.meal_type = ?`,
		p.HouseholdID, p.Date, p.MealType,
	)
	plan, err := scanPlan(row)
	if err != nil {
		return nil, fmt.Errorf("get upserted meal plan: %w", err)
	}
	return plan, nil
}

func (s *MealStore) GetPlan(ctx context.Context, householdID, id int64) (*model.MealPlan, error) {
	row := s.db.QueryRowContext(ctx, planSelect+` WHERE p.id = ? AND p.household_id = ?`, id, householdID)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meal plan: %w", err)
	}
	return p, nil
}

// ListPlans returns plans with from <= date <= to (YYYY-MM-DD, inclusive).
func (s *MealStore) ListPlans(ctx context.Context, householdID int64, from, to string) ([]model.MealPlan, error) {
	rows, err := s.db.QueryContext(ctx,
		planSelect+` WHERE p.household_id = ? AND p.date >= ? AND p.date <= ?
		 ORDER BY p.date ASC, CASE p.meal_type WHEN 'BREAKFAST' THEN 0 WHEN 'LUNCH' THEN 1 WHEN 'DINNER' THEN 2 ELSE 3 END`,
		householdID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list meal plans: %w", err)
	}
	defer rows.Close()

	plans := []model.MealPlan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (s *MealStore) UpdatePlan(ctx context.Context, p *model.MealPlan) (*model.MealPlan, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE meal_plans SET recipe_id = ?, custom_title = ?, notes = ?, updated_at = ? WHERE id = ? AND household_id = ?`,
		nullInt64(p.RecipeID), nullString(p.CustomTitle), nullString(p.Notes), time.Now().UTC(), p.ID, p.HouseholdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update meal plan: %w", err)
	}
	return s.GetPlan(ctx, p.HouseholdID, p.ID)
}

func (s *MealStore) DeletePlan(ctx context.Context, householdID, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM meal_plans WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete meal plan: %w", err)
	}
	return nil
}
