package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sonht113/recipebook/internal/apperrors"
	"github.com/sonht113/recipebook/internal/models"
	"github.com/sonht113/recipebook/internal/repository"
)

type RecipeRepo struct {
	DB DBTX
}

const recipeColumns = `id, author_id, title, description, ingredients, instructions,
cooking_time, servings, image_url, category, difficulty, is_public, created_at, updated_at`

const createRecipe = `-- name: CreateRecipe
INSERT INTO recipes (id, author_id, title, description, ingredients, instructions,
                     cooking_time, servings, image_url, category, difficulty, is_public)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + recipeColumns

func (r *RecipeRepo) CreateRecipe(ctx context.Context, recipe models.Recipe) (models.Recipe, error) {
	rows, _ := r.DB.Query(ctx, createRecipe,
		uuid.New(), recipe.AuthorID, recipe.Title, recipe.Description, recipe.Ingredients,
		recipe.Instructions, recipe.CookingTime, recipe.Servings, recipe.ImageURL,
		recipe.Category, recipe.Difficulty, recipe.IsPublic,
	)
	created, err := pgx.CollectOneRow(rows, rowToRecipe)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

const getRecipe = `-- name: GetRecipe
SELECT ` + recipeColumns + `
FROM recipes
WHERE id = $1
`

func (r *RecipeRepo) GetRecipe(ctx context.Context, id uuid.UUID) (models.Recipe, error) {
	rows, _ := r.DB.Query(ctx, getRecipe, id)
	recipe, err := pgx.CollectOneRow(rows, rowToRecipe)

	switch {
	case err == nil:
		return recipe, nil
	case errors.Is(err, pgx.ErrNoRows):
		return recipe, apperrors.ErrRecipeNotFound
	default:
		return recipe, fmt.Errorf("db error: %w", err)
	}
}

const updateRecipe = `-- name: UpdateRecipe
UPDATE recipes
SET title = $2, description = $3, ingredients = $4, instructions = $5,
    cooking_time = $6, servings = $7, image_url = $8, category = $9,
    difficulty = $10, is_public = $11, updated_at = now()
WHERE id = $1
RETURNING ` + recipeColumns

func (r *RecipeRepo) UpdateRecipe(ctx context.Context, recipe models.Recipe) (models.Recipe, error) {
	rows, _ := r.DB.Query(ctx, updateRecipe,
		recipe.ID, recipe.Title, recipe.Description, recipe.Ingredients, recipe.Instructions,
		recipe.CookingTime, recipe.Servings, recipe.ImageURL, recipe.Category,
		recipe.Difficulty, recipe.IsPublic,
	)
	updated, err := pgx.CollectOneRow(rows, rowToRecipe)

	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, pgx.ErrNoRows):
		return updated, apperrors.ErrRecipeNotFound
	default:
		return updated, fmt.Errorf("db error: %w", err)
	}
}

const deleteRecipe = `-- name: DeleteRecipe
DELETE FROM recipes
WHERE id = $1
`

func (r *RecipeRepo) DeleteRecipe(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteRecipe, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrRecipeNotFound
	}

	return nil
}

// ListRecipes returns a page of recipes plus the total count of rows that
// match the filters (for pagination). Newest first.
func (r *RecipeRepo) ListRecipes(ctx context.Context, opts repository.ListRecipesOpts) ([]models.Recipe, int64, error) {
	where, args := buildRecipeFilter(opts)

	countQuery := "SELECT count(*) FROM recipes" + where
	rows, _ := r.DB.Query(ctx, countQuery, args...)
	total, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	listQuery := fmt.Sprintf(
		"SELECT %s FROM recipes%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		recipeColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, opts.Limit, opts.Offset)

	rows, _ = r.DB.Query(ctx, listQuery, args...)
	recipes, err := pgx.CollectRows(rows, rowToRecipe)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return recipes, total, nil
}

const listCategories = `-- name: ListCategories
SELECT DISTINCT category
FROM recipes
WHERE is_public AND category <> ''
ORDER BY category
`

func (r *RecipeRepo) ListCategories(ctx context.Context) ([]string, error) {
	rows, _ := r.DB.Query(ctx, listCategories)
	categories, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return categories, nil
}

const countByAuthor = `-- name: CountByAuthor
SELECT count(*), count(*) FILTER (WHERE is_public), count(*) FILTER (WHERE NOT is_public)
FROM recipes
WHERE author_id = $1
`

func (r *RecipeRepo) CountByAuthor(ctx context.Context, authorID uuid.UUID) (models.RecipeStats, error) {
	var stats models.RecipeStats
	err := r.DB.QueryRow(ctx, countByAuthor, authorID).Scan(&stats.Total, &stats.Public, &stats.Private)
	if err != nil {
		return stats, fmt.Errorf("db error: %w", err)
	}
	return stats, nil
}

// buildRecipeFilter renders the WHERE clause for list queries.
// Returned clause is reused for both the count and the page query.
func buildRecipeFilter(opts repository.ListRecipesOpts) (string, []any) {
	conds := make([]string, 0, 5)
	args := make([]any, 0, 5)

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !opts.IncludePrivate {
		conds = append(conds, "is_public")
	}
	if opts.AuthorID != uuid.Nil {
		conds = append(conds, "author_id = "+next(opts.AuthorID))
	}
	if opts.Search != "" {
		p := next("%" + opts.Search + "%")
		conds = append(conds, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}
	if opts.Category != "" {
		conds = append(conds, "category = "+next(opts.Category))
	}
	if opts.Difficulty != "" {
		conds = append(conds, "difficulty = "+next(opts.Difficulty))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func rowToRecipe(row pgx.CollectableRow) (models.Recipe, error) {
	var r models.Recipe
	err := row.Scan(
		&r.ID, &r.AuthorID, &r.Title, &r.Description, &r.Ingredients, &r.Instructions,
		&r.CookingTime, &r.Servings, &r.ImageURL, &r.Category, &r.Difficulty,
		&r.IsPublic, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}
