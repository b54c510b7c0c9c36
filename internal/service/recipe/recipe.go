package recipe

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sonht113/recipebook/internal/apperrors"
	"github.com/sonht113/recipebook/internal/models"
	"github.com/sonht113/recipebook/internal/repository"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// Filters and pagination for public recipe listing
type ListOpts struct {
	Page       int
	Limit      int
	Search     string
	Category   string
	Difficulty string
	AuthorID   uuid.UUID
}

// Page of recipes plus pagination info
type RecipePage struct {
	Recipes    []models.Recipe
	Page       int
	Limit      int
	Total      int64
	TotalPages int
}

type RecipeService struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) (*RecipeService, error) {
	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}

	return &RecipeService{storage: storage}, nil
}

func (s *RecipeService) Create(ctx context.Context, authorID uuid.UUID, recipe models.Recipe) (models.Recipe, error) {
	recipe.AuthorID = authorID
	return s.storage.Recipe().CreateRecipe(ctx, recipe)
}

// Get returns the recipe if it is public or belongs to the viewer.
// Private recipes of other users are reported as not found, not forbidden,
// so their existence doesn't leak.
func (s *RecipeService) Get(ctx context.Context, viewerID uuid.UUID, id uuid.UUID) (models.Recipe, error) {
	recipe, err := s.storage.Recipe().GetRecipe(ctx, id)
	if err != nil {
		return models.Recipe{}, err
	}

	if !recipe.IsPublic && recipe.AuthorID != viewerID {
		return models.Recipe{}, apperrors.ErrRecipeNotFound
	}

	return recipe, nil
}

// Update replaces recipe fields. Author only.
func (s *RecipeService) Update(ctx context.Context, authorID uuid.UUID, updated models.Recipe) (models.Recipe, error) {
	existing, err := s.storage.Recipe().GetRecipe(ctx, updated.ID)
	if err != nil {
		return models.Recipe{}, err
	}

	if existing.AuthorID != authorID {
		return models.Recipe{}, apperrors.ErrRecipeForbidden
	}

	return s.storage.Recipe().UpdateRecipe(ctx, updated)
}

// Delete removes the recipe. Author only.
func (s *RecipeService) Delete(ctx context.Context, authorID uuid.UUID, id uuid.UUID) error {
	existing, err := s.storage.Recipe().GetRecipe(ctx, id)
	if err != nil {
		return err
	}

	if existing.AuthorID != authorID {
		return apperrors.ErrRecipeForbidden
	}

	return s.storage.Recipe().DeleteRecipe(ctx, id)
}

// List returns a page of public recipes matching the filters
func (s *RecipeService) List(ctx context.Context, opts ListOpts) (RecipePage, error) {
	page, limit := normalizePage(opts.Page, opts.Limit)

	recipes, total, err := s.storage.Recipe().ListRecipes(ctx, repository.ListRecipesOpts{
		AuthorID:   opts.AuthorID,
		Search:     opts.Search,
		Category:   opts.Category,
		Difficulty: opts.Difficulty,
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		return RecipePage{}, err
	}

	return newPage(recipes, page, limit, total), nil
}

// ListOwn returns a page of the author's recipes, private ones included
func (s *RecipeService) ListOwn(ctx context.Context, authorID uuid.UUID, pageNum int, limit int) (RecipePage, error) {
	page, limit := normalizePage(pageNum, limit)

	recipes, total, err := s.storage.Recipe().ListRecipes(ctx, repository.ListRecipesOpts{
		AuthorID:       authorID,
		IncludePrivate: true,
		Limit:          limit,
		Offset:         (page - 1) * limit,
	})
	if err != nil {
		return RecipePage{}, err
	}

	return newPage(recipes, page, limit, total), nil
}

func (s *RecipeService) Categories(ctx context.Context) ([]string, error) {
	return s.storage.Recipe().ListCategories(ctx)
}

func (s *RecipeService) Stats(ctx context.Context, authorID uuid.UUID) (models.RecipeStats, error) {
	return s.storage.Recipe().CountByAuthor(ctx, authorID)
}

func normalizePage(page int, limit int) (int, int) {
	if page < 1 {
		page = 1
	}

	switch {
	case limit < 1:
		limit = defaultPageLimit
	case limit > maxPageLimit:
		limit = maxPageLimit
	}

	return page, limit
}

func newPage(recipes []models.Recipe, page int, limit int, total int64) RecipePage {
	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return RecipePage{
		Recipes:    recipes,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}
