package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sonht113/recipebook/internal/apperrors"
	"github.com/sonht113/recipebook/internal/handlers/render"
	"github.com/sonht113/recipebook/internal/handlers/userctx"
	"github.com/sonht113/recipebook/internal/logger"
	"github.com/sonht113/recipebook/internal/models"
	"github.com/sonht113/recipebook/internal/service/recipe"
)

// Recipe service
type RecipeService interface {
	Create(ctx context.Context, authorID uuid.UUID, r models.Recipe) (models.Recipe, error)
	Get(ctx context.Context, viewerID uuid.UUID, id uuid.UUID) (models.Recipe, error)
	Update(ctx context.Context, authorID uuid.UUID, r models.Recipe) (models.Recipe, error)
	Delete(ctx context.Context, authorID uuid.UUID, id uuid.UUID) error
	List(ctx context.Context, opts recipe.ListOpts) (recipe.RecipePage, error)
	ListOwn(ctx context.Context, authorID uuid.UUID, page int, limit int) (recipe.RecipePage, error)
	Categories(ctx context.Context) ([]string, error)
	Stats(ctx context.Context, authorID uuid.UUID) (models.RecipeStats, error)
}

type RecipeHandler struct {
	recipes RecipeService
	logger  logger.Logger
}

func NewRecipe(recipes RecipeService, logger logger.Logger) *RecipeHandler {
	return &RecipeHandler{recipes: recipes, logger: logger}
}

type recipeResponse struct {
	ID           uuid.UUID `json:"id"`
	AuthorID     uuid.UUID `json:"authorId"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Ingredients  []string  `json:"ingredients"`
	Instructions string    `json:"instructions"`
	CookingTime  int       `json:"cookingTime"`
	Servings     int       `json:"servings"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	Category     string    `json:"category,omitempty"`
	Difficulty   string    `json:"difficulty,omitempty"`
	IsPublic     bool      `json:"isPublic"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func newRecipeResponse(r models.Recipe) recipeResponse {
	return recipeResponse{
		ID:           r.ID,
		AuthorID:     r.AuthorID,
		Title:        r.Title,
		Description:  r.Description,
		Ingredients:  r.Ingredients,
		Instructions: r.Instructions,
		CookingTime:  r.CookingTime,
		Servings:     r.Servings,
		ImageURL:     r.ImageURL,
		Category:     r.Category,
		Difficulty:   r.Difficulty,
		IsPublic:     r.IsPublic,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type recipePageResponse struct {
	Recipes    []recipeResponse `json:"recipes"`
	Pagination paginationInfo   `json:"pagination"`
}

type paginationInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func newRecipePageResponse(page recipe.RecipePage) recipePageResponse {
	recipes := make([]recipeResponse, 0, len(page.Recipes))
	for _, r := range page.Recipes {
		recipes = append(recipes, newRecipeResponse(r))
	}

	return recipePageResponse{
		Recipes: recipes,
		Pagination: paginationInfo{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      page.Total,
			TotalPages: page.TotalPages,
		},
	}
}

type recipeRequest struct {
	Title        string   `json:"title" validate:"required,min=3"`
	Description  string   `json:"description"`
	Ingredients  []string `json:"ingredients" validate:"required,min=1,dive,required"`
	Instructions string   `json:"instructions" validate:"required,min=10"`
	CookingTime  int      `json:"cookingTime" validate:"required,gt=0"`
	Servings     int      `json:"servings" validate:"required,gt=0"`
	ImageURL     string   `json:"imageUrl" validate:"omitempty,url"`
	Category     string   `json:"category"`
	Difficulty   string   `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	IsPublic     *bool    `json:"isPublic"`
}

func (req recipeRequest) toModel() models.Recipe {
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	return models.Recipe{
		Title:        req.Title,
		Description:  req.Description,
		Ingredients:  req.Ingredients,
		Instructions: req.Instructions,
		CookingTime:  req.CookingTime,
		Servings:     req.Servings,
		ImageURL:     req.ImageURL,
		Category:     req.Category,
		Difficulty:   req.Difficulty,
		IsPublic:     isPublic,
	}
}

func (h *RecipeHandler) create(w http.ResponseWriter, r *http.Request) {
	data, err := render.BindAndValidate[recipeRequest](w, r)
	if err != nil {
		return
	}

	principal, _ := userctx.FromContext(r.Context())

	created, err := h.recipes.Create(r.Context(), principal.UserID, data.toModel())
	if err != nil {
		h.logger.Error("Failed to create recipe", "error", err, "user_id", principal.UserID)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSONWithStatus(w, newRecipeResponse(created), http.StatusCreated)
}

func (h *RecipeHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid recipe id", http.StatusBadRequest)
		return
	}

	// Viewer is optional here: logged-in users can see their private recipes
	principal, _ := userctx.FromContext(r.Context())

	found, err := h.recipes.Get(r.Context(), principal.UserID, id)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRecipeNotFound):
			render.ServiceError(w, "Recipe not found", http.StatusNotFound)
		default:
			h.logger.Error("Failed to get recipe", "error", err, "recipe_id", id)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, newRecipeResponse(found))
}

func (h *RecipeHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid recipe id", http.StatusBadRequest)
		return
	}

	data, err := render.BindAndValidate[recipeRequest](w, r)
	if err != nil {
		return
	}

	principal, _ := userctx.FromContext(r.Context())

	updated := data.toModel()
	updated.ID = id

	saved, err := h.recipes.Update(r.Context(), principal.UserID, updated)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRecipeNotFound):
			render.ServiceError(w, "Recipe not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrRecipeForbidden):
			render.ServiceError(w, "You can only edit your own recipes", http.StatusForbidden)
		default:
			h.logger.Error("Failed to update recipe", "error", err, "recipe_id", id)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, newRecipeResponse(saved))
}

func (h *RecipeHandler) del(w http.ResponseWriter, r *http.Request) {
	type DeleteResponse struct {
		Message string `json:"message"`
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid recipe id", http.StatusBadRequest)
		return
	}

	principal, _ := userctx.FromContext(r.Context())

	if err := h.recipes.Delete(r.Context(), principal.UserID, id); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRecipeNotFound):
			render.ServiceError(w, "Recipe not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrRecipeForbidden):
			render.ServiceError(w, "You can only delete your own recipes", http.StatusForbidden)
		default:
			h.logger.Error("Failed to delete recipe", "error", err, "recipe_id", id)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, DeleteResponse{Message: "Recipe deleted successfully"})
}

func (h *RecipeHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := recipe.ListOpts{
		Page:       queryInt(q.Get("page")),
		Limit:      queryInt(q.Get("limit")),
		Search:     q.Get("search"),
		Category:   q.Get("category"),
		Difficulty: q.Get("difficulty"),
	}

	if author := q.Get("authorId"); author != "" {
		authorID, err := uuid.Parse(author)
		if err != nil {
			render.ServiceError(w, "Invalid author id", http.StatusBadRequest)
			return
		}
		opts.AuthorID = authorID
	}

	page, err := h.recipes.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("Failed to list recipes", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, newRecipePageResponse(page))
}

func (h *RecipeHandler) listOwn(w http.ResponseWriter, r *http.Request) {
	principal, _ := userctx.FromContext(r.Context())
	q := r.URL.Query()

	page, err := h.recipes.ListOwn(r.Context(), principal.UserID, queryInt(q.Get("page")), queryInt(q.Get("limit")))
	if err != nil {
		h.logger.Error("Failed to list own recipes", "error", err, "user_id", principal.UserID)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, newRecipePageResponse(page))
}

func (h *RecipeHandler) categories(w http.ResponseWriter, r *http.Request) {
	type CategoriesResponse struct {
		Categories []string `json:"categories"`
	}

	categories, err := h.recipes.Categories(r.Context())
	if err != nil {
		h.logger.Error("Failed to list categories", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, CategoriesResponse{Categories: categories})
}

func (h *RecipeHandler) stats(w http.ResponseWriter, r *http.Request) {
	type StatsResponse struct {
		TotalRecipes   int64 `json:"totalRecipes"`
		PublicRecipes  int64 `json:"publicRecipes"`
		PrivateRecipes int64 `json:"privateRecipes"`
	}

	principal, _ := userctx.FromContext(r.Context())

	stats, err := h.recipes.Stats(r.Context(), principal.UserID)
	if err != nil {
		h.logger.Error("Failed to get recipe stats", "error", err, "user_id", principal.UserID)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, StatsResponse{
		TotalRecipes:   stats.Total,
		PublicRecipes:  stats.Public,
		PrivateRecipes: stats.Private,
	})
}

// queryInt parses a pagination query param, zero on anything invalid
// (services normalize zeros to defaults)
func queryInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}
