package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sonht113/recipebook/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with email exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, email string, name string, hashedPassword string) (models.User, error)

	// Get user by id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Replace user password hash
	// If user not found must return apperrors.ErrUserNotFound
	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Persist token. Token value has unique constraint
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Delete token and return the deleted row
	// The delete-by-exact-value is the single-use claim: when two requests
	// race on the same token exactly one take succeeds, the other must get
	// apperrors.ErrRefreshTokenNotFound
	Take(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Delete the exact token. Idempotent: absence is not an error
	Delete(ctx context.Context, tokenString string) error

	// Delete every token of the user (logout everywhere, password change)
	DeleteForUser(ctx context.Context, userID uuid.UUID) error

	// Delete all tokens expired before 'before'. Safe to run concurrently
	// with any other operation
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Options to list recipes
type ListRecipesOpts struct {
	// Zero uuid means no filter
	AuthorID uuid.UUID

	// Case insensitive match against title or description
	Search string

	Category   string
	Difficulty string

	// Include private recipes too (only valid when filtering by author)
	IncludePrivate bool

	Limit  int
	Offset int
}

// Recipe repository interface
type RecipeRepo interface {
	CreateRecipe(ctx context.Context, recipe models.Recipe) (models.Recipe, error)

	// If recipe not found must return apperrors.ErrRecipeNotFound
	GetRecipe(ctx context.Context, id uuid.UUID) (models.Recipe, error)
	UpdateRecipe(ctx context.Context, recipe models.Recipe) (models.Recipe, error)
	DeleteRecipe(ctx context.Context, id uuid.UUID) error

	// List recipes with filters and total count for pagination
	ListRecipes(ctx context.Context, opts ListRecipesOpts) ([]models.Recipe, int64, error)

	// Distinct non empty categories over public recipes
	ListCategories(ctx context.Context) ([]string, error)

	CountByAuthor(ctx context.Context, authorID uuid.UUID) (models.RecipeStats, error)
}

// Storage aggregates repositories over a single connection or transaction
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Recipe() RecipeRepo

	// Run fn inside a database transaction
	// fn receives a Storage bound to the transaction
	InTx(ctx context.Context, fn func(Storage) error) error
}
