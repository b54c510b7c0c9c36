package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

type Recipe struct {
	ID           uuid.UUID
	AuthorID     uuid.UUID
	Title        string
	Description  string
	Ingredients  []string
	Instructions string
	CookingTime  int // minutes
	Servings     int
	ImageURL     string
	Category     string
	Difficulty   string
	IsPublic     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RecipeStats totals for a single author
type RecipeStats struct {
	Total   int64
	Public  int64
	Private int64
}
