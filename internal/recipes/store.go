// Package recipes owns the list of saved recipes and mediates create, update
// and delete against the backend.
package recipes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/noot-app/recipebox/internal/types"
)

var (
	// ErrUnsavedRecipe is returned when an update is attempted without an id
	ErrUnsavedRecipe = errors.New("recipe has no id")
	// ErrIndexOutOfRange is returned for list positions that do not exist
	ErrIndexOutOfRange = errors.New("recipe index out of range")
)

// Backend is the recipe CRUD collaborator
type Backend interface {
	ListRecipes(ctx context.Context) ([]types.BackendRecipe, error)
	CreateRecipe(ctx context.Context, payload types.RecipePayload) (*types.BackendRecipe, error)
	UpdateRecipe(ctx context.Context, id int64, payload types.RecipePayload) (*types.BackendRecipe, error)
	DeleteRecipe(ctx context.Context, id int64) error
}

// Store holds the saved-recipe list. The list only changes after the backend
// accepted the corresponding call.
type Store struct {
	backend Backend
	log     *slog.Logger

	mu      sync.RWMutex
	recipes []types.Recipe
}

// NewStore creates an empty store
func NewStore(backend Backend, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		log:     logger,
		recipes: []types.Recipe{},
	}
}

// Refresh replaces the list with the backend's current recipes
func (s *Store) Refresh(ctx context.Context) error {
	start := time.Now()
	s.log.Debug("Recipe refresh starting")

	remote, err := s.backend.ListRecipes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list recipes: %w", err)
	}

	list := make([]types.Recipe, 0, len(remote))
	for _, r := range remote {
		list = append(list, r.Normalize())
	}

	s.mu.Lock()
	s.recipes = list
	s.mu.Unlock()

	s.log.Debug("Recipe refresh completed", "count", len(list), "duration", time.Since(start))
	return nil
}

// List returns a copy of the saved recipes
func (s *Store) List() []types.Recipe {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Recipe, len(s.recipes))
	for i, r := range s.recipes {
		out[i] = r.Clone()
	}
	return out
}

// Len returns the number of saved recipes
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recipes)
}

// Get returns a copy of the recipe at index
func (s *Store) Get(index int) (types.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.recipes) {
		return types.Recipe{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return s.recipes[index].Clone(), nil
}

// IndexOf returns the list position of the recipe with id, or -1
func (s *Store) IndexOf(id int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOfLocked(id)
}

func (s *Store) indexOfLocked(id int64) int {
	for i := range s.recipes {
		if sameID(s.recipes[i].ID, id) {
			return i
		}
	}
	return -1
}

func sameID(have *int64, want int64) bool {
	return have != nil && *have == want
}

// Create persists a new recipe and appends the normalized response
func (s *Store) Create(ctx context.Context, payload types.RecipePayload) (types.Recipe, error) {
	created, err := s.backend.CreateRecipe(ctx, payload)
	if err != nil {
		return types.Recipe{}, fmt.Errorf("failed to create recipe: %w", err)
	}
	recipe := created.Normalize()

	s.mu.Lock()
	s.recipes = append(s.recipes, recipe)
	s.mu.Unlock()

	s.log.Info("Recipe created", "id", created.ID, "title", recipe.Title)
	return recipe.Clone(), nil
}

// Update replaces the recipe at index. id must be the saved recipe's id; a nil
// id never reaches the backend.
func (s *Store) Update(ctx context.Context, index int, id *int64, payload types.RecipePayload) (types.Recipe, error) {
	if id == nil {
		return types.Recipe{}, ErrUnsavedRecipe
	}

	updated, err := s.backend.UpdateRecipe(ctx, *id, payload)
	if err != nil {
		return types.Recipe{}, fmt.Errorf("failed to update recipe %d: %w", *id, err)
	}
	recipe := updated.Normalize()

	s.mu.Lock()
	switch {
	case index >= 0 && index < len(s.recipes) && sameID(s.recipes[index].ID, *id):
		s.recipes[index] = recipe
	default:
		// the list moved underneath us; match by id
		if i := s.indexOfLocked(*id); i >= 0 {
			s.recipes[i] = recipe
		} else {
			s.recipes = append(s.recipes, recipe)
		}
	}
	s.mu.Unlock()

	s.log.Info("Recipe updated", "id", *id, "title", recipe.Title)
	return recipe.Clone(), nil
}

// Delete removes the recipe at index from the backend and then from the list
func (s *Store) Delete(ctx context.Context, index int) error {
	target, err := s.Get(index)
	if err != nil {
		return err
	}
	if target.ID == nil {
		return ErrUnsavedRecipe
	}

	if err := s.backend.DeleteRecipe(ctx, *target.ID); err != nil {
		return fmt.Errorf("failed to delete recipe %d: %w", *target.ID, err)
	}

	s.mu.Lock()
	if i := s.indexOfLocked(*target.ID); i >= 0 {
		s.recipes = append(s.recipes[:i], s.recipes[i+1:]...)
	}
	s.mu.Unlock()

	s.log.Info("Recipe deleted", "id", *target.ID, "index", index)
	return nil
}

// BuildPayload converts draft content to the wire body. Step numbers follow
// display order and blank quantities become types.DefaultQuantity.
func BuildPayload(title, description string, ingredients []types.IngredientLine, steps []string) types.RecipePayload {
	p := types.RecipePayload{
		Title:       strings.TrimSpace(title),
		Ingredients: make([]types.PayloadIngredient, 0, len(ingredients)),
		Steps:       make([]types.PayloadStep, 0, len(steps)),
	}
	if d := strings.TrimSpace(description); d != "" {
		p.Description = &d
	}
	for _, line := range ingredients {
		qty := strings.TrimSpace(line.Quantity)
		if qty == "" {
			qty = types.DefaultQuantity
		}
		p.Ingredients = append(p.Ingredients, types.PayloadIngredient{Name: line.Name, Quantity: qty})
	}
	for i, desc := range steps {
		p.Steps = append(p.Steps, types.PayloadStep{Description: desc, StepNumber: i + 1})
	}
	return p
}
