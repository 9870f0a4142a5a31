// Package session wires the draft, the nutrition engine and the saved-recipe
// list into the operations a client performs.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/noot-app/recipebox/internal/backend"
	"github.com/noot-app/recipebox/internal/config"
	"github.com/noot-app/recipebox/internal/draft"
	"github.com/noot-app/recipebox/internal/nutrition"
	"github.com/noot-app/recipebox/internal/recipes"
	"github.com/noot-app/recipebox/internal/types"
)

// Backend is the recipe and ingredient collaborator
type Backend interface {
	recipes.Backend
	nutrition.IngredientCreator
	GetRecipe(ctx context.Context, id int64) (*types.BackendRecipe, error)
	ListIngredients(ctx context.Context) ([]types.ManualIngredient, error)
}

// Options configures a Session
type Options struct {
	Lookup           nutrition.Lookup
	Backend          Backend
	Storage          draft.Storage
	Concurrency      int
	AutosaveInterval time.Duration
}

// View is everything a client renders
type View struct {
	Draft      draft.Snapshot `json:"draft"`
	Unresolved []string       `json:"unresolved"`
	Pending    int            `json:"pending"`
	Recipes    []types.Recipe `json:"recipes"`
}

// Session is one user's recipe workspace
type Session struct {
	resolver   *nutrition.Resolver
	aggregator *nutrition.Aggregator
	draft      *draft.Store
	recipes    *recipes.Store
	autosaver  *draft.Autosaver
	backend    Backend
	storage    draft.Storage
	log        *slog.Logger
}

// New builds a session. Call Start before use and Close when done.
func New(opts Options, logger *slog.Logger) *Session {
	resolver := nutrition.NewResolver(opts.Lookup, opts.Backend, config.Component(logger, "resolver"))
	aggregator := nutrition.NewAggregator(resolver, opts.Concurrency, config.Component(logger, "aggregator"))
	store := draft.NewStore(opts.Storage, aggregator, resolver, config.Component(logger, "draft"))

	s := &Session{
		resolver:   resolver,
		aggregator: aggregator,
		draft:      store,
		recipes:    recipes.NewStore(opts.Backend, config.Component(logger, "recipes")),
		autosaver:  draft.NewAutosaver(store, opts.AutosaveInterval, config.Component(logger, "autosave")),
		backend:    opts.Backend,
		storage:    opts.Storage,
		log:        logger,
	}
	aggregator.OnNotFound(func(name string) {
		s.log.Info("Ingredient needs manual entry", "name", name)
	})
	return s
}

// Draft returns the draft store for field edits
func (s *Session) Draft() *draft.Store {
	return s.draft
}

// Recipes returns the saved-recipe store
func (s *Session) Recipes() *recipes.Store {
	return s.recipes
}

// Start restores the persisted draft, starts autosaving and loads the saved
// recipes. A failed recipe load leaves the list empty and is returned.
func (s *Session) Start(ctx context.Context) error {
	start := time.Now()
	s.log.Info("Session starting")

	s.draft.Load(ctx)
	s.autosaver.Start(ctx)

	if err := s.RefreshRecipes(ctx); err != nil {
		s.log.Warn("Failed to load saved recipes", "error", err)
		return err
	}

	s.log.Info("Session started", "recipes", s.recipes.Len(), "duration", time.Since(start))
	return nil
}

// RefreshRecipes reloads the saved recipes and points the draft at the
// edited recipe's new position
func (s *Session) RefreshRecipes(ctx context.Context) error {
	if err := s.recipes.Refresh(ctx); err != nil {
		return err
	}
	s.reconcileEditing(ctx)
	return nil
}

// reconcileEditing follows the edited recipe by id. A recipe missing from the
// list is confirmed against the backend before the draft stops editing it.
func (s *Session) reconcileEditing(ctx context.Context) {
	index, id := s.draft.EditingTarget()
	if id == nil {
		return
	}
	if i := s.recipes.IndexOf(*id); i >= 0 {
		if i != index {
			s.draft.Retarget(ctx, *id, i)
		}
		return
	}

	_, err := s.backend.GetRecipe(ctx, *id)
	switch {
	case err == nil:
		// exists but not listed; saves fall back to matching by id
		s.draft.Retarget(ctx, *id, -1)
	case errors.Is(err, backend.ErrNotFound):
		s.draft.Detach(ctx, *id)
	default:
		s.log.Warn("Failed to confirm edited recipe", "id", *id, "error", err)
	}
}

// Ingredients lists every ingredient the collaborator knows
func (s *Session) Ingredients(ctx context.Context) ([]types.ManualIngredient, error) {
	list, err := s.backend.ListIngredients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	return list, nil
}

// Flush persists the draft now
func (s *Session) Flush(ctx context.Context) {
	s.autosaver.Flush(ctx)
}

// Close stops autosaving, persists the draft a last time and closes storage
func (s *Session) Close(ctx context.Context) error {
	s.autosaver.Stop()
	s.autosaver.Flush(ctx)
	if err := s.storage.Close(); err != nil {
		return fmt.Errorf("failed to close draft storage: %w", err)
	}
	return nil
}

// Save validates the draft and creates or updates the recipe. The draft is
// emptied only after the backend accepted it.
func (s *Session) Save(ctx context.Context) (types.Recipe, error) {
	if err := s.draft.Validate(); err != nil {
		return types.Recipe{}, err
	}

	snap := s.draft.Snapshot()
	payload := recipes.BuildPayload(snap.Form.Title, snap.Form.Description, snap.Form.Ingredients, snap.Form.Steps)

	var (
		saved types.Recipe
		err   error
	)
	index, id := s.draft.EditingTarget()
	if id != nil {
		saved, err = s.recipes.Update(ctx, index, id, payload)
	} else {
		saved, err = s.recipes.Create(ctx, payload)
	}
	if err != nil {
		return types.Recipe{}, err
	}

	s.draft.CompleteSave(ctx)
	return saved, nil
}

// EditRecipe loads the saved recipe at index into the draft
func (s *Session) EditRecipe(ctx context.Context, index int) error {
	recipe, err := s.recipes.Get(index)
	if err != nil {
		return err
	}
	s.draft.Edit(ctx, index, recipe)
	return nil
}

// DeleteRecipe deletes the saved recipe at index and realigns the draft
func (s *Session) DeleteRecipe(ctx context.Context, index int) error {
	if err := s.recipes.Delete(ctx, index); err != nil {
		return err
	}
	s.draft.OnRecipeDeleted(ctx, index)
	return nil
}

// SubmitManualIngredient stores user-entered nutrition for an ingredient the
// lookup could not resolve and applies it to every waiting occurrence. It
// returns the number of occurrences updated.
func (s *Session) SubmitManualIngredient(ctx context.Context, entry types.ManualIngredient) (types.NutritionRecord, int, error) {
	rec, err := s.resolver.SubmitManual(ctx, entry)
	if err != nil {
		return types.NutritionRecord{}, 0, err
	}
	applied := s.aggregator.ApplyManual(entry.Name, rec)
	return rec, applied, nil
}

// Snapshot returns the current view
func (s *Session) Snapshot() View {
	unresolved := s.aggregator.Unresolved()
	if unresolved == nil {
		unresolved = []string{}
	}
	return View{
		Draft:      s.draft.Snapshot(),
		Unresolved: unresolved,
		Pending:    s.aggregator.Pending(),
		Recipes:    s.recipes.List(),
	}
}

// Wait blocks until every in-flight ingredient lookup has completed
func (s *Session) Wait() {
	s.aggregator.Wait()
}
