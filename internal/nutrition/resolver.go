package nutrition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/noot-app/recipebox/internal/types"
)

// ErrInvalidManualEntry is returned when a manual ingredient submission is
// rejected before reaching the backend
var ErrInvalidManualEntry = errors.New("invalid manual ingredient")

// Lookup resolves an ingredient name against a nutrition source. A nil record
// with a nil error means the source has no match.
type Lookup interface {
	LookupIngredient(ctx context.Context, name string) (*types.NutritionRecord, error)
}

// IngredientCreator persists a manually entered ingredient
type IngredientCreator interface {
	CreateIngredient(ctx context.Context, entry types.ManualIngredient) error
}

// Outcome is the result kind of a resolution
type Outcome int

const (
	// Resolved means a usable record was found
	Resolved Outcome = iota
	// NotFound means the name must go through manual entry
	NotFound
)

func (o Outcome) String() string {
	if o == Resolved {
		return "resolved"
	}
	return "not_found"
}

// Result is the outcome of resolving one ingredient name
type Result struct {
	Name    string
	Outcome Outcome
	Record  types.NutritionRecord
	Cached  bool
}

// Resolver turns ingredient names into nutrition records, consulting the cache
// before the lookup source. It is the only writer of its cache.
type Resolver struct {
	cache   *Cache
	lookup  Lookup
	creator IngredientCreator
	log     *slog.Logger
}

// NewResolver creates a resolver with an empty cache
func NewResolver(lookup Lookup, creator IngredientCreator, logger *slog.Logger) *Resolver {
	return &Resolver{
		cache:   NewCache(),
		lookup:  lookup,
		creator: creator,
		log:     logger,
	}
}

// Resolve looks up name. Lookup failures and empty records both yield NotFound,
// and negative results are never cached.
func (r *Resolver) Resolve(ctx context.Context, name string) Result {
	name = strings.TrimSpace(name)
	if rec, ok := r.cache.Lookup(name); ok {
		r.log.Debug("Resolve cache hit", "name", name)
		return Result{Name: name, Outcome: Resolved, Record: rec, Cached: true}
	}

	start := time.Now()
	rec, err := r.lookup.LookupIngredient(ctx, name)
	if err != nil {
		r.log.Warn("Ingredient lookup failed, falling back to manual entry", "name", name, "error", err, "duration", time.Since(start))
		return Result{Name: name, Outcome: NotFound}
	}
	if rec == nil || rec.IsEmpty() {
		r.log.Info("Ingredient not found", "name", name, "duration", time.Since(start))
		return Result{Name: name, Outcome: NotFound}
	}

	r.cache.Store(name, *rec)
	r.log.Debug("Ingredient resolved", "name", name, "protein", rec.Protein, "carbs", rec.Carbs, "fat", rec.Fat, "duration", time.Since(start))
	return Result{Name: name, Outcome: Resolved, Record: *rec}
}

// SubmitManual validates a manual entry, persists it through the backend and
// caches it. Entries with any macro not strictly positive never reach the backend.
func (r *Resolver) SubmitManual(ctx context.Context, entry types.ManualIngredient) (types.NutritionRecord, error) {
	entry.Name = strings.TrimSpace(entry.Name)
	if entry.Name == "" {
		return types.NutritionRecord{}, fmt.Errorf("%w: name is required", ErrInvalidManualEntry)
	}
	if !entry.Record().AllPositive() {
		return types.NutritionRecord{}, fmt.Errorf("%w: protein, carbs and fat must all be greater than zero", ErrInvalidManualEntry)
	}

	if err := r.creator.CreateIngredient(ctx, entry); err != nil {
		r.log.Error("Failed to persist manual ingredient", "name", entry.Name, "error", err)
		return types.NutritionRecord{}, fmt.Errorf("failed to create ingredient %q: %w", entry.Name, err)
	}

	rec := entry.Record()
	r.cache.Store(entry.Name, rec)
	r.log.Info("Manual ingredient stored", "name", entry.Name)
	return rec, nil
}

// Known reports whether name is already resolved in this session
func (r *Resolver) Known(name string) bool {
	_, ok := r.cache.Lookup(name)
	return ok
}

// Forget clears the cache. Only an explicit draft reset calls this.
func (r *Resolver) Forget() {
	r.cache.Clear()
	r.log.Debug("Ingredient cache cleared")
}
