package draft

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/noot-app/recipebox/internal/config"
	"github.com/noot-app/recipebox/internal/types"
)

type fakeNutrition struct {
	mu      sync.Mutex
	names   []string
	resets  int
	lastSet []string
}

func (f *fakeNutrition) Reset(ctx context.Context, names []string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.names = append([]string{}, names...)
	f.lastSet = append([]string{}, names...)
	return uint64(f.resets)
}

func (f *fakeNutrition) Add(ctx context.Context, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
}

func (f *fakeNutrition) RemoveAt(index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names[:index], f.names[index+1:]...)
	return nil
}

func (f *fakeNutrition) Totals() types.Totals {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.names) == 0 {
		return nil
	}
	return &types.NutritionRecord{}
}

func (f *fakeNutrition) snapshot() (names []string, resets int, lastSet []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.names...), f.resets, append([]string{}, f.lastSet...)
}

type fakeCache struct {
	mu      sync.Mutex
	forgets int
}

func (f *fakeCache) Forget() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgets++
}

func (f *fakeCache) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forgets
}

func testLogger() *slog.Logger {
	return config.NewTestLogger(io.Discard, "debug")
}

type fixture struct {
	store     *Store
	storage   *MemoryStorage
	nutrition *fakeNutrition
	cache     *fakeCache
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		storage:   NewMemoryStorage(),
		nutrition: &fakeNutrition{},
		cache:     &fakeCache{},
	}
	f.store = NewStore(f.storage, f.nutrition, f.cache, testLogger())
	return f
}

func savedRecipe(id int64, title string, ingredients, steps []string) types.Recipe {
	return types.Recipe{ID: &id, Title: title, Ingredients: ingredients, Steps: steps}
}
