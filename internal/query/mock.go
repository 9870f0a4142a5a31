package query

import (
	"context"
	"log/slog"
	"sync"

	"github.com/noot-app/recipebox/internal/nutrition"
	"github.com/noot-app/recipebox/internal/types"
)

// MockEngine is a mock implementation for testing and local runs
type MockEngine struct {
	mu    sync.Mutex
	foods map[string]types.NutritionRecord
	err   error
	calls int
	log   *slog.Logger
}

var _ IngredientEngine = (*MockEngine)(nil)

// NewMockEngine creates a mock engine seeded with a few common ingredients
func NewMockEngine(logger *slog.Logger) *MockEngine {
	m := &MockEngine{log: logger, foods: map[string]types.NutritionRecord{}}
	m.SetFood("egg", types.NutritionRecord{Protein: 12.6, Carbs: 0.7, Fat: 9.5})
	m.SetFood("cheese", types.NutritionRecord{Protein: 25, Carbs: 1.3, Fat: 33})
	m.SetFood("butter", types.NutritionRecord{Protein: 0.9, Carbs: 0.1, Fat: 81})
	m.SetFood("flour", types.NutritionRecord{Protein: 10, Carbs: 76, Fat: 1})
	m.SetFood("milk", types.NutritionRecord{Protein: 3.4, Carbs: 4.8, Fat: 3.6})
	return m
}

// LookupIngredient returns the seeded record for name, or nil
func (m *MockEngine) LookupIngredient(ctx context.Context, name string) (*types.NutritionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.foods[nutrition.Key(name)]
	if !ok {
		m.log.Debug("Mock lookup miss", "name", name)
		return nil, nil
	}
	return &rec, nil
}

// TestConnection returns the configured error
func (m *MockEngine) TestConnection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Close closes the mock engine (no-op)
func (m *MockEngine) Close() error {
	return nil
}

// SetError sets an error to be returned by the mock
func (m *MockEngine) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetFood registers or replaces an ingredient
func (m *MockEngine) SetFood(name string, rec types.NutritionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.foods[nutrition.Key(name)] = rec
}

// Calls returns how many lookups were made
func (m *MockEngine) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
