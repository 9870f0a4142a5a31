package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/noot-app/recipebox/internal/nutrition"
	"github.com/noot-app/recipebox/internal/types"
)

// MockBackend is an in-memory recipe and ingredient collaborator for testing
type MockBackend struct {
	mu          sync.Mutex
	recipes     []types.BackendRecipe
	ingredients map[string]types.NutritionRecord
	names       map[string]string
	nextID      int64
	err         error
	calls       map[string]int
	payloads    []types.RecipePayload
	created     []types.ManualIngredient
}

// NewMockBackend creates an empty mock backend
func NewMockBackend() *MockBackend {
	return &MockBackend{
		ingredients: make(map[string]types.NutritionRecord),
		names:       make(map[string]string),
		nextID:      1,
		calls:       make(map[string]int),
	}
}

// SetError makes every following call fail with err. nil clears it.
func (m *MockBackend) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetIngredient registers nutrition data returned by LookupIngredient
func (m *MockBackend) SetIngredient(name string, rec types.NutritionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingredients[nutrition.Key(name)] = rec
	m.names[nutrition.Key(name)] = name
}

// SetRecipes replaces the stored recipes
func (m *MockBackend) SetRecipes(recipes []types.BackendRecipe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipes = append([]types.BackendRecipe{}, recipes...)
	for _, r := range recipes {
		if r.ID >= m.nextID {
			m.nextID = r.ID + 1
		}
	}
}

// Calls returns how many times method was invoked
func (m *MockBackend) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Payloads returns every create and update body received, in order
func (m *MockBackend) Payloads() []types.RecipePayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.RecipePayload{}, m.payloads...)
}

// CreatedIngredients returns every manual ingredient received
func (m *MockBackend) CreatedIngredients() []types.ManualIngredient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ManualIngredient{}, m.created...)
}

func (m *MockBackend) enter(method string) error {
	m.calls[method]++
	return m.err
}

// ListRecipes returns the stored recipes
func (m *MockBackend) ListRecipes(ctx context.Context) ([]types.BackendRecipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListRecipes"); err != nil {
		return nil, err
	}
	return append([]types.BackendRecipe{}, m.recipes...), nil
}

// GetRecipe returns the recipe with the given id
func (m *MockBackend) GetRecipe(ctx context.Context, id int64) (*types.BackendRecipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetRecipe"); err != nil {
		return nil, err
	}
	for _, r := range m.recipes {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("recipe %d: %w", id, ErrNotFound)
}

// CreateRecipe stores the payload under a fresh id
func (m *MockBackend) CreateRecipe(ctx context.Context, payload types.RecipePayload) (*types.BackendRecipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateRecipe"); err != nil {
		return nil, err
	}
	m.payloads = append(m.payloads, payload)
	rec := fromPayload(m.nextID, payload)
	m.nextID++
	m.recipes = append(m.recipes, rec)
	return &rec, nil
}

// UpdateRecipe replaces the recipe with the given id
func (m *MockBackend) UpdateRecipe(ctx context.Context, id int64, payload types.RecipePayload) (*types.BackendRecipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateRecipe"); err != nil {
		return nil, err
	}
	m.payloads = append(m.payloads, payload)
	for i := range m.recipes {
		if m.recipes[i].ID == id {
			m.recipes[i] = fromPayload(id, payload)
			rec := m.recipes[i]
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("recipe %d: %w", id, ErrNotFound)
}

// DeleteRecipe removes the recipe with the given id
func (m *MockBackend) DeleteRecipe(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteRecipe"); err != nil {
		return err
	}
	for i := range m.recipes {
		if m.recipes[i].ID == id {
			m.recipes = append(m.recipes[:i], m.recipes[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("recipe %d: %w", id, ErrNotFound)
}

// LookupIngredient returns registered nutrition data or nil
func (m *MockBackend) LookupIngredient(ctx context.Context, name string) (*types.NutritionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("LookupIngredient"); err != nil {
		return nil, err
	}
	rec, ok := m.ingredients[nutrition.Key(name)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// CreateIngredient records the entry and makes it available to lookups
func (m *MockBackend) CreateIngredient(ctx context.Context, entry types.ManualIngredient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateIngredient"); err != nil {
		return err
	}
	m.created = append(m.created, entry)
	m.ingredients[nutrition.Key(entry.Name)] = entry.Record()
	m.names[nutrition.Key(entry.Name)] = entry.Name
	return nil
}

// ListIngredients returns every registered ingredient sorted by name
func (m *MockBackend) ListIngredients(ctx context.Context) ([]types.ManualIngredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListIngredients"); err != nil {
		return nil, err
	}
	out := make([]types.ManualIngredient, 0, len(m.ingredients))
	for key, rec := range m.ingredients {
		out = append(out, types.ManualIngredient{Name: m.names[key], Protein: rec.Protein, Carbs: rec.Carbs, Fat: rec.Fat})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// HealthCheck fails only when an error is set
func (m *MockBackend) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enter("HealthCheck")
}

func fromPayload(id int64, p types.RecipePayload) types.BackendRecipe {
	rec := types.BackendRecipe{
		ID:          id,
		Title:       p.Title,
		Description: p.Description,
		Ingredients: make([]types.BackendIngredient, 0, len(p.Ingredients)),
		Steps:       make([]types.BackendStep, 0, len(p.Steps)),
	}
	for i, ing := range p.Ingredients {
		bi := types.BackendIngredient{ID: int64(i + 1), Name: ing.Name}
		bi.Pivot = &struct {
			Quantity string `json:"quantity"`
		}{Quantity: ing.Quantity}
		rec.Ingredients = append(rec.Ingredients, bi)
	}
	for i, st := range p.Steps {
		rec.Steps = append(rec.Steps, types.BackendStep{ID: int64(i + 1), Description: st.Description, StepNumber: st.StepNumber})
	}
	return rec
}
