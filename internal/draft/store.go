// Package draft holds the single recipe being composed or edited, along with
// its input buffers, and keeps it in durable storage.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/noot-app/recipebox/internal/types"
)

// Storage keys of the two independently persisted records
const (
	FormDataKey = "recipe_form_data"
	InputsKey   = "recipe_inputs"
)

var (
	// ErrInvalidDraft is returned when the draft cannot be saved yet
	ErrInvalidDraft = errors.New("invalid draft")
	// ErrIndexOutOfRange is returned for ingredient or step positions that do not exist
	ErrIndexOutOfRange = errors.New("draft index out of range")
)

// Mode is the draft lifecycle state
type Mode string

const (
	ModeEmpty     Mode = "empty"
	ModeComposing Mode = "composing"
	ModeEditing   Mode = "editing"
)

func (m Mode) String() string {
	return string(m)
}

// Nutrition is the running-total engine fed by ingredient edits
type Nutrition interface {
	Reset(ctx context.Context, names []string) uint64
	Add(ctx context.Context, name string)
	RemoveAt(index int) error
	Totals() types.Totals
}

// CacheResetter drops memoized ingredient lookups
type CacheResetter interface {
	Forget()
}

// Form is the recipe content being composed
type Form struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Ingredients []types.IngredientLine `json:"ingredients"`
	Steps       []string               `json:"steps"`
}

// Names returns the ingredient names in list order
func (f Form) Names() []string {
	names := make([]string, len(f.Ingredients))
	for i, line := range f.Ingredients {
		names[i] = line.Name
	}
	return names
}

func (f Form) clone() Form {
	c := f
	c.Ingredients = append([]types.IngredientLine{}, f.Ingredients...)
	c.Steps = append([]string{}, f.Steps...)
	return c
}

func (f Form) empty() bool {
	return strings.TrimSpace(f.Title) == "" && strings.TrimSpace(f.Description) == "" &&
		len(f.Ingredients) == 0 && len(f.Steps) == 0
}

func emptyForm() Form {
	return Form{Ingredients: []types.IngredientLine{}, Steps: []string{}}
}

type formRecord struct {
	RecipeForm    Form          `json:"recipeForm"`
	EditingRecipe *types.Recipe `json:"editingRecipe"`
	EditingIndex  int           `json:"editingIndex"`
}

type inputsRecord struct {
	NewIngredient string `json:"newIngredient"`
	NewStep       string `json:"newStep"`
}

// Snapshot is a read-only view of the draft
type Snapshot struct {
	ID                string       `json:"id"`
	Mode              Mode         `json:"mode"`
	Form              Form         `json:"form"`
	EditingIndex      int          `json:"editing_index"`
	EditingID         *int64       `json:"editing_id,omitempty"`
	PendingIngredient string       `json:"pending_ingredient"`
	PendingStep       string       `json:"pending_step"`
	Totals            types.Totals `json:"totals"`
}

// Store owns the draft. Every mutation is persisted best-effort.
type Store struct {
	storage   Storage
	nutrition Nutrition
	cache     CacheResetter
	log       *slog.Logger

	mu           sync.Mutex
	id           uuid.UUID
	form         Form
	editing      *types.Recipe
	editingIndex int
	inputs       inputsRecord

	persistMu sync.Mutex
}

// NewStore creates an empty draft
func NewStore(storage Storage, nutrition Nutrition, cache CacheResetter, logger *slog.Logger) *Store {
	return &Store{
		storage:      storage,
		nutrition:    nutrition,
		cache:        cache,
		log:          logger,
		id:           uuid.New(),
		form:         emptyForm(),
		editingIndex: -1,
	}
}

// Mode reports the current lifecycle state
func (s *Store) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modeLocked()
}

func (s *Store) modeLocked() Mode {
	if s.editing != nil && s.editing.Saved() {
		return ModeEditing
	}
	if !s.form.empty() || strings.TrimSpace(s.inputs.NewIngredient) != "" || strings.TrimSpace(s.inputs.NewStep) != "" {
		return ModeComposing
	}
	return ModeEmpty
}

// Snapshot returns a copy of the draft and the current totals
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:                s.id.String(),
		Mode:              s.modeLocked(),
		Form:              s.form.clone(),
		EditingIndex:      s.editingIndex,
		PendingIngredient: s.inputs.NewIngredient,
		PendingStep:       s.inputs.NewStep,
		Totals:            s.nutrition.Totals(),
	}
	if s.editing != nil && s.editing.ID != nil {
		id := *s.editing.ID
		snap.EditingID = &id
	}
	return snap
}

// EditingTarget returns the list index and backend id of the recipe being
// edited. The id is nil while composing a new recipe.
func (s *Store) EditingTarget() (int, *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing == nil || s.editing.ID == nil {
		return -1, nil
	}
	id := *s.editing.ID
	return s.editingIndex, &id
}

// SetTitle replaces the title
func (s *Store) SetTitle(ctx context.Context, title string) {
	s.mu.Lock()
	s.form.Title = title
	s.mu.Unlock()
	s.Persist(ctx)
}

// SetDescription replaces the description
func (s *Store) SetDescription(ctx context.Context, description string) {
	s.mu.Lock()
	s.form.Description = description
	s.mu.Unlock()
	s.Persist(ctx)
}

// SetInputs replaces the pending ingredient and step buffers
func (s *Store) SetInputs(ctx context.Context, ingredient, step string) {
	s.mu.Lock()
	s.inputs = inputsRecord{NewIngredient: ingredient, NewStep: step}
	s.mu.Unlock()
	s.Persist(ctx)
}

// AddIngredient appends an ingredient line and starts resolving it. The
// pending ingredient buffer is cleared.
func (s *Store) AddIngredient(ctx context.Context, name, quantity string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: ingredient name is empty", ErrInvalidDraft)
	}

	s.mu.Lock()
	s.form.Ingredients = append(s.form.Ingredients, types.IngredientLine{Name: name, Quantity: strings.TrimSpace(quantity)})
	s.inputs.NewIngredient = ""
	s.nutrition.Add(ctx, name)
	s.mu.Unlock()

	s.log.Debug("Ingredient added", "name", name)
	s.Persist(ctx)
	return nil
}

// RemoveIngredient removes the ingredient line at index
func (s *Store) RemoveIngredient(ctx context.Context, index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.form.Ingredients) {
		s.mu.Unlock()
		return fmt.Errorf("%w: ingredient %d", ErrIndexOutOfRange, index)
	}
	if err := s.nutrition.RemoveAt(index); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to remove ingredient totals: %w", err)
	}
	s.form.Ingredients = append(s.form.Ingredients[:index], s.form.Ingredients[index+1:]...)
	s.mu.Unlock()

	s.Persist(ctx)
	return nil
}

// AddStep appends a step. The pending step buffer is cleared.
func (s *Store) AddStep(ctx context.Context, description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Errorf("%w: step is empty", ErrInvalidDraft)
	}

	s.mu.Lock()
	s.form.Steps = append(s.form.Steps, description)
	s.inputs.NewStep = ""
	s.mu.Unlock()

	s.Persist(ctx)
	return nil
}

// RemoveStep removes the step at index
func (s *Store) RemoveStep(ctx context.Context, index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.form.Steps) {
		s.mu.Unlock()
		return fmt.Errorf("%w: step %d", ErrIndexOutOfRange, index)
	}
	s.form.Steps = append(s.form.Steps[:index], s.form.Steps[index+1:]...)
	s.mu.Unlock()

	s.Persist(ctx)
	return nil
}

// Edit loads a saved recipe into the draft, replacing whatever was there,
// and recomputes totals over its ingredients.
func (s *Store) Edit(ctx context.Context, index int, recipe types.Recipe) {
	recipe = recipe.Clone()
	form := Form{
		Title:       recipe.Title,
		Description: recipe.Description,
		Ingredients: make([]types.IngredientLine, 0, len(recipe.Ingredients)),
		Steps:       append([]string{}, recipe.Steps...),
	}
	for _, name := range recipe.Ingredients {
		form.Ingredients = append(form.Ingredients, types.IngredientLine{Name: name})
	}

	s.mu.Lock()
	s.id = uuid.New()
	s.form = form
	s.editing = &recipe
	s.editingIndex = index
	s.nutrition.Reset(ctx, form.Names())
	s.mu.Unlock()

	s.log.Info("Editing recipe", "index", index, "title", recipe.Title)
	s.Persist(ctx)
}

// Clear empties the draft and forgets every cached ingredient lookup
func (s *Store) Clear(ctx context.Context) {
	s.reset(ctx)
	s.cache.Forget()
	s.log.Debug("Draft cleared")
}

// CompleteSave empties the draft after the recipe was persisted. Cached
// lookups are kept.
func (s *Store) CompleteSave(ctx context.Context) {
	s.reset(ctx)
}

func (s *Store) reset(ctx context.Context) {
	s.mu.Lock()
	s.id = uuid.New()
	s.form = emptyForm()
	s.editing = nil
	s.editingIndex = -1
	s.inputs = inputsRecord{}
	s.nutrition.Reset(ctx, nil)
	s.mu.Unlock()

	s.Persist(ctx)
	if err := s.storage.Delete(ctx, InputsKey); err != nil {
		s.log.Warn("Failed to clear persisted inputs", "error", err)
	}
}

// OnRecipeDeleted keeps the editing pointer aligned after the saved recipe at
// index was removed from the list
func (s *Store) OnRecipeDeleted(ctx context.Context, index int) {
	s.mu.Lock()
	current := s.editingIndex
	if current > index {
		s.editingIndex--
	}
	s.mu.Unlock()

	switch {
	case current == index:
		s.Clear(ctx)
	case current > index:
		s.Persist(ctx)
	}
}

// Retarget moves the editing pointer to index when the recipe being edited
// still has the given id. It reports whether the pointer was changed.
func (s *Store) Retarget(ctx context.Context, id int64, index int) bool {
	s.mu.Lock()
	if s.editing == nil || s.editing.ID == nil || *s.editing.ID != id || s.editingIndex == index {
		s.mu.Unlock()
		return false
	}
	s.editingIndex = index
	s.mu.Unlock()

	s.log.Debug("Editing pointer moved", "id", id, "index", index)
	s.Persist(ctx)
	return true
}

// Detach drops the link to the recipe with the given id and keeps the form,
// so the next save creates a new recipe
func (s *Store) Detach(ctx context.Context, id int64) bool {
	s.mu.Lock()
	if s.editing == nil || s.editing.ID == nil || *s.editing.ID != id {
		s.mu.Unlock()
		return false
	}
	s.editing = nil
	s.editingIndex = -1
	s.mu.Unlock()

	s.log.Info("Edited recipe no longer exists, composing instead", "id", id)
	s.Persist(ctx)
	return true
}

// Validate reports whether the draft can be saved
func (s *Store) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(s.form.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDraft)
	}
	if len(s.form.Ingredients) == 0 {
		return fmt.Errorf("%w: at least one ingredient is required", ErrInvalidDraft)
	}
	if len(s.form.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrInvalidDraft)
	}
	return nil
}

// Persist writes both draft records. Failures are logged and dropped.
func (s *Store) Persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	form := formRecord{
		RecipeForm:   s.form.clone(),
		EditingIndex: s.editingIndex,
	}
	if s.editing != nil {
		c := s.editing.Clone()
		form.EditingRecipe = &c
	}
	inputs := s.inputs
	s.mu.Unlock()

	s.put(ctx, FormDataKey, form)
	s.put(ctx, InputsKey, inputs)
}

func (s *Store) put(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("Failed to encode draft record", "key", key, "error", err)
		return
	}
	if err := s.storage.Put(ctx, key, data); err != nil {
		s.log.Warn("Failed to persist draft record", "key", key, "error", err)
	}
}

// Load restores the draft from storage. Each record is read on its own;
// a missing or unreadable record leaves that part empty. A restored
// ingredient list triggers a full recompute.
func (s *Store) Load(ctx context.Context) {
	form, okForm := s.loadForm(ctx)
	inputs, okInputs := s.loadInputs(ctx)

	s.mu.Lock()
	if okForm {
		s.form = form.RecipeForm
		s.editing = form.EditingRecipe
		s.editingIndex = form.EditingIndex
		if s.editing == nil {
			s.editingIndex = -1
		}
	}
	if okInputs {
		s.inputs = inputs
	}
	if okForm && len(s.form.Ingredients) > 0 {
		s.nutrition.Reset(ctx, s.form.Names())
	}
	mode := s.modeLocked()
	count := len(s.form.Ingredients)
	s.mu.Unlock()

	s.log.Info("Draft loaded", "mode", mode.String(), "ingredients", count)
}

func (s *Store) loadForm(ctx context.Context) (formRecord, bool) {
	var rec formRecord
	data, ok, err := s.storage.Get(ctx, FormDataKey)
	if err != nil {
		s.log.Warn("Failed to read draft form", "error", err)
		return rec, false
	}
	if !ok {
		return rec, false
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.Warn("Discarding malformed draft form", "error", err)
		return formRecord{}, false
	}
	if rec.RecipeForm.Ingredients == nil {
		rec.RecipeForm.Ingredients = []types.IngredientLine{}
	}
	if rec.RecipeForm.Steps == nil {
		rec.RecipeForm.Steps = []string{}
	}
	return rec, true
}

func (s *Store) loadInputs(ctx context.Context) (inputsRecord, bool) {
	var rec inputsRecord
	data, ok, err := s.storage.Get(ctx, InputsKey)
	if err != nil {
		s.log.Warn("Failed to read draft inputs", "error", err)
		return rec, false
	}
	if !ok {
		return rec, false
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.Warn("Discarding malformed draft inputs", "error", err)
		return inputsRecord{}, false
	}
	return rec, true
}
