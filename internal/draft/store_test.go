package draft

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/noot-app/recipebox/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ModeTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.Equal(t, ModeEmpty, f.store.Mode())

	f.store.SetTitle(ctx, "Omelette")
	assert.Equal(t, ModeComposing, f.store.Mode())

	f.store.Edit(ctx, 1, savedRecipe(9, "Toast", []string{"bread"}, []string{"Toast it"}))
	assert.Equal(t, ModeEditing, f.store.Mode())

	snap := f.store.Snapshot()
	assert.Equal(t, "Toast", snap.Form.Title)
	assert.Equal(t, 1, snap.EditingIndex)
	require.NotNil(t, snap.EditingID)
	assert.Equal(t, int64(9), *snap.EditingID)

	f.store.Clear(ctx)
	assert.Equal(t, ModeEmpty, f.store.Mode())
	assert.Nil(t, f.store.Snapshot().Totals)
	assert.Equal(t, 1, f.cache.count())
}

func TestStore_PendingInputMakesComposing(t *testing.T) {
	f := newFixture(t)
	f.store.SetInputs(context.Background(), "egg", "")
	assert.Equal(t, ModeComposing, f.store.Mode())
}

func TestStore_EditReplacesComposing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.AddIngredient(ctx, "salt", ""))
	before := f.store.Snapshot().ID

	f.store.Edit(ctx, 0, savedRecipe(3, "Omelette", []string{"egg", "egg", "cheese"}, []string{"Beat eggs", "Cook"}))

	snap := f.store.Snapshot()
	assert.NotEqual(t, before, snap.ID)
	assert.Equal(t, []string{"egg", "egg", "cheese"}, snap.Form.Names())

	_, resets, lastSet := f.nutrition.snapshot()
	assert.Equal(t, 1, resets)
	assert.Equal(t, []string{"egg", "egg", "cheese"}, lastSet)
}

func TestStore_Ingredients(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.SetInputs(ctx, "egg", "Beat")

	require.NoError(t, f.store.AddIngredient(ctx, "  egg ", "2"))
	require.NoError(t, f.store.AddIngredient(ctx, "egg", ""))
	require.NoError(t, f.store.AddIngredient(ctx, "cheese", "50 g"))

	err := f.store.AddIngredient(ctx, "   ", "")
	assert.ErrorIs(t, err, ErrInvalidDraft)

	snap := f.store.Snapshot()
	assert.Equal(t, []types.IngredientLine{{Name: "egg", Quantity: "2"}, {Name: "egg"}, {Name: "cheese", Quantity: "50 g"}}, snap.Form.Ingredients)
	assert.Empty(t, snap.PendingIngredient)
	assert.Equal(t, "Beat", snap.PendingStep)

	names, _, _ := f.nutrition.snapshot()
	assert.Equal(t, []string{"egg", "egg", "cheese"}, names)

	require.NoError(t, f.store.RemoveIngredient(ctx, 0))
	assert.ErrorIs(t, f.store.RemoveIngredient(ctx, 5), ErrIndexOutOfRange)
	assert.ErrorIs(t, f.store.RemoveIngredient(ctx, -1), ErrIndexOutOfRange)

	names, _, _ = f.nutrition.snapshot()
	assert.Equal(t, []string{"egg", "cheese"}, names)
	assert.Equal(t, names, f.store.Snapshot().Form.Names())
}

func TestStore_Steps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.AddStep(ctx, " Beat eggs "))
	require.NoError(t, f.store.AddStep(ctx, "Cook"))
	assert.ErrorIs(t, f.store.AddStep(ctx, ""), ErrInvalidDraft)

	require.NoError(t, f.store.RemoveStep(ctx, 0))
	assert.ErrorIs(t, f.store.RemoveStep(ctx, 1), ErrIndexOutOfRange)
	assert.Equal(t, []string{"Cook"}, f.store.Snapshot().Form.Steps)
}

func TestStore_Validate(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		ingredients []string
		steps       []string
		wantErr     string
	}{
		{"valid", "Omelette", []string{"egg"}, []string{"Cook"}, ""},
		{"blank title", "   ", []string{"egg"}, []string{"Cook"}, "title is required"},
		{"no ingredients", "Omelette", nil, []string{"Cook"}, "ingredient"},
		{"no steps", "Omelette", []string{"egg"}, nil, "step"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.store.SetTitle(ctx, tt.title)
			for _, ing := range tt.ingredients {
				require.NoError(t, f.store.AddIngredient(ctx, ing, ""))
			}
			for _, st := range tt.steps {
				require.NoError(t, f.store.AddStep(ctx, st))
			}

			err := f.store.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidDraft)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStore_OnRecipeDeleted(t *testing.T) {
	tests := []struct {
		name      string
		editing   int
		deleted   int
		wantIndex int
		wantMode  Mode
	}{
		{"earlier recipe shifts pointer", 2, 0, 1, ModeEditing},
		{"edited recipe clears draft", 2, 2, -1, ModeEmpty},
		{"later recipe leaves pointer", 1, 3, 1, ModeEditing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.store.Edit(ctx, tt.editing, savedRecipe(42, "Toast", []string{"bread"}, []string{"Toast it"}))

			f.store.OnRecipeDeleted(ctx, tt.deleted)

			snap := f.store.Snapshot()
			assert.Equal(t, tt.wantIndex, snap.EditingIndex)
			assert.Equal(t, tt.wantMode, snap.Mode)
		})
	}
}

func TestStore_RetargetAndDetach(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.Edit(ctx, 0, savedRecipe(42, "Toast", []string{"bread"}, []string{"Toast it"}))

	assert.False(t, f.store.Retarget(ctx, 7, 3), "other recipe id")
	assert.True(t, f.store.Retarget(ctx, 42, 2))
	index, id := f.store.EditingTarget()
	assert.Equal(t, 2, index)
	require.NotNil(t, id)
	assert.Equal(t, int64(42), *id)

	assert.False(t, f.store.Detach(ctx, 7))
	assert.True(t, f.store.Detach(ctx, 42))
	snap := f.store.Snapshot()
	assert.Equal(t, ModeComposing, snap.Mode)
	assert.Equal(t, -1, snap.EditingIndex)
	assert.Nil(t, snap.EditingID)
	assert.Equal(t, "Toast", snap.Form.Title)
}

func TestStore_CompleteSaveKeepsCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.SetTitle(ctx, "Omelette")

	f.store.CompleteSave(ctx)

	assert.Equal(t, ModeEmpty, f.store.Mode())
	assert.Equal(t, 0, f.cache.count())
}

func TestStore_PersistAndLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.Edit(ctx, 0, savedRecipe(7, "Omelette", []string{"egg", "cheese"}, []string{"Cook"}))
	require.NoError(t, f.store.AddIngredient(ctx, "chives", "1 tbsp"))
	f.store.SetInputs(ctx, "pepper", "Serve")

	raw, ok, err := f.storage.Get(ctx, FormDataKey)
	require.NoError(t, err)
	require.True(t, ok)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "recipeForm")
	assert.Contains(t, decoded, "editingRecipe")
	assert.Contains(t, decoded, "editingIndex")

	nutrition := &fakeNutrition{}
	restored := NewStore(f.storage, nutrition, &fakeCache{}, testLogger())
	restored.Load(ctx)

	snap := restored.Snapshot()
	assert.Equal(t, ModeEditing, snap.Mode)
	assert.Equal(t, "Omelette", snap.Form.Title)
	assert.Equal(t, 0, snap.EditingIndex)
	assert.Equal(t, []string{"egg", "cheese", "chives"}, snap.Form.Names())
	assert.Equal(t, "pepper", snap.PendingIngredient)
	assert.Equal(t, "Serve", snap.PendingStep)

	_, resets, lastSet := nutrition.snapshot()
	assert.Equal(t, 1, resets)
	assert.Equal(t, []string{"egg", "cheese", "chives"}, lastSet)
}

func TestStore_LoadRecordsIndependently(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	require.NoError(t, storage.Put(ctx, FormDataKey, []byte("{not json")))
	require.NoError(t, storage.Put(ctx, InputsKey, []byte(`{"newIngredient":"egg","newStep":""}`)))

	nutrition := &fakeNutrition{}
	store := NewStore(storage, nutrition, &fakeCache{}, testLogger())
	store.Load(ctx)

	snap := store.Snapshot()
	assert.Empty(t, snap.Form.Title)
	assert.Empty(t, snap.Form.Ingredients)
	assert.Equal(t, -1, snap.EditingIndex)
	assert.Equal(t, "egg", snap.PendingIngredient)

	_, resets, _ := nutrition.snapshot()
	assert.Equal(t, 0, resets)
}

func TestStore_LoadEmptyStorage(t *testing.T) {
	f := newFixture(t)
	f.store.Load(context.Background())
	assert.Equal(t, ModeEmpty, f.store.Mode())
}

func TestStore_StorageFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.storage.SetError(errors.New("disk full"))

	f.store.SetTitle(ctx, "Omelette")
	require.NoError(t, f.store.AddIngredient(ctx, "egg", ""))
	f.store.Clear(ctx)
	f.store.Load(ctx)

	assert.Equal(t, ModeEmpty, f.store.Mode())
}

func TestStore_ClearRemovesInputs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.SetInputs(ctx, "egg", "Cook")

	f.store.Clear(ctx)

	_, ok, err := f.storage.Get(ctx, InputsKey)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = f.storage.Get(ctx, FormDataKey)
	require.NoError(t, err)
	assert.True(t, ok)
}
