package nutrition

import (
	"context"
	"errors"
	"testing"

	"github.com/noot-app/recipebox/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name         string
		records      map[string]types.NutritionRecord
		lookupErr    error
		expected     Outcome
		expectCached bool
	}{
		{
			name:         "remote hit is cached",
			records:      map[string]types.NutritionRecord{"egg": {Protein: 13, Carbs: 1.1, Fat: 11}},
			expected:     Resolved,
			expectCached: true,
		},
		{
			name:         "single positive nutrient is enough",
			records:      map[string]types.NutritionRecord{"egg": {Fat: 0.5}},
			expected:     Resolved,
			expectCached: true,
		},
		{
			name:     "all zero record is a miss",
			records:  map[string]types.NutritionRecord{"egg": {}},
			expected: NotFound,
		},
		{
			name:     "no match is a miss",
			records:  map[string]types.NutritionRecord{},
			expected: NotFound,
		},
		{
			name:      "transport failure is a miss",
			records:   map[string]types.NutritionRecord{"egg": {Protein: 13}},
			lookupErr: errTransport,
			expected:  NotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := newFakeLookup(tt.records)
			if tt.lookupErr != nil {
				lookup.errs["egg"] = tt.lookupErr
			}
			resolver := NewResolver(lookup, &fakeCreator{}, testLogger())

			res := resolver.Resolve(context.Background(), "egg")
			assert.Equal(t, tt.expected, res.Outcome)
			assert.False(t, res.Cached)
			assert.Equal(t, tt.expectCached, resolver.Known("egg"))
		})
	}
}

func TestResolver_CacheIdempotence(t *testing.T) {
	egg := types.NutritionRecord{Protein: 13, Carbs: 1.1, Fat: 11}
	lookup := newFakeLookup(map[string]types.NutritionRecord{"egg": egg})
	resolver := NewResolver(lookup, &fakeCreator{}, testLogger())
	ctx := context.Background()

	first := resolver.Resolve(ctx, "egg")
	second := resolver.Resolve(ctx, "egg")

	assert.Equal(t, 1, lookup.callCount("egg"))
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Record, second.Record)
}

func TestResolver_MissIsNotCached(t *testing.T) {
	lookup := newFakeLookup(map[string]types.NutritionRecord{})
	resolver := NewResolver(lookup, &fakeCreator{}, testLogger())
	ctx := context.Background()

	resolver.Resolve(ctx, "unobtainium")
	resolver.Resolve(ctx, "unobtainium")

	assert.Equal(t, 2, lookup.callCount("unobtainium"))
}

func TestResolver_SubmitManual(t *testing.T) {
	t.Run("valid entry is persisted and cached", func(t *testing.T) {
		creator := &fakeCreator{}
		lookup := newFakeLookup(map[string]types.NutritionRecord{})
		resolver := NewResolver(lookup, creator, testLogger())

		rec, err := resolver.SubmitManual(context.Background(), types.ManualIngredient{Name: " tofu ", Protein: 8, Carbs: 2, Fat: 4.8})
		require.NoError(t, err)

		assert.Equal(t, types.NutritionRecord{Protein: 8, Carbs: 2, Fat: 4.8}, rec)
		assert.Equal(t, 1, creator.count())
		assert.Equal(t, "tofu", creator.created[0].Name)

		res := resolver.Resolve(context.Background(), "tofu")
		assert.Equal(t, Resolved, res.Outcome)
		assert.True(t, res.Cached)
		assert.Equal(t, 0, lookup.callCount("tofu"))
	})

	t.Run("zero macro is rejected without backend call", func(t *testing.T) {
		creator := &fakeCreator{}
		resolver := NewResolver(newFakeLookup(nil), creator, testLogger())

		_, err := resolver.SubmitManual(context.Background(), types.ManualIngredient{Name: "tofu", Protein: 0, Carbs: 5, Fat: 2})
		assert.ErrorIs(t, err, ErrInvalidManualEntry)
		assert.Equal(t, 0, creator.count())
		assert.False(t, resolver.Known("tofu"))
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		creator := &fakeCreator{}
		resolver := NewResolver(newFakeLookup(nil), creator, testLogger())

		_, err := resolver.SubmitManual(context.Background(), types.ManualIngredient{Name: "  ", Protein: 1, Carbs: 1, Fat: 1})
		assert.ErrorIs(t, err, ErrInvalidManualEntry)
		assert.Equal(t, 0, creator.count())
	})

	t.Run("backend failure leaves cache untouched", func(t *testing.T) {
		creator := &fakeCreator{err: errors.New("502 bad gateway")}
		resolver := NewResolver(newFakeLookup(nil), creator, testLogger())

		_, err := resolver.SubmitManual(context.Background(), types.ManualIngredient{Name: "tofu", Protein: 8, Carbs: 2, Fat: 4.8})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidManualEntry)
		assert.False(t, resolver.Known("tofu"))
	})
}

func TestResolver_Forget(t *testing.T) {
	lookup := newFakeLookup(map[string]types.NutritionRecord{"egg": {Protein: 13}})
	resolver := NewResolver(lookup, &fakeCreator{}, testLogger())

	resolver.Resolve(context.Background(), "egg")
	resolver.Forget()
	resolver.Resolve(context.Background(), "egg")

	assert.Equal(t, 2, lookup.callCount("egg"))
}
