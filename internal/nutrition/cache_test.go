package nutrition

import (
	"testing"

	"github.com/noot-app/recipebox/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"egg", "egg"},
		{"  Egg ", "egg"},
		{"CHEESE", "cheese"},
		{"Crème Fraîche", "crème fraîche"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Key(tt.input))
		})
	}
}

func TestCache_StoreLookup(t *testing.T) {
	cache := NewCache()
	egg := types.NutritionRecord{Protein: 13, Carbs: 1.1, Fat: 11}

	_, ok := cache.Lookup("egg")
	assert.False(t, ok)

	cache.Store("Egg", egg)
	got, ok := cache.Lookup(" egg")
	assert.True(t, ok)
	assert.Equal(t, egg, got)

	// idempotent overwrite
	cache.Store("egg", egg)
	assert.Equal(t, 1, cache.Len())

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}
