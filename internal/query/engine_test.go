package query

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/noot-app/recipebox/internal/config"
	"github.com/noot-app/recipebox/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine("/nonexistent/path.parquet", config.NewTestLogger(io.Discard, "debug"))
	assert.NoError(t, err)
	assert.NotNil(t, engine)

	defer engine.Close()
}

func TestEngine_MissingParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.parquet")
	engine, err := NewEngine(path, config.NewTestLogger(io.Discard, "debug"))
	require.NoError(t, err)
	defer engine.Close()

	assert.Error(t, engine.TestConnection(context.Background()))

	_, err = engine.LookupIngredient(context.Background(), "egg")
	assert.Error(t, err)

	rec, err := engine.LookupIngredient(context.Background(), "   ")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestParseNutriments(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected types.NutritionRecord
		wantErr  bool
	}{
		{
			name:     "flat object",
			raw:      `{"proteins_100g":12.6,"carbohydrates_100g":0.72,"fat_100g":9.51,"energy_100g":600}`,
			expected: types.NutritionRecord{Protein: 12.6, Carbs: 0.72, Fat: 9.51},
		},
		{
			name:     "struct list",
			raw:      `[{"name":"proteins","100g":25,"unit":"g"},{"name":"fat","100g":"33.1"},{"name":"carbohydrates","100g":null}]`,
			expected: types.NutritionRecord{Protein: 25, Fat: 33.1},
		},
		{
			name:     "rounds to two decimals",
			raw:      `{"proteins_100g":3.14159}`,
			expected: types.NutritionRecord{Protein: 3.14},
		},
		{
			name: "null",
			raw:  `null`,
		},
		{
			name:    "garbage",
			raw:     `{nope`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseNutriments(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, *rec)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% cocoa\_bar`, escapeLike("50% cocoa_bar"))
}

func TestMockEngine(t *testing.T) {
	ctx := context.Background()
	m := NewMockEngine(config.NewTestLogger(io.Discard, "debug"))

	rec, err := m.LookupIngredient(ctx, " EGG ")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 12.6, rec.Protein)

	rec, err = m.LookupIngredient(ctx, "dragonfruit")
	require.NoError(t, err)
	assert.Nil(t, rec)

	m.SetError(errors.New("boom"))
	_, err = m.LookupIngredient(ctx, "egg")
	assert.Error(t, err)
	assert.Error(t, m.TestConnection(ctx))
	assert.Equal(t, 3, m.Calls())
}

func TestNewIngredientEngine(t *testing.T) {
	logger := config.NewTestLogger(io.Discard, "debug")

	engine, err := NewIngredientEngine(&config.Config{NutritionSource: config.SourceMock}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MockEngine{}, engine)

	engine, err = NewIngredientEngine(&config.Config{NutritionSource: config.SourceParquet, ParquetPath: "/tmp/x.parquet"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &Engine{}, engine)
	assert.NoError(t, engine.Close())
}
