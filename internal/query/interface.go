package query

import (
	"context"
	"log/slog"

	"github.com/noot-app/recipebox/internal/config"
	"github.com/noot-app/recipebox/internal/types"
)

// IngredientEngine resolves ingredient names against a local food dataset
type IngredientEngine interface {
	LookupIngredient(ctx context.Context, name string) (*types.NutritionRecord, error)
	TestConnection(ctx context.Context) error
	Close() error
}

// NewIngredientEngine returns the DuckDB engine over the configured parquet
// file, or a mock engine when NUTRITION_SOURCE is "mock"
func NewIngredientEngine(cfg *config.Config, logger *slog.Logger) (IngredientEngine, error) {
	if cfg.NutritionSource == config.SourceMock {
		return NewMockEngine(logger), nil
	}
	return NewEngine(cfg.ParquetPath, logger)
}
