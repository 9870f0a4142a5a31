package query

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/noot-app/recipebox/internal/types"
)

// Engine handles DuckDB queries against the Open Food Facts parquet dataset
type Engine struct {
	db          *sql.DB
	parquetPath string
	log         *slog.Logger
}

var _ IngredientEngine = (*Engine)(nil)

// lookupQuery picks the shortest product name containing the ingredient that
// carries any of the three macros. Shorter names are closer to a plain
// ingredient ("Egg" before "Egg mayonnaise sandwich").
const lookupQuery = `
	SELECT CAST(product_name AS VARCHAR), to_json(nutriments)
	FROM read_parquet(?)
	WHERE CAST(product_name AS VARCHAR) ILIKE ?
	  AND nutriments IS NOT NULL
	ORDER BY length(CAST(product_name AS VARCHAR))
	LIMIT ?`

// lookupCandidates bounds how many rows are inspected per lookup
const lookupCandidates = 10

// NewEngine creates a new query engine
func NewEngine(parquetPath string, logger *slog.Logger) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	return &Engine{
		db:          db,
		parquetPath: parquetPath,
		log:         logger,
	}, nil
}

// Close closes the database connection
func (e *Engine) Close() error {
	return e.db.Close()
}

// LookupIngredient returns per-100g macros for the best matching product, or
// nil when nothing usable matches
func (e *Engine) LookupIngredient(ctx context.Context, name string) (*types.NutritionRecord, error) {
	start := time.Now()
	name = strings.TrimSpace(name)
	e.log.Debug("LookupIngredient starting", "name", name)

	if name == "" {
		return nil, nil
	}

	rows, err := e.db.QueryContext(ctx, lookupQuery, e.parquetPath, "%"+escapeLike(name)+"%", lookupCandidates)
	if err != nil {
		e.log.Error("DuckDB query failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productName, nutriments sql.NullString
		if err := rows.Scan(&productName, &nutriments); err != nil {
			e.log.Error("Row scan failed", "error", err)
			continue
		}
		if !nutriments.Valid {
			continue
		}

		rec, err := ParseNutriments(nutriments.String)
		if err != nil {
			e.log.Debug("Failed to parse nutriments JSON", "error", err, "product", productName.String)
			continue
		}
		if rec.IsEmpty() {
			continue
		}

		e.log.Info("LookupIngredient completed", "name", name, "product", productName.String, "duration", time.Since(start))
		return rec, nil
	}

	if err := rows.Err(); err != nil {
		e.log.Error("Rows iteration failed", "error", err)
		return nil, fmt.Errorf("rows error: %w", err)
	}

	e.log.Info("LookupIngredient completed", "name", name, "found", false, "duration", time.Since(start))
	return nil, nil
}

// TestConnection tests the database connection and parquet file access
func (e *Engine) TestConnection(ctx context.Context) error {
	start := time.Now()
	e.log.Debug("Testing DuckDB connection and parquet file")

	var count int64
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM read_parquet(?)`, e.parquetPath).Scan(&count); err != nil {
		e.log.Error("Connection test failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("connection test failed: %w", err)
	}

	e.log.Info("Connection test successful", "total_records", count, "duration", time.Since(start))
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
