package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/noot-app/recipebox/internal/types"
)

// ParseNutriments extracts per-100g protein, carbohydrates and fat from the
// dataset's nutriments column. Two layouts exist in the wild: a flat object
// keyed "proteins_100g" and a list of {"name","100g"} structs.
func ParseNutriments(raw string) (*types.NutritionRecord, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return &types.NutritionRecord{}, nil
	}

	values := map[string]float64{}
	if strings.HasPrefix(raw, "[") {
		var list []map[string]any
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, fmt.Errorf("failed to decode nutriments list: %w", err)
		}
		for _, item := range list {
			name, _ := item["name"].(string)
			if v, ok := toFloat(item["100g"]); ok {
				values[name] = v
			}
		}
	} else {
		var flat map[string]any
		if err := json.Unmarshal([]byte(raw), &flat); err != nil {
			return nil, fmt.Errorf("failed to decode nutriments: %w", err)
		}
		for key, v := range flat {
			name, ok := strings.CutSuffix(key, "_100g")
			if !ok {
				continue
			}
			if f, ok := toFloat(v); ok {
				values[name] = f
			}
		}
	}

	return &types.NutritionRecord{
		Protein: types.Round2(values["proteins"]),
		Carbs:   types.Round2(values["carbohydrates"]),
		Fat:     types.Round2(values["fat"]),
	}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
