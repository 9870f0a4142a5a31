package types

import "math"

// NutritionRecord holds the macro nutrients of one ingredient, or a running total
// across a recipe. Values are grams and never negative.
type NutritionRecord struct {
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fat     float64 `json:"fat"`
}

// IsEmpty reports whether no nutrient is strictly positive
func (r NutritionRecord) IsEmpty() bool {
	return r.Protein <= 0 && r.Carbs <= 0 && r.Fat <= 0
}

// AllPositive reports whether every nutrient is strictly positive
func (r NutritionRecord) AllPositive() bool {
	return r.Protein > 0 && r.Carbs > 0 && r.Fat > 0
}

// Plus returns the component-wise sum, each component rounded to 2 decimals
func (r NutritionRecord) Plus(o NutritionRecord) NutritionRecord {
	return NutritionRecord{
		Protein: Round2(r.Protein + o.Protein),
		Carbs:   Round2(r.Carbs + o.Carbs),
		Fat:     Round2(r.Fat + o.Fat),
	}
}

// Minus returns the component-wise difference, rounded to 2 decimals and
// clamped at zero
func (r NutritionRecord) Minus(o NutritionRecord) NutritionRecord {
	return NutritionRecord{
		Protein: math.Max(0, Round2(r.Protein-o.Protein)),
		Carbs:   math.Max(0, Round2(r.Carbs-o.Carbs)),
		Fat:     math.Max(0, Round2(r.Fat-o.Fat)),
	}
}

// Round2 rounds x to 2 decimal places
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Totals is the aggregate nutrition of a recipe. A nil Totals means the recipe
// has no ingredients, which is different from a zero record.
type Totals = *NutritionRecord

// ManualIngredient is the data collected from the user when no lookup source
// knows an ingredient
type ManualIngredient struct {
	Name    string  `json:"name"`
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fat     float64 `json:"fat"`
}

// Record returns the nutrition part of the manual entry
func (m ManualIngredient) Record() NutritionRecord {
	return NutritionRecord{Protein: m.Protein, Carbs: m.Carbs, Fat: m.Fat}
}
