package types

// DefaultQuantity is sent for ingredient lines composed without a quantity
const DefaultQuantity = "1 unit"

// IngredientLine is one ingredient of a recipe being composed. Quantity is free
// text and not part of the ingredient identity.
type IngredientLine struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
}

// Step is one positional instruction of a recipe. Order is 1-based.
type Step struct {
	Description string `json:"description"`
	Order       int    `json:"order"`
}

// Recipe is the flat, client-side shape of a saved recipe. A nil ID marks a
// recipe the backend has never seen.
type Recipe struct {
	ID          *int64   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
}

// Saved reports whether the recipe has a backend identity
func (r Recipe) Saved() bool {
	return r.ID != nil
}

// Clone returns a deep copy
func (r Recipe) Clone() Recipe {
	c := r
	if r.ID != nil {
		id := *r.ID
		c.ID = &id
	}
	c.Ingredients = append([]string{}, r.Ingredients...)
	c.Steps = append([]string{}, r.Steps...)
	return c
}

// PayloadIngredient is an ingredient entry of a create/update body
type PayloadIngredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

// PayloadStep is a step entry of a create/update body
type PayloadStep struct {
	Description string `json:"description"`
	StepNumber  int    `json:"step_number"`
}

// RecipePayload is the body sent to the backend on create and update
type RecipePayload struct {
	Title       string              `json:"title"`
	Description *string             `json:"description,omitempty"`
	Ingredients []PayloadIngredient `json:"ingredients"`
	Steps       []PayloadStep       `json:"steps"`
}

// BackendIngredient is an ingredient nested in a backend recipe response
type BackendIngredient struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Pivot *struct {
		Quantity string `json:"quantity"`
	} `json:"pivot,omitempty"`
}

// BackendStep is a step nested in a backend recipe response
type BackendStep struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	StepNumber  int    `json:"step_number"`
}

// BackendRecipe is a recipe as returned by the backend, with nested
// ingredients and steps
type BackendRecipe struct {
	ID          int64               `json:"id"`
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	Ingredients []BackendIngredient `json:"ingredients"`
	Steps       []BackendStep       `json:"steps"`
}

// Normalize projects a backend response onto the flat Recipe shape. Quantities
// and step numbers are dropped.
func (b BackendRecipe) Normalize() Recipe {
	id := b.ID
	r := Recipe{
		ID:          &id,
		Title:       b.Title,
		Ingredients: make([]string, 0, len(b.Ingredients)),
		Steps:       make([]string, 0, len(b.Steps)),
	}
	if b.Description != nil {
		r.Description = *b.Description
	}
	for _, ing := range b.Ingredients {
		r.Ingredients = append(r.Ingredients, ing.Name)
	}
	for _, st := range b.Steps {
		r.Steps = append(r.Steps, st.Description)
	}
	return r
}
