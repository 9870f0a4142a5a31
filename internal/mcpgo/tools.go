package mcpgo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/noot-app/recipebox/internal/draft"
	"github.com/noot-app/recipebox/internal/nutrition"
	"github.com/noot-app/recipebox/internal/recipes"
	"github.com/noot-app/recipebox/internal/session"
	"github.com/noot-app/recipebox/internal/types"
)

// RecipeListResponse is returned by recipe_list and recipe_refresh
type RecipeListResponse struct {
	Count   int            `json:"count"`
	Recipes []types.Recipe `json:"recipes"`
}

// RecipeSaveResponse is returned by recipe_save
type RecipeSaveResponse struct {
	Recipe  types.Recipe `json:"recipe"`
	Session session.View `json:"session"`
}

// IngredientListResponse is returned by ingredient_list
type IngredientListResponse struct {
	Count       int                      `json:"count"`
	Ingredients []types.ManualIngredient `json:"ingredients"`
}

// ManualIngredientResponse is returned by ingredient_submit_manual
type ManualIngredientResponse struct {
	Name    string                `json:"name"`
	Record  types.NutritionRecord `json:"record"`
	Applied int                   `json:"applied"`
	Session session.View          `json:"session"`
}

func indexParam(description string) mcp.ToolOption {
	return mcp.WithNumber("index",
		mcp.Required(),
		mcp.Min(0),
		mcp.Description(description),
	)
}

func macroParam(name string) mcp.ToolOption {
	return mcp.WithNumber(name,
		mcp.Required(),
		mcp.Description(fmt.Sprintf("Grams of %s per 100g. Must be greater than zero.", name)),
	)
}

func (s *Server) addTools() {
	viewSchema := mcp.WithOutputSchema[session.View]()

	s.mcpServer.AddTool(mcp.NewTool("draft_get",
		mcp.WithDescription("Show the recipe draft, its running protein/carbs/fat totals, ingredients waiting for manual nutrition entry, and the saved recipes."),
		viewSchema,
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleDraftGet)

	s.mcpServer.AddTool(mcp.NewTool("draft_set_title",
		mcp.WithDescription("Set the title of the recipe draft."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Recipe title")),
		viewSchema,
	), s.handleDraftSetTitle)

	s.mcpServer.AddTool(mcp.NewTool("draft_set_description",
		mcp.WithDescription("Set the optional description of the recipe draft."),
		mcp.WithString("description", mcp.Required(), mcp.Description("Recipe description; empty to clear")),
		viewSchema,
	), s.handleDraftSetDescription)

	s.mcpServer.AddTool(mcp.NewTool("draft_add_ingredient",
		mcp.WithDescription("Append an ingredient to the draft and look up its nutrition. Repeated ingredients count once per occurrence."),
		mcp.WithString("name", mcp.Required(), mcp.MinLength(1), mcp.Description("Ingredient name")),
		mcp.WithString("quantity", mcp.Description("Free-text quantity, defaults to \"1 unit\" on save")),
		mcp.WithBoolean("wait", mcp.DefaultBool(true), mcp.Description("Wait for the nutrition lookup before returning")),
		viewSchema,
	), s.handleDraftAddIngredient)

	s.mcpServer.AddTool(mcp.NewTool("draft_remove_ingredient",
		mcp.WithDescription("Remove the ingredient at a position (0-based) and subtract its nutrition."),
		indexParam("Position of the ingredient in the draft"),
		viewSchema,
	), s.handleDraftRemoveIngredient)

	s.mcpServer.AddTool(mcp.NewTool("draft_add_step",
		mcp.WithDescription("Append a step to the draft."),
		mcp.WithString("description", mcp.Required(), mcp.MinLength(1), mcp.Description("Step text")),
		viewSchema,
	), s.handleDraftAddStep)

	s.mcpServer.AddTool(mcp.NewTool("draft_remove_step",
		mcp.WithDescription("Remove the step at a position (0-based)."),
		indexParam("Position of the step in the draft"),
		viewSchema,
	), s.handleDraftRemoveStep)

	s.mcpServer.AddTool(mcp.NewTool("draft_set_inputs",
		mcp.WithDescription("Store the half-typed ingredient and step text so it survives restarts."),
		mcp.WithString("ingredient", mcp.Description("Pending ingredient text")),
		mcp.WithString("step", mcp.Description("Pending step text")),
		viewSchema,
	), s.handleDraftSetInputs)

	s.mcpServer.AddTool(mcp.NewTool("draft_clear",
		mcp.WithDescription("Discard the draft and forget cached ingredient lookups."),
		viewSchema,
		mcp.WithDestructiveHintAnnotation(true),
	), s.handleDraftClear)

	s.mcpServer.AddTool(mcp.NewTool("ingredient_submit_manual",
		mcp.WithDescription("Provide nutrition for an ingredient the lookup could not find. All three macros must be greater than zero. The ingredient is stored in the backend and applied to the draft."),
		mcp.WithString("name", mcp.Required(), mcp.MinLength(1), mcp.Description("Ingredient name")),
		macroParam("protein"),
		macroParam("carbs"),
		macroParam("fat"),
		mcp.WithOutputSchema[ManualIngredientResponse](),
	), s.handleIngredientSubmitManual)

	s.mcpServer.AddTool(mcp.NewTool("ingredient_list",
		mcp.WithDescription("List every ingredient with known nutrition (grams of protein, carbs and fat per 100g)."),
		mcp.WithOutputSchema[IngredientListResponse](),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleIngredientList)

	s.mcpServer.AddTool(mcp.NewTool("recipe_list",
		mcp.WithDescription("List saved recipes."),
		mcp.WithOutputSchema[RecipeListResponse](),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleRecipeList)

	s.mcpServer.AddTool(mcp.NewTool("recipe_refresh",
		mcp.WithDescription("Reload saved recipes from the backend."),
		mcp.WithOutputSchema[RecipeListResponse](),
		mcp.WithIdempotentHintAnnotation(true),
	), s.handleRecipeRefresh)

	s.mcpServer.AddTool(mcp.NewTool("recipe_edit",
		mcp.WithDescription("Load a saved recipe into the draft for editing. Unsaved draft changes are replaced."),
		indexParam("Position of the recipe in recipe_list"),
		viewSchema,
	), s.handleRecipeEdit)

	s.mcpServer.AddTool(mcp.NewTool("recipe_delete",
		mcp.WithDescription("Delete a saved recipe."),
		indexParam("Position of the recipe in recipe_list"),
		viewSchema,
		mcp.WithDestructiveHintAnnotation(true),
	), s.handleRecipeDelete)

	s.mcpServer.AddTool(mcp.NewTool("recipe_save",
		mcp.WithDescription("Save the draft: creates a new recipe, or updates the one being edited. Requires a title, at least one ingredient and at least one step."),
		mcp.WithOutputSchema[RecipeSaveResponse](),
	), s.handleRecipeSave)
}

// structured returns v as structured content with a JSON text fallback
func (s *Server) structured(tool string, v any) (*mcp.CallToolResult, error) {
	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.log.Error("Failed to marshal tool response", "tool", tool, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultStructured(v, string(text)), nil
}

func (s *Server) view(tool string) (*mcp.CallToolResult, error) {
	return s.structured(tool, s.session.Snapshot())
}

// failure turns a domain error into a tool error. Validation errors are
// reported as-is; anything else is only detailed in development.
func (s *Server) failure(tool string, err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, draft.ErrInvalidDraft),
		errors.Is(err, draft.ErrIndexOutOfRange),
		errors.Is(err, recipes.ErrIndexOutOfRange),
		errors.Is(err, recipes.ErrUnsavedRecipe),
		errors.Is(err, nutrition.ErrInvalidManualEntry):
		s.log.Warn("Tool call rejected", "tool", tool, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.log.Error("Tool call failed", "tool", tool, "error", err)
	if s.detailed {
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err)), nil
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed, see server logs", tool)), nil
}

func requireIndex(request mcp.CallToolRequest) (int, error) {
	f, err := request.RequireFloat("index")
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("index must be a non-negative integer, got %v", f)
	}
	return int(f), nil
}

func (s *Server) handleDraftGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.view("draft_get")
}

func (s *Server) handleDraftSetTitle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'title': %v", err)), nil
	}
	s.session.Draft().SetTitle(ctx, title)
	return s.view("draft_set_title")
}

func (s *Server) handleDraftSetDescription(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description, err := request.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'description': %v", err)), nil
	}
	s.session.Draft().SetDescription(ctx, description)
	return s.view("draft_set_description")
}

func (s *Server) handleDraftAddIngredient(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'name': %v", err)), nil
	}
	quantity := request.GetString("quantity", "")

	if err := s.session.Draft().AddIngredient(ctx, name, quantity); err != nil {
		return s.failure("draft_add_ingredient", err)
	}
	if request.GetBool("wait", true) {
		s.session.Wait()
	}
	return s.view("draft_add_ingredient")
}

func (s *Server) handleDraftRemoveIngredient(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := requireIndex(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid parameter 'index': %v", err)), nil
	}
	if err := s.session.Draft().RemoveIngredient(ctx, index); err != nil {
		return s.failure("draft_remove_ingredient", err)
	}
	return s.view("draft_remove_ingredient")
}

func (s *Server) handleDraftAddStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description, err := request.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'description': %v", err)), nil
	}
	if err := s.session.Draft().AddStep(ctx, description); err != nil {
		return s.failure("draft_add_step", err)
	}
	return s.view("draft_add_step")
}

func (s *Server) handleDraftRemoveStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := requireIndex(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid parameter 'index': %v", err)), nil
	}
	if err := s.session.Draft().RemoveStep(ctx, index); err != nil {
		return s.failure("draft_remove_step", err)
	}
	return s.view("draft_remove_step")
}

func (s *Server) handleDraftSetInputs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.session.Draft().SetInputs(ctx, request.GetString("ingredient", ""), request.GetString("step", ""))
	return s.view("draft_set_inputs")
}

func (s *Server) handleDraftClear(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.session.Draft().Clear(ctx)
	return s.view("draft_clear")
}

func (s *Server) handleIngredientSubmitManual(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'name': %v", err)), nil
	}
	entry := types.ManualIngredient{Name: name}
	for param, dst := range map[string]*float64{"protein": &entry.Protein, "carbs": &entry.Carbs, "fat": &entry.Fat} {
		v, err := request.RequireFloat(param)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter '%s': %v", param, err)), nil
		}
		*dst = v
	}

	rec, applied, err := s.session.SubmitManualIngredient(ctx, entry)
	if err != nil {
		return s.failure("ingredient_submit_manual", err)
	}
	return s.structured("ingredient_submit_manual", ManualIngredientResponse{
		Name:    entry.Name,
		Record:  rec,
		Applied: applied,
		Session: s.session.Snapshot(),
	})
}

func (s *Server) handleIngredientList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.session.Ingredients(ctx)
	if err != nil {
		return s.failure("ingredient_list", err)
	}
	return s.structured("ingredient_list", IngredientListResponse{Count: len(list), Ingredients: list})
}

func (s *Server) handleRecipeList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list := s.session.Recipes().List()
	return s.structured("recipe_list", RecipeListResponse{Count: len(list), Recipes: list})
}

func (s *Server) handleRecipeRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.session.RefreshRecipes(ctx); err != nil {
		return s.failure("recipe_refresh", err)
	}
	list := s.session.Recipes().List()
	return s.structured("recipe_refresh", RecipeListResponse{Count: len(list), Recipes: list})
}

func (s *Server) handleRecipeEdit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := requireIndex(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid parameter 'index': %v", err)), nil
	}
	if err := s.session.EditRecipe(ctx, index); err != nil {
		return s.failure("recipe_edit", err)
	}
	s.session.Wait()
	return s.view("recipe_edit")
}

func (s *Server) handleRecipeDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := requireIndex(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid parameter 'index': %v", err)), nil
	}
	if err := s.session.DeleteRecipe(ctx, index); err != nil {
		return s.failure("recipe_delete", err)
	}
	return s.view("recipe_delete")
}

func (s *Server) handleRecipeSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	saved, err := s.session.Save(ctx)
	if err != nil {
		return s.failure("recipe_save", err)
	}
	return s.structured("recipe_save", RecipeSaveResponse{Recipe: saved, Session: s.session.Snapshot()})
}
