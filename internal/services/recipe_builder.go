package services

import (
	"time"

	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

const recipeVersion = "1"

// Bounds on recipe payload size. The recipe travels with every response and
// feeds a downstream prompt, so each collection is capped.
const (
	maxRecipeRelations   = 8
	maxRecipeScenarios   = 5
	maxRecipeBrandImages = 6
)

// BuildRecipe assembles the cross-entity context snapshot for a generation
// run. Returns nil when there is no product or the enriched context came back
// empty; callers treat a nil recipe as "nothing useful to carry forward".
func BuildRecipe(product *types.Product, ectx *types.EnhancedContext, matched []types.ScoredTemplate, debug bool, now func() time.Time) *types.Recipe {
	if product == nil || ectx.Empty() {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	started := now()

	rp := types.RecipeProduct{
		ID:          product.ID.String(),
		Name:        product.Name,
		ImageURL:    product.ImageURL,
		Description: product.Description,
	}
	if a := ectx.Analysis; a != nil {
		rp.Category = a.Category
		rp.Style = a.Style
		rp.Materials = a.Materials
		rp.Colors = a.Colors
	}

	recipe := &types.Recipe{
		Version:  recipeVersion,
		Products: []types.RecipeProduct{rp},
	}

	if a := ectx.Analysis; a != nil {
		recipe.Relationships = buildRelations(rp.ID, a)
	}

	recipe.Scenarios = capStrings(ectx.Scenarios, maxRecipeScenarios)

	if len(matched) > 0 {
		t := matched[0].Template
		recipe.Template = &types.RecipeTemplate{
			ID:          t.ID.String(),
			Title:       t.Title,
			Blueprint:   t.Blueprint,
			Platform:    t.Platform,
			AspectRatio: t.AspectRatio,
		}
	}

	if b := ectx.Brand; b != nil {
		recipe.BrandVoice = b.Voice
		recipe.BrandImages = capStrings(types.StringsFromJSON(b.ImageURLs), maxRecipeBrandImages)
	}

	if debug {
		recipe.DebugContext = &types.RecipeDebugContext{
			MatchedTemplateCount: len(matched),
			KBCitationCount:      len(ectx.KBCitations),
			ScenarioCount:        len(recipe.Scenarios),
			BuildMillis:          now().Sub(started).Milliseconds(),
		}
	}

	return recipe
}

// buildRelations turns analysis facts into subject-predicate-object triples,
// capped so a noisy analysis cannot flood the recipe.
func buildRelations(productID string, a *types.AnalysisView) []types.RecipeRelation {
	out := make([]types.RecipeRelation, 0, maxRecipeRelations)
	add := func(kind, object string) {
		if object == "" || len(out) >= maxRecipeRelations {
			return
		}
		out = append(out, types.RecipeRelation{Kind: kind, Subject: productID, Object: object})
	}

	add("category", a.Category)
	add("subcategory", a.Subcategory)
	add("style", a.Style)
	add("used_in", a.UsageContext)
	add("targets", a.TargetDemographic)
	for _, m := range a.Materials {
		add("made_of", m)
	}
	for _, c := range a.Colors {
		add("colored", c)
	}
	return out
}

func capStrings(in []string, max int) []string {
	if len(in) <= max {
		return in
	}
	return in[:max]
}
