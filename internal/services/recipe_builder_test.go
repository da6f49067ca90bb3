package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

func recipeFixtures() (*types.Product, *types.EnhancedContext) {
	product := &types.Product{
		ID:       uuid.New(),
		Name:     "Oak Dining Table",
		ImageURL: "https://cdn.example.com/oak.jpg",
	}
	ectx := &types.EnhancedContext{
		Analysis: &types.AnalysisView{
			Category:    "furniture",
			Subcategory: "tables",
			Materials:   []string{"oak"},
			Colors:      []string{"brown"},
			Style:       "rustic",
		},
	}
	return product, ectx
}

func TestBuildRecipeNilCases(t *testing.T) {
	product, ectx := recipeFixtures()

	cases := []struct {
		name    string
		product *types.Product
		ectx    *types.EnhancedContext
	}{
		{name: "no product", product: nil, ectx: ectx},
		{name: "nil context", product: product, ectx: nil},
		{name: "empty context", product: product, ectx: &types.EnhancedContext{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BuildRecipe(tc.product, tc.ectx, nil, false, nil); got != nil {
				t.Fatalf("expected nil recipe, got %#v", got)
			}
		})
	}
}

func TestBuildRecipeAssembly(t *testing.T) {
	product, ectx := recipeFixtures()
	ectx.Scenarios = []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7"}
	ectx.Brand = &types.BrandProfile{
		Voice:     "confident, plainspoken",
		ImageURLs: types.StringsToJSON([]string{"b1", "b2", "b3", "b4", "b5", "b6", "b7", "b8"}),
	}

	first := types.AdTemplate{ID: uuid.New(), Title: "First", Blueprint: "bp1"}
	second := types.AdTemplate{ID: uuid.New(), Title: "Second", Blueprint: "bp2"}
	matched := []types.ScoredTemplate{{Template: first, Score: 50}, {Template: second, Score: 40}}

	recipe := BuildRecipe(product, ectx, matched, false, nil)
	if recipe == nil {
		t.Fatalf("expected recipe")
	}
	if len(recipe.Products) != 1 || recipe.Products[0].Name != "Oak Dining Table" {
		t.Fatalf("products = %#v", recipe.Products)
	}
	if recipe.Products[0].Category != "furniture" || recipe.Products[0].Style != "rustic" {
		t.Fatalf("analysis facts not carried: %#v", recipe.Products[0])
	}
	if recipe.Template == nil || recipe.Template.Title != "First" {
		t.Fatalf("only the first matched template becomes the template field: %#v", recipe.Template)
	}
	if len(recipe.Scenarios) != maxRecipeScenarios {
		t.Fatalf("scenarios = %d, want %d", len(recipe.Scenarios), maxRecipeScenarios)
	}
	if len(recipe.BrandImages) != maxRecipeBrandImages {
		t.Fatalf("brand images = %d, want %d", len(recipe.BrandImages), maxRecipeBrandImages)
	}
	if recipe.BrandVoice != "confident, plainspoken" {
		t.Fatalf("brand voice = %q", recipe.BrandVoice)
	}
	if len(recipe.Relationships) == 0 || len(recipe.Relationships) > maxRecipeRelations {
		t.Fatalf("relationships = %d", len(recipe.Relationships))
	}
	if recipe.DebugContext != nil {
		t.Fatalf("debug block without opt-in")
	}
}

func TestBuildRecipeDebugOptIn(t *testing.T) {
	product, ectx := recipeFixtures()
	ectx.KBCitations = []string{"c1", "c2"}

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	recipe := BuildRecipe(product, ectx, nil, true, clock.Now)
	if recipe == nil || recipe.DebugContext == nil {
		t.Fatalf("expected debug context with opt-in")
	}
	if recipe.DebugContext.KBCitationCount != 2 {
		t.Fatalf("kb citation count = %d", recipe.DebugContext.KBCitationCount)
	}
	if recipe.DebugContext.MatchedTemplateCount != 0 {
		t.Fatalf("matched template count = %d", recipe.DebugContext.MatchedTemplateCount)
	}
}

func TestBuildRecipeRelationCap(t *testing.T) {
	product, ectx := recipeFixtures()
	ectx.Analysis.Materials = []string{"m1", "m2", "m3", "m4", "m5"}
	ectx.Analysis.Colors = []string{"c1", "c2", "c3", "c4", "c5"}
	ectx.Analysis.UsageContext = "dining room"
	ectx.Analysis.TargetDemographic = "homeowners"

	recipe := BuildRecipe(product, ectx, nil, false, nil)
	if recipe == nil {
		t.Fatalf("expected recipe")
	}
	if len(recipe.Relationships) != maxRecipeRelations {
		t.Fatalf("relationships = %d, want cap %d", len(recipe.Relationships), maxRecipeRelations)
	}
}
