package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/apierr"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/openai"
	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

type fakeProductRepo struct {
	products map[uuid.UUID]*types.Product
	calls    int
}

func (f *fakeProductRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Product, error) {
	f.calls++
	return f.products[id], nil
}

type fakeBrandRepo struct {
	brand *types.BrandProfile
	err   error
	calls int
}

func (f *fakeBrandRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.BrandProfile, error) {
	f.calls++
	return f.brand, f.err
}

type fakeTemplateRepo struct {
	templates map[uuid.UUID]*types.AdTemplate
	list      []types.AdTemplate
	calls     int
}

func (f *fakeTemplateRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AdTemplate, error) {
	f.calls++
	return f.templates[id], nil
}

func (f *fakeTemplateRepo) List(ctx context.Context, tx *gorm.DB, filter types.TemplateFilter) ([]types.AdTemplate, error) {
	f.calls++
	return f.list, nil
}

func (f *fakeTemplateRepo) UpsertByTitle(ctx context.Context, tx *gorm.DB, tmpl *types.AdTemplate) error {
	f.calls++
	return nil
}

type fakeVision struct {
	analysis *types.AnalysisView
	err      error
	calls    int
}

func (f *fakeVision) GetOrAnalyze(ctx context.Context, product *types.Product) (*types.AnalysisView, error) {
	f.calls++
	return f.analysis, f.err
}

func (f *fakeVision) InvalidateAnalysis(ctx context.Context, productID uuid.UUID) error {
	f.calls++
	return nil
}

type fakeKB struct {
	result *KBResult
	err    error
	calls  int
}

func (f *fakeKB) Query(ctx context.Context, text string, maxResults int) (*KBResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeAI struct {
	text      string
	err       error
	textCalls int
	prompts   []string
}

func (f *fakeAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return [][]float32{{0.1, 0.2}}, nil
}

func (f *fakeAI) GenerateText(ctx context.Context, system, user string, cfg openai.GenerateConfig) (string, error) {
	f.textCalls++
	f.prompts = append(f.prompts, user)
	return f.text, f.err
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return nil, errors.New("not used")
}

func (f *fakeAI) GenerateJSONWithImages(ctx context.Context, system, user string, images []openai.ImageInput, schemaName string, schema map[string]any) (map[string]any, error) {
	return nil, errors.New("not used")
}

type suggestionFixture struct {
	svc       SuggestionService
	clock     *fakeClock
	products  *fakeProductRepo
	brands    *fakeBrandRepo
	templates *fakeTemplateRepo
	vision    *fakeVision
	kb        *fakeKB
	ai        *fakeAI
	userID    uuid.UUID
	productID uuid.UUID
}

func newSuggestionFixture(t *testing.T) *suggestionFixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	userID := uuid.New()
	productID := uuid.New()

	f := &suggestionFixture{
		clock:     clock,
		userID:    userID,
		productID: productID,
		products: &fakeProductRepo{products: map[uuid.UUID]*types.Product{
			productID: {ID: productID, UserID: userID, Name: "Oak Dining Table", ImageURL: "https://cdn.example.com/oak.jpg"},
		}},
		brands:    &fakeBrandRepo{},
		templates: &fakeTemplateRepo{templates: map[uuid.UUID]*types.AdTemplate{}},
		vision: &fakeVision{analysis: &types.AnalysisView{
			Category: "furniture", Subcategory: "tables", Style: "rustic",
			Materials: []string{"oak"}, Colors: []string{"brown"},
		}},
		kb: &fakeKB{result: &KBResult{Context: "lifestyle shots outperform studio shots", Citations: []string{"kb-1"}}},
		ai: &fakeAI{text: `[{"prompt": "A sunlit table scene", "mode": "standard", "confidence": 80}]`},
	}

	log := logger.NewNop()
	limiter := NewRateLimitRegistry(log, RateLimitConfig{Limit: 2, Window: time.Minute, Capacity: 100, Now: clock.Now})
	cache := NewResponseCache(log, ResponseCacheConfig{TTL: 10 * time.Minute, Capacity: 100, Now: clock.Now})

	f.svc = NewSuggestionService(log, SuggestionServiceDeps{
		Products:  f.products,
		Brands:    f.brands,
		Templates: f.templates,
		Vision:    f.vision,
		KB:        f.kb,
		AI:        f.ai,
		Limiter:   limiter,
		Cache:     cache,
		Now:       clock.Now,
	})
	return f
}

func (f *suggestionFixture) request() types.SuggestRequest {
	return types.SuggestRequest{UserID: f.userID, ProductID: &f.productID, Goal: "spring sale"}
}

func TestGenerateSuggestionsMissingSubject(t *testing.T) {
	f := newSuggestionFixture(t)

	_, err := f.svc.GenerateSuggestions(context.Background(), types.SuggestRequest{UserID: f.userID})
	if apierr.Code(err) != apierr.CodeProductNotFound {
		t.Fatalf("code = %q, want PRODUCT_NOT_FOUND", apierr.Code(err))
	}
	total := f.products.calls + f.brands.calls + f.templates.calls + f.vision.calls + f.kb.calls + f.ai.textCalls
	if total != 0 {
		t.Fatalf("expected zero collaborator calls, got %d", total)
	}
}

func TestGenerateSuggestionsTemplateRequired(t *testing.T) {
	f := newSuggestionFixture(t)

	req := f.request()
	req.Mode = types.ModeTemplate
	_, err := f.svc.GenerateSuggestions(context.Background(), req)
	if apierr.Code(err) != apierr.CodeTemplateRequired {
		t.Fatalf("code = %q, want TEMPLATE_REQUIRED", apierr.Code(err))
	}
	if f.products.calls != 0 {
		t.Fatalf("template check must come before product lookup, got %d lookups", f.products.calls)
	}
}

func TestGenerateSuggestionsUnknownProduct(t *testing.T) {
	f := newSuggestionFixture(t)

	unknown := uuid.New()
	req := types.SuggestRequest{UserID: f.userID, ProductID: &unknown}
	_, err := f.svc.GenerateSuggestions(context.Background(), req)
	if apierr.Code(err) != apierr.CodeProductNotFound {
		t.Fatalf("code = %q, want PRODUCT_NOT_FOUND", apierr.Code(err))
	}
}

func TestGenerateSuggestionsFreestyle(t *testing.T) {
	f := newSuggestionFixture(t)
	f.brands.brand = &types.BrandProfile{ID: uuid.New(), UserID: f.userID, BrandName: "Hearth & Grain", Voice: "warm"}
	f.templates.list = []types.AdTemplate{{
		ID: uuid.New(), Title: "Sunlit Living Room",
		BestForProductTypes: types.StringsToJSON([]string{"furniture"}),
	}}

	outcome, err := f.svc.GenerateSuggestions(context.Background(), f.request())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	resp := outcome.Freestyle
	if resp == nil {
		t.Fatalf("expected freestyle response")
	}
	if len(resp.Suggestions) != 1 {
		t.Fatalf("suggestions = %d", len(resp.Suggestions))
	}

	want := types.SourcesUsed{AnalysisUsed: true, KBQueried: true, BrandUsed: true, TemplatesFed: true}
	if resp.SourcesUsed != want {
		t.Fatalf("sources = %#v, want %#v", resp.SourcesUsed, want)
	}
	if resp.Suggestions[0].SourcesUsed != want {
		t.Fatalf("per-suggestion sources not stamped")
	}
	if resp.Recipe == nil {
		t.Fatalf("expected recipe with product and context present")
	}
	if resp.FromCache {
		t.Fatalf("fresh response marked FromCache")
	}

	prompt := f.ai.prompts[0]
	for _, fragment := range []string{"Oak Dining Table", "furniture", "Hearth & Grain", "lifestyle shots", "spring sale"} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, prompt)
		}
	}
}

func TestGenerateSuggestionsCacheAcrossBucket(t *testing.T) {
	f := newSuggestionFixture(t)

	if _, err := f.svc.GenerateSuggestions(context.Background(), f.request()); err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	// Same request 10 seconds later hits the cache.
	f.clock.Advance(10 * time.Second)
	outcome, err := f.svc.GenerateSuggestions(context.Background(), f.request())
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if !outcome.Freestyle.FromCache {
		t.Fatalf("second call should come from cache")
	}
	if f.ai.textCalls != 1 {
		t.Fatalf("model called %d times, want 1", f.ai.textCalls)
	}

	// Past the bucket boundary it recomputes, bypassing the limiter to keep
	// the cache behavior isolated.
	f.clock.Advance(5*time.Minute + 1*time.Second)
	req := f.request()
	req.BypassRateLimit = true
	outcome, err = f.svc.GenerateSuggestions(context.Background(), req)
	if err != nil {
		t.Fatalf("third call failed: %v", err)
	}
	if outcome.Freestyle.FromCache {
		t.Fatalf("request in a new bucket must recompute")
	}
	if f.ai.textCalls != 2 {
		t.Fatalf("model called %d times, want 2", f.ai.textCalls)
	}
}

func TestGenerateSuggestionsRateLimited(t *testing.T) {
	f := newSuggestionFixture(t)
	// Defeat the response cache so each call reaches the limiter and then the
	// model.
	f.ai.text = `[{"prompt": "p"}]`

	ctx := context.Background()
	req := f.request()
	goals := []string{"a", "b", "c"}
	var lastErr error
	for i, g := range goals {
		r := req
		r.Goal = g
		_, err := f.svc.GenerateSuggestions(ctx, r)
		if i < 2 && err != nil {
			t.Fatalf("call %d failed: %v", i+1, err)
		}
		lastErr = err
	}
	if apierr.Code(lastErr) != apierr.CodeRateLimited {
		t.Fatalf("code = %q, want RATE_LIMITED", apierr.Code(lastErr))
	}

	// Internal call sites that already charged quota can bypass.
	bypass := req
	bypass.Goal = "d"
	bypass.BypassRateLimit = true
	if _, err := f.svc.GenerateSuggestions(ctx, bypass); err != nil {
		t.Fatalf("bypass call failed: %v", err)
	}
}

func TestGenerateSuggestionsKBFailureDegrades(t *testing.T) {
	f := newSuggestionFixture(t)
	f.kb.err = errors.New("kb unavailable")

	outcome, err := f.svc.GenerateSuggestions(context.Background(), f.request())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if outcome.Freestyle.SourcesUsed.KBQueried {
		t.Fatalf("kb flag set despite failure")
	}
	if len(outcome.Freestyle.Suggestions) == 0 {
		t.Fatalf("expected suggestions despite kb failure")
	}
}

func TestGenerateSuggestionsVisionFailureDegrades(t *testing.T) {
	f := newSuggestionFixture(t)
	f.vision.analysis = nil
	f.vision.err = errors.New("vision down")

	outcome, err := f.svc.GenerateSuggestions(context.Background(), f.request())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if outcome.Freestyle.SourcesUsed.AnalysisUsed {
		t.Fatalf("analysis flag set despite failure")
	}
}

func TestGenerateSuggestionsLLMRateLimitRemap(t *testing.T) {
	f := newSuggestionFixture(t)
	f.ai.err = errors.New("upstream said: 429 Too Many Requests")

	_, err := f.svc.GenerateSuggestions(context.Background(), f.request())
	if apierr.Code(err) != apierr.CodeRateLimited {
		t.Fatalf("code = %q, want RATE_LIMITED", apierr.Code(err))
	}
}

func TestGenerateSuggestionsUnparseableOutput(t *testing.T) {
	f := newSuggestionFixture(t)
	f.ai.text = "I'm sorry, I can't produce JSON today."

	_, err := f.svc.GenerateSuggestions(context.Background(), f.request())
	if apierr.Code(err) != apierr.CodeLLMError {
		t.Fatalf("code = %q, want LLM_ERROR", apierr.Code(err))
	}
}

func TestGenerateSuggestionsTemplateMode(t *testing.T) {
	f := newSuggestionFixture(t)

	templateID := uuid.New()
	f.templates.templates[templateID] = &types.AdTemplate{
		ID:            templateID,
		Title:         "Sunlit Living Room",
		Blueprint:     "A wide shot of a sunlit living room with {{PRODUCT}} as the focal point.",
		PlacementHint: "center-left third",
	}
	f.ai.text = `{"product_placement": "on a woven rug", "details_to_emphasize": ["grain"], "color_harmony": ["walnut"], "lighting_notes": "morning sun", "confidence": 90, "reasoning": "fits mood"}`

	req := f.request()
	req.Mode = types.ModeTemplate
	req.TemplateID = &templateID

	outcome, err := f.svc.GenerateSuggestions(context.Background(), req)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	resp := outcome.Template
	if resp == nil {
		t.Fatalf("expected template response")
	}
	if strings.Contains(resp.MergedPrompt, types.SubjectPlaceholder) {
		t.Fatalf("placeholder not substituted: %q", resp.MergedPrompt)
	}
	if !strings.Contains(resp.MergedPrompt, "Oak Dining Table") {
		t.Fatalf("subject missing from merged prompt: %q", resp.MergedPrompt)
	}
	for _, clause := range []string{"on a woven rug", "grain", "walnut", "morning sun", "center-left third"} {
		if !strings.Contains(resp.MergedPrompt, clause) {
			t.Fatalf("merged prompt missing %q:\n%s", clause, resp.MergedPrompt)
		}
	}
	if resp.Slots.Confidence != 90 {
		t.Fatalf("slots confidence = %d", resp.Slots.Confidence)
	}

	// Template mode is never cached: the same request calls the model again.
	req.BypassRateLimit = true
	if _, err := f.svc.GenerateSuggestions(context.Background(), req); err != nil {
		t.Fatalf("repeat call failed: %v", err)
	}
	if f.ai.textCalls != 2 {
		t.Fatalf("model called %d times, want 2", f.ai.textCalls)
	}
}

func TestGenerateSuggestionsUploadsOnly(t *testing.T) {
	f := newSuggestionFixture(t)

	req := types.SuggestRequest{
		UserID:             f.userID,
		UploadDescriptions: []string{"hand-thrown ceramic mug, speckled glaze"},
	}
	outcome, err := f.svc.GenerateSuggestions(context.Background(), req)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if outcome.Freestyle.SourcesUsed.AnalysisUsed {
		t.Fatalf("no product, no analysis")
	}
	if outcome.Freestyle.Recipe != nil {
		t.Fatalf("recipe needs a product")
	}
	if f.vision.calls != 0 {
		t.Fatalf("vision called without a product")
	}
	if !strings.Contains(f.ai.prompts[0], "ceramic mug") {
		t.Fatalf("upload description missing from prompt")
	}
}

func TestGetMatchedTemplates(t *testing.T) {
	f := newSuggestionFixture(t)
	f.templates.list = []types.AdTemplate{
		{ID: uuid.New(), Title: "Furniture Fit", BestForProductTypes: types.StringsToJSON([]string{"furniture"})},
		{ID: uuid.New(), Title: "No Fit"},
	}

	result, err := f.svc.GetMatchedTemplates(context.Background(), f.productID, f.userID)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if len(result.Templates) != 1 || result.Templates[0].Template.Title != "Furniture Fit" {
		t.Fatalf("templates = %#v", result.Templates)
	}
	if result.Analysis == nil || result.Analysis.Category != "furniture" {
		t.Fatalf("analysis missing from result")
	}

	t.Run("unknown product", func(t *testing.T) {
		_, err := f.svc.GetMatchedTemplates(context.Background(), uuid.New(), f.userID)
		if apierr.Code(err) != apierr.CodeProductNotFound {
			t.Fatalf("code = %q, want PRODUCT_NOT_FOUND", apierr.Code(err))
		}
	})

	t.Run("analysis failure is fatal here", func(t *testing.T) {
		f.vision.analysis = nil
		f.vision.err = errors.New("vision down")
		_, err := f.svc.GetMatchedTemplates(context.Background(), f.productID, f.userID)
		if apierr.Code(err) != apierr.CodeAnalysisFailed {
			t.Fatalf("code = %q, want ANALYSIS_FAILED", apierr.Code(err))
		}
	})
}
