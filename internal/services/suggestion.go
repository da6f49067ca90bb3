package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/apierr"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/openai"
	"github.com/adcraft-ai/adcraft-backend/internal/repos"
	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

const (
	defaultSuggestionCount = 3
	maxSuggestionCount     = 6
	templateListLimit      = 200
	maxLearnedPatterns     = 3
)

// SuggestOutcome is the union result of one generation run. Exactly one of
// Freestyle and Template is set on success.
type SuggestOutcome struct {
	Freestyle *types.SuggestResponse
	Template  *types.TemplateResponse
}

// SuggestionService is the top-level pipeline. Mandatory stages abort with a
// typed error; optional stages degrade and are logged with stage context.
type SuggestionService interface {
	GenerateSuggestions(ctx context.Context, req types.SuggestRequest) (*SuggestOutcome, error)
	GetMatchedTemplates(ctx context.Context, productID, userID uuid.UUID) (*types.MatchedTemplatesResult, error)
	InvalidateSuggestionCache(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID)
}

type suggestionService struct {
	log       *logger.Logger
	products  repos.ProductRepo
	brands    repos.BrandProfileRepo
	templates repos.TemplateRepo
	vision    VisionService
	kb        KnowledgeBaseService
	ai        openai.Client
	limiter   *RateLimitRegistry
	cache     *ResponseCache
	now       func() time.Time
}

type SuggestionServiceDeps struct {
	Products  repos.ProductRepo
	Brands    repos.BrandProfileRepo
	Templates repos.TemplateRepo
	Vision    VisionService
	KB        KnowledgeBaseService
	AI        openai.Client
	Limiter   *RateLimitRegistry
	Cache     *ResponseCache
	Now       func() time.Time
}

func NewSuggestionService(log *logger.Logger, deps SuggestionServiceDeps) SuggestionService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &suggestionService{
		log:       log.With("service", "SuggestionService"),
		products:  deps.Products,
		brands:    deps.Brands,
		templates: deps.Templates,
		vision:    deps.Vision,
		kb:        deps.KB,
		ai:        deps.AI,
		limiter:   deps.Limiter,
		cache:     deps.Cache,
		now:       deps.Now,
	}
}

// pipelineState carries everything the stages accumulate for one request.
type pipelineState struct {
	req         types.SuggestRequest
	template    *types.AdTemplate
	product     *types.Product
	subjectName string
	subjectDesc string
	fingerprint string
	cacheKey    string
	ectx        *types.EnhancedContext
	matched     []types.ScoredTemplate
	sources     types.SourcesUsed
}

func (s *suggestionService) GenerateSuggestions(ctx context.Context, req types.SuggestRequest) (*SuggestOutcome, error) {
	st := &pipelineState{req: normalizeRequest(req)}

	// Intake contract: a subject source must exist before any work happens.
	if st.req.ProductID == nil && len(st.req.UploadDescriptions) == 0 {
		return nil, apierr.ProductNotFound(fmt.Errorf("request needs a product id or at least one upload description"))
	}

	if !st.req.BypassRateLimit {
		if allowed, _ := s.limiter.Allow(st.req.UserID.String()); !allowed {
			return nil, apierr.RateLimited(fmt.Errorf("suggestion limit reached for user %s", st.req.UserID))
		}
	}

	if st.req.Mode == types.ModeTemplate {
		if err := s.resolveTemplate(ctx, st); err != nil {
			return nil, err
		}
	}

	if err := s.resolveSubject(ctx, st); err != nil {
		return nil, err
	}

	if st.req.Mode == types.ModeFreestyle {
		st.cacheKey = s.cache.Key(st.req)
		if cached, ok := s.cache.Get(ctx, st.cacheKey, st.fingerprint); ok {
			s.log.Info("suggestion served from cache", "user_id", st.req.UserID, "key", st.cacheKey)
			return &SuggestOutcome{Freestyle: cached}, nil
		}
	}

	s.buildEnhancedContext(ctx, st)

	if st.req.Mode == types.ModeTemplate {
		resp, err := s.runTemplateMode(ctx, st)
		if err != nil {
			return nil, err
		}
		return &SuggestOutcome{Template: resp}, nil
	}

	resp, err := s.runFreestyleMode(ctx, st)
	if err != nil {
		return nil, err
	}
	return &SuggestOutcome{Freestyle: resp}, nil
}

func (s *suggestionService) GetMatchedTemplates(ctx context.Context, productID, userID uuid.UUID) (*types.MatchedTemplatesResult, error) {
	product, err := s.products.GetByID(ctx, nil, productID)
	if err != nil {
		return nil, fmt.Errorf("product lookup: %w", err)
	}
	if product == nil {
		return nil, apierr.ProductNotFound(fmt.Errorf("product %s not found", productID))
	}

	analysis, err := s.vision.GetOrAnalyze(ctx, product)
	if err != nil {
		// Without an analysis there is nothing to score against, so this
		// surface treats the failure as fatal, unlike the pipeline.
		return nil, apierr.AnalysisFailed(fmt.Errorf("analyze product %s: %w", productID, err))
	}

	candidates, err := s.templates.List(ctx, nil, types.TemplateFilter{Limit: templateListLimit})
	if err != nil {
		return nil, fmt.Errorf("template list: %w", err)
	}

	return &types.MatchedTemplatesResult{
		Templates: MatchTemplates(candidates, *analysis),
		Analysis:  analysis,
	}, nil
}

func (s *suggestionService) InvalidateSuggestionCache(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) {
	s.cache.InvalidateUser(ctx, userID.String())
	for _, pid := range productIDs {
		if err := s.vision.InvalidateAnalysis(ctx, pid); err != nil {
			s.log.Warn("analysis invalidation failed", "product_id", pid, "error", err)
		}
	}
}

func (s *suggestionService) resolveTemplate(ctx context.Context, st *pipelineState) error {
	if st.req.TemplateID == nil {
		return apierr.TemplateRequired(fmt.Errorf("template mode needs a template id"))
	}
	tmpl, err := s.templates.GetByID(ctx, nil, *st.req.TemplateID)
	if err != nil {
		return fmt.Errorf("template lookup: %w", err)
	}
	if tmpl == nil {
		return apierr.TemplateNotFound(fmt.Errorf("template %s not found", *st.req.TemplateID))
	}
	st.template = tmpl
	return nil
}

// resolveSubject is one of the two non-negotiable stages: past this point the
// pipeline always has a subject name and description to build prompts from.
func (s *suggestionService) resolveSubject(ctx context.Context, st *pipelineState) error {
	if st.req.ProductID != nil {
		product, err := s.products.GetByID(ctx, nil, *st.req.ProductID)
		if err != nil {
			return fmt.Errorf("product lookup: %w", err)
		}
		if product == nil {
			return apierr.ProductNotFound(fmt.Errorf("product %s not found", *st.req.ProductID))
		}
		st.product = product
		st.subjectName = product.Name
		st.subjectDesc = product.Description
		st.fingerprint = ImageFingerprint(product.ImageURL)
		return nil
	}

	cleaned := make([]string, 0, len(st.req.UploadDescriptions))
	for _, d := range st.req.UploadDescriptions {
		if c := SanitizeText(d, SanitizeOptions{MaxLength: UserPromptMaxLen, StripNewlines: true}); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) == 0 {
		return apierr.ProductNotFound(fmt.Errorf("upload descriptions were empty after sanitization"))
	}
	st.subjectName = cleaned[0]
	st.subjectDesc = strings.Join(cleaned, "; ")
	return nil
}

// buildEnhancedContext runs every optional stage. Failures degrade: the
// stage's slot stays empty and the outcome is logged with stage context.
func (s *suggestionService) buildEnhancedContext(ctx context.Context, st *pipelineState) {
	ectx := &types.EnhancedContext{}

	if st.product != nil {
		analysis, err := s.vision.GetOrAnalyze(ctx, st.product)
		s.logStage("vision_analysis", err, "product_id", st.product.ID)
		if err == nil {
			ectx.Analysis = analysis
			st.sources.AnalysisUsed = true
		}
	}

	// Brand profile and KB retrieval have no data dependency on each other.
	var (
		brand    *types.BrandProfile
		brandErr error
		kbRes    *KBResult
		kbErr    error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		brand, brandErr = s.brands.GetByUserID(gctx, nil, st.req.UserID)
		return nil
	})
	g.Go(func() error {
		kbRes, kbErr = s.kb.Query(gctx, kbQueryText(st, ectx.Analysis), 5)
		return nil
	})
	_ = g.Wait()

	s.logStage("brand_profile_fetch", brandErr, "user_id", st.req.UserID)
	if brandErr == nil && brand != nil {
		ectx.Brand = brand
		st.sources.BrandUsed = true
	}

	s.logStage("kb_retrieval", kbErr)
	if kbErr == nil && kbRes != nil {
		ectx.KBContext = kbRes.Context
		ectx.KBCitations = kbRes.Citations
		st.sources.KBQueried = true
	}

	ectx.Scenarios = buildScenarios(ectx.Analysis, st.req.Goal)

	if st.req.Mode == types.ModeFreestyle && ectx.Analysis != nil {
		candidates, err := s.templates.List(ctx, nil, types.TemplateFilter{Limit: templateListLimit})
		s.logStage("template_match", err)
		if err == nil {
			st.matched = MatchTemplates(candidates, *ectx.Analysis)
			st.sources.TemplatesFed = len(st.matched) > 0
		}
	}

	if ectx.Analysis != nil {
		patterns, err := s.fetchLearnedPatterns(ctx, ectx.Analysis)
		s.logStage("learned_pattern_fetch", err)
		if err == nil {
			ectx.Patterns = patterns
		}
	}

	st.ectx = ectx
}

// fetchLearnedPatterns pulls proven concept patterns for the product family
// from the knowledge base. Same index as KB retrieval, different query.
func (s *suggestionService) fetchLearnedPatterns(ctx context.Context, analysis *types.AnalysisView) ([]string, error) {
	query := fmt.Sprintf("high-performing ad concept patterns for %s %s products",
		analysis.Style, analysis.Category)
	res, err := s.kb.Query(ctx, query, maxLearnedPatterns)
	if err != nil || res == nil {
		return nil, err
	}
	patterns := strings.Split(res.Context, "\n\n")
	if len(patterns) > maxLearnedPatterns {
		patterns = patterns[:maxLearnedPatterns]
	}
	return patterns, nil
}

func (s *suggestionService) runFreestyleMode(ctx context.Context, st *pipelineState) (*types.SuggestResponse, error) {
	prompt := buildFreestylePrompt(st)

	raw, err := s.ai.GenerateText(ctx, freestyleSystemPrompt, prompt, openai.GenerateConfig{})
	if err != nil {
		return nil, apierr.FromLLM(err)
	}

	suggestions, err := ParseSuggestionArray(raw)
	if err != nil {
		return nil, apierr.LLMError(fmt.Errorf("model output unusable: %w", err))
	}
	if len(suggestions) > st.req.Count {
		suggestions = suggestions[:st.req.Count]
	}
	for i := range suggestions {
		suggestions[i].SourcesUsed = st.sources
	}

	resp := &types.SuggestResponse{
		Suggestions: suggestions,
		Recipe:      BuildRecipe(st.product, st.ectx, st.matched, st.req.Debug, s.now),
		SourcesUsed: st.sources,
	}

	if st.cacheKey != "" {
		s.cache.Set(ctx, st.cacheKey, st.fingerprint, resp)
	}

	s.log.Info("suggestions generated",
		"user_id", st.req.UserID,
		"mode", st.req.Mode,
		"count", len(suggestions),
		"analysis_used", st.sources.AnalysisUsed,
		"kb_queried", st.sources.KBQueried,
		"brand_used", st.sources.BrandUsed,
		"templates_fed", st.sources.TemplatesFed)
	return resp, nil
}

func (s *suggestionService) runTemplateMode(ctx context.Context, st *pipelineState) (*types.TemplateResponse, error) {
	prompt := buildSlotPrompt(st)

	raw, err := s.ai.GenerateText(ctx, templateSystemPrompt, prompt, openai.GenerateConfig{})
	if err != nil {
		return nil, apierr.FromLLM(err)
	}

	slots, err := ParseSlotSuggestion(raw)
	if err != nil {
		return nil, apierr.LLMError(fmt.Errorf("model output unusable: %w", err))
	}

	merged := MergeTemplateBlueprint(st.template, st.subjectName, slots)

	matched := []types.ScoredTemplate{{Template: *st.template}}
	resp := &types.TemplateResponse{
		TemplateID:   st.template.ID.String(),
		MergedPrompt: merged,
		Slots:        *slots,
		Recipe:       BuildRecipe(st.product, st.ectx, matched, st.req.Debug, s.now),
		SourcesUsed:  st.sources,
	}

	s.log.Info("template slots generated",
		"user_id", st.req.UserID,
		"template_id", st.template.ID,
		"analysis_used", st.sources.AnalysisUsed,
		"kb_queried", st.sources.KBQueried)
	return resp, nil
}

// MergeTemplateBlueprint substitutes the subject into the approved blueprint
// and appends the generated guidance as clauses. The model never rewrites the
// blueprint itself, which keeps approved wording from drifting.
func MergeTemplateBlueprint(tmpl *types.AdTemplate, subjectName string, slots *types.SlotSuggestion) string {
	merged := strings.ReplaceAll(tmpl.Blueprint, types.SubjectPlaceholder, subjectName)

	var clauses []string
	if slots.ProductPlacement != "" {
		clauses = append(clauses, "Product placement: "+slots.ProductPlacement)
	}
	if len(slots.DetailsToEmphasize) > 0 {
		clauses = append(clauses, "Emphasize: "+strings.Join(slots.DetailsToEmphasize, ", "))
	}
	if len(slots.ColorHarmony) > 0 {
		clauses = append(clauses, "Color harmony: "+strings.Join(slots.ColorHarmony, ", "))
	}
	if slots.LightingNotes != "" {
		clauses = append(clauses, "Lighting: "+slots.LightingNotes)
	}
	if tmpl.PlacementHint != "" {
		clauses = append(clauses, "Placement hint: "+tmpl.PlacementHint)
	}

	if len(clauses) == 0 {
		return merged
	}
	return merged + "\n\n" + strings.Join(clauses, ". ") + "."
}

// logStage records one optional-stage outcome. Absence of an error is logged
// at debug so a degraded request can be reconstructed from its log line set.
func (s *suggestionService) logStage(stage string, err error, kv ...any) {
	if err != nil {
		s.log.Warn("pipeline stage degraded", append([]any{"stage", stage, "error", err}, kv...)...)
		return
	}
	s.log.Debug("pipeline stage ok", append([]any{"stage", stage}, kv...)...)
}

func normalizeRequest(req types.SuggestRequest) types.SuggestRequest {
	if req.Mode == "" {
		req.Mode = types.ModeFreestyle
	}
	if req.Count <= 0 {
		req.Count = defaultSuggestionCount
	}
	if req.Count > maxSuggestionCount {
		req.Count = maxSuggestionCount
	}
	req.Goal = SanitizeText(req.Goal, SanitizeOptions{MaxLength: UserPromptMaxLen, StripNewlines: true})
	return req
}

func kbQueryText(st *pipelineState, analysis *types.AnalysisView) string {
	parts := []string{"advertising concepts for", st.subjectName}
	if analysis != nil {
		if analysis.Category != "" {
			parts = append(parts, analysis.Category)
		}
		if analysis.Style != "" {
			parts = append(parts, analysis.Style)
		}
	}
	if st.req.Goal != "" {
		parts = append(parts, "goal:", st.req.Goal)
	}
	return strings.Join(parts, " ")
}

// buildScenarios derives deterministic usage scenarios from the analysis so
// the prompt always carries at least a little situational grounding.
func buildScenarios(analysis *types.AnalysisView, goal string) []string {
	var out []string
	if analysis != nil {
		if analysis.UsageContext != "" {
			out = append(out, "shown in use: "+analysis.UsageContext)
		}
		if analysis.TargetDemographic != "" {
			out = append(out, "aimed at "+analysis.TargetDemographic)
		}
		if analysis.Style != "" {
			out = append(out, analysis.Style+" styling")
		}
	}
	if goal != "" {
		out = append(out, "campaign goal: "+goal)
	}
	return out
}

const freestyleSystemPrompt = `You are a senior ad creative director.
Generate distinct, production-ready ad concept prompts for the product described.
Respond with only a JSON array. Each element must have the fields:
prompt (string), mode ("exact_insert", "inspiration" or "standard"),
template_ids (array of strings), reasoning (string), confidence (integer 0-100),
recommended_platform (string), recommended_aspect_ratio (string).`

const templateSystemPrompt = `You are a senior ad creative director filling the content slots of a fixed creative template.
Do not rewrite the template. Respond with only a JSON object with the fields:
product_highlights (array of strings), product_placement (string),
details_to_emphasize (array of strings), header_copy (string), body_copy (string),
call_to_action (string), color_harmony (array of strings), lighting_notes (string),
confidence (integer 0-100), reasoning (string).`

func buildFreestylePrompt(st *pipelineState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Product: %s\n", st.subjectName)
	if st.subjectDesc != "" && st.subjectDesc != st.subjectName {
		fmt.Fprintf(&b, "Description: %s\n", st.subjectDesc)
	}
	writeAnalysisBlock(&b, st.ectx.Analysis)
	writeBrandBlock(&b, st.ectx.Brand)

	if st.ectx.KBContext != "" {
		fmt.Fprintf(&b, "\nReference knowledge:\n%s\n", st.ectx.KBContext)
	}
	if len(st.ectx.Patterns) > 0 {
		b.WriteString("\nProven concept patterns:\n")
		for _, p := range st.ectx.Patterns {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	if len(st.ectx.Scenarios) > 0 {
		b.WriteString("\nScenarios to consider:\n")
		for _, sc := range st.ectx.Scenarios {
			fmt.Fprintf(&b, "- %s\n", sc)
		}
	}
	if len(st.matched) > 0 {
		b.WriteString("\nMatching catalog templates (reference by id in template_ids when a concept builds on one):\n")
		for _, m := range st.matched {
			fmt.Fprintf(&b, "- id=%s title=%q mood=%s environment=%s\n",
				m.Template.ID, m.Template.Title, m.Template.Mood, m.Template.Environment)
		}
	}
	if st.req.Goal != "" {
		fmt.Fprintf(&b, "\nCampaign goal: %s\n", st.req.Goal)
	}
	fmt.Fprintf(&b, "\nGenerate %d distinct concepts.\n", st.req.Count)
	return b.String()
}

func buildSlotPrompt(st *pipelineState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Template: %s\n", st.template.Title)
	fmt.Fprintf(&b, "Blueprint:\n%s\n", st.template.Blueprint)
	if st.template.Mood != "" {
		fmt.Fprintf(&b, "Mood: %s\n", st.template.Mood)
	}
	if st.template.Environment != "" {
		fmt.Fprintf(&b, "Environment: %s\n", st.template.Environment)
	}

	fmt.Fprintf(&b, "\nProduct: %s\n", st.subjectName)
	if st.subjectDesc != "" && st.subjectDesc != st.subjectName {
		fmt.Fprintf(&b, "Description: %s\n", st.subjectDesc)
	}
	writeAnalysisBlock(&b, st.ectx.Analysis)
	writeBrandBlock(&b, st.ectx.Brand)

	if st.ectx.KBContext != "" {
		fmt.Fprintf(&b, "\nReference knowledge:\n%s\n", st.ectx.KBContext)
	}
	if st.req.Goal != "" {
		fmt.Fprintf(&b, "\nCampaign goal: %s\n", st.req.Goal)
	}
	b.WriteString("\nFill the content slots for this product in this template.\n")
	return b.String()
}

func writeAnalysisBlock(b *strings.Builder, a *types.AnalysisView) {
	if a == nil {
		return
	}
	b.WriteString("\nProduct analysis:\n")
	fmt.Fprintf(b, "- category: %s / %s\n", a.Category, a.Subcategory)
	if len(a.Materials) > 0 {
		fmt.Fprintf(b, "- materials: %s\n", strings.Join(a.Materials, ", "))
	}
	if len(a.Colors) > 0 {
		fmt.Fprintf(b, "- colors: %s\n", strings.Join(a.Colors, ", "))
	}
	if a.Style != "" {
		fmt.Fprintf(b, "- style: %s\n", a.Style)
	}
	if a.UsageContext != "" {
		fmt.Fprintf(b, "- used: %s\n", a.UsageContext)
	}
	if a.TargetDemographic != "" {
		fmt.Fprintf(b, "- audience: %s\n", a.TargetDemographic)
	}
}

func writeBrandBlock(b *strings.Builder, brand *types.BrandProfile) {
	if brand == nil {
		return
	}
	b.WriteString("\nBrand:\n")
	if brand.BrandName != "" {
		fmt.Fprintf(b, "- name: %s\n", brand.BrandName)
	}
	if brand.Voice != "" {
		fmt.Fprintf(b, "- voice: %s\n", brand.Voice)
	}
	if brand.Audience != "" {
		fmt.Fprintf(b, "- audience: %s\n", brand.Audience)
	}
	if colors := types.StringsFromJSON(brand.Colors); len(colors) > 0 {
		fmt.Fprintf(b, "- colors: %s\n", strings.Join(colors, ", "))
	}
}
