package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/openai"
	"github.com/adcraft-ai/adcraft-backend/internal/repos"
	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

// analysisModelVersion tags stored analyses. Bumping it invalidates every
// stored row on next read, forcing re-analysis under the new prompt.
const analysisModelVersion = "product-analysis-v2"

const analysisSystemPrompt = `You are a product analyst for an ad creative tool.
Analyze the product image and return structured facts about the product.
Only describe what is visible. Use short lowercase phrases.`

// VisionService produces and persists product image analyses. Stored rows are
// reused only while both the image fingerprint and the model version match.
type VisionService interface {
	GetOrAnalyze(ctx context.Context, product *types.Product) (*types.AnalysisView, error)
	InvalidateAnalysis(ctx context.Context, productID uuid.UUID) error
}

type visionService struct {
	log      *logger.Logger
	ai       openai.Client
	enricher VisionEnricher
	analyses repos.AnalysisRepo
}

func NewVisionService(log *logger.Logger, ai openai.Client, enricher VisionEnricher, analyses repos.AnalysisRepo) VisionService {
	return &visionService{
		log:      log.With("service", "VisionService"),
		ai:       ai,
		enricher: enricher,
		analyses: analyses,
	}
}

// ImageFingerprint identifies the image content a stored analysis was
// computed from. The URL is the identity here: product images are
// content-addressed uploads, so a changed image means a changed URL.
func ImageFingerprint(imageURL string) string {
	if imageURL == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(imageURL))
	return hex.EncodeToString(sum[:])
}

func (s *visionService) GetOrAnalyze(ctx context.Context, product *types.Product) (*types.AnalysisView, error) {
	if product == nil {
		return nil, fmt.Errorf("product required")
	}
	if product.ImageURL == "" {
		return nil, fmt.Errorf("product %s has no image", product.ID)
	}
	fingerprint := ImageFingerprint(product.ImageURL)

	stored, err := s.analyses.GetByProductID(ctx, nil, product.ID)
	if err != nil {
		s.log.Warn("stored analysis lookup failed", "product_id", product.ID, "error", err)
	} else if stored != nil && stored.ImageFingerprint == fingerprint && stored.ModelVersion == analysisModelVersion {
		return analysisViewFromRow(stored), nil
	}

	view, err := s.analyze(ctx, product.ImageURL, fingerprint)
	if err != nil {
		return nil, err
	}

	row := analysisRowFromView(product.ID, view)
	if err := s.analyses.Replace(ctx, nil, row); err != nil {
		// Persisting is an optimization; the caller still gets the analysis.
		s.log.Warn("analysis persist failed", "product_id", product.ID, "error", err)
	}
	return view, nil
}

func (s *visionService) InvalidateAnalysis(ctx context.Context, productID uuid.UUID) error {
	return s.analyses.DeleteByProductID(ctx, nil, productID)
}

func (s *visionService) analyze(ctx context.Context, imageURL, fingerprint string) (*types.AnalysisView, error) {
	result, err := s.ai.GenerateJSONWithImages(ctx,
		analysisSystemPrompt,
		"Analyze this product image.",
		[]openai.ImageInput{{ImageURL: imageURL, Detail: "low"}},
		"product_analysis",
		analysisSchema(),
	)
	if err != nil {
		return nil, fmt.Errorf("image analysis: %w", err)
	}

	view, err := decodeAnalysis(result)
	if err != nil {
		return nil, fmt.Errorf("image analysis: %w", err)
	}
	view.ImageFingerprint = fingerprint
	view.ModelVersion = analysisModelVersion

	s.enrich(ctx, imageURL, view)
	return view, nil
}

// enrich fills gaps with Cloud Vision signals. Strictly best effort; any
// failure leaves the model analysis as-is.
func (s *visionService) enrich(ctx context.Context, imageURL string, view *types.AnalysisView) {
	if s.enricher == nil {
		return
	}
	enrichment, err := s.enricher.Enrich(ctx, imageURL)
	if err != nil {
		s.log.Warn("vision enrichment failed", "error", err)
		return
	}
	if enrichment == nil {
		return
	}
	if len(view.Colors) == 0 {
		view.Colors = enrichment.ColorNames
	}
	if view.DetectedText == "" {
		view.DetectedText = enrichment.DetectedText
	}
	if view.Category == "" && len(enrichment.Labels) > 0 {
		view.Category = enrichment.Labels[0]
	}
}

func analysisSchema() map[string]any {
	stringArray := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"category":           map[string]any{"type": "string"},
			"subcategory":        map[string]any{"type": "string"},
			"materials":          stringArray,
			"colors":             stringArray,
			"style":              map[string]any{"type": "string"},
			"usage_context":      map[string]any{"type": "string"},
			"target_demographic": map[string]any{"type": "string"},
			"detected_text":      map[string]any{"type": "string"},
			"confidence":         map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
		},
		"required": []string{
			"category", "subcategory", "materials", "colors", "style",
			"usage_context", "target_demographic", "detected_text", "confidence",
		},
		"additionalProperties": false,
	}
}

func decodeAnalysis(result map[string]any) (*types.AnalysisView, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var view types.AnalysisView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, err
	}
	if view.Category == "" {
		return nil, fmt.Errorf("analysis missing category")
	}
	if view.Confidence < 0 {
		view.Confidence = 0
	}
	if view.Confidence > 100 {
		view.Confidence = 100
	}
	return &view, nil
}

func analysisViewFromRow(row *types.ProductAnalysis) *types.AnalysisView {
	return &types.AnalysisView{
		Category:          row.Category,
		Subcategory:       row.Subcategory,
		Materials:         types.StringsFromJSON(row.Materials),
		Colors:            types.StringsFromJSON(row.Colors),
		Style:             row.Style,
		UsageContext:      row.UsageContext,
		TargetDemographic: row.TargetDemographic,
		DetectedText:      row.DetectedText,
		Confidence:        row.Confidence,
		ImageFingerprint:  row.ImageFingerprint,
		ModelVersion:      row.ModelVersion,
	}
}

func analysisRowFromView(productID uuid.UUID, view *types.AnalysisView) *types.ProductAnalysis {
	return &types.ProductAnalysis{
		ProductID:         productID,
		Category:          view.Category,
		Subcategory:       view.Subcategory,
		Materials:         types.StringsToJSON(view.Materials),
		Colors:            types.StringsToJSON(view.Colors),
		Style:             view.Style,
		UsageContext:      view.UsageContext,
		TargetDemographic: view.TargetDemographic,
		DetectedText:      view.DetectedText,
		Confidence:        view.Confidence,
		ImageFingerprint:  view.ImageFingerprint,
		ModelVersion:      view.ModelVersion,
	}
}
