package types

// Recipe is the bounded cross-entity context snapshot handed to the
// downstream generation step. Built only when both a product and an
// enriched context exist; an empty shell is never returned.
type Recipe struct {
	Version       string              `json:"version"`
	Products      []RecipeProduct     `json:"products"`
	Relationships []RecipeRelation    `json:"relationships,omitempty"`
	Scenarios     []string            `json:"scenarios,omitempty"`
	Template      *RecipeTemplate     `json:"template,omitempty"`
	BrandImages   []string            `json:"brand_images,omitempty"`
	BrandVoice    string              `json:"brand_voice,omitempty"`
	DebugContext  *RecipeDebugContext `json:"debug_context,omitempty"`
}

type RecipeProduct struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Style       string   `json:"style,omitempty"`
	Materials   []string `json:"materials,omitempty"`
	Colors      []string `json:"colors,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Description string   `json:"description,omitempty"`
}

type RecipeRelation struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Object  string `json:"object"`
}

type RecipeTemplate struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Blueprint   string `json:"blueprint"`
	Platform    string `json:"platform,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type RecipeDebugContext struct {
	MatchedTemplateCount int   `json:"matched_template_count"`
	KBCitationCount      int   `json:"kb_citation_count"`
	ScenarioCount        int   `json:"scenario_count"`
	BuildMillis          int64 `json:"build_millis"`
}

// EnhancedContext is the aggregate the optional pipeline stages fill in.
// Any field may be empty when its stage was skipped or failed.
type EnhancedContext struct {
	Analysis    *AnalysisView `json:"analysis,omitempty"`
	KBContext   string        `json:"kb_context,omitempty"`
	KBCitations []string      `json:"kb_citations,omitempty"`
	Brand       *BrandProfile `json:"brand,omitempty"`
	Scenarios   []string      `json:"scenarios,omitempty"`
	Patterns    []string      `json:"patterns,omitempty"`
}

func (c *EnhancedContext) Empty() bool {
	if c == nil {
		return true
	}
	return c.Analysis == nil && c.KBContext == "" && c.Brand == nil &&
		len(c.Scenarios) == 0 && len(c.Patterns) == 0
}
