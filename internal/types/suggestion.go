package types

import "github.com/google/uuid"

type SuggestionMode string

const (
	ModeFreestyle SuggestionMode = "freestyle"
	ModeTemplate  SuggestionMode = "template"
)

type PromptMode string

const (
	PromptModeExactInsert PromptMode = "exact_insert"
	PromptModeInspiration PromptMode = "inspiration"
	PromptModeStandard    PromptMode = "standard"
)

// SuggestRequest is the intake contract for the pipeline. Either ProductID
// or at least one UploadDescription must be present.
type SuggestRequest struct {
	UserID             uuid.UUID      `json:"user_id"`
	ProductID          *uuid.UUID     `json:"product_id,omitempty"`
	UploadDescriptions []string       `json:"upload_descriptions,omitempty"`
	Goal               string         `json:"goal,omitempty"`
	Mode               SuggestionMode `json:"mode,omitempty"`
	TemplateID         *uuid.UUID     `json:"template_id,omitempty"`
	Count              int            `json:"count,omitempty"`
	Debug              bool           `json:"debug,omitempty"`

	// BypassRateLimit is settable only by internal call sites that already
	// charged quota once for the enclosing request.
	BypassRateLimit bool `json:"-"`
}

type SourcesUsed struct {
	AnalysisUsed bool `json:"analysis_used"`
	KBQueried    bool `json:"kb_queried"`
	BrandUsed    bool `json:"brand_used"`
	TemplatesFed bool `json:"templates_fed"`
}

type Suggestion struct {
	ID                     string      `json:"id"`
	Prompt                 string      `json:"prompt"`
	Mode                   PromptMode  `json:"mode"`
	TemplateIDs            []string    `json:"template_ids,omitempty"`
	Reasoning              string      `json:"reasoning"`
	Confidence             int         `json:"confidence"`
	SourcesUsed            SourcesUsed `json:"sources_used"`
	RecommendedPlatform    string      `json:"recommended_platform,omitempty"`
	RecommendedAspectRatio string      `json:"recommended_aspect_ratio,omitempty"`
}

// SlotSuggestion is the template-mode output: named content slots merged
// mechanically into the template blueprint instead of a freestanding prompt.
type SlotSuggestion struct {
	ProductHighlights  []string `json:"product_highlights"`
	ProductPlacement   string   `json:"product_placement"`
	DetailsToEmphasize []string `json:"details_to_emphasize"`
	HeaderCopy         string   `json:"header_copy,omitempty"`
	BodyCopy           string   `json:"body_copy,omitempty"`
	CallToAction       string   `json:"call_to_action,omitempty"`
	ColorHarmony       []string `json:"color_harmony"`
	LightingNotes      string   `json:"lighting_notes"`
	Confidence         int      `json:"confidence"`
	Reasoning          string   `json:"reasoning"`
}

type SuggestResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
	Recipe      *Recipe      `json:"recipe,omitempty"`
	SourcesUsed SourcesUsed  `json:"sources_used"`
	FromCache   bool         `json:"from_cache"`
}

type TemplateResponse struct {
	TemplateID   string         `json:"template_id"`
	MergedPrompt string         `json:"merged_prompt"`
	Slots        SlotSuggestion `json:"slots"`
	Recipe       *Recipe        `json:"recipe,omitempty"`
	SourcesUsed  SourcesUsed    `json:"sources_used"`
}

type MatchedTemplatesResult struct {
	Templates []ScoredTemplate `json:"templates"`
	Analysis  *AnalysisView    `json:"analysis"`
}

type ScoredTemplate struct {
	Template AdTemplate `json:"template"`
	Score    int        `json:"score"`
}
