package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

const defaultConfidence = 70

var fencedJSONRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// rawSuggestion mirrors the schema the model is asked to emit. Every field is
// optional here; validation decides what survives.
type rawSuggestion struct {
	Prompt                 string   `json:"prompt"`
	Mode                   string   `json:"mode"`
	TemplateIDs            []string `json:"template_ids"`
	Reasoning              string   `json:"reasoning"`
	Confidence             *int     `json:"confidence"`
	RecommendedPlatform    string   `json:"recommended_platform"`
	RecommendedAspectRatio string   `json:"recommended_aspect_ratio"`
}

type rawSlotSuggestion struct {
	ProductHighlights  []string `json:"product_highlights"`
	ProductPlacement   string   `json:"product_placement"`
	DetailsToEmphasize []string `json:"details_to_emphasize"`
	HeaderCopy         string   `json:"header_copy"`
	BodyCopy           string   `json:"body_copy"`
	CallToAction       string   `json:"call_to_action"`
	ColorHarmony       []string `json:"color_harmony"`
	LightingNotes      string   `json:"lighting_notes"`
	Confidence         *int     `json:"confidence"`
	Reasoning          string   `json:"reasoning"`
}

// ParseSuggestionArray extracts a suggestion list from raw model text. The
// text may arrive fenced, wrapped in prose, or truncated mid-array; one
// bounded repair attempt is made before giving up. Records without a prompt
// are dropped rather than failing the batch.
func ParseSuggestionArray(raw string) ([]types.Suggestion, error) {
	candidate, err := extractJSONCandidate(raw, '[', ']')
	if err != nil {
		return nil, err
	}

	var records []rawSuggestion
	if err := json.Unmarshal([]byte(candidate), &records); err != nil {
		repaired := repairTruncatedJSON(candidate)
		if err2 := json.Unmarshal([]byte(repaired), &records); err2 != nil {
			return nil, fmt.Errorf("parse suggestion array: %w", err)
		}
	}

	out := make([]types.Suggestion, 0, len(records))
	for _, rec := range records {
		prompt := SanitizeOutputField(rec.Prompt)
		if prompt == "" {
			continue
		}
		s := types.Suggestion{
			ID:                     uuid.NewString(),
			Prompt:                 prompt,
			Mode:                   normalizePromptMode(rec.Mode),
			TemplateIDs:            sanitizeStrings(rec.TemplateIDs),
			Reasoning:              SanitizeOutputField(rec.Reasoning),
			Confidence:             clampConfidence(rec.Confidence),
			RecommendedPlatform:    SanitizeOutputField(rec.RecommendedPlatform),
			RecommendedAspectRatio: SanitizeOutputField(rec.RecommendedAspectRatio),
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("parse suggestion array: no usable records")
	}
	return out, nil
}

// ParseSlotSuggestion is the template-mode variant: a single object holding
// slot values for a fixed blueprint.
func ParseSlotSuggestion(raw string) (*types.SlotSuggestion, error) {
	candidate, err := extractJSONCandidate(raw, '{', '}')
	if err != nil {
		return nil, err
	}

	var rec rawSlotSuggestion
	if err := json.Unmarshal([]byte(candidate), &rec); err != nil {
		repaired := repairTruncatedJSON(candidate)
		if err2 := json.Unmarshal([]byte(repaired), &rec); err2 != nil {
			return nil, fmt.Errorf("parse slot suggestion: %w", err)
		}
	}

	return &types.SlotSuggestion{
		ProductHighlights:  sanitizeStrings(rec.ProductHighlights),
		ProductPlacement:   SanitizeOutputField(rec.ProductPlacement),
		DetailsToEmphasize: sanitizeStrings(rec.DetailsToEmphasize),
		HeaderCopy:         SanitizeOutputField(rec.HeaderCopy),
		BodyCopy:           SanitizeOutputField(rec.BodyCopy),
		CallToAction:       SanitizeOutputField(rec.CallToAction),
		ColorHarmony:       sanitizeStrings(rec.ColorHarmony),
		LightingNotes:      SanitizeOutputField(rec.LightingNotes),
		Confidence:         clampConfidence(rec.Confidence),
		Reasoning:          SanitizeOutputField(rec.Reasoning),
	}, nil
}

// extractJSONCandidate locates the JSON payload inside raw: a fenced block if
// one exists, otherwise the span from the first open to the last close
// delimiter. The candidate must start at the open delimiter.
func extractJSONCandidate(raw string, open, close byte) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", fmt.Errorf("empty model output")
	}

	if m := fencedJSONRE.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", fmt.Errorf("no %q found in model output", string(open))
	}
	end := strings.LastIndexByte(text, close)
	if end > start {
		text = text[start : end+1]
	} else {
		text = text[start:]
	}

	if text[0] != open {
		return "", fmt.Errorf("model output does not start with %q", string(open))
	}
	return text, nil
}

// repairTruncatedJSON appends the closers a truncated payload is missing.
// It strips one dangling trailing comma, then balances braces and brackets
// by literal count. Good enough for output cut off by a token limit; anything
// worse still fails the reparse.
func repairTruncatedJSON(s string) string {
	out := strings.TrimSpace(s)
	out = strings.TrimSuffix(out, ",")

	opens := strings.Count(out, "{") - strings.Count(out, "}")
	for i := 0; i < opens; i++ {
		out += "}"
	}
	brackets := strings.Count(out, "[") - strings.Count(out, "]")
	for i := 0; i < brackets; i++ {
		out += "]"
	}
	return out
}

func normalizePromptMode(mode string) types.PromptMode {
	switch types.PromptMode(strings.ToLower(strings.TrimSpace(mode))) {
	case types.PromptModeExactInsert:
		return types.PromptModeExactInsert
	case types.PromptModeInspiration:
		return types.PromptModeInspiration
	default:
		return types.PromptModeStandard
	}
}

func clampConfidence(v *int) int {
	if v == nil {
		return defaultConfidence
	}
	if *v < 0 {
		return 0
	}
	if *v > 100 {
		return 100
	}
	return *v
}

func sanitizeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if clean := SanitizeOutputField(s); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
