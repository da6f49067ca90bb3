package services

import (
	"strings"
	"testing"

	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

const cleanSuggestionJSON = `[
  {"prompt": "A sunlit product shot", "mode": "standard", "template_ids": ["t1"], "reasoning": "warm tones sell", "confidence": 80, "recommended_platform": "instagram", "recommended_aspect_ratio": "4:5"},
  {"prompt": "A moody studio close-up", "mode": "inspiration", "template_ids": [], "reasoning": "contrast", "confidence": 65, "recommended_platform": "tiktok", "recommended_aspect_ratio": "9:16"}
]`

func TestParseSuggestionArrayRecovery(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "clean json", raw: cleanSuggestionJSON},
		{name: "fenced in code block", raw: "Here you go:\n```json\n" + cleanSuggestionJSON + "\n```\nHope that helps."},
		{name: "wrapped in prose", raw: "Sure! " + cleanSuggestionJSON + " Let me know."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSuggestionArray(tc.raw)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("parsed %d suggestions, want 2", len(got))
			}
			if got[0].Prompt != "A sunlit product shot" {
				t.Fatalf("prompt = %q", got[0].Prompt)
			}
			if got[0].Mode != types.PromptModeStandard || got[1].Mode != types.PromptModeInspiration {
				t.Fatalf("modes = %q, %q", got[0].Mode, got[1].Mode)
			}
			if got[0].Confidence != 80 || got[1].Confidence != 65 {
				t.Fatalf("confidences = %d, %d", got[0].Confidence, got[1].Confidence)
			}
			if got[0].ID == "" || got[0].ID == got[1].ID {
				t.Fatalf("suggestions need distinct non-empty ids")
			}
		})
	}
}

func TestParseSuggestionArrayTruncated(t *testing.T) {
	// Token-limit truncation drops the closing "}" and "]".
	raw := `[{"prompt": "A sunlit product shot", "confidence": 80}, {"prompt": "A moody studio close-up", "confidence": 65`

	got, err := ParseSuggestionArray(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("parsed %d suggestions, want 2", len(got))
	}
	if got[1].Prompt != "A moody studio close-up" || got[1].Confidence != 65 {
		t.Fatalf("truncated record not recovered: %#v", got[1])
	}
}

func TestParseSuggestionArrayFailures(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "no array", raw: "I could not generate anything."},
		{name: "object instead of array", raw: `{"prompt": "x"}`},
		{name: "hopelessly malformed", raw: `[{"prompt": "x", "confidence": `},
		{name: "all records missing prompt", raw: `[{"reasoning": "no prompt here"}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseSuggestionArray(tc.raw); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseSuggestionArrayRecordValidation(t *testing.T) {
	raw := `[
  {"prompt": "keep me"},
  {"reasoning": "dropped, no prompt"},
  {"prompt": "clamp me", "confidence": 150},
  {"prompt": "floor me", "confidence": -5},
  {"prompt": "<script>alert(1)</script>tagged prompt", "mode": "bogus"}
]`
	got, err := ParseSuggestionArray(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("parsed %d suggestions, want 4", len(got))
	}

	if got[0].Confidence != 70 {
		t.Fatalf("missing confidence defaulted to %d, want 70", got[0].Confidence)
	}
	if got[0].TemplateIDs == nil || len(got[0].TemplateIDs) != 0 {
		t.Fatalf("missing arrays should default to empty, got %#v", got[0].TemplateIDs)
	}
	if got[1].Confidence != 100 {
		t.Fatalf("confidence 150 clamped to %d, want 100", got[1].Confidence)
	}
	if got[2].Confidence != 0 {
		t.Fatalf("confidence -5 clamped to %d, want 0", got[2].Confidence)
	}
	if strings.Contains(got[3].Prompt, "<") || strings.Contains(got[3].Prompt, "script") {
		t.Fatalf("markup survived sanitization: %q", got[3].Prompt)
	}
	if got[3].Mode != types.PromptModeStandard {
		t.Fatalf("unknown mode normalized to %q, want standard", got[3].Mode)
	}
}

func TestParseSlotSuggestion(t *testing.T) {
	raw := "```json\n" + `{
  "product_highlights": ["hand-stitched seams"],
  "product_placement": "center pedestal",
  "details_to_emphasize": ["grain texture"],
  "header_copy": "Built to last",
  "color_harmony": ["walnut", "cream"],
  "lighting_notes": "single key light",
  "confidence": 90,
  "reasoning": "matches template mood"
}` + "\n```"

	slots, err := ParseSlotSuggestion(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if slots.ProductPlacement != "center pedestal" {
		t.Fatalf("placement = %q", slots.ProductPlacement)
	}
	if slots.Confidence != 90 {
		t.Fatalf("confidence = %d", slots.Confidence)
	}
	if len(slots.ColorHarmony) != 2 {
		t.Fatalf("color harmony = %#v", slots.ColorHarmony)
	}
}

func TestParseSlotSuggestionTruncated(t *testing.T) {
	raw := `{"product_placement": "foreground", "confidence": 85, "reasoning": "cut off here`
	// Unterminated string literal is beyond bracket-count repair.
	if _, err := ParseSlotSuggestion(raw); err == nil {
		t.Fatalf("expected error for unterminated string")
	}

	raw = `{"product_placement": "foreground", "confidence": 85,`
	slots, err := ParseSlotSuggestion(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if slots.ProductPlacement != "foreground" || slots.Confidence != 85 {
		t.Fatalf("unexpected slots: %#v", slots)
	}
}
