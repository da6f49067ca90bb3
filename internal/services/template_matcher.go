package services

import (
	"sort"
	"strings"

	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

// Matching weights. The matcher is a deliberately auditable heuristic that
// keeps the full catalog out of the generation prompt, so the weights are
// fixed constants, not learned.
const (
	scoreProductTypeAffinity = 30
	scoreMoodMatch           = 20
	scoreEnvironmentMatch    = 15
	scorePerSharedTag        = 5

	maxMatchedTemplates = 5
)

// ScoreTemplate rates one template against a product analysis. Pure and
// deterministic; all string comparisons are case-insensitive.
func ScoreTemplate(tmpl types.AdTemplate, analysis types.AnalysisView) int {
	score := 0

	category := strings.ToLower(strings.TrimSpace(analysis.Category))
	subcategory := strings.ToLower(strings.TrimSpace(analysis.Subcategory))

	for _, pt := range types.StringsFromJSON(tmpl.BestForProductTypes) {
		p := strings.ToLower(strings.TrimSpace(pt))
		if p == "" {
			continue
		}
		if p == category || p == subcategory {
			score += scoreProductTypeAffinity
			break
		}
	}

	if mood := strings.ToLower(strings.TrimSpace(tmpl.Mood)); mood != "" {
		if mood == strings.ToLower(strings.TrimSpace(analysis.Style)) {
			score += scoreMoodMatch
		}
	}

	if env := strings.ToLower(strings.TrimSpace(tmpl.Environment)); env != "" {
		if strings.Contains(strings.ToLower(analysis.UsageContext), env) {
			score += scoreEnvironmentMatch
		}
	}

	analysisTags := map[string]bool{}
	for _, v := range analysis.Materials {
		analysisTags[strings.ToLower(strings.TrimSpace(v))] = true
	}
	for _, v := range analysis.Colors {
		analysisTags[strings.ToLower(strings.TrimSpace(v))] = true
	}
	analysisTags[category] = true
	analysisTags[subcategory] = true
	analysisTags[strings.ToLower(strings.TrimSpace(analysis.Style))] = true
	delete(analysisTags, "")

	for _, tag := range types.StringsFromJSON(tmpl.Tags) {
		if analysisTags[strings.ToLower(strings.TrimSpace(tag))] {
			score += scorePerSharedTag
		}
	}

	return score
}

// MatchTemplates ranks candidates against the analysis: stable sort by score
// descending, drop non-positive scores, return the top five.
func MatchTemplates(candidates []types.AdTemplate, analysis types.AnalysisView) []types.ScoredTemplate {
	scored := make([]types.ScoredTemplate, 0, len(candidates))
	for _, tmpl := range candidates {
		s := ScoreTemplate(tmpl, analysis)
		if s <= 0 {
			continue
		}
		scored = append(scored, types.ScoredTemplate{Template: tmpl, Score: s})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > maxMatchedTemplates {
		scored = scored[:maxMatchedTemplates]
	}
	return scored
}
