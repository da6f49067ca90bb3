package services

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Length budgets for sanitized text. Knowledge-base content gets a larger
// budget than user-supplied prompt text; output fields parsed from model
// text are capped hard.
const (
	KBContentMaxLen   = 5000
	UserPromptMaxLen  = 2000
	OutputFieldMaxLen = 500
)

const filteredToken = "[filtered]"

// injectionRule pairs one pattern with its category. Rules are evaluated
// independently and in order so each one stays unit-testable on its own.
type injectionRule struct {
	Category string
	Re       *regexp.Regexp
}

var injectionRules = []injectionRule{
	{Category: "role_override", Re: regexp.MustCompile(`(?i)\b(system|assistant|developer)\s*:\s*`)},
	{Category: "role_override", Re: regexp.MustCompile(`(?i)<\s*/?\s*(system|assistant|im_start|im_end)\s*>`)},
	{Category: "instruction_override", Re: regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|messages?|rules?)`)},
	{Category: "instruction_override", Re: regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?)`)},
	{Category: "instruction_override", Re: regexp.MustCompile(`(?i)forget\s+(everything|all|your)\s+(instructions?|rules?|training)`)},
	{Category: "instruction_override", Re: regexp.MustCompile(`(?i)\byou\s+are\s+now\b`)},
	{Category: "instruction_override", Re: regexp.MustCompile(`(?i)\bnew\s+instructions?\s*:`)},
	{Category: "instruction_override", Re: regexp.MustCompile(`(?i)\bact\s+as\s+(if\s+you\s+are|a|an)\b`)},
	{Category: "prompt_extraction", Re: regexp.MustCompile(`(?i)(reveal|show|print|repeat|output|display)\s+(me\s+)?(your|the)\s+(system\s+)?(prompt|instructions?)`)},
	{Category: "prompt_extraction", Re: regexp.MustCompile(`(?i)what\s+(is|are)\s+your\s+(system\s+)?(prompt|instructions?)`)},
}

var (
	codeBlockRE = regexp.MustCompile("(?s)```.*?```")
	newlineRE   = regexp.MustCompile(`[\r\n]+`)
	multiWSRE   = regexp.MustCompile(`\s{2,}`)
)

type SanitizeOptions struct {
	MaxLength       int
	StripCodeBlocks bool
	StripNewlines   bool
}

// SanitizeText neutralizes adversarial phrasing in text destined for a
// generation prompt. Matches are replaced, never silently deleted, so the
// surrounding copy keeps its shape. Never fails; output length is bounded.
func SanitizeText(text string, opts SanitizeOptions) string {
	if text == "" {
		return ""
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = UserPromptMaxLen
	}

	out := text
	for _, rule := range injectionRules {
		out = rule.Re.ReplaceAllString(out, filteredToken)
	}
	if opts.StripCodeBlocks {
		out = codeBlockRE.ReplaceAllString(out, filteredToken)
	}
	if opts.StripNewlines {
		out = newlineRE.ReplaceAllString(out, " ")
	}
	out = multiWSRE.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)

	return truncateBytes(out, opts.MaxLength)
}

// truncateBytes caps s at max bytes without splitting a multi-byte rune.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

type DetectionResult struct {
	Detected bool
	Patterns []string
}

// DetectInjection classifies without modifying. Policy at the request
// boundary is detect-and-log, not hard-block: legitimate product copy
// ("you are now able to...") trips patterns often enough that blocking
// would burn real users.
func DetectInjection(text string) DetectionResult {
	res := DetectionResult{}
	if strings.TrimSpace(text) == "" {
		return res
	}
	seen := map[string]bool{}
	for _, rule := range injectionRules {
		if rule.Re.MatchString(text) && !seen[rule.Category] {
			seen[rule.Category] = true
			res.Patterns = append(res.Patterns, rule.Category)
		}
	}
	res.Detected = len(res.Patterns) > 0
	return res
}

var outputPolicy = bluemonday.StrictPolicy()

// SanitizeOutputField cleans one string parsed out of model output before it
// reaches a client. This defends against reflected markup the model might
// echo back, which is a different problem than prompt injection.
func SanitizeOutputField(s string) string {
	if s == "" {
		return ""
	}
	out := outputPolicy.Sanitize(s)
	out = html.UnescapeString(out)
	out = strings.NewReplacer("<", "", ">", "").Replace(out)
	out = strings.TrimSpace(out)
	return truncateBytes(out, OutputFieldMaxLen)
}
