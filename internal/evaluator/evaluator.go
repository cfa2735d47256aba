// Package evaluator scores candidate outreach messages against a set of
// deterministic writing checks plus one model-assisted review.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"outreach/internal/llm"
)

// aiPhrases are formulations typical of machine-written outreach.
var aiPhrases = []string{
	"I hope this email finds you well",
	"I trust this message finds you",
	"delve into",
	"it is worth noting",
	"it is important to note",
	"in today's fast-paced",
	"in this digital age",
	"in today's world",
	"paradigm shift",
	"game changer",
	"cutting-edge",
	"state-of-the-art",
	"revolutionary",
	"groundbreaking",
	"synergy",
	"leverage",
	"circle back",
	"touch base",
}

// weakQualifiers dilute prose (Strunk & White: omit needless words).
var weakQualifiers = []string{
	"rather", "very", "little", "pretty", "quite", "somewhat",
	"fairly", "really", "truly", "basically", "actually", "literally",
}

var passivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bis\s+\w+ed\b`),
	regexp.MustCompile(`(?i)\bare\s+\w+ed\b`),
	regexp.MustCompile(`(?i)\bwas\s+\w+ed\b`),
	regexp.MustCompile(`(?i)\bwere\s+\w+ed\b`),
	regexp.MustCompile(`(?i)\bbeen\s+\w+ed\b`),
	regexp.MustCompile(`(?i)\bbe\s+\w+ed\b`),
}

var vaguePhrases = []string{
	"and more", "and so on", "etc.", "various", "numerous",
	"several", "many", "a lot of", "a number of",
}

const (
	maxSentenceWords = 25
	maxBodyWords     = 150
	maxWordRepeats   = 3
)

// repetitionStoplist holds common words exempt from the repetition check.
var repetitionStoplist = map[string]bool{
	"that": true, "with": true, "your": true, "have": true,
}

var (
	wordPattern     = regexp.MustCompile(`\b\w+\b`)
	longWordPattern = regexp.MustCompile(`\b\w{4,}\b`)
	sentenceSplit   = regexp.MustCompile(`[.!?]+`)
)

// Result holds the findings for one candidate message.
type Result struct {
	IsAcceptable    bool     `json:"is_acceptable"`
	QualityScore    int      `json:"quality_score"`
	Issues          []string `json:"issues"`
	Suggestions     []string `json:"suggestions"`
	AIIndicators    []string `json:"ai_indicators"`
	StyleViolations []string `json:"style_violations"`
}

// FeedbackText renders the findings as a flat critique ending with the
// score against the threshold. This text is what the retry loop feeds back
// into generation.
func (r Result) FeedbackText(threshold int) string {
	var parts []string

	appendGroup := func(heading string, items []string) {
		if len(items) == 0 {
			return
		}
		if len(parts) > 0 {
			heading = "\n" + heading
		}
		parts = append(parts, heading)
		for _, item := range items {
			parts = append(parts, "  - "+item)
		}
	}

	appendGroup("AI Writing Issues:", r.AIIndicators)
	appendGroup("Style Violations:", r.StyleViolations)
	appendGroup("Other Issues:", r.Issues)
	appendGroup("Suggestions:", r.Suggestions)

	parts = append(parts, fmt.Sprintf("\nQuality Score: %d/100 (needs %d+)", r.QualityScore, threshold))
	return strings.Join(parts, "\n")
}

// Weights tune the scoring penalty. The per-finding penalty is
// Multiplier*weight and the score is 100 minus the total, floored at zero.
type Weights struct {
	AI         int
	Style      int
	Other      int
	Multiplier int
}

// Evaluator runs the deterministic checks and, when a model is available,
// one model-assisted review per candidate. A failed model call degrades the
// evaluation to deterministic findings only.
type Evaluator struct {
	chat      llm.Chatter
	model     string
	threshold int
	weights   Weights
}

// New creates an Evaluator. chat may be nil to run deterministic checks
// only.
func New(chat llm.Chatter, model string, threshold int, weights Weights) *Evaluator {
	return &Evaluator{chat: chat, model: model, threshold: threshold, weights: weights}
}

// Threshold returns the acceptance threshold the evaluator scores against.
func (e *Evaluator) Threshold() int { return e.threshold }

// Evaluate scores a candidate message body and subject.
func (e *Evaluator) Evaluate(ctx context.Context, body, subject string) Result {
	var r Result

	r.AIIndicators = append(r.AIIndicators, checkAIPhrases(body)...)
	r.StyleViolations = append(r.StyleViolations, checkQualifiers(body)...)
	r.StyleViolations = append(r.StyleViolations, checkPassiveVoice(body)...)
	r.Issues = append(r.Issues, checkVagueLanguage(body)...)
	r.Issues = append(r.Issues, checkLength(body)...)
	r.Issues = append(r.Issues, checkRepetition(body)...)

	if extra, ok := e.modelReview(ctx, body, subject); ok {
		r.AIIndicators = append(r.AIIndicators, extra.AIIndicators...)
		r.StyleViolations = append(r.StyleViolations, extra.StyleIssues...)
		r.Suggestions = append(r.Suggestions, extra.Suggestions...)
	}

	penalty := e.weights.Multiplier * (e.weights.AI*len(r.AIIndicators) +
		e.weights.Style*len(r.StyleViolations) +
		e.weights.Other*len(r.Issues))
	r.QualityScore = 100 - penalty
	if r.QualityScore < 0 {
		r.QualityScore = 0
	}
	r.IsAcceptable = r.QualityScore >= e.threshold

	slog.Debug("candidate evaluated",
		"score", r.QualityScore,
		"acceptable", r.IsAcceptable,
		"ai_indicators", len(r.AIIndicators),
		"style_violations", len(r.StyleViolations),
		"other_issues", len(r.Issues),
	)

	return r
}

func checkAIPhrases(text string) []string {
	var found []string
	lower := strings.ToLower(text)
	for _, phrase := range aiPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			found = append(found, fmt.Sprintf("AI phrase detected: '%s'", phrase))
		}
	}
	return found
}

func checkQualifiers(text string) []string {
	var found []string
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}
	for _, q := range weakQualifiers {
		if n := counts[q]; n > 0 {
			found = append(found, fmt.Sprintf("Weak qualifier used %dx: '%s'", n, q))
		}
	}
	return found
}

// checkPassiveVoice reports at most one finding regardless of how many
// patterns match.
func checkPassiveVoice(text string) []string {
	for _, p := range passivePatterns {
		if matches := p.FindAllString(text, -1); len(matches) > 0 {
			return []string{fmt.Sprintf("Passive voice detected: %d instance(s)", len(matches))}
		}
	}
	return nil
}

func checkVagueLanguage(text string) []string {
	var found []string
	lower := strings.ToLower(text)
	for _, phrase := range vaguePhrases {
		if strings.Contains(lower, phrase) {
			found = append(found, fmt.Sprintf("Vague language: '%s'", phrase))
		}
	}
	return found
}

func checkLength(text string) []string {
	var issues []string

	longSentences := 0
	for _, s := range sentenceSplit.Split(text, -1) {
		if len(strings.Fields(s)) > maxSentenceWords {
			longSentences++
		}
	}
	if longSentences > 0 {
		issues = append(issues, fmt.Sprintf("%d sentence(s) too long (>%d words)", longSentences, maxSentenceWords))
	}

	if n := len(strings.Fields(text)); n > maxBodyWords {
		issues = append(issues, fmt.Sprintf("Email too long (%d words, aim for <%d)", n, maxBodyWords))
	}

	return issues
}

func checkRepetition(text string) []string {
	words := longWordPattern.FindAllString(strings.ToLower(text), -1)
	counts := make(map[string]int, len(words))
	order := make([]string, 0, len(words))
	for _, w := range words {
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	var issues []string
	for _, w := range order {
		if counts[w] > maxWordRepeats && !repetitionStoplist[w] {
			issues = append(issues, fmt.Sprintf("Repetitive: '%s' used %dx", w, counts[w]))
		}
	}
	return issues
}

// modelReview wire schema. Missing or malformed responses mean "no
// additional findings", never an error.
type modelFindings struct {
	AIIndicators []string `json:"ai_indicators"`
	StyleIssues  []string `json:"style_issues"`
	Suggestions  []string `json:"suggestions"`
}

const reviewSystemPrompt = "You are an expert writing evaluator focused on detecting AI-generated text and applying Strunk & White principles."

func (e *Evaluator) modelReview(ctx context.Context, body, subject string) (modelFindings, bool) {
	if e.chat == nil {
		return modelFindings{}, false
	}

	prompt := fmt.Sprintf(`Evaluate this cold outreach email for quality issues.

Subject: %s

Body:
%s

Check for:
1. Signs of AI-generated writing (generic phrases, overly formal tone, unnatural phrasing)
2. Strunk & White violations (wordiness, passive voice, weak qualifiers)
3. Lack of specificity or personality
4. Sales-y or inauthentic language

Return a JSON object with:
{
    "ai_indicators": ["list of AI writing patterns found"],
    "style_issues": ["list of style/grammar issues"],
    "suggestions": ["brief suggestions for improvement"]
}

Be strict but fair. Only list actual problems found.`, subject, body)

	raw, err := e.chat.Chat(ctx, llm.ChatRequest{
		Model:       e.model,
		MaxTokens:   500,
		Temperature: 0.3,
		JSONOnly:    true,
		Messages: []llm.Message{
			{Role: "system", Content: reviewSystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		slog.Warn("model review failed, using deterministic checks only", "error", err)
		return modelFindings{}, false
	}

	var findings modelFindings
	if err := json.Unmarshal([]byte(raw), &findings); err != nil {
		slog.Warn("model review returned malformed JSON", "error", err)
		return modelFindings{}, false
	}
	return findings, true
}
