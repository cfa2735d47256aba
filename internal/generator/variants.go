package generator

import (
	"fmt"

	"outreach/internal/contact"
	"outreach/internal/scrape"
)

// systemPrompt frames every opener generation call.
const systemPrompt = `You are an expert at writing personalized cold email openers for an AI consultancy. Your openers should:
- Be 1-2 sentences maximum
- Reference something specific from the company's content
- Feel genuine and not salesy
- Create a natural bridge to discussing AI solutions
- Never use generic phrases like "I was impressed by" or "I noticed that"

Output ONLY the opener text, nothing else.`

// Variant is one prompt strategy for opener generation.
type Variant struct {
	Key         string
	Name        string
	Description string
	template    string
}

// Variants lists every prompt strategy in the order the retry loop walks
// them.
var Variants = []Variant{
	{
		Key:         "direct_reference",
		Name:        "Direct Reference",
		Description: "Directly reference a specific article or topic",
		template: `Write a cold email opener for %s at %s.

Their recent content discusses:
%s

Reference something specific from their content that relates to AI/automation opportunities.`,
	},
	{
		Key:         "problem_focused",
		Name:        "Problem Focused",
		Description: "Focus on a problem or challenge they might face",
		template: `Write a cold email opener for %s at %s.

Based on their content:
%s

Identify a challenge they might face that AI could solve, and reference it naturally.`,
	},
	{
		Key:         "compliment_insight",
		Name:        "Compliment + Insight",
		Description: "Compliment their work then add an insight",
		template: `Write a cold email opener for %s at %s.

Their recent content:
%s

Start with a specific compliment about their content, then add a brief insight about AI potential.`,
	},
	{
		Key:         "question_based",
		Name:        "Question Based",
		Description: "Open with a thoughtful question",
		template: `Write a cold email opener for %s at %s.

Context from their blog:
%s

Ask a thoughtful question based on their content that leads to AI/automation discussion.`,
	},
	{
		Key:         "shared_interest",
		Name:        "Shared Interest",
		Description: "Establish common ground",
		template: `Write a cold email opener for %s at %s.

Their content covers:
%s

Find common ground between their focus areas and AI solutions. Make it feel like a peer reaching out.`,
	},
	{
		Key:         "trend_connection",
		Name:        "Trend Connection",
		Description: "Connect their work to broader trends",
		template: `Write a cold email opener for %s at %s.

Recent content:
%s

Connect something from their content to a broader industry trend involving AI/automation.`,
	},
	{
		Key:         "specific_quote",
		Name:        "Specific Quote",
		Description: "Reference or paraphrase something specific",
		template: `Write a cold email opener for %s at %s.

From their blog:
%s

Reference or paraphrase a specific point from their content and connect it to AI opportunities.`,
	},
	{
		Key:         "future_focused",
		Name:        "Future Focused",
		Description: "Focus on future possibilities",
		template: `Write a cold email opener for %s at %s.

Their content:
%s

Based on where they seem to be heading, mention an AI-related opportunity for their future.`,
	},
	{
		Key:         "contrarian",
		Name:        "Contrarian Angle",
		Description: "Offer a slightly different perspective",
		template: `Write a cold email opener for %s at %s.

Their recent writing:
%s

Offer a thoughtful, slightly different perspective on something they wrote about, related to AI.`,
	},
	{
		Key:         "minimalist",
		Name:        "Minimalist",
		Description: "Ultra-concise, one sentence only",
		template: `Write a ONE SENTENCE cold email opener for %s at %s.

Context:
%s

Be extremely concise - just one punchy sentence that references their content and hints at AI value.`,
	},
}

// VariantKeys returns the ordered variant keys.
func VariantKeys() []string {
	keys := make([]string, len(Variants))
	for i, v := range Variants {
		keys[i] = v.Key
	}
	return keys
}

// VariantByKey looks a variant up by its key.
func VariantByKey(key string) (Variant, bool) {
	for _, v := range Variants {
		if v.Key == key {
			return v, true
		}
	}
	return Variant{}, false
}

// buildPrompt fills a variant's template for one contact and context.
func buildPrompt(v Variant, c contact.Contact, sctx scrape.SiteContext) string {
	return fmt.Sprintf(v.template, c.FirstName, c.Company, sctx.Summary)
}
