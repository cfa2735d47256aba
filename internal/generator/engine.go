// Package generator produces personalized message openers through a set of
// prompt variants, with static templates as the non-generative fallback.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"outreach/internal/contact"
	"outreach/internal/llm"
	"outreach/internal/scrape"
)

// boilerplate prefixes models sometimes prepend despite instructions.
var openerPrefixes = []string{
	"Here's an opener:",
	"Opener:",
	"Email opener:",
	"Here is",
}

// Engine generates openers through a chat model.
type Engine struct {
	chat      llm.Chatter
	model     string
	maxTokens int
}

// NewEngine creates an Engine using the given model.
func NewEngine(chat llm.Chatter, model string, maxTokens int) *Engine {
	return &Engine{chat: chat, model: model, maxTokens: maxTokens}
}

// GenerateOpener produces an opener for one contact using the named prompt
// variant. On retries, the previous attempt and its evaluation feedback are
// appended to the prompt so the model can improve on the rejection.
func (e *Engine) GenerateOpener(ctx context.Context, c contact.Contact, sctx scrape.SiteContext, variantKey, prior, feedback string) (string, error) {
	if !sctx.HasUsableContent() {
		return "", errors.New("context not usable for generation")
	}

	variant, ok := VariantByKey(variantKey)
	if !ok {
		return "", fmt.Errorf("unknown prompt variant: %s", variantKey)
	}

	prompt := buildPrompt(variant, c, sctx)
	if prior != "" && feedback != "" {
		prompt += fmt.Sprintf(`

Your previous attempt was rejected. Previous attempt:
%s

Feedback:
%s

Write an improved opener that fixes these problems.`, prior, feedback)
	}

	raw, err := e.chat.Chat(ctx, llm.ChatRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generating opener: %w", err)
	}

	opener := cleanOpener(raw)
	if opener == "" {
		return "", errors.New("model returned empty opener")
	}
	return opener, nil
}

// cleanOpener strips wrapping quotes and boilerplate prefixes from model
// output.
func cleanOpener(s string) string {
	s = strings.TrimSpace(s)

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = s[1 : len(s)-1]
	}

	for _, prefix := range openerPrefixes {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = strings.TrimSpace(s[len(prefix):])
		}
	}

	return strings.TrimSpace(s)
}
