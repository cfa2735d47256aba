package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"outreach/internal/llm"
)

// LinkRanker picks the navigation link most likely to be a blog or news
// section. Implementations return false when no candidate looks plausible.
type LinkRanker interface {
	RankLinks(ctx context.Context, domain string, links []NavLink) (NavLink, bool)
}

// ModelRanker asks the model to choose among candidate links. Any failure
// (call error, unparseable output, out-of-range pick) degrades to "no
// selection" so discovery can fall back to the static path list.
type ModelRanker struct {
	chat  llm.Chatter
	model string
}

// NewModelRanker creates a ModelRanker using the given (fast) model.
func NewModelRanker(chat llm.Chatter, model string) *ModelRanker {
	return &ModelRanker{chat: chat, model: model}
}

func (r *ModelRanker) RankLinks(ctx context.Context, domain string, links []NavLink) (NavLink, bool) {
	if len(links) == 0 {
		return NavLink{}, false
	}

	var sb strings.Builder
	for i, l := range links {
		fmt.Fprintf(&sb, "%d. %q -> %s\n", i, l.Text, l.Path)
	}

	prompt := fmt.Sprintf(`These are navigation links from the homepage of %s. Pick the one most likely to lead to the company's blog, news, or insights section.

%s
Respond with only a JSON object: {"index": <number>}. Use -1 if none of them looks like a content section.`, domain, sb.String())

	resp, err := r.chat.Chat(ctx, llm.ChatRequest{
		Model:    r.model,
		Messages: []llm.Message{{Role: "user", Content: prompt}},
		JSONOnly: true,
	})
	if err != nil {
		slog.Debug("link ranking failed", "domain", domain, "error", err)
		return NavLink{}, false
	}

	idx, err := parseIndex(resp)
	if err != nil {
		slog.Debug("link ranking returned unparseable output", "domain", domain, "error", err)
		return NavLink{}, false
	}
	if idx < 0 || idx >= len(links) {
		return NavLink{}, false
	}
	return links[idx], true
}

// parseIndex extracts {"index": n} from a model response that may be wrapped
// in code fences or surrounding prose.
func parseIndex(resp string) (int, error) {
	s := strings.TrimSpace(resp)
	if i := strings.Index(s, "```"); i != -1 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return 0, fmt.Errorf("no JSON object in response")
	}
	var obj struct {
		Index int `json:"index"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
		return 0, fmt.Errorf("unmarshal index: %w", err)
	}
	return obj.Index, nil
}
