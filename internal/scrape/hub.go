package scrape

import (
	"context"
	"log/slog"

	"outreach/internal/fetch"
)

// hubPaths are conventional content-section paths, tried in order when
// discovery through the homepage fails.
var hubPaths = []string{
	"/blog", "/blog/",
	"/news", "/news/",
	"/insights", "/insights/",
	"/resources", "/resources/",
	"/articles", "/articles/",
	"/posts", "/posts/",
	"/updates", "/updates/",
}

// HubFinder locates a domain's content hub and scrapes articles from it.
type HubFinder struct {
	fetcher     *fetch.Fetcher
	ranker      LinkRanker
	maxAttempts int
	scheme      string
}

// NewHubFinder creates a HubFinder. ranker may be nil, in which case only
// the static path list is tried.
func NewHubFinder(fetcher *fetch.Fetcher, ranker LinkRanker, maxAttempts int) *HubFinder {
	return &HubFinder{fetcher: fetcher, ranker: ranker, maxAttempts: maxAttempts, scheme: "https"}
}

// FindHub returns the URL of the domain's blog/news section, or false when
// none was found. The homepage's navigation is ranked first; a candidate
// only counts if at least one article link is extractable from it. Failing
// that, conventional paths are tried in fixed order.
func (h *HubFinder) FindHub(ctx context.Context, domain string) (string, bool) {
	base := h.scheme + "://" + domain

	home := h.fetcher.Fetch(ctx, base, h.maxAttempts)
	if home.OK() && h.ranker != nil {
		links := ExtractNavLinks(home.HTML, base)
		if cand, ok := h.ranker.RankLinks(ctx, domain, links); ok {
			if h.verifyHub(ctx, cand.URL) {
				slog.Debug("hub found via navigation ranking", "domain", domain, "hub", cand.URL)
				return cand.URL, true
			}
			slog.Debug("ranked candidate failed verification", "domain", domain, "candidate", cand.URL)
		}
	} else if !home.OK() {
		slog.Debug("homepage fetch failed, trying conventional paths", "domain", domain, "error", home.Err)
	}

	for _, path := range hubPaths {
		url := base + path
		res := h.fetcher.Fetch(ctx, url, h.maxAttempts)
		if !res.OK() {
			continue
		}
		if len(ExtractArticleLinks(res.HTML, url, false)) >= 1 {
			slog.Debug("hub found via conventional path", "domain", domain, "hub", url)
			return url, true
		}
	}
	return "", false
}

// verifyHub confirms a candidate page exposes at least one article link,
// trying the strict extraction first and the flexible pass second.
func (h *HubFinder) verifyHub(ctx context.Context, hubURL string) bool {
	res := h.fetcher.Fetch(ctx, hubURL, h.maxAttempts)
	if !res.OK() {
		return false
	}
	return len(ExtractArticleLinks(res.HTML, hubURL, true)) >= 1
}

// ScrapeArticles fetches up to maxArticles article pages from the hub and
// returns those with extractable content. Individual fetch or parse
// failures shorten the result instead of failing it.
func (h *HubFinder) ScrapeArticles(ctx context.Context, hubURL string, maxArticles int) []Article {
	res := h.fetcher.Fetch(ctx, hubURL, h.maxAttempts)
	if !res.OK() {
		return nil
	}

	links := ExtractArticleLinks(res.HTML, hubURL, true)
	if len(links) > maxArticles {
		links = links[:maxArticles]
	}

	var articles []Article
	for _, link := range links {
		page := h.fetcher.Fetch(ctx, link.URL, h.maxAttempts)
		if !page.OK() {
			slog.Debug("article fetch failed", "url", link.URL, "error", page.Err)
			continue
		}
		article, ok := ParseArticle(page.HTML, link.URL)
		if !ok || article.WordCount == 0 {
			continue
		}
		articles = append(articles, article)
	}
	return articles
}
