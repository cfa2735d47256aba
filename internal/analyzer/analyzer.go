// Package analyzer produces one assessed content context per domain,
// serving repeated requests from the cache within its TTL.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"outreach/internal/cache"
	"outreach/internal/scrape"
)

// Discoverer locates a domain's content hub and scrapes articles from it.
// Satisfied by *scrape.HubFinder.
type Discoverer interface {
	FindHub(ctx context.Context, domain string) (string, bool)
	ScrapeArticles(ctx context.Context, hubURL string, maxArticles int) []scrape.Article
}

// ContextStore is the slice of the cache the analyzer needs.
type ContextStore interface {
	GetContext(domain string) (scrape.SiteContext, error)
	PutContext(sc scrape.SiteContext) error
}

// articleExcerptChars is how much of each article's content feeds the
// summary before the overall budget is applied.
const articleExcerptChars = 500

// Analyzer assembles scraped site contexts, cache-first. Every outcome,
// including failure paths, is written back so a domain is scraped at most
// once per cache cycle.
type Analyzer struct {
	discovery Discoverer
	store     ContextStore

	maxArticles     int
	minArticleWords int
	maxSummaryChars int
}

// New creates an Analyzer using the given discovery and storage components.
func New(discovery Discoverer, store ContextStore, maxArticles, minArticleWords, maxSummaryChars int) *Analyzer {
	return &Analyzer{
		discovery:       discovery,
		store:           store,
		maxArticles:     maxArticles,
		minArticleWords: minArticleWords,
		maxSummaryChars: maxSummaryChars,
	}
}

// GetContext returns the context for domain, scraping it only on a cache
// miss. The returned context always has Quality and ScrapedAt set.
func (a *Analyzer) GetContext(ctx context.Context, domain string) (scrape.SiteContext, error) {
	domain = strings.ToLower(domain)

	cached, err := a.store.GetContext(domain)
	if err == nil {
		slog.Debug("context served from cache", "domain", domain, "quality", cached.Quality)
		return cached, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		return scrape.SiteContext{}, fmt.Errorf("reading cached context for %s: %w", domain, err)
	}

	sc := a.scrapeContext(ctx, domain)

	if err := a.store.PutContext(sc); err != nil {
		return scrape.SiteContext{}, fmt.Errorf("caching context for %s: %w", domain, err)
	}
	return sc, nil
}

func (a *Analyzer) scrapeContext(ctx context.Context, domain string) scrape.SiteContext {
	now := time.Now().UTC()

	hubURL, ok := a.discovery.FindHub(ctx, domain)
	if !ok {
		slog.Info("no content hub found", "domain", domain)
		return scrape.SiteContext{
			Domain:       domain,
			Quality:      scrape.QualityLow,
			ErrorMessage: "No blog or content section found",
			ScrapedAt:    now,
		}
	}

	articles := a.discovery.ScrapeArticles(ctx, hubURL, a.maxArticles)
	if len(articles) == 0 {
		slog.Info("hub yielded no articles", "domain", domain, "hub", hubURL)
		return scrape.SiteContext{
			Domain:       domain,
			Quality:      scrape.QualityLow,
			HubURL:       hubURL,
			ErrorMessage: "Blog found but no articles could be extracted",
			ScrapedAt:    now,
		}
	}

	quality := a.assessQuality(articles)
	summary := a.buildSummary(articles)

	slog.Info("context scraped",
		"domain", domain,
		"hub", hubURL,
		"articles", len(articles),
		"quality", quality,
	)

	return scrape.SiteContext{
		Domain:    domain,
		Quality:   quality,
		HubURL:    hubURL,
		Articles:  articles,
		Summary:   summary,
		ScrapedAt: now,
	}
}

// assessQuality is GOOD when any article meets the minimum word count.
func (a *Analyzer) assessQuality(articles []scrape.Article) scrape.Quality {
	for _, article := range articles {
		if article.WordCount >= a.minArticleWords {
			return scrape.QualityGood
		}
	}
	return scrape.QualityLow
}

// buildSummary concatenates a titled excerpt per article and truncates the
// whole to the configured character budget.
func (a *Analyzer) buildSummary(articles []scrape.Article) string {
	parts := make([]string, 0, len(articles))
	for _, article := range articles {
		excerpt := truncateRunes(article.Content, articleExcerptChars)
		parts = append(parts, fmt.Sprintf("Title: %s\n%s", article.Title, excerpt))
	}

	summary := strings.Join(parts, "\n\n---\n\n")
	if truncated := truncateRunes(summary, a.maxSummaryChars); truncated != summary {
		summary = truncated + "..."
	}
	return summary
}

// truncateRunes shortens s to at most n characters without splitting a
// multi-byte rune at the boundary.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
