package analyzer

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"outreach/internal/cache"
	"outreach/internal/scrape"
)

type mockDiscovery struct {
	findHubFn        func(ctx context.Context, domain string) (string, bool)
	scrapeArticlesFn func(ctx context.Context, hubURL string, max int) []scrape.Article

	findHubCalls int
}

func (m *mockDiscovery) FindHub(ctx context.Context, domain string) (string, bool) {
	m.findHubCalls++
	return m.findHubFn(ctx, domain)
}

func (m *mockDiscovery) ScrapeArticles(ctx context.Context, hubURL string, max int) []scrape.Article {
	return m.scrapeArticlesFn(ctx, hubURL, max)
}

func openTestStore(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.Open(":memory:", time.Hour)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func longArticle(title string, words int) scrape.Article {
	return scrape.Article{
		Title:     title,
		URL:       "https://example.com/blog/" + strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		Content:   strings.Repeat("word ", words),
		WordCount: words,
	}
}

func newTestAnalyzer(t *testing.T, d Discoverer) *Analyzer {
	t.Helper()
	return New(d, openTestStore(t), 3, 100, 2000)
}

func TestGetContext_GoodWhenAnyArticleMeetsMinimum(t *testing.T) {
	d := &mockDiscovery{
		findHubFn: func(context.Context, string) (string, bool) {
			return "https://example.com/blog", true
		},
		scrapeArticlesFn: func(context.Context, string, int) []scrape.Article {
			return []scrape.Article{longArticle("Short one", 20), longArticle("Long one", 150)}
		},
	}
	a := newTestAnalyzer(t, d)

	sc, err := a.GetContext(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if sc.Quality != scrape.QualityGood {
		t.Errorf("quality = %q, want %q", sc.Quality, scrape.QualityGood)
	}
	if sc.HubURL != "https://example.com/blog" {
		t.Errorf("hub = %q", sc.HubURL)
	}
	if len(sc.Articles) != 2 {
		t.Errorf("got %d articles, want 2", len(sc.Articles))
	}
}

func TestGetContext_LowQualityWhenNoArticleMeetsMinimum(t *testing.T) {
	d := &mockDiscovery{
		findHubFn: func(context.Context, string) (string, bool) {
			return "https://example.com/blog", true
		},
		scrapeArticlesFn: func(context.Context, string, int) []scrape.Article {
			return []scrape.Article{longArticle("Thin", 30), longArticle("Thinner", 10)}
		},
	}
	a := newTestAnalyzer(t, d)

	sc, err := a.GetContext(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if sc.Quality != scrape.QualityLow {
		t.Errorf("quality = %q, want %q", sc.Quality, scrape.QualityLow)
	}
}

func TestGetContext_NoHubDiagnostic(t *testing.T) {
	d := &mockDiscovery{
		findHubFn: func(context.Context, string) (string, bool) { return "", false },
		scrapeArticlesFn: func(context.Context, string, int) []scrape.Article {
			t.Fatal("ScrapeArticles must not be called when no hub was found")
			return nil
		},
	}
	a := newTestAnalyzer(t, d)

	sc, err := a.GetContext(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if sc.Quality != scrape.QualityLow {
		t.Errorf("quality = %q, want %q", sc.Quality, scrape.QualityLow)
	}
	if sc.HubURL != "" {
		t.Errorf("hub = %q, want empty", sc.HubURL)
	}
	if sc.ErrorMessage != "No blog or content section found" {
		t.Errorf("diagnostic = %q", sc.ErrorMessage)
	}
}

func TestGetContext_HubButNoArticlesDiagnostic(t *testing.T) {
	d := &mockDiscovery{
		findHubFn: func(context.Context, string) (string, bool) {
			return "https://example.com/news", true
		},
		scrapeArticlesFn: func(context.Context, string, int) []scrape.Article { return nil },
	}
	a := newTestAnalyzer(t, d)

	sc, err := a.GetContext(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if sc.Quality != scrape.QualityLow {
		t.Errorf("quality = %q, want %q", sc.Quality, scrape.QualityLow)
	}
	if sc.HubURL != "https://example.com/news" {
		t.Errorf("hub = %q, want the found hub preserved", sc.HubURL)
	}
	if sc.ErrorMessage != "Blog found but no articles could be extracted" {
		t.Errorf("diagnostic = %q", sc.ErrorMessage)
	}
}

func TestGetContext_SecondCallServedFromCache(t *testing.T) {
	d := &mockDiscovery{
		findHubFn: func(context.Context, string) (string, bool) {
			return "https://example.com/blog", true
		},
		scrapeArticlesFn: func(context.Context, string, int) []scrape.Article {
			return []scrape.Article{longArticle("Only one", 200)}
		},
	}
	a := newTestAnalyzer(t, d)

	if _, err := a.GetContext(context.Background(), "example.com"); err != nil {
		t.Fatalf("first GetContext: %v", err)
	}
	if _, err := a.GetContext(context.Background(), "Example.COM"); err != nil {
		t.Fatalf("second GetContext: %v", err)
	}
	if d.findHubCalls != 1 {
		t.Errorf("discovery ran %d times, want 1", d.findHubCalls)
	}
}

func TestGetContext_FailureOutcomeCachedToo(t *testing.T) {
	d := &mockDiscovery{
		findHubFn: func(context.Context, string) (string, bool) { return "", false },
		scrapeArticlesFn: func(context.Context, string, int) []scrape.Article {
			return nil
		},
	}
	a := newTestAnalyzer(t, d)

	if _, err := a.GetContext(context.Background(), "dead.example"); err != nil {
		t.Fatalf("first GetContext: %v", err)
	}
	if _, err := a.GetContext(context.Background(), "dead.example"); err != nil {
		t.Fatalf("second GetContext: %v", err)
	}
	if d.findHubCalls != 1 {
		t.Errorf("failed domain rediscovered: %d calls, want 1", d.findHubCalls)
	}
}

func TestBuildSummary_Format(t *testing.T) {
	a := newTestAnalyzer(t, &mockDiscovery{})

	articles := []scrape.Article{
		{Title: "First", Content: "Alpha body text.", WordCount: 3},
		{Title: "Second", Content: "Beta body text.", WordCount: 3},
	}
	got := a.buildSummary(articles)
	want := "Title: First\nAlpha body text.\n\n---\n\nTitle: Second\nBeta body text."
	if got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
}

func TestBuildSummary_TruncatesToBudgetWithEllipsis(t *testing.T) {
	a := New(&mockDiscovery{}, openTestStore(t), 3, 100, 120)

	articles := []scrape.Article{
		{Title: "Long", Content: strings.Repeat("x", 600), WordCount: 1},
	}
	got := a.buildSummary(articles)
	if len(got) != 120+len("...") {
		t.Errorf("summary length = %d, want %d", len(got), 120+len("..."))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated summary missing ellipsis marker")
	}
}

func TestBuildSummary_TruncatesOnRuneBoundary(t *testing.T) {
	a := New(&mockDiscovery{}, openTestStore(t), 3, 100, 120)

	articles := []scrape.Article{
		{Title: "Multibyte", Content: strings.Repeat("日", 600), WordCount: 1},
	}
	got := a.buildSummary(articles)
	if !utf8.ValidString(got) {
		t.Fatal("truncated summary is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != 120+len("...") {
		t.Errorf("summary length = %d runes, want %d", n, 120+len("..."))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated summary missing ellipsis marker")
	}

	// The per-article excerpt must also break on a character boundary.
	wide := New(&mockDiscovery{}, openTestStore(t), 3, 100, 5000)
	got = wide.buildSummary(articles)
	if !utf8.ValidString(got) {
		t.Fatal("excerpted summary is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != utf8.RuneCountInString("Title: Multibyte\n")+500 {
		t.Errorf("excerpt length = %d runes, want %d", n, utf8.RuneCountInString("Title: Multibyte\n")+500)
	}
}

func TestBuildSummary_ExcerptsFirst500Chars(t *testing.T) {
	a := newTestAnalyzer(t, &mockDiscovery{})

	articles := []scrape.Article{
		{Title: "T", Content: strings.Repeat("a", 700), WordCount: 1},
	}
	got := a.buildSummary(articles)
	wantLen := len("Title: T\n") + 500
	if len(got) != wantLen {
		t.Errorf("summary length = %d, want %d", len(got), wantLen)
	}
}
