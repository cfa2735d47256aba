// Package scrape extracts articles and content hubs from organization sites.
package scrape

import "time"

// Quality classifies how much usable content a site yielded.
type Quality string

const (
	// QualityGood means at least one article met the minimum word count.
	QualityGood Quality = "good"
	// QualityLow means no hub was found or no substantial content extracted.
	QualityLow Quality = "low_quality"
	// QualityError means scraping itself failed.
	QualityError Quality = "error"
)

// Article is one scraped article. Immutable once created.
type Article struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
}

// SiteContext is the scraped state of one domain for one cache cycle. It is
// built wholesale and never patched; a re-scrape replaces the whole record.
type SiteContext struct {
	Domain       string    `json:"domain"`
	Quality      Quality   `json:"quality"`
	HubURL       string    `json:"hub_url,omitempty"`
	Articles     []Article `json:"articles,omitempty"`
	Summary      string    `json:"summary"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

// minUsableSummary is the summary length below which generation is skipped
// even when quality is good.
const minUsableSummary = 50

// HasUsableContent reports whether the context can ground a personalized
// message.
func (c SiteContext) HasUsableContent() bool {
	return c.Quality == QualityGood && len(c.Summary) > minUsableSummary
}

// NavLink is one same-domain navigation link from a homepage.
type NavLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
	Path string `json:"path"`
}
