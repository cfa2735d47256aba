package scrape

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxNavLinks     = 20
	maxArticleLinks = 10
)

// articlePattern matches URLs that conventionally point at articles.
var articlePattern = regexp.MustCompile(`(?i)/blog/|/post/|/article/|/news/|/insights/|/\d{4}/\d{2}/`)

// skipPaths are navigation pages the flexible detector must not mistake for
// articles.
var skipPaths = []string{
	"about", "contact", "team", "careers", "privacy", "terms",
	"services", "products", "solutions", "pricing", "login", "signup",
}

// removeSelector lists elements stripped before article content extraction.
const removeSelector = "script, style, nav, header, footer, aside, form, iframe, noscript"

var spaceRe = regexp.MustCompile(`\s+`)

// ArticleLink is a (title, url) candidate found on a hub page.
type ArticleLink struct {
	Title string
	URL   string
}

// ExtractNavLinks collects same-domain links from the page's nav and header
// areas (whole document if it has neither), deduplicated, capped at 20.
func ExtractNavLinks(html, baseURL string) []NavLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	areas := doc.Find("nav, header")
	if areas.Length() == 0 {
		areas = doc.Selection
	}

	seen := make(map[string]bool)
	var links []NavLink
	areas.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		full := resolveURL(base, href)
		if full == "" || !sameDomain(full, baseURL) || seen[full] {
			return true
		}
		if full == baseURL || full == baseURL+"/" {
			return true
		}
		text := strings.TrimSpace(a.Text())
		if len(text) <= 1 {
			return true
		}
		u, _ := url.Parse(full)
		links = append(links, NavLink{Text: text, URL: full, Path: u.Path})
		seen[full] = true
		return len(links) < maxNavLinks
	})
	return links
}

// ExtractArticleLinks finds candidate article links on a hub page. The
// strict pass matches conventional article URL patterns; when it yields
// nothing and flexible is set, a permissive pass keeps links whose title
// looks like an article headline and whose path is not a known navigation
// page. At most 10 links are returned.
func ExtractArticleLinks(html, baseURL string, flexible bool) []ArticleLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var articles []ArticleLink
	var sameDomainLinks []linkCandidate

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if strings.HasPrefix(href, "#") {
			return
		}
		full := resolveURL(base, href)
		if full == "" || !sameDomain(full, baseURL) || seen[full] {
			return
		}
		sameDomainLinks = append(sameDomainLinks, linkCandidate{sel: a, url: full})

		if !articlePattern.MatchString(full) {
			return
		}
		title := linkTitle(a)
		if len(title) > 10 {
			articles = append(articles, ArticleLink{Title: title, URL: full})
			seen[full] = true
		}
	})

	if len(articles) == 0 && flexible {
		articles = flexibleDetection(sameDomainLinks, baseURL)
	}

	if len(articles) > maxArticleLinks {
		articles = articles[:maxArticleLinks]
	}
	return articles
}

type linkCandidate struct {
	sel *goquery.Selection
	url string
}

// flexibleDetection keeps links with long, multi-word titles that don't
// point at common navigation pages.
func flexibleDetection(links []linkCandidate, baseURL string) []ArticleLink {
	var articles []ArticleLink
	for _, lc := range links {
		lower := strings.ToLower(lc.url)
		skip := false
		for _, p := range skipPaths {
			if strings.Contains(lower, p) {
				skip = true
				break
			}
		}
		if skip || lc.url == baseURL || lc.url == baseURL+"/" {
			continue
		}
		title := linkTitle(lc.sel)
		if len(title) > 30 && len(strings.Fields(title)) >= 4 {
			articles = append(articles, ArticleLink{Title: title, URL: lc.url})
		}
	}
	if len(articles) > maxArticleLinks {
		articles = articles[:maxArticleLinks]
	}
	return articles
}

// ParseArticle extracts the title and main content from an article page.
// Returns false when no substantial content was found.
func ParseArticle(html, pageURL string) (Article, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Article{}, false
	}

	doc.Find(removeSelector).Remove()

	title := extractTitle(doc)
	content := extractContent(doc)
	if content == "" {
		return Article{}, false
	}

	clean := cleanText(content)
	if title == "" {
		title = "Untitled"
	}
	return Article{
		Title:     title,
		URL:       pageURL,
		Content:   clean,
		WordCount: len(strings.Fields(clean)),
	}, true
}

func extractTitle(doc *goquery.Document) string {
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && og != "" {
		return og
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func extractContent(doc *goquery.Document) string {
	for _, sel := range []string{"article", "main", ".post-content", ".article-content", ".entry-content", ".content", `[role="main"]`} {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if text := strings.TrimSpace(node.Text()); text != "" {
				return text
			}
		}
	}

	// Paragraph fallback, only when it adds up to real content.
	var parts []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if text := strings.Join(parts, "\n"); len(text) > 200 {
		return text
	}
	return ""
}

// linkTitle pulls a usable title from a link element: text content, then
// title attribute, then aria-label, then a heading inside the link.
func linkTitle(a *goquery.Selection) string {
	if text := strings.TrimSpace(a.Text()); text != "" {
		return spaceRe.ReplaceAllString(text, " ")
	}
	if title, ok := a.Attr("title"); ok && title != "" {
		return title
	}
	if label, ok := a.Attr("aria-label"); ok && label != "" {
		return label
	}
	return strings.TrimSpace(a.Find("h1, h2, h3, h4").First().Text())
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func sameDomain(u1, u2 string) bool {
	return hostOf(u1) != "" && hostOf(u1) == hostOf(u2)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func cleanText(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}
