// Package fetch issues polite, retrying HTTP GETs and reports every outcome
// as a tagged result instead of an error.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrorKind classifies a failed fetch.
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindNotFound  ErrorKind = "not_found"
	KindBlocked   ErrorKind = "blocked"
	KindTransport ErrorKind = "transport"
	KindNonHTML   ErrorKind = "non_html"
	KindHTTP      ErrorKind = "http"
)

// Error describes why a fetch failed.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Result is the outcome of one logical fetch. Exactly one of HTML and Err
// is populated.
type Result struct {
	HTML string
	Err  *Error
}

// OK reports whether the fetch produced content.
func (r Result) OK() bool {
	return r.Err == nil
}

// Fetcher performs rate-limited GETs with retry and backoff. Transient
// failures (timeouts, transport errors, 429/503) are retried; permanent
// ones (404, other statuses, non-text content types) fail immediately.
type Fetcher struct {
	client  *http.Client
	limiter *Limiter

	// Backoff bases, overridable in tests.
	retryBackoff   time.Duration
	blockedBackoff time.Duration
}

// New creates a Fetcher with the given per-request timeout and shared limiter.
func New(limiter *Limiter, timeout time.Duration) *Fetcher {
	return &Fetcher{
		client:         &http.Client{Timeout: timeout},
		limiter:        limiter,
		retryBackoff:   time.Second,
		blockedBackoff: 5 * time.Second,
	}
}

// Fetch GETs url with up to maxAttempts tries. Fetch never returns an
// error: every failure, context cancellation included, comes back as a
// Result with the failure kind set.
func (f *Fetcher) Fetch(ctx context.Context, url string, maxAttempts int) Result {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	domain := domainOf(url)

	var res Result
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := f.limiter.Wait(ctx, domain); err != nil {
			return fail(KindTransport, fmt.Sprintf("rate limiter: %v", err))
		}

		var retryAfter time.Duration
		res, retryAfter = f.once(ctx, url, attempt, maxAttempts)
		if res.OK() || retryAfter == 0 {
			return res
		}

		select {
		case <-ctx.Done():
			return fail(KindTransport, ctx.Err().Error())
		case <-time.After(retryAfter):
		}
	}
	return res
}

// once performs a single GET. A non-zero retryAfter means the failure is
// transient and another attempt should follow after that delay.
func (f *Fetcher) once(ctx context.Context, url string, attempt, maxAttempts int) (res Result, retryAfter time.Duration) {
	last := attempt == maxAttempts-1

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(KindTransport, fmt.Sprintf("creating request: %v", err)), 0
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		kind := KindTransport
		if isTimeout(err) {
			kind = KindTimeout
		}
		if last {
			if kind == KindTimeout {
				return fail(KindTimeout, fmt.Sprintf("timeout after %d attempts", maxAttempts)), 0
			}
			return fail(KindTransport, fmt.Sprintf("request error: %v", err)), 0
		}
		// Exponential backoff for timeouts and transport errors.
		return Result{}, f.retryBackoff << attempt
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fail(KindNotFound, "page not found (404)"), 0
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		if last {
			return fail(KindBlocked, fmt.Sprintf("HTTP %d after %d attempts", resp.StatusCode, maxAttempts)), 0
		}
		// Rate limited or unavailable: wait longer, linearly.
		return Result{}, f.blockedBackoff * time.Duration(attempt+1)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fail(KindHTTP, fmt.Sprintf("HTTP error: %d", resp.StatusCode)), 0
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "text/html") && !strings.Contains(ct, "text/plain") {
		return fail(KindNonHTML, fmt.Sprintf("non-HTML content type: %s", ct)), 0
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if last {
			return fail(KindTransport, fmt.Sprintf("reading body: %v", err)), 0
		}
		return Result{}, f.retryBackoff << attempt
	}
	if len(body) == 0 {
		return fail(KindTransport, "empty response body"), 0
	}

	return Result{HTML: string(body)}, 0
}

func fail(kind ErrorKind, msg string) Result {
	return Result{Err: &Error{Kind: kind, Message: msg}}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func domainOf(url string) string {
	if i := strings.Index(url, "://"); i != -1 {
		url = url[i+3:]
	}
	if i := strings.IndexByte(url, '/'); i != -1 {
		url = url[:i]
	}
	return strings.ToLower(url)
}
