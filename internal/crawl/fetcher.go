package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// FetchedPage is one successfully retrieved HTML page.
type FetchedPage struct {
	URL         string
	HTML        string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
}

// SkippedURL records a page that was discovered but not kept.
type SkippedURL struct {
	URL    string
	Reason string
}

// FetcherConfig bounds the fetcher's politeness and parallelism.
type FetcherConfig struct {
	UserAgent      string
	Concurrency    int
	RequestDelay   time.Duration
	RequestTimeout time.Duration
}

// Fetcher retrieves discovered pages with bounded parallelism and a
// per-request politeness delay.
type Fetcher struct {
	cfg    FetcherConfig
	logger *slog.Logger
}

// NewFetcher returns a Fetcher.
func NewFetcher(cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{cfg: cfg, logger: logger.With("component", "fetcher")}
}

// Fetch retrieves every allowed page and returns the kept pages in the order
// the input listed them, alongside the skipped list. Only 2xx responses with
// a text/html content type are kept. The effective delay between requests is
// the larger of the configured delay and the robots crawl delay.
func (f *Fetcher) Fetch(ctx context.Context, pages []DiscoveredPage, policy *Policy) ([]FetchedPage, []SkippedURL) {
	var (
		mu      sync.Mutex
		fetched = make(map[string]FetchedPage)
		skipped []SkippedURL
	)

	delay := f.cfg.RequestDelay
	if policy != nil && policy.CrawlDelay > delay {
		delay = policy.CrawlDelay
	}

	c := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.Async(true),
	)
	c.SetRequestTimeout(f.cfg.RequestTimeout)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: f.cfg.Concurrency,
		Delay:       delay,
	})

	c.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			// Aborted requests fire neither OnResponse nor OnError, so
			// the skip is recorded here to keep the accounting complete.
			r.Abort()
			mu.Lock()
			skipped = append(skipped, SkippedURL{URL: r.URL.String(), Reason: "cancelled"})
			mu.Unlock()
		default:
		}
	})

	c.OnResponse(func(r *colly.Response) {
		pageURL := r.Request.URL.String()
		contentType := r.Headers.Get("Content-Type")

		mu.Lock()
		defer mu.Unlock()

		if r.StatusCode < 200 || r.StatusCode > 299 {
			skipped = append(skipped, SkippedURL{URL: pageURL, Reason: fmt.Sprintf("status %d", r.StatusCode)})
			return
		}
		if !strings.HasPrefix(strings.ToLower(contentType), "text/html") {
			skipped = append(skipped, SkippedURL{URL: pageURL, Reason: fmt.Sprintf("content type %q", contentType)})
			return
		}

		fetched[pageURL] = FetchedPage{
			URL:         pageURL,
			HTML:        string(r.Body),
			StatusCode:  r.StatusCode,
			ContentType: contentType,
			FetchedAt:   time.Now().UTC(),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		pageURL := r.Request.URL.String()
		mu.Lock()
		defer mu.Unlock()
		if r.StatusCode > 0 {
			skipped = append(skipped, SkippedURL{URL: pageURL, Reason: fmt.Sprintf("status %d", r.StatusCode)})
		} else {
			skipped = append(skipped, SkippedURL{URL: pageURL, Reason: fmt.Sprintf("request failed: %v", err)})
		}
	})

	queued := make([]string, 0, len(pages))
	for _, page := range pages {
		if policy != nil && !policy.Allowed(page.URL) {
			mu.Lock()
			skipped = append(skipped, SkippedURL{URL: page.URL, Reason: "disallowed by robots.txt"})
			mu.Unlock()
			continue
		}
		if err := c.Visit(page.URL); err != nil {
			mu.Lock()
			skipped = append(skipped, SkippedURL{URL: page.URL, Reason: fmt.Sprintf("not queued: %v", err)})
			mu.Unlock()
			continue
		}
		queued = append(queued, page.URL)
	}

	c.Wait()

	// Redirects can change the final URL colly reports; fall back to the
	// response map keyed by whatever URL we have.
	var results []FetchedPage
	mu.Lock()
	defer mu.Unlock()
	for _, u := range queued {
		if page, ok := fetched[u]; ok {
			results = append(results, page)
			delete(fetched, u)
		}
	}
	for _, page := range fetched {
		results = append(results, page)
	}

	f.logger.Info("fetch completed", "requested", len(pages), "fetched", len(results), "skipped", len(skipped))
	return results, skipped
}
