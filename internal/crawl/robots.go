// Package crawl discovers and fetches the pages of a submitted site, within
// the site's robots policy and the configured politeness limits.
package crawl

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

// Policy is the crawl policy for one origin. The zero-ish permissive policy
// allows everything.
type Policy struct {
	group       *robotstxt.Group
	CrawlDelay  time.Duration
	SitemapURLs []string
}

// Allowed reports whether the policy permits fetching rawURL. Unparseable
// URLs are allowed; the fetcher will surface their real failure.
func (p *Policy) Allowed(rawURL string) bool {
	if p == nil || p.group == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return p.group.Test(path)
}

// RobotsFetcher fetches and parses robots.txt for an origin.
type RobotsFetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewRobotsFetcher returns a RobotsFetcher with the given user agent and
// request timeout.
func NewRobotsFetcher(userAgent string, timeout time.Duration, logger *slog.Logger) *RobotsFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger.With("component", "robots"),
	}
}

// Fetch retrieves origin/robots.txt and returns the resulting policy. It
// never returns an error: transport failures and non-2xx statuses yield the
// permissive policy, matching how well-behaved crawlers treat a missing file.
func (f *RobotsFetcher) Fetch(ctx context.Context, origin string) *Policy {
	permissive := &Policy{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return permissive
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("robots.txt fetch failed, proceeding permissively", "origin", origin, "error", err)
		return permissive
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return permissive
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		f.logger.Warn("robots.txt read failed, proceeding permissively", "origin", origin, "error", err)
		return permissive
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		f.logger.Warn("robots.txt parse failed, proceeding permissively", "origin", origin, "error", err)
		return permissive
	}

	group := data.FindGroup(f.userAgent)
	policy := &Policy{
		group:       group,
		SitemapURLs: data.Sitemaps,
	}
	if group != nil {
		policy.CrawlDelay = group.CrawlDelay
	}
	return policy
}
