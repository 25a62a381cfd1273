package crawl

import (
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/fieldset/fieldset-api/internal/safeurl"
)

// PageSource records how a page was discovered.
type PageSource string

const (
	PageSourceSitemap   PageSource = "sitemap"
	PageSourceHeuristic PageSource = "heuristic"
)

// DiscoveredPage is one candidate page, ordered by Priority ascending.
type DiscoveredPage struct {
	URL      string
	Source   PageSource
	Priority int
}

// sitemapURLSet mirrors the <urlset> document.
type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapLoc `xml:"url"`
}

// sitemapIndex mirrors the <sitemapindex> document.
type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// Discoverer finds candidate pages for an origin from sitemaps or, failing
// that, a configured set of heuristic paths.
type Discoverer struct {
	client         *http.Client
	validator      *safeurl.Validator
	userAgent      string
	heuristicPaths []string
	maxPages       int
	logger         *slog.Logger
}

// NewDiscoverer returns a Discoverer.
func NewDiscoverer(validator *safeurl.Validator, userAgent string, timeout time.Duration, heuristicPaths []string, maxPages int, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		client:         &http.Client{Timeout: timeout},
		validator:      validator,
		userAgent:      userAgent,
		heuristicPaths: heuristicPaths,
		maxPages:       maxPages,
		logger:         logger.With("component", "discovery"),
	}
}

// Discover returns the pages to fetch for origin, deduped, sorted by
// priority, and truncated to the configured page cap. Sitemap URLs announced
// in robots.txt take precedence over the conventional /sitemap.xml location;
// if no sitemap yields any same-origin page, the heuristic paths are used.
// Discovery never fails: any sitemap problem degrades to the heuristic list.
func (d *Discoverer) Discover(ctx context.Context, origin string, policy *Policy) []DiscoveredPage {
	sources := policy.SitemapURLs
	if len(sources) == 0 {
		sources = []string{origin + "/sitemap.xml"}
	}

	var pages []DiscoveredPage
	seen := make(map[string]bool)
	for _, src := range sources {
		for _, loc := range d.fetchSitemap(ctx, origin, src, true) {
			if seen[loc] {
				continue
			}
			seen[loc] = true
			pages = append(pages, DiscoveredPage{
				URL:      loc,
				Source:   PageSourceSitemap,
				Priority: 100 + len(pages),
			})
		}
	}

	if len(pages) == 0 {
		for i, path := range d.heuristicPaths {
			loc := origin + path
			if seen[loc] {
				continue
			}
			seen[loc] = true
			pages = append(pages, DiscoveredPage{
				URL:      loc,
				Source:   PageSourceHeuristic,
				Priority: i,
			})
		}
	}

	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Priority < pages[j].Priority
	})

	if d.maxPages > 0 && len(pages) > d.maxPages {
		pages = pages[:d.maxPages]
	}
	return pages
}

// fetchSitemap fetches one sitemap document and returns the same-origin page
// URLs it lists. A <sitemapindex> is followed exactly one level deep, with
// each child URL passed through the same safety gate as submitted URLs.
// Malformed or unreachable documents contribute nothing.
func (d *Discoverer) fetchSitemap(ctx context.Context, origin, sitemapURL string, followIndex bool) []string {
	body, ok := d.get(ctx, sitemapURL)
	if !ok {
		return nil
	}

	// Try the index shape first; a urlset will fail to match its root element.
	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		if !followIndex {
			return nil
		}
		var locs []string
		for _, child := range index.Sitemaps {
			childURL := strings.TrimSpace(child.Loc)
			if childURL == "" {
				continue
			}
			if _, err := d.validator.Validate(ctx, childURL); err != nil {
				d.logger.Warn("skipping unsafe sitemap index child", "url", childURL, "error", err)
				continue
			}
			locs = append(locs, d.fetchSitemap(ctx, origin, childURL, false)...)
		}
		return locs
	}

	var urlset sitemapURLSet
	if err := xml.Unmarshal(body, &urlset); err != nil {
		d.logger.Warn("sitemap parse failed", "url", sitemapURL, "error", err)
		return nil
	}

	var locs []string
	for _, entry := range urlset.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" || !sameOrigin(origin, loc) {
			continue
		}
		locs = append(locs, loc)
	}
	return locs
}

func (d *Discoverer) get(ctx context.Context, rawURL string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("sitemap fetch failed", "url", rawURL, "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, false
	}
	return body, true
}

// sameOrigin reports whether loc shares scheme and host with origin.
func sameOrigin(origin, loc string) bool {
	o, err := url.Parse(origin)
	if err != nil {
		return false
	}
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	return strings.EqualFold(o.Scheme, u.Scheme) && strings.EqualFold(o.Host, u.Host)
}
