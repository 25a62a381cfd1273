package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchRobotsParsesGroups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`User-agent: *
Disallow: /private/

User-agent: OnboardingBot
Disallow: /admin/
Crawl-delay: 2
Sitemap: ` + "http://example.com/sitemap.xml" + `
`))
	}))
	defer srv.Close()

	f := NewRobotsFetcher("OnboardingBot/1.0", 5*time.Second, nil)
	policy := f.Fetch(context.Background(), srv.URL)

	if !policy.Allowed(srv.URL + "/private/page") {
		t.Error("bot-specific group should override *; /private/ should be allowed")
	}
	if policy.Allowed(srv.URL + "/admin/settings") {
		t.Error("/admin/ should be disallowed for OnboardingBot")
	}
	if !policy.Allowed(srv.URL + "/about") {
		t.Error("/about should be allowed")
	}
	if policy.CrawlDelay != 2*time.Second {
		t.Errorf("CrawlDelay = %v, want 2s", policy.CrawlDelay)
	}
	if len(policy.SitemapURLs) != 1 {
		t.Errorf("SitemapURLs = %v, want one entry", policy.SitemapURLs)
	}
}

func TestFetchRobotsPermissiveOnMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewRobotsFetcher("OnboardingBot/1.0", 5*time.Second, nil)
	policy := f.Fetch(context.Background(), srv.URL)

	if !policy.Allowed(srv.URL + "/anything") {
		t.Error("missing robots.txt should allow everything")
	}
	if policy.CrawlDelay != 0 {
		t.Errorf("CrawlDelay = %v, want 0", policy.CrawlDelay)
	}
}

func TestFetchRobotsPermissiveOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewRobotsFetcher("OnboardingBot/1.0", 5*time.Second, nil)
	policy := f.Fetch(context.Background(), srv.URL)

	if !policy.Allowed(srv.URL + "/anything") {
		t.Error("5xx robots.txt should allow everything")
	}
}

func TestFetchRobotsPermissiveOnUnreachableHost(t *testing.T) {
	f := NewRobotsFetcher("OnboardingBot/1.0", time.Second, nil)
	policy := f.Fetch(context.Background(), "http://127.0.0.1:1")

	if !policy.Allowed("http://127.0.0.1:1/anything") {
		t.Error("unreachable host should yield a permissive policy")
	}
}

func TestPolicyAllowedNilSafe(t *testing.T) {
	var policy *Policy
	if !policy.Allowed("https://example.com/x") {
		t.Error("nil policy should allow everything")
	}
}
