// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package github summarizes a user's pinned GitHub repositories: it reads
// the pinned list from the profile page, shallow-clones each repository,
// and asks the model to describe every source file.
package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/stevebottos/dxtr-cli/internal/httputil"
)

// BaseURL is the GitHub web root. Tests point it at an httptest server.
var BaseURL = "https://github.com"

const userAgent = "Mozilla/5.0 (DXTR Profile Agent)"

var (
	profilePath = regexp.MustCompile(`^/([A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)/?$`)
	profileLink = regexp.MustCompile(`https?://github\.com/[^\s<>"{}|\\^` + "`" + `\[\]()]+`)
)

// IsProfileURL reports whether u names a GitHub user rather than a
// repository.
func IsProfileURL(u string) bool {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil || !strings.HasSuffix(parsed.Host, "github.com") {
		return false
	}
	return profilePath.MatchString(parsed.Path)
}

// ExtractProfileURL returns the first GitHub profile URL mentioned in
// text, or "" when there is none.
func ExtractProfileURL(text string) string {
	for _, u := range profileLink.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:")
		if IsProfileURL(u) {
			return u
		}
	}
	return ""
}

// ParsePinned extracts pinned repository URLs from a profile page.
// Links are recognized by their PINNED_REPO click tracking attribute and
// returned in page order without duplicates.
func ParsePinned(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing profile page: %w", err)
	}

	seen := map[string]bool{}
	var repos []string
	doc.Find(`a[data-hydro-click*="PINNED_REPO"]`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || !strings.HasPrefix(href, "/") || strings.Count(href, "/") != 2 || seen[href] {
			return
		}
		seen[href] = true
		repos = append(repos, "https://github.com"+href)
	})
	return repos, nil
}

// FetchPinned downloads the profile page of profileURL and returns its
// pinned repositories.
func FetchPinned(ctx context.Context, client *http.Client, profileURL string) ([]string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	parsed, err := url.Parse(profileURL)
	if err != nil {
		return nil, fmt.Errorf("parsing profile URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(BaseURL, "/")+parsed.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", profileURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d", profileURL, resp.StatusCode)
	}
	return ParsePinned(resp.Body)
}
