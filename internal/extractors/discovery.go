package extractors

import (
	"fmt"
	"net/url"
	"strings"

	"tracklift/internal/logger"

	"github.com/gocolly/colly"
)

// DiscoverLinks crawls indexURL with a single-depth colly collector and
// returns every absolute link matching linkSelector whose host is in
// allowedHosts, deduplicated. This is the target-discovery glue of §4.5:
// the per-page content fetch itself always goes through the rate-limited
// fetcher (extractor.go's fetchBytes), never through colly's own transport,
// so rate-limit/header/egress-bookkeeping/challenge discipline still
// applies to every extraction fetch — colly here only walks an index
// page's outbound links.
func DiscoverLinks(indexURL, linkSelector string, allowedHosts []string) ([]string, error) {
	log := logger.New("extractors.discovery").Function("DiscoverLinks")

	allowed := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		allowed[h] = true
	}

	c := colly.NewCollector(
		colly.AllowedDomains(allowedHosts...),
		colly.MaxDepth(1),
	)

	seen := make(map[string]bool)
	var links []string
	var visitErr error

	c.OnHTML(linkSelector, func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if href == "" {
			return
		}
		resolved := e.Request.AbsoluteURL(href)
		if resolved == "" {
			return
		}
		u, err := url.Parse(resolved)
		if err != nil || !allowed[u.Host] {
			return
		}
		if seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})

	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("colly visit %s: %w", r.Request.URL, err)
		log.Warn("discovery request failed", "url", r.Request.URL.String(), "error", err)
	})

	if err := c.Visit(indexURL); err != nil {
		return nil, fmt.Errorf("discovery: visit %s: %w", indexURL, err)
	}
	c.Wait()

	if visitErr != nil && len(links) == 0 {
		return nil, visitErr
	}
	return links, nil
}

// normalizeIndexURL joins a base index page with a pagination query so
// extractors can page through listing results without hand-building URLs
// inline at every call site.
func normalizeIndexURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", base, sep, page)
}
