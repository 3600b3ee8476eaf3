package resolver

import (
	"context"
	"time"
	"tracklift/internal/logger"

	"github.com/go-resty/resty/v2"
)

// CatalogClient queries a Discogs-shaped release database for label-level
// release data, the rung of Tier 2's waterfall and the last-resort step of
// Tier 0's label hunter ("scrape a small set of label-centric catalogs").
// Adapted from the teacher's DiscogsService: same token-header auth and
// User-Agent identification, repurposed from personal-collection identity
// lookup to public release search.
type CatalogClient struct {
	http     *resty.Client
	token    string
	breakers *breakerManager
	log      logger.Logger
}

func NewCatalogClient(baseURL, token string, breakers *breakerManager) *CatalogClient {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", "TrackLift/1.0")
	return &CatalogClient{http: http, token: token, breakers: breakers, log: logger.New("resolver.catalog")}
}

type catalogSearchResponse struct {
	Results []catalogResult `json:"results"`
}

type catalogResult struct {
	Title  string   `json:"title"`
	Label  []string `json:"label"`
	Genre  []string `json:"genre"`
	Style  []string `json:"style"`
	Year   int      `json:"year"`
	ID     int64    `json:"id"`
}

// SearchRelease looks up a release by artist/title text, contributing
// label and tag data to Tier 2's waterfall.
func (c *CatalogClient) SearchRelease(ctx context.Context, artist, title string) (Match, error) {
	return call(c.breakers, "catalog", func() (Match, error) {
		return c.searchRelease(ctx, artist, title)
	})
}

func (c *CatalogClient) searchRelease(ctx context.Context, artist, title string) (Match, error) {
	log := c.log.Function("searchRelease")

	var result catalogSearchResponse
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":    artist + " " + title,
			"type": "release",
		}).
		SetResult(&result)
	if c.token != "" {
		req.SetHeader("Authorization", "Discogs token="+c.token)
	}

	resp, err := req.Get("/database/search")
	if err != nil {
		return Match{}, log.Err("catalog release search failed", err)
	}
	if resp.IsError() || len(result.Results) == 0 {
		return Match{Found: false}, nil
	}

	best := result.Results[0]
	match := Match{Found: true, Confidence: 0.70, Source: "catalog"}
	if len(best.Label) > 0 {
		match.Label = best.Label[0]
	}
	match.Tags = append(append([]string{}, best.Genre...), best.Style...)
	return match, nil
}

// LabelForRelease backs Tier 0 step 3: a last-resort label-centric scrape,
// at confidence 0.85.
func (c *CatalogClient) LabelForRelease(ctx context.Context, artist, title string) (LabelHint, error) {
	match, err := c.SearchRelease(ctx, artist, title)
	if err != nil || !match.Found || match.Label == "" {
		return LabelHint{}, err
	}
	return LabelHint{Found: true, Label: match.Label, Source: "catalog", Confidence: 0.85}, nil
}
