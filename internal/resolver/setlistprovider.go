package resolver

import (
	"context"
	"time"
	"tracklift/internal/logger"

	"github.com/go-resty/resty/v2"
)

// SetlistProviderClient fetches DJ-set context from an external set-list
// data provider for Tier 2+'s co-occurrence matcher: "gather DJ-set context
// ... from an external set-list data provider" (§4.9), distinct from the
// scraped set-lists already in the local store so the matcher can see
// surrounding-track context this installation never scraped itself.
type SetlistProviderClient struct {
	http     *resty.Client
	breakers *breakerManager
	log      logger.Logger
}

func NewSetlistProviderClient(baseURL, apiKey string, breakers *breakerManager) *SetlistProviderClient {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetAuthToken(apiKey)
	return &SetlistProviderClient{http: http, breakers: breakers, log: logger.New("resolver.setlistprovider")}
}

type externalOccurrence struct {
	DJName        string   `json:"djName"`
	BeforeArtist  string   `json:"beforeArtist"`
	AfterArtist   string   `json:"afterArtist"`
	SurroundingLabels []string `json:"surroundingLabels"`
}

type externalOccurrencesResponse struct {
	Occurrences []externalOccurrence `json:"occurrences"`
}

// Occurrences returns every externally-known placement of a track by
// artist/title, used to enrich the local adjacency graph with context this
// installation never scraped.
func (c *SetlistProviderClient) Occurrences(ctx context.Context, artist, title string) ([]externalOccurrence, error) {
	result, err := call(c.breakers, "setlist_provider", func() (externalOccurrencesResponse, error) {
		return c.occurrences(ctx, artist, title)
	})
	if err != nil {
		return nil, err
	}
	return result.Occurrences, nil
}

func (c *SetlistProviderClient) occurrences(ctx context.Context, artist, title string) (externalOccurrencesResponse, error) {
	log := c.log.Function("occurrences")

	var result externalOccurrencesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"artist": artist, "title": title}).
		SetResult(&result).
		Get("/v1/occurrences")
	if err != nil {
		return externalOccurrencesResponse{}, log.Err("setlist provider lookup failed", err)
	}
	if resp.IsError() {
		return externalOccurrencesResponse{}, nil
	}
	return result, nil
}
