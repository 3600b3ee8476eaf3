package resolver

import (
	"context"
	"time"
	"tracklift/internal/logger"

	"github.com/go-resty/resty/v2"
)

// TaggingClient queries a generic popularity/tags service, the final rung
// of Tier 2's waterfall. There is no single dominant vendor API for this
// in the reference corpus, so the client speaks a small bearer-authenticated
// JSON contract similar in shape to the other resolver clients.
type TaggingClient struct {
	http     *resty.Client
	breakers *breakerManager
	log      logger.Logger
}

func NewTaggingClient(baseURL, apiKey string, breakers *breakerManager) *TaggingClient {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetAuthToken(apiKey)
	return &TaggingClient{http: http, breakers: breakers, log: logger.New("resolver.tagging")}
}

type taggingResponse struct {
	Found      bool     `json:"found"`
	Tags       []string `json:"tags"`
	Popularity *int     `json:"popularity"`
}

// Lookup fetches popularity and free-text tags by artist/title, the
// lowest-priority rung of the waterfall that still contributes value when
// every richer source has already come up empty.
func (c *TaggingClient) Lookup(ctx context.Context, artist, title string) (Match, error) {
	return call(c.breakers, "tagging", func() (Match, error) {
		return c.lookup(ctx, artist, title)
	})
}

func (c *TaggingClient) lookup(ctx context.Context, artist, title string) (Match, error) {
	log := c.log.Function("lookup")

	var result taggingResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"artist": artist, "title": title}).
		SetResult(&result).
		Get("/v1/tags")
	if err != nil {
		return Match{}, log.Err("tagging lookup failed", err)
	}
	if resp.IsError() || !result.Found {
		return Match{Found: false}, nil
	}

	return Match{
		Found:      true,
		Tags:       result.Tags,
		Popularity: result.Popularity,
		Confidence: 0.55,
		Source:     "tagging",
	}, nil
}
