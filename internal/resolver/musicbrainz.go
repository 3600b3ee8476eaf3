package resolver

import (
	"fmt"
	"time"
	"tracklift/internal/logger"

	"context"

	"github.com/go-resty/resty/v2"
)

// MusicBrainzClient queries the MusicBrainz web service, identified by a
// required custom User-Agent per their API usage policy.
type MusicBrainzClient struct {
	http      *resty.Client
	breakers  *breakerManager
	log       logger.Logger
}

func NewMusicBrainzClient(userAgent string, breakers *breakerManager) *MusicBrainzClient {
	http := resty.New().
		SetBaseURL("https://musicbrainz.org/ws/2").
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
	return &MusicBrainzClient{http: http, breakers: breakers, log: logger.New("resolver.musicbrainz")}
}

type mbRecordingSearchResponse struct {
	Recordings []mbRecording `json:"recordings"`
}

type mbRecording struct {
	ID       string `json:"id"`
	Score    int    `json:"score"`
	Releases []struct {
		ID           string `json:"id"`
		LabelInfo []struct {
			Label struct {
				Name string `json:"name"`
			} `json:"label"`
		} `json:"label-info"`
	} `json:"releases"`
}

// SearchRecording looks up a recording by artist and title text, the
// text-search rung of the waterfall and the input to Tier 0 step 2.
func (c *MusicBrainzClient) SearchRecording(ctx context.Context, artist, title string) (Match, error) {
	return call(c.breakers, "musicbrainz", func() (Match, error) {
		return c.searchRecording(ctx, artist, title)
	})
}

func (c *MusicBrainzClient) searchRecording(ctx context.Context, artist, title string) (Match, error) {
	log := c.log.Function("searchRecording")

	var result mbRecordingSearchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query": fmt.Sprintf(`artist:"%s" AND recording:"%s"`, artist, title),
			"fmt":   "json",
			"limit": "1",
		}).
		SetResult(&result).
		Get("/recording")
	if err != nil {
		return Match{}, log.Err("musicbrainz recording search failed", err)
	}
	if resp.IsError() || len(result.Recordings) == 0 {
		return Match{Found: false}, nil
	}

	rec := result.Recordings[0]
	match := Match{
		Found:         true,
		MusicBrainzID: rec.ID,
		Confidence:    float64(rec.Score) / 100.0,
		Source:        "musicbrainz",
	}
	for _, release := range rec.Releases {
		if len(release.LabelInfo) > 0 && release.LabelInfo[0].Label.Name != "" {
			match.Label = release.LabelInfo[0].Label.Name
			break
		}
	}
	return match, nil
}

// LabelForRecording backs Tier 0 step 2: "Query MusicBrainz for the
// recording; if a release has a label, record it with confidence 0.90".
func (c *MusicBrainzClient) LabelForRecording(ctx context.Context, artist, title string) (LabelHint, error) {
	match, err := c.SearchRecording(ctx, artist, title)
	if err != nil || !match.Found || match.Label == "" {
		return LabelHint{}, err
	}
	return LabelHint{
		Found:         true,
		Label:         match.Label,
		Source:        "musicbrainz",
		Confidence:    0.90,
		MusicBrainzID: match.MusicBrainzID,
	}, nil
}
