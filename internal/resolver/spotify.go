package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"
	"tracklift/internal/logger"

	"github.com/go-resty/resty/v2"
)

// SpotifyClient implements the client-credentials OAuth flow and search
// endpoints used by Tier 2's waterfall. Grounded on
// kirbs-btw-spotify-playlist-dataset's getSpotifyToken/searchSpotify: same
// SetBasicAuth token exchange and SetAuthToken bearer search call, wrapped
// here with token caching and a circuit breaker.
type SpotifyClient struct {
	http         *resty.Client
	clientID     string
	clientSecret string
	breakers     *breakerManager
	log          logger.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewSpotifyClient(clientID, clientSecret string, breakers *breakerManager) *SpotifyClient {
	return &SpotifyClient{
		http:         resty.New().SetTimeout(10 * time.Second),
		clientID:     clientID,
		clientSecret: clientSecret,
		breakers:     breakers,
		log:          logger.New("resolver.spotify"),
	}
}

type spotifyTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *SpotifyClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	log := c.log.Function("token")

	var body spotifyTokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody("grant_type=client_credentials").
		SetResult(&body).
		Post("https://accounts.spotify.com/api/token")
	if err != nil {
		return "", log.Err("failed to exchange spotify client credentials", err)
	}
	if resp.IsError() {
		return "", log.Error("spotify token exchange failed", "status", resp.StatusCode())
	}

	c.token = body.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn-30) * time.Second)
	return c.token, nil
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyTrack struct {
	ID         string `json:"id"`
	Popularity int    `json:"popularity"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
}

type spotifyAudioFeatures struct {
	Energy           float64 `json:"energy"`
	Danceability     float64 `json:"danceability"`
	Valence          float64 `json:"valence"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Speechiness      float64 `json:"speechiness"`
	Loudness         float64 `json:"loudness"`
}

// SearchByText queries Spotify's catalog search for "artist track" and
// returns the top hit as a Match, fetching its audio features in a
// follow-up call when the first search succeeds.
func (c *SpotifyClient) SearchByText(ctx context.Context, artist, title string) (Match, error) {
	return call(c.breakers, "spotify", func() (Match, error) {
		return c.searchByText(ctx, artist, title)
	})
}

func (c *SpotifyClient) searchByText(ctx context.Context, artist, title string) (Match, error) {
	log := c.log.Function("searchByText")

	token, err := c.token(ctx)
	if err != nil {
		return Match{}, err
	}

	var result spotifySearchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"q":     fmt.Sprintf("artist:%s track:%s", artist, title),
			"type":  "track",
			"limit": "1",
		}).
		SetResult(&result).
		Get("https://api.spotify.com/v1/search")
	if err != nil {
		return Match{}, log.Err("spotify text search request failed", err)
	}
	if resp.IsError() || len(result.Tracks.Items) == 0 {
		return Match{Found: false}, nil
	}

	track := result.Tracks.Items[0]
	match := Match{
		Found:      true,
		ISRC:       track.ExternalIDs.ISRC,
		PlatformID: track.ID,
		Popularity: &track.Popularity,
		Confidence: 0.75,
		Source:     "spotify",
	}
	c.attachAudioFeatures(ctx, token, track.ID, &match)
	return match, nil
}

// SearchByISRC is the authoritative lookup of §4.9's waterfall: ISRC search
// outranks every fuzzy text match when present.
func (c *SpotifyClient) SearchByISRC(ctx context.Context, isrc string) (Match, error) {
	return call(c.breakers, "spotify", func() (Match, error) {
		return c.searchByISRC(ctx, isrc)
	})
}

func (c *SpotifyClient) searchByISRC(ctx context.Context, isrc string) (Match, error) {
	log := c.log.Function("searchByISRC")

	token, err := c.token(ctx)
	if err != nil {
		return Match{}, err
	}

	var result spotifySearchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"q":     "isrc:" + isrc,
			"type":  "track",
			"limit": "1",
		}).
		SetResult(&result).
		Get("https://api.spotify.com/v1/search")
	if err != nil {
		return Match{}, log.Err("spotify isrc search request failed", err)
	}
	if resp.IsError() || len(result.Tracks.Items) == 0 {
		return Match{Found: false}, nil
	}

	track := result.Tracks.Items[0]
	match := Match{
		Found:      true,
		ISRC:       isrc,
		PlatformID: track.ID,
		Popularity: &track.Popularity,
		Confidence: 0.95,
		Source:     "spotify",
	}
	c.attachAudioFeatures(ctx, token, track.ID, &match)
	return match, nil
}

func (c *SpotifyClient) attachAudioFeatures(ctx context.Context, token, trackID string, match *Match) {
	log := c.log.Function("attachAudioFeatures")

	var features spotifyAudioFeatures
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&features).
		Get("https://api.spotify.com/v1/audio-features/" + trackID)
	if err != nil || resp.IsError() {
		log.Warn("failed to fetch audio features, continuing without them", "trackID", trackID)
		return
	}

	match.Energy = &features.Energy
	match.Danceability = &features.Danceability
	match.Valence = &features.Valence
	match.Acousticness = &features.Acousticness
	match.Instrumentalness = &features.Instrumentalness
	match.Liveness = &features.Liveness
	match.Speechiness = &features.Speechiness
	match.Loudness = &features.Loudness
}
