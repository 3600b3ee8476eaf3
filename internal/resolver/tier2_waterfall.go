package resolver

import (
	"context"
	"encoding/json"
	"tracklift/internal/models"
)

// resolveWaterfall implements Tier 2, querying in order: a Spotify ISRC
// search (only when the track already carries an ISRC) -> Spotify text
// search -> MusicBrainz text search -> catalog service -> tagging/popularity
// service, stopping at the first sufficient match. No lookup by a known
// platform id is made, and the ISRC search runs ahead of the text search.
// A match is sufficient once its confidence clears mediumThreshold; anything
// weaker is kept as a fallback but the waterfall keeps going.
func (r *Resolver) resolveWaterfall(ctx context.Context, track *models.Track, artist, title string, mediumThreshold float64) (Match, error) {
	var best Match

	consider := func(m Match, err error) (bool, error) {
		if err != nil {
			return false, err
		}
		if !m.Found {
			return false, nil
		}
		if m.Confidence > best.Confidence {
			best = m
		}
		return best.Confidence >= mediumThreshold, nil
	}

	if track.ISRC != nil && *track.ISRC != "" && r.spotify != nil {
		sufficient, err := consider(r.cachedSpotifyISRC(ctx, *track.ISRC))
		if err != nil {
			return best, err
		}
		if sufficient {
			return best, nil
		}
	}

	if r.spotify != nil {
		sufficient, err := consider(r.cachedSpotifyText(ctx, artist, title))
		if err != nil {
			return best, err
		}
		if sufficient {
			return best, nil
		}
	}

	if r.musicBrainz != nil {
		sufficient, err := consider(r.cachedMusicBrainz(ctx, artist, title))
		if err != nil {
			return best, err
		}
		if sufficient {
			return best, nil
		}
	}

	if r.catalog != nil {
		sufficient, err := consider(r.cachedCatalog(ctx, artist, title))
		if err != nil {
			return best, err
		}
		if sufficient {
			return best, nil
		}
	}

	if r.tagging != nil {
		if _, err := consider(r.cachedTagging(ctx, artist, title)); err != nil {
			return best, err
		}
	}

	return best, nil
}

func (r *Resolver) cachedSpotifyISRC(ctx context.Context, isrc string) (Match, error) {
	return r.cachedMatch(ctx, "spotify", "isrc:"+isrc, func() (Match, error) {
		return r.spotify.SearchByISRC(ctx, isrc)
	})
}

func (r *Resolver) cachedSpotifyText(ctx context.Context, artist, title string) (Match, error) {
	return r.cachedMatch(ctx, "spotify", "text:"+artist+"|"+title, func() (Match, error) {
		return r.spotify.SearchByText(ctx, artist, title)
	})
}

func (r *Resolver) cachedMusicBrainz(ctx context.Context, artist, title string) (Match, error) {
	return r.cachedMatch(ctx, "musicbrainz", artist+"|"+title, func() (Match, error) {
		return r.musicBrainz.SearchRecording(ctx, artist, title)
	})
}

func (r *Resolver) cachedCatalog(ctx context.Context, artist, title string) (Match, error) {
	return r.cachedMatch(ctx, "catalog", artist+"|"+title, func() (Match, error) {
		return r.catalog.SearchRelease(ctx, artist, title)
	})
}

func (r *Resolver) cachedTagging(ctx context.Context, artist, title string) (Match, error) {
	return r.cachedMatch(ctx, "tagging", artist+"|"+title, func() (Match, error) {
		return r.tagging.Lookup(ctx, artist, title)
	})
}

// cachedMatch wraps an upstream lookup with the resolver's response cache so
// repeated resolver passes over the same artist/title (re-enrichment after
// cool-down, or two tracks sharing a title) don't re-hit the same API.
func (r *Resolver) cachedMatch(ctx context.Context, source, key string, fn func() (Match, error)) (Match, error) {
	if r.cache == nil {
		return fn()
	}

	if raw, ok := r.cache.Get(ctx, source, key); ok {
		var cached Match
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
	}

	match, err := fn()
	if err != nil {
		return Match{}, err
	}
	if encoded, err := json.Marshal(match); err == nil {
		r.cache.Set(ctx, source, key, string(encoded))
	}
	return match, nil
}
