package pipeline

import (
	"context"
	"testing"

	"tracklift/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnricher() *Enricher {
	genres := NewGenreNormalizer([]string{"Trance", "Progressive House", "Drum and Bass"}, DefaultGenreSimilarityThreshold)
	return NewEnricher(metrics.New(), genres, nil)
}

func TestEnricher_ArtistNormalizedNamePopulated(t *testing.T) {
	e := newTestEnricher()
	item := Item{Kind: KindArtist, Artist: &ArtistItem{DisplayName: "Ilan Bluestone"}}
	require.Nil(t, e.Enrich(context.Background(), item))
	assert.Equal(t, "ilan bluestone", item.Artist.NormalizedName)
}

func TestEnricher_TrackTitleFlagsDerivedFromHeuristics(t *testing.T) {
	e := newTestEnricher()
	item := Item{Kind: KindTrack, Track: &TrackItem{Title: "Azzurra (Spencer Brown Remix)"}}
	require.Nil(t, e.Enrich(context.Background(), item))
	assert.True(t, item.Track.IsRemix)
	assert.Equal(t, "azzurra spencer brown remix", item.Track.NormalizedTitle)
}

func TestEnricher_GenreNormalizedWithOriginalPreserved(t *testing.T) {
	e := newTestEnricher()
	genre := "progressive trance house"
	item := Item{Kind: KindTrack, Track: &TrackItem{Title: "Azzurra", Genre: &genre}}
	require.Nil(t, e.Enrich(context.Background(), item))
	if *item.Track.Genre != genre {
		require.NotNil(t, item.Track.OriginalGenre)
		assert.Equal(t, genre, *item.Track.OriginalGenre)
	}
}

func TestEnricher_SetlistNormalizedNamePopulatedAndTimestamped(t *testing.T) {
	e := newTestEnricher()
	item := Item{Kind: KindSetlist, Setlist: &SetlistItem{DisplayName: "Group Therapy 500", Source: "1001tracklists"}}
	require.Nil(t, e.Enrich(context.Background(), item))
	assert.Equal(t, "group therapy 500", item.Setlist.NormalizedName)
	assert.False(t, item.Setlist.LastScrapeAttempt.IsZero())
}

func TestEnricher_SetlistEventDateParsedFromRaw(t *testing.T) {
	e := newTestEnricher()
	item := Item{Kind: KindSetlist, Setlist: &SetlistItem{
		DisplayName: "Group Therapy 500", Source: "1001tracklists", EventDateRaw: "2024-03-02",
	}}
	require.Nil(t, e.Enrich(context.Background(), item))
	require.NotNil(t, item.Setlist.EventDate)
	assert.Equal(t, 2024, item.Setlist.EventDate.Year())
}

func TestGenreNormalizer_CloseMatchSnapsToVocabulary(t *testing.T) {
	n := NewGenreNormalizer([]string{"Progressive House", "Trance"}, 0.5)
	normalized, changed := n.Normalize("house progressive")
	assert.True(t, changed)
	assert.Equal(t, "Progressive House", normalized)
}

func TestGenreNormalizer_NoCloseMatchLeavesInputUnchanged(t *testing.T) {
	n := NewGenreNormalizer([]string{"Trance"}, 0.9)
	normalized, changed := n.Normalize("Breakcore")
	assert.False(t, changed)
	assert.Equal(t, "Breakcore", normalized)
}
