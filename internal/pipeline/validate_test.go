package pipeline

import (
	"context"
	"testing"

	"tracklift/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator() *Validator {
	return NewValidator(metrics.New(), []string{"1001tracklists", "mixesdb"})
}

func TestValidator_ArtistPlaceholderRejected(t *testing.T) {
	v := newTestValidator()
	err := v.Validate(context.Background(), Item{Kind: KindArtist, Artist: &ArtistItem{DisplayName: "Various Artists"}})
	require.NotNil(t, err)
	assert.Equal(t, ErrKindValidation, err.Kind)
}

func TestValidator_ArtistValidPasses(t *testing.T) {
	v := newTestValidator()
	err := v.Validate(context.Background(), Item{Kind: KindArtist, Artist: &ArtistItem{DisplayName: "Ilan Bluestone"}})
	assert.Nil(t, err)
}

func TestValidator_ArtistMalformedCountryCode(t *testing.T) {
	v := newTestValidator()
	bad := "USA"
	err := v.Validate(context.Background(), Item{Kind: KindArtist, Artist: &ArtistItem{DisplayName: "Four Tet", CountryCode: &bad}})
	require.NotNil(t, err)
}

func TestValidator_TrackBPMOutOfRange(t *testing.T) {
	v := newTestValidator()
	bpm := decimal.RequireFromString("320")
	err := v.Validate(context.Background(), Item{Kind: KindTrack, Track: &TrackItem{Title: "Azzurra", BPM: &bpm}})
	require.NotNil(t, err)
}

func TestValidator_TrackAudioFeatureOutOfRange(t *testing.T) {
	v := newTestValidator()
	bad := 1.5
	err := v.Validate(context.Background(), Item{Kind: KindTrack, Track: &TrackItem{Title: "Azzurra", Energy: &bad}})
	require.NotNil(t, err)
}

func TestValidator_TrackMalformedISRC(t *testing.T) {
	v := newTestValidator()
	bad := "not-an-isrc"
	err := v.Validate(context.Background(), Item{Kind: KindTrack, Track: &TrackItem{Title: "Azzurra", ISRC: &bad}})
	require.NotNil(t, err)
}

func TestValidator_TrackArtistRoleNotInEnum(t *testing.T) {
	v := newTestValidator()
	err := v.Validate(context.Background(), Item{Kind: KindTrackArtist, TrackArtist: &TrackArtistItem{ArtistName: "Four Tet", Role: "legendary"}})
	require.NotNil(t, err)
}

func TestValidator_SetlistSilentFailureDetected(t *testing.T) {
	v := newTestValidator()
	zero := 0
	err := v.Validate(context.Background(), Item{Kind: KindSetlist, Setlist: &SetlistItem{
		DisplayName:    "Anjunabeats Group Therapy 500",
		Source:         "1001tracklists",
		TracklistCount: &zero,
	}})
	require.NotNil(t, err)
	assert.Contains(t, err.ItemRef, "silent-extraction")
}

func TestValidator_SetlistZeroTracksWithScrapeErrorPasses(t *testing.T) {
	v := newTestValidator()
	zero := 0
	reason := "page returned 403"
	err := v.Validate(context.Background(), Item{Kind: KindSetlist, Setlist: &SetlistItem{
		DisplayName:    "Anjunabeats Group Therapy 500",
		Source:         "1001tracklists",
		TracklistCount: &zero,
		ScrapeError:    &reason,
	}})
	assert.Nil(t, err)
}

func TestValidator_SetlistUnrecognizedSource(t *testing.T) {
	v := newTestValidator()
	err := v.Validate(context.Background(), Item{Kind: KindSetlist, Setlist: &SetlistItem{
		DisplayName: "Anjunabeats Group Therapy 500",
		Source:      "some-random-blog",
	}})
	require.NotNil(t, err)
}

func TestValidator_SetlistEventDateDoesNotParse(t *testing.T) {
	v := newTestValidator()
	err := v.Validate(context.Background(), Item{Kind: KindSetlist, Setlist: &SetlistItem{
		DisplayName:  "Anjunabeats Group Therapy 500",
		Source:       "1001tracklists",
		EventDateRaw: "not a date at all",
	}})
	require.NotNil(t, err)
}

func TestValidator_SetlistEventDateParsesWhenPresent(t *testing.T) {
	v := newTestValidator()
	err := v.Validate(context.Background(), Item{Kind: KindSetlist, Setlist: &SetlistItem{
		DisplayName:  "Anjunabeats Group Therapy 500",
		Source:       "1001tracklists",
		EventDateRaw: "2024-03-02",
	}})
	assert.Nil(t, err)
}

func TestValidator_AdjacencySelfLoopRejected(t *testing.T) {
	v := newTestValidator()
	err := v.Validate(context.Background(), Item{Kind: KindAdjacency, Adjacency: &AdjacencyItem{
		TrackATitle: "Azzurra", TrackAArtistName: "Above & Beyond",
		TrackBTitle: "Azzurra", TrackBArtistName: "Above & Beyond",
		OccurrenceCount: 1,
	}})
	require.NotNil(t, err)
}

func TestValidator_AdjacencyZeroOccurrenceRejected(t *testing.T) {
	v := newTestValidator()
	err := v.Validate(context.Background(), Item{Kind: KindAdjacency, Adjacency: &AdjacencyItem{
		TrackATitle: "Azzurra", TrackAArtistName: "Above & Beyond",
		TrackBTitle: "Sun & Moon", TrackBArtistName: "Above & Beyond",
		OccurrenceCount: 0,
	}})
	require.NotNil(t, err)
}
