package extractors

import (
	"testing"
	"time"

	"tracklift/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPipelineItems_IdentifiedAndUnidentified(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	result := ExtractedSetlist{
		DisplayName:  "Live at Warehouse",
		EventDateRaw: "2026-03-01",
		Venue:        "Warehouse District",
		Entries: []RawEntry{
			{Citation: "Above & Beyond - Sun & Moon (Tinlicker Remix)"},
			{Citation: "ID - ID"},
		},
	}

	items := ToPipelineItems("dj_set_index", "https://example.test/set/1", result, now)

	require.NotEmpty(t, items)
	assert.Equal(t, pipeline.KindSetlist, items[0].Kind)
	require.NotNil(t, items[0].Setlist.TracklistCount)
	assert.Equal(t, 1, *items[0].Setlist.TracklistCount)
	assert.Nil(t, items[0].Setlist.ScrapeError)

	var sawTrack, sawArtist, sawSetlistTrack bool
	for _, item := range items[1:] {
		switch item.Kind {
		case pipeline.KindTrack:
			sawTrack = true
			assert.Equal(t, "Sun & Moon", item.Track.Title)
			assert.True(t, item.Track.IsRemix)
		case pipeline.KindArtist:
			sawArtist = true
		case pipeline.KindSetlistTrack:
			sawSetlistTrack = true
			assert.Equal(t, 0, item.SetlistTrack.Position)
		}
	}
	assert.True(t, sawTrack)
	assert.True(t, sawArtist)
	assert.True(t, sawSetlistTrack)
}

func TestToPipelineItems_ZeroTracksIsSilentFailure(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	result := ExtractedSetlist{
		DisplayName: "Empty Set",
		Entries:     []RawEntry{{Citation: "ID - ID"}},
	}

	items := ToPipelineItems("dj_set_index", "https://example.test/set/2", result, now)

	require.NotEmpty(t, items)
	require.NotNil(t, items[0].Setlist.ScrapeError)
	assert.Contains(t, *items[0].Setlist.ScrapeError, "zero identifiable tracks")
}

func TestToPipelineItems_PreservesScrapeError(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	result := ExtractedSetlist{
		DisplayName: "Broken Page",
		ScrapeError: assert.AnError,
	}

	items := ToPipelineItems("dj_set_index", "https://example.test/set/3", result, now)

	require.NotNil(t, items[0].Setlist.ScrapeError)
	assert.Equal(t, assert.AnError.Error(), *items[0].Setlist.ScrapeError)
}
