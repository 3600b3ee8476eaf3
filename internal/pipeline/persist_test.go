package pipeline

import (
	"context"
	"testing"

	. "tracklift/internal/models"
	"tracklift/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// fakeAdjacencyRepository records whatever UpsertBatch is called with, so
// flushAdjacency's pre-merge step can be asserted without a database.
type fakeAdjacencyRepository struct {
	upserted []*TrackAdjacency
}

func (f *fakeAdjacencyRepository) UpsertBatch(ctx context.Context, edges []*TrackAdjacency) error {
	f.upserted = edges
	return nil
}

func (f *fakeAdjacencyRepository) Neighbors(ctx context.Context, trackID uuid.UUID) ([]*TrackAdjacency, error) {
	return nil, nil
}

func TestTrackKey_StableAcrossEquivalentInputs(t *testing.T) {
	assert.Equal(t, trackKey("azzurra", "above & beyond"), trackKey("azzurra", "above & beyond"))
	assert.NotEqual(t, trackKey("azzurra", "above & beyond"), trackKey("azzurraabove", "& beyond"))
}

func TestResolveTrack_FindsByArtistDisplayName(t *testing.T) {
	track := &Track{NormalizedTitle: "azzurra"}
	track.ID = uuid.New()

	trackByKey := map[string]*Track{
		trackKey("azzurra", "above & beyond"): track,
	}
	artistByName := map[string]*Artist{}

	resolved, ok := resolveTrack(trackByKey, artistByName, "Azzurra", "above & beyond")
	assert.True(t, ok)
	assert.Same(t, track, resolved)
}

func TestResolveTrack_FallsBackToArtistID(t *testing.T) {
	artist := &Artist{}
	track := &Track{NormalizedTitle: "azzurra"}

	trackByKey := map[string]*Track{
		trackKey("azzurra", artist.ID.String()): track,
	}
	artistByName := map[string]*Artist{"above & beyond": artist}

	resolved, ok := resolveTrack(trackByKey, artistByName, "Azzurra", "above & beyond")
	assert.True(t, ok)
	assert.Same(t, track, resolved)
}

func TestResolveTrack_MissingArtistFails(t *testing.T) {
	_, ok := resolveTrack(map[string]*Track{}, map[string]*Artist{}, "Azzurra", "nobody")
	assert.False(t, ok)
}

func TestToJSONMap_EmptyInputReturnsNil(t *testing.T) {
	assert.Nil(t, toJSONMap(nil))
	assert.Nil(t, toJSONMap(map[string]string{}))
}

func TestToJSONMap_ConvertsStringValues(t *testing.T) {
	out := toJSONMap(map[string]string{"spotify": "abc123"})
	assert.Equal(t, "abc123", out["spotify"])
}

// TestFlushAdjacency_MergesSamePairWithinOneBatch exercises §8 scenario 5
// (batches emitting counts [3, 2] with distances [1.0, 2.0] for the same
// pair must merge to occurrence_count=5, average_distance=1.4) and, more
// importantly, guards against ever handing the repository two rows for the
// same canonical pair in one UpsertBatch call — Postgres's "ON CONFLICT DO
// UPDATE command cannot affect row a second time" for that case.
func TestFlushAdjacency_MergesSamePairWithinOneBatch(t *testing.T) {
	trackX := &Track{NormalizedTitle: "frozen ground"}
	trackX.ID = uuid.New()
	trackY := &Track{NormalizedTitle: "losing my mind"}
	trackY.ID = uuid.New()

	trackByKey := map[string]*Track{
		trackKey("frozen ground", "ilan bluestone"): trackX,
		trackKey("losing my mind", "mami"):          trackY,
	}
	artistByName := map[string]*Artist{}

	items := []*AdjacencyItem{
		{
			TrackATitle: "Frozen Ground", TrackAArtistName: "ilan bluestone",
			TrackBTitle: "Losing My Mind", TrackBArtistName: "mami",
			OccurrenceCount: 3, AverageDistance: 1.0,
		},
		{
			TrackATitle: "Frozen Ground", TrackAArtistName: "ilan bluestone",
			TrackBTitle: "Losing My Mind", TrackBArtistName: "mami",
			OccurrenceCount: 2, AverageDistance: 2.0,
		},
	}

	fake := &fakeAdjacencyRepository{}
	p := &Persister{repos: repositories.Repository{Adjacency: fake}}

	err := p.flushAdjacency(context.Background(), items, trackByKey, artistByName)
	assert.NoError(t, err)

	assert.Len(t, fake.upserted, 1, "same-pair rows must be pre-merged before UpsertBatch")
	assert.Equal(t, 5, fake.upserted[0].OccurrenceCount)
	assert.InDelta(t, 1.4, fake.upserted[0].AverageDistance, 1e-9)
}

// TestFlushAdjacency_DistinctPairsPassThroughSeparately ensures the merge
// step only collapses rows that share a canonical pair.
func TestFlushAdjacency_DistinctPairsPassThroughSeparately(t *testing.T) {
	trackX := &Track{NormalizedTitle: "frozen ground"}
	trackX.ID = uuid.New()
	trackY := &Track{NormalizedTitle: "losing my mind"}
	trackY.ID = uuid.New()
	trackZ := &Track{NormalizedTitle: "azzurra"}
	trackZ.ID = uuid.New()

	trackByKey := map[string]*Track{
		trackKey("frozen ground", "ilan bluestone"): trackX,
		trackKey("losing my mind", "mami"):          trackY,
		trackKey("azzurra", "above & beyond"):       trackZ,
	}
	artistByName := map[string]*Artist{}

	items := []*AdjacencyItem{
		{
			TrackATitle: "Frozen Ground", TrackAArtistName: "ilan bluestone",
			TrackBTitle: "Losing My Mind", TrackBArtistName: "mami",
			OccurrenceCount: 1, AverageDistance: 3.0,
		},
		{
			TrackATitle: "Frozen Ground", TrackAArtistName: "ilan bluestone",
			TrackBTitle: "Azzurra", TrackBArtistName: "above & beyond",
			OccurrenceCount: 1, AverageDistance: 2.0,
		},
	}

	fake := &fakeAdjacencyRepository{}
	p := &Persister{repos: repositories.Repository{Adjacency: fake}}

	err := p.flushAdjacency(context.Background(), items, trackByKey, artistByName)
	assert.NoError(t, err)
	assert.Len(t, fake.upserted, 2)
}

func TestSplitAll_DividesEachBufferInHalf(t *testing.T) {
	artists := []*ArtistItem{{DisplayName: "A"}, {DisplayName: "B"}, {DisplayName: "C"}, {DisplayName: "D"}}
	halves := splitAll(artists, nil, nil, nil, nil, nil)
	assert.Len(t, halves, 2)
	assert.Len(t, halves[0].artists, 2)
	assert.Len(t, halves[1].artists, 2)
}
