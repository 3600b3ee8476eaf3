package pipeline

import (
	"context"
	"sync"
	"time"

	contextutil "tracklift/internal/context"
	"tracklift/internal/database"
	"tracklift/internal/logger"
	"tracklift/internal/metrics"
	. "tracklift/internal/models"
	"tracklift/internal/repositories"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PersistPriority is the final pipeline stage (§4.8: 100 < 200 < 300).
const PersistPriority = 300

// DefaultBatchSize and DefaultFlushInterval match §4.8.3's defaults.
const (
	DefaultBatchSize     = 50
	DefaultFlushInterval = 10 * time.Second
)

// Persister is the stage-300 batching writer. Add and Flush guard the
// buffers with mu, so concurrent Add calls from the orchestrator's target
// goroutines are safe; each Flush drains the buffers it finds and writes
// them in its own transaction.
type Persister struct {
	db      database.DB
	repos   repositories.Repository
	log     logger.Logger
	metrics *metrics.Registry

	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration

	artists       []*ArtistItem
	tracks        []*TrackItem
	trackArtists  []*TrackArtistItem
	setlists      []*SetlistItem
	setlistTracks []*SetlistTrackItem
	adjacency     []*AdjacencyItem
}

func NewPersister(db database.DB, repos repositories.Repository, registry *metrics.Registry) *Persister {
	return &Persister{
		db:            db,
		repos:         repos,
		log:           logger.New("pipeline.persist"),
		metrics:       registry,
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
	}
}

// Add buffers item for the next flush, triggering an immediate flush of its
// type's buffer once batchSize is reached. The periodic flush (every
// DefaultFlushInterval) and the close-time final flush are the caller's
// responsibility (see cmd/ingest, which runs both via Pipeline.Flush).
func (p *Persister) Add(ctx context.Context, item Item) *StageError {
	p.mu.Lock()
	full := false
	switch item.Kind {
	case KindArtist:
		p.artists = append(p.artists, item.Artist)
		full = len(p.artists) >= p.batchSize
	case KindTrack:
		p.tracks = append(p.tracks, item.Track)
		full = len(p.tracks) >= p.batchSize
	case KindTrackArtist:
		p.trackArtists = append(p.trackArtists, item.TrackArtist)
		full = len(p.trackArtists) >= p.batchSize
	case KindSetlist:
		p.setlists = append(p.setlists, item.Setlist)
		full = len(p.setlists) >= p.batchSize
	case KindSetlistTrack:
		p.setlistTracks = append(p.setlistTracks, item.SetlistTrack)
		full = len(p.setlistTracks) >= p.batchSize
	case KindAdjacency:
		p.adjacency = append(p.adjacency, item.Adjacency)
		full = len(p.adjacency) >= p.batchSize
	}
	p.mu.Unlock()

	if full {
		return p.Flush(ctx)
	}
	return nil
}

// Flush drains every buffered batch in the dependency-respecting order of
// §4.8.3: artists -> tracks -> set-lists -> set-list-tracks -> track-artists
// -> track-adjacency. The whole flush runs inside one transaction; on
// failure it is retried once with each non-empty batch split in half, to
// isolate a single poison entry from failing its siblings.
func (p *Persister) Flush(ctx context.Context) *StageError {
	log := p.log.Function("Flush")

	p.mu.Lock()
	artists, tracks := p.artists, p.tracks
	setlists, setlistTracks := p.setlists, p.setlistTracks
	trackArtists, adjacency := p.trackArtists, p.adjacency
	p.artists, p.tracks = nil, nil
	p.setlists, p.setlistTracks = nil, nil
	p.trackArtists, p.adjacency = nil, nil
	p.mu.Unlock()

	if len(artists)+len(tracks)+len(setlists)+len(setlistTracks)+len(trackArtists)+len(adjacency) == 0 {
		return nil
	}

	start := time.Now()
	err := p.flushOnce(ctx, artists, tracks, setlists, setlistTracks, trackArtists, adjacency)
	p.metrics.Observe(metrics.BatchFlushDuration, time.Since(start))
	if err == nil {
		return nil
	}

	log.Warn("batch flush failed, retrying with halved batches", "error", err)

	var lastErr error
	for _, half := range splitAll(artists, tracks, setlists, setlistTracks, trackArtists, adjacency) {
		if serr := p.flushOnce(ctx, half.artists, half.tracks, half.setlists, half.setlistTracks, half.trackArtists, half.adjacency); serr != nil {
			lastErr = serr
			log.Err("halved batch flush failed, isolating poison entries", serr)
		}
	}
	if lastErr != nil {
		return &StageError{Kind: ErrKindPersistConflict, Stage: "persist", ItemKind: KindTrack, ItemRef: "batch", Err: lastErr}
	}
	return nil
}

type batchHalf struct {
	artists       []*ArtistItem
	tracks        []*TrackItem
	setlists      []*SetlistItem
	setlistTracks []*SetlistTrackItem
	trackArtists  []*TrackArtistItem
	adjacency     []*AdjacencyItem
}

// splitAll returns the first and second half of every buffer, so the retry
// pass isolates whichever half contains the poison entry instead of
// retrying the full, already-failed batch verbatim.
func splitAll(
	artists []*ArtistItem, tracks []*TrackItem, setlists []*SetlistItem,
	setlistTracks []*SetlistTrackItem, trackArtists []*TrackArtistItem, adjacency []*AdjacencyItem,
) []batchHalf {
	return []batchHalf{
		{
			artists: artists[:len(artists)/2], tracks: tracks[:len(tracks)/2],
			setlists: setlists[:len(setlists)/2], setlistTracks: setlistTracks[:len(setlistTracks)/2],
			trackArtists: trackArtists[:len(trackArtists)/2], adjacency: adjacency[:len(adjacency)/2],
		},
		{
			artists: artists[len(artists)/2:], tracks: tracks[len(tracks)/2:],
			setlists: setlists[len(setlists)/2:], setlistTracks: setlistTracks[len(setlistTracks)/2:],
			trackArtists: trackArtists[len(trackArtists)/2:], adjacency: adjacency[len(adjacency)/2:],
		},
	}
}

// flushOnce performs one transactional pass: upsert artists, resolve their
// IDs, upsert tracks keyed against those IDs, resolve track IDs, upsert
// set-lists, then the three link types which depend on both.
func (p *Persister) flushOnce(
	ctx context.Context,
	artistItems []*ArtistItem, trackItems []*TrackItem,
	setlistItems []*SetlistItem, setlistTrackItems []*SetlistTrackItem,
	trackArtistItems []*TrackArtistItem, adjacencyItems []*AdjacencyItem,
) error {
	log := p.log.Function("flushOnce")

	return p.db.SQLWithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		tx := contextutil.WithTransaction(ctx, gtx)

		artistByName, err := p.flushArtists(tx, artistItems)
		if err != nil {
			return log.Err("failed to flush artists", err)
		}

		trackByKey, err := p.flushTracks(tx, trackItems, artistByName)
		if err != nil {
			return log.Err("failed to flush tracks", err)
		}

		setlistByKey, err := p.flushSetlists(tx, setlistItems)
		if err != nil {
			return log.Err("failed to flush setlists", err)
		}

		if err := p.flushSetlistTracks(tx, setlistTrackItems, setlistByKey, trackByKey, artistByName); err != nil {
			return log.Err("failed to flush setlist-tracks", err)
		}

		if err := p.flushTrackArtists(tx, trackArtistItems, trackByKey, artistByName); err != nil {
			return log.Err("failed to flush track-artists", err)
		}

		if err := p.flushAdjacency(tx, adjacencyItems, trackByKey, artistByName); err != nil {
			return log.Err("failed to flush adjacency", err)
		}
		return nil
	})
}

func (p *Persister) flushArtists(ctx context.Context, items []*ArtistItem) (map[string]*Artist, error) {
	if len(items) == 0 {
		return map[string]*Artist{}, nil
	}

	rows := make([]*Artist, 0, len(items))
	for _, a := range items {
		rows = append(rows, &Artist{
			DisplayName:        a.DisplayName,
			NormalizedName:     a.NormalizedName,
			Genres:             datatypes.NewJSONSlice(a.Genres),
			CountryCode:        a.CountryCode,
			PlatformIDs:        toJSONMap(a.PlatformIDs),
			AlternateSpellings: datatypes.NewJSONSlice(a.AlternateSpellings),
		})
	}
	if err := p.repos.Artist.UpsertBatch(ctx, rows); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(items))
	for _, a := range items {
		names = append(names, a.NormalizedName)
	}
	return p.repos.Artist.GetBatchByNormalizedNames(ctx, names)
}

// trackKey joins a track's normalized title and a primary-artist
// reference, either the artist's resolved ID as a string or the artist
// name the item carries: the temporary identity downstream items use to
// find the track's real UUID (spec.md §9, "Cyclic ownership").
func trackKey(normalizedTitle, primaryArtistNormalizedName string) string {
	return normalizedTitle + "\x00" + primaryArtistNormalizedName
}

func (p *Persister) flushTracks(ctx context.Context, items []*TrackItem, artistByName map[string]*Artist) (map[string]*Track, error) {
	resolved := make(map[string]*Track, len(items))
	if len(items) == 0 {
		return resolved, nil
	}

	rows := make([]*Track, 0, len(items))
	for _, t := range items {
		artist, ok := artistByName[t.PrimaryArtistName]
		if !ok {
			// primary artist never flushed (e.g. dropped upstream); defer
			// this track rather than violate the not-null FK constraint.
			continue
		}
		rows = append(rows, &Track{
			Title:            t.Title,
			NormalizedTitle:  t.NormalizedTitle,
			PrimaryArtistID:  artist.ID,
			BPM:              t.BPM,
			Key:              t.Key,
			DurationMs:       t.DurationMs,
			ReleaseDate:      t.ReleaseDate,
			Genre:            t.Genre,
			Energy:           t.Energy,
			Danceability:     t.Danceability,
			Valence:          t.Valence,
			Acousticness:     t.Acousticness,
			Instrumentalness: t.Instrumentalness,
			Liveness:         t.Liveness,
			Speechiness:      t.Speechiness,
			Loudness:         t.Loudness,
			IsRemix:          t.IsRemix,
			IsMashup:         t.IsMashup,
			IsLive:           t.IsLive,
			IsCover:          t.IsCover,
			IsInstrumental:   t.IsInstrumental,
			IsExplicit:       t.IsExplicit,
			IsIdentified:     t.IsIdentified,
			ISRC:             t.ISRC,
			MusicBrainzID:    t.MusicBrainzID,
			PlatformIDs:        toJSONMap(t.PlatformIDs),
			SourceURL:          t.SourceURL,
			ParentheticalNotes: datatypes.NewJSONSlice(t.ParentheticalNotes),
		})
	}
	if err := p.repos.Track.UpsertBatch(ctx, rows); err != nil {
		return nil, err
	}

	for _, row := range rows {
		resolved[trackKey(row.NormalizedTitle, row.PrimaryArtistID.String())] = row
	}
	// Also key by (title, artist display name) for downstream stages that
	// only carry the artist's name, not yet its resolved ID.
	for _, t := range items {
		artist, ok := artistByName[t.PrimaryArtistName]
		if !ok {
			continue
		}
		if row, ok := resolved[trackKey(t.NormalizedTitle, artist.ID.String())]; ok {
			resolved[trackKey(t.NormalizedTitle, t.PrimaryArtistName)] = row
		}
	}
	return resolved, nil
}

func (p *Persister) flushSetlists(ctx context.Context, items []*SetlistItem) (map[string]*Setlist, error) {
	if len(items) == 0 {
		return map[string]*Setlist{}, nil
	}

	rows := make([]*Setlist, 0, len(items))
	for _, s := range items {
		var eventType *EventType
		if s.EventType != nil {
			et := EventType(*s.EventType)
			eventType = &et
		}
		lastAttempt := s.LastScrapeAttempt
		rows = append(rows, &Setlist{
			DisplayName:       s.DisplayName,
			NormalizedName:    s.NormalizedName,
			Source:            s.Source,
			EventDate:         s.EventDate,
			Venue:             s.Venue,
			EventType:         eventType,
			ParsingVersion:    s.ParsingVersion,
			TracklistCount:    s.TracklistCount,
			ScrapeError:       s.ScrapeError,
			LastScrapeAttempt: &lastAttempt,
		})
	}
	if err := p.repos.Setlist.UpsertBatch(ctx, rows); err != nil {
		return nil, err
	}

	resolved := make(map[string]*Setlist, len(rows))
	for _, row := range rows {
		resolved[row.NormalizedName+"\x00"+row.Source] = row
	}
	return resolved, nil
}

func (p *Persister) flushSetlistTracks(
	ctx context.Context, items []*SetlistTrackItem,
	setlistByKey map[string]*Setlist, trackByKey map[string]*Track, artistByName map[string]*Artist,
) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]*SetlistTrack, 0, len(items))
	for _, st := range items {
		setlist, ok := setlistByKey[st.SetlistName+"\x00"+st.SetlistSource]
		if !ok {
			continue
		}
		track, ok := resolveTrack(trackByKey, artistByName, st.TrackTitle, st.TrackPrimaryArtistName)
		if !ok {
			continue
		}
		rows = append(rows, &SetlistTrack{
			SetlistID:   setlist.ID,
			TrackID:     track.ID,
			Position:    st.Position,
			TimestampMs: st.TimestampMs,
		})
	}
	return p.repos.SetlistTrack.UpsertBatch(ctx, rows)
}

func (p *Persister) flushTrackArtists(
	ctx context.Context, items []*TrackArtistItem, trackByKey map[string]*Track, artistByName map[string]*Artist,
) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]*TrackArtist, 0, len(items))
	for _, ta := range items {
		track, ok := resolveTrack(trackByKey, artistByName, ta.TrackTitle, ta.TrackPrimaryArtistName)
		if !ok {
			continue
		}
		artist, ok := artistByName[ta.ArtistName]
		if !ok {
			continue
		}
		rows = append(rows, &TrackArtist{
			TrackID:  track.ID,
			ArtistID: artist.ID,
			Role:     ArtistRole(ta.Role),
			Position: ta.Position,
		})
	}
	return p.repos.TrackArtist.UpsertBatch(ctx, rows)
}

// adjacencyPairKey identifies an unordered track pair by its canonical
// endpoint order, used to pre-merge same-pair edges within one flush.
type adjacencyPairKey [2]uuid.UUID

// flushAdjacency pre-merges every item in the batch that resolves to the
// same canonical (track_a_id, track_b_id) pair before upserting (§8:
// "for any ... batch partitioning of the same input, the resulting
// (occurrence_count, average_distance) are identical"). A single multi-row
// `INSERT ... ON CONFLICT DO UPDATE` cannot satisfy its own conflict target
// twice, so two same-pair edges reaching Postgres in one statement would
// raise "ON CONFLICT DO UPDATE command cannot affect row a second time";
// merging here with the same count-weighted-mean math the repository uses
// against the existing row keeps one row per pair going into the statement.
func (p *Persister) flushAdjacency(
	ctx context.Context, items []*AdjacencyItem, trackByKey map[string]*Track, artistByName map[string]*Artist,
) error {
	if len(items) == 0 {
		return nil
	}

	merged := make(map[adjacencyPairKey]*TrackAdjacency, len(items))
	order := make([]adjacencyPairKey, 0, len(items))

	for _, adj := range items {
		trackA, ok := resolveTrack(trackByKey, artistByName, adj.TrackATitle, adj.TrackAArtistName)
		if !ok {
			continue
		}
		trackB, ok := resolveTrack(trackByKey, artistByName, adj.TrackBTitle, adj.TrackBArtistName)
		if !ok || trackA.ID == trackB.ID {
			continue
		}
		a, b := CanonicalPair(trackA.ID, trackB.ID)
		key := adjacencyPairKey{a, b}

		if existing, ok := merged[key]; ok {
			existing.OccurrenceCount, existing.AverageDistance = MergeAdjacency(
				existing.OccurrenceCount, existing.AverageDistance,
				adj.OccurrenceCount, adj.AverageDistance,
			)
			continue
		}

		merged[key] = &TrackAdjacency{
			TrackAID:        a,
			TrackBID:        b,
			OccurrenceCount: adj.OccurrenceCount,
			AverageDistance: adj.AverageDistance,
		}
		order = append(order, key)
	}

	rows := make([]*TrackAdjacency, 0, len(order))
	for _, key := range order {
		rows = append(rows, merged[key])
	}
	return p.repos.Adjacency.UpsertBatch(ctx, rows)
}

func resolveTrack(trackByKey map[string]*Track, artistByName map[string]*Artist, title, artistName string) (*Track, bool) {
	normalizedTitle := NormalizeTitle(title)
	if track, ok := trackByKey[trackKey(normalizedTitle, artistName)]; ok {
		return track, true
	}
	artist, ok := artistByName[artistName]
	if !ok {
		return nil, false
	}
	track, ok := trackByKey[trackKey(normalizedTitle, artist.ID.String())]
	return track, ok
}

func toJSONMap(m map[string]string) datatypes.JSONMap {
	if len(m) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
