// Package pipeline implements the validation -> enrichment -> persistence
// stages of §4.8, operating on the polymorphic item stream described in
// spec.md §9: one tagged union instead of auto-detection by field presence.
package pipeline

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind tags which payload a given Item carries. Every stage switches on
// Kind rather than probing which pointer is non-nil.
type ItemKind string

const (
	KindArtist       ItemKind = "artist"
	KindTrack        ItemKind = "track"
	KindTrackArtist  ItemKind = "track_artist"
	KindSetlist      ItemKind = "setlist"
	KindSetlistTrack ItemKind = "setlist_track"
	KindAdjacency    ItemKind = "adjacency"
)

// Item is the tagged union carried on the single pipeline channel. Exactly
// one payload field is populated, selected by Kind.
type Item struct {
	Kind ItemKind

	Artist       *ArtistItem
	Track        *TrackItem
	TrackArtist  *TrackArtistItem
	Setlist      *SetlistItem
	SetlistTrack *SetlistTrackItem
	Adjacency    *AdjacencyItem
}

// ArtistItem is the pre-persistence shape of an Artist citation.
type ArtistItem struct {
	DisplayName        string
	NormalizedName     string
	Genres             []string
	CountryCode        *string
	PlatformIDs        map[string]string
	AlternateSpellings []string
}

// TrackItem is the pre-persistence shape of a Track citation. Entities are
// referenced by name rather than ID: FK resolution happens at flush time
// against the just-committed canonical rows (spec.md §9, "Cyclic
// ownership").
type TrackItem struct {
	Title              string
	NormalizedTitle    string
	PrimaryArtistName  string
	BPM                *decimal.Decimal
	Key                *string
	DurationMs         *int
	ReleaseDate        *time.Time
	Genre              *string
	OriginalGenre      *string
	Energy             *float64
	Danceability       *float64
	Valence            *float64
	Acousticness       *float64
	Instrumentalness   *float64
	Liveness           *float64
	Speechiness        *float64
	Loudness           *float64
	IsRemix            bool
	IsMashup           bool
	IsLive             bool
	IsCover            bool
	IsInstrumental     bool
	IsExplicit         bool
	IsIdentified       bool
	ISRC               *string
	MusicBrainzID      *string
	PlatformIDs        map[string]string
	SourceURL          *string
	ParentheticalNotes []string
}

// TrackArtistItem links a track to one of its non-primary (or primary)
// artist credits by name.
type TrackArtistItem struct {
	TrackTitle             string
	TrackPrimaryArtistName string
	ArtistName             string
	Role                   string
	Position               int
}

// SetlistItem is the pre-persistence shape of a Setlist citation.
type SetlistItem struct {
	DisplayName       string
	NormalizedName    string
	Source            string
	EventDate         *time.Time
	EventDateRaw      string
	Venue             *string
	EventType         *string
	ParsingVersion    string
	TracklistCount    *int
	ScrapeError       *string
	LastScrapeAttempt time.Time
}

// SetlistTrackItem places a track at a position within a set-list.
type SetlistTrackItem struct {
	SetlistName           string
	SetlistSource         string
	Position               int
	TrackTitle             string
	TrackPrimaryArtistName string
	TimestampMs            *int
}

// AdjacencyItem is one observed co-occurrence between two tracks, prior to
// canonical-ordering and aggregation at flush time.
type AdjacencyItem struct {
	TrackATitle       string
	TrackAArtistName  string
	TrackBTitle       string
	TrackBArtistName  string
	OccurrenceCount   int
	AverageDistance   float64
}
