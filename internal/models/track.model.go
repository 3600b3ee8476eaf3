package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NormalizeTitle mirrors NormalizeArtistName for track titles.
func NormalizeTitle(title string) string {
	n := strings.ToLower(strings.TrimSpace(title))
	n = punctuationStrip.ReplaceAllString(n, "")
	n = whitespaceCollapse.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

type Track struct {
	BaseUUIDModel
	Title           string           `gorm:"type:text;not null"                                                       json:"title" validate:"required"`
	NormalizedTitle string           `gorm:"type:text;not null;uniqueIndex:idx_tracks_title_artist"                   json:"normalizedTitle"`
	PrimaryArtistID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_tracks_title_artist;index:idx_tracks_artist" json:"primaryArtistId" validate:"required"`
	BPM             *decimal.Decimal `gorm:"type:numeric(5,2)"                                                        json:"bpm,omitempty"`
	Key             *string          `gorm:"type:text"                                                                json:"key,omitempty"`
	DurationMs      *int             `gorm:"type:int"                                                                 json:"durationMs,omitempty"`
	ReleaseDate     *time.Time       `gorm:"type:date"                                                                json:"releaseDate,omitempty"`
	Genre           *string          `gorm:"type:text"                                                                json:"genre,omitempty"`
	Label           *string          `gorm:"type:text"                                                                json:"label,omitempty"`
	LabelSource     *string          `gorm:"type:text"                                                                json:"labelSource,omitempty"`
	LabelConfidence *float64         `gorm:"type:float8"                                                              json:"labelConfidence,omitempty"`
	Popularity      *int             `gorm:"type:int"                                                                 json:"popularity,omitempty"`
	Tags            datatypes.JSONSlice[string] `gorm:"type:jsonb"                                                    json:"tags,omitempty"`

	// Audio features, each constrained to its documented range in validation.
	Energy           *float64 `gorm:"type:float8" json:"energy,omitempty"`
	Danceability     *float64 `gorm:"type:float8" json:"danceability,omitempty"`
	Valence          *float64 `gorm:"type:float8" json:"valence,omitempty"`
	Acousticness     *float64 `gorm:"type:float8" json:"acousticness,omitempty"`
	Instrumentalness *float64 `gorm:"type:float8" json:"instrumentalness,omitempty"`
	Liveness         *float64 `gorm:"type:float8" json:"liveness,omitempty"`
	Speechiness      *float64 `gorm:"type:float8" json:"speechiness,omitempty"`
	Loudness         *float64 `gorm:"type:float8" json:"loudness,omitempty"`

	IsRemix          bool `gorm:"type:bool;default:false;not null" json:"isRemix"`
	IsMashup         bool `gorm:"type:bool;default:false;not null" json:"isMashup"`
	IsLive           bool `gorm:"type:bool;default:false;not null" json:"isLive"`
	IsCover          bool `gorm:"type:bool;default:false;not null" json:"isCover"`
	IsInstrumental   bool `gorm:"type:bool;default:false;not null" json:"isInstrumental"`
	IsExplicit       bool `gorm:"type:bool;default:false;not null" json:"isExplicit"`

	// IsIdentified mirrors the parser's Citation.IsIdentified (§4.6): false
	// for an "ID Remix"-shaped citation that survived because a real
	// primary artist was extracted even though the remixer could not be.
	// The resolver's Tier 2+ co-occurrence matcher targets exactly these rows.
	IsIdentified bool `gorm:"type:bool;default:true;not null" json:"isIdentified"`

	ISRC          *string           `gorm:"type:varchar(15);uniqueIndex:idx_tracks_isrc" json:"isrc,omitempty"`
	MusicBrainzID *string           `gorm:"type:uuid;uniqueIndex:idx_tracks_mbid"         json:"musicBrainzId,omitempty"`
	PlatformIDs   datatypes.JSONMap `gorm:"type:jsonb"                                   json:"platformIds,omitempty"`
	SourceURL     *string           `gorm:"type:text"                                    json:"sourceUrl,omitempty"`

	// ParentheticalNotes retains the raw "(...)"/"[...]" groups the parser
	// stripped out of the title (§4.6). The resolver's Tier 0 label hunter
	// re-reads these post-persistence instead of re-fetching the page.
	ParentheticalNotes datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"parentheticalNotes,omitempty"`

	PrimaryArtist *Artist `gorm:"foreignKey:PrimaryArtistID" json:"-"`
}

func (t *Track) BeforeCreate(tx *gorm.DB) error {
	return t.validate()
}

func (t *Track) BeforeUpdate(tx *gorm.DB) error {
	return t.validate()
}

func (t *Track) validate() error {
	if t.Title == "" {
		return gorm.ErrInvalidValue
	}
	if t.PrimaryArtistID == uuid.Nil {
		return gorm.ErrInvalidValue
	}
	if t.NormalizedTitle == "" {
		t.NormalizedTitle = NormalizeTitle(t.Title)
	}
	return nil
}
