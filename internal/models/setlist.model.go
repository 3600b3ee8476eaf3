package models

import (
	"time"

	"gorm.io/gorm"
)

type EventType string

const (
	EventFestival EventType = "festival"
	EventClub     EventType = "club"
	EventRadio    EventType = "radio"
	EventPodcast  EventType = "podcast"
)

// Setlist is an ordered sequence of tracks attributed to a DJ at a
// particular event, as produced by one extractor.
type Setlist struct {
	BaseUUIDModel
	DisplayName       string     `gorm:"type:text;not null"                                                   json:"displayName" validate:"required"`
	NormalizedName    string     `gorm:"type:text;not null;uniqueIndex:idx_setlists_name_source"              json:"normalizedName"`
	Source            string     `gorm:"type:text;not null;uniqueIndex:idx_setlists_name_source;index:idx_setlists_source" json:"source" validate:"required"`
	EventDate         *time.Time `gorm:"type:timestamp"                                                       json:"eventDate,omitempty"`
	Venue             *string    `gorm:"type:text"                                                            json:"venue,omitempty"`
	EventType         *EventType `gorm:"type:text"                                                            json:"eventType,omitempty"`
	ParsingVersion    string     `gorm:"type:text;not null"                                                   json:"parsingVersion"`
	TracklistCount    *int       `gorm:"type:int"                                                             json:"tracklistCount,omitempty"`
	ScrapeError       *string    `gorm:"type:text"                                                            json:"scrapeError,omitempty"`
	LastScrapeAttempt *time.Time `gorm:"type:timestamp"                                                       json:"lastScrapeAttempt,omitempty"`

	Tracks []SetlistTrack `gorm:"foreignKey:SetlistID" json:"-"`
}

func (s *Setlist) BeforeCreate(tx *gorm.DB) error { return s.validate() }
func (s *Setlist) BeforeUpdate(tx *gorm.DB) error { return s.validate() }

func (s *Setlist) validate() error {
	if s.DisplayName == "" || IsReservedPlaceholder(s.DisplayName) {
		return gorm.ErrInvalidValue
	}
	if s.Source == "" {
		return gorm.ErrInvalidValue
	}
	if s.NormalizedName == "" {
		s.NormalizedName = NormalizeArtistName(s.DisplayName)
	}
	// §3: tracklist_count = 0 requires a non-null scrape_error (silent-failure guard).
	if s.TracklistCount != nil && *s.TracklistCount == 0 && (s.ScrapeError == nil || *s.ScrapeError == "") {
		return gorm.ErrInvalidValue
	}
	return nil
}
