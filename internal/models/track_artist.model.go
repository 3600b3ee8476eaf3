package models

import (
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ArtistRole string

const (
	RolePrimary  ArtistRole = "primary"
	RoleFeatured ArtistRole = "featured"
	RoleRemixer  ArtistRole = "remixer"
	RoleProducer ArtistRole = "producer"
	RoleVocalist ArtistRole = "vocalist"
)

var validArtistRoles = []ArtistRole{RolePrimary, RoleFeatured, RoleRemixer, RoleProducer, RoleVocalist}

func (r ArtistRole) Valid() bool {
	return slices.Contains(validArtistRoles, r)
}

// TrackArtist is the many-to-many link between Track and Artist, tagged by
// role. Exactly one "primary" row per track must match Track.PrimaryArtistID.
type TrackArtist struct {
	BaseUUIDModel
	TrackID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_track_artists_unique" json:"trackId"  validate:"required"`
	ArtistID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_track_artists_unique" json:"artistId" validate:"required"`
	Role     ArtistRole `gorm:"type:text;not null;uniqueIndex:idx_track_artists_unique" json:"role"     validate:"required"`
	Position int        `gorm:"type:int;not null;default:0"                              json:"position"`

	Track  *Track  `gorm:"foreignKey:TrackID"  json:"-"`
	Artist *Artist `gorm:"foreignKey:ArtistID" json:"-"`
}

func (ta *TrackArtist) BeforeCreate(tx *gorm.DB) error { return ta.validate() }
func (ta *TrackArtist) BeforeUpdate(tx *gorm.DB) error { return ta.validate() }

func (ta *TrackArtist) validate() error {
	if ta.TrackID == uuid.Nil || ta.ArtistID == uuid.Nil {
		return gorm.ErrInvalidValue
	}
	if !ta.Role.Valid() {
		return gorm.ErrInvalidValue
	}
	if ta.Position < 0 {
		return gorm.ErrInvalidValue
	}
	return nil
}
