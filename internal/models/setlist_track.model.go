package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SetlistTrack links a set-list to a track at an ordered position.
type SetlistTrack struct {
	BaseUUIDModel
	SetlistID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_setlist_tracks_position" json:"setlistId" validate:"required"`
	TrackID     uuid.UUID `gorm:"type:uuid;not null;index:idx_setlist_tracks_track"          json:"trackId"   validate:"required"`
	Position    int       `gorm:"type:int;not null;uniqueIndex:idx_setlist_tracks_position"   json:"position"`
	TimestampMs *int      `gorm:"type:int"                                                    json:"timestampMs,omitempty"`

	Setlist *Setlist `gorm:"foreignKey:SetlistID" json:"-"`
	Track   *Track   `gorm:"foreignKey:TrackID"   json:"-"`
}

func (st *SetlistTrack) BeforeCreate(tx *gorm.DB) error { return st.validate() }
func (st *SetlistTrack) BeforeUpdate(tx *gorm.DB) error { return st.validate() }

func (st *SetlistTrack) validate() error {
	if st.SetlistID == uuid.Nil || st.TrackID == uuid.Nil {
		return gorm.ErrInvalidValue
	}
	if st.Position < 0 {
		return gorm.ErrInvalidValue
	}
	return nil
}
