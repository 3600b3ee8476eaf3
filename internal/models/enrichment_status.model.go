package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EnrichmentStatusValue string

const (
	EnrichmentPending            EnrichmentStatusValue = "pending"
	EnrichmentCompleted          EnrichmentStatusValue = "completed"
	EnrichmentFailed             EnrichmentStatusValue = "failed"
	EnrichmentPendingReEnrichment EnrichmentStatusValue = "pending_re_enrichment"
)

type CooldownStrategy string

const (
	CooldownFixed       CooldownStrategy = "fixed"
	CooldownExponential CooldownStrategy = "exponential"
	CooldownAdaptive    CooldownStrategy = "adaptive"
)

const MaxRetryAttempts = 5

// EnrichmentStatus is owned exclusively by the resolver; one row per track.
type EnrichmentStatus struct {
	BaseUUIDModel
	TrackID          uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex:idx_enrichment_status_track" json:"trackId" validate:"required"`
	Status           EnrichmentStatusValue       `gorm:"type:text;not null;default:'pending'"                       json:"status"`
	RetryAfter       *time.Time                  `gorm:"type:timestamp"                                             json:"retryAfter,omitempty"`
	RetryAttempts    int                         `gorm:"type:int;not null;default:0"                                json:"retryAttempts"`
	CooldownStrategy CooldownStrategy            `gorm:"type:text;not null;default:'adaptive'"                      json:"cooldownStrategy"`
	SourcesUsed      datatypes.JSONSlice[string] `gorm:"type:jsonb"                                                 json:"sourcesUsed,omitempty"`

	Track *Track `gorm:"foreignKey:TrackID" json:"-"`
}

func (e *EnrichmentStatus) BeforeCreate(tx *gorm.DB) error { return e.validate() }
func (e *EnrichmentStatus) BeforeUpdate(tx *gorm.DB) error { return e.validate() }

func (e *EnrichmentStatus) validate() error {
	if e.TrackID == uuid.Nil {
		return gorm.ErrInvalidValue
	}
	if e.RetryAttempts > MaxRetryAttempts {
		return gorm.ErrInvalidValue
	}
	if e.RetryAttempts == MaxRetryAttempts && e.Status != EnrichmentFailed {
		return gorm.ErrInvalidValue
	}
	return nil
}
