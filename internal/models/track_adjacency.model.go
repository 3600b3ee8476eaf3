package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrackAdjacency is an undirected, deduplicated weighted edge between two
// tracks. TrackAID/TrackBID are always stored in canonical order (see
// CanonicalPair) so exactly one row exists per unordered pair.
type TrackAdjacency struct {
	BaseUUIDModel
	TrackAID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_adjacency_pair" json:"trackAId" validate:"required"`
	TrackBID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_adjacency_pair" json:"trackBId" validate:"required"`
	OccurrenceCount int       `gorm:"type:int;not null;default:1"                       json:"occurrenceCount"`
	AverageDistance float64   `gorm:"type:float8;not null"                              json:"averageDistance"`

	TrackA *Track `gorm:"foreignKey:TrackAID" json:"-"`
	TrackB *Track `gorm:"foreignKey:TrackBID" json:"-"`
}

// CanonicalPair returns (a, b) ordered so that a < b lexicographically by
// string form, giving a single canonical endpoint order for an unordered pair.
func CanonicalPair(x, y uuid.UUID) (uuid.UUID, uuid.UUID) {
	if x.String() <= y.String() {
		return x, y
	}
	return y, x
}

func (a *TrackAdjacency) BeforeCreate(tx *gorm.DB) error { return a.validate() }
func (a *TrackAdjacency) BeforeUpdate(tx *gorm.DB) error { return a.validate() }

func (a *TrackAdjacency) validate() error {
	if a.TrackAID == uuid.Nil || a.TrackBID == uuid.Nil {
		return gorm.ErrInvalidValue
	}
	if a.TrackAID == a.TrackBID {
		return gorm.ErrInvalidValue
	}
	if a.TrackAID.String() > a.TrackBID.String() {
		return gorm.ErrInvalidValue
	}
	if a.OccurrenceCount < 1 {
		return gorm.ErrInvalidValue
	}
	return nil
}

// MergeAdjacency aggregates a newly-observed occurrence into an existing
// edge: counts sum, and the average distance becomes the count-weighted mean
// of the two observations (§4.8.3, §8 scenario 5).
func MergeAdjacency(existingCount int, existingAvg float64, newCount int, newAvg float64) (int, float64) {
	totalCount := existingCount + newCount
	if totalCount == 0 {
		return 0, 0
	}
	weightedSum := existingAvg*float64(existingCount) + newAvg*float64(newCount)
	return totalCount, weightedSum / float64(totalCount)
}
