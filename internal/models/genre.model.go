package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Genre is a node in the controlled genre vocabulary the enrichment stage
// snaps free-text genre strings onto (§4.8.2).
type Genre struct {
	BaseUUIDModel
	Name          string     `gorm:"type:text;not null;uniqueIndex:idx_genres_name" json:"name" validate:"required"`
	Description   *string    `gorm:"type:text"                                      json:"description,omitempty"`
	ParentGenreID *uuid.UUID `gorm:"type:uuid;index:idx_genres_parent"              json:"parentGenreId,omitempty"`

	ParentGenre *Genre  `gorm:"foreignKey:ParentGenreID" json:"-"`
	SubGenres   []Genre `gorm:"foreignKey:ParentGenreID" json:"-"`
}

func (g *Genre) BeforeCreate(tx *gorm.DB) error {
	if g.Name == "" {
		return gorm.ErrInvalidValue
	}
	return nil
}

func (g *Genre) BeforeUpdate(tx *gorm.DB) error {
	if g.Name == "" {
		return gorm.ErrInvalidValue
	}
	return nil
}
