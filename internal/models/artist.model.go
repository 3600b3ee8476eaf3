package models

import (
	"regexp"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// reservedPlaceholders mirrors the generic-artist rows the source system used
// to paper over missing data. Rejected at validation, both here and via a
// database CHECK constraint (see internal/database/migrations.go).
var reservedPlaceholders = map[string]bool{
	"unknown artist":  true,
	"various artists": true,
	"various":         true,
	"id":              true,
	"n/a":             true,
	"unknown":         true,
}

var whitespaceCollapse = regexp.MustCompile(`\s+`)
var punctuationStrip = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// NormalizeArtistName lowercases, strips punctuation and collapses whitespace,
// the identity comparison form used across the schema.
func NormalizeArtistName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = punctuationStrip.ReplaceAllString(n, "")
	n = whitespaceCollapse.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// IsReservedPlaceholder reports whether a display name is one of the
// generic-artist placeholders the source system polluted its data with.
func IsReservedPlaceholder(name string) bool {
	return reservedPlaceholders[strings.ToLower(strings.TrimSpace(name))]
}

type Artist struct {
	BaseUUIDModel
	DisplayName        string                      `gorm:"type:text;not null"                                         json:"displayName"        validate:"required"`
	NormalizedName     string                      `gorm:"type:text;not null;uniqueIndex:idx_artists_normalized_name" json:"normalizedName"`
	Genres             datatypes.JSONSlice[string] `gorm:"type:jsonb"                                                  json:"genres,omitempty"`
	CountryCode        *string                     `gorm:"type:varchar(2)"                                            json:"countryCode,omitempty"`
	PlatformIDs        datatypes.JSONMap           `gorm:"type:jsonb"                                                  json:"platformIds,omitempty"`
	AlternateSpellings datatypes.JSONSlice[string] `gorm:"type:jsonb"                                                  json:"alternateSpellings,omitempty"`

	Tracks []Track `gorm:"foreignKey:PrimaryArtistID" json:"-"`
}

func (a *Artist) BeforeCreate(tx *gorm.DB) error {
	return a.validate()
}

func (a *Artist) BeforeUpdate(tx *gorm.DB) error {
	return a.validate()
}

func (a *Artist) validate() error {
	if a.DisplayName == "" {
		return gorm.ErrInvalidValue
	}
	if IsReservedPlaceholder(a.DisplayName) {
		return gorm.ErrInvalidValue
	}
	if a.NormalizedName == "" {
		a.NormalizedName = NormalizeArtistName(a.DisplayName)
	}
	if a.NormalizedName == "" {
		return gorm.ErrInvalidValue
	}
	return nil
}
