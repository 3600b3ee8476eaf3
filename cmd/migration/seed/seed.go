package seed

import (
	"tracklift/config"
	"tracklift/internal/logger"
	. "tracklift/internal/models"

	"gorm.io/gorm"
)

// Seed populates the controlled genre vocabulary the enrichment stage's
// GenreNormalizer snaps free-text genre strings onto (§4.8.2). Development
// and test environments need this table non-empty before any set-list can
// be enriched meaningfully.
func Seed(db *gorm.DB, cfg config.Config, log logger.Logger) error {
	log = log.Function("seed")
	log.Info("Seeding development data")

	if err := seedGenres(db, log); err != nil {
		return log.Err("failed to seed genres", err)
	}

	return nil
}

func seedGenres(db *gorm.DB, log logger.Logger) error {
	log.Info("Seeding genre vocabulary")

	for _, name := range rootGenreVocabulary() {
		var existing Genre
		if err := db.Where("name = ?", name).First(&existing).Error; err == nil {
			continue
		}
		genre := &Genre{Name: name}
		if err := db.Create(genre).Error; err != nil {
			return log.Err("failed to create genre", err, "name", name)
		}
	}

	log.Info("Genre vocabulary seeded successfully", "count", len(rootGenreVocabulary()))
	return nil
}

// rootGenreVocabulary is a representative, non-exhaustive set of DJ-set
// genre labels; operators are expected to extend the table directly as
// scraped set-lists surface new genres the normalizer can't snap to.
func rootGenreVocabulary() []string {
	return []string{
		"house", "tech house", "deep house", "progressive house", "electro house",
		"techno", "melodic techno", "minimal techno", "hard techno",
		"trance", "progressive trance", "psytrance",
		"drum and bass", "jungle", "dubstep", "bass music",
		"disco", "nu disco", "funk",
		"ambient", "downtempo", "breakbeat", "hardstyle", "garage", "uk garage",
	}
}
