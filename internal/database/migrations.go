package database

import (
	"tracklift/internal/logger"
	"tracklift/internal/models"
)

// MigrateModels runs GORM AutoMigrate for every persisted model.
func (db *DB) MigrateModels() error {
	log := logger.New("database").Function("MigrateModels")
	log.Info("Starting database migration")

	modelsToMigrate := []interface{}{
		&models.Genre{},
		&models.Artist{},
		&models.Track{},
		&models.TrackArtist{},
		&models.Setlist{},
		&models.SetlistTrack{},
		&models.TrackAdjacency{},
		&models.EnrichmentStatus{},
	}

	for _, model := range modelsToMigrate {
		if err := db.SQL.AutoMigrate(model); err != nil {
			log.Error("Failed to migrate model", "model", model, "error", err)
			return err
		}
	}

	log.Info("Database migration completed successfully")
	return nil
}

// CreateIndexes creates indexes and constraints GORM's struct tags can't
// express, including the reserved-placeholder guard (§9) as a belt-and-braces
// DB-level check alongside the Go-side validation in models.IsReservedPlaceholder.
func (db *DB) CreateIndexes() error {
	log := logger.New("database").Function("CreateIndexes")
	log.Info("Creating additional database indexes")

	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_tracks_genre ON tracks(genre)",
		"CREATE INDEX IF NOT EXISTS idx_setlists_event_date ON setlists(event_date)",
		"CREATE INDEX IF NOT EXISTS idx_enrichment_status_retry ON enrichment_statuses(status, retry_after)",
		`DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_artists_not_placeholder') THEN
				ALTER TABLE artists ADD CONSTRAINT chk_artists_not_placeholder
					CHECK (normalized_name NOT IN ('unknown artist', 'various artists', 'various', 'id', 'n/a', 'unknown'));
			END IF;
		END $$`,
	}

	for _, stmt := range statements {
		if err := db.SQL.Exec(stmt).Error; err != nil {
			log.Warn("Failed to execute migration statement", "sql", stmt, "error", err)
		}
	}

	log.Info("Additional database indexes created")
	return nil
}
