package repositories

import (
	"context"

	contextutil "tracklift/internal/context"
	"tracklift/internal/database"
	"tracklift/internal/logger"
	. "tracklift/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TrackArtistRepository interface {
	UpsertBatch(ctx context.Context, items []*TrackArtist) error
}

type trackArtistRepository struct {
	db  database.DB
	log logger.Logger
}

func NewTrackArtistRepository(db database.DB) TrackArtistRepository {
	return &trackArtistRepository{db: db, log: logger.New("trackArtistRepository")}
}

func (r *trackArtistRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextutil.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func (r *trackArtistRepository) UpsertBatch(ctx context.Context, items []*TrackArtist) error {
	log := r.log.Function("UpsertBatch")

	if len(items) == 0 {
		return nil
	}

	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "track_id"}, {Name: "artist_id"}, {Name: "role"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"position":   gorm.Expr("COALESCE(EXCLUDED.position, track_artists.position)"),
			"updated_at": gorm.Expr("now()"),
		}),
	}).Create(&items).Error
	if err != nil {
		return log.Err("failed to upsert track-artist batch", err, "count", len(items))
	}

	log.Info("upserted track-artists", "count", len(items))
	return nil
}
