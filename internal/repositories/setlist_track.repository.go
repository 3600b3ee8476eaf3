package repositories

import (
	"context"

	contextutil "tracklift/internal/context"
	"tracklift/internal/database"
	"tracklift/internal/logger"
	. "tracklift/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SetlistTrackRepository interface {
	UpsertBatch(ctx context.Context, items []*SetlistTrack) error
	// FindOccurrences returns every placement of trackID across every
	// set-list, eager-loading the owning Setlist (for DJ attribution via
	// its DisplayName). The Tier 2+ co-occurrence matcher pairs each
	// occurrence with its immediate neighbors by position.
	FindOccurrences(ctx context.Context, trackID uuid.UUID) ([]*SetlistTrack, error)
	// FindBySetlistAndPosition fetches the single track at position within
	// setlistID, used to look up the track immediately before/after an
	// occurrence found by FindOccurrences.
	FindBySetlistAndPosition(ctx context.Context, setlistID uuid.UUID, position int) (*SetlistTrack, error)
}

type setlistTrackRepository struct {
	db  database.DB
	log logger.Logger
}

func NewSetlistTrackRepository(db database.DB) SetlistTrackRepository {
	return &setlistTrackRepository{db: db, log: logger.New("setlistTrackRepository")}
}

func (r *setlistTrackRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextutil.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func (r *setlistTrackRepository) UpsertBatch(ctx context.Context, items []*SetlistTrack) error {
	log := r.log.Function("UpsertBatch")

	if len(items) == 0 {
		return nil
	}

	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "setlist_id"}, {Name: "position"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"track_id":     gorm.Expr("EXCLUDED.track_id"),
			"timestamp_ms": gorm.Expr("COALESCE(EXCLUDED.timestamp_ms, setlist_tracks.timestamp_ms)"),
			"updated_at":   gorm.Expr("now()"),
		}),
	}).Create(&items).Error
	if err != nil {
		return log.Err("failed to upsert setlist-track batch", err, "count", len(items))
	}

	log.Info("upserted setlist-tracks", "count", len(items))
	return nil
}

func (r *setlistTrackRepository) FindOccurrences(ctx context.Context, trackID uuid.UUID) ([]*SetlistTrack, error) {
	log := r.log.Function("FindOccurrences")

	var rows []*SetlistTrack
	err := r.getDB(ctx).Preload("Setlist").Where("track_id = ?", trackID).Find(&rows).Error
	if err != nil {
		return nil, log.Err("failed to find track occurrences", err, "trackID", trackID)
	}
	return rows, nil
}

func (r *setlistTrackRepository) FindBySetlistAndPosition(ctx context.Context, setlistID uuid.UUID, position int) (*SetlistTrack, error) {
	log := r.log.Function("FindBySetlistAndPosition")

	var row SetlistTrack
	err := r.getDB(ctx).Preload("Track").
		Where("setlist_id = ? AND position = ?", setlistID, position).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, log.Err("failed to find setlist track by position", err, "setlistID", setlistID, "position", position)
	}
	return &row, nil
}
