package repositories

import (
	"context"
	"time"

	contextutil "tracklift/internal/context"
	"tracklift/internal/database"
	"tracklift/internal/logger"
	. "tracklift/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrichmentRepository interface {
	GetByTrackID(ctx context.Context, trackID uuid.UUID) (*EnrichmentStatus, error)
	Upsert(ctx context.Context, status *EnrichmentStatus) error
	GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]*EnrichmentStatus, error)
}

type enrichmentRepository struct {
	db  database.DB
	log logger.Logger
}

func NewEnrichmentRepository(db database.DB) EnrichmentRepository {
	return &enrichmentRepository{db: db, log: logger.New("enrichmentRepository")}
}

func (r *enrichmentRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextutil.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func (r *enrichmentRepository) GetByTrackID(ctx context.Context, trackID uuid.UUID) (*EnrichmentStatus, error) {
	log := r.log.Function("GetByTrackID")

	var status EnrichmentStatus
	err := r.getDB(ctx).Where("track_id = ?", trackID).First(&status).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, log.Err("failed to get enrichment status", err, "trackID", trackID)
	}
	return &status, nil
}

func (r *enrichmentRepository) Upsert(ctx context.Context, status *EnrichmentStatus) error {
	log := r.log.Function("Upsert")

	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "track_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "retry_after", "retry_attempts", "cooldown_strategy", "sources_used", "updated_at",
		}),
	}).Create(status).Error
	if err != nil {
		return log.Err("failed to upsert enrichment status", err, "trackID", status.TrackID)
	}
	return nil
}

// GetDueForRetry selects rows eligible for the cool-down worker (§4.9).
func (r *enrichmentRepository) GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]*EnrichmentStatus, error) {
	log := r.log.Function("GetDueForRetry")

	var rows []*EnrichmentStatus
	err := r.getDB(ctx).
		Where("status = ? AND retry_after <= ?", EnrichmentPendingReEnrichment, now).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, log.Err("failed to query cool-down candidates", err)
	}
	return rows, nil
}
