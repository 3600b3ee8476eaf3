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

type SetlistRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Setlist, error)
	GetByNormalizedNameSource(ctx context.Context, normalizedName, source string) (*Setlist, error)
	UpsertBatch(ctx context.Context, setlists []*Setlist) error
}

type setlistRepository struct {
	db  database.DB
	log logger.Logger
}

func NewSetlistRepository(db database.DB) SetlistRepository {
	return &setlistRepository{db: db, log: logger.New("setlistRepository")}
}

func (r *setlistRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextutil.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func (r *setlistRepository) GetByID(ctx context.Context, id uuid.UUID) (*Setlist, error) {
	log := r.log.Function("GetByID")

	var setlist Setlist
	if err := r.getDB(ctx).First(&setlist, "id = ?", id).Error; err != nil {
		return nil, log.Err("failed to get setlist by ID", err, "id", id)
	}
	return &setlist, nil
}

func (r *setlistRepository) GetByNormalizedNameSource(ctx context.Context, normalizedName, source string) (*Setlist, error) {
	log := r.log.Function("GetByNormalizedNameSource")

	var setlist Setlist
	err := r.getDB(ctx).Where("normalized_name = ? AND source = ?", normalizedName, source).First(&setlist).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, log.Err("failed to get setlist", err, "normalizedName", normalizedName, "source", source)
	}
	return &setlist, nil
}

// UpsertBatch conflicts on (normalized_name, source) per §3.
func (r *setlistRepository) UpsertBatch(ctx context.Context, setlists []*Setlist) error {
	log := r.log.Function("UpsertBatch")

	if len(setlists) == 0 {
		return nil
	}

	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "normalized_name"}, {Name: "source"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"display_name":         gorm.Expr("COALESCE(EXCLUDED.display_name, setlists.display_name)"),
			"event_date":           gorm.Expr("COALESCE(EXCLUDED.event_date, setlists.event_date)"),
			"venue":                gorm.Expr("COALESCE(EXCLUDED.venue, setlists.venue)"),
			"event_type":           gorm.Expr("COALESCE(EXCLUDED.event_type, setlists.event_type)"),
			"parsing_version":      gorm.Expr("EXCLUDED.parsing_version"),
			"tracklist_count":      gorm.Expr("EXCLUDED.tracklist_count"),
			"scrape_error":         gorm.Expr("EXCLUDED.scrape_error"),
			"last_scrape_attempt":  gorm.Expr("EXCLUDED.last_scrape_attempt"),
			"updated_at":           gorm.Expr("now()"),
		}),
	}).Create(&setlists).Error
	if err != nil {
		return log.Err("failed to upsert setlist batch", err, "count", len(setlists))
	}

	log.Info("upserted setlists", "count", len(setlists))
	return nil
}
