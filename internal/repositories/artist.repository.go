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

type ArtistRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Artist, error)
	GetByNormalizedName(ctx context.Context, normalizedName string) (*Artist, error)
	UpsertBatch(ctx context.Context, artists []*Artist) error
	GetBatchByNormalizedNames(ctx context.Context, names []string) (map[string]*Artist, error)
}

type artistRepository struct {
	db  database.DB
	log logger.Logger
}

func NewArtistRepository(db database.DB) ArtistRepository {
	return &artistRepository{db: db, log: logger.New("artistRepository")}
}

func (r *artistRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextutil.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func (r *artistRepository) GetByID(ctx context.Context, id uuid.UUID) (*Artist, error) {
	log := r.log.Function("GetByID")

	var artist Artist
	if err := r.getDB(ctx).First(&artist, "id = ?", id).Error; err != nil {
		return nil, log.Err("failed to get artist by ID", err, "id", id)
	}
	return &artist, nil
}

func (r *artistRepository) GetByNormalizedName(ctx context.Context, normalizedName string) (*Artist, error) {
	log := r.log.Function("GetByNormalizedName")

	var artist Artist
	err := r.getDB(ctx).Where("normalized_name = ?", normalizedName).First(&artist).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, log.Err("failed to get artist by normalized name", err, "normalizedName", normalizedName)
	}
	return &artist, nil
}

// UpsertBatch conflicts on normalized_name (§3, §4.8.3 "Artists conflict on
// normalized name") and merges with COALESCE(new, existing) per field.
func (r *artistRepository) UpsertBatch(ctx context.Context, artists []*Artist) error {
	log := r.log.Function("UpsertBatch")

	if len(artists) == 0 {
		return nil
	}

	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "normalized_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"display_name":        gorm.Expr("COALESCE(EXCLUDED.display_name, artists.display_name)"),
			"genres":              gorm.Expr("COALESCE(EXCLUDED.genres, artists.genres)"),
			"country_code":        gorm.Expr("COALESCE(EXCLUDED.country_code, artists.country_code)"),
			"platform_ids":        gorm.Expr("COALESCE(EXCLUDED.platform_ids, artists.platform_ids)"),
			"alternate_spellings": gorm.Expr("COALESCE(EXCLUDED.alternate_spellings, artists.alternate_spellings)"),
			"updated_at":          gorm.Expr("now()"),
		}),
	}).Create(&artists).Error
	if err != nil {
		return log.Err("failed to upsert artist batch", err, "count", len(artists))
	}

	log.Info("upserted artists", "count", len(artists))
	return nil
}

func (r *artistRepository) GetBatchByNormalizedNames(ctx context.Context, names []string) (map[string]*Artist, error) {
	log := r.log.Function("GetBatchByNormalizedNames")

	if len(names) == 0 {
		return map[string]*Artist{}, nil
	}

	var artists []*Artist
	if err := r.getDB(ctx).Where("normalized_name IN ?", names).Find(&artists).Error; err != nil {
		return nil, log.Err("failed to get artists by normalized names", err, "count", len(names))
	}

	result := make(map[string]*Artist, len(artists))
	for _, a := range artists {
		result[a.NormalizedName] = a
	}
	return result, nil
}
