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

type GenreRepository interface {
	GetAll(ctx context.Context) ([]*Genre, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Genre, error)
	GetByName(ctx context.Context, name string) (*Genre, error)
	FindOrCreate(ctx context.Context, name string) (*Genre, error)
	GetBatchByNames(ctx context.Context, names []string) (map[string]*Genre, error)
}

type genreRepository struct {
	db  database.DB
	log logger.Logger
}

func NewGenreRepository(db database.DB) GenreRepository {
	return &genreRepository{db: db, log: logger.New("genreRepository")}
}

func (r *genreRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextutil.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

// GetAll returns the full controlled vocabulary, the candidate set the
// enrichment stage scores free-text genre strings against (§4.8.2).
func (r *genreRepository) GetAll(ctx context.Context) ([]*Genre, error) {
	log := r.log.Function("GetAll")

	var genres []*Genre
	if err := r.getDB(ctx).Find(&genres).Error; err != nil {
		return nil, log.Err("failed to get all genres", err)
	}
	return genres, nil
}

func (r *genreRepository) GetByID(ctx context.Context, id uuid.UUID) (*Genre, error) {
	log := r.log.Function("GetByID")

	var genre Genre
	if err := r.getDB(ctx).First(&genre, "id = ?", id).Error; err != nil {
		return nil, log.Err("failed to get genre by ID", err, "id", id)
	}
	return &genre, nil
}

func (r *genreRepository) GetByName(ctx context.Context, name string) (*Genre, error) {
	log := r.log.Function("GetByName")

	var genre Genre
	err := r.getDB(ctx).Where("name = ?", name).First(&genre).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, log.Err("failed to get genre by name", err, "name", name)
	}
	return &genre, nil
}

// FindOrCreate is used when a normalized genre string has no close enough
// match in the controlled vocabulary: it becomes a new root-level genre
// rather than being dropped.
func (r *genreRepository) FindOrCreate(ctx context.Context, name string) (*Genre, error) {
	log := r.log.Function("FindOrCreate")

	if name == "" {
		return nil, log.Err("genre name cannot be empty", gorm.ErrInvalidValue)
	}

	genre := &Genre{Name: name}
	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(genre).Error
	if err != nil {
		return nil, log.Err("failed to find-or-create genre", err, "name", name)
	}
	if genre.ID == uuid.Nil {
		return r.GetByName(ctx, name)
	}
	return genre, nil
}

func (r *genreRepository) GetBatchByNames(ctx context.Context, names []string) (map[string]*Genre, error) {
	log := r.log.Function("GetBatchByNames")

	if len(names) == 0 {
		return make(map[string]*Genre), nil
	}

	var genres []*Genre
	if err := r.getDB(ctx).Where("name IN ?", names).Find(&genres).Error; err != nil {
		return nil, log.Err("failed to get genres by names", err, "count", len(names))
	}

	result := make(map[string]*Genre, len(genres))
	for _, genre := range genres {
		result[genre.Name] = genre
	}
	return result, nil
}
