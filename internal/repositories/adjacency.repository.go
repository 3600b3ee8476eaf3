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

type AdjacencyRepository interface {
	UpsertBatch(ctx context.Context, edges []*TrackAdjacency) error
	// Neighbors returns every edge touching trackID, the DJ-set context the
	// Tier 2+ co-occurrence matcher gathers its feature vectors from.
	Neighbors(ctx context.Context, trackID uuid.UUID) ([]*TrackAdjacency, error)
}

type adjacencyRepository struct {
	db  database.DB
	log logger.Logger
}

func NewAdjacencyRepository(db database.DB) AdjacencyRepository {
	return &adjacencyRepository{db: db, log: logger.New("adjacencyRepository")}
}

func (r *adjacencyRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextutil.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

// UpsertBatch aggregates rather than replaces (§4.8.3, §8 scenario 5):
// occurrence_count sums, average_distance becomes the count-weighted mean of
// the existing row and the incoming observation. Callers must already have
// merged any same-pair edges within edges into one row each — a single
// `INSERT ... ON CONFLICT DO UPDATE` statement cannot satisfy its own
// conflict target twice, so two rows for the same (track_a_id, track_b_id)
// reaching this call would raise "ON CONFLICT DO UPDATE command cannot
// affect row a second time" (see pipeline.Persister.flushAdjacency).
func (r *adjacencyRepository) UpsertBatch(ctx context.Context, edges []*TrackAdjacency) error {
	log := r.log.Function("UpsertBatch")

	if len(edges) == 0 {
		return nil
	}

	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "track_a_id"}, {Name: "track_b_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"occurrence_count": gorm.Expr("track_adjacencies.occurrence_count + EXCLUDED.occurrence_count"),
			"average_distance": gorm.Expr(
				"(track_adjacencies.average_distance * track_adjacencies.occurrence_count + EXCLUDED.average_distance * EXCLUDED.occurrence_count) " +
					"/ (track_adjacencies.occurrence_count + EXCLUDED.occurrence_count)",
			),
			"updated_at": gorm.Expr("now()"),
		}),
	}).Create(&edges).Error
	if err != nil {
		return log.Err("failed to upsert adjacency batch", err, "count", len(edges))
	}

	log.Info("upserted adjacency edges", "count", len(edges))
	return nil
}

func (r *adjacencyRepository) Neighbors(ctx context.Context, trackID uuid.UUID) ([]*TrackAdjacency, error) {
	log := r.log.Function("Neighbors")

	var edges []*TrackAdjacency
	err := r.getDB(ctx).
		Where("track_a_id = ? OR track_b_id = ?", trackID, trackID).
		Find(&edges).Error
	if err != nil {
		return nil, log.Err("failed to find adjacency neighbors", err, "trackID", trackID)
	}
	return edges, nil
}
