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

type TrackRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Track, error)
	GetByISRC(ctx context.Context, isrc string) (*Track, error)
	GetByTitleArtist(ctx context.Context, normalizedTitle string, primaryArtistID uuid.UUID) (*Track, error)
	UpsertBatch(ctx context.Context, tracks []*Track) error
	// Update saves resolver-written fields back onto an already-persisted
	// track (§4.9: "It writes enrichment_status and updates the Track
	// record").
	Update(ctx context.Context, track *Track) error
	// FindByLabel backs Tier 1's artist-label association lookup: every
	// track already known to carry this label.
	FindByLabel(ctx context.Context, label string, limit int) ([]*Track, error)
	// FindUnresolved returns tracks with no enrichment_status row yet,
	// i.e. freshly persisted tracks the resolver has never attempted.
	FindUnresolved(ctx context.Context, limit int) ([]*Track, error)
}

type trackRepository struct {
	db  database.DB
	log logger.Logger
}

func NewTrackRepository(db database.DB) TrackRepository {
	return &trackRepository{db: db, log: logger.New("trackRepository")}
}

func (r *trackRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextutil.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func (r *trackRepository) GetByID(ctx context.Context, id uuid.UUID) (*Track, error) {
	log := r.log.Function("GetByID")

	var track Track
	if err := r.getDB(ctx).First(&track, "id = ?", id).Error; err != nil {
		return nil, log.Err("failed to get track by ID", err, "id", id)
	}
	return &track, nil
}

func (r *trackRepository) GetByISRC(ctx context.Context, isrc string) (*Track, error) {
	log := r.log.Function("GetByISRC")

	var track Track
	err := r.getDB(ctx).Where("isrc = ?", isrc).First(&track).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, log.Err("failed to get track by ISRC", err, "isrc", isrc)
	}
	return &track, nil
}

func (r *trackRepository) GetByTitleArtist(ctx context.Context, normalizedTitle string, primaryArtistID uuid.UUID) (*Track, error) {
	log := r.log.Function("GetByTitleArtist")

	var track Track
	err := r.getDB(ctx).
		Where("normalized_title = ? AND primary_artist_id = ?", normalizedTitle, primaryArtistID).
		First(&track).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, log.Err("failed to get track by title/artist", err, "normalizedTitle", normalizedTitle)
	}
	return &track, nil
}

func (r *trackRepository) Update(ctx context.Context, track *Track) error {
	log := r.log.Function("Update")

	if err := r.getDB(ctx).Save(track).Error; err != nil {
		return log.Err("failed to update track", err, "id", track.ID)
	}
	return nil
}

func (r *trackRepository) FindByLabel(ctx context.Context, label string, limit int) ([]*Track, error) {
	log := r.log.Function("FindByLabel")

	var tracks []*Track
	err := r.getDB(ctx).Where("label = ?", label).Limit(limit).Find(&tracks).Error
	if err != nil {
		return nil, log.Err("failed to find tracks by label", err, "label", label)
	}
	return tracks, nil
}

func (r *trackRepository) FindUnresolved(ctx context.Context, limit int) ([]*Track, error) {
	log := r.log.Function("FindUnresolved")

	var tracks []*Track
	err := r.getDB(ctx).
		Where("NOT EXISTS (SELECT 1 FROM enrichment_statuses es WHERE es.track_id = tracks.id)").
		Limit(limit).
		Find(&tracks).Error
	if err != nil {
		return nil, log.Err("failed to find unresolved tracks", err)
	}
	return tracks, nil
}

// UpsertBatch applies the conflict-key priority of §4.8.3: ISRC when present,
// otherwise (normalized_title, primary_artist_id). Tracks are grouped by
// which key they carry so each group can name its own conflict target.
func (r *trackRepository) UpsertBatch(ctx context.Context, tracks []*Track) error {
	log := r.log.Function("UpsertBatch")

	if len(tracks) == 0 {
		return nil
	}

	var withISRC, withoutISRC []*Track
	for _, t := range tracks {
		if t.ISRC != nil && *t.ISRC != "" {
			withISRC = append(withISRC, t)
		} else {
			withoutISRC = append(withoutISRC, t)
		}
	}

	mergeAssignments := clause.Assignments(map[string]interface{}{
		"title":             gorm.Expr("COALESCE(EXCLUDED.title, tracks.title)"),
		"bpm":               gorm.Expr("COALESCE(EXCLUDED.bpm, tracks.bpm)"),
		"key":               gorm.Expr("COALESCE(EXCLUDED.key, tracks.key)"),
		"duration_ms":       gorm.Expr("COALESCE(EXCLUDED.duration_ms, tracks.duration_ms)"),
		"release_date":      gorm.Expr("COALESCE(EXCLUDED.release_date, tracks.release_date)"),
		"genre":             gorm.Expr("COALESCE(EXCLUDED.genre, tracks.genre)"),
		"label":             gorm.Expr("COALESCE(EXCLUDED.label, tracks.label)"),
		"label_source":      gorm.Expr("COALESCE(EXCLUDED.label_source, tracks.label_source)"),
		"label_confidence":  gorm.Expr("COALESCE(EXCLUDED.label_confidence, tracks.label_confidence)"),
		"popularity":        gorm.Expr("COALESCE(EXCLUDED.popularity, tracks.popularity)"),
		"tags":              gorm.Expr("COALESCE(EXCLUDED.tags, tracks.tags)"),
		"energy":            gorm.Expr("COALESCE(EXCLUDED.energy, tracks.energy)"),
		"danceability":      gorm.Expr("COALESCE(EXCLUDED.danceability, tracks.danceability)"),
		"valence":           gorm.Expr("COALESCE(EXCLUDED.valence, tracks.valence)"),
		"acousticness":      gorm.Expr("COALESCE(EXCLUDED.acousticness, tracks.acousticness)"),
		"instrumentalness":  gorm.Expr("COALESCE(EXCLUDED.instrumentalness, tracks.instrumentalness)"),
		"liveness":          gorm.Expr("COALESCE(EXCLUDED.liveness, tracks.liveness)"),
		"speechiness":       gorm.Expr("COALESCE(EXCLUDED.speechiness, tracks.speechiness)"),
		"loudness":          gorm.Expr("COALESCE(EXCLUDED.loudness, tracks.loudness)"),
		"isrc":              gorm.Expr("COALESCE(EXCLUDED.isrc, tracks.isrc)"),
		"music_brainz_id":   gorm.Expr("COALESCE(EXCLUDED.music_brainz_id, tracks.music_brainz_id)"),
		"platform_ids":      gorm.Expr("COALESCE(EXCLUDED.platform_ids, tracks.platform_ids)"),
		"source_url":          gorm.Expr("COALESCE(EXCLUDED.source_url, tracks.source_url)"),
		"parenthetical_notes": gorm.Expr("COALESCE(EXCLUDED.parenthetical_notes, tracks.parenthetical_notes)"),
		// is_identified: once the resolver or a later scrape confirms a
		// track, a stale re-scrape must not flip it back to unidentified.
		"is_identified": gorm.Expr("EXCLUDED.is_identified OR tracks.is_identified"),
		"updated_at":    gorm.Expr("now()"),
	})

	if len(withISRC) > 0 {
		if err := r.getDB(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "isrc"}},
			DoUpdates: mergeAssignments,
		}).Create(&withISRC).Error; err != nil {
			return log.Err("failed to upsert ISRC-keyed track batch", err, "count", len(withISRC))
		}
	}

	if len(withoutISRC) > 0 {
		if err := r.getDB(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "normalized_title"}, {Name: "primary_artist_id"}},
			DoUpdates: mergeAssignments,
		}).Create(&withoutISRC).Error; err != nil {
			return log.Err("failed to upsert title/artist-keyed track batch", err, "count", len(withoutISRC))
		}
	}

	log.Info("upserted tracks", "count", len(tracks))
	return nil
}
