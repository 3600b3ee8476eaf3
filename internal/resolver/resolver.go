package resolver

import (
	"context"
	"strings"
	"time"

	"tracklift/config"
	"tracklift/internal/database"
	"tracklift/internal/events"
	"tracklift/internal/logger"
	"tracklift/internal/metrics"
	"tracklift/internal/models"
	"tracklift/internal/pipeline"
	"tracklift/internal/repositories"

	"github.com/google/uuid"
)

// Resolver runs the three-tier (plus co-occurrence) enrichment strategy of
// §4.9 against one track at a time: a label hunter, an internal lookup
// against this installation's own data, an external API waterfall, and a
// probabilistic co-occurrence matcher for tracks a scrape could attribute
// only partially. Every external client is optional — a deployment missing
// credentials for one simply skips that rung, it never blocks the others.
type Resolver struct {
	repo repositories.Repository

	spotify         *SpotifyClient
	musicBrainz     *MusicBrainzClient
	catalog         *CatalogClient
	tagging         *TaggingClient
	setlistProvider *SetlistProviderClient
	cache           *ResponseCache
	breakers        *breakerManager
	genres          *pipeline.GenreNormalizer

	events  *events.EventBus
	metrics *metrics.Registry
	log     logger.Logger

	highThreshold   float64
	mediumThreshold float64
	cooldownStrategy models.CooldownStrategy
	cooldownBaseDays int
	maxRetryAttempts int
}

// New wires every external client named in config, leaving any whose
// credentials are blank as nil so the tiers that depend on them degrade
// gracefully rather than panic.
func New(cfg config.Config, repo repositories.Repository, cacheClient database.CacheClient, bus *events.EventBus, registry *metrics.Registry, genres *pipeline.GenreNormalizer) *Resolver {
	breakers := newBreakerManager(bus, registry)

	r := &Resolver{
		repo:     repo,
		breakers: breakers,
		genres:   genres,
		events:   bus,
		metrics:  registry,
		log:      logger.New("resolver"),

		highThreshold:    cfg.ResolverHighConfidenceThreshold,
		mediumThreshold:  cfg.ResolverMediumConfidenceThreshold,
		cooldownStrategy: models.CooldownStrategy(cfg.ResolverCooldownStrategy),
		cooldownBaseDays: cfg.ResolverCooldownBaseDays,
		maxRetryAttempts: cfg.ResolverMaxRetryAttempts,
	}

	if cacheClient != nil {
		r.cache = NewResponseCache(cacheClient)
	}
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		r.spotify = NewSpotifyClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret, breakers)
	}
	if cfg.MusicBrainzUserAgent != "" {
		r.musicBrainz = NewMusicBrainzClient(cfg.MusicBrainzUserAgent, breakers)
	}
	if cfg.CatalogServiceURL != "" {
		r.catalog = NewCatalogClient(cfg.CatalogServiceURL, cfg.CatalogServiceToken, breakers)
	}
	if cfg.TaggingServiceURL != "" {
		r.tagging = NewTaggingClient(cfg.TaggingServiceURL, cfg.TaggingServiceAPIKey, breakers)
	}
	if cfg.SetlistProviderURL != "" {
		r.setlistProvider = NewSetlistProviderClient(cfg.SetlistProviderURL, cfg.SetlistProviderAPIKey, breakers)
	}

	return r
}

// Resolve runs every applicable tier against one track, persisting
// whatever it learns and recording an enrichment_status row reflecting the
// outcome. A track that still isn't fully resolved after every tier is
// handed to the cool-down queue rather than treated as an error.
func (r *Resolver) Resolve(ctx context.Context, trackID uuid.UUID) error {
	log := r.log.Function("Resolve")

	track, err := r.repo.Track.GetByID(ctx, trackID)
	if err != nil {
		return log.Err("failed to load track for resolution", err, "trackID", trackID)
	}

	primaryArtist, err := r.repo.Artist.GetByID(ctx, track.PrimaryArtistID)
	if err != nil {
		return log.Err("failed to load primary artist for resolution", err, "trackID", trackID)
	}

	status, err := r.repo.Enrichment.GetByTrackID(ctx, trackID)
	if err != nil {
		return log.Err("failed to load enrichment status", err, "trackID", trackID)
	}
	if status == nil {
		status = &models.EnrichmentStatus{TrackID: trackID, Status: models.EnrichmentPending, CooldownStrategy: r.cooldownStrategy}
	}

	var sourcesUsed []string
	artistName := primaryArtist.DisplayName
	title := track.Title

	if track.Label == nil || *track.Label == "" {
		hint := r.resolveLabelHunter(ctx, artistName, title, track.ParentheticalNotes)
		if hint.Found {
			r.applyLabel(track, hint.Label, hint.Source, hint.Confidence)
			sourcesUsed = append(sourcesUsed, "tier0:"+hint.Source)
		}
	}

	unresolvedComponent := ""
	if !track.IsIdentified {
		unresolvedComponent = extractUnresolvedComponent(track.ParentheticalNotes)
	}

	labelCandidate := ""
	if track.Label != nil {
		labelCandidate = *track.Label
	}
	tier1, err := r.resolveInternalLookup(ctx, track, labelCandidate, unresolvedComponent)
	if err != nil {
		log.Warn("tier 1 internal lookup failed", "trackID", trackID, "error", err)
	} else {
		if tier1.Label != "" && (track.Label == nil || *track.Label == "") {
			r.applyLabel(track, tier1.Label, tier1.LabelSource, tier1.LabelConfidence)
			sourcesUsed = append(sourcesUsed, "tier1:"+tier1.LabelSource)
		}
		if tier1.ResolvedArtist {
			if err := r.attachRemixer(ctx, track, tier1.ResolvedArtistID); err != nil {
				log.Warn("failed to attach tier 1 resolved artist", "trackID", trackID, "error", err)
			} else {
				sourcesUsed = append(sourcesUsed, "tier1:internal_artist_match")
			}
		}
	}

	match, err := r.resolveWaterfall(ctx, track, artistName, title, r.mediumThreshold)
	if err != nil {
		log.Warn("tier 2 waterfall failed", "trackID", trackID, "error", err)
	} else if match.Found {
		r.applyMatch(track, match)
		sourcesUsed = append(sourcesUsed, "tier2:"+match.Source)
	}

	if !track.IsIdentified {
		results, err := r.resolveCoOccurrence(ctx, track, artistName, title, r.highThreshold, r.mediumThreshold)
		if err != nil {
			log.Warn("tier 2+ co-occurrence matcher failed", "trackID", trackID, "error", err)
		} else if len(results) > 0 && results[0].Confidence == "high" {
			candidateID, err := uuid.Parse(results[0].CandidateArtistID)
			if err == nil {
				if err := r.attachRemixer(ctx, track, candidateID); err != nil {
					log.Warn("failed to attach tier 2+ resolved artist", "trackID", trackID, "error", err)
				} else {
					sourcesUsed = append(sourcesUsed, "tier2plus:cooccurrence")
				}
			}
		}
	}

	if err := r.repo.Track.Update(ctx, track); err != nil {
		return log.Err("failed to persist resolver updates", err, "trackID", trackID)
	}

	succeeded := track.Label != nil && *track.Label != "" && track.IsIdentified
	status.SourcesUsed = append(status.SourcesUsed, sourcesUsed...)

	if succeeded {
		status.Status = models.EnrichmentCompleted
		status.RetryAfter = nil
		if r.metrics != nil {
			r.metrics.Inc(metrics.EnrichmentSuccessByTier, 1)
		}
	} else {
		status.RetryAttempts++
		maxAttempts := r.maxRetryAttempts
		if maxAttempts <= 0 {
			maxAttempts = models.MaxRetryAttempts
		}
		if status.RetryAttempts >= maxAttempts {
			status.Status = models.EnrichmentFailed
			status.RetryAfter = nil
		} else {
			status.Status = models.EnrichmentPendingReEnrichment
			retryAfter := time.Now().Add(cooldownDuration(cooldownParams{
				strategy:  status.CooldownStrategy,
				attempts:  status.RetryAttempts,
				baseDays:  r.cooldownBaseDays,
				labelHint: track.Label != nil && *track.Label != "",
				trackAge:  time.Since(track.CreatedAt),
			}))
			status.RetryAfter = &retryAfter
		}
	}

	if err := r.repo.Enrichment.Upsert(ctx, status); err != nil {
		return log.Err("failed to persist enrichment status", err, "trackID", trackID)
	}

	log.Info("resolver pass complete", "trackID", trackID, "succeeded", succeeded, "sources", sourcesUsed)
	return nil
}

func (r *Resolver) applyLabel(track *models.Track, label, source string, confidence float64) {
	track.Label = &label
	track.LabelSource = &source
	track.LabelConfidence = &confidence
}

// applyMatch merges a waterfall Match onto the track, never overwriting a
// field the track already carries from a higher-priority tier.
func (r *Resolver) applyMatch(track *models.Track, m Match) {
	if m.ISRC != "" && (track.ISRC == nil || *track.ISRC == "") {
		track.ISRC = &m.ISRC
	}
	if m.MusicBrainzID != "" && (track.MusicBrainzID == nil || *track.MusicBrainzID == "") {
		track.MusicBrainzID = &m.MusicBrainzID
	}
	if m.PlatformID != "" {
		if track.PlatformIDs == nil {
			track.PlatformIDs = make(map[string]interface{})
		}
		track.PlatformIDs[m.Source] = m.PlatformID
	}
	if m.Label != "" && (track.Label == nil || *track.Label == "") {
		r.applyLabel(track, m.Label, m.Source, m.Confidence)
	}
	if m.Popularity != nil && track.Popularity == nil {
		track.Popularity = m.Popularity
	}
	if len(m.Tags) > 0 {
		track.Tags = mergeTags(track.Tags, m.Tags)
		if track.Genre == nil && r.genres != nil {
			if normalized, changed := r.genres.Normalize(m.Tags[0]); changed {
				track.Genre = &normalized
			}
		}
	}

	assignIfUnset(&track.Energy, m.Energy)
	assignIfUnset(&track.Danceability, m.Danceability)
	assignIfUnset(&track.Valence, m.Valence)
	assignIfUnset(&track.Acousticness, m.Acousticness)
	assignIfUnset(&track.Instrumentalness, m.Instrumentalness)
	assignIfUnset(&track.Liveness, m.Liveness)
	assignIfUnset(&track.Speechiness, m.Speechiness)
	assignIfUnset(&track.Loudness, m.Loudness)
}

func assignIfUnset(dst **float64, value *float64) {
	if value != nil && *dst == nil {
		*dst = value
	}
}

func mergeTags(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t] = true
	}
	merged := append([]string{}, existing...)
	for _, t := range incoming {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	return merged
}

// attachRemixer records a resolved mashup-component artist as a remixer
// credit and marks the track fully identified.
func (r *Resolver) attachRemixer(ctx context.Context, track *models.Track, artistID uuid.UUID) error {
	err := r.repo.TrackArtist.UpsertBatch(ctx, []*models.TrackArtist{{
		TrackID:  track.ID,
		ArtistID: artistID,
		Role:     models.RoleRemixer,
	}})
	if err != nil {
		return err
	}
	track.IsIdentified = true
	return nil
}

// remixLikeStopWords names the citation-type suffixes that mark a
// parenthetical as an attribution for an unidentified component, rather
// than a label or a remix-type descriptor on its own.
var remixLikeStopWords = []string{"remix", "mashup", "edit", "flip", "rework", "bootleg"}

// extractUnresolvedComponent re-derives the attribution name the parser
// couldn't match to a known artist from the persisted parenthetical notes,
// e.g. "Some Producer Remix" -> "Some Producer", the candidate Tier 1
// tries to resolve against the artist table.
func extractUnresolvedComponent(notes []string) string {
	for _, note := range notes {
		lower := strings.ToLower(note)
		for _, stop := range remixLikeStopWords {
			suffix := " " + stop
			if strings.HasSuffix(lower, suffix) {
				return strings.TrimSpace(note[:len(note)-len(suffix)])
			}
		}
	}
	return ""
}
