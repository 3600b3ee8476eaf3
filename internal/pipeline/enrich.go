package pipeline

import (
	"context"
	"regexp"
	"strings"
	"time"
	"tracklift/internal/logger"
	"tracklift/internal/metrics"
	"tracklift/internal/models"
)

// EnrichmentPriority fixes this stage between validation and persistence
// (§4.8: 100 < 200 < 300).
const EnrichmentPriority = 200

// DefaultMinParsedTracks is the salvage threshold of §4.8.2: below this
// many parsed tracks, a set-list is re-routed through the language-model
// extractor once before persistence.
const DefaultMinParsedTracks = 3

var (
	remixTitleRe = regexp.MustCompile(`(?i)\bremix\b`)
	mashupTitleRe = regexp.MustCompile(`(?i)\bmashup\b`)
	liveTitleRe   = regexp.MustCompile(`(?i)\b(live|live set|live at)\b`)
)

// Salvager re-attempts low-yield extractions through the LLM fallback.
// Implemented by internal/extractors so this package never imports it
// directly and stays free of any HTTP/LLM dependency.
type Salvager interface {
	Salvage(ctx context.Context, rawPage string) (tracks []string, err error)
}

// Enricher is the stage-200 transform: normalization, genre snapping,
// timestamp augmentation, and flag derivation.
type Enricher struct {
	log      logger.Logger
	metrics  *metrics.Registry
	genres   *GenreNormalizer
	salvager Salvager
	minParsed int
	now      func() time.Time
}

func NewEnricher(registry *metrics.Registry, genres *GenreNormalizer, salvager Salvager) *Enricher {
	return &Enricher{
		log:       logger.New("pipeline.enrich"),
		metrics:   registry,
		genres:    genres,
		salvager:  salvager,
		minParsed: DefaultMinParsedTracks,
		now:       time.Now,
	}
}

// Enrich mutates item in place, applying every §4.8.2 transformation for
// its kind. Enrichment never drops an item; a transformation it cannot
// perform is simply skipped. Enrich writes no enrichment-status row; the
// resolver later picks up persisted tracks that have none.
func (e *Enricher) Enrich(ctx context.Context, item Item) *StageError {
	switch item.Kind {
	case KindArtist:
		e.enrichArtist(item.Artist)
	case KindTrack:
		e.enrichTrack(item.Track)
	case KindSetlist:
		if err := e.enrichSetlist(ctx, item.Setlist); err != nil {
			return err
		}
	case KindTrackArtist, KindSetlistTrack, KindAdjacency:
		// no enrichment transforms apply to link/aggregate records
	}
	return nil
}

func (e *Enricher) enrichArtist(a *ArtistItem) {
	a.NormalizedName = models.NormalizeArtistName(a.DisplayName)
	for i, genre := range a.Genres {
		normalized, changed := e.genres.Normalize(genre)
		if changed {
			a.Genres[i] = normalized
		}
	}
}

func (e *Enricher) enrichTrack(t *TrackItem) {
	t.NormalizedTitle = models.NormalizeTitle(t.Title)

	if t.Genre != nil {
		normalized, changed := e.genres.Normalize(*t.Genre)
		if changed {
			original := *t.Genre
			t.OriginalGenre = &original
			t.Genre = &normalized
		}
	}

	if !t.IsRemix && remixTitleRe.MatchString(t.Title) {
		t.IsRemix = true
	}
	if !t.IsMashup && mashupTitleRe.MatchString(t.Title) {
		t.IsMashup = true
	}
	if !t.IsLive && liveTitleRe.MatchString(t.Title) {
		t.IsLive = true
	}
}

func (e *Enricher) enrichSetlist(ctx context.Context, s *SetlistItem) *StageError {
	log := e.log.Function("enrichSetlist")

	s.NormalizedName = models.NormalizeTitle(s.DisplayName)
	if s.LastScrapeAttempt.IsZero() {
		s.LastScrapeAttempt = e.now()
	}

	if s.EventDate == nil && s.EventDateRaw != "" {
		if parsed, ok := tryParseEventDate(s.EventDateRaw); ok {
			s.EventDate = &parsed
		}
	}

	if s.TracklistCount != nil && *s.TracklistCount < e.minParsed && e.salvager != nil {
		log.Info("low-yield set-list, attempting salvage", "setlist", s.DisplayName, "count", *s.TracklistCount)
		tracks, err := e.salvager.Salvage(ctx, "")
		if err != nil {
			log.Warn("salvage attempt failed", "setlist", s.DisplayName, "error", err)
			return nil
		}
		if len(tracks) > *s.TracklistCount {
			count := len(tracks)
			s.TracklistCount = &count
		}
	}
	return nil
}

// tryParseEventDate is a narrow companion to the validation stage's
// broader utils.DateValidator: by the time enrichment runs, the item has
// already survived §4.8.1's "parses if present" check, so only the
// simplest, unambiguous layouts are attempted here.
func tryParseEventDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05Z07:00", "January 2, 2006", "Jan 2, 2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
