package pipeline

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"tracklift/internal/logger"
	"tracklift/internal/metrics"
	"tracklift/internal/models"
	"tracklift/internal/utils"
)

// ValidationPriority fixes this stage ahead of enrichment (§4.8: 100 < 200 < 300).
const ValidationPriority = 100

var (
	isrcRe    = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}\d{2}\d{5}$`)
	countryRe = regexp.MustCompile(`^[A-Z]{2}$`)
)

// bpmMin and bpmMax mirror the Track BPM invariant of §3.
const (
	bpmMin = 60.0
	bpmMax = 200.0
)

// Validator is the stage-100 gate: every item is checked against its §3
// invariant before enrichment ever sees it.
type Validator struct {
	log             logger.Logger
	metrics         *metrics.Registry
	recognizedSources map[string]bool
	dates           *utils.DateValidator
}

func NewValidator(registry *metrics.Registry, recognizedSources []string) *Validator {
	set := make(map[string]bool, len(recognizedSources))
	for _, s := range recognizedSources {
		set[s] = true
	}
	return &Validator{
		log:               logger.New("pipeline.validate"),
		metrics:           registry,
		recognizedSources: set,
		dates:             utils.NewDateValidator(),
	}
}

// Validate returns a *StageError when item violates its invariant; the
// caller must drop the item and never pass it to enrichment.
func (v *Validator) Validate(ctx context.Context, item Item) *StageError {
	log := v.log.Function("Validate")

	var err *StageError
	switch item.Kind {
	case KindArtist:
		err = v.validateArtist(item.Artist)
	case KindTrack:
		err = v.validateTrack(item.Track)
	case KindTrackArtist:
		err = v.validateTrackArtist(item.TrackArtist)
	case KindSetlist:
		err = v.validateSetlist(item.Setlist)
	case KindSetlistTrack:
		err = v.validateSetlistTrack(item.SetlistTrack)
	case KindAdjacency:
		err = v.validateAdjacency(item.Adjacency)
	default:
		err = newValidationError("validate", item.Kind, "", errors.New("unknown item kind"))
	}

	if err != nil {
		v.metrics.Inc(metrics.ItemsDroppedTotal, 1)
		log.Warn("dropping invalid item", "kind", item.Kind, "ref", err.ItemRef, "error", err.Err)
		if err.Kind == ErrKindValidation && strings.Contains(err.ItemRef, "silent-extraction") {
			v.metrics.Inc(metrics.SilentScrapingFailures, 1)
		}
		return err
	}
	v.metrics.Inc(metrics.ItemsProcessedTotal, 1)
	return nil
}

func (v *Validator) validateArtist(a *ArtistItem) *StageError {
	if a.DisplayName == "" {
		return newValidationError("validate", KindArtist, a.DisplayName, errors.New("display name empty"))
	}
	if models.IsReservedPlaceholder(a.DisplayName) {
		return newValidationError("validate", KindArtist, a.DisplayName, errors.New("reserved placeholder name"))
	}
	if a.CountryCode != nil && *a.CountryCode != "" && !countryRe.MatchString(*a.CountryCode) {
		return newValidationError("validate", KindArtist, a.DisplayName, errors.New("malformed ISO-3166 country code"))
	}
	return nil
}

func (v *Validator) validateTrack(t *TrackItem) *StageError {
	ref := t.Title
	if t.Title == "" {
		return newValidationError("validate", KindTrack, ref, errors.New("title empty"))
	}
	if models.IsReservedPlaceholder(t.Title) {
		return newValidationError("validate", KindTrack, ref, errors.New("reserved placeholder title"))
	}
	if t.BPM != nil {
		bpm, _ := t.BPM.Float64()
		if bpm < bpmMin || bpm > bpmMax {
			return newValidationError("validate", KindTrack, ref, errors.New("bpm outside 60-200"))
		}
	}
	for _, f := range []*float64{t.Energy, t.Danceability, t.Valence, t.Acousticness, t.Instrumentalness, t.Liveness, t.Speechiness} {
		if f != nil && (*f < 0 || *f > 1) {
			return newValidationError("validate", KindTrack, ref, errors.New("audio feature outside [0,1]"))
		}
	}
	if t.ISRC != nil && *t.ISRC != "" && !isrcRe.MatchString(*t.ISRC) {
		return newValidationError("validate", KindTrack, ref, errors.New("malformed ISRC"))
	}
	return nil
}

func (v *Validator) validateTrackArtist(ta *TrackArtistItem) *StageError {
	ref := ta.ArtistName
	if !models.ArtistRole(ta.Role).Valid() {
		return newValidationError("validate", KindTrackArtist, ref, errors.New("role not in closed enum"))
	}
	if ta.Position < 0 {
		return newValidationError("validate", KindTrackArtist, ref, errors.New("position negative"))
	}
	return nil
}

func (v *Validator) validateSetlist(s *SetlistItem) *StageError {
	ref := s.DisplayName
	if s.DisplayName == "" || models.IsReservedPlaceholder(s.DisplayName) {
		return newValidationError("validate", KindSetlist, ref, errors.New("display name empty or placeholder"))
	}
	if len(v.recognizedSources) > 0 && !v.recognizedSources[s.Source] {
		return newValidationError("validate", KindSetlist, ref, errors.New("source not a recognized extractor"))
	}
	if s.EventDateRaw != "" && s.EventDate == nil {
		result := v.dates.ValidateAndConvert(s.EventDateRaw)
		if !result.IsValid {
			return newValidationError("validate", KindSetlist, ref, errors.New("event date does not parse"))
		}
	}
	// §3/§8 silent-failure guard: tracklist_count=0 requires scrape_error.
	if s.TracklistCount != nil && *s.TracklistCount == 0 && (s.ScrapeError == nil || *s.ScrapeError == "") {
		return newValidationError("validate", KindSetlist, ref+" silent-extraction", errors.New("zero tracks with no scrape_error"))
	}
	return nil
}

func (v *Validator) validateSetlistTrack(st *SetlistTrackItem) *StageError {
	ref := st.SetlistName
	if st.Position < 0 {
		return newValidationError("validate", KindSetlistTrack, ref, errors.New("position negative"))
	}
	return nil
}

func (v *Validator) validateAdjacency(adj *AdjacencyItem) *StageError {
	ref := adj.TrackATitle + "/" + adj.TrackBTitle
	if adj.TrackATitle == "" || adj.TrackBTitle == "" || adj.TrackAArtistName == "" || adj.TrackBArtistName == "" {
		return newValidationError("validate", KindAdjacency, ref, errors.New("endpoint empty"))
	}
	if adj.TrackATitle == adj.TrackBTitle && adj.TrackAArtistName == adj.TrackBArtistName {
		return newValidationError("validate", KindAdjacency, ref, errors.New("self-loop rejected"))
	}
	if adj.OccurrenceCount < 1 {
		return newValidationError("validate", KindAdjacency, ref, errors.New("occurrence count must be positive"))
	}
	return nil
}
