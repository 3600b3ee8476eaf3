package resolver

import (
	"context"
	"regexp"
	"strings"
	"tracklift/internal/logger"
)

// labelStopWords is the closed set §4.9 names: a parenthetical whose
// contents match one of these (case-insensitively, as a whole phrase or a
// trailing word) describes the remix/edit type, not a label, and is
// skipped as a label candidate.
var labelStopWords = []string{
	"remix", "mashup", "original mix", "vip", "edit", "extended",
	"extended mix", "radio edit", "club mix", "dub mix", "instrumental",
	"acapella", "bootleg", "rework", "flip",
}

var featStopWordRe = regexp.MustCompile(`(?i)^(feat\.?|ft\.?|featuring)\b`)

// parseLabelFromNotes implements Tier 0 step 1: any parenthetical/bracket
// group whose contents aren't a stop-word phrase is a label candidate, at
// confidence 0.60-0.70. The first surviving note wins; later ones are less
// likely to be label credits the deeper they sit in the title.
func parseLabelFromNotes(notes []string) LabelHint {
	for i, note := range notes {
		candidate := strings.TrimSpace(note)
		if candidate == "" || isStopWordNote(candidate) {
			continue
		}
		confidence := 0.70
		if i > 0 {
			confidence = 0.60
		}
		return LabelHint{Found: true, Label: candidate, Source: "title_parenthetical", Confidence: confidence}
	}
	return LabelHint{}
}

func isStopWordNote(note string) bool {
	lower := strings.ToLower(note)
	if featStopWordRe.MatchString(lower) {
		return true
	}
	for _, stop := range labelStopWords {
		if lower == stop {
			return true
		}
		if strings.HasSuffix(lower, " "+stop) {
			return true
		}
	}
	return false
}

// resolveLabelHunter runs Tier 0's three-step strategy in order, returning
// the first candidate found. Each step's own confidence is preserved on
// the result so the caller can decide whether to overwrite an existing,
// lower-confidence label.
func (r *Resolver) resolveLabelHunter(ctx context.Context, artist, title string, notes []string) LabelHint {
	log := r.log.Function("resolveLabelHunter")

	if hint := parseLabelFromNotes(notes); hint.Found {
		return hint
	}

	if r.musicBrainz != nil {
		hint, err := r.musicBrainz.LabelForRecording(ctx, artist, title)
		if err != nil {
			log.Warn("musicbrainz label lookup failed", "artist", artist, "title", title, "error", err)
		} else if hint.Found {
			return hint
		}
	}

	if r.catalog != nil {
		hint, err := r.catalog.LabelForRelease(ctx, artist, title)
		if err != nil {
			log.Warn("catalog label lookup failed", "artist", artist, "title", title, "error", err)
		} else if hint.Found {
			return hint
		}
	}

	return LabelHint{}
}
