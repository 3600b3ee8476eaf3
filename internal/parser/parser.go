// Package parser turns the free-text track citations extractors scrape off
// set-list pages into a structured record (§4.6). Parse is a pure function:
// the same input string always yields the same output, so it carries no
// logger and no side effects — callers log drops and parse failures.
package parser

import (
	"regexp"
	"strings"
)

// Citation is the structured form of one raw set-list entry.
type Citation struct {
	PrimaryArtists     []string
	FeaturedArtists    []string
	RemixerArtists     []string
	ProducerArtists    []string
	TrackName          string
	ParentheticalNotes []string
	IsRemix            bool
	IsMashup           bool
	IsIdentified       bool
	MashupComponents   []string
}

var (
	parentheticalRe = regexp.MustCompile(`[(\[]([^)\]]+)[)\]]`)
	vsSeparatorRe   = regexp.MustCompile(`(?i)\s+vs\.\s+`)
	featuredRe      = regexp.MustCompile(`(?i)^(.+?)\s+(?:ft\.?|feat\.?|featuring)\s+(.+?)\s*-\s*(.+)$`)
	artistSplitRe   = regexp.MustCompile(`\s*[&,]\s*`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// Parse applies the §4.6 algorithm to a raw set-list entry. The second
// return value is false for the drop sentinel: the caller must not create
// any record for a genuinely unidentified "ID - ID" style entry.
func Parse(raw string) (Citation, bool) {
	s := trimCollapse(raw)
	if s == "" {
		return Citation{}, false
	}

	notes, stripped := extractParentheticals(s)

	citation := Citation{
		ParentheticalNotes: notes,
	}

	for _, note := range notes {
		if remainder, ok := trimSuffixFold(note, "remix"); ok {
			citation.RemixerArtists = appendNonEmpty(citation.RemixerArtists, remainder)
			citation.IsRemix = true
		} else if remainder, ok := trimSuffixFold(note, "mashup"); ok {
			// §4.6 states the Mashup-suffix parenthetical is handled
			// symmetrically to the Remix one, including setting is_remix;
			// the is_mashup flag is reserved for the " vs. " split below.
			citation.RemixerArtists = appendNonEmpty(citation.RemixerArtists, remainder)
			citation.IsRemix = true
		}
	}

	if vsSeparatorRe.MatchString(stripped) {
		parts := vsSeparatorRe.Split(stripped, 2)
		citation.MashupComponents = []string{trimCollapse(parts[0]), trimCollapse(parts[1])}
		citation.TrackName = trimCollapse(stripped)
		citation.IsMashup = true
	} else if m := featuredRe.FindStringSubmatch(stripped); m != nil {
		citation.PrimaryArtists = splitArtists(m[1])
		citation.FeaturedArtists = splitArtists(m[2])
		citation.TrackName = trimCollapse(m[3])
	} else if artist, track, ok := splitArtistTrack(stripped); ok {
		citation.PrimaryArtists = splitArtists(artist)
		citation.TrackName = trimCollapse(track)
	} else {
		citation.TrackName = trimCollapse(stripped)
	}

	return finalize(citation)
}

// finalize applies the unidentified-entry rules: a bare "ID - ID" citation
// is dropped outright; an "ID Remix" citation with no remixer extracted is
// kept but flagged not-identified.
func finalize(c Citation) (Citation, bool) {
	trackFold := strings.ToLower(c.TrackName)

	if trackFold == "id" && !hasRealArtist(c.PrimaryArtists) {
		return Citation{}, false
	}

	c.IsIdentified = true
	if trackFold == "id remix" && len(c.RemixerArtists) == 0 {
		c.IsIdentified = false
	}

	return c, true
}

// hasRealArtist reports whether artists contains anything other than the
// "ID" unidentified-artist placeholder.
func hasRealArtist(artists []string) bool {
	for _, a := range artists {
		if strings.ToLower(a) != "id" {
			return true
		}
	}
	return false
}

// extractParentheticals pulls every (...) / [...] group's inner contents
// out of s, in left-to-right order, and returns s with those groups removed.
func extractParentheticals(s string) ([]string, string) {
	matches := parentheticalRe.FindAllStringSubmatch(s, -1)
	notes := make([]string, 0, len(matches))
	for _, m := range matches {
		note := trimCollapse(m[1])
		if note != "" {
			notes = append(notes, note)
		}
	}
	stripped := trimCollapse(parentheticalRe.ReplaceAllString(s, " "))
	return notes, stripped
}

// splitArtistTrack splits on the first " - " separator, the ARTISTS - TRACK
// form (§4.6). A bare hyphen without surrounding spaces is not treated as
// the separator, to avoid splitting hyphenated artist or track names.
func splitArtistTrack(s string) (artist, track string, ok bool) {
	idx := strings.Index(s, " - ")
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+len(" - "):], true
}

// splitArtists splits a raw artist group on "&" or "," and normalizes and
// drops any empty entries.
func splitArtists(s string) []string {
	parts := artistSplitRe.Split(s, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = trimCollapse(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// trimSuffixFold reports whether s ends with suffix case-insensitively and,
// if so, returns s with the suffix removed and whitespace trimmed.
func trimSuffixFold(s, suffix string) (string, bool) {
	if len(s) < len(suffix) {
		return "", false
	}
	tail := s[len(s)-len(suffix):]
	if !strings.EqualFold(tail, suffix) {
		return "", false
	}
	return trimCollapse(s[:len(s)-len(suffix)]), true
}

func appendNonEmpty(list []string, value string) []string {
	if value == "" {
		return list
	}
	return append(list, value)
}

// trimCollapse strips leading/trailing whitespace and collapses internal
// runs of whitespace to a single space, the §4.6 normalization step.
func trimCollapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
