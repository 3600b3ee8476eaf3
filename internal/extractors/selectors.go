package extractors

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FieldSelectors is the ordered list of CSS candidates for one field; the
// first candidate producing a non-empty result wins (§4.5, tier 1:
// "structured selectors").
type FieldSelectors []string

// FirstText walks candidates in order against doc and returns the first
// non-empty trimmed text match.
func (f FieldSelectors) FirstText(doc *goquery.Selection) (string, bool) {
	for _, candidate := range f {
		text := strings.TrimSpace(doc.Find(candidate).First().Text())
		if text != "" {
			return text, true
		}
	}
	return "", false
}

// FirstAttr is FirstText's analogue for an element attribute (e.g. a
// data-* timestamp or an href).
func (f FieldSelectors) FirstAttr(doc *goquery.Selection, attr string) (string, bool) {
	for _, candidate := range f {
		if val, ok := doc.Find(candidate).First().Attr(attr); ok && strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val), true
		}
	}
	return "", false
}

// SelectorSet names every structured-selector candidate list one extractor
// needs to pull a set-list off a rendered (or static) page. TrackRows
// selects the repeating node per citation; TrackCitation is evaluated
// relative to each matched row.
type SelectorSet struct {
	Title          FieldSelectors
	EventDate      FieldSelectors
	Venue          FieldSelectors
	TrackRows      FieldSelectors
	TrackCitation  FieldSelectors
	TrackTimestamp FieldSelectors
}

// ExtractStructured runs the tier-1 structured-selector strategy over raw
// HTML and returns the set-list it finds, or ok=false when the page
// produced zero usable rows or no set-list display name (the caller then
// falls through to the DOM-rendered and LLM tiers).
func ExtractStructured(raw []byte, selectors SelectorSet) (ExtractedSetlist, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return ExtractedSetlist{}, false
	}

	result := ExtractedSetlist{}
	result.DisplayName, _ = selectors.Title.FirstText(doc.Selection)
	result.EventDateRaw, _ = selectors.EventDate.FirstText(doc.Selection)
	result.Venue, _ = selectors.Venue.FirstText(doc.Selection)

	var rows *goquery.Selection
	for _, candidate := range selectors.TrackRows {
		sel := doc.Find(candidate)
		if sel.Length() > 0 {
			rows = sel
			break
		}
	}
	if rows == nil {
		return result, false
	}

	entries := make([]RawEntry, 0, rows.Length())
	rows.Each(func(_ int, row *goquery.Selection) {
		citation, ok := selectors.TrackCitation.FirstText(row)
		if !ok {
			citation = strings.TrimSpace(row.Text())
		}
		if citation == "" {
			return
		}
		entry := RawEntry{Citation: citation}
		if ts, ok := selectors.TrackTimestamp.FirstText(row); ok {
			if ms, ok := parseTimestampMs(ts); ok {
				entry.TimestampMs = &ms
			}
		}
		entries = append(entries, entry)
	})

	if len(entries) == 0 {
		return result, false
	}
	result.Entries = entries
	return result, result.DisplayName != ""
}

// parseTimestampMs parses an "MM:SS" or "HH:MM:SS" cue-time string into
// milliseconds. Returns ok=false for anything else rather than guessing.
func parseTimestampMs(raw string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	var h, m, s int
	var err error
	if len(parts) == 3 {
		h, err = atoiStrict(parts[0])
		if err != nil {
			return 0, false
		}
		m, err = atoiStrict(parts[1])
		if err != nil {
			return 0, false
		}
		s, err = atoiStrict(parts[2])
		if err != nil {
			return 0, false
		}
	} else {
		m, err = atoiStrict(parts[0])
		if err != nil {
			return 0, false
		}
		s, err = atoiStrict(parts[1])
		if err != nil {
			return 0, false
		}
	}
	total := ((h*60 + m) * 60 + s) * 1000
	return total, true
}

func atoiStrict(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errNotDigit
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

var errNotDigit = strErr("not a digit string")

type strErr string

func (e strErr) Error() string { return string(e) }
