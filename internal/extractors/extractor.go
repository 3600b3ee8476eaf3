// Package extractors implements the per-source extraction contract of §4.5:
// structured-selector candidates first, a DOM-rendered fallback for
// JS-heavy pages second, and a language-model fallback last. Every
// extractor turns fetched bytes into raw set-list citations, routes those
// citations through the parser (§4.6 — the only place string heuristics
// about track format live), and hands the orchestrator typed pipeline
// items ready for Submit.
package extractors

import (
	"context"
	"fmt"
	"time"

	"tracklift/internal/fetcher"
	"tracklift/internal/logger"
	"tracklift/internal/parser"
	"tracklift/internal/pipeline"
)

// RawEntry is one unparsed set-list line as lifted off the page, in the
// order the source presents it, together with an optional timestamp the
// source attaches to the entry (e.g. a tracklist with mix-cue times).
type RawEntry struct {
	Citation    string
	TimestampMs *int
}

// ExtractedSetlist is the layered-strategy's common output shape,
// regardless of which tier produced it: a name, optional event metadata,
// and the raw per-entry citations the caller still has to run through
// parser.Parse. ScrapeError is carried onto the set-list item by
// ToPipelineItems; per §4.5, a zero-track result with a nil ScrapeError is
// a silent failure the validation stage must reject. No strategy in this
// package sets ScrapeError: when every strategy fails, Extract returns the
// error and no ExtractedSetlist is produced.
type ExtractedSetlist struct {
	DisplayName  string
	EventDateRaw string
	Venue        string
	EventType    string
	Entries      []RawEntry
	ScrapeError  error
}

// SessionConfig is the per-extractor knob set §4.5 requires: download
// delay, concurrency cap, and retry-policy overrides layered on top of the
// fetcher's own defaults.
type SessionConfig struct {
	DownloadDelay  time.Duration
	ConcurrencyCap int
	RetryOverride  int
	DailyQuota     int
}

// Extractor is the common contract every per-source module implements.
type Extractor interface {
	// Source is the identifier persisted on every Setlist row this
	// extractor produces (§3, Setlist.Source).
	Source() string

	// AllowedHosts bounds which hosts this extractor is permitted to fetch.
	AllowedHosts() []string

	// Session returns this extractor's concurrency/delay/quota overrides.
	Session() SessionConfig

	// Discover enumerates candidate set-list target URLs, typically from
	// one or more index/listing pages.
	Discover(ctx context.Context) ([]string, error)

	// Extract runs the layered strategy against one target URL and
	// returns its raw, not-yet-parsed tracklist.
	Extract(ctx context.Context, targetURL string) (ExtractedSetlist, error)
}

// ParsingVersion is stamped on every Setlist row; bump it whenever an
// extractor's selector set or the parser's algorithm changes meaning, so a
// re-scrape can be distinguished from a first scrape in analytics.
const ParsingVersion = "v1"

// ToPipelineItems converts one extractor result plus its target URL into
// the ordered pipeline items §4.8 expects: a Setlist item, one SetlistTrack
// per identified entry, a TrackArtist per credited role, and the Artist
// items those credits reference. Unidentified entries ("ID - ID") are
// silently skipped per §4.6 — the parser already applied the drop rule.
func ToPipelineItems(source, targetURL string, result ExtractedSetlist, now time.Time) []pipeline.Item {
	log := logger.New("extractors").Function("ToPipelineItems")

	count := 0
	items := make([]pipeline.Item, 0, len(result.Entries)*4+1)

	seenArtists := make(map[string]bool)
	emitArtist := func(name string) {
		if name == "" || seenArtists[name] {
			return
		}
		seenArtists[name] = true
		items = append(items, pipeline.Item{
			Kind: pipeline.KindArtist,
			Artist: &pipeline.ArtistItem{
				DisplayName: name,
			},
		})
	}

	position := 0
	for _, raw := range result.Entries {
		citation, ok := parser.Parse(raw.Citation)
		if !ok {
			log.Debug("dropped unidentified citation", "source", source, "raw", raw.Citation)
			continue
		}

		primaryName := "Unknown"
		if len(citation.PrimaryArtists) > 0 {
			primaryName = citation.PrimaryArtists[0]
		}
		emitArtist(primaryName)

		trackItem := &pipeline.TrackItem{
			Title:              citation.TrackName,
			PrimaryArtistName:  primaryName,
			IsRemix:            citation.IsRemix,
			IsMashup:           citation.IsMashup,
			IsIdentified:       citation.IsIdentified,
			SourceURL:          &targetURL,
			ParentheticalNotes: citation.ParentheticalNotes,
		}
		items = append(items, pipeline.Item{Kind: pipeline.KindTrack, Track: trackItem})

		pos := 0
		items = append(items, pipeline.Item{
			Kind: pipeline.KindTrackArtist,
			TrackArtist: &pipeline.TrackArtistItem{
				TrackTitle:             citation.TrackName,
				TrackPrimaryArtistName: primaryName,
				ArtistName:             primaryName,
				Role:                   "primary",
				Position:               pos,
			},
		})
		pos++

		for _, featured := range citation.FeaturedArtists {
			emitArtist(featured)
			items = append(items, pipeline.Item{
				Kind: pipeline.KindTrackArtist,
				TrackArtist: &pipeline.TrackArtistItem{
					TrackTitle:             citation.TrackName,
					TrackPrimaryArtistName: primaryName,
					ArtistName:             featured,
					Role:                   "featured",
					Position:               pos,
				},
			})
			pos++
		}
		for _, remixer := range citation.RemixerArtists {
			emitArtist(remixer)
			items = append(items, pipeline.Item{
				Kind: pipeline.KindTrackArtist,
				TrackArtist: &pipeline.TrackArtistItem{
					TrackTitle:             citation.TrackName,
					TrackPrimaryArtistName: primaryName,
					ArtistName:             remixer,
					Role:                   "remixer",
					Position:               pos,
				},
			})
			pos++
		}

		items = append(items, pipeline.Item{
			Kind: pipeline.KindSetlistTrack,
			SetlistTrack: &pipeline.SetlistTrackItem{
				SetlistName:            result.DisplayName,
				SetlistSource:          source,
				Position:               position,
				TrackTitle:             citation.TrackName,
				TrackPrimaryArtistName: primaryName,
				TimestampMs:            raw.TimestampMs,
			},
		})

		position++
		count++
	}

	var scrapeErr *string
	if result.ScrapeError != nil {
		msg := result.ScrapeError.Error()
		scrapeErr = &msg
	} else if count == 0 {
		msg := "extractor produced zero identifiable tracks"
		scrapeErr = &msg
	}

	tracklistCount := count
	setlistItem := pipeline.Item{
		Kind: pipeline.KindSetlist,
		Setlist: &pipeline.SetlistItem{
			DisplayName:       result.DisplayName,
			Source:            source,
			EventDateRaw:      result.EventDateRaw,
			ParsingVersion:    ParsingVersion,
			TracklistCount:    &tracklistCount,
			ScrapeError:       scrapeErr,
			LastScrapeAttempt: now,
		},
	}
	if result.Venue != "" {
		venue := result.Venue
		setlistItem.Setlist.Venue = &venue
	}
	if result.EventType != "" {
		eventType := result.EventType
		setlistItem.Setlist.EventType = &eventType
	}

	// Ordering here is cosmetic: the Persister buffers each Kind in its own
	// slice and flushes them in the fixed dependency order regardless of
	// the order Submit saw them in. Putting the Setlist item first just
	// keeps this slice readable for callers inspecting it directly.
	out := make([]pipeline.Item, 0, len(items)+1)
	out = append(out, setlistItem)
	out = append(out, items...)
	return out
}

// ErrExtractionFailed is the taxonomy-tagged error every strategy in the
// layered chain returns when it found nothing usable (§7,
// ExtractionFailure). Extract returns it as an error rather than placing it
// in ExtractedSetlist.ScrapeError, so ExtractorJob.Run reports it to the
// orchestrator as a RetriableError and no set-list row records it.
type ErrExtractionFailed struct {
	Stage string
	Err   error
}

func (e *ErrExtractionFailed) Error() string {
	return fmt.Sprintf("extraction failed at %s: %v", e.Stage, e.Err)
}
func (e *ErrExtractionFailed) Unwrap() error { return e.Err }

// fetchBytes is the shared per-target fetch used by every concrete
// extractor, routed through the rate-limited fetcher (§4.1) rather than a
// direct HTTP client so rate limiting, header generation, egress
// bookkeeping and challenge detection always apply.
func fetchBytes(ctx context.Context, f *fetcher.Fetcher, url string, render bool) ([]byte, error) {
	result, err := f.Fetch(ctx, url, fetcher.FetchHint{RenderMode: render})
	if err != nil {
		return nil, err
	}
	return result.Body, nil
}
