package extractors

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"tracklift/internal/fetcher"
	"tracklift/internal/logger"
)

// FestivalArchiveExtractor targets radio/podcast archive sites that embed
// their episode's tracklist as a JSON blob inside a <script> tag rather
// than as plain markup — a distinct enough shape from DJSetIndexExtractor's
// linear HTML rows to need its own tier-1 strategy, while still falling
// through to the same render and LLM tiers when the embed is missing.
type FestivalArchiveExtractor struct {
	fetcher      *fetcher.Fetcher
	llm          *LLMExtractor
	allowedHosts []string
	indexURL     string
	session      SessionConfig
	log          logger.Logger
}

func NewFestivalArchiveExtractor(f *fetcher.Fetcher, llm *LLMExtractor, indexURL string, allowedHosts []string) *FestivalArchiveExtractor {
	return &FestivalArchiveExtractor{
		fetcher:      f,
		llm:          llm,
		allowedHosts: allowedHosts,
		indexURL:     indexURL,
		session: SessionConfig{
			DownloadDelay:  3 * time.Second,
			ConcurrencyCap: 1,
			DailyQuota:     200,
		},
		log: logger.New("extractors.festival_archive"),
	}
}

func (e *FestivalArchiveExtractor) Source() string        { return "festival_archive" }
func (e *FestivalArchiveExtractor) AllowedHosts() []string { return e.allowedHosts }
func (e *FestivalArchiveExtractor) Session() SessionConfig { return e.session }

var festivalArchiveSelectors = SelectorSet{
	Title:          FieldSelectors{"h1.episode-title", "h1"},
	EventDate:      FieldSelectors{"time.aired", ".aired-date"},
	Venue:          FieldSelectors{".festival-stage", ".stage"},
	TrackRows:      FieldSelectors{".tracklist-row"},
	TrackCitation:  FieldSelectors{".tracklist-row .entry"},
	TrackTimestamp: FieldSelectors{".tracklist-row .time"},
}

var festivalArchiveRenderWait = RenderOptions{
	WaitSelectors: []string{".tracklist-row", "#embedded-tracklist"},
	Timeout:       DefaultRenderTimeout,
}

func (e *FestivalArchiveExtractor) Discover(ctx context.Context) ([]string, error) {
	return DiscoverLinks(e.indexURL, "a.episode-link[href]", e.allowedHosts)
}

// embeddedTracklist is the shape this family of sites embeds inline, e.g.
// <script type="application/json" id="episode-data">{...}</script>.
type embeddedTracklist struct {
	Title   string `json:"title"`
	AiredAt string `json:"aired_at"`
	Stage   string `json:"stage"`
	Tracks  []struct {
		Citation  string `json:"citation"`
		CueMs     *int   `json:"cue_ms"`
	} `json:"tracks"`
}

func (e *FestivalArchiveExtractor) Extract(ctx context.Context, targetURL string) (ExtractedSetlist, error) {
	log := e.log.Function("Extract")

	body, err := fetchBytes(ctx, e.fetcher, targetURL, false)
	if err != nil {
		return ExtractedSetlist{}, &ErrExtractionFailed{Stage: "fetch", Err: err}
	}

	if result, ok := extractEmbeddedJSON(body); ok {
		return result, nil
	}
	log.Info("no embedded tracklist json found, trying structured selectors", "url", targetURL)

	if result, ok := ExtractStructured(body, festivalArchiveSelectors); ok {
		return result, nil
	}
	log.Info("structured selectors produced no usable rows, trying render fallback", "url", targetURL)

	if result, ok, err := RenderFallback(ctx, e.fetcher, targetURL, festivalArchiveSelectors, festivalArchiveRenderWait); err == nil && ok {
		return result, nil
	}
	log.Info("render fallback produced no usable rows, trying llm fallback", "url", targetURL)

	if e.llm == nil {
		return ExtractedSetlist{}, &ErrExtractionFailed{Stage: "llm", Err: errNoLLMConfigured}
	}
	result, err := e.llm.Extract(ctx, body)
	if err != nil {
		return ExtractedSetlist{}, &ErrExtractionFailed{Stage: "llm", Err: err}
	}
	return result, nil
}

// extractEmbeddedJSON scans the raw page for the first
// application/json script block and tries to parse it as embeddedTracklist.
// A hand-rolled scan rather than goquery here: the payload lives inside a
// <script> body, which goquery treats as opaque text anyway, so a direct
// substring search avoids building and discarding a DOM for it.
func extractEmbeddedJSON(raw []byte) (ExtractedSetlist, bool) {
	const marker = `id="episode-data"`
	page := string(raw)
	idx := strings.Index(page, marker)
	if idx < 0 {
		return ExtractedSetlist{}, false
	}

	start := strings.Index(page[idx:], ">")
	if start < 0 {
		return ExtractedSetlist{}, false
	}
	start += idx + 1
	end := strings.Index(page[start:], "</script>")
	if end < 0 {
		return ExtractedSetlist{}, false
	}
	raw2 := strings.TrimSpace(page[start : start+end])

	var parsed embeddedTracklist
	if err := json.Unmarshal([]byte(raw2), &parsed); err != nil {
		return ExtractedSetlist{}, false
	}
	if len(parsed.Tracks) == 0 {
		return ExtractedSetlist{}, false
	}

	entries := make([]RawEntry, 0, len(parsed.Tracks))
	for _, t := range parsed.Tracks {
		if t.Citation == "" {
			continue
		}
		entries = append(entries, RawEntry{Citation: t.Citation, TimestampMs: t.CueMs})
	}
	if len(entries) == 0 {
		return ExtractedSetlist{}, false
	}

	return ExtractedSetlist{
		DisplayName:  parsed.Title,
		EventDateRaw: parsed.AiredAt,
		Venue:        parsed.Stage,
		Entries:      entries,
	}, true
}
