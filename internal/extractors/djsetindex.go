package extractors

import (
	"context"
	"time"

	"tracklift/internal/fetcher"
	"tracklift/internal/logger"
)

// DJSetIndexExtractor is a concrete per-source module for a tracklist-index
// style site: a paginated listing of set pages, each with a linear,
// static-HTML tracklist. It exercises the full layered strategy of §4.5:
// structured selectors first, the DOM-rendered fallback for entries the
// index serves behind client-side pagination widgets, and the LLM fallback
// as a last resort.
type DJSetIndexExtractor struct {
	fetcher      *fetcher.Fetcher
	llm          *LLMExtractor
	allowedHosts []string
	indexURL     string
	pages        int
	session      SessionConfig
	log          logger.Logger
}

func NewDJSetIndexExtractor(f *fetcher.Fetcher, llm *LLMExtractor, indexURL string, allowedHosts []string) *DJSetIndexExtractor {
	return &DJSetIndexExtractor{
		fetcher:      f,
		llm:          llm,
		allowedHosts: allowedHosts,
		indexURL:     indexURL,
		pages:        3,
		session: SessionConfig{
			DownloadDelay:  2 * time.Second,
			ConcurrencyCap: 2,
			DailyQuota:     500,
		},
		log: logger.New("extractors.dj_set_index"),
	}
}

func (e *DJSetIndexExtractor) Source() string         { return "dj_set_index" }
func (e *DJSetIndexExtractor) AllowedHosts() []string  { return e.allowedHosts }
func (e *DJSetIndexExtractor) Session() SessionConfig  { return e.session }

var djSetIndexSelectors = SelectorSet{
	Title:          FieldSelectors{"h1.set-title", "h1", ".title"},
	EventDate:      FieldSelectors{"time.event-date", ".event-date", ".date"},
	Venue:          FieldSelectors{".venue-name", ".venue"},
	TrackRows:      FieldSelectors{"ol.tracklist > li", ".tracklist-entry", ".track-row"},
	TrackCitation:  FieldSelectors{".track-citation", ".citation", "span.name"},
	TrackTimestamp: FieldSelectors{".cue-time", ".timestamp"},
}

var djSetIndexRenderWait = RenderOptions{
	WaitSelectors: []string{"ol.tracklist", ".tracklist-entry"},
	Timeout:       DefaultRenderTimeout,
}

// Discover walks the index's first e.pages listing pages for set-detail
// links.
func (e *DJSetIndexExtractor) Discover(ctx context.Context) ([]string, error) {
	log := e.log.Function("Discover")

	var all []string
	for page := 1; page <= e.pages; page++ {
		links, err := DiscoverLinks(normalizeIndexURL(e.indexURL, page), "a.set-link[href]", e.allowedHosts)
		if err != nil {
			log.Warn("index page discovery failed", "page", page, "error", err)
			continue
		}
		all = append(all, links...)
	}
	return all, nil
}

// Extract runs the three-tier layered strategy against one set-detail URL.
func (e *DJSetIndexExtractor) Extract(ctx context.Context, targetURL string) (ExtractedSetlist, error) {
	log := e.log.Function("Extract")

	body, err := fetchBytes(ctx, e.fetcher, targetURL, false)
	if err != nil {
		return ExtractedSetlist{}, &ErrExtractionFailed{Stage: "fetch", Err: err}
	}

	if result, ok := ExtractStructured(body, djSetIndexSelectors); ok {
		return result, nil
	}
	log.Info("structured selectors produced no usable rows, trying render fallback", "url", targetURL)

	if result, ok, err := RenderFallback(ctx, e.fetcher, targetURL, djSetIndexSelectors, djSetIndexRenderWait); err == nil && ok {
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

var errNoLLMConfigured = llmNotConfiguredError("no anthropic api key configured, llm fallback unavailable")

type llmNotConfiguredError string

func (e llmNotConfiguredError) Error() string { return string(e) }
