package extractors

import (
	"context"
	"errors"
	"time"

	"tracklift/internal/fetcher"
	"tracklift/internal/logger"
)

// RenderOptions are the tier-2 DOM-rendered fallback's knobs (§4.5): the
// selectors the render backend must wait for before returning, and a
// timeout cap on the whole render.
type RenderOptions struct {
	WaitSelectors []string
	Timeout       time.Duration
}

// DefaultRenderTimeout caps the whole render-mode fetch when
// RenderOptions.Timeout is unset; the extractor never waits longer than
// this for a JS-heavy page to settle.
const DefaultRenderTimeout = 20 * time.Second

// RenderFallback invokes the fetcher in render mode and re-runs the same
// structured-selector set against the rendered DOM. A real deployment
// backs FetchHint.RenderMode with a headless-browser-capable fetch path;
// this package only owns the selector re-application, not the renderer
// itself, matching §4.4's challenge-solver split between detection (owned
// here) and solving (an external collaborator).
func RenderFallback(ctx context.Context, f *fetcher.Fetcher, targetURL string, selectors SelectorSet, opts RenderOptions) (ExtractedSetlist, bool, error) {
	log := logger.New("extractors.render").Function("RenderFallback")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	renderCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := fetchBytes(renderCtx, f, targetURL, true)
	if err != nil {
		if errors.Is(renderCtx.Err(), context.DeadlineExceeded) {
			log.Warn("render fallback timed out", "url", targetURL, "timeout", timeout)
		}
		return ExtractedSetlist{}, false, err
	}

	result, ok := ExtractStructured(body, selectors)
	return result, ok, nil
}
