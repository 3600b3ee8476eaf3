// Package fetcher implements the rate-limited HTTP fetcher described in
// §4.1: per-host token bucket, robots.txt crawl-delay discovery, retry with
// exponential backoff, and proxy/header/challenge-detector coordination.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
	"tracklift/internal/challenge"
	"tracklift/internal/headers"
	"tracklift/internal/logger"
	"tracklift/internal/proxypool"
	"tracklift/internal/ratelimit"

	"github.com/temoto/robotstxt"
)

const (
	maxBackoff  = 300 * time.Second
	maxAttempts = 5
)

// ErrorKind is the closed set of fetch failure kinds (§7). Fetch retries
// network, rate_limit and challenge outcomes of an attempt; no_egress and
// fatal are returned without retry.
type ErrorKind string

const (
	ErrKindNetwork   ErrorKind = "network"
	ErrKindRateLimit ErrorKind = "rate_limit"
	ErrKindChallenge ErrorKind = "challenge"
	ErrKindNoEgress  ErrorKind = "no_egress"
	ErrKindFatal     ErrorKind = "fatal"
)

// FetchError carries the kind alongside the underlying error so callers can
// branch without string-matching error text.
type FetchError struct {
	Kind ErrorKind
	Err  error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetcher[%s]: %v", e.Kind, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// FetchHint carries per-request options. ExcludeEgress names an egress
// point to avoid on every attempt but the last; it does not pin an
// identity or a specific egress point. RenderMode is accepted, but attempt
// sends the same plain GET either way.
type FetchHint struct {
	ExcludeEgress string
	RenderMode    bool
}

// FetchResult is the byte payload and response metadata handed to extractors.
type FetchResult struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Egress     string
}

// Fetcher is the single request operation exposed to orchestrator and extractors.
type Fetcher struct {
	client    *http.Client
	limiter   *ratelimit.Limiter
	pool      *proxypool.Pool
	headerGen *headers.Generator
	detector  *challenge.Detector
	log       logger.Logger

	robotsMutex sync.Mutex
	robotsSeen  map[string]bool
}

func New(limiter *ratelimit.Limiter, pool *proxypool.Pool, headerGen *headers.Generator, detector *challenge.Detector) *Fetcher {
	return &Fetcher{
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		pool:       pool,
		headerGen:  headerGen,
		detector:   detector,
		log:        logger.New("fetcher"),
		robotsSeen: make(map[string]bool),
	}
}

// Fetch retrieves url, retrying on the closed set of transient outcomes.
// The egress point selected from the pool on each attempt drives health
// bookkeeping, exclusion on retry, and challenge reporting; the request
// itself is sent through the fetcher's own http.Client, which has no proxy
// configured, so it does not travel through that egress point.
func (f *Fetcher) Fetch(ctx context.Context, url string, hint FetchHint) (*FetchResult, error) {
	log := f.log.Function("Fetch")

	host, err := hostOf(url)
	if err != nil {
		return nil, &FetchError{Kind: ErrKindFatal, Err: err}
	}

	f.discoverRobots(ctx, host)

	var lastErr error
	excluded := hint.ExcludeEgress
	backoff := 1 * time.Second

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := f.limiter.Wait(ctx, host); err != nil {
			return nil, &FetchError{Kind: ErrKindRateLimit, Err: err}
		}

		egress, err := f.pool.Select()
		if err != nil {
			return nil, &FetchError{Kind: ErrKindNoEgress, Err: err}
		}
		if egress.Address == excluded {
			// only one healthy point and it's excluded; proceed anyway on
			// the final attempt rather than fail fast forever.
			if attempt < maxAttempts-1 {
				time.Sleep(backoff)
				continue
			}
		}

		result, retryAfter, err := f.attempt(ctx, url, host, egress.Address, hint)
		if err == nil {
			f.pool.RecordSuccess(egress.Address)
			return result, nil
		}

		lastErr = err
		var fe *FetchError
		if errors.As(err, &fe) {
			switch fe.Kind {
			case ErrKindNetwork:
				f.pool.RecordFailure(egress.Address, "network_error")
				excluded = egress.Address
			case ErrKindChallenge:
				excluded = egress.Address
			case ErrKindFatal:
				return nil, err
			}
		}

		switch {
		case retryAfter > 0:
			// Retry-After hints dominate over any computed backoff.
			backoff = retryAfter
		case errors.As(err, &fe) && fe.Kind == ErrKindRateLimit:
			backoff *= 2
		default:
			backoff = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
		if backoff > maxBackoff {
			backoff = maxBackoff
		}

		log.Warn("fetch attempt failed, retrying", "url", url, "attempt", attempt, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return nil, &FetchError{Kind: ErrKindFatal, Err: ctx.Err()}
		case <-time.After(backoff):
		}
	}

	return nil, lastErr
}

func (f *Fetcher) attempt(ctx context.Context, url, host, egressAddress string, hint FetchHint) (*FetchResult, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, &FetchError{Kind: ErrKindFatal, Err: err}
	}

	req.Header = f.headerGen.Build(host)

	resp, err := f.client.Do(req)
	if err != nil {
		if isNetworkError(err) {
			return nil, 0, &FetchError{Kind: ErrKindNetwork, Err: err}
		}
		return nil, 0, &FetchError{Kind: ErrKindFatal, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &FetchError{Kind: ErrKindNetwork, Err: err}
	}

	if isRateLimited(resp.StatusCode) {
		retryAfter := parseRetryAfter(resp.Header)
		return nil, retryAfter, &FetchError{Kind: ErrKindRateLimit, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	if resp.StatusCode == http.StatusForbidden {
		f.pool.MarkDirty(egressAddress, "forbidden")
		return nil, 0, &FetchError{Kind: ErrKindNetwork, Err: fmt.Errorf("forbidden")}
	}

	challengeResult, err := f.detector.Inspect(ctx, egressAddress, body)
	if err != nil {
		return nil, 0, &FetchError{Kind: ErrKindChallenge, Err: err}
	}
	if challengeResult.Detected && challengeResult.Token == "" {
		return nil, 0, &FetchError{Kind: ErrKindChallenge, Err: errors.New("unsolved challenge")}
	}

	return &FetchResult{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Egress:     egressAddress,
	}, 0, nil
}

func (f *Fetcher) discoverRobots(ctx context.Context, host string) {
	f.robotsMutex.Lock()
	seen := f.robotsSeen[host]
	f.robotsMutex.Unlock()
	if seen {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+host+"/robots.txt", nil)
	if err == nil {
		if resp, err := f.client.Do(req); err == nil {
			defer resp.Body.Close()
			if robots, err := robotstxt.FromResponse(resp); err == nil {
				group := robots.FindGroup("*")
				if group != nil && group.CrawlDelay > 0 {
					f.limiter.SetCrawlDelay(host, group.CrawlDelay)
				}
			}
		}
	}

	f.robotsMutex.Lock()
	f.robotsSeen[host] = true
	f.robotsMutex.Unlock()
}

func hostOf(rawURL string) (string, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return "", err
	}
	return u, nil
}

func parseURL(rawURL string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	return req.URL.Host, nil
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isRateLimited(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable || status == http.StatusRequestTimeout
}

func parseRetryAfter(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
