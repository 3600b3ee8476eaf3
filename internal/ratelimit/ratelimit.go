// Package ratelimit implements the per-host token bucket the fetcher waits
// on before issuing a request (§4.1).
package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
	"tracklift/internal/logger"

	"github.com/valkey-io/valkey-go"
)

const (
	hostRequestKey = "ratelimit:host:%s"

	// DefaultMinInterval and DefaultMaxInterval bound the per-host request
	// spacing before jitter; the limiter draws uniformly from this range
	// and then applies ±80% jitter on top.
	DefaultMinInterval = 1500 * time.Millisecond
	DefaultMaxInterval = 2000 * time.Millisecond
	jitterFraction     = 0.8

	throttleThresholdMedium = 0.5
	throttleThresholdHigh   = 0.75
	throttleDelayMedium     = 1 * time.Second
	throttleDelayHigh       = 2 * time.Second

	// maxConcurrentPerHost is the spec's "at most one concurrent request
	// per host unless overridden" default.
	maxConcurrentPerHost = 1
)

// Limiter enforces an independent token bucket per host.
type Limiter struct {
	cache valkey.Client
	log   logger.Logger

	// crawlDelay overrides, discovered from robots.txt once per host and
	// adopted when larger than the configured default (§4.1).
	crawlDelay map[string]time.Duration
}

func New(cache valkey.Client) *Limiter {
	return &Limiter{
		cache:      cache,
		log:        logger.New("ratelimit"),
		crawlDelay: make(map[string]time.Duration),
	}
}

// SetCrawlDelay records a host's robots.txt crawl-delay so Wait adopts it
// when it exceeds the configured default.
func (l *Limiter) SetCrawlDelay(host string, delay time.Duration) {
	l.crawlDelay[host] = delay
}

func (l *Limiter) interval(host string) time.Duration {
	base := DefaultMinInterval + time.Duration(rand.Float64()*float64(DefaultMaxInterval-DefaultMinInterval))
	if crawlDelay, ok := l.crawlDelay[host]; ok && crawlDelay > base {
		base = crawlDelay
	}

	jitter := 1 + (rand.Float64()*2-1)*jitterFraction
	return time.Duration(float64(base) * jitter)
}

// Wait blocks until a slot for host is available, applying proactive
// throttling as the recent-request count climbs (grounded in the teacher's
// discogsRateLimiter 50%/75% capacity thresholds) and then recording the
// request against the host's sorted set.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	log := l.log.Function("Wait")

	for {
		canProceed, recentCount, err := l.checkAndRecord(ctx, host)
		if err != nil {
			return log.Err("failed to check rate limit", err, "host", host)
		}

		if canProceed {
			return nil
		}

		delay := l.throttleDelay(recentCount)
		if delay == 0 {
			delay = l.interval(host)
		}

		select {
		case <-ctx.Done():
			return log.Err("context cancelled while waiting for rate limit", ctx.Err(), "host", host)
		case <-time.After(delay):
		}
	}
}

// checkAndRecord mirrors a sliding window over maxConcurrentPerHost slots
// per interval: it cleans expired entries, checks capacity, and records a
// new slot if room remains.
func (l *Limiter) checkAndRecord(ctx context.Context, host string) (bool, int64, error) {
	key := fmt.Sprintf(hostRequestKey, host)
	window := l.interval(host)
	now := time.Now()
	windowStart := now.Add(-window).Unix()

	err := l.cache.Do(ctx, l.cache.B().Zremrangebyscore().Key(key).
		Min("-inf").Max(fmt.Sprintf("%d", windowStart)).Build()).Error()
	if err != nil {
		return false, 0, err
	}

	count, err := l.cache.Do(ctx, l.cache.B().Zcard().Key(key).Build()).AsInt64()
	if err != nil {
		return false, 0, err
	}

	if count >= maxConcurrentPerHost {
		return false, count, nil
	}

	member := fmt.Sprintf("%d-%d", now.UnixNano(), rand.Int64())
	err = l.cache.Do(ctx, l.cache.B().Zadd().Key(key).
		ScoreMember().ScoreMember(float64(now.Unix()), member).Build()).Error()
	if err != nil {
		return false, count, err
	}

	l.cache.Do(ctx, l.cache.B().Expire().Key(key).Seconds(int64(window.Seconds()*2)+1).Build())

	return true, count + 1, nil
}

func (l *Limiter) throttleDelay(recentCount int64) time.Duration {
	capacityUsed := float64(recentCount) / float64(maxConcurrentPerHost)

	switch {
	case capacityUsed < throttleThresholdMedium:
		return 0
	case capacityUsed < throttleThresholdHigh:
		return throttleDelayMedium
	default:
		return throttleDelayHigh
	}
}
