package resolver

import (
	"context"
	"fmt"
	"time"
	"tracklift/internal/database"
	"tracklift/internal/logger"

	"github.com/valkey-io/valkey-go"
)

const responseCacheKey = "resolver:response:%s:%s"

// DefaultCacheTTLs holds the per-source TTL for the resolver's response
// cache (§4.9: "Responses are cached locally with TTLs per source.").
// MusicBrainz and catalog data change rarely once a recording is
// documented; popularity/tags drift faster.
var DefaultCacheTTLs = map[string]time.Duration{
	"spotify":          24 * time.Hour,
	"musicbrainz":      7 * 24 * time.Hour,
	"catalog":          7 * 24 * time.Hour,
	"tagging":          6 * time.Hour,
	"setlist_provider": 12 * time.Hour,
}

// ResponseCache is a valkey-backed cache of raw external-API lookups, keyed
// by source and query fingerprint, so identical resolver queries across
// tracks don't re-hit the same upstream API within the TTL window.
type ResponseCache struct {
	client valkey.Client
	log    logger.Logger
}

func NewResponseCache(client valkey.Client) *ResponseCache {
	return &ResponseCache{client: client, log: logger.New("resolver.cache")}
}

func (c *ResponseCache) Get(ctx context.Context, source, key string) (string, bool) {
	if c.client == nil {
		return "", false
	}
	log := c.log.Function("Get")

	cacheKey := fmt.Sprintf(responseCacheKey, source, key)
	var value string
	found, err := database.NewCacheBuilder(c.client, cacheKey).
		WithContext(ctx).
		Get(&value)
	if err != nil {
		if !valkey.IsValkeyNil(err) {
			log.Warn("failed to read response cache", "source", source, "error", err)
		}
		return "", false
	}
	return value, found
}

func (c *ResponseCache) Set(ctx context.Context, source, key, value string) {
	if c.client == nil {
		return
	}
	log := c.log.Function("Set")

	ttl := DefaultCacheTTLs[source]
	if ttl == 0 {
		ttl = time.Hour
	}

	cacheKey := fmt.Sprintf(responseCacheKey, source, key)
	err := database.NewCacheBuilder(c.client, cacheKey).
		WithContext(ctx).
		WithTTL(ttl).
		WithStruct(value).
		Set()
	if err != nil {
		log.Warn("failed to write response cache", "source", source, "error", err)
	}
}
