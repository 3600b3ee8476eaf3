// Package dedup tracks completed scrape targets and per-source daily
// quotas so the orchestrator never re-dispatches a URL within its TTL or
// exceeds a source's daily budget (§4.7, §6 persisted-state layout).
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
	"tracklift/internal/logger"

	"github.com/valkey-io/valkey-go"
)

const (
	urlKeyPrefix   = "dedup:url:%s"
	quotaKeyPrefix = "dedup:quota:%s:%s"

	// DefaultURLTTL matches §4.7: "de-duplicated against a persistent
	// store ... with a TTL of 30 days".
	DefaultURLTTL = 30 * 24 * time.Hour
)

// Store is the valkey-backed de-duplication and quota tracker.
type Store struct {
	cache valkey.Client
	log   logger.Logger
	ttl   time.Duration
}

func New(cache valkey.Client) *Store {
	return &Store{cache: cache, log: logger.New("dedup"), ttl: DefaultURLTTL}
}

// HashURL returns the stable fingerprint the de-dup store keys on, so the
// raw URL itself never needs to round-trip through valkey keys.
func HashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Seen reports whether url was already marked completed within the TTL
// window.
func (s *Store) Seen(ctx context.Context, url string) (bool, error) {
	log := s.log.Function("Seen")

	key := fmt.Sprintf(urlKeyPrefix, HashURL(url))
	n, err := s.cache.Do(ctx, s.cache.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, log.Err("failed to check url de-dup key", err, "url", url)
	}
	return n > 0, nil
}

// MarkSeen records url as completed, starting its TTL window.
func (s *Store) MarkSeen(ctx context.Context, url string) error {
	log := s.log.Function("MarkSeen")

	key := fmt.Sprintf(urlKeyPrefix, HashURL(url))
	err := s.cache.Do(ctx, s.cache.B().Set().Key(key).Value("1").Ex(s.ttl).Build()).Error()
	if err != nil {
		return log.Err("failed to mark url seen", err, "url", url)
	}
	return nil
}

// QuotaRemaining reports how many more dispatches source may make today
// against its daily quota; 0 means the quota is exhausted. A non-positive
// dailyQuota (no quota) is returned unchanged.
func (s *Store) QuotaRemaining(ctx context.Context, source string, dailyQuota int) (int, error) {
	log := s.log.Function("QuotaRemaining")

	if dailyQuota <= 0 {
		return dailyQuota, nil
	}

	key := fmt.Sprintf(quotaKeyPrefix, source, dayBucket())
	used, err := s.cache.Do(ctx, s.cache.B().Get().Key(key).Build()).AsInt64()
	if err != nil && !valkey.IsValkeyNil(err) {
		return 0, log.Err("failed to read quota counter", err, "source", source)
	}

	remaining := dailyQuota - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// ConsumeQuota increments source's usage counter for today's UTC date
// bucket, so quotas reset when the date changes; each increment sets the
// key to expire 26 hours later.
func (s *Store) ConsumeQuota(ctx context.Context, source string) error {
	log := s.log.Function("ConsumeQuota")

	key := fmt.Sprintf(quotaKeyPrefix, source, dayBucket())
	if err := s.cache.Do(ctx, s.cache.B().Incr().Key(key).Build()).Error(); err != nil {
		return log.Err("failed to increment quota counter", err, "source", source)
	}
	if err := s.cache.Do(ctx, s.cache.B().Expire().Key(key).Seconds(int64(26*time.Hour/time.Second)).Build()).Error(); err != nil {
		return log.Err("failed to set quota counter expiry", err, "source", source)
	}
	return nil
}

func dayBucket() string {
	return time.Now().UTC().Format("2006-01-02")
}
