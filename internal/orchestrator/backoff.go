package orchestrator

import "time"

// DefaultCooldownBase and DefaultCooldownCap bound a source's retry
// backoff after a retriable failure, in the same doubling-capped idiom as
// the fetcher's per-request backoff (§4.1), scaled up to the dispatch
// cadence of a whole source rather than a single HTTP request.
const (
	DefaultCooldownBase = 5 * time.Minute
	DefaultCooldownCap  = 6 * time.Hour
)

// cooldownDuration doubles the base window per consecutive failure,
// capped, so a persistently failing source backs off instead of being
// re-dispatched every tick.
func cooldownDuration(consecutiveFailures int) time.Duration {
	if consecutiveFailures < 1 {
		consecutiveFailures = 1
	}
	d := DefaultCooldownBase
	for i := 1; i < consecutiveFailures; i++ {
		d *= 2
		if d >= DefaultCooldownCap {
			return DefaultCooldownCap
		}
	}
	return d
}
