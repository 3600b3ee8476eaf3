package resolver

import (
	"time"
	"tracklift/internal/events"
	"tracklift/internal/logger"
	"tracklift/internal/metrics"

	"github.com/sony/gobreaker"
)

// DefaultBreakerSettings implements §5's shared-resource policy for
// external API circuit breakers: open after 5 consecutive failures,
// half-open after 60s, close after 2 consecutive successes in half-open.
// Grounded on jordigilh-kubernaut's notification controller wiring, which
// builds one gobreaker.Settings per dependency with the same three knobs.
var (
	DefaultConsecutiveFailureThreshold uint32 = 5
	DefaultBreakerTimeout                     = 60 * time.Second
	DefaultHalfOpenSuccessThreshold    uint32 = 2
)

// breakerManager lazily creates and caches one gobreaker.CircuitBreaker per
// named external dependency (spotify, musicbrainz, catalog, tagging,
// setlist_provider), publishing an alert whenever one trips open.
type breakerManager struct {
	breakers map[string]*gobreaker.CircuitBreaker
	events   *events.EventBus
	metrics  *metrics.Registry
	log      logger.Logger
}

func newBreakerManager(bus *events.EventBus, registry *metrics.Registry) *breakerManager {
	return &breakerManager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		events:   bus,
		metrics:  registry,
		log:      logger.New("resolver.circuitbreaker"),
	}
}

func (m *breakerManager) get(name string) *gobreaker.CircuitBreaker {
	if cb, ok := m.breakers[name]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: DefaultHalfOpenSuccessThreshold,
		Timeout:     DefaultBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= DefaultConsecutiveFailureThreshold
		},
		OnStateChange: func(breakerName string, from, to gobreaker.State) {
			log := m.log.Function("OnStateChange")
			log.Warn("circuit breaker state change", "breaker", breakerName, "from", from, "to", to)
			if m.metrics != nil {
				m.metrics.Inc(metrics.CircuitBreakerStateTotal, 1)
			}
			if to == gobreaker.StateOpen && m.events != nil {
				if err := m.events.PublishCircuitBreakerOpen(breakerName, time.Now()); err != nil {
					log.Warn("failed to publish circuit breaker alert", "breaker", breakerName, "error", err)
				}
			}
		},
	})
	m.breakers[name] = cb
	return cb
}

// call runs fn through the named breaker, returning the wrapped result or
// gobreaker.ErrOpenState/ErrTooManyRequests when tripped.
func call[T any](m *breakerManager, name string, fn func() (T, error)) (T, error) {
	cb := m.get(name)
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
