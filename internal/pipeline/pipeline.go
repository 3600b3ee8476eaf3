package pipeline

import (
	"context"
	"tracklift/internal/logger"
	"tracklift/internal/metrics"
)

// Pipeline strings the three fixed-priority stages of §4.8 together: an
// item that fails Validate never reaches Enrich, and an item that fails
// Enrich (it can't, by design — see enrich.go) never reaches Persist.
type Pipeline struct {
	log       logger.Logger
	metrics   *metrics.Registry
	validator *Validator
	enricher  *Enricher
	persister *Persister
}

func New(validator *Validator, enricher *Enricher, persister *Persister, registry *metrics.Registry) *Pipeline {
	return &Pipeline{
		log:       logger.New("pipeline"),
		metrics:   registry,
		validator: validator,
		enricher:  enricher,
		persister: persister,
	}
}

// Submit drives item through validation, enrichment, and persistence in
// order, returning the stage error from wherever it was dropped, or nil
// once it has been buffered for the next flush.
func (p *Pipeline) Submit(ctx context.Context, item Item) *StageError {
	if err := p.validator.Validate(ctx, item); err != nil {
		return err
	}
	if err := p.enricher.Enrich(ctx, item); err != nil {
		return err
	}
	return p.persister.Add(ctx, item)
}

// Flush forces the persistence stage to drain every buffered batch now,
// used both by the periodic flush ticker and by the guaranteed final
// flush on shutdown (§4.8.3, "Cancellation & timeouts").
func (p *Pipeline) Flush(ctx context.Context) *StageError {
	return p.persister.Flush(ctx)
}
