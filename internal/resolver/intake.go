package resolver

import (
	"context"

	"tracklift/internal/logger"
	"tracklift/internal/repositories"
)

// DefaultIntakeLimit bounds how many freshly persisted tracks one sweep
// claims, mirroring DefaultSweepLimit's backlog-monopolization guard.
const DefaultIntakeLimit = 200

// IntakeWorker periodically resolves tracks the pipeline just persisted
// that have never been through the resolver (no enrichment_status row at
// all, as opposed to CooldownWorker's rows whose retry_after has elapsed).
type IntakeWorker struct {
	repo     repositories.Repository
	resolver *Resolver
	log      logger.Logger
	limit    int
}

func NewIntakeWorker(repo repositories.Repository, res *Resolver) *IntakeWorker {
	return &IntakeWorker{
		repo:     repo,
		resolver: res,
		log:      logger.New("resolver.intake"),
		limit:    DefaultIntakeLimit,
	}
}

// Sweep claims up to w.limit unresolved tracks and runs one resolver pass
// against each. A failure on one track never aborts the sweep; it simply
// remains unresolved until the next tick, same as a fresh scrape would.
func (w *IntakeWorker) Sweep(ctx context.Context) (int, error) {
	log := w.log.Function("Sweep")

	tracks, err := w.repo.Track.FindUnresolved(ctx, w.limit)
	if err != nil {
		return 0, log.Err("failed to query unresolved tracks", err)
	}

	resolved := 0
	for _, track := range tracks {
		select {
		case <-ctx.Done():
			return resolved, ctx.Err()
		default:
		}

		if err := w.resolver.Resolve(ctx, track.ID); err != nil {
			log.Warn("intake resolution failed", "trackID", track.ID, "error", err)
			continue
		}
		resolved++
	}

	log.Info("intake sweep complete", "candidates", len(tracks), "resolved", resolved)
	return resolved, nil
}
