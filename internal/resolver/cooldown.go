package resolver

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
	"tracklift/internal/logger"
	"tracklift/internal/models"
	"tracklift/internal/repositories"
)

// DefaultCooldownBaseDays matches §4.9's default 90-day base cool-down
// window before a track is retried through the resolver.
const DefaultCooldownBaseDays = 90

// DefaultSweepLimit bounds how many due rows one worker tick claims, so a
// large backlog doesn't monopolize the resolver in a single pass.
const DefaultSweepLimit = 200

// cooldownParams carries the per-track context the adaptive strategy needs
// beyond the attempt count: whether a label hint is already known, and the
// track's age.
type cooldownParams struct {
	strategy  models.CooldownStrategy
	attempts  int
	baseDays  int
	labelHint bool
	trackAge  time.Duration
}

// cooldownDuration implements §4.9's three strategies verbatim, including
// the adaptive strategy's label/age/attempt adjustments and jitter.
func cooldownDuration(p cooldownParams) time.Duration {
	base := p.baseDays
	if base <= 0 {
		base = DefaultCooldownBaseDays
	}

	var days float64
	switch p.strategy {
	case models.CooldownFixed:
		days = float64(base)
	case models.CooldownExponential:
		days = float64(base) * math.Pow(2, float64(p.attempts-1))
	case models.CooldownAdaptive:
		fallthrough
	default:
		days = float64(base)
		if p.labelHint {
			days = 60
		}
		if p.trackAge < 30*24*time.Hour {
			days = 45
		}
		days *= 1 + 0.5*float64(p.attempts)
		if days > 365 {
			days = 365
		}
		// jitter: uniform factor in [0.9, 1.1] to avoid thundering-herd
		// retries landing on the same calendar day.
		days *= 0.9 + rand.Float64()*0.2
	}

	if days < 0 {
		days = 0
	}
	return time.Duration(days * float64(24*time.Hour))
}

// CooldownWorker periodically sweeps enrichment_status rows whose
// retry_after has elapsed, resets them to pending, and re-queues them
// through the resolver. Interruptible: an in-flight retry always completes
// or rolls back, per §5's cancellation contract.
type CooldownWorker struct {
	repo     repositories.Repository
	resolver *Resolver
	log      logger.Logger
	now      func() time.Time
	limit    int
}

func NewCooldownWorker(repo repositories.Repository, res *Resolver) *CooldownWorker {
	return &CooldownWorker{
		repo:     repo,
		resolver: res,
		log:      logger.New("resolver.cooldown"),
		now:      time.Now,
		limit:    DefaultSweepLimit,
	}
}

// Sweep runs one pass: claim due rows, reset to pending, and re-dispatch
// each through the resolver. A failure on one row never aborts the sweep.
func (w *CooldownWorker) Sweep(ctx context.Context) (int, error) {
	log := w.log.Function("Sweep")

	due, err := w.repo.Enrichment.GetDueForRetry(ctx, w.now(), w.limit)
	if err != nil {
		return 0, log.Err("failed to query cool-down candidates", err)
	}

	requeued := 0
	for _, status := range due {
		select {
		case <-ctx.Done():
			return requeued, ctx.Err()
		default:
		}

		status.Status = models.EnrichmentPending
		if err := w.repo.Enrichment.Upsert(ctx, status); err != nil {
			log.Warn("failed to reset enrichment status to pending", "trackID", status.TrackID, "error", err)
			continue
		}

		if err := w.resolver.Resolve(ctx, status.TrackID); err != nil {
			log.Warn("re-enrichment failed", "trackID", status.TrackID, "error", err)
			continue
		}
		requeued++
	}

	log.Info("cool-down sweep complete", "candidates", len(due), "requeued", requeued)
	return requeued, nil
}
