package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tracklift/internal/dedup"
	"tracklift/internal/events"
	"tracklift/internal/logger"
	"tracklift/internal/metrics"

	"github.com/go-co-op/gocron"
)

// DefaultPollInterval is how often the dispatch loop re-evaluates every
// registered source, the orchestrator's analogue of the teacher's fixed
// daily/hourly gocron schedule.
const DefaultPollInterval = 30 * time.Second

// DefaultGlobalConcurrency bounds the number of targets running across all
// sources at once, independent of each source's own cap (§4.7 "Fan-out").
const DefaultGlobalConcurrency = 8

// Orchestrator owns the per-source state machines, the global concurrency
// budget, and the gocron-driven poll loop that promotes idle/cooldown
// sources back to scheduled. Adapted from the teacher's SchedulerService:
// same gocron + mutex + cancellable-context shape, generalized from a
// fixed daily/hourly cadence to a continuous per-source poll.
type Orchestrator struct {
	scheduler *gocron.Scheduler
	dedup     *dedup.Store
	events    *events.EventBus
	metrics   *metrics.Registry
	log       logger.Logger

	mu                sync.Mutex
	jobs              map[string]Job
	trackers          map[string]*sourceTracker
	globalRunning     int
	globalConcurrency int

	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(dedupStore *dedup.Store, bus *events.EventBus, registry *metrics.Registry) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		scheduler:         gocron.NewScheduler(time.UTC),
		dedup:             dedupStore,
		events:            bus,
		metrics:           registry,
		log:               logger.New("orchestrator"),
		jobs:              make(map[string]Job),
		trackers:          make(map[string]*sourceTracker),
		globalConcurrency: DefaultGlobalConcurrency,
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Register adds a source's Job to the orchestrator, idle until the next
// poll tick promotes it to scheduled.
func (o *Orchestrator) Register(job Job) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.jobs[job.Source()] = job
	o.trackers[job.Source()] = &sourceTracker{source: job.Source(), state: StateIdle}
}

// Start begins the poll loop; each tick promotes eligible idle/cooldown/
// succeeded/failed sources to scheduled and dispatches their targets.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	log := o.log.Function("Start")
	if o.started {
		log.Info("orchestrator already started")
		return nil
	}

	_, err := o.scheduler.Every(DefaultPollInterval).Do(func() {
		o.poll()
	})
	if err != nil {
		return log.Err("failed to register poll loop", err)
	}

	o.scheduler.StartAsync()
	o.started = true
	log.Info("orchestrator started", "pollInterval", DefaultPollInterval)
	return nil
}

// Stop halts the poll loop and cancels the orchestrator's context.
// Scheduled-but-not-started dispatches are simply never picked up again;
// running dispatches see that cancellation in their in-flight Job.Run
// calls, so they get no grace period to finish their current target.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	log := o.log.Function("Stop")
	if !o.started {
		return
	}
	o.cancel()
	o.scheduler.Stop()
	o.started = false
	log.Info("orchestrator stopped")
}

func (o *Orchestrator) poll() {
	log := o.log.Function("poll")

	o.mu.Lock()
	ready := make([]string, 0, len(o.jobs))
	for source, tracker := range o.trackers {
		if o.isEligible(tracker) {
			ready = append(ready, source)
		}
	}
	o.mu.Unlock()

	for _, source := range ready {
		o.dispatch(source)
	}
	log.Info("poll tick complete", "dispatched", len(ready))
}

// isEligible reports whether tracker's state and cooldown window allow a
// fresh scheduled transition. Caller holds o.mu.
func (o *Orchestrator) isEligible(tracker *sourceTracker) bool {
	switch tracker.state {
	case StateIdle, StateSucceeded, StateFailed:
		return true
	case StateCooldown:
		return !time.Now().Before(tracker.cooldownUntil)
	default:
		return false
	}
}

func (o *Orchestrator) dispatch(source string) {
	log := o.log.Function("dispatch")

	o.mu.Lock()
	job, ok := o.jobs[source]
	tracker := o.trackers[source]
	if !ok || !o.isEligible(tracker) {
		o.mu.Unlock()
		return
	}
	tracker.state = StateScheduled
	o.mu.Unlock()

	targets, err := job.Targets(o.ctx)
	if err != nil {
		log.Warn("failed to enumerate targets", "source", source, "error", err)
		o.transitionFailed(source, err)
		return
	}

	targets, err = o.filterTargets(job, targets)
	if err != nil {
		log.Warn("failed to filter targets against de-dup/quota store", "source", source, "error", err)
		o.transitionFailed(source, err)
		return
	}

	if len(targets) == 0 {
		o.transitionSucceeded(source)
		return
	}

	o.mu.Lock()
	tracker.state = StateRunning
	o.mu.Unlock()

	concurrencyCap := job.ConcurrencyCap()
	if concurrencyCap <= 0 {
		concurrencyCap = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrencyCap)
	var failures failureCounter

	for _, target := range targets {
		if !o.acquireGlobalSlot() {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer o.releaseGlobalSlot()

			if err := job.Run(o.ctx, target); err != nil {
				failures.inc()
				log.Warn("target run failed", "source", source, "target", target, "error", err)
				return
			}
			if o.dedup != nil {
				if markErr := o.dedup.MarkSeen(o.ctx, target); markErr != nil {
					log.Warn("failed to mark target seen", "source", source, "target", target, "error", markErr)
				}
			}
			if o.dedup != nil {
				_ = o.dedup.ConsumeQuota(o.ctx, source)
			}
		}(target)
	}
	wg.Wait()

	if failures.value() > 0 {
		o.transitionRetriableOrFailed(source, fmt.Errorf("%d of %d targets failed", failures.value(), len(targets)))
		return
	}
	o.transitionSucceeded(source)
}

func (o *Orchestrator) filterTargets(job Job, targets []string) ([]string, error) {
	if o.dedup == nil {
		return targets, nil
	}

	remaining, err := o.dedup.QuotaRemaining(o.ctx, job.Source(), job.DailyQuota())
	if err != nil {
		return nil, err
	}

	filtered := make([]string, 0, len(targets))
	for _, target := range targets {
		if job.DailyQuota() > 0 && len(filtered) >= remaining {
			break
		}
		seen, err := o.dedup.Seen(o.ctx, target)
		if err != nil {
			return nil, err
		}
		if seen {
			continue
		}
		filtered = append(filtered, target)
	}
	return filtered, nil
}

func (o *Orchestrator) acquireGlobalSlot() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.globalRunning >= o.globalConcurrency {
		return false
	}
	o.globalRunning++
	return true
}

func (o *Orchestrator) releaseGlobalSlot() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.globalRunning > 0 {
		o.globalRunning--
	}
}

func (o *Orchestrator) transitionSucceeded(source string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	tracker := o.trackers[source]
	tracker.state = StateSucceeded
	tracker.consecutiveFail = 0
	tracker.lastError = nil
}

func (o *Orchestrator) transitionFailed(source string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	tracker := o.trackers[source]
	tracker.state = StateFailed
	tracker.lastError = err
}

// transitionRetriableOrFailed moves source to cooldown whenever any target
// failed, whatever the error; it never moves a source to failed (only a
// target-enumeration or de-dup/quota error does, via transitionFailed).
func (o *Orchestrator) transitionRetriableOrFailed(source string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	tracker := o.trackers[source]
	tracker.lastError = err
	tracker.consecutiveFail++
	tracker.state = StateCooldown
	tracker.cooldownUntil = time.Now().Add(cooldownDuration(tracker.consecutiveFail))

	if o.events != nil && tracker.consecutiveFail >= 3 {
		_ = o.events.PublishCooldownBacklog(tracker.consecutiveFail, 3)
	}
	if o.metrics != nil {
		o.metrics.Inc(metrics.CooldownQueueDepth, 1)
	}
}

// failureCounter is a tiny mutex-guarded counter: worker goroutines
// increment it concurrently, and dispatch reads it after wg.Wait.
type failureCounter struct {
	mu    sync.Mutex
	count int
}

func (c *failureCounter) inc() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func (c *failureCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
