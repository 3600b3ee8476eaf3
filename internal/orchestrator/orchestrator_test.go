package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tracklift/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	source  string
	targets []string
	cap     int
	quota   int

	mu  sync.Mutex
	ran []string
	err error
}

func (f *fakeJob) Source() string { return f.source }
func (f *fakeJob) Targets(ctx context.Context) ([]string, error) {
	return f.targets, nil
}
func (f *fakeJob) Run(ctx context.Context, target string) error {
	f.mu.Lock()
	f.ran = append(f.ran, target)
	f.mu.Unlock()
	return f.err
}
func (f *fakeJob) ConcurrencyCap() int { return f.cap }
func (f *fakeJob) DailyQuota() int     { return f.quota }

func (f *fakeJob) ranTargets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ran))
	copy(out, f.ran)
	return out
}

func TestOrchestrator_DispatchSucceedsWithNoFailures(t *testing.T) {
	o := New(nil, nil, metrics.New())
	job := &fakeJob{source: "mixesdb", targets: []string{"https://mixesdb.example/a", "https://mixesdb.example/b"}, cap: 2}
	o.Register(job)

	o.dispatch("mixesdb")

	require.ElementsMatch(t, job.targets, job.ranTargets())

	o.mu.Lock()
	state := o.trackers["mixesdb"].state
	o.mu.Unlock()
	assert.Equal(t, StateSucceeded, state)
}

func TestOrchestrator_DispatchMovesToCooldownOnFailure(t *testing.T) {
	o := New(nil, nil, metrics.New())
	job := &fakeJob{source: "mixesdb", targets: []string{"https://mixesdb.example/a"}, cap: 1, err: errors.New("upstream 500")}
	o.Register(job)

	o.dispatch("mixesdb")

	o.mu.Lock()
	tracker := o.trackers["mixesdb"]
	state := tracker.state
	cooldownUntil := tracker.cooldownUntil
	o.mu.Unlock()

	assert.Equal(t, StateCooldown, state)
	assert.True(t, cooldownUntil.After(time.Now()))
}

func TestOrchestrator_DispatchSkipsNonEligibleSource(t *testing.T) {
	o := New(nil, nil, metrics.New())
	job := &fakeJob{source: "mixesdb", targets: []string{"https://mixesdb.example/a"}, cap: 1}
	o.Register(job)

	o.mu.Lock()
	o.trackers["mixesdb"].state = StateRunning
	o.mu.Unlock()

	o.dispatch("mixesdb")

	assert.Empty(t, job.ranTargets())
}

func TestOrchestrator_DispatchWithNoTargetsSucceedsImmediately(t *testing.T) {
	o := New(nil, nil, metrics.New())
	job := &fakeJob{source: "mixesdb", targets: nil, cap: 1}
	o.Register(job)

	o.dispatch("mixesdb")

	o.mu.Lock()
	state := o.trackers["mixesdb"].state
	o.mu.Unlock()
	assert.Equal(t, StateSucceeded, state)
}
