// Package proxypool manages the set of outbound egress points the fetcher
// rotates through (§4.2).
package proxypool

import (
	"errors"
	"sync"
	"time"
	"tracklift/internal/logger"
)

// ErrNoHealthyEgress is returned when every egress point is dirty and the
// pool refuses to overload a single surviving point.
var ErrNoHealthyEgress = errors.New("proxypool: no healthy egress point available")

const (
	maxConsecutiveFailures = 3
	defaultCooldown        = 10 * time.Minute
)

// Egress is one outbound proxy endpoint and its health state.
type Egress struct {
	Address             string
	ConsecutiveFailures int
	LastFailureReason   string
	CooldownUntil       time.Time
	SuccessCount        int64
	FailureCount        int64
	LastUsedAt          time.Time
}

func (e *Egress) successRate() float64 {
	total := e.SuccessCount + e.FailureCount
	if total == 0 {
		return 1.0
	}
	return float64(e.SuccessCount) / float64(total)
}

func (e *Egress) dirty(now time.Time) bool {
	return e.CooldownUntil.After(now)
}

// Pool selects, tracks, and recovers egress points.
type Pool struct {
	log logger.Logger

	mutex   sync.Mutex
	egress  map[string]*Egress
	cooldown time.Duration
}

func New(addresses []string) *Pool {
	egress := make(map[string]*Egress, len(addresses))
	for _, addr := range addresses {
		egress[addr] = &Egress{Address: addr}
	}
	return &Pool{
		log:      logger.New("proxypool"),
		egress:   egress,
		cooldown: defaultCooldown,
	}
}

// Select returns the healthiest available egress point: highest success
// rate, then lowest recent failure count, ties broken least-recently-used.
func (p *Pool) Select() (*Egress, error) {
	log := p.log.Function("Select")

	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()
	var best *Egress
	for _, e := range p.egress {
		if e.dirty(now) {
			continue
		}
		if best == nil {
			best = e
			continue
		}
		if e.successRate() > best.successRate() {
			best = e
			continue
		}
		if e.successRate() == best.successRate() {
			if e.ConsecutiveFailures < best.ConsecutiveFailures {
				best = e
				continue
			}
			if e.ConsecutiveFailures == best.ConsecutiveFailures && e.LastUsedAt.Before(best.LastUsedAt) {
				best = e
			}
		}
	}

	if best == nil {
		return nil, log.Err("no healthy egress point available", ErrNoHealthyEgress)
	}

	best.LastUsedAt = now
	return best, nil
}

// RecordSuccess clears the failure streak for address.
func (p *Pool) RecordSuccess(address string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if e, ok := p.egress[address]; ok {
		e.ConsecutiveFailures = 0
		e.SuccessCount++
	}
}

// RecordFailure increments the failure streak and marks the egress point
// dirty once it reaches maxConsecutiveFailures.
func (p *Pool) RecordFailure(address, reason string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	e, ok := p.egress[address]
	if !ok {
		return
	}
	e.ConsecutiveFailures++
	e.FailureCount++
	e.LastFailureReason = reason

	if e.ConsecutiveFailures >= maxConsecutiveFailures {
		e.CooldownUntil = time.Now().Add(p.cooldown)
	}
}

// MarkDirty puts address into cooldown immediately, used by the challenge
// detector on an interstitial response and by the fetcher on a forbidden
// response — both bypass the consecutive-failure threshold.
func (p *Pool) MarkDirty(address, reason string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	e, ok := p.egress[address]
	if !ok {
		return
	}
	e.LastFailureReason = reason
	e.CooldownUntil = time.Now().Add(p.cooldown)
}

// HealthCheck probes every dirty point with probe and re-admits it to the
// pool on success. Intended to run on a periodic timer.
func (p *Pool) HealthCheck(probe func(address string) bool) {
	log := p.log.Function("HealthCheck")

	p.mutex.Lock()
	var dirty []*Egress
	now := time.Now()
	for _, e := range p.egress {
		if e.dirty(now) {
			dirty = append(dirty, e)
		}
	}
	p.mutex.Unlock()

	for _, e := range dirty {
		if probe(e.Address) {
			p.mutex.Lock()
			e.CooldownUntil = time.Time{}
			e.ConsecutiveFailures = 0
			p.mutex.Unlock()
			log.Info("egress point recovered", "address", e.Address)
		}
	}
}

// Snapshot returns a shallow copy of pool state for metrics reporting.
func (p *Pool) Snapshot() []Egress {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	out := make([]Egress, 0, len(p.egress))
	for _, e := range p.egress {
		out = append(out, *e)
	}
	return out
}
