// Package credential hands out provider API keys under per-key daily and per-minute quotas.
package credential

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// Window is the length of the rolling per-minute quota window.
	Window = time.Minute
	// MinWait floors the suggested wait so callers never busy-spin.
	MinWait = 500 * time.Millisecond
)

// ErrExhausted is returned by callers that surface a failed reservation as an error.
var ErrExhausted = errors.New("no credential available within quota")

// Reservation grants one key for exactly one outbound request.
type Reservation struct {
	Slot      int
	Key       string
	GrantedAt time.Time
}

// Label is the redacted name used in logs and stats.
func (r Reservation) Label() string { return slotLabel(r.Slot) }

type usage struct {
	key         string
	today       int
	window      int
	windowStart time.Time
	lastUsed    time.Time
}

type Limits struct {
	Daily     int
	PerMinute int
}

// Pool tracks usage for every configured key. All operations share one lock.
type Pool struct {
	limits Limits
	nowFn  func() time.Time

	mu       sync.Mutex
	keys     []*usage
	day      time.Time
	reserved int
	denied   int
}

type Option func(*Pool)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.nowFn = now
		}
	}
}

// NewPool builds a pool over keys in the given order; order breaks selection ties.
func NewPool(keys []string, limits Limits, opts ...Option) (*Pool, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("credential pool requires at least one key")
	}
	if limits.Daily <= 0 || limits.PerMinute <= 0 {
		return nil, fmt.Errorf("credential limits must be > 0 (daily=%d per_minute=%d)", limits.Daily, limits.PerMinute)
	}
	p := &Pool{limits: limits, nowFn: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	for i, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("credential %s is empty", slotLabel(i))
		}
		p.keys = append(p.keys, &usage{key: k})
	}
	p.day = utcDay(p.nowFn())
	return p, nil
}

// Size returns the number of configured keys.
func (p *Pool) Size() int { return len(p.keys) }

// Reserve picks the eligible key with the fewest requests in its current window and
// charges it before returning. When nothing is eligible it returns ok=false and how
// long until the earliest key frees up.
func (p *Pool) Reserve() (Reservation, bool, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFn().UTC()
	p.rollDayLocked(now)

	var pick *usage
	slot := -1
	for i, u := range p.keys {
		if u.windowStart.IsZero() || now.Sub(u.windowStart) >= Window {
			u.window = 0
			u.windowStart = now
		}
		if u.today >= p.limits.Daily || u.window >= p.limits.PerMinute {
			continue
		}
		if pick == nil || u.window < pick.window {
			pick, slot = u, i
		}
	}
	if pick == nil {
		p.denied++
		return Reservation{}, false, p.nextFreeLocked(now)
	}

	pick.today++
	pick.window++
	pick.lastUsed = now
	p.reserved++
	return Reservation{Slot: slot, Key: pick.key, GrantedAt: now}, true, 0
}

// RecordFailure returns a reservation's charge when its request was never sent.
// Counters that rolled over since the grant are left alone.
func (p *Pool) RecordFailure(r Reservation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.Slot < 0 || r.Slot >= len(p.keys) {
		return
	}
	u := p.keys[r.Slot]
	if u.key != r.Key {
		return
	}
	if utcDay(r.GrantedAt).Equal(p.day) && u.today > 0 {
		u.today--
	}
	if !r.GrantedAt.Before(u.windowStart) && u.window > 0 {
		u.window--
	}
	if p.reserved > 0 {
		p.reserved--
	}
}

func (p *Pool) rollDayLocked(now time.Time) {
	day := utcDay(now)
	if !day.After(p.day) {
		return
	}
	for _, u := range p.keys {
		u.today = 0
	}
	p.day = day
}

// nextFreeLocked is the shortest time until any key regains a slot: its minute
// window closing, or the next UTC midnight when its daily quota is spent.
func (p *Pool) nextFreeLocked(now time.Time) time.Duration {
	midnight := p.day.Add(24 * time.Hour)
	best := time.Duration(-1)
	for _, u := range p.keys {
		var wait time.Duration
		if u.today >= p.limits.Daily {
			wait = midnight.Sub(now)
		} else {
			wait = Window - now.Sub(u.windowStart)
		}
		if best < 0 || wait < best {
			best = wait
		}
	}
	if best < MinWait {
		best = MinWait
	}
	return best
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func slotLabel(slot int) string { return fmt.Sprintf("key_%d", slot+1) }
