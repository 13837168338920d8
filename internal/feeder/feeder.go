// Package feeder keeps the kline store filled: a blocking bootstrap that loads
// history for every stream, then minute ticks that append freshly closed candles.
package feeder

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"datafeeder/internal/credential"
	"datafeeder/internal/market"
	"datafeeder/internal/pkg/circuit"
)

const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultBackoff      = 10 * time.Second
	DefaultPacing       = 200 * time.Millisecond
	DefaultHistory      = 100
)

type Config struct {
	Instruments   []string
	Granularities []market.Granularity
	// History is the bootstrap window per granularity; missing entries use DefaultHistory.
	History map[market.Granularity]int

	FetchTimeout time.Duration
	Backoff      time.Duration
	// MaxRetries bounds failed attempts per bootstrap pair beyond the first; 0 retries forever.
	MaxRetries     int
	Pacing         time.Duration
	LiveOutputSize int
}

func (c Config) withDefaults() Config {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.Pacing < 0 {
		c.Pacing = 0
	}
	if c.LiveOutputSize <= 0 {
		c.LiveOutputSize = 1
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

func (c Config) historySize(g market.Granularity) int {
	if n := c.History[g]; n > 0 {
		return n
	}
	return DefaultHistory
}

// Feeder owns retry policy. The pool, store and source are shared with the rest of the process.
type Feeder struct {
	cfg      Config
	source   market.Source
	pool     *credential.Pool
	store    market.KlineStore
	breaker  *circuit.CircuitBreaker
	recorder Recorder

	nowFn func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	ready atomic.Bool
}

type Option func(*Feeder)

// WithBreaker guards every provider call with cb. A nil breaker never trips.
func WithBreaker(cb *circuit.CircuitBreaker) Option {
	return func(f *Feeder) { f.breaker = cb }
}

func WithRecorder(r Recorder) Option {
	return func(f *Feeder) {
		if r != nil {
			f.recorder = r
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Feeder) {
		if now != nil {
			f.nowFn = now
		}
	}
}

// WithSleep overrides how waits and backoffs elapse, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Feeder) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

func New(cfg Config, source market.Source, pool *credential.Pool, store market.KlineStore, opts ...Option) (*Feeder, error) {
	if source == nil || pool == nil || store == nil {
		return nil, fmt.Errorf("feeder requires source, credential pool and store")
	}
	cfg = cfg.withDefaults()
	if len(cfg.Instruments) == 0 || len(cfg.Granularities) == 0 {
		return nil, fmt.Errorf("feeder requires at least one instrument and granularity")
	}
	for _, g := range cfg.Granularities {
		if _, ok := g.Duration(); !ok {
			return nil, fmt.Errorf("unsupported granularity %q", g)
		}
	}
	f := &Feeder{
		cfg:      cfg,
		source:   source,
		pool:     pool,
		store:    store,
		recorder: nopRecorder{},
		nowFn:    time.Now,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Ready reports whether bootstrap has finished.
func (f *Feeder) Ready() bool { return f.ready.Load() }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
