package feeder

import (
	"context"
	"errors"
	"time"

	"datafeeder/internal/credential"
	"datafeeder/internal/logger"
	"datafeeder/internal/market"

	"golang.org/x/time/rate"
)

type PairState int

const (
	PairPending PairState = iota
	PairReserving
	PairFetching
	PairWaiting
	PairDone
	PairFailed
)

func (s PairState) String() string {
	switch s {
	case PairPending:
		return "pending"
	case PairReserving:
		return "reserving"
	case PairFetching:
		return "fetching"
	case PairWaiting:
		return "waiting"
	case PairDone:
		return "done"
	case PairFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PairResult is the final state of one (instrument, granularity) bootstrap.
type PairResult struct {
	Instrument  string
	Granularity market.Granularity
	State       PairState
	Attempts    int
	Failures    int
	Stored      int
	Err         error
}

type BootstrapReport struct {
	Pairs    []PairResult
	Done     int
	Failed   int
	Duration time.Duration
}

// Bootstrap loads history for every pair in configuration order, instruments
// outermost. It only returns early when ctx ends; pairs that use up their retry
// budget are reported as failed and skipped. Readiness is set on completion.
func (f *Feeder) Bootstrap(ctx context.Context) (BootstrapReport, error) {
	start := f.nowFn()
	limit := rate.Inf
	if f.cfg.Pacing > 0 {
		limit = rate.Every(f.cfg.Pacing)
	}
	limiter := rate.NewLimiter(limit, 1)

	total := len(f.cfg.Instruments) * len(f.cfg.Granularities)
	logger.Infof("[bootstrap] loading %d streams (%d instruments x %d granularities)",
		total, len(f.cfg.Instruments), len(f.cfg.Granularities))

	report := BootstrapReport{Pairs: make([]PairResult, 0, total)}
	for _, inst := range f.cfg.Instruments {
		for _, g := range f.cfg.Granularities {
			if err := limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				return report, err
			}
			res, err := f.bootstrapPair(ctx, inst, g)
			report.Pairs = append(report.Pairs, res)
			if err != nil {
				return report, err
			}
			switch res.State {
			case PairDone:
				report.Done++
			case PairFailed:
				report.Failed++
			}
		}
	}
	report.Duration = f.nowFn().Sub(start)
	f.ready.Store(true)
	logger.Infof("[bootstrap] complete done=%d failed=%d in %s",
		report.Done, report.Failed, report.Duration.Truncate(time.Millisecond))
	return report, nil
}

// bootstrapPair drives Pending -> Reserving -> Fetching -> Done, detouring through
// Waiting on credential scarcity (free) or provider failure (costs one retry).
func (f *Feeder) bootstrapPair(ctx context.Context, inst string, g market.Granularity) (PairResult, error) {
	res := PairResult{Instrument: inst, Granularity: g, State: PairPending}
	size := f.cfg.historySize(g)

	var (
		resv       credential.Reservation
		waitReason string
		waitFor    time.Duration
	)
	fail := func(err error) {
		res.Failures++
		res.Err = err
		if f.cfg.MaxRetries > 0 && res.Failures > f.cfg.MaxRetries {
			res.State = PairFailed
			return
		}
		res.State = PairWaiting
		waitReason = err.Error()
		waitFor = f.cfg.Backoff
	}

	for {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res, err
		}
		switch res.State {
		case PairPending:
			res.State = PairReserving

		case PairReserving:
			r, err := f.acquire()
			var we *WaitError
			switch {
			case errors.As(err, &we):
				res.State = PairWaiting
				waitReason = "no credential available"
				waitFor = we.Wait
			case err != nil:
				f.recordRejected(ctx, ModeBootstrap, inst, g, err)
				fail(err)
			default:
				resv = r
				res.State = PairFetching
			}

		case PairFetching:
			res.Attempts++
			candles, err := f.fetchWith(ctx, ModeBootstrap, resv, inst, g, size)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				logger.Warnf("[bootstrap] %s %s attempt=%d failed: %v", inst, g, res.Attempts, err)
				fail(err)
				continue
			}
			if err := f.store.ReplaceAll(inst, g, candles); err != nil {
				res.Err = err
				res.State = PairFailed
				continue
			}
			res.Stored = len(candles)
			res.Err = nil
			res.State = PairDone

		case PairWaiting:
			logger.Debugf("[bootstrap] %s %s waiting %s: %s", inst, g, waitFor, waitReason)
			if err := f.sleep(ctx, waitFor); err != nil {
				res.Err = err
				return res, err
			}
			res.State = PairReserving

		case PairDone:
			logger.Infof("[bootstrap] %s %s stored=%d attempts=%d", inst, g, res.Stored, res.Attempts)
			return res, nil

		case PairFailed:
			logger.Errorf("[bootstrap] %s %s gave up after %d failures: %v", inst, g, res.Failures, res.Err)
			return res, nil
		}
	}
}
