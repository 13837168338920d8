package feeder

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"datafeeder/internal/logger"
	"datafeeder/internal/market"

	"golang.org/x/sync/errgroup"
)

// TickReport counts what one live tick did across all instruments.
type TickReport struct {
	Due      []market.Granularity
	Appended int
	Skipped  int
	Failed   int
}

// InstrumentOffset staggers instrument idx of n across the minute.
func InstrumentOffset(idx, n int) time.Duration {
	if n <= 0 {
		return 0
	}
	step := 60 / n
	if step < 1 {
		step = 1
	}
	return time.Duration(idx*step) * time.Second
}

// Tick runs one live cycle for the minute boundary at tick. It never waits for a
// credential: scarcity and provider failures skip the stream until the next tick.
func (f *Feeder) Tick(ctx context.Context, tick time.Time) TickReport {
	report := TickReport{}
	if !f.Ready() {
		logger.Debugf("[live] tick %s ignored, bootstrap not finished", tick.UTC().Format(time.RFC3339))
		return report
	}
	report.Due = market.DueGranularities(tick, f.cfg.Granularities)
	if len(report.Due) == 0 {
		return report
	}
	logger.Infof("[live] tick %s due=%v", tick.UTC().Format(time.RFC3339), report.Due)

	var appended, skipped, failed atomic.Int64
	var eg errgroup.Group
	n := len(f.cfg.Instruments)
	for idx, inst := range f.cfg.Instruments {
		delay := InstrumentOffset(idx, n)
		eg.Go(func() error {
			if err := f.sleep(ctx, delay); err != nil {
				return nil
			}
			for _, g := range report.Due {
				switch err := f.liveFetch(ctx, inst, g); {
				case err == nil:
					appended.Add(1)
				case errors.Is(err, ErrCircuitOpen), isWait(err):
					skipped.Add(1)
				case ctx.Err() != nil:
					return nil
				default:
					failed.Add(1)
				}
			}
			return nil
		})
	}
	_ = eg.Wait()

	report.Appended = int(appended.Load())
	report.Skipped = int(skipped.Load())
	report.Failed = int(failed.Load())
	logger.Infof("[live] tick %s appended=%d skipped=%d failed=%d",
		tick.UTC().Format(time.RFC3339), report.Appended, report.Skipped, report.Failed)
	return report
}

func (f *Feeder) liveFetch(ctx context.Context, inst string, g market.Granularity) error {
	candles, err := f.Fetch(ctx, ModeLive, inst, g, f.cfg.LiveOutputSize, false)
	if err != nil {
		if isWait(err) {
			logger.Debugf("[live] skip %s %s: no credential available", inst, g)
		} else if ctx.Err() == nil {
			logger.Warnf("[live] skip %s %s: %v", inst, g, err)
		}
		return err
	}
	for _, c := range candles {
		if err := f.store.AppendOne(inst, g, c); err != nil {
			return err
		}
	}
	return nil
}

func isWait(err error) bool {
	var we *WaitError
	return errors.As(err, &we)
}

// Run bootstraps, then drives Tick from ticks until ctx ends.
func (f *Feeder) Run(ctx context.Context, start func(ctx context.Context, task func(ctx context.Context, tick time.Time))) error {
	if _, err := f.Bootstrap(ctx); err != nil {
		return err
	}
	start(ctx, func(ctx context.Context, tick time.Time) {
		f.Tick(ctx, tick)
	})
	return ctx.Err()
}
