package feeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"datafeeder/internal/credential"
	"datafeeder/internal/logger"
	"datafeeder/internal/market"
)

type Mode string

const (
	ModeBootstrap Mode = "bootstrap"
	ModeLive      Mode = "live"
)

// ErrCircuitOpen is reported as a transport failure while the provider breaker is open.
var ErrCircuitOpen = errors.New("provider circuit open")

// WaitError means no credential was free; Wait is how long until one should be.
type WaitError struct {
	Wait time.Duration
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("%v (retry in %s)", credential.ErrExhausted, e.Wait)
}

func (e *WaitError) Unwrap() error { return credential.ErrExhausted }

// Attempt describes one provider call for the audit trail.
type Attempt struct {
	Mode        Mode
	Instrument  string
	Granularity market.Granularity
	Credential  string
	Outcome     string
	Candles     int
	Latency     time.Duration
	Err         string
	At          time.Time
}

const (
	OutcomeOK          = "ok"
	OutcomeNoData      = "no_data"
	OutcomeTransport   = "transport"
	OutcomeMalformed   = "malformed"
	OutcomeCanceled    = "canceled"
	OutcomeCircuitOpen = "circuit_open"
)

type Recorder interface {
	Record(ctx context.Context, a Attempt)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Attempt) {}

// acquire checks the breaker, then reserves a credential. It never waits.
func (f *Feeder) acquire() (credential.Reservation, error) {
	if !f.breaker.Allow() {
		return credential.Reservation{}, market.TransportError(0, ErrCircuitOpen)
	}
	r, ok, wait := f.pool.Reserve()
	if !ok {
		return credential.Reservation{}, &WaitError{Wait: wait}
	}
	return r, nil
}

// fetchWith spends r on one provider call and returns at most outputSize confirmed
// candles, oldest first. One extra bar is requested because the newest one the
// provider sends is usually still forming.
func (f *Feeder) fetchWith(ctx context.Context, mode Mode, r credential.Reservation, instrument string, g market.Granularity, outputSize int) ([]market.Candle, error) {
	att := Attempt{Mode: mode, Instrument: instrument, Granularity: g, Credential: r.Label(), At: f.nowFn().UTC()}
	if err := ctx.Err(); err != nil {
		// Nothing left the process, so the quota charge is returned.
		f.pool.RecordFailure(r)
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	start := time.Now()
	raw, err := f.source.FetchCandles(callCtx, instrument, g, outputSize+1, r.Key)
	cancel()
	att.Latency = time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			att.Outcome, att.Err = OutcomeCanceled, ctx.Err().Error()
			f.recorder.Record(context.WithoutCancel(ctx), att)
			return nil, ctx.Err()
		}
		if market.FailureKindOf(err) == 0 {
			err = market.TransportError(0, err)
		}
		if market.FailureKindOf(err) == market.KindTransport {
			f.breaker.RecordFailure()
			att.Outcome = OutcomeTransport
		} else {
			f.breaker.RecordSuccess()
			att.Outcome = OutcomeMalformed
		}
		att.Err = err.Error()
		f.recorder.Record(ctx, att)
		return nil, fmt.Errorf("%s %s via %s: %w", instrument, g, r.Label(), err)
	}
	f.breaker.RecordSuccess()

	confirmed := market.KeepConfirmed(raw, g, f.nowFn(), outputSize)
	att.Candles = len(confirmed)
	if len(confirmed) == 0 {
		att.Outcome = OutcomeNoData
		f.recorder.Record(ctx, att)
		return nil, fmt.Errorf("%s %s: %w", instrument, g, market.ErrNoConfirmedData)
	}
	att.Outcome = OutcomeOK
	f.recorder.Record(ctx, att)
	logger.Debugf("[%s] %s %s via %s kept=%d/%d", mode, instrument, g, r.Label(), len(confirmed), len(raw))
	return confirmed, nil
}

// Fetch is the shared primitive: reserve, call, filter. With mayWait it sleeps
// through credential scarcity; otherwise scarcity comes back as *WaitError.
func (f *Feeder) Fetch(ctx context.Context, mode Mode, instrument string, g market.Granularity, outputSize int, mayWait bool) ([]market.Candle, error) {
	for {
		r, err := f.acquire()
		var we *WaitError
		if errors.As(err, &we) && mayWait {
			if err := f.sleep(ctx, we.Wait); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			f.recordRejected(ctx, mode, instrument, g, err)
			return nil, err
		}
		return f.fetchWith(ctx, mode, r, instrument, g, outputSize)
	}
}

func (f *Feeder) recordRejected(ctx context.Context, mode Mode, instrument string, g market.Granularity, err error) {
	if !errors.Is(err, ErrCircuitOpen) {
		return
	}
	f.recorder.Record(ctx, Attempt{Mode: mode, Instrument: instrument, Granularity: g,
		Outcome: OutcomeCircuitOpen, Err: err.Error(), At: f.nowFn().UTC()})
}
