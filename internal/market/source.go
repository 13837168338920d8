package market

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoConfirmedData means the provider answered but nothing passed the closure filter.
var ErrNoConfirmedData = errors.New("no confirmed closed candles")

type FailureKind int

const (
	KindTransport FailureKind = iota + 1
	KindMalformed
)

func (k FailureKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// FetchError is a provider failure the scheduler can retry or skip.
type FetchError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failure (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func TransportError(status int, err error) error {
	return &FetchError{Kind: KindTransport, StatusCode: status, Err: err}
}

func MalformedError(err error) error {
	return &FetchError{Kind: KindMalformed, Err: err}
}

// FailureKindOf classifies err; zero means it is not a provider failure.
func FailureKindOf(err error) FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// Source performs one provider request with the given API key. Candles come back
// in whatever order the provider sent them and are not yet filtered for closure.
type Source interface {
	FetchCandles(ctx context.Context, instrument string, g Granularity, outputSize int, apiKey string) ([]Candle, error)
}
