package fetchlog

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"datafeeder/internal/feeder"
	"datafeeder/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, retention int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "logs", "fetch.db"), retention)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTemp(t, 0)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 15, 5, 0, time.UTC)

	s.Record(ctx, feeder.Attempt{
		Mode: feeder.ModeBootstrap, Instrument: "EURUSD", Granularity: market.Granularity1Min,
		Credential: "key_1", Outcome: feeder.OutcomeOK, Candles: 500, Latency: 420 * time.Millisecond, At: at,
	})
	s.Record(ctx, feeder.Attempt{
		Mode: feeder.ModeLive, Instrument: "XAUUSD", Granularity: market.Granularity5Min,
		Credential: "key_2", Outcome: feeder.OutcomeTransport, Err: "status 502", At: at.Add(time.Minute),
	})

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "XAUUSD", got[0].Instrument, "newest first")
	assert.Equal(t, "transport", got[0].Outcome)
	assert.Equal(t, "status 502", got[0].Error)
	assert.Equal(t, "live", got[0].Mode)

	assert.Equal(t, "1min", got[1].Granularity)
	assert.Equal(t, 500, got[1].Candles)
	assert.Equal(t, int64(420), got[1].LatencyMs)
	assert.Empty(t, got[1].Error)
	assert.True(t, at.Equal(got[1].AttemptedAt))
}

func TestRetentionPrunesOldest(t *testing.T) {
	s := openTemp(t, 5)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		s.Record(ctx, feeder.Attempt{Mode: feeder.ModeLive, Instrument: fmt.Sprintf("I%02d", i), Outcome: feeder.OutcomeOK})
	}
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	got, err := s.Recent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "I11", got[0].Instrument)
	assert.Equal(t, "I07", got[4].Instrument)
}

func TestRecentLimit(t *testing.T) {
	s := openTemp(t, 0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.Record(ctx, feeder.Attempt{Instrument: "EURUSD", Outcome: feeder.OutcomeNoData})
	}
	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("  ", 0)
	assert.Error(t, err)
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	s.Record(context.Background(), feeder.Attempt{})
	_, err := s.Recent(context.Background(), 1)
	assert.Error(t, err)
	assert.NoError(t, s.Close())
}
