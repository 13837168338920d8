package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"datafeeder/internal/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func candleAt(minute int, close string) market.Candle {
	return market.Candle{
		Datetime: base.Add(time.Duration(minute) * time.Minute),
		Close:    decimal.RequireFromString(close),
	}
}

func newStore(capacity int) *MemoryKlineStore {
	return NewMemoryKlineStore(
		[]string{"EURUSD", "XAUUSD"},
		[]market.Granularity{market.Granularity1Min, market.Granularity5Min},
		map[market.Granularity]int{market.Granularity1Min: capacity},
	)
}

func minutes(cs []market.Candle) []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = int(c.Datetime.Sub(base) / time.Minute)
	}
	return out
}

func TestAppendOneIsIdempotent(t *testing.T) {
	s := newStore(10)
	require.NoError(t, s.AppendOne("EURUSD", market.Granularity1Min, candleAt(1, "1.1")))
	require.NoError(t, s.AppendOne("EURUSD", market.Granularity1Min, candleAt(1, "1.2")))

	got := s.ReadAll("EURUSD", market.Granularity1Min)
	require.Len(t, got, 1)
	assert.Equal(t, "1.1", got[0].Close.String(), "first write wins")
}

func TestAppendOneKeepsTimeOrderAndCapacity(t *testing.T) {
	s := newStore(3)
	for _, m := range []int{1, 3, 2, 4, 0} {
		require.NoError(t, s.AppendOne("EURUSD", market.Granularity1Min, candleAt(m, "1")))
	}
	assert.Equal(t, []int{2, 3, 4}, minutes(s.ReadAll("EURUSD", market.Granularity1Min)))
}

func TestReplaceAllSortsDedupsAndTrims(t *testing.T) {
	s := newStore(3)
	in := []market.Candle{candleAt(5, "1"), candleAt(4, "1"), candleAt(4, "2"), candleAt(3, "1"), candleAt(2, "1"), candleAt(1, "1")}
	require.NoError(t, s.ReplaceAll("EURUSD", market.Granularity1Min, in))
	assert.Equal(t, []int{3, 4, 5}, minutes(s.ReadAll("EURUSD", market.Granularity1Min)))

	require.NoError(t, s.ReplaceAll("EURUSD", market.Granularity1Min, []market.Candle{candleAt(9, "1")}))
	assert.Equal(t, []int{9}, minutes(s.ReadAll("EURUSD", market.Granularity1Min)))
}

func TestDefaultCapacity(t *testing.T) {
	s := newStore(3)
	for m := 0; m < DefaultCapacity+5; m++ {
		require.NoError(t, s.AppendOne("XAUUSD", market.Granularity5Min, candleAt(m*5, "1")))
	}
	assert.Len(t, s.ReadAll("XAUUSD", market.Granularity5Min), DefaultCapacity)
}

func TestUnknownStreamRejected(t *testing.T) {
	s := newStore(3)
	assert.ErrorIs(t, s.AppendOne("GBPUSD", market.Granularity1Min, candleAt(0, "1")), ErrUnknownStream)
	assert.ErrorIs(t, s.ReplaceAll("EURUSD", market.Granularity4H, nil), ErrUnknownStream)
	assert.Empty(t, s.ReadAll("GBPUSD", market.Granularity1Min))
	assert.False(t, s.HasInstrument("GBPUSD"))
	assert.True(t, s.HasInstrument("EURUSD"))
}

func TestReadAllReturnsCopy(t *testing.T) {
	s := newStore(3)
	require.NoError(t, s.AppendOne("EURUSD", market.Granularity1Min, candleAt(0, "1")))
	got := s.ReadAll("EURUSD", market.Granularity1Min)
	got[0].Close = decimal.NewFromInt(99)
	assert.Equal(t, "1", s.ReadAll("EURUSD", market.Granularity1Min)[0].Close.String())
}

func TestSnapshotAndStats(t *testing.T) {
	s := newStore(3)
	require.NoError(t, s.AppendOne("EURUSD", market.Granularity5Min, candleAt(0, "1")))

	snap := s.Snapshot("EURUSD")
	assert.Len(t, snap["5m"], 1)
	assert.Empty(t, snap["1m"])

	stats := s.Stats()
	assert.Equal(t, map[string]int{"1m": 0, "5m": 1}, stats["EURUSD"])
	assert.Equal(t, map[string]int{"1m": 0, "5m": 0}, stats["XAUUSD"])
}

func TestConcurrentWriters(t *testing.T) {
	s := NewMemoryKlineStore(
		[]string{"A", "B", "C", "D"},
		[]market.Granularity{market.Granularity1Min},
		map[market.Granularity]int{market.Granularity1Min: 500},
	)
	var wg sync.WaitGroup
	for _, inst := range s.Instruments() {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(inst string) {
				defer wg.Done()
				for m := 0; m < 200; m++ {
					_ = s.AppendOne(inst, market.Granularity1Min, candleAt(m, fmt.Sprint(m)))
				}
			}(inst)
		}
	}
	wg.Wait()
	for _, inst := range s.Instruments() {
		got := s.ReadAll(inst, market.Granularity1Min)
		require.Len(t, got, 200)
		for i := 1; i < len(got); i++ {
			assert.True(t, got[i-1].Datetime.Before(got[i].Datetime))
		}
	}
}
