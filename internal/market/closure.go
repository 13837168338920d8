package market

import (
	"sort"
	"time"
)

// IsClosing reports whether a candle of granularity g closes exactly at the minute containing t.
func IsClosing(g Granularity, t time.Time) bool {
	t = t.UTC()
	minute, hour := t.Minute(), t.Hour()
	switch g {
	case Granularity1Min:
		return true
	case Granularity5Min:
		return minute%5 == 0
	case Granularity15Min:
		return minute%15 == 0
	case Granularity30Min:
		return minute%30 == 0
	case Granularity1H:
		return minute == 0
	case Granularity2H:
		return hour%2 == 0 && minute == 0
	case Granularity4H:
		return hour%4 == 0 && minute == 0
	case Granularity8H:
		return hour%8 == 0 && minute == 0
	case Granularity1Day:
		return hour == 0 && minute == 0
	}
	return false
}

// DueGranularities filters configured down to those closing at t, fastest first.
func DueGranularities(t time.Time, configured []Granularity) []Granularity {
	var due []Granularity
	for _, g := range configured {
		if IsClosing(g, t) {
			due = append(due, g)
		}
	}
	return SortByPriority(due)
}

// IsConfirmedClosed reports whether the candle opened at ts has fully elapsed by now.
// Unknown granularities never confirm.
func IsConfirmedClosed(ts time.Time, g Granularity, now time.Time) bool {
	d, ok := g.Duration()
	if !ok {
		return false
	}
	return !now.Before(ts.Add(d))
}

// KeepConfirmed drops candles still in progress at now, keeps at most limit of the
// newest survivors, and returns them oldest first.
func KeepConfirmed(candles []Candle, g Granularity, now time.Time, limit int) []Candle {
	closed := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if IsConfirmedClosed(c.Datetime, g, now) {
			closed = append(closed, c)
		}
	}
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].Datetime.Before(closed[j].Datetime)
	})
	if limit > 0 && len(closed) > limit {
		closed = closed[len(closed)-limit:]
	}
	return closed
}
