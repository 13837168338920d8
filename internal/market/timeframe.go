package market

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Granularity is a candle bucket size named the way the provider names it ("1min", "4h").
type Granularity string

const (
	Granularity1Min  Granularity = "1min"
	Granularity5Min  Granularity = "5min"
	Granularity15Min Granularity = "15min"
	Granularity30Min Granularity = "30min"
	Granularity1H    Granularity = "1h"
	Granularity2H    Granularity = "2h"
	Granularity4H    Granularity = "4h"
	Granularity8H    Granularity = "8h"
	Granularity1Day  Granularity = "1day"
)

type timeframe struct {
	display  string
	duration time.Duration
}

var supportedTimeframes = map[Granularity]timeframe{
	Granularity1Min:  {display: "1m", duration: time.Minute},
	Granularity5Min:  {display: "5m", duration: 5 * time.Minute},
	Granularity15Min: {display: "15m", duration: 15 * time.Minute},
	Granularity30Min: {display: "30m", duration: 30 * time.Minute},
	Granularity1H:    {display: "1h", duration: time.Hour},
	Granularity2H:    {display: "2h", duration: 2 * time.Hour},
	Granularity4H:    {display: "4h", duration: 4 * time.Hour},
	Granularity8H:    {display: "8h", duration: 8 * time.Hour},
	Granularity1Day:  {display: "1d", duration: 24 * time.Hour},
}

// ParseGranularity accepts either the provider name or the display key.
func ParseGranularity(input string) (Granularity, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	if _, ok := supportedTimeframes[Granularity(key)]; ok {
		return Granularity(key), nil
	}
	for g, tf := range supportedTimeframes {
		if tf.display == key {
			return g, nil
		}
	}
	return "", fmt.Errorf("unsupported granularity: %s", input)
}

// Duration returns the bucket length; ok is false for unknown granularities.
func (g Granularity) Duration() (time.Duration, bool) {
	tf, ok := supportedTimeframes[g]
	return tf.duration, ok
}

// Display returns the short key used in query responses ("1m", "4h").
func (g Granularity) Display() string {
	if tf, ok := supportedTimeframes[g]; ok {
		return tf.display
	}
	return string(g)
}

func (g Granularity) String() string { return string(g) }

// SortByPriority orders granularities fastest first. Unknown ones go last, in input order.
func SortByPriority(gs []Granularity) []Granularity {
	out := make([]Granularity, len(gs))
	copy(out, gs)
	sort.SliceStable(out, func(i, j int) bool {
		di, oki := out[i].Duration()
		dj, okj := out[j].Duration()
		if oki != okj {
			return oki
		}
		return di < dj
	})
	return out
}

// SupportedGranularities returns every known granularity in priority order.
func SupportedGranularities() []Granularity {
	out := make([]Granularity, 0, len(supportedTimeframes))
	for g := range supportedTimeframes {
		out = append(out, g)
	}
	return SortByPriority(out)
}
