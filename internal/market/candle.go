package market

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DatetimeLayout is the wire format for candle timestamps, always UTC.
const DatetimeLayout = "2006-01-02 15:04:05"

// Candle is one OHLC observation keyed by its open timestamp.
type Candle struct {
	Datetime time.Time        `json:"-"`
	Open     decimal.Decimal  `json:"open"`
	High     decimal.Decimal  `json:"high"`
	Low      decimal.Decimal  `json:"low"`
	Close    decimal.Decimal  `json:"close"`
	Volume   *decimal.Decimal `json:"volume,omitempty"`
}

type candleJSON struct {
	Datetime string           `json:"datetime"`
	Open     decimal.Decimal  `json:"open"`
	High     decimal.Decimal  `json:"high"`
	Low      decimal.Decimal  `json:"low"`
	Close    decimal.Decimal  `json:"close"`
	Volume   *decimal.Decimal `json:"volume,omitempty"`
}

func (c Candle) MarshalJSON() ([]byte, error) {
	return json.Marshal(candleJSON{
		Datetime: c.Datetime.UTC().Format(DatetimeLayout),
		Open:     c.Open,
		High:     c.High,
		Low:      c.Low,
		Close:    c.Close,
		Volume:   c.Volume,
	})
}

func (c *Candle) UnmarshalJSON(data []byte) error {
	var raw candleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := ParseDatetime(raw.Datetime)
	if err != nil {
		return err
	}
	*c = Candle{
		Datetime: ts,
		Open:     raw.Open,
		High:     raw.High,
		Low:      raw.Low,
		Close:    raw.Close,
		Volume:   raw.Volume,
	}
	return nil
}

// ParseDatetime accepts the intraday layout and the date-only layout used for daily bars.
func ParseDatetime(s string) (time.Time, error) {
	if ts, err := time.ParseInLocation(DatetimeLayout, s, time.UTC); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid candle datetime %q", s)
	}
	return ts, nil
}

type Candles []Candle

// Newest returns the most recent candle by timestamp regardless of slice order.
func (cs Candles) Newest() (Candle, bool) {
	if len(cs) == 0 {
		return Candle{}, false
	}
	best := cs[0]
	for _, c := range cs[1:] {
		if c.Datetime.After(best.Datetime) {
			best = c
		}
	}
	return best, true
}
