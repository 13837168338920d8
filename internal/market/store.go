package market

// KlineStore is the rolling per-stream buffer written by the feeder and read by the query surface.
type KlineStore interface {
	ReplaceAll(instrument string, g Granularity, candles []Candle) error
	AppendOne(instrument string, g Granularity, candle Candle) error
	ReadAll(instrument string, g Granularity) []Candle
}
