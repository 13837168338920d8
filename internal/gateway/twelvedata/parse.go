package twelvedata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"datafeeder/internal/market"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const timeSeriesSchema = `{
  "type": "object",
  "required": ["values"],
  "properties": {
    "values": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["datetime", "open", "high", "low", "close"],
        "properties": {
          "datetime": {"type": "string"},
          "open":     {"type": ["string", "number"]},
          "high":     {"type": ["string", "number"]},
          "low":      {"type": ["string", "number"]},
          "close":    {"type": ["string", "number"]},
          "volume":   {"type": ["string", "number"]}
        }
      }
    }
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("time_series.json", strings.NewReader(timeSeriesSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("time_series.json")
}

// parseTimeSeries checks the payload shape and converts values[] into candles in
// provider order (newest first). Prices are passed through as decimals, not range-checked.
func parseTimeSeries(body []byte) ([]market.Candle, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json body")
	}
	if status := gjson.GetBytes(body, "status").String(); status == "error" {
		return nil, fmt.Errorf("provider error code=%d: %s",
			gjson.GetBytes(body, "code").Int(), gjson.GetBytes(body, "message").String())
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("unexpected payload shape: %w", err)
	}

	values := gjson.GetBytes(body, "values").Array()
	out := make([]market.Candle, 0, len(values))
	for i, v := range values {
		c, err := parseValue(v)
		if err != nil {
			return nil, fmt.Errorf("values[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseValue(v gjson.Result) (market.Candle, error) {
	ts, err := market.ParseDatetime(v.Get("datetime").String())
	if err != nil {
		return market.Candle{}, err
	}
	c := market.Candle{Datetime: ts}
	fields := []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"open", &c.Open},
		{"high", &c.High},
		{"low", &c.Low},
		{"close", &c.Close},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(v.Get(f.name).String())
		if err != nil {
			return market.Candle{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d
	}
	if vol := v.Get("volume"); vol.Exists() {
		d, err := decimal.NewFromString(vol.String())
		if err != nil {
			return market.Candle{}, fmt.Errorf("volume: %w", err)
		}
		c.Volume = &d
	}
	return c, nil
}
