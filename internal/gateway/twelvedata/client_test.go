package twelvedata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"datafeeder/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okBody = `{
  "meta": {"symbol": "EUR/USD", "interval": "1min"},
  "values": [
    {"datetime": "2024-03-01 12:02:00", "open": "1.0852", "high": "1.0855", "low": "1.0850", "close": "1.0853"},
    {"datetime": "2024-03-01 12:01:00", "open": "1.0850", "high": "1.0853", "low": "1.0849", "close": "1.0852", "volume": "120"}
  ],
  "status": "ok"
}`

func newTestServer(t *testing.T, status int, body string, seen *http.Request) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = *r.Clone(context.Background())
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchCandlesSuccess(t *testing.T) {
	var seen http.Request
	srv := newTestServer(t, http.StatusOK, okBody, &seen)
	c := NewClient(srv.URL)

	got, err := c.FetchCandles(context.Background(), "EURUSD", market.Granularity1Min, 2, "k-123")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, time.Date(2024, 3, 1, 12, 2, 0, 0, time.UTC), got[0].Datetime, "provider order is kept")
	assert.Equal(t, "1.0853", got[0].Close.String())
	assert.Nil(t, got[0].Volume)
	require.NotNil(t, got[1].Volume)
	assert.Equal(t, "120", got[1].Volume.String())

	assert.Equal(t, timeSeriesPath, seen.URL.Path)
	q := seen.URL.Query()
	assert.Equal(t, "EUR/USD", q.Get("symbol"))
	assert.Equal(t, "1min", q.Get("interval"))
	assert.Equal(t, "2", q.Get("outputsize"))
	assert.Equal(t, "UTC", q.Get("timezone"))
	assert.Equal(t, "k-123", q.Get("apikey"))
}

func TestFetchCandlesClampsOutputSize(t *testing.T) {
	var seen http.Request
	srv := newTestServer(t, http.StatusOK, `{"values": []}`, &seen)
	c := NewClient(srv.URL)

	_, err := c.FetchCandles(context.Background(), "XAU/USD", market.Granularity4H, 0, "k")
	require.NoError(t, err)
	assert.Equal(t, "1", seen.URL.Query().Get("outputsize"))
	assert.Equal(t, "XAU/USD", seen.URL.Query().Get("symbol"))

	_, err = c.FetchCandles(context.Background(), "XAUUSD", market.Granularity4H, 9000, "k")
	require.NoError(t, err)
	assert.Equal(t, "5000", seen.URL.Query().Get("outputsize"))
}

func TestFetchCandlesNon200IsTransport(t *testing.T) {
	srv := newTestServer(t, http.StatusTooManyRequests, `{"status":"error"}`, nil)
	c := NewClient(srv.URL)

	_, err := c.FetchCandles(context.Background(), "EURUSD", market.Granularity1Min, 1, "k")
	require.Error(t, err)
	assert.Equal(t, market.KindTransport, market.FailureKindOf(err))

	var fe *market.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusTooManyRequests, fe.StatusCode)
}

func TestFetchCandlesMalformedBodies(t *testing.T) {
	cases := map[string]string{
		"provider error":  `{"code": 400, "message": "symbol not found", "status": "error"}`,
		"missing values":  `{"meta": {}, "status": "ok"}`,
		"values not list": `{"values": {"datetime": "x"}}`,
		"missing close":   `{"values": [{"datetime": "2024-03-01 12:00:00", "open": "1", "high": "1", "low": "1"}]}`,
		"bad price":       `{"values": [{"datetime": "2024-03-01 12:00:00", "open": "x", "high": "1", "low": "1", "close": "1"}]}`,
		"bad datetime":    `{"values": [{"datetime": "yesterday", "open": "1", "high": "1", "low": "1", "close": "1"}]}`,
		"not json":        `<html>gateway</html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, http.StatusOK, body, nil)
			_, err := NewClient(srv.URL).FetchCandles(context.Background(), "EURUSD", market.Granularity1Min, 1, "k")
			require.Error(t, err)
			assert.Equal(t, market.KindMalformed, market.FailureKindOf(err))
		})
	}
}

func TestFetchCandlesProviderErrorMessage(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code": 429, "message": "run out of API credits", "status": "error"}`, nil)
	_, err := NewClient(srv.URL).FetchCandles(context.Background(), "EURUSD", market.Granularity1Min, 1, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run out of API credits")
}

func TestFetchCandlesNumericPrices(t *testing.T) {
	body := `{"values": [{"datetime": "2024-03-01", "open": 1.5, "high": 2, "low": 1, "close": 1.75}]}`
	srv := newTestServer(t, http.StatusOK, body, nil)
	got, err := NewClient(srv.URL).FetchCandles(context.Background(), "EURUSD", market.Granularity1Day, 1, "k")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1.75", got[0].Close.String())
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got[0].Datetime)
}

func TestFetchCandlesTimeoutIsTransportAndRedacted(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	c := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.FetchCandles(context.Background(), "EURUSD", market.Granularity1Min, 1, "very-secret-key")
	require.Error(t, err)
	assert.Equal(t, market.KindTransport, market.FailureKindOf(err))
	assert.NotContains(t, err.Error(), "very-secret-key")
}

func TestFetchCandlesRejectsUnknownInstrument(t *testing.T) {
	c := NewClient("http://127.0.0.1:0")
	_, err := c.FetchCandles(context.Background(), "EURO", market.Granularity1Min, 1, "k")
	require.Error(t, err)
	assert.Equal(t, market.KindMalformed, market.FailureKindOf(err))
}
