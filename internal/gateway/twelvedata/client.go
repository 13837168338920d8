// Package twelvedata fetches time_series candles from the TwelveData REST API.
package twelvedata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"datafeeder/internal/logger"
	"datafeeder/internal/market"
	symbolpkg "datafeeder/internal/pkg/symbol"
)

const (
	DefaultBaseURL = "https://api.twelvedata.com"
	DefaultTimeout = 30 * time.Second
	timeSeriesPath = "/time_series"
	maxOutputSize  = 5000
	maxBodyBytes   = 8 << 20
)

// Client implements market.Source. It never retries; retry policy belongs to the feeder.
type Client struct {
	baseURL    string
	timezone   string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimezone sets the timezone parameter; candle datetimes are parsed as UTC so this should stay "UTC".
func WithTimezone(tz string) ClientOption {
	return func(c *Client) {
		if tz = strings.TrimSpace(tz); tz != "" {
			c.timezone = tz
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		timezone:   "UTC",
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ market.Source = (*Client)(nil)

// FetchCandles requests the latest outputSize bars. Transport and HTTP status problems
// come back as market.KindTransport, unusable bodies as market.KindMalformed.
func (c *Client) FetchCandles(ctx context.Context, instrument string, g market.Granularity, outputSize int, apiKey string) ([]market.Candle, error) {
	sym := symbolpkg.Parse(instrument)
	if sym.Provider() == "" {
		return nil, market.MalformedError(fmt.Errorf("unsupported instrument %q", instrument))
	}
	if outputSize <= 0 {
		outputSize = 1
	}
	if outputSize > maxOutputSize {
		outputSize = maxOutputSize
	}
	query := url.Values{}
	query.Set("symbol", sym.Provider())
	query.Set("interval", string(g))
	query.Set("outputsize", strconv.Itoa(outputSize))
	query.Set("timezone", c.timezone)
	query.Set("apikey", apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+timeSeriesPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, market.TransportError(0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, market.TransportError(0, fmt.Errorf("do request: %w", redactKey(err, apiKey)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, market.TransportError(resp.StatusCode, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, market.TransportError(resp.StatusCode, errors.New(http.StatusText(resp.StatusCode)))
	}

	candles, err := parseTimeSeries(body)
	if err != nil {
		return nil, market.MalformedError(err)
	}
	logger.Debugf("twelvedata %s %s outputsize=%d candles=%d dur=%s",
		sym.Provider(), g, outputSize, len(candles), time.Since(start).Truncate(time.Millisecond))
	return candles, nil
}

// redactKey keeps API keys out of logged url.Error messages.
func redactKey(err error, apiKey string) error {
	if apiKey == "" || !strings.Contains(err.Error(), apiKey) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), apiKey, "***"))
}
