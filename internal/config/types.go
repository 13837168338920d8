package config

import (
	"strings"
	"time"

	"datafeeder/internal/market"
)

// Config is loaded once at startup. Only app.log_level may change while running.
type Config struct {
	App         AppConfig         `toml:"app"`
	Market      MarketConfig      `toml:"market"`
	Provider    ProviderConfig    `toml:"provider"`
	Credentials CredentialsConfig `toml:"credentials"`
	Bootstrap   BootstrapConfig   `toml:"bootstrap"`
	Live        LiveConfig        `toml:"live"`
	Circuit     CircuitConfig     `toml:"circuit"`
	FetchLog    FetchLogConfig    `toml:"fetch_log"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

type MarketConfig struct {
	Instruments   []string       `toml:"instruments"`
	Granularities []string       `toml:"granularities"`
	History       map[string]int `toml:"history"`
}

// ParsedGranularities returns the configured granularities in configuration order.
// Call after validation; unparseable entries are skipped.
func (m MarketConfig) ParsedGranularities() []market.Granularity {
	out := make([]market.Granularity, 0, len(m.Granularities))
	for _, raw := range m.Granularities {
		if g, err := market.ParseGranularity(raw); err == nil {
			out = append(out, g)
		}
	}
	return out
}

// HistorySizes keys the history table by parsed granularity.
func (m MarketConfig) HistorySizes() map[market.Granularity]int {
	out := make(map[market.Granularity]int, len(m.History))
	for raw, n := range m.History {
		if g, err := market.ParseGranularity(raw); err == nil && n > 0 {
			out[g] = n
		}
	}
	return out
}

type ProviderConfig struct {
	Name           string `toml:"name"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Timezone       string `toml:"timezone"`
}

func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type CredentialsConfig struct {
	Keys        []string `toml:"keys"`
	EnvPrefix   string   `toml:"env_prefix"`
	MaxEnvSlots int      `toml:"max_env_slots"`
	DailyLimit  int      `toml:"daily_limit"`
	MinuteLimit int      `toml:"minute_limit"`

	// Resolved is the final ordered key list: config keys, then env slots.
	Resolved []string `toml:"-"`
}

type BootstrapConfig struct {
	BackoffSeconds int `toml:"backoff_seconds"`
	MaxRetries     int `toml:"max_retries"`
	PacingMs       int `toml:"pacing_ms"`
}

func (b BootstrapConfig) Backoff() time.Duration {
	return time.Duration(b.BackoffSeconds) * time.Second
}

func (b BootstrapConfig) Pacing() time.Duration {
	return time.Duration(b.PacingMs) * time.Millisecond
}

type LiveConfig struct {
	OffsetSeconds int `toml:"offset_seconds"`
	OutputSize    int `toml:"output_size"`
}

func (l LiveConfig) Offset() time.Duration {
	return time.Duration(l.OffsetSeconds) * time.Second
}

type CircuitConfig struct {
	Threshold       int `toml:"threshold"`
	CooldownSeconds int `toml:"cooldown_seconds"`
}

func (c CircuitConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

type FetchLogConfig struct {
	Enabled   bool   `toml:"enabled"`
	Path      string `toml:"path"`
	Retention int    `toml:"retention"`
}

// keySet records the dotted paths set explicitly in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault applies a default unless the key was set explicitly or need says no.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
