package config

import (
	"fmt"
	"net/url"
	"strings"

	"datafeeder/internal/market"
	"datafeeder/internal/pkg/symbol"
)

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Provider.validate(); err != nil {
		return err
	}
	if err := c.Credentials.validate(); err != nil {
		return err
	}
	if err := c.Bootstrap.validate(); err != nil {
		return err
	}
	if err := c.Live.validate(); err != nil {
		return err
	}
	if err := c.Circuit.validate(); err != nil {
		return err
	}
	return c.FetchLog.validate()
}

func (a *AppConfig) validate() error {
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level %q must be one of debug/info/warn/error", a.LogLevel)
	}
	return nil
}

// validate also normalizes instruments to their compact form and granularities to provider names.
func (m *MarketConfig) validate() error {
	if len(m.Instruments) == 0 {
		return fmt.Errorf("market.instruments requires at least one instrument")
	}
	for _, inst := range m.Instruments {
		if !symbol.IsValid(inst) {
			return fmt.Errorf("market.instruments contains invalid instrument %q", inst)
		}
	}
	m.Instruments = symbol.NormalizeList(m.Instruments)

	if len(m.Granularities) == 0 {
		return fmt.Errorf("market.granularities requires at least one granularity")
	}
	seen := make(map[market.Granularity]bool, len(m.Granularities))
	normalized := make([]string, 0, len(m.Granularities))
	for _, raw := range m.Granularities {
		g, err := market.ParseGranularity(raw)
		if err != nil {
			return fmt.Errorf("market.granularities: %w", err)
		}
		if seen[g] {
			continue
		}
		seen[g] = true
		normalized = append(normalized, string(g))
	}
	m.Granularities = normalized

	for raw, n := range m.History {
		if _, err := market.ParseGranularity(raw); err != nil {
			return fmt.Errorf("market.history: %w", err)
		}
		if n <= 0 {
			return fmt.Errorf("market.history.%s must be > 0", raw)
		}
	}
	return nil
}

func (p *ProviderConfig) validate() error {
	if !strings.EqualFold(strings.TrimSpace(p.Name), defaultProviderName) {
		return fmt.Errorf("provider.name %q is not supported (only %s)", p.Name, defaultProviderName)
	}
	u, err := url.Parse(strings.TrimSpace(p.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("provider.base_url %q must be an absolute URL", p.BaseURL)
	}
	if p.TimeoutSeconds <= 0 {
		return fmt.Errorf("provider.timeout_seconds must be > 0")
	}
	return nil
}

func (c *CredentialsConfig) validate() error {
	if c.DailyLimit <= 0 {
		return fmt.Errorf("credentials.daily_limit must be > 0")
	}
	if c.MinuteLimit <= 0 {
		return fmt.Errorf("credentials.minute_limit must be > 0")
	}
	if c.MaxEnvSlots < 0 {
		return fmt.Errorf("credentials.max_env_slots must be >= 0")
	}
	return nil
}

func (b *BootstrapConfig) validate() error {
	if b.BackoffSeconds <= 0 {
		return fmt.Errorf("bootstrap.backoff_seconds must be > 0")
	}
	if b.MaxRetries < 0 {
		return fmt.Errorf("bootstrap.max_retries must be >= 0 (0 retries forever)")
	}
	if b.PacingMs < 0 {
		return fmt.Errorf("bootstrap.pacing_ms must be >= 0")
	}
	return nil
}

func (l *LiveConfig) validate() error {
	if l.OffsetSeconds < 0 || l.OffsetSeconds >= 60 {
		return fmt.Errorf("live.offset_seconds must be within [0,60)")
	}
	if l.OutputSize <= 0 {
		return fmt.Errorf("live.output_size must be > 0")
	}
	return nil
}

func (c *CircuitConfig) validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("circuit.threshold must be >= 0 (0 disables)")
	}
	if c.Threshold > 0 && c.CooldownSeconds <= 0 {
		return fmt.Errorf("circuit.cooldown_seconds must be > 0")
	}
	return nil
}

func (f *FetchLogConfig) validate() error {
	if !f.Enabled {
		return nil
	}
	if strings.TrimSpace(f.Path) == "" {
		return fmt.Errorf("fetch_log.path cannot be empty when enabled")
	}
	if f.Retention <= 0 {
		return fmt.Errorf("fetch_log.retention must be > 0")
	}
	return nil
}
