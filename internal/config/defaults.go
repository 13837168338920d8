package config

import (
	"strings"

	"datafeeder/internal/market"
)

const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppHTTPAddr    = ":8000"
	defaultProviderName   = "twelvedata"
	defaultProviderURL    = "https://api.twelvedata.com"
	defaultProviderTZ     = "UTC"
	defaultTimeoutSeconds = 30
	defaultEnvPrefix      = "TWELVEDATA_KEY_"
	defaultMaxEnvSlots    = 36
	defaultDailyLimit     = 800
	defaultMinuteLimit    = 8
	defaultBackoffSeconds = 10
	defaultPacingMs       = 200
	defaultLiveOffset     = 5
	defaultLiveOutputSize = 1
	defaultCircuitTrip    = 5
	defaultCircuitCool    = 60
	defaultFetchLogPath   = "data/fetchlog.db"
	defaultFetchLogRows   = 10000
	defaultHistorySize    = 100
)

var (
	defaultInstruments = []string{
		"EURUSD", "GBPUSD", "USDJPY", "USDCHF", "USDCAD", "AUDUSD",
		"EURJPY", "GBPJPY", "AUDJPY", "EURCHF", "XAUUSD", "NZDUSD",
	}
	defaultGranularities = []string{"1min", "5min", "15min", "1h", "4h"}
	defaultHistory       = map[string]int{
		"1min":  500,
		"5min":  300,
		"15min": 200,
		"1h":    120,
		"4h":    100,
	}
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Provider.applyDefaults(keys)
	c.Credentials.applyDefaults(keys)
	c.Bootstrap.applyDefaults(keys)
	c.Live.applyDefaults(keys)
	c.Circuit.applyDefaults(keys)
	c.FetchLog.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if len(m.Instruments) == 0 {
		m.Instruments = append([]string(nil), defaultInstruments...)
	}
	if len(m.Granularities) == 0 {
		m.Granularities = append([]string(nil), defaultGranularities...)
	}
	if m.History == nil {
		m.History = make(map[string]int, len(defaultHistory))
	}
	// Fill sizes per granularity so a partial history table keeps the rest of the defaults.
	for _, raw := range m.Granularities {
		name := strings.ToLower(strings.TrimSpace(raw))
		if g, err := market.ParseGranularity(name); err == nil {
			name = string(g)
		}
		if n, ok := m.History[name]; ok && n > 0 {
			continue
		}
		if keys.isSet("market.history." + name) {
			continue
		}
		if n, ok := defaultHistory[name]; ok {
			m.History[name] = n
		} else {
			m.History[name] = defaultHistorySize
		}
	}
}

func (p *ProviderConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("provider.name", &p.Name, defaultProviderName),
		stringFieldDefault("provider.base_url", &p.BaseURL, defaultProviderURL),
		stringFieldDefault("provider.timezone", &p.Timezone, defaultProviderTZ),
		intFieldDefault("provider.timeout_seconds", &p.TimeoutSeconds, defaultTimeoutSeconds),
	)
}

func (c *CredentialsConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("credentials.env_prefix", &c.EnvPrefix, defaultEnvPrefix),
		intFieldDefault("credentials.max_env_slots", &c.MaxEnvSlots, defaultMaxEnvSlots),
		intFieldDefault("credentials.daily_limit", &c.DailyLimit, defaultDailyLimit),
		intFieldDefault("credentials.minute_limit", &c.MinuteLimit, defaultMinuteLimit),
	)
}

func (b *BootstrapConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("bootstrap.backoff_seconds", &b.BackoffSeconds, defaultBackoffSeconds),
		intFieldDefault("bootstrap.pacing_ms", &b.PacingMs, defaultPacingMs),
	)
}

func (l *LiveConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("live.offset_seconds", &l.OffsetSeconds, defaultLiveOffset),
		intFieldDefault("live.output_size", &l.OutputSize, defaultLiveOutputSize),
	)
}

func (c *CircuitConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("circuit.threshold", &c.Threshold, defaultCircuitTrip),
		intFieldDefault("circuit.cooldown_seconds", &c.CooldownSeconds, defaultCircuitCool),
	)
}

func (f *FetchLogConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("fetch_log.path", &f.Path, defaultFetchLogPath),
		intFieldDefault("fetch_log.retention", &f.Retention, defaultFetchLogRows),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == 0 },
		apply: func() { *target = def },
	}
}
