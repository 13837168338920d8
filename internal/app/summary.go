package app

import (
	"fmt"

	"datafeeder/internal/config"
	"datafeeder/internal/logger"

	"gopkg.in/yaml.v3"
)

// StartupSummary is the effective configuration with credentials reduced to slot labels.
type StartupSummary struct {
	Env         string             `yaml:"env"`
	HTTPAddr    string             `yaml:"http_addr"`
	Provider    providerSummary    `yaml:"provider"`
	Market      marketSummary      `yaml:"market"`
	Credentials credentialsSummary `yaml:"credentials"`
	Bootstrap   bootstrapSummary   `yaml:"bootstrap"`
	Live        liveSummary        `yaml:"live"`
	Circuit     circuitSummary     `yaml:"circuit"`
	FetchLog    fetchLogSummary    `yaml:"fetch_log"`
}

type providerSummary struct {
	Name     string `yaml:"name"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
	Timezone string `yaml:"timezone"`
}

type marketSummary struct {
	Instruments   []string       `yaml:"instruments"`
	Granularities []string       `yaml:"granularities"`
	History       map[string]int `yaml:"history"`
}

type credentialsSummary struct {
	Slots       []string `yaml:"slots"`
	DailyLimit  int      `yaml:"daily_limit"`
	MinuteLimit int      `yaml:"minute_limit"`
}

type bootstrapSummary struct {
	Backoff    string `yaml:"backoff"`
	MaxRetries int    `yaml:"max_retries"`
	Pacing     string `yaml:"pacing"`
}

type liveSummary struct {
	Offset     string `yaml:"offset"`
	OutputSize int    `yaml:"output_size"`
}

type circuitSummary struct {
	Threshold int    `yaml:"threshold"`
	Cooldown  string `yaml:"cooldown"`
}

type fetchLogSummary struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path,omitempty"`
	Retention int    `yaml:"retention,omitempty"`
}

func provideSummary(cfg *config.Config) *StartupSummary {
	slots := make([]string, len(cfg.Credentials.Resolved))
	for i := range slots {
		slots[i] = fmt.Sprintf("key_%d", i+1)
	}
	history := make(map[string]int, len(cfg.Market.History))
	for g, n := range cfg.Market.HistorySizes() {
		history[string(g)] = n
	}
	s := &StartupSummary{
		Env:      cfg.App.Env,
		HTTPAddr: cfg.App.HTTPAddr,
		Provider: providerSummary{
			Name:     cfg.Provider.Name,
			BaseURL:  cfg.Provider.BaseURL,
			Timeout:  cfg.Provider.Timeout().String(),
			Timezone: cfg.Provider.Timezone,
		},
		Market: marketSummary{
			Instruments:   append([]string(nil), cfg.Market.Instruments...),
			Granularities: append([]string(nil), cfg.Market.Granularities...),
			History:       history,
		},
		Credentials: credentialsSummary{
			Slots:       slots,
			DailyLimit:  cfg.Credentials.DailyLimit,
			MinuteLimit: cfg.Credentials.MinuteLimit,
		},
		Bootstrap: bootstrapSummary{
			Backoff:    cfg.Bootstrap.Backoff().String(),
			MaxRetries: cfg.Bootstrap.MaxRetries,
			Pacing:     cfg.Bootstrap.Pacing().String(),
		},
		Live: liveSummary{
			Offset:     cfg.Live.Offset().String(),
			OutputSize: cfg.Live.OutputSize,
		},
		Circuit: circuitSummary{
			Threshold: cfg.Circuit.Threshold,
			Cooldown:  cfg.Circuit.Cooldown().String(),
		},
		FetchLog: fetchLogSummary{Enabled: cfg.FetchLog.Enabled},
	}
	if cfg.FetchLog.Enabled {
		s.FetchLog.Path = cfg.FetchLog.Path
		s.FetchLog.Retention = cfg.FetchLog.Retention
	}
	return s
}

// Render returns the summary as YAML.
func (s *StartupSummary) Render() (string, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *StartupSummary) Print() {
	out, err := s.Render()
	if err != nil {
		logger.Warnf("startup summary: %v", err)
		return
	}
	logger.Infof("startup configuration:")
	logger.InfoBlock(out)
}
