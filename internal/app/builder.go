package app

import (
	"time"

	"datafeeder/internal/config"
	"datafeeder/internal/credential"
	"datafeeder/internal/feeder"
	"datafeeder/internal/gateway/twelvedata"
	"datafeeder/internal/logger"
	"datafeeder/internal/market"
	"datafeeder/internal/pkg/circuit"
	"datafeeder/internal/scheduler"
	"datafeeder/internal/store"
	"datafeeder/internal/store/fetchlog"
	feedhttp "datafeeder/internal/transport/http/feed"
)

func provideKlineStore(cfg *config.Config) *store.MemoryKlineStore {
	return store.NewMemoryKlineStore(
		cfg.Market.Instruments,
		cfg.Market.ParsedGranularities(),
		cfg.Market.HistorySizes(),
	)
}

func provideCredentialPool(cfg *config.Config) (*credential.Pool, error) {
	return credential.NewPool(cfg.Credentials.Resolved, credential.Limits{
		Daily:     cfg.Credentials.DailyLimit,
		PerMinute: cfg.Credentials.MinuteLimit,
	})
}

func provideSource(cfg *config.Config) market.Source {
	return twelvedata.NewClient(cfg.Provider.BaseURL,
		twelvedata.WithTimeout(cfg.Provider.Timeout()),
		twelvedata.WithTimezone(cfg.Provider.Timezone),
	)
}

func provideBreaker(cfg *config.Config) *circuit.CircuitBreaker {
	return circuit.NewCircuitBreaker(cfg.Provider.Name, cfg.Circuit.Threshold, cfg.Circuit.Cooldown())
}

// provideFetchLog returns nil when the audit log is disabled.
func provideFetchLog(cfg *config.Config) (*fetchlog.Store, error) {
	if !cfg.FetchLog.Enabled {
		return nil, nil
	}
	fl, err := fetchlog.Open(cfg.FetchLog.Path, cfg.FetchLog.Retention)
	if err != nil {
		return nil, err
	}
	logger.Infof("fetchlog: recording attempts to %s (retention=%d)", cfg.FetchLog.Path, cfg.FetchLog.Retention)
	return fl, nil
}

func provideFeeder(cfg *config.Config, src market.Source, pool *credential.Pool, st *store.MemoryKlineStore, cb *circuit.CircuitBreaker, fl *fetchlog.Store) (*feeder.Feeder, error) {
	opts := []feeder.Option{feeder.WithBreaker(cb)}
	if fl != nil {
		opts = append(opts, feeder.WithRecorder(fl))
	}
	return feeder.New(feeder.Config{
		Instruments:    cfg.Market.Instruments,
		Granularities:  cfg.Market.ParsedGranularities(),
		History:        cfg.Market.HistorySizes(),
		FetchTimeout:   cfg.Provider.Timeout(),
		Backoff:        cfg.Bootstrap.Backoff(),
		MaxRetries:     cfg.Bootstrap.MaxRetries,
		Pacing:         cfg.Bootstrap.Pacing(),
		LiveOutputSize: cfg.Live.OutputSize,
	}, src, pool, st, opts...)
}

func provideScheduler(cfg *config.Config) *scheduler.AlignedScheduler {
	return scheduler.NewAlignedScheduler(time.Minute, cfg.Live.Offset())
}

func provideHTTPServer(cfg *config.Config, st *store.MemoryKlineStore, pool *credential.Pool, fd *feeder.Feeder, fl *fetchlog.Store) (*feedhttp.Server, error) {
	sc := feedhttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Store:     st,
		Usage:     pool,
		Readiness: fd,
	}
	if fl != nil {
		sc.FetchLog = fl
	}
	return feedhttp.NewServer(sc)
}
