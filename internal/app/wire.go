//go:build wireinject

package app

import (
	"context"

	"datafeeder/internal/config"

	"github.com/google/wire"
)

func buildAppWithWire(ctx context.Context, cfg *config.Config) (*App, error) {
	wire.Build(
		provideKlineStore,
		provideCredentialPool,
		provideSource,
		provideBreaker,
		provideFetchLog,
		provideFeeder,
		provideScheduler,
		provideHTTPServer,
		provideSummary,
		newApp,
	)
	return nil, nil
}
