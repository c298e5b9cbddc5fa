//go:build wireinject
// +build wireinject

package di

import (
	"RegimeTrader/pkg/config"
	"RegimeTrader/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// The returned cleanup closes infrastructure clients in reverse order.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisCache,
		ProvideCache,
		ProvideQueue,

		// Repositories
		ProvideBarStore,
		ProvideBarWriter,
		ProvideResultPublisher,
		ProvideResultStore,
		ProvideResultCache,
		ProvideJobStore,

		// Services
		ProvideClassifierFactory,
		ProvideDriver,

		// Use cases
		ProvideBacktestUseCase,
		ProvideRegimeUseCase,
		ProvideWatchlistUseCase,
		ProvideJobUseCase,

		// HTTP
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideJobsHandler,

		ProvideApp,
	)
	return nil, nil, nil
}
