//go:build wireinject
// +build wireinject

package di

import (
	"CoveredCall/pkg/config"

	"github.com/google/wire"
)

// InitializeContainer wires up all dependencies. The cleanup closes clients in reverse order.
// Wire will generate the implementation of this function.
func InitializeContainer(cfg *config.Config) (*Container, func(), error) {
	wire.Build(
		// Events and logging
		ProvideKafkaProducer,
		ProvideEventPublisher,
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedis,
		ProvideCache,
		ProvidePostgres,
		ProvideClickHouseClient,
		ProvidePolygon,

		// Repositories
		ProvideLocker,
		ProvideModelStore,
		ProvidePredictionCache,
		ProvidePriceHistory,
		ProvideOptionQuotes,
		ProvideDeviations,
		ProvideJournal,
		ProvidePriceSource,
		ProvideOptionSource,

		// Use cases
		ProvideTrainer,
		ProvideModelsUseCase,
		ProvideBacktestUseCase,
		ProvidePredictUseCase,
		ProvideStocksUseCase,
		ProvideOptionsUseCase,
		ProvideDeviationsUseCase,

		// Transport
		ProvideJobQueue,
		ProvideHandler,
		ProvideKafkaConsumer,
		NewContainer,
	)
	return nil, nil, nil
}
