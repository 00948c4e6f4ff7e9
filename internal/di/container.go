package di

import (
	"CoveredCall/internal/handler/api"
	"CoveredCall/internal/usecase"
	"CoveredCall/pkg/config"
	pkgkafka "CoveredCall/pkg/kafka"
	applogger "CoveredCall/pkg/logger"
	"CoveredCall/pkg/queue"
)

// Container holds the wired use cases for the CLI and the HTTP server.
type Container struct {
	Config     *config.Config
	Logger     *applogger.Logger
	Models     *usecase.ModelsUseCase
	Backtest   *usecase.BacktestUseCase
	Predict    *usecase.PredictUseCase
	Stocks     *usecase.StocksUseCase
	Options    *usecase.OptionsUseCase
	Deviations *usecase.DeviationsUseCase
	Handler    *api.StrategyEchoHandler
	// Queue is nil unless queue.enabled is set.
	Queue *queue.RedisQueue
	// Consumer is nil without Kafka brokers.
	Consumer *pkgkafka.Consumer
}

func NewContainer(
	cfg *config.Config,
	l *applogger.Logger,
	models *usecase.ModelsUseCase,
	backtest *usecase.BacktestUseCase,
	predict *usecase.PredictUseCase,
	stocks *usecase.StocksUseCase,
	options *usecase.OptionsUseCase,
	deviations *usecase.DeviationsUseCase,
	handler *api.StrategyEchoHandler,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
) *Container {
	return &Container{
		Config:     cfg,
		Logger:     l,
		Models:     models,
		Backtest:   backtest,
		Predict:    predict,
		Stocks:     stocks,
		Options:    options,
		Deviations: deviations,
		Handler:    handler,
		Queue:      q,
		Consumer:   consumer,
	}
}
