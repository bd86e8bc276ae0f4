//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"SignalPilot/pkg/config"
	"SignalPilot/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideLocation,
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideRedisClient,
	ProvideCache,
	ProvideSignalStore,
	ProvideSignalPublisher,
)

var engineSet = wire.NewSet(
	ProvideStrategyConfig,
	ProvideAnalyzer,
	ProvideSimulator,
	ProvideParser,
	ProvideIngestor,
	ProvideMarketAnalysis,
	ProvideSimulationService,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		engineSet,
		ProvideQueue,
		ProvideState,
		ProvideArchive,
		ProvideMessageSource,
		ProvideNotifier,
		ProvideLimiter,
		ProvidePipeline,
		ProvideCollector,
		ProvideLiveTrader,
		ProvideKafkaConsumer,
		ProvideKafkaSignalsHandler,
		ProvideHTTPHandler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeEngine wires the store and the offline use cases for the CLI.
func InitializeEngine(cfg *config.Config) (*Engine, func(), error) {
	wire.Build(
		infraSet,
		engineSet,
		ProvideNoQueue,
		wire.Struct(new(Engine), "*"),
	)
	return nil, nil, nil
}
