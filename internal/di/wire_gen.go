// Injector bodies for wire.go, kept in sync with the provider sets by hand.

//go:build !wireinject
// +build !wireinject

package di

import (
	"SignalPilot/pkg/config"
	"SignalPilot/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	location, err := ProvideLocation(cfg)
	if err != nil {
		return nil, nil, err
	}
	producer, cleanup, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger, cleanup2, err := ProvideLogger(cfg, producer)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	signalStore, cleanup3, err := ProvideSignalStore(cfg, location, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	parser := ProvideParser(cfg, location)
	signalPublisher := ProvideSignalPublisher(cfg, producer)
	metrics := ProvideMetrics()
	signalIngestor := ProvideIngestor(cfg, parser, signalPublisher, signalStore, metrics, logger)
	universalClient, cleanup4, err := ProvideRedisClient(cfg)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	service := ProvideCache(cfg, universalClient)
	limiter := ProvideLimiter(cfg)
	ingestPipeline := ProvidePipeline(signalIngestor, metrics, service, limiter, logger)
	messageSource, err := ProvideMessageSource(cfg, logger)
	if err != nil {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	signalCollector := ProvideCollector(messageSource, ingestPipeline, metrics, logger)
	consumer, err := ProvideKafkaConsumer(cfg, logger)
	if err != nil {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	kafkaSignalsHandler := ProvideKafkaSignalsHandler(cfg, signalStore, metrics)
	strategyConfig := ProvideStrategyConfig(cfg, location)
	analyzer := ProvideAnalyzer(strategyConfig)
	state := ProvideState(cfg, strategyConfig)
	analysisArchive := ProvideArchive(cfg, location, producer, logger)
	notifier := ProvideNotifier(cfg, messageSource, logger)
	liveTrader := ProvideLiveTrader(cfg, location, analyzer, state, analysisArchive, notifier, metrics, service, logger)
	simulator := ProvideSimulator(strategyConfig, analyzer)
	redisQueue := ProvideQueue(cfg, universalClient, logger)
	simulationService := ProvideSimulationService(cfg, signalStore, simulator, service, redisQueue, logger)
	marketAnalysis := ProvideMarketAnalysis(cfg, location, signalStore, analyzer, service)
	strategyEchoHandler := ProvideHTTPHandler(logger, ingestPipeline, marketAnalysis, simulationService, liveTrader, limiter)
	app := ProvideApp(cfg, logger, signalStore, signalIngestor, ingestPipeline, signalCollector, consumer, kafkaSignalsHandler, liveTrader, state, simulationService, redisQueue, strategyEchoHandler)
	return app, func() {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}

// InitializeEngine wires the store and the offline use cases for the CLI.
func InitializeEngine(cfg *config.Config) (*Engine, func(), error) {
	location, err := ProvideLocation(cfg)
	if err != nil {
		return nil, nil, err
	}
	producer, cleanup, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger, cleanup2, err := ProvideLogger(cfg, producer)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	parser := ProvideParser(cfg, location)
	signalStore, cleanup3, err := ProvideSignalStore(cfg, location, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	signalPublisher := ProvideSignalPublisher(cfg, producer)
	metrics := ProvideMetrics()
	signalIngestor := ProvideIngestor(cfg, parser, signalPublisher, signalStore, metrics, logger)
	strategyConfig := ProvideStrategyConfig(cfg, location)
	analyzer := ProvideAnalyzer(strategyConfig)
	universalClient, cleanup4, err := ProvideRedisClient(cfg)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	service := ProvideCache(cfg, universalClient)
	marketAnalysis := ProvideMarketAnalysis(cfg, location, signalStore, analyzer, service)
	simulator := ProvideSimulator(strategyConfig, analyzer)
	redisQueue := ProvideNoQueue()
	simulationService := ProvideSimulationService(cfg, signalStore, simulator, service, redisQueue, logger)
	engine := &Engine{
		Config:   cfg,
		Location: location,
		Logger:   logger,
		Parser:   parser,
		Store:    signalStore,
		Ingestor: signalIngestor,
		Analysis: marketAnalysis,
		Sims:     simulationService,
	}
	return engine, func() {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}
