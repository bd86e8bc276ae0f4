package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"SignalPilot/internal/domain/repository"
	"SignalPilot/internal/handler/api"
	mid "SignalPilot/internal/middleware"
	internalrepo "SignalPilot/internal/repository"
	"SignalPilot/internal/service/notify"
	"SignalPilot/internal/service/ratelimit"
	"SignalPilot/internal/service/telegram"
	"SignalPilot/internal/services/extractor"
	"SignalPilot/internal/services/strategy"
	"SignalPilot/internal/usecase"
	"SignalPilot/pkg/cache"
	pkgch "SignalPilot/pkg/clickhouse"
	"SignalPilot/pkg/config"
	pkgkafka "SignalPilot/pkg/kafka"
	applogger "SignalPilot/pkg/logger"
	"SignalPilot/pkg/metrics"
	"SignalPilot/pkg/postgres"
	"SignalPilot/pkg/queue"
	"SignalPilot/pkg/server"
)

const initTimeout = 10 * time.Second

// ProvideLocation loads the trading timezone.
func ProvideLocation(cfg *config.Config) (*time.Location, error) {
	return cfg.Trading.Location()
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. Warn and error events are
// aggregated and shipped to the logs topic when a producer is available.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if producer == nil || cfg.Kafka.LogsTopic == "" {
		return l, func() {}, nil
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          cfg.Kafka.LogsTopic,
		Publisher:      producer,
	})
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisClient connects to Redis, or returns nil when Redis is disabled.
func ProvideRedisClient(cfg *config.Config) (redis.UniversalClient, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache layers memory over Redis, or uses memory only without Redis.
func ProvideCache(cfg *config.Config, client redis.UniversalClient) cache.Service {
	if client == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryItems))
	}
	rc := cache.NewRedisCacheWithClient(client, cache.WithRedisPrefix(cfg.Redis.Prefix))
	return cache.NewLayeredCache(rc, cache.WithLayeredMemory(cfg.Cache.MemoryItems, time.Minute))
}

// ProvideQueue creates the simulation job queue, or nil without Redis.
func ProvideQueue(cfg *config.Config, client redis.UniversalClient, l *applogger.Logger) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
		JobTimeout: cfg.Queue.JobTimeout,
	}, client, queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue:"+cfg.Queue.Name))
}

// ProvideNoQueue leaves the offline engine without a job queue.
func ProvideNoQueue() *queue.RedisQueue { return nil }

// ProvideSignalStore opens the configured store and initializes its schema.
// With backend kafka it is the store behind the topic consumer.
func ProvideSignalStore(cfg *config.Config, loc *time.Location, l *applogger.Logger) (repository.SignalStore, func(), error) {
	backend := repository.NormalizeBackend(cfg.Storage.Backend).StoreBackend(repository.NormalizeBackend(cfg.Storage.KafkaSink))

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	var store repository.SignalStore
	switch backend {
	case repository.BackendPostgres, repository.BackendBoth:
		pg, err := postgres.Open(ctx, cfg.Storage.Postgres.DSN,
			postgres.WithPool(cfg.Storage.Postgres.MaxOpenConns, cfg.Storage.Postgres.MaxIdleConns, cfg.Storage.Postgres.ConnMaxLifetime),
			postgres.WithConnectTimeout(cfg.Storage.Postgres.ConnectTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		store = internalrepo.NewPostgresStore(pg, loc)
		if backend == repository.BackendBoth {
			store = internalrepo.NewMultiStore(internalrepo.NewCSVStore(cfg.Storage.DataDir, loc), store)
		}
	case repository.BackendClickHouse:
		ch, err := pkgch.NewClient(ctx,
			pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, true),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		chs := internalrepo.NewClickHouseStore(ch, loc)
		chs.SetLogger(l)
		store = chs
	default:
		store = internalrepo.NewCSVStore(cfg.Storage.DataDir, loc)
	}

	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("init %s store: %w", backend, err)
	}
	l.Info("signal store ready", applogger.String("backend", string(backend)))
	return store, func() { _ = store.Close() }, nil
}

// ProvideSignalPublisher publishes signals to the signal topic, or is nil without Kafka.
func ProvideSignalPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.SignalsTopic)
}

// ProvideStrategyConfig maps the YAML strategy and trading sections.
func ProvideStrategyConfig(cfg *config.Config, loc *time.Location) strategy.Config {
	s, t := cfg.Strategy, cfg.Trading
	return strategy.NewConfig(
		strategy.WithLocation(loc),
		strategy.WithLossWindow(s.LossWindow),
		strategy.WithPolicyThresholds(s.MinOperations, s.G2PauseRate, s.G1MartingaleRate, s.FirstInfinityRate),
		strategy.WithChangeThreshold(s.ChangeThreshold),
		strategy.WithTradingHours(t.StartHour, t.EndHour),
		strategy.WithDayLimits(t.DailyTarget, t.InfinityStop, t.MartingaleMaxLosses),
	)
}

func ProvideAnalyzer(scfg strategy.Config) *strategy.Analyzer {
	return strategy.NewAnalyzer(scfg, strategy.NewPolicy(scfg))
}

func ProvideSimulator(scfg strategy.Config, analyzer *strategy.Analyzer) *strategy.Simulator {
	return strategy.NewSimulator(scfg, analyzer)
}

func ProvideState(cfg *config.Config, scfg strategy.Config) *strategy.State {
	return strategy.NewState(scfg.ChangeThreshold, cfg.Strategy.HistorySize)
}

func ProvideParser(cfg *config.Config, loc *time.Location) *extractor.Parser {
	return extractor.NewParser(
		extractor.WithLocation(loc),
		extractor.WithCollectionHours(cfg.Trading.CollectionStartHour, cfg.Trading.CollectionEndHour),
	)
}

// ProvideArchive writes analyses under the data directory and mirrors them to Kafka when enabled.
func ProvideArchive(cfg *config.Config, loc *time.Location, producer *pkgkafka.Producer, l *applogger.Logger) repository.AnalysisArchive {
	opts := []internalrepo.ArchiveOption{internalrepo.WithArchiveLogger(l)}
	if producer != nil && cfg.Storage.ArchiveKafka {
		opts = append(opts, internalrepo.WithArchiveKafka(producer, cfg.Kafka.AnalysisTopic))
	}
	return internalrepo.NewFileArchive(filepath.Join(cfg.Storage.DataDir, "analysis"), loc, opts...)
}

// ProvideMessageSource picks the Telegram bot or the relay. It is nil when collection is off.
func ProvideMessageSource(cfg *config.Config, l *applogger.Logger) (repository.MessageSource, error) {
	tg := cfg.Telegram
	switch tg.Mode {
	case "relay":
		return telegram.NewRelay(l, tg.RelayURL, tg.Group, tg.ReconnectDelay, tg.PingInterval), nil
	case "bot":
		if tg.BotToken == "" {
			l.Warn("telegram bot token not set, collection disabled")
			return nil, nil
		}
		bot, err := telegram.NewBot(l,
			telegram.WithToken(tg.BotToken),
			telegram.WithAPIURL(tg.APIURL),
			telegram.WithGroup(tg.Group),
			telegram.WithPolling(tg.PollTimeout, tg.ReconnectDelay),
		)
		if err != nil {
			return nil, fmt.Errorf("telegram bot: %w", err)
		}
		return bot, nil
	default:
		return nil, nil
	}
}

// ProvideNotifier fans strategy changes out to the webhook and the bot chat.
func ProvideNotifier(cfg *config.Config, source repository.MessageSource, l *applogger.Logger) repository.Notifier {
	var out notify.Multi
	if cfg.Notify.WebhookURL != "" {
		out = append(out, notify.NewWebhook(l, cfg.Notify.WebhookURL, cfg.Notify.Timeout, cfg.Notify.BreakerFailures, cfg.Notify.BreakerCooldown))
	}
	if bot, ok := source.(*telegram.Bot); ok && cfg.Notify.ChatID != "" {
		out = append(out, notify.NewChat(bot, cfg.Notify.ChatID))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
}

func ProvideIngestor(
	cfg *config.Config,
	parser *extractor.Parser,
	pub repository.SignalPublisher,
	store repository.SignalStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.SignalIngestor {
	return usecase.NewSignalIngestor(parser, pub, store, m, repository.NormalizeBackend(cfg.Storage.Backend), l)
}

// ProvidePipeline sits between the message source and the ingestor.
func ProvidePipeline(
	ingestor *usecase.SignalIngestor,
	m repository.Metrics,
	c cache.Service,
	limiter *ratelimit.Limiter,
	l *applogger.Logger,
) *mid.IngestPipeline {
	return mid.NewIngestPipeline(ingestor, m,
		mid.WithDedup(c, 24*time.Hour),
		mid.WithThrottle(limiter),
		mid.WithBufferSize(1000),
		mid.WithBackoff(500*time.Millisecond, 30*time.Second),
		mid.WithPipelineLogger(l),
	)
}

// ProvideCollector is nil when there is no message source.
func ProvideCollector(source repository.MessageSource, pipe *mid.IngestPipeline, m repository.Metrics, l *applogger.Logger) *usecase.SignalCollector {
	if source == nil {
		return nil
	}
	return usecase.NewSignalCollector(source, pipe, m, l)
}

func ProvideLiveTrader(
	cfg *config.Config,
	loc *time.Location,
	analyzer *strategy.Analyzer,
	state *strategy.State,
	archive repository.AnalysisArchive,
	notifier repository.Notifier,
	m repository.Metrics,
	c cache.Service,
	l *applogger.Logger,
) *usecase.LiveTrader {
	t := cfg.Trading
	lc := usecase.DefaultLiveConfig()
	lc.Location = loc
	lc.StartHour, lc.EndHour = t.StartHour, t.EndHour
	lc.BufferSize = t.BufferSize
	lc.MinHourSignals = t.MinHourSignals
	lc.AnalysisMinute = t.AnalysisMinute
	lc.CheckInterval = t.CheckInterval
	lc.LockTTL = cfg.Cache.LockTTL
	return usecase.NewLiveTrader(lc, analyzer, state, archive, notifier, m, c, l.With(applogger.String("component", "live")))
}

// ProvideKafkaConsumer creates the signal topic consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	kc := cfg.Kafka.Consumer
	if !kc.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerWorkers(kc.Workers, kc.BufferSize),
		pkgkafka.WithConsumerRetry(kc.RetryMax, kc.BackoffMin, kc.BackoffMax),
		pkgkafka.WithConsumerDLQ(kc.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetHook(pkgkafka.HookChain{pkgkafka.TraceHook(), pkgkafka.LoggingHook(l, time.Second)})
	return consumer, nil
}

func ProvideKafkaSignalsHandler(cfg *config.Config, store repository.SignalStore, m repository.Metrics) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.SignalsTopic, store, m, repository.NormalizeBackend(cfg.Storage.KafkaSink))
}

func ProvideMarketAnalysis(cfg *config.Config, loc *time.Location, store repository.SignalStore, analyzer *strategy.Analyzer, c cache.Service) *usecase.MarketAnalysis {
	return usecase.NewMarketAnalysis(store, analyzer, c, cfg.Cache.ConditionsTTL, loc)
}

func ProvideSimulationService(cfg *config.Config, store repository.SignalStore, sim *strategy.Simulator, c cache.Service, q *queue.RedisQueue, l *applogger.Logger) *usecase.SimulationService {
	// a nil *RedisQueue must not become a non-nil interface
	var enq usecase.JobEnqueuer
	if q != nil {
		enq = q
	}
	return usecase.NewSimulationService(store, sim, c, cfg.Cache.SimulationTTL, enq, l)
}

func ProvideHTTPHandler(
	l *applogger.Logger,
	pipe *mid.IngestPipeline,
	analysis *usecase.MarketAnalysis,
	sims *usecase.SimulationService,
	live *usecase.LiveTrader,
	limiter *ratelimit.Limiter,
) *api.StrategyEchoHandler {
	return api.NewStrategyEchoHandler(l, pipe, analysis, sims, live, limiter)
}

// ProvideApp connects the live trader to the signal feed and builds the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	store repository.SignalStore,
	ingestor *usecase.SignalIngestor,
	pipe *mid.IngestPipeline,
	collector *usecase.SignalCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	live *usecase.LiveTrader,
	state *strategy.State,
	sims *usecase.SimulationService,
	q *queue.RedisQueue,
	handler *api.StrategyEchoHandler,
) *server.App {
	// with backend kafka the topic consumer feeds the live trader
	if consumer != nil {
		kh.SetSink(live)
	} else {
		ingestor.SetSink(live)
	}
	if q != nil {
		q.RegisterJob(usecase.NewSimulationJob(sims))
	}

	return server.New(cfg, l, server.Components{
		Collector: collector,
		Pipeline:  pipe,
		Consumer:  consumer,
		Handlers:  []pkgkafka.MessageHandler{kh},
		Live:      live,
		State:     state,
		Queue:     q,
		Handler:   handler,
		Store:     store,
	})
}

// Engine bundles the offline use cases used by the CLI commands.
type Engine struct {
	Config   *config.Config
	Location *time.Location
	Logger   *applogger.Logger
	Parser   *extractor.Parser
	Store    repository.SignalStore
	Ingestor *usecase.SignalIngestor
	Analysis *usecase.MarketAnalysis
	Sims     *usecase.SimulationService
}
