package di

import (
	"context"
	"fmt"
	"time"

	"LevelCast/internal/domain/repository"
	domsvc "LevelCast/internal/domain/service"
	"LevelCast/internal/handler/api"
	"LevelCast/internal/levels"
	"LevelCast/internal/markov"
	mid "LevelCast/internal/middleware"
	internalrepo "LevelCast/internal/repository"
	icache "LevelCast/internal/service/cache"
	"LevelCast/internal/service/projectx"
	"LevelCast/internal/services/analytics"
	"LevelCast/internal/usecase"
	pkgch "LevelCast/pkg/clickhouse"
	"LevelCast/pkg/config"
	xhttp "LevelCast/pkg/http"
	pkgkafka "LevelCast/pkg/kafka"
	applogger "LevelCast/pkg/logger"
	"LevelCast/pkg/metrics"
	"LevelCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	return applogger.New(lc)
}

// ProvideLocation resolves the market timezone.
func ProvideLocation(cfg *config.Config) (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("market timezone: %w", err)
	}
	return loc, nil
}

// ProvideClock supplies wall-clock time in the market timezone.
func ProvideClock(loc *time.Location) repository.Clock {
	return repository.ClockFunc(func() time.Time { return time.Now().In(loc) })
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideBarFeed creates the ProjectX history client.
func ProvideBarFeed(cfg *config.Config, loc *time.Location, l *applogger.Logger) repository.BarFeed {
	timeout := cfg.ProjectX.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return projectx.New(projectx.Config{
		BaseURL:    cfg.ProjectX.BaseURL,
		Username:   cfg.ProjectX.Username,
		APIKey:     cfg.ProjectX.APIKey,
		ContractID: cfg.Market.ContractID,
		Live:       cfg.ProjectX.Live,
	}, xhttp.NewClient(xhttp.WithTimeout(timeout)), loc, l)
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// snapshot schema. Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.SchemaStatements()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideCorpusStore creates the snapshot corpus store. Nil when ClickHouse is
// disabled; the engines then start with an empty corpus and grow from Kafka.
func ProvideCorpusStore(chClient *pkgch.Client, l *applogger.Logger) *internalrepo.CHCorpusStore {
	if chClient == nil {
		return nil
	}
	store := internalrepo.NewCHCorpusStore(chClient)
	store.SetLogger(l)
	return store
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideTickPublisher creates the per-tick payload publisher.
func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.TickPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.TickTopic)
}

// ProvideSnapshotArchiver creates the corpus-growth archiver.
func ProvideSnapshotArchiver(producer *pkgkafka.Producer, cfg *config.Config) repository.SnapshotArchiver {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSnapshotArchiver(producer, cfg.Kafka.ArchiveTopic)
}

// ProvideKafkaConsumer creates the archive consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideArchiveHandler creates the consumer-side snapshot persister. Nil when
// either ClickHouse or Kafka is unavailable.
func ProvideArchiveHandler(store *internalrepo.CHCorpusStore, m repository.Metrics, cfg *config.Config) pkgkafka.MessageHandler {
	if store == nil || !cfg.Kafka.Enabled {
		return nil
	}
	return usecase.NewSnapshotArchiveHandler(cfg.Kafka.ArchiveTopic, store, m)
}

// ProvideBroadcaster creates the fan-out hub for WebSocket clients.
func ProvideBroadcaster(m repository.Metrics) *mid.Broadcaster {
	return mid.NewBroadcaster(m, mid.WithSubscriberDepth(1))
}

// ProvideOrchestrator loads both corpora, builds the conditional-probability
// engines and the level tracker, and assembles the stream orchestrator.
func ProvideOrchestrator(
	cfg *config.Config,
	feed repository.BarFeed,
	store *internalrepo.CHCorpusStore,
	pub repository.TickPublisher,
	archiver repository.SnapshotArchiver,
	m repository.Metrics,
	hub *mid.Broadcaster,
	clock repository.Clock,
	loc *time.Location,
	l *applogger.Logger,
) (*usecase.StreamOrchestrator, error) {
	var engine1h, engine4h *markov.Engine
	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		rows1h, q1h, err := store.Load(ctx, repository.TF1h)
		if err != nil {
			return nil, fmt.Errorf("load 1h corpus: %w", err)
		}
		rows4h, q4h, err := store.Load(ctx, repository.TF4h)
		if err != nil {
			return nil, fmt.Errorf("load 4h corpus: %w", err)
		}
		engine1h = markov.NewEngine(rows1h, q1h)
		engine4h = markov.NewEngine(rows4h, q4h)
		l.Info("corpus loaded",
			applogger.Int("rows_1h", engine1h.CorpusSize()),
			applogger.Int("rows_4h", engine4h.CorpusSize()))
	} else {
		engine1h = markov.NewEngine(nil, nil)
		engine4h = markov.NewEngine(nil, nil)
		l.Warn("clickhouse disabled, starting with empty corpora")
	}

	var pred1h, pred4h domsvc.RangePredictor
	if cfg.Predictor.Enabled {
		pred1h = analytics.NewHTTPRangePredictor(cfg, "1h")
		pred4h = analytics.NewHTTPRangePredictor(cfg, "4h")
	}

	tracker := levels.New(clock, loc, l)

	return usecase.NewStreamOrchestrator(
		feed, tracker, engine1h, engine4h, pred1h, pred4h,
		pub, archiver, m, hub, clock, l, cfg.Market.ContractID, loc,
	), nil
}

// ProvideRESTHandler creates the REST handler with its response cache.
func ProvideRESTHandler(cfg *config.Config, l *applogger.Logger, orch *usecase.StreamOrchestrator) (*api.StreamEchoHandler, error) {
	h := api.NewStreamEchoHandler(l, orch)
	if cfg.Cache.Redis.Enabled {
		c, err := icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		h.SetCache(c)
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h, nil
}

// ProvideWSHandler creates the WebSocket handler.
func ProvideWSHandler(l *applogger.Logger, orch *usecase.StreamOrchestrator) *api.StreamWSHandler {
	return api.NewStreamWSHandler(l, orch)
}

// ProvideApp creates the application server. The shared Kafka producer is
// handed to the App, which owns its shutdown; when a log topic is configured
// the logger additionally aggregates error logs onto it.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	orch *usecase.StreamOrchestrator,
	rest *api.StreamEchoHandler,
	ws *api.StreamWSHandler,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if producer != nil && cfg.Kafka.LogTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      internalrepo.NewLogPublisher(producer),
		})
	}
	return server.New(cfg, l, orch, rest, ws, producer, consumer, kh, chClient)
}
