package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"StockPulse/internal/domain/repository"
	domsvc "StockPulse/internal/domain/service"
	"StockPulse/internal/handler/api"
	mid "StockPulse/internal/middleware"
	internalrepo "StockPulse/internal/repository"
	icache "StockPulse/internal/service/cache"
	"StockPulse/internal/service/marketdata"
	"StockPulse/internal/services/adaptive"
	"StockPulse/internal/services/predictors"
	"StockPulse/internal/services/regime"
	"StockPulse/internal/usecase"
	pkgch "StockPulse/pkg/clickhouse"
	"StockPulse/pkg/config"
	xhttp "StockPulse/pkg/http"
	pkgkafka "StockPulse/pkg/kafka"
	"StockPulse/pkg/logger"
	"StockPulse/pkg/metrics"
	"StockPulse/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{"CREATE DATABASE IF NOT EXISTS stockpulse"}
	stmts = append(stmts, internalrepo.QuoteSchema("stockpulse.quotes_raw")...)
	stmts = append(stmts, internalrepo.BarSchema()...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
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

// ProvideKafkaConsumer creates the Kafka consumer with its worker pool.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(log,
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

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisClient creates the shared Redis client, or nil when disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideQuoteStorage creates the ClickHouse quote storage repository.
func ProvideQuoteStorage(chClient *pkgch.Client) repository.Storage {
	return internalrepo.NewClickHouseStorage(chClient.DB(), "stockpulse.quotes_raw")
}

// ProvideQuotePublisher creates the Kafka quote publisher.
func ProvideQuotePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideMarketStream creates the WebSocket quote stream.
func ProvideMarketStream(cfg *config.Config, log *logger.Logger) repository.MarketStream {
	return marketdata.New(
		cfg.MarketData.APIKey,
		cfg.MarketData.WebSocketURL,
		cfg.MarketData.Symbols,
		cfg.MarketData.ReconnectDelay,
		cfg.MarketData.PingInterval,
		log,
	)
}

// ProvideQuoteProcessor creates the quote processor use case.
func ProvideQuoteProcessor(
	pub repository.Publisher,
	store repository.Storage,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.QuoteProcessor {
	return usecase.NewQuoteProcessor(pub, store, m, cfg.Backend.Type)
}

// ProvideQuoteCollector creates the collector with its ingest pipeline.
func ProvideQuoteCollector(
	stream repository.MarketStream,
	processor *usecase.QuoteProcessor,
	m repository.Metrics,
) *usecase.QuoteCollector {
	pipe := mid.NewIngestPipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewQuoteCollector(stream, processor, m, pipe)
}

// ProvideKafkaQuotesHandler registers the handler for the quote topic.
func ProvideKafkaQuotesHandler(store repository.Storage, m repository.Metrics, cfg *config.Config) *usecase.KafkaQuotesHandler {
	return usecase.NewKafkaQuotesHandler(cfg.Kafka.Topic, store, m)
}

// ProvideStateStore selects the adaptive-state backend by config.
func ProvideStateStore(cfg *config.Config, rdb *redis.Client) (repository.StateStore, error) {
	switch cfg.Predictor.State.Type {
	case "file":
		return internalrepo.NewFileStateStore(cfg.Predictor.State.Path), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis state store requires redis.enabled")
		}
		return internalrepo.NewRedisStateStore(rdb, cfg.Predictor.State.Key), nil
	case "memory":
		return internalrepo.NewMemoryStateStore(), nil
	default:
		return nil, fmt.Errorf("unknown state store type %q", cfg.Predictor.State.Type)
	}
}

// ProvideClassifier creates the regime classifier.
func ProvideClassifier(cfg *config.Config) domsvc.RegimeClassifier {
	c := regime.DefaultConfig()
	c.MaxStaleness = cfg.Predictor.MaxStaleness
	return regime.New(c)
}

// ProvideAdapters creates one adapter per enabled model.
func ProvideAdapters(cfg *config.Config) ([]domsvc.PricePredictor, error) {
	out := make([]domsvc.PricePredictor, 0, len(cfg.Models.Enabled))
	for _, name := range cfg.Models.Enabled {
		a, err := predictors.NewByName(name, cfg.Models.ServiceURL, cfg.Models.Timeout)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ProvideTracker creates the adaptive weight tracker, restoring persisted
// state.
func ProvideTracker(cfg *config.Config, store repository.StateStore, log *logger.Logger) *adaptive.Tracker {
	return adaptive.New(context.Background(), adaptive.DefaultConfig(), cfg.Models.Enabled, store, log)
}

// ProvideBarStore creates the ClickHouse bar store.
func ProvideBarStore(chClient *pkgch.Client, log *logger.Logger) repository.BarStore {
	s := internalrepo.NewCHBarStore(chClient)
	s.SetLogger(log)
	return s
}

// ProvideBytesCache selects the response cache backend.
func ProvideBytesCache(rdb *redis.Client) icache.BytesCache {
	if rdb != nil {
		return icache.NewRedisCache(rdb)
	}
	return icache.NewTTLCache()
}

// ProvidePredictor creates the prediction coordinator.
func ProvidePredictor(
	cfg *config.Config,
	classifier domsvc.RegimeClassifier,
	adapters []domsvc.PricePredictor,
	tracker *adaptive.Tracker,
	bars repository.BarStore,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Predictor {
	return usecase.NewPredictor(
		usecase.PredictorConfig{
			MinConfidence: cfg.Predictor.MinConfidence,
			MinBars:       cfg.Predictor.MinBars,
			WindowBars:    cfg.Predictor.WindowBars,
			HistorySize:   cfg.Predictor.HistorySize,
			AdapterBudget: cfg.Predictor.AdapterBudget,
		},
		classifier, adapters, tracker, bars, m, log,
	)
}

// ProvideHTTPHandler composes the API route registrars.
func ProvideHTTPHandler(
	cfg *config.Config,
	log *logger.Logger,
	predictor *usecase.Predictor,
	bars repository.BarStore,
	cache icache.BytesCache,
	store repository.Storage,
	stream repository.MarketStream,
) xhttp.Handler {
	barsUC := usecase.NewBarsUseCase(bars, cache, cfg.Predictor.Cache.BarsTTL)
	return api.NewRouter(
		api.NewPredictionsHandler(log, predictor),
		api.NewBarsHandler(log, barsUC),
		api.NewHealthHandler(store, stream),
	)
}

// ProvideApp creates the application server. When Kafka is the backend,
// repeated error logs are aggregated and shipped to a side topic.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	producer *pkgkafka.Producer,
	collector *usecase.QuoteCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaQuotesHandler,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *server.App {
	if cfg.Backend.Type == "kafka" {
		log.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.Topic + ".errors",
			Publisher:      producer,
		})
	}
	return server.New(cfg, log, collector, consumer, kh, chClient, handler)
}
