package di

import (
	"context"
	"fmt"
	"time"

	"UrbanPull/internal/domain/models"
	"UrbanPull/internal/domain/repository"
	"UrbanPull/internal/handler/api"
	"UrbanPull/internal/handler/ws"
	mid "UrbanPull/internal/middleware"
	internalrepo "UrbanPull/internal/repository"
	"UrbanPull/internal/service/ratelimit"
	"UrbanPull/internal/service/uda"
	"UrbanPull/internal/usecase"
	"UrbanPull/pkg/cache"
	pkgch "UrbanPull/pkg/clickhouse"
	"UrbanPull/pkg/config"
	xhttp "UrbanPull/pkg/http"
	pkgkafka "UrbanPull/pkg/kafka"
	"UrbanPull/pkg/logger"
	"UrbanPull/pkg/metrics"
	"UrbanPull/pkg/queue"
	"UrbanPull/pkg/server"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// ProvideKafkaProducer creates a Kafka producer. It returns nil when no
// brokers are configured; every consumer of the producer treats nil as off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
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
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. With log.collect enabled,
// error logs are aggregated and shipped to Kafka.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, func(), error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	l = l.With(logger.String("env", cfg.Environment))

	if cfg.Log.Collect.Enabled && producer != nil {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Log.Collect.Interval,
			CountThreshold: cfg.Log.Collect.CountThreshold,
			Topic:          cfg.Log.Collect.Topic,
			Publisher:      producer,
		})
		return l, l.RemoveCollector, nil
	}
	return l, func() {}, nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideCache selects the response cache from cache.type.
func ProvideCache(cfg *config.Config, l *logger.Logger) (cache.Service, func(), error) {
	mem := func() cache.Service {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
			cache.WithMemoryDefaultTTL(cfg.Cache.TTL),
		)
	}

	var svc cache.Service
	switch cfg.Cache.Type {
	case "redis", "layered":
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Cache.Redis.Host),
			cache.WithRedisPort(cfg.Cache.Redis.Port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		)
		if err != nil {
			// The cache is an optimisation; fall back rather than refuse to start.
			l.Warn("redis cache unavailable, using memory cache", logger.Error(err))
			svc = mem()
			break
		}
		if cfg.Cache.Type == "layered" {
			svc = cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize))
		} else {
			svc = rc
		}
	default:
		svc = mem()
	}
	return svc, func() { _ = svc.Close() }, nil
}

func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideUDAClient creates the upstream indicator client.
func ProvideUDAClient(cfg *config.Config, c cache.Service, lim *ratelimit.Limiter, l *logger.Logger) (*uda.Client, error) {
	client, err := uda.NewClient(uda.Config{
		BaseURL:       cfg.UDA.BaseURL,
		IndicatorPath: cfg.UDA.IndicatorPath,
		APIKey:        cfg.UDA.APIKey,
		AuthHeader:    cfg.UDA.AuthHeader,
		AuthScheme:    cfg.UDA.AuthScheme,
		UserAgent:     cfg.UDA.UserAgent,
		Timeout:       cfg.UDA.Timeout,
		RetryAttempts: cfg.UDA.RetryAttempts,
		CacheTTL:      cfg.Cache.TTL,
		RateCapacity:  cfg.UDA.RateLimit.Capacity,
		RateRefill:    cfg.UDA.RateLimit.RefillPerSec,
	}, c, lim, l)
	if err != nil {
		return nil, fmt.Errorf("uda client: %w", err)
	}
	return client, nil
}

// ProvideClickHouseClient creates a ClickHouse client when storage.type is
// clickhouse and nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Storage.Type != "clickhouse" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(pkgch.Config{
		Host:         cfg.ClickHouse.Host,
		Port:         cfg.ClickHouse.Port,
		Database:     cfg.ClickHouse.Database,
		User:         cfg.ClickHouse.User,
		Password:     cfg.ClickHouse.Password,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		DialTimeout:  cfg.ClickHouse.DialTimeout,
		ReadTimeout:  cfg.ClickHouse.ReadTimeout,
		UseHTTP:      cfg.ClickHouse.UseHTTP,
		AsyncInsert:  cfg.ClickHouse.AsyncInsert,
		WaitForAsync: cfg.ClickHouse.WaitForAsync,
		MaxExecTime:  cfg.ClickHouse.MaxExecutionTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideStorage opens the snapshot store selected by storage.type and
// creates its schema.
func ProvideStorage(cfg *config.Config, ch *pkgch.Client) (repository.Storage, error) {
	var store repository.Storage
	switch cfg.Storage.Type {
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("clickhouse storage without client")
		}
		store = internalrepo.NewClickHouseStorage(ch.DB(), cfg.ClickHouse.Database+".indicator_snapshots")
	default:
		s, err := internalrepo.NewSQLiteStorage(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite storage: %w", err)
		}
		store = s
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("storage schema: %w", err)
	}
	return store, nil
}

// ProvidePublisher creates the Kafka snapshot publisher, nil without a producer.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

func ProvideSnapshotProcessor(pub repository.Publisher, store repository.Storage, m repository.Metrics, cfg *config.Config) *usecase.SnapshotProcessor {
	return usecase.NewSnapshotProcessor(pub, store, m, cfg.Backend.Type)
}

func ProvidePipeline(proc *usecase.SnapshotProcessor, m repository.Metrics, cfg *config.Config) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(proc, m,
		mid.WithMinInterval(cfg.Collector.MinInterval),
		mid.WithBufferSize(cfg.Collector.BufferSize),
	)
}

// ProvideWatchlist turns the configured watch entries into descriptors.
func ProvideWatchlist(cfg *config.Config) ([]*models.Indicator, error) {
	out := make([]*models.Indicator, 0, len(cfg.Collector.Watchlist))
	for i, w := range cfg.Collector.Watchlist {
		taxonomy, err := models.ResolveTaxonomy(w.Taxonomy, w.Category)
		if err != nil {
			return nil, fmt.Errorf("watchlist[%d]: %w", i, err)
		}
		ind := &models.Indicator{Indicator: w.Indicator, Taxonomy: taxonomy, Period: w.Period}
		if w.AdminLevel != nil {
			ind.SetAdminLevel(models.AdminLevel(*w.AdminLevel))
		}
		if err := ind.Validate(); err != nil {
			return nil, fmt.Errorf("watchlist[%d]: %w", i, err)
		}
		out = append(out, ind)
	}
	return out, nil
}

func ProvideHub(l *logger.Logger) (*ws.Hub, func()) {
	hub := ws.NewHub(l, 30*time.Second)
	return hub, hub.Close
}

// ProvideIndicatorQuery creates the on-demand query use case. Query results
// are persisted only with backend.persist_queries.
func ProvideIndicatorQuery(
	source *uda.Client,
	store repository.Storage,
	pipe *mid.RealtimePipeline,
	m repository.Metrics,
	cfg *config.Config,
	l *logger.Logger,
) *usecase.IndicatorQuery {
	if !cfg.Backend.Persist {
		pipe = nil
	}
	return usecase.NewIndicatorQuery(source, store, pipe, m, l)
}

// ProvideCollector creates the watchlist collector, nil when disabled.
func ProvideCollector(
	cfg *config.Config,
	source *uda.Client,
	watchlist []*models.Indicator,
	pipe *mid.RealtimePipeline,
	proc *usecase.SnapshotProcessor,
	hub *ws.Hub,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.IndicatorCollector {
	if !cfg.Collector.Enabled || len(watchlist) == 0 {
		return nil
	}
	return usecase.NewIndicatorCollector(source, watchlist, cfg.Collector.Interval, pipe, proc, hub, m, l)
}

// ProvideRefreshQueue creates the Redis refresh queue with its job
// registered, nil when queue.enabled is false.
func ProvideRefreshQueue(
	cfg *config.Config,
	query *usecase.IndicatorQuery,
	hub *ws.Hub,
	m repository.Metrics,
	l *logger.Logger,
) (*queue.RedisQueue, func()) {
	if !cfg.Queue.Enabled {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Cache.Redis.Host, cfg.Cache.Redis.Port),
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	q := queue.NewRedisQueue(l, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client, queue.WithKeyPrefix(cfg.Queue.Prefix))
	q.RegisterJob(usecase.NewRefreshJob(query, hub, m, l))
	return q, func() { _ = client.Close() }
}

// ProvideKafkaConsumer creates the snapshot sink consumer, nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, store repository.Storage, m repository.Metrics, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
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
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewSnapshotSinkHandler(cfg.Kafka.Topic, store, m))
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, km kafkago.Message, err error) {
			m.RecordError("sink_" + topic)
			l.Warn("sink message failed",
				logger.String("topic", topic),
				logger.Int("partition", km.Partition),
				logger.Int64("offset", km.Offset),
				logger.String("key", string(km.Key)),
				logger.Error(err),
			)
		},
	})
	return consumer, nil
}

// ProvideIndicatorsHandler creates the REST handler and enables the refresh
// endpoint when a queue is wired.
func ProvideIndicatorsHandler(l *logger.Logger, query *usecase.IndicatorQuery, q *queue.RedisQueue) *api.IndicatorsEchoHandler {
	h := api.NewIndicatorsEchoHandler(l, query)
	if q != nil {
		h.SetRefreshQueue(q)
	}
	return h
}

func ProvideHTTPServer(cfg *config.Config, l *logger.Logger, h *api.IndicatorsEchoHandler, hub *ws.Hub) *xhttp.Server {
	return xhttp.NewServer(l, []xhttp.Handler{h, hub},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithMetrics(cfg.Metrics.Enabled, cfg.Metrics.Path),
	)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	srv *xhttp.Server,
	pipe *mid.RealtimePipeline,
	proc *usecase.SnapshotProcessor,
	collector *usecase.IndicatorCollector,
	consumer *pkgkafka.Consumer,
	q *queue.RedisQueue,
) *server.App {
	return server.New(cfg, l, srv, pipe, proc, collector, consumer, q)
}
