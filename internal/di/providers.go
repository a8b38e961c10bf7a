package di

import (
	"context"
	"fmt"
	"time"

	"MealSignal/internal/domain/models"
	domrepo "MealSignal/internal/domain/repository"
	"MealSignal/internal/handler/api"
	mid "MealSignal/internal/middleware"
	internalrepo "MealSignal/internal/repository"
	svcmetrics "MealSignal/internal/service/metrics"
	"MealSignal/internal/service/ratelimit"
	"MealSignal/internal/usecase"
	"MealSignal/pkg/cache"
	pkgch "MealSignal/pkg/clickhouse"
	"MealSignal/pkg/config"
	xhttp "MealSignal/pkg/http"
	pkgkafka "MealSignal/pkg/kafka"
	applogger "MealSignal/pkg/logger"
	"MealSignal/pkg/metrics"
	"MealSignal/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	startupTimeout  = 10 * time.Second
	pruneInterval   = time.Minute
	defaultPubAfter = 2 * time.Second
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the registry every collector in the process uses.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideRecorder creates the pipeline metrics recorder.
func ProvideRecorder(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

// ProvideEndpointMetrics creates per-endpoint API metrics.
func ProvideEndpointMetrics(reg *prometheus.Registry) *svcmetrics.Endpoint {
	return svcmetrics.NewEndpoint(reg)
}

// ProvideCache creates the key/value store behind quiz questions and the leaderboard.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Store.Backend != "redis" {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideOpener picks the CSV file backend.
func ProvideOpener(cfg *config.Config) (internalrepo.Opener, error) {
	if cfg.Data.Backend == "http" {
		o, err := internalrepo.NewHTTPOpener(cfg.Data.BaseURL, xhttp.NewClient(xhttp.WithTimeout(cfg.Data.Timeout)))
		if err != nil {
			return nil, fmt.Errorf("http opener: %w", err)
		}
		return o, nil
	}
	return internalrepo.NewDirOpener(cfg.Data.Root), nil
}

// ProvideCSVSource creates the CSV record loader.
func ProvideCSVSource(opener internalrepo.Opener, rec *metrics.Recorder, l *applogger.Logger) *internalrepo.CSVSource {
	src := internalrepo.NewCSVSource(opener, rec)
	src.SetLogger(l)
	return src
}

// ProvideClickHouseClient connects to ClickHouse when the config needs it.
// It returns a nil client otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouseEnabled() {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithPool(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns, cfg.ClickHouse.ConnMaxLifetime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSignalStore creates the ClickHouse biosignal table and store. It
// returns nil when ClickHouse is not configured.
func ProvideSignalStore(ch *pkgch.Client, l *applogger.Logger) (*internalrepo.CHSignalStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHSignalStore(ch)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideSignalSource selects where the aligner reads samples from.
func ProvideSignalSource(cfg *config.Config, csv *internalrepo.CSVSource, store *internalrepo.CHSignalStore) domrepo.SignalSource {
	if cfg.Data.SignalBackend == "clickhouse" && store != nil {
		return store
	}
	return csv
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerMetrics(reg),
		pkgkafka.WithProducerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher wraps the producer for domain events.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.EventPublisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideRecommender creates the recommendation pipeline.
func ProvideRecommender(
	cfg *config.Config,
	meals *internalrepo.CSVSource,
	signals domrepo.SignalSource,
	publisher domrepo.EventPublisher,
	rec *metrics.Recorder,
	l *applogger.Logger,
) *usecase.Recommender {
	pubTimeout := cfg.Kafka.Producer.WriteTimeout
	if pubTimeout <= 0 {
		pubTimeout = defaultPubAfter
	}
	return usecase.NewRecommender(meals, signals, publisher, rec, l, usecase.RecommenderConfig{
		Participants: cfg.Data.Participants,
		Mode:         domrepo.ParseMealMode(cfg.Data.MealMode, models.MealModeAggregated),
		Scale: models.Scale{
			Calorie: cfg.Scoring.CalorieScale,
			Sugar:   cfg.Scoring.SugarScale,
			Protein: cfg.Scoring.ProteinScale,
		},
		DefaultWindowHours: float64(cfg.Scoring.DefaultWindowHours),
		MaxWindowHours:     float64(cfg.Scoring.MaxWindowHours),
		PublishTimeout:     pubTimeout,
	})
}

// ProvideLeaderboard creates the quiz leaderboard.
func ProvideLeaderboard(c cache.Service) *usecase.Leaderboard {
	return usecase.NewLeaderboard(c)
}

// ProvideQuizService creates the food quiz.
func ProvideQuizService(
	cfg *config.Config,
	foods *internalrepo.CSVSource,
	c cache.Service,
	lb *usecase.Leaderboard,
	publisher domrepo.EventPublisher,
	l *applogger.Logger,
) *usecase.QuizService {
	return usecase.NewQuizService(foods, c, lb, publisher, l, cfg.Quiz.Participant, cfg.Quiz.QuestionTTL)
}

// ProvideRateLimiter creates the per-client limiter shared by the quiz and websocket routes.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideHealthChecks lists the dependencies /healthz probes.
func ProvideHealthChecks(c cache.Service, store *internalrepo.CHSignalStore) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{
		"cache": c.Ping,
	}
	if store != nil {
		checks["clickhouse"] = store.Health
	}
	return checks
}

// ProvideHandlers collects every route group.
func ProvideHandlers(
	l *applogger.Logger,
	rec *usecase.Recommender,
	quiz *usecase.QuizService,
	lb *usecase.Leaderboard,
	rl *ratelimit.Limiter,
	endpoint *svcmetrics.Endpoint,
	recorder *metrics.Recorder,
	checks map[string]api.HealthCheck,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewHealthHandler(checks),
		api.NewRecommendationHandler(l, rec, endpoint),
		api.NewQuizHandler(l, quiz, lb, rl, endpoint),
		api.NewSessionHandler(l, rec, recorder, rl),
	}
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, reg *prometheus.Registry, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg, reg))
	}
	return xhttp.NewServer(handlers, opts...)
}

// ProvideIngest builds the Kafka to ClickHouse biosignal path when enabled.
func ProvideIngest(
	cfg *config.Config,
	store *internalrepo.CHSignalStore,
	rec *metrics.Recorder,
	reg *prometheus.Registry,
	l *applogger.Logger,
) (*server.Ingest, error) {
	in := cfg.Kafka.Ingest
	if !in.Enabled || store == nil {
		return &server.Ingest{}, nil
	}

	pipeline := mid.NewIngestPipeline(store, rec,
		mid.WithBatchSize(in.BatchSize),
		mid.WithBatchTimeout(in.BatchTimeout),
		mid.WithPipelineLogger(l),
	)

	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(in.GroupID),
		pkgkafka.WithConsumerWorkers(in.Workers),
		pkgkafka.WithConsumerBufferSize(in.BufferSize),
		pkgkafka.WithConsumerRetry(in.RetryMax, in.BackoffMin, in.BackoffMax),
		pkgkafka.WithConsumerDLQ(in.DLQTopic),
		pkgkafka.WithConsumerFetch(in.MinBytes, in.MaxBytes),
		pkgkafka.WithConsumerMetrics(reg),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceHook(l))
	consumer.RegisterHandler(usecase.NewSignalIngestHandler(in.Topic, pipeline, rec))

	return &server.Ingest{Consumer: consumer, Pipeline: pipeline}, nil
}

// ProvideApp assembles the application and its shutdown order.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	ingest *server.Ingest,
	publisher domrepo.EventPublisher,
	ch *pkgch.Client,
	c cache.Service,
	rl *ratelimit.Limiter,
) *server.App {
	opts := []server.Option{
		server.WithIngest(ingest),
		server.WithCloser("event publisher", publisher.Close),
		server.WithCloser("cache", c.Close),
		server.WithTicker("ratelimit prune", pruneInterval, func() { rl.Prune() }),
	}
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch.Close))
	}
	return server.New(cfg, l, srv, opts...)
}
