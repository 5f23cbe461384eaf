package di

import (
	"context"
	"fmt"
	"time"

	domrepo "VitalSense/internal/domain/repository"
	"VitalSense/internal/handler/api"
	mid "VitalSense/internal/middleware"
	internalrepo "VitalSense/internal/repository"
	"VitalSense/internal/service/devicegw"
	svcmetrics "VitalSense/internal/service/metrics"
	"VitalSense/internal/service/ratelimit"
	"VitalSense/internal/services/analytics"
	"VitalSense/internal/services/features"
	"VitalSense/internal/services/vitals"
	"VitalSense/internal/usecase"
	"VitalSense/pkg/cache"
	pkgch "VitalSense/pkg/clickhouse"
	"VitalSense/pkg/config"
	xhttp "VitalSense/pkg/http"
	pkgkafka "VitalSense/pkg/kafka"
	applogger "VitalSense/pkg/logger"
	"VitalSense/pkg/metrics"
	"VitalSense/pkg/server"
)

// ProvideLogger builds the zerolog-backed logger and, when a collect topic
// is configured, ships aggregated errors through the Kafka producer.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: "vitalsense",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.CollectTopic != "" && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.CollectEvery,
			CountThreshold: 100,
			Topic:          cfg.Logging.CollectTopic,
			Publisher:      producer,
			Levels:         []string{"error"},
			IgnoreFields:   []string{"subject_id", "trace_id", "seq"},
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideClickHouseClient connects and ensures the assessments schema.
// Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
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
	if err := client.InitSchema(ctx, internalrepo.AssessmentSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithClientID("vitalsense-"+cfg.Environment),
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

// ProvideCache returns Redis behind a local L1 when Redis is enabled, and a
// process-local cache otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(10000),
			cache.WithMemoryDefaultTTL(cfg.Redis.LatestTTL),
		), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisURL(cfg.Redis.URL),
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(10000),
		cache.WithLayeredLocalTTL(cfg.Redis.LocalTTL),
	), nil
}

// ProvideAssessmentStore returns nil when ClickHouse is disabled.
func ProvideAssessmentStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.ClickHouseAssessmentStore {
	if ch == nil {
		return nil
	}
	s := internalrepo.NewClickHouseAssessmentStore(ch, cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

// ProvidePublisher returns nil when Kafka is disabled.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) *internalrepo.KafkaPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.AssessmentsTopic, cfg.Kafka.DeltasTopic)
}

func ProvideLatestCache(c cache.Service, cfg *config.Config) *internalrepo.CachedLatest {
	return internalrepo.NewCachedLatest(c, cfg.Redis.LatestTTL)
}

// ProvidePipeline fans assessments out to every enabled sink.
func ProvidePipeline(
	cfg *config.Config,
	m domrepo.Metrics,
	store *internalrepo.ClickHouseAssessmentStore,
	pub *internalrepo.KafkaPublisher,
	latest *internalrepo.CachedLatest,
	l *applogger.Logger,
) *mid.RealtimePipeline {
	sinks := []mid.Sink{latest}
	if store != nil {
		sinks = append(sinks, store)
	}
	if pub != nil {
		sinks = append(sinks, pub)
	}
	return mid.NewRealtimePipeline(m, sinks,
		mid.WithBufferSize(cfg.Pipeline.BufferSize),
		mid.WithRetry(cfg.Pipeline.RetryMax, cfg.Pipeline.BackoffMin, cfg.Pipeline.BackoffMax),
		mid.WithPipelineLogger(l),
	)
}

// EngineConfig maps the YAML calibration onto the engine's config.
func EngineConfig(e config.Engine) vitals.Config {
	c := vitals.DefaultConfig()
	c.WindowSize = e.WindowSize
	c.SequenceLength = e.SequenceLength
	c.Baseline.MinReadings = e.Baseline.MinReadings
	c.Baseline.MinStdTemp = e.Baseline.MinStdTemp
	c.Baseline.MinStdHR = e.Baseline.MinStdHR
	c.Fusion = vitals.FusionConfig{
		SequenceWeight: e.Fusion.SequenceWeight,
		PointWeight:    e.Fusion.PointWeight,
		ErrorScale:     e.Fusion.ErrorScale,
	}
	c.Thresholds = vitals.Thresholds{Critical: e.Thresholds.Critical, Warning: e.Thresholds.Warning}
	c.Consistency = vitals.ConsistencyConfig{Window: e.Consistency.Window, MaxTempRange: e.Consistency.MaxTempRange}
	c.Adapter = vitals.AdapterConfig{
		MinReadings:  e.Adapter.MinReadings,
		LearningRate: e.Adapter.LearningRate,
		MaxParam:     e.Adapter.MaxParam,
	}
	c.Scaler = features.MinMaxScaler{
		TempMin: e.Scaler.TempMin,
		TempMax: e.Scaler.TempMax,
		HRMin:   e.Scaler.HRMin,
		HRMax:   e.Scaler.HRMax,
	}
	return c
}

// ProvideEngineFactory shares the stateless model clients across subjects
// and gives every subject its own adapter.
func ProvideEngineFactory(cfg *config.Config, l *applogger.Logger) usecase.EngineFactory {
	ec := EngineConfig(cfg.Engine)
	var shared []vitals.Option
	if cfg.Models.ServiceURL != "" {
		svcmetrics.Register()
		shared = append(shared,
			vitals.WithPointClassifier(analytics.NewHTTPPointClassifier(cfg)),
			vitals.WithSequencePredictor(analytics.NewHTTPSequencePredictor(cfg)),
		)
	}
	return func(subjectID string) *vitals.Engine {
		opts := append(shared[:len(shared):len(shared)], vitals.WithLogger(l.With(applogger.String("subject_id", subjectID))))
		if cfg.Engine.AdaptOnline {
			opts = append(opts, vitals.WithLocalAdapter(vitals.NewOnlineAdapter(ec.Adapter, ec.Scaler)))
		}
		return vitals.NewEngine(subjectID, ec, opts...)
	}
}

func ProvideSessionRegistry(factory usecase.EngineFactory, cfg *config.Config, l *applogger.Logger) *usecase.SessionRegistry {
	return usecase.NewSessionRegistry(factory, cfg.Sessions.IdleTTL, l)
}

func ProvideAssessmentProcessor(
	sessions *usecase.SessionRegistry,
	pipe *mid.RealtimePipeline,
	pub *internalrepo.KafkaPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.AssessmentProcessor {
	var deltas domrepo.Publisher
	if pub != nil {
		deltas = pub
	}
	return usecase.NewAssessmentProcessor(sessions, pipe, deltas, m, l)
}

// ProvideKafkaConsumer returns nil unless the readings consumer is enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
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
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook{}))
	return consumer, nil
}

func ProvideReadingsHandler(cfg *config.Config, proc *usecase.AssessmentProcessor, m domrepo.Metrics) *usecase.KafkaReadingsHandler {
	return usecase.NewKafkaReadingsHandler(cfg.Kafka.ReadingsTopic, proc, m)
}

// ProvideReadingCollector returns nil unless the device gateway is enabled.
func ProvideReadingCollector(cfg *config.Config, proc *usecase.AssessmentProcessor, m domrepo.Metrics, l *applogger.Logger) *usecase.ReadingCollector {
	if !cfg.DeviceGateway.Enabled {
		return nil
	}
	stream := devicegw.New(
		cfg.DeviceGateway.URL,
		cfg.DeviceGateway.Token,
		cfg.DeviceGateway.ReconnectDelay,
		cfg.DeviceGateway.PingInterval,
		l,
	)
	return usecase.NewReadingCollector(stream, proc, m, l)
}

func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

func ProvideVitalsHandler(
	cfg *config.Config,
	l *applogger.Logger,
	proc *usecase.AssessmentProcessor,
	latest *internalrepo.CachedLatest,
	store *internalrepo.ClickHouseAssessmentStore,
	limiter *ratelimit.Limiter,
) *api.VitalsEchoHandler {
	var history domrepo.AssessmentStore
	if store != nil {
		history = store
	}
	return api.NewVitalsEchoHandler(l, proc, latest, history, limiter, api.RateLimit{
		Capacity:        float64(cfg.RateLimit.Capacity),
		RefillPerSecond: float64(cfg.RateLimit.RefillPerSecond),
	})
}

func ProvideHTTPServer(cfg *config.Config, h *api.VitalsEchoHandler, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

func ProvideIngest(consumer *pkgkafka.Consumer, readings *usecase.KafkaReadingsHandler, collector *usecase.ReadingCollector) server.Ingest {
	return server.Ingest{Consumer: consumer, Readings: readings, Collector: collector}
}

func ProvideInfra(ch *pkgch.Client, producer *pkgkafka.Producer, c cache.Service) server.Infra {
	return server.Infra{ClickHouse: ch, Producer: producer, Cache: c}
}
