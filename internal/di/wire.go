//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	domrepo "VitalSense/internal/domain/repository"
	"VitalSense/pkg/config"
	"VitalSense/pkg/metrics"
	"VitalSense/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideMetrics,
		wire.Bind(new(domrepo.Metrics), new(*metrics.Recorder)),

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideClickHouseClient,
		ProvideCache,
		ProvideInfra,

		// Repositories
		ProvideAssessmentStore,
		ProvidePublisher,
		ProvideLatestCache,
		ProvidePipeline,

		// Use cases
		ProvideEngineFactory,
		ProvideSessionRegistry,
		ProvideAssessmentProcessor,
		ProvideReadingsHandler,
		ProvideKafkaConsumer,
		ProvideReadingCollector,
		ProvideIngest,

		// HTTP
		ProvideRateLimiter,
		ProvideVitalsHandler,
		ProvideHTTPServer,

		server.New,
	)
	return &server.App{}, nil
}
