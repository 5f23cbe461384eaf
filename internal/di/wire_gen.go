//go:build !wireinject
// +build !wireinject

// Hand-maintained injector mirroring the provider set in wire.go. Keep the
// call order here in step with wire.Build when providers change.

package di

import (
	"VitalSense/pkg/config"
	"VitalSense/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	recorder := ProvideMetrics()
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := ProvideLogger(cfg, producer)
	if err != nil {
		return nil, err
	}
	engineFactory := ProvideEngineFactory(cfg, logger)
	sessionRegistry := ProvideSessionRegistry(engineFactory, cfg, logger)
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	clickHouseAssessmentStore := ProvideAssessmentStore(client, cfg, logger)
	kafkaPublisher := ProvidePublisher(producer, cfg)
	service, err := ProvideCache(cfg)
	if err != nil {
		return nil, err
	}
	cachedLatest := ProvideLatestCache(service, cfg)
	realtimePipeline := ProvidePipeline(cfg, recorder, clickHouseAssessmentStore, kafkaPublisher, cachedLatest, logger)
	limiter := ProvideRateLimiter()
	assessmentProcessor := ProvideAssessmentProcessor(sessionRegistry, realtimePipeline, kafkaPublisher, recorder, logger)
	vitalsEchoHandler := ProvideVitalsHandler(cfg, logger, assessmentProcessor, cachedLatest, clickHouseAssessmentStore, limiter)
	httpServer := ProvideHTTPServer(cfg, vitalsEchoHandler, logger)
	consumer, err := ProvideKafkaConsumer(cfg, logger)
	if err != nil {
		return nil, err
	}
	kafkaReadingsHandler := ProvideReadingsHandler(cfg, assessmentProcessor, recorder)
	readingCollector := ProvideReadingCollector(cfg, assessmentProcessor, recorder, logger)
	ingest := ProvideIngest(consumer, kafkaReadingsHandler, readingCollector)
	infra := ProvideInfra(client, producer, service)
	app := server.New(cfg, logger, recorder, sessionRegistry, realtimePipeline, limiter, httpServer, ingest, infra)
	return app, nil
}
