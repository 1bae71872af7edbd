package main

import (
	"context"

	"stayhub/internal/bookings/events"
	"stayhub/internal/bookings/handler"
	"stayhub/internal/bookings/repository"
	"stayhub/internal/bookings/service"
	"stayhub/internal/bookings/validator"
	propertiesrepo "stayhub/internal/properties/repository"
	"stayhub/pkg/app"
	"stayhub/pkg/config"
	"stayhub/pkg/kafka"
	kafka_config "stayhub/pkg/kafka/config"
	kafka_middleware "stayhub/pkg/kafka/middleware"
)

const ServiceName = "bookings-service"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Bookings service")
	serverApp := app.NewApplication(cfg)

	bookingService := initServices(cfg, serverApp)
	bookingHandler := handler.NewBookingHandler(bookingService, validator.NewBookingValidator(cfg.Log), cfg.Log)

	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.SetApp(bookingHandler, handler.NewHealthHandler(readinessChecks(cfg), cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, serverApp *app.Application) service.BookingService {
	bookingService := service.NewBookingService(
		repository.NewMongoBookingRepository(cfg),
		repository.NewBookingLockRepository(cfg),
		propertiesrepo.NewMongoPropertyRepository(cfg),
		cfg,
	)
	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)

	if !cfg.KafkaEnabled() {
		cfg.Log.Info("Kafka brokers not configured, booking events disabled")
		return bookingService
	}

	kafkaCfg, err := kafka_config.Load(cfg.KafkaBrokers)
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	producer.Use(kafka_middleware.MetricsProducerMiddleware(metrics))
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))

	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
		metrics.LogMetrics(cfg.Log)
	})

	cfg.Log.Info("Booking events enabled", "topic", producer.Topic())
	return events.NewPublishingService(bookingService, producer, ServiceName, cfg.Log)
}

func readinessChecks(cfg *config.Config) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"mongo": func(ctx context.Context) error {
			return cfg.Client.Mongo.Ping(ctx, nil)
		},
	}
	if cfg.Client.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return cfg.Client.Redis.Ping(ctx).Err()
		}
	}
	return checks
}
