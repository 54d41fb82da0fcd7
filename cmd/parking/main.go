package main

import (
	"errors"

	"uniparking/internal/allocator"
	"uniparking/internal/directory"
	locationhandler "uniparking/internal/locations/handler"
	locationrepo "uniparking/internal/locations/repository"
	locationservice "uniparking/internal/locations/service"
	locationvalidator "uniparking/internal/locations/validator"
	"uniparking/internal/notifications"
	"uniparking/internal/payments"
	"uniparking/internal/pricing"
	reservationhandler "uniparking/internal/reservations/handler"
	reservationrepo "uniparking/internal/reservations/repository"
	reservationservice "uniparking/internal/reservations/service"
	reservationvalidator "uniparking/internal/reservations/validator"
	sessionhandler "uniparking/internal/sessions/handler"
	sessionrepo "uniparking/internal/sessions/repository"
	sessionservice "uniparking/internal/sessions/service"
	sessionvalidator "uniparking/internal/sessions/validator"
	"uniparking/pkg/app"
	"uniparking/pkg/config"
	"uniparking/pkg/kafka"
	kafka_config "uniparking/pkg/kafka/config"
	kafka_middleware "uniparking/pkg/kafka/middleware"
	"uniparking/pkg/middleware"
	"uniparking/pkg/validation"
)

const ServiceName = "parking-api"

type services struct {
	locations    locationservice.LocationService
	reservations reservationservice.ReservationService
	sessions     sessionservice.SessionService
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetPostgres()

	cfg.Log.Info("Starting Parking API service")
	serverApp := app.NewApplication(cfg)

	publisher := initPublisher(cfg, serverApp)
	svc := initServices(cfg, publisher)

	sweeper := sessionservice.NewSweeper(svc.sessions, cfg.SessionSweepInterval, cfg.Log)
	serverApp.AddWorker(app.Worker{Name: "session-sweeper", Run: sweeper.Run})

	serverApp.SetApp(
		middleware.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		[]app.Check{app.PostgresCheck(cfg.Client.Postgres)},
		locationhandler.NewLocationHandler(svc.locations, cfg.Log),
		reservationhandler.NewReservationHandler(svc.reservations, cfg.Log),
		sessionhandler.NewSessionHandler(svc.sessions, cfg.Log),
	)
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

// initPublisher falls back to a no-op publisher when no brokers are
// configured so the API still runs without the notifier.
func initPublisher(cfg *config.Config, serverApp *app.Application) notifications.Publisher {
	kafkaCfg, err := kafka_config.Load()
	if errors.Is(err, kafka_config.ErrDisabled) {
		cfg.Log.Warn("Kafka disabled, notifications will not be published")
		return notifications.Nop{}
	}
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.NotificationTopic, cfg.NotificationDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	metrics := kafka_middleware.NewMetrics()
	if kafkaCfg.LogMessages {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	producer.Use(metrics.ProducerMiddleware())

	dispatcher := notifications.NewDispatcher(producer, cfg.Log, ServiceName, cfg.NotificationBuffer)
	serverApp.OnShutdown(func() {
		dispatcher.Stop()
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
		cfg.Log.Info("Notification publisher stopped", "metrics", metrics.Snapshot())
	})

	cfg.Log.Info("Notification publisher initialized", "topic", cfg.NotificationTopic)
	return dispatcher
}

func initServices(cfg *config.Config, publisher notifications.Publisher) services {
	v := validation.New(cfg.Log)
	calculator := pricing.NewCalculator()
	cards := payments.NewGate(v, cfg.Log)
	dir := directory.NewPostgresDirectory(cfg.Client.Postgres)
	alloc := allocator.New(allocator.NewPostgresStore(cfg.Client.Postgres), cfg.Log)

	locations := locationservice.NewLocationService(
		locationrepo.NewPostgresLocationRepository(cfg),
		locationvalidator.NewLocationValidator(v, cfg.MinHourlyRate, cfg.MaxSpacesPerLocation),
		cfg,
	)

	sessions := sessionservice.NewSessionService(
		sessionrepo.NewPostgresSessionRepository(cfg),
		sessionvalidator.NewSessionValidator(v, cfg.MaxSessionHours, cfg.MaxExtensionHours),
		alloc,
		calculator,
		cards,
		dir,
		publisher,
		cfg,
	)

	reservations := reservationservice.NewReservationService(
		reservationrepo.NewPostgresReservationRepository(cfg),
		reservationvalidator.NewReservationValidator(v, cfg.MaxReservationHours),
		alloc,
		calculator,
		cards,
		dir,
		sessions,
		publisher,
		cfg,
	)

	cfg.Log.Info("Parking services initialized")
	return services{locations: locations, reservations: reservations, sessions: sessions}
}
