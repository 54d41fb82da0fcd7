package main

import (
	"context"

	"uniparking/internal/notifications"
	"uniparking/internal/notifications/handler"
	"uniparking/internal/notifications/repository"
	"uniparking/internal/notifications/service"
	"uniparking/internal/notifications/ws"
	"uniparking/pkg/app"
	"uniparking/pkg/config"
	"uniparking/pkg/kafka"
	kafka_config "uniparking/pkg/kafka/config"
	kafka_middleware "uniparking/pkg/kafka/middleware"
	"uniparking/pkg/middleware"
)

const ServiceName = "notifier"

type unreadSummary struct {
	Unread int64 `json:"unread"`
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Notifier requires Kafka", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	cfg.Log.Info("Starting Notifier service")
	serverApp := app.NewApplication(cfg)

	hub := ws.NewHub(cfg.Log)
	inbox := service.NewInboxService(repository.NewMongoInboxRepository(cfg), hub, cfg)
	hub.SetInitDataProvider(func(ctx context.Context, userID int64) any {
		unread, err := inbox.UnreadCount(ctx, userID)
		if err != nil {
			cfg.Log.For(ctx).Warn("Failed to load unread count", "user_id", userID, "error", err)
			return nil
		}
		return unreadSummary{Unread: unread}
	})
	serverApp.AddWorker(app.Worker{Name: "websocket-hub", Run: func(ctx context.Context) error {
		hub.Run(ctx)
		return nil
	}})

	metrics := kafka_middleware.NewMetrics()
	consumer := initConsumer(cfg, kafkaCfg, metrics, notifications.NewWorker(inbox))
	serverApp.AddWorker(app.Worker{Name: "event-consumer", Run: consumer.Start})

	serverApp.SetApp(
		middleware.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		[]app.Check{app.MongoCheck(cfg.Client.Mongo)},
		handler.NewNotificationHandler(inbox, hub, cfg.Log),
	)
	serverApp.OnShutdown(func() {
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
		cfg.Log.Info("Event consumer stopped", "metrics", metrics.Snapshot())
	})
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

func initConsumer(cfg *config.Config, kafkaCfg *kafka_config.Config, metrics *kafka_middleware.Metrics, worker *notifications.Worker) *kafka.Consumer {
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.NotificationTopic,
		cfg.NotificationGroupID,
		cfg.NotificationDLQTopic,
		worker.Handle,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	if kafkaCfg.LogMessages {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	}
	consumer.Use(metrics.ConsumerMiddleware())

	cfg.Log.Info("Event consumer initialized",
		"topic", cfg.NotificationTopic,
		"group_id", cfg.NotificationGroupID,
	)
	return consumer
}
