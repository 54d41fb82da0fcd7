package main

import (
	"context"
	"time"

	mongoMigration "uniparking/internal/migrations/mongo"
	"uniparking/pkg/config"
	"uniparking/pkg/db/postgres"
)

const JobName = "parking-migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetPostgres()
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting migration job")
	migratePostgres(ctx, cfg)
	migrateMongo(ctx, cfg)
	cfg.Log.Info("Migration completed successfully")
}

func migratePostgres(ctx context.Context, cfg *config.Config) {
	if err := postgres.Migrate(ctx, cfg.Client.Postgres); err != nil {
		cfg.Log.Fatal("Postgres migration failed", "error", err)
	}
	cfg.Log.Info("Postgres schema is up to date")
}

func migrateMongo(ctx context.Context, cfg *config.Config) {
	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
		cfg.Log.Fatal("Mongo migration failed", "error", err)
	}
}
