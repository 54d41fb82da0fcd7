package config

const (
	EnvPostgresDSN         = "POSTGRES_DSN"
	EnvPostgresMaxConns    = "POSTGRES_MAX_CONNS"
	EnvPostgresConnTimeout = "POSTGRES_CONN_TIMEOUT"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"
	EnvEnvFile  = "ENV_FILE"

	EnvJWTSecret = "JWT_SECRET"
	EnvJWTIssuer = "JWT_ISSUER"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvMinHourlyRate        = "MIN_HOURLY_RATE"
	EnvReservationHoldTTL   = "RESERVATION_HOLD_TTL"
	EnvMaxReservationHours  = "MAX_RESERVATION_HOURS"
	EnvMaxSessionHours      = "MAX_SESSION_HOURS"
	EnvMaxExtensionHours    = "MAX_EXTENSION_HOURS"
	EnvMaxSpacesPerLocation = "MAX_SPACES_PER_LOCATION"
	EnvSessionSweepInterval = "SESSION_SWEEP_INTERVAL"

	EnvNotificationTopic    = "NOTIFICATION_TOPIC"
	EnvNotificationDLQTopic = "NOTIFICATION_DLQ_TOPIC"
	EnvNotificationGroupID  = "NOTIFICATION_GROUP_ID"
	EnvNotificationBuffer   = "NOTIFICATION_BUFFER"
)
