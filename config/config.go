package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"sage-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"300"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (Warehouse)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"sage"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Stripe (billing source)
	StripeAPIBaseURL     string        `env:"STRIPE_API_BASE_URL" env-default:"https://api.stripe.com/v1"`
	StripeAPIKey         string        `env:"STRIPE_API_KEY" env-default:""`
	StripePageSize       int           `env:"STRIPE_PAGE_SIZE" env-default:"100"`
	StripeRequestTimeout time.Duration `env:"STRIPE_REQUEST_TIMEOUT" env-default:"30s"`

	// AutoCare (operational source)
	AutoCareBaseURL        string        `env:"AUTOCARE_BASE_URL" env-default:""`
	AutoCareEmail          string        `env:"AUTOCARE_EMAIL" env-default:""`
	AutoCarePassword       string        `env:"AUTOCARE_PASSWORD" env-default:""`
	AutoCareRequestTimeout time.Duration `env:"AUTOCARE_REQUEST_TIMEOUT" env-default:"120s"`
	AutoCareTokenTTL       time.Duration `env:"AUTOCARE_TOKEN_TTL" env-default:"30m"`

	// Sync engine
	SyncMaxPagesPerRun  int `env:"SYNC_MAX_PAGES_PER_RUN" env-default:"200"`
	SyncRawBatchSize    int `env:"SYNC_RAW_BATCH_SIZE" env-default:"500"`
	SyncHistoryPageSize int `env:"SYNC_HISTORY_PAGE_SIZE" env-default:"50"`

	// Receiver webhook (new-customer notifications)
	WebhookURL           string        `env:"RECEIVER_WEBHOOK_URL" env-default:""`
	WebhookSecret        string        `env:"RECEIVER_WEBHOOK_SECRET" env-default:""`
	WebhookTimeout       time.Duration `env:"RECEIVER_WEBHOOK_TIMEOUT" env-default:"120s"`
	WebhookMaxPerRequest int           `env:"RECEIVER_WEBHOOK_MAX_PER_REQUEST" env-default:"10000"`

	// Redis (source token cache)
	RedisEnabled  bool   `env:"REDIS_ENABLED" env-default:"true"`
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka Producer settings
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"true"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"sync-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`
}
