package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"textvault"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"textvault"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	// Object storage for raw upload bytes: "local" or "s3".
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"local"`
	UploadDir      string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3Region       string `envconfig:"S3_REGION"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`

	// Ingestion queue and worker.
	QueueCapacity     int `envconfig:"QUEUE_CAPACITY" default:"100"`
	WorkerMaxAttempts int `envconfig:"WORKER_MAX_ATTEMPTS" default:"3"`
	WorkerRetryBaseMs int `envconfig:"WORKER_RETRY_BASE_MS" default:"500"`
	IngestTimeoutSec  int `envconfig:"INGEST_TIMEOUT_SEC" default:"300"`

	// Optional NSQ fan-out of ingestion results.
	EnableEvents bool   `envconfig:"ENABLE_EVENTS" default:"false"`
	NSQDHost     string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP     string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	// Pipeline tuning lives in the ingestion_settings row (migration
	// defaults + PUT /settings), not in the environment. Only the values
	// seeded at first boot are configurable here.
	Collection string `envconfig:"COLLECTION" default:"UploadChunk"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	MigrationPath   string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may be set in the shell; a missing .env is fine.
	_ = godotenv.Load(".env")

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.StorageBackend != "local" && c.StorageBackend != "s3" {
		return fmt.Errorf("%w: STORAGE_BACKEND must be local or s3", ErrMissingRequired)
	}
	if c.StorageBackend == "s3" && c.S3Bucket == "" {
		return fmt.Errorf("%w: S3_BUCKET", ErrMissingRequired)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: QUEUE_CAPACITY must be positive", ErrMissingRequired)
	}
	if c.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("%w: MAX_UPLOAD_SIZE_MB must be positive", ErrMissingRequired)
	}
	return nil
}
