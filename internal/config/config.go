package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server      ServerConfig
	App         AppConfig
	CORS        CORSConfig
	ItemDB      ItemDBConfig
	Images      ImageConfig
	Retention   RetentionConfig
	Items       ItemsConfig
	Cache       CacheConfig
	Suggestions SuggestionsConfig
	Log         LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"5000"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"lostfound-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	LoginKey    string `envconfig:"LOGIN_KEY" default:""` // Admin key; empty leaves admin routes open
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

// ItemDBConfig selects and configures the item store.
type ItemDBConfig struct {
	Type string `envconfig:"ITEM_DB_TYPE" default:"sqlite"` // sqlite, postgres, mysql or mongodb
	Path string `envconfig:"ITEM_DB_PATH" default:"./data/lostfound.db"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"ITEM_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"ITEM_DB_PORT"` // 0 picks the dialect's standard port
	Name     string `envconfig:"ITEM_DB_NAME" default:"lostfound"`
	User     string `envconfig:"ITEM_DB_USER" default:"postgres"`
	Password string `envconfig:"ITEM_DB_PASS" default:""`
	SSLMode  string `envconfig:"ITEM_DB_SSLMODE" default:"disable"`
	// MongoDB settings
	MongoURI        string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"lostfound"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"items"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (i *ItemDBConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		i.User, i.Password, i.Host, i.portOr(5432), i.Name, i.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (i *ItemDBConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&clientFoundRows=true",
		i.User, i.Password, i.Host, i.portOr(3306), i.Name)
}

func (i *ItemDBConfig) portOr(standard int) int {
	if i.Port > 0 {
		return i.Port
	}
	return standard
}

// ImageConfig configures the image store.
type ImageConfig struct {
	Backend        string        `envconfig:"IMAGE_STORAGE" default:"local"` // local or s3
	UploadDir      string        `envconfig:"IMAGE_UPLOAD_DIR" default:"./uploads"`
	PublicBaseURL  string        `envconfig:"IMAGE_PUBLIC_BASE_URL" default:""`
	MaxUploadBytes int64         `envconfig:"MAX_UPLOAD_BYTES" default:"5242880"`
	AcceptedTypes  []string      `envconfig:"ACCEPTED_IMAGE_TYPES" default:"image/jpeg,image/png,image/gif,image/webp"`
	Normalize      bool          `envconfig:"IMAGE_NORMALIZE" default:"true"`
	MaxDimension   int           `envconfig:"IMAGE_MAX_DIMENSION" default:"800"`
	Timeout        time.Duration `envconfig:"IMAGE_TIMEOUT" default:"10s"`

	S3Bucket    string `envconfig:"AWS_S3_BUCKET" default:""`
	S3Region    string `envconfig:"AWS_REGION" default:"us-east-1"`
	S3Endpoint  string `envconfig:"AWS_S3_ENDPOINT" default:""`
	S3AccessKey string `envconfig:"AWS_ACCESS_KEY_ID" default:""`
	S3SecretKey string `envconfig:"AWS_SECRET_ACCESS_KEY" default:""`
	S3PublicURL string `envconfig:"AWS_S3_PUBLIC_URL" default:""`
	S3Prefix    string `envconfig:"AWS_S3_PREFIX" default:"lost-found"`
}

// RetentionConfig drives automatic expiry of unclaimed items.
type RetentionConfig struct {
	AutoDeleteHours    int `envconfig:"AUTO_DELETE_HOURS" default:"72"`
	CleanupIntervalHrs int `envconfig:"CLEANUP_INTERVAL_HOURS" default:"1"`
	ExpiryWarningHours int `envconfig:"EXPIRY_WARNING_HOURS" default:"1"`
	SweepBatchSize     int `envconfig:"SWEEP_BATCH_SIZE" default:"500"`
	SweepConcurrency   int `envconfig:"SWEEP_CONCURRENCY" default:"4"`
}

// Window is the retention window.
func (r *RetentionConfig) Window() time.Duration {
	return time.Duration(r.AutoDeleteHours) * time.Hour
}

// Interval is the time between sweeps.
func (r *RetentionConfig) Interval() time.Duration {
	return time.Duration(r.CleanupIntervalHrs) * time.Hour
}

// Warning is how far ahead of expiry an item counts as expiring soon.
func (r *RetentionConfig) Warning() time.Duration {
	return time.Duration(r.ExpiryWarningHours) * time.Hour
}

// ItemsConfig holds item validation policy.
type ItemsConfig struct {
	RequireContactInfo bool `envconfig:"ITEM_REQUIRE_CONTACT_INFO" default:"false"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type       string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL        time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	MemorySize int           `envconfig:"CACHE_MEMORY_SIZE" default:"1024"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// SuggestionsConfig selects the suggestion provider.
type SuggestionsConfig struct {
	Provider string `envconfig:"SUGGESTIONS_PROVIDER" default:"catalog"` // catalog or none
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"` // json or text
}

// NewLogger builds the process logger.
func (l *LogConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(l.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.ItemDB.Type {
	case "sqlite", "postgres", "mysql", "mongodb":
	default:
		return fmt.Errorf("ITEM_DB_TYPE: unsupported value %q", c.ItemDB.Type)
	}
	switch c.Images.Backend {
	case "local":
	case "s3":
		if c.Images.S3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required when IMAGE_STORAGE=s3")
		}
	default:
		return fmt.Errorf("IMAGE_STORAGE: unsupported value %q", c.Images.Backend)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("CACHE_TYPE: unsupported value %q", c.Cache.Type)
	}
	switch c.Suggestions.Provider {
	case "catalog", "none":
	default:
		return fmt.Errorf("SUGGESTIONS_PROVIDER: unsupported value %q", c.Suggestions.Provider)
	}
	if c.Retention.AutoDeleteHours < 1 {
		return fmt.Errorf("AUTO_DELETE_HOURS must be at least 1")
	}
	if c.Retention.CleanupIntervalHrs < 1 {
		return fmt.Errorf("CLEANUP_INTERVAL_HOURS must be at least 1")
	}
	if c.Images.MaxUploadBytes < 1 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if len(c.Images.AcceptedTypes) == 0 {
		return fmt.Errorf("ACCEPTED_IMAGE_TYPES must list at least one type")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
