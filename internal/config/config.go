package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	OpenAI       OpenAIConfig
	Routing      RoutingConfig
	Scheduler    SchedulerConfig
	Chat         ChatConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// OpenAIConfig configures the chat model used for classification,
// intent detection and reply generation.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// RoutingConfig controls category routing and labeler retry behavior.
type RoutingConfig struct {
	BillingEtaHours   int
	TechnicalEtaHours int
	DeliveryEtaHours  int
	GeneralEtaHours   int
	MaxRetries        int
	RetryBaseDelay    time.Duration
}

// SchedulerConfig controls the lifecycle sweep. InProgressAfter and
// ResolvedAfter are both measured from ticket creation.
type SchedulerConfig struct {
	Interval        time.Duration
	InProgressAfter time.Duration
	ResolvedAfter   time.Duration
}

// ChatConfig controls the conversation pipeline.
type ChatConfig struct {
	ActionConfidenceThreshold float64
	HistoryWindow             int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom string
	AudioDir  string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	threshold, err := strconv.ParseFloat(getEnv("CHAT_ACTION_CONFIDENCE_THRESHOLD", "0.7"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_ACTION_CONFIDENCE_THRESHOLD: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Routing: RoutingConfig{
			BillingEtaHours:   getEnvAsInt("ROUTING_BILLING_ETA_HOURS", 4),
			TechnicalEtaHours: getEnvAsInt("ROUTING_TECHNICAL_ETA_HOURS", 8),
			DeliveryEtaHours:  getEnvAsInt("ROUTING_DELIVERY_ETA_HOURS", 2),
			GeneralEtaHours:   getEnvAsInt("ROUTING_GENERAL_ETA_HOURS", 6),
			MaxRetries:        getEnvAsInt("ROUTING_MAX_RETRIES", 3),
			RetryBaseDelay:    time.Duration(getEnvAsInt("ROUTING_RETRY_BASE_DELAY_MS", 1000)) * time.Millisecond,
		},
		Scheduler: SchedulerConfig{
			Interval:        time.Duration(getEnvAsInt("SCHEDULER_INTERVAL_SECONDS", 90)) * time.Second,
			InProgressAfter: time.Duration(getEnvAsInt("SCHEDULER_IN_PROGRESS_AFTER_SECONDS", 60)) * time.Second,
			ResolvedAfter:   time.Duration(getEnvAsInt("SCHEDULER_RESOLVED_AFTER_SECONDS", 180)) * time.Second,
		},
		Chat: ChatConfig{
			ActionConfidenceThreshold: threshold,
			HistoryWindow:             getEnvAsInt("CHAT_HISTORY_WINDOW", 10),
		},
		Notification: NotificationConfig{
			EmailFrom: getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			AudioDir:  getEnv("NOTIFY_AUDIO_DIR", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
