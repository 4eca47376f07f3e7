package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	PublicBaseURL string
	CookieSecure  bool

	OTLPEndpoint string

	DBType            string
	DBURL             string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Payment   PaymentConfig
	Responder ResponderConfig
	Dispatch  DispatchConfig
	Recovery  RecoveryConfig
	AWS       AWSConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Secrets   SecretsConfig
	Metrics   BusinessMetricsConfig

	SessionSecret          string
	AdminBootstrapEmail    string
	AdminBootstrapPassword string
}

type PaymentConfig struct {
	Provider            string
	Currency            string
	FilingFee           int64
	StripeSecretKey     string
	StripeWebhookSecret string
	PayPalClientID      string
	PayPalClientSecret  string
	PayPalSandbox       bool
}

type ResponderConfig struct {
	Provider         string
	AnthropicAPIKey  string
	AnthropicBaseURL string
}

type DispatchConfig struct {
	Mode     string
	QueueURL string
}

type RecoveryConfig struct {
	Enabled   bool
	Interval  time.Duration
	Threshold time.Duration
	BatchSize int
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	Rate    float64
	Burst   int
}

type SecretsConfig struct {
	SSMEnabled bool
	SSMPrefix  string
}

type BusinessMetricsConfig struct {
	Enabled   bool
	Exporter  string
	Endpoint  string
	AuthToken string
	Interval  time.Duration
}

const (
	DispatchInline = "inline"
	DispatchSQS    = "sqs"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	cookieSecure := environment == "production"
	if !cookieSecure {
		cookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "grievance-portal"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   environment,
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:5173"), "/"),
		CookieSecure:  cookieSecure,
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBURL:             strings.TrimSpace(getenv("DATABASE_URL", "")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "grievance"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Payment: PaymentConfig{
			Provider:            strings.ToLower(getenv("PAYMENT_PROVIDER", "stripe")),
			Currency:            strings.ToLower(getenv("PAYMENT_CURRENCY", "usd")),
			FilingFee:           getenvInt64("FILING_FEE_CENTS", 500),
			StripeSecretKey:     strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			StripeWebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			PayPalClientID:      strings.TrimSpace(getenv("PAYPAL_CLIENT_ID", "")),
			PayPalClientSecret:  strings.TrimSpace(getenv("PAYPAL_CLIENT_SECRET", "")),
			PayPalSandbox:       getenvBool("PAYPAL_SANDBOX", environment != "production"),
		},
		Responder: ResponderConfig{
			Provider:         strings.ToLower(getenv("RESPONDER_PROVIDER", "bedrock")),
			AnthropicAPIKey:  strings.TrimSpace(getenv("ANTHROPIC_API_KEY", "")),
			AnthropicBaseURL: getenv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		},
		Dispatch: DispatchConfig{
			Mode:     strings.ToLower(getenv("GENERATION_DISPATCH", DispatchInline)),
			QueueURL: strings.TrimSpace(getenv("GENERATION_QUEUE_URL", "")),
		},
		Recovery: RecoveryConfig{
			Enabled:   getenvBool("RECOVERY_ENABLED", true),
			Interval:  getenvDuration("RECOVERY_INTERVAL", time.Minute),
			Threshold: getenvDuration("RECOVERY_THRESHOLD", 15*time.Minute),
			BatchSize: getenvInt("RECOVERY_BATCH_SIZE", 50),
		},
		AWS: AWSConfig{
			Region:          getenv("AWS_REGION", "us-east-1"),
			AccessKeyID:     strings.TrimSpace(getenv("AWS_ACCESS_KEY_ID", "")),
			SecretAccessKey: strings.TrimSpace(getenv("AWS_SECRET_ACCESS_KEY", "")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled: getenvBool("RATE_LIMIT_ENABLED", true),
			Rate:    getenvFloat("RATE_LIMIT_RPS", 1),
			Burst:   getenvInt("RATE_LIMIT_BURST", 10),
		},
		Secrets: SecretsConfig{
			SSMEnabled: getenvBool("SSM_ENABLED", false),
			SSMPrefix:  getenv("SSM_PREFIX", "/grievance-portal/"),
		},
		Metrics: BusinessMetricsConfig{
			Enabled:   getenvBool("BUSINESS_METRICS_ENABLED", false),
			Exporter:  strings.ToLower(getenv("BUSINESS_METRICS_EXPORTER", "")),
			Endpoint:  strings.TrimSpace(getenv("BUSINESS_METRICS_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("BUSINESS_METRICS_AUTH_TOKEN", "")),
			Interval:  getenvDuration("BUSINESS_METRICS_INTERVAL", time.Minute),
		},

		SessionSecret:          strings.TrimSpace(getenv("SESSION_SECRET", "")),
		AdminBootstrapEmail:    strings.TrimSpace(getenv("ADMIN_BOOTSTRAP_EMAIL", "")),
		AdminBootstrapPassword: getenv("ADMIN_BOOTSTRAP_PASSWORD", ""),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
