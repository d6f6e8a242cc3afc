package config

import (
	"os"
	"strconv"
	"time"
)

// Config is loaded once at startup and injected into constructors.
// Business logic never reads the environment directly.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Payment  PaymentConfig
	Email    EmailConfig
	Links    LinkConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	StaffAddr    string
	PublicAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
	// AdmissionLockTTL bounds how long a purchase attempt can hold the
	// per-occasion advisory lock before it expires on its own.
	AdmissionLockTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
}

// PaymentConfig carries gateway credentials and the merchant location the
// charge is attributed to. Provider selects the adapter: "square" or "stripe".
type PaymentConfig struct {
	Provider          string
	SquareAccessToken string
	SquareLocationID  string
	SquareBaseURL     string
	SquareVersion     string
	StripeSecretKey   string
	Currency          string
	ChargeTimeout     time.Duration
}

type EmailConfig struct {
	ResendAPIKey string
	DefaultFrom  string
	StaffFrom    string
	InternalTo   string
}

// LinkConfig holds the venue site origins used to build organiser, share and
// guest-list links. The defaults match the production venue sites.
type LinkConfig struct {
	ManorBaseURL     string
	HippieBaseURL    string
	GuestListBaseURL string
}

type AuthConfig struct {
	OIDCIssuer string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			StaffAddr:    getEnv("STAFF_ADDR", ":8085"),
			PublicAddr:   getEnv("PUBLIC_ADDR", ":8086"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:             getEnv("REDIS_ADDR", "localhost:6379"),
			AdmissionLockTTL: time.Duration(getEnvInt("ADMISSION_LOCK_TTL_SECONDS", 30)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_ADDR", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
		},
		Payment: PaymentConfig{
			Provider:          getEnv("PAYMENT_PROVIDER", "square"),
			SquareAccessToken: getEnv("SQUARE_ACCESS_TOKEN", ""),
			SquareLocationID:  getEnv("SQUARE_LOCATION_ID", ""),
			SquareBaseURL:     getEnv("SQUARE_BASE_URL", "https://connect.squareup.com"),
			SquareVersion:     getEnv("SQUARE_VERSION", "2024-01-18"),
			StripeSecretKey:   getEnv("STRIPE_SECRET_KEY", ""),
			Currency:          getEnv("PAYMENT_CURRENCY", "AUD"),
			ChargeTimeout:     time.Duration(getEnvInt("PAYMENT_TIMEOUT_SECONDS", 20)) * time.Second,
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			DefaultFrom:  getEnv("EMAIL_FROM", "Manor Perth <phil@manorleederville.com>"),
			StaffFrom:    getEnv("EMAIL_STAFF_FROM", "GM Staff Portal <phil@manorleederville.com>"),
			InternalTo:   getEnv("EMAIL_INTERNAL_TO", "matt@getproductbox.com"),
		},
		Links: LinkConfig{
			ManorBaseURL:     getEnv("MANOR_BASE_URL", "https://manorleederville.com"),
			HippieBaseURL:    getEnv("HIPPIE_BASE_URL", "https://hippie-club.com"),
			GuestListBaseURL: getEnv("GUEST_LIST_BASE_URL", "https://manorleederville.com"),
		},
		Auth: AuthConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
