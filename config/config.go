package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
)

// Config holds everything the storefront server needs at startup.
type Config struct {
	Port       string
	Env        string
	ServerName string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	MongoURL string
	MongoDB  string
	RedisURL string

	CSRFSecret   string
	CSRFSameSite string
	JWTSecret    string
	AdminAPIKey  string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string
	DefaultCurrency     string

	AllowedOrigins []string

	WebhookEventsTable string
	WebhookEventTTL    time.Duration

	OrderEventsTopicARN string
	FulfillmentQueueURL string

	MenuImagesBucket    string
	MenuImagesPublicURL string

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
}

// IsProduction reports whether cookies must be Secure.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// PostgresDSN formats the gorm postgres DSN.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

// secretSource abstracts Secrets Manager for tests.
type secretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// LoadConfig reads configuration from the environment (and .env when present).
// With AWS_USE_SECRETS=true, secret fields are overridden from the JSON secret
// named by APP_SECRETS_NAME.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := fromEnv()

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		if err := applySecrets(ctx, cfg, aws_pkg.NewSecretsClient(awsCfg), getEnv("APP_SECRETS_NAME", "storefront/APP_SECRETS")); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Port:       getEnv("PORT", "8080"),
		Env:        getEnv("APP_ENV", "development"),
		ServerName: getEnv("SERVICE_NAME", "storefront"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),

		MongoURL: getEnv("MONGO_URL", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "storefront"),
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		CSRFSecret:   os.Getenv("CSRF_SECRET"),
		CSRFSameSite: strings.ToLower(getEnv("CSRF_SAMESITE", "lax")),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		AdminAPIKey:  os.Getenv("ADMIN_API_KEY"),

		AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		DefaultCurrency:     strings.ToLower(getEnv("DEFAULT_CURRENCY", "usd")),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		WebhookEventsTable: os.Getenv("WEBHOOK_EVENTS_TABLE"),
		WebhookEventTTL:    getDuration("WEBHOOK_EVENT_TTL", 72*time.Hour),

		OrderEventsTopicARN: os.Getenv("ORDER_EVENTS_TOPIC_ARN"),
		FulfillmentQueueURL: os.Getenv("FULFILLMENT_QUEUE_URL"),

		MenuImagesBucket:    os.Getenv("MENU_IMAGES_BUCKET"),
		MenuImagesPublicURL: os.Getenv("MENU_IMAGES_PUBLIC_URL"),

		CloudWatchEnabled:   getBool("CLOUDWATCH_ENABLED", false),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Storefront"),
		CloudWatchLogGroup:  os.Getenv("CLOUDWATCH_LOG_GROUP"),
	}
}

func applySecrets(ctx context.Context, cfg *Config, src secretSource, name string) error {
	m, err := src.GetSecretMap(ctx, name)
	if err != nil {
		return fmt.Errorf("load secrets: %w", err)
	}

	overrides := map[string]*string{
		"POSTGRES_USER":         &cfg.PostgresUser,
		"POSTGRES_PASSWORD":     &cfg.PostgresPassword,
		"CSRF_SECRET":           &cfg.CSRFSecret,
		"JWT_SECRET":            &cfg.JWTSecret,
		"ADMIN_API_KEY":         &cfg.AdminAPIKey,
		"STRIPE_SECRET_KEY":     &cfg.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": &cfg.StripeWebhookSecret,
	}
	for key, field := range overrides {
		if v, ok := m[key]; ok && v != "" {
			*field = v
		}
	}
	return nil
}

func (c *Config) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"POSTGRES_USER", c.PostgresUser},
		{"POSTGRES_PASSWORD", c.PostgresPassword},
		{"POSTGRES_DB", c.PostgresDB},
		{"CSRF_SECRET", c.CSRFSecret},
		{"JWT_SECRET", c.JWTSecret},
		{"ADMIN_API_KEY", c.AdminAPIKey},
		{"STRIPE_SECRET_KEY", c.StripeSecretKey},
		{"STRIPE_WEBHOOK_SECRET", c.StripeWebhookSecret},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.CSRFSameSite != "lax" && c.CSRFSameSite != "strict" {
		return fmt.Errorf("CSRF_SAMESITE must be lax or strict, got %q", c.CSRFSameSite)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSuffix(strings.TrimSpace(part), "/"); p != "" {
			out = append(out, p)
		}
	}
	return out
}
