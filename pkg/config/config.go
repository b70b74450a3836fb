package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort  string
	Environment string
	StoreDriver string

	FirebaseProject            string
	FirebaseServiceAccountJSON string
	FirebaseServiceAccountPath string
	StorageBucket              string

	JWTSecret string
	JWTExpiry int64

	RedisURL string
	LockTTL  time.Duration

	PaymentProvider     string
	MidtransServerKey   string
	MidtransClientKey   string
	MidtransEnvironment string

	PlatformFeePercent float64
	PaymentFeePercent  float64

	NotificationQueueSize int
	RateLimitPerMinute    int
	WSAllowedOrigins      []string

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{
		ServerPort:  v.GetString("SERVER_PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		StoreDriver: strings.ToLower(v.GetString("STORE_DRIVER")),

		FirebaseProject:            v.GetString("FIREBASE_PROJECT_ID"),
		FirebaseServiceAccountJSON: v.GetString("FIREBASE_SERVICE_ACCOUNT_JSON"),
		FirebaseServiceAccountPath: v.GetString("FIREBASE_SERVICE_ACCOUNT_PATH"),
		StorageBucket:              v.GetString("STORAGE_BUCKET"),

		JWTSecret: v.GetString("JWT_SECRET"),
		JWTExpiry: v.GetInt64("JWT_EXPIRY"),

		RedisURL: v.GetString("REDIS_URL"),
		LockTTL:  v.GetDuration("LOCK_TTL"),

		PaymentProvider:     strings.ToLower(v.GetString("PAYMENT_PROVIDER")),
		MidtransServerKey:   v.GetString("MIDTRANS_SERVER_KEY"),
		MidtransClientKey:   v.GetString("MIDTRANS_CLIENT_KEY"),
		MidtransEnvironment: v.GetString("MIDTRANS_ENVIRONMENT"),

		PlatformFeePercent: v.GetFloat64("PLATFORM_FEE_PERCENT"),
		PaymentFeePercent:  v.GetFloat64("PAYMENT_FEE_PERCENT"),

		NotificationQueueSize: v.GetInt("NOTIFICATION_QUEUE_SIZE"),
		RateLimitPerMinute:    v.GetInt("RATE_LIMIT_PER_MINUTE"),
		WSAllowedOrigins:      splitList(v.GetString("WS_ALLOWED_ORIGINS")),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("STORE_DRIVER", "firestore")
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_JSON", "")
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_PATH", "./firebase-service-account.json")
	v.SetDefault("STORAGE_BUCKET", "")
	v.SetDefault("JWT_SECRET", "your-secret-key")
	v.SetDefault("JWT_EXPIRY", 24*60*60) // 24 hours
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOCK_TTL", 15*time.Second)
	v.SetDefault("PAYMENT_PROVIDER", "sandbox")
	v.SetDefault("MIDTRANS_SERVER_KEY", "")
	v.SetDefault("MIDTRANS_CLIENT_KEY", "")
	v.SetDefault("MIDTRANS_ENVIRONMENT", "sandbox")
	v.SetDefault("PLATFORM_FEE_PERCENT", 5.0)
	v.SetDefault("PAYMENT_FEE_PERCENT", 2.9)
	v.SetDefault("NOTIFICATION_QUEUE_SIZE", 256)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	v.SetDefault("WS_ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "firestore":
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore store")
		}
	case "memory":
		if c.Environment == "production" {
			return fmt.Errorf("memory store is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.PaymentProvider {
	case "midtrans":
		if c.MidtransServerKey == "" {
			return fmt.Errorf("MIDTRANS_SERVER_KEY is required for the midtrans provider")
		}
	case "sandbox":
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider)
	}

	if c.PlatformFeePercent < 0 || c.PaymentFeePercent < 0 {
		return fmt.Errorf("fee percentages must not be negative")
	}
	if c.NotificationQueueSize <= 0 {
		c.NotificationQueueSize = 256
	}
	return nil
}

// splitList reads a comma separated value, dropping empty items.
func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
