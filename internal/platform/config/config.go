package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL  string
	Port         string
	IsProduction bool

	JWTSecret         string
	JWTExpiryDuration time.Duration
	JWTIssuer         string

	DefaultCurrency string

	// Broker settings for the settlement pipeline.
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaGroupID    string
	KafkaDLQTopic   string
	ConsumerWorkers int

	// Retry and timeout policy for the consumer.
	SettleMaxAttempts int
	SettleBackoffBase time.Duration
	StoreTimeout      time.Duration
	ShutdownGrace     time.Duration
}

// LoadConfig loads configuration from environment variables and a .env file
// if present. Defaults are suitable for local development only.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("JWT_EXPIRY_DURATION", "4h")
	viper.SetDefault("JWT_ISSUER", "payledger-backend")
	viper.SetDefault("DEFAULT_CURRENCY", "INR")
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_TOPIC", "transaction-events")
	viper.SetDefault("KAFKA_GROUP_ID", "transaction-consumer-group")
	viper.SetDefault("KAFKA_DLQ_TOPIC", "transaction-events.dlq")
	viper.SetDefault("CONSUMER_WORKERS", 8)
	viper.SetDefault("SETTLE_MAX_ATTEMPTS", 5)
	viper.SetDefault("SETTLE_BACKOFF_BASE", "100ms")
	viper.SetDefault("STORE_TIMEOUT", "5s")
	viper.SetDefault("SHUTDOWN_GRACE", "15s")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET not set. Using default insecure key.")
	}
	cfg.JWTExpiryDuration = parseDurationOr("JWT_EXPIRY_DURATION", 4*time.Hour)
	cfg.JWTIssuer = viper.GetString("JWT_ISSUER")

	cfg.DefaultCurrency = viper.GetString("DEFAULT_CURRENCY")

	cfg.KafkaBrokers = strings.Split(viper.GetString("KAFKA_BROKERS"), ",")
	cfg.KafkaTopic = viper.GetString("KAFKA_TOPIC")
	cfg.KafkaGroupID = viper.GetString("KAFKA_GROUP_ID")
	cfg.KafkaDLQTopic = viper.GetString("KAFKA_DLQ_TOPIC")

	cfg.ConsumerWorkers = viper.GetInt("CONSUMER_WORKERS")
	if cfg.ConsumerWorkers < 1 {
		log.Printf("Warning: Invalid CONSUMER_WORKERS (%d). Defaulting to 8.\n", cfg.ConsumerWorkers)
		cfg.ConsumerWorkers = 8
	}

	cfg.SettleMaxAttempts = viper.GetInt("SETTLE_MAX_ATTEMPTS")
	if cfg.SettleMaxAttempts < 1 {
		cfg.SettleMaxAttempts = 5
	}
	cfg.SettleBackoffBase = parseDurationOr("SETTLE_BACKOFF_BASE", 100*time.Millisecond)
	cfg.StoreTimeout = parseDurationOr("STORE_TIMEOUT", 5*time.Second)
	cfg.ShutdownGrace = parseDurationOr("SHUTDOWN_GRACE", 15*time.Second)

	return cfg, nil
}

func parseDurationOr(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fallback)
		}
		return fallback
	}
	return d
}
