package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string
	// TripStore forces a backend (memory, postgres, redis). Empty picks
	// postgres when PG_DSN is set, then redis when REDIS_ADDR is set.
	TripStore string

	BaseFare        int64
	MinDriverPrice  int64
	DriverVariation bool
	Currency        string

	DuplicateWindow time.Duration
	MatcherTopN     int
	SpeedKmh        float64
	SearchRadiusKm  float64

	DefaultLocation string
	StrictLocations bool

	JWTSecret        string
	StripeAPIKey     string
	NotifyWebhookURL string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RedisGeoKey:     "drivers_geo",
		KafkaTopic:      "trip-events",
		BaseFare:        500,
		MinDriverPrice:  1000,
		DriverVariation: true,
		Currency:        "NGN",
		DuplicateWindow: 60 * time.Second,
		MatcherTopN:     4,
		SpeedKmh:        30,
		SearchRadiusKm:  60,
		DefaultLocation: "Ikeja",
		LogLevel:        "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.TripStore = strings.ToLower(strings.TrimSpace(os.Getenv("TRIPS_STORE")))

	setInt64FromEnv(&cfg.BaseFare, "PRICING_BASE_FARE", &errs)
	setInt64FromEnv(&cfg.MinDriverPrice, "PRICING_MIN_DRIVER_PRICE", &errs)
	setBoolFromEnv(&cfg.DriverVariation, "PRICING_DRIVER_VARIATION", &errs)
	setStringFromEnv(&cfg.Currency, "PRICING_CURRENCY")

	setDurationFromEnv(&cfg.DuplicateWindow, "TRIPS_DUPLICATE_WINDOW", &errs)
	setIntFromEnv(&cfg.MatcherTopN, "MATCHER_TOP_N", &errs)
	setFloatFromEnv(&cfg.SpeedKmh, "MATCHER_SPEED_KMH", &errs)
	setFloatFromEnv(&cfg.SearchRadiusKm, "MATCHER_RADIUS_KM", &errs)

	setStringFromEnv(&cfg.DefaultLocation, "LOCATION_DEFAULT")
	setBoolFromEnv(&cfg.StrictLocations, "LOCATION_STRICT", &errs)

	cfg.JWTSecret = os.Getenv("AUTH_JWT_SECRET")
	cfg.StripeAPIKey = strings.TrimSpace(os.Getenv("STRIPE_API_KEY"))
	cfg.NotifyWebhookURL = strings.TrimSpace(os.Getenv("NOTIFY_WEBHOOK_URL"))

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.MatcherTopN <= 0 {
		errs = append(errs, fmt.Errorf("MATCHER_TOP_N must be > 0"))
	}
	if cfg.SpeedKmh <= 0 {
		errs = append(errs, fmt.Errorf("MATCHER_SPEED_KMH must be > 0"))
	}
	if cfg.SearchRadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("MATCHER_RADIUS_KM must be > 0"))
	}
	if cfg.BaseFare < 0 || cfg.MinDriverPrice < 0 {
		errs = append(errs, fmt.Errorf("pricing amounts must be >= 0"))
	}
	if cfg.DuplicateWindow <= 0 {
		errs = append(errs, fmt.Errorf("TRIPS_DUPLICATE_WINDOW must be > 0"))
	}
	switch cfg.TripStore {
	case "", "memory":
	case "postgres":
		if cfg.PGDSN == "" {
			errs = append(errs, fmt.Errorf("TRIPS_STORE=postgres requires PG_DSN"))
		}
	case "redis":
		if cfg.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("TRIPS_STORE=redis requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TRIPS_STORE %q", cfg.TripStore))
	}

	return cfg, errors.Join(errs...)
}

// StoreBackend resolves which trip store to run.
func (c ServerConfig) StoreBackend() string {
	switch {
	case c.TripStore != "":
		return c.TripStore
	case c.PGDSN != "":
		return "postgres"
	case c.RedisAddr != "":
		return "redis"
	default:
		return "memory"
	}
}

// ConsumerConfig drives the trip event consumer that projects driver earnings.
type ConsumerConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	RedisAddr     string
	RedisPassword string

	MetricsAddr string
	LogLevel    string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := ConsumerConfig{
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "trip-events",
		KafkaGroup:   "ride-booking-earnings",
		RedisAddr:    "localhost:6379",
		MetricsAddr:  ":2112",
		LogLevel:     "info",
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if len(cfg.KafkaBrokers) == 0 {
		return cfg, fmt.Errorf("KAFKA_BROKERS must list at least one broker")
	}
	return cfg, nil
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setInt64FromEnv(target *int64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setBoolFromEnv(target *bool, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
