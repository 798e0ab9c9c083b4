package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	for _, k := range []string{"PG_DSN", "REDIS_ADDR", "TRIPS_STORE", "MATCHER_TOP_N", "MATCHER_RADIUS_KM", "PRICING_BASE_FARE"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseFare != 500 || cfg.MinDriverPrice != 1000 || cfg.Currency != "NGN" {
		t.Fatalf("pricing defaults: %+v", cfg)
	}
	if cfg.DuplicateWindow != time.Minute || cfg.MatcherTopN != 4 || cfg.DefaultLocation != "Ikeja" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.SearchRadiusKm != 60 {
		t.Fatalf("search radius: %v", cfg.SearchRadiusKm)
	}
	if cfg.StoreBackend() != "memory" {
		t.Fatalf("backend: %s", cfg.StoreBackend())
	}
}

func TestLoadServerConfigOverrides(t *testing.T) {
	t.Setenv("PRICING_BASE_FARE", "700")
	t.Setenv("PRICING_DRIVER_VARIATION", "false")
	t.Setenv("TRIPS_DUPLICATE_WINDOW", "90s")
	t.Setenv("LOCATION_STRICT", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("PG_DSN", "")
	t.Setenv("TRIPS_STORE", "")
	t.Setenv("MATCHER_RADIUS_KM", "75.5")
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SearchRadiusKm != 75.5 {
		t.Fatalf("search radius: %v", cfg.SearchRadiusKm)
	}
	if cfg.BaseFare != 700 || cfg.DriverVariation || !cfg.StrictLocations || cfg.DuplicateWindow != 90*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers: %v", cfg.KafkaBrokers)
	}
	if cfg.StoreBackend() != "redis" {
		t.Fatalf("backend: %s", cfg.StoreBackend())
	}
}

func TestLoadServerConfigCollectsErrors(t *testing.T) {
	t.Setenv("MATCHER_TOP_N", "0")
	t.Setenv("MATCHER_RADIUS_KM", "-1")
	t.Setenv("HTTP_READ_TIMEOUT", "soon")
	t.Setenv("TRIPS_STORE", "postgres")
	t.Setenv("PG_DSN", "")
	_, err := LoadServerConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"MATCHER_TOP_N", "MATCHER_RADIUS_KM", "HTTP_READ_TIMEOUT", "PG_DSN"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadConsumerConfig(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_GROUP", "g1")
	cfg, err := LoadConsumerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.KafkaGroup != "g1" || cfg.KafkaTopic != "trip-events" || cfg.KafkaBrokers[0] != "localhost:9092" {
		t.Fatalf("consumer config: %+v", cfg)
	}
}
