package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/ride-booking/internal/config"
	"github.com/example/ride-booking/internal/earnings"
	"github.com/example/ride-booking/internal/events"
	"github.com/example/ride-booking/internal/logging"
	"github.com/example/ride-booking/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total trip event messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	earningsApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_earnings_applied_total",
		Help: "Trip events applied to driver earnings",
	})
	earningsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_earnings_skipped_total",
		Help: "Trip events already applied or carrying nothing to project",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, earningsApplied, earningsSkipped, redisErrors)
}

// Projector is the part of the earnings projection the consumer writes to.
type Projector interface {
	Apply(ctx context.Context, ev models.TripEvent) (bool, error)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel, "earnings-consumer")

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	proj := earnings.NewRedis(rc)

	go serveMetrics(cfg.MetricsAddr, rc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 1, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		if err := handle(ctx, proj, m.Value, logger); err != nil {
			// leave the offset uncommitted so the event is redelivered
			logger.Error("earnings update failed", "offset", m.Offset, "partition", m.Partition, "error", err)
			continue
		}
		if err := r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			logger.Warn("commit failed", "offset", m.Offset, "error", err)
		}
	}
}

// handle decodes one message and applies it. Undecodable messages are
// dropped (nil error) since redelivery cannot fix them.
func handle(ctx context.Context, p Projector, value []byte, logger *slog.Logger) error {
	msgsConsumed.Inc()
	ev, err := events.Decode(value)
	if err != nil {
		msgsInvalid.Inc()
		logger.Warn("invalid message", "error", err)
		return nil
	}
	applied, err := applyWithRetry(ctx, p, ev, 3, 200*time.Millisecond)
	if err != nil {
		redisErrors.Inc()
		return fmt.Errorf("trip %s driver %s: %w", ev.Trip.ID, ev.Trip.Driver.ID, err)
	}
	if applied {
		earningsApplied.Inc()
	} else {
		earningsSkipped.Inc()
	}
	return nil
}

// applyWithRetry retries Apply with doubling delay. The projection is
// idempotent per event, so a retry after an ambiguous failure is safe.
func applyWithRetry(ctx context.Context, p Projector, ev models.TripEvent, attempts int, delay time.Duration) (bool, error) {
	var err error
	for i := 0; i < attempts; i++ {
		var applied bool
		applied, err = p.Apply(ctx, ev)
		if err == nil {
			return applied, nil
		}
		if i == attempts-1 {
			break
		}
		if !sleep(ctx, delay) {
			return false, ctx.Err()
		}
		delay *= 2
	}
	return false, err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func serveMetrics(addr string, rc *redis.Client, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := rc.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	logger.Info("metrics/health listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", "error", err)
	}
}
