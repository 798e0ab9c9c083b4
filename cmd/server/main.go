package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-booking/internal/auth"
	"github.com/example/ride-booking/internal/booking"
	"github.com/example/ride-booking/internal/catalog"
	"github.com/example/ride-booking/internal/config"
	"github.com/example/ride-booking/internal/dispatch"
	"github.com/example/ride-booking/internal/earnings"
	"github.com/example/ride-booking/internal/events"
	"github.com/example/ride-booking/internal/geo"
	httpapi "github.com/example/ride-booking/internal/http"
	"github.com/example/ride-booking/internal/logging"
	"github.com/example/ride-booking/internal/matcher"
	"github.com/example/ride-booking/internal/observability"
	"github.com/example/ride-booking/internal/payments"
	"github.com/example/ride-booking/internal/pricing"
	"github.com/example/ride-booking/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel, "ride-booking")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) error {
	places, err := geo.NewLagosGazetteer(cfg.DefaultLocation, cfg.StrictLocations)
	if err != nil {
		return fmt.Errorf("gazetteer: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
	}

	var roster geo.Geo = geo.NewIndex()
	if rdb != nil {
		roster = geo.NewRedisGeo(rdb, cfg.RedisGeoKey, cfg.SearchRadiusKm)
	}
	drivers := geo.DemoRoster()
	if err := geo.Seed(ctx, roster, drivers); err != nil {
		return err
	}
	observability.DriversOnline.Set(float64(len(drivers)))

	store, ready, closeStore, err := openStore(ctx, cfg, rdb, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	calc := &pricing.Calculator{
		BaseFare:        cfg.BaseFare,
		MinDriverPrice:  cfg.MinDriverPrice,
		Currency:        cfg.Currency,
		DriverVariation: cfg.DriverVariation,
	}

	ws := dispatch.NewWSRegistry(logger)
	push := &dispatch.Push{WS: ws}
	if cfg.NotifyWebhookURL != "" {
		push.Fallback = dispatch.NewWebhook(cfg.NotifyWebhookURL)
	}

	svc := &booking.Service{
		Places:   places,
		Catalog:  catalog.Default(),
		Pricing:  calc,
		Matcher:  &matcher.Service{Geo: roster, Pricing: calc, TopN: cfg.MatcherTopN, SpeedKmh: cfg.SpeedKmh},
		Store:    store,
		Notify:   push,
		Payments: payments.Noop{},
		Log:      logger,
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer pub.Close()
		svc.Events = pub
	}
	if cfg.StripeAPIKey != "" {
		svc.Payments = payments.NewStripeClient(cfg.StripeAPIKey)
	}

	opts := httpapi.Options{
		Booking: svc,
		Auth:    auth.NewVerifier(cfg.JWTSecret),
		WS:      ws,
		Ready:   ready,
		Logger:  logger,
	}
	if rdb != nil {
		opts.Earnings = earnings.NewRedis(rdb)
	}
	if opts.Auth.DevMode() {
		logger.Warn("AUTH_JWT_SECRET not set; trusting X-User-ID header")
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(opts),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ride-booking listening", "addr", cfg.HTTPAddr, "store", cfg.StoreBackend(), "kafka", len(cfg.KafkaBrokers) > 0)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.ServerConfig, rdb *redis.Client, logger *slog.Logger) (storage.TripStore, func(context.Context) error, func(), error) {
	switch cfg.StoreBackend() {
	case "postgres":
		ps, err := storage.NewPostgresStore(ctx, cfg.PGDSN, cfg.DuplicateWindow)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if cfg.RunMigrations {
			path := filepath.Join("migrations", "001_create_trips.sql")
			if err := ps.Migrate(ctx, path); err != nil {
				_ = ps.Close()
				return nil, nil, nil, fmt.Errorf("migrate %s: %w", path, err)
			}
			logger.Info("migration applied", "file", path)
		}
		return ps, ps.Ping, func() { _ = ps.Close() }, nil
	case "redis":
		ping := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		return storage.NewRedisStore(rdb, cfg.DuplicateWindow), ping, func() {}, nil
	default:
		return storage.NewMemoryStore(cfg.DuplicateWindow), nil, func() {}, nil
	}
}
