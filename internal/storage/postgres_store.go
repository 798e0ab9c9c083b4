package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/trips"
)

const tripColumns = `id, user_id, created_at, updated_at, pickup, pickup_lat, pickup_lng,
	destination, destination_lat, destination_lng, class_id, driver_id, driver_name,
	driver_car, driver_license, driver_rating, quoted_price, price, base_fare, currency,
	status, rating, duration_min, duration_max, distance_km, idempotency_key, payment_ref`

type PostgresStore struct {
	db     *sql.DB
	window time.Duration
}

func NewPostgresStore(ctx context.Context, dsn string, window time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if window <= 0 {
		window = trips.DefaultDuplicateWindow
	}
	return &PostgresStore{db: db, window: window}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate executes a SQL file against the database.
func (p *PostgresStore) Migrate(ctx context.Context, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, string(b))
	return err
}

// Insert takes a transaction-scoped advisory lock on the user id so the
// duplicate check and the insert are atomic per user.
func (p *PostgresStore) Insert(ctx context.Context, t models.Trip) (models.Trip, bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Trip{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, t.UserID); err != nil {
		return models.Trip{}, false, fmt.Errorf("lock user trips: %w", err)
	}
	rows, err := tx.QueryContext(ctx, `SELECT `+tripColumns+` FROM trips
		WHERE user_id = $1
		  AND (id = $2
		       OR (idempotency_key <> '' AND idempotency_key = $3)
		       OR (driver_id = $4 AND pickup = $5 AND destination = $6))
		ORDER BY created_at DESC`,
		t.UserID, t.ID, t.IdempotencyKey, t.Driver.ID, t.Pickup, t.Destination)
	if err != nil {
		return models.Trip{}, false, err
	}
	candidates, err := scanTrips(rows)
	if err != nil {
		return models.Trip{}, false, err
	}
	if dup, ok := trips.FindDuplicate(candidates, t, p.window); ok {
		return dup, false, nil
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO trips (`+tripColumns+`) VALUES
		($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)`,
		tripArgs(t)...); err != nil {
		return models.Trip{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return models.Trip{}, false, err
	}
	return t, true, nil
}

func (p *PostgresStore) List(ctx context.Context, userID string) ([]models.Trip, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanTrips(rows)
}

func (p *PostgresStore) Get(ctx context.Context, userID, tripID string) (models.Trip, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE user_id = $1 AND id = $2`, userID, tripID)
	t, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Trip{}, ErrNotFound
	}
	return t, err
}

func (p *PostgresStore) Update(ctx context.Context, userID, tripID string, fn func(*models.Trip) error) (models.Trip, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Trip{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE user_id = $1 AND id = $2 FOR UPDATE`, userID, tripID)
	t, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Trip{}, ErrNotFound
	}
	if err != nil {
		return models.Trip{}, err
	}
	if err := fn(&t); err != nil {
		return models.Trip{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE trips SET status = $1, rating = $2, payment_ref = $3, updated_at = $4
		WHERE user_id = $5 AND id = $6`,
		string(t.Status), ratingArg(t.Rating), t.PaymentRef, t.UpdatedAt, userID, tripID); err != nil {
		return models.Trip{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Trip{}, err
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(r rowScanner) (models.Trip, error) {
	var t models.Trip
	var status string
	var rating sql.NullInt64
	err := r.Scan(
		&t.ID, &t.UserID, &t.CreatedAt, &t.UpdatedAt,
		&t.Pickup, &t.PickupCoord.Lat, &t.PickupCoord.Lng,
		&t.Destination, &t.DestinationCoord.Lat, &t.DestinationCoord.Lng,
		&t.ClassID, &t.Driver.ID, &t.Driver.Name, &t.Driver.Car, &t.Driver.License, &t.Driver.Rating,
		&t.QuotedPrice, &t.Price, &t.BaseFare, &t.Currency,
		&status, &rating, &t.Duration.MinMinutes, &t.Duration.MaxMinutes, &t.DistanceKm,
		&t.IdempotencyKey, &t.PaymentRef,
	)
	if err != nil {
		return models.Trip{}, err
	}
	t.Status = models.TripStatus(status)
	if rating.Valid {
		v := int(rating.Int64)
		t.Rating = &v
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func scanTrips(rows *sql.Rows) ([]models.Trip, error) {
	defer rows.Close()
	var out []models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func tripArgs(t models.Trip) []any {
	return []any{
		t.ID, t.UserID, t.CreatedAt, t.UpdatedAt,
		t.Pickup, t.PickupCoord.Lat, t.PickupCoord.Lng,
		t.Destination, t.DestinationCoord.Lat, t.DestinationCoord.Lng,
		t.ClassID, t.Driver.ID, t.Driver.Name, t.Driver.Car, t.Driver.License, t.Driver.Rating,
		t.QuotedPrice, t.Price, t.BaseFare, t.Currency,
		string(t.Status), ratingArg(t.Rating), t.Duration.MinMinutes, t.Duration.MaxMinutes, t.DistanceKm,
		t.IdempotencyKey, t.PaymentRef,
	}
}

func ratingArg(r *int) any {
	if r == nil {
		return nil
	}
	return int64(*r)
}
