// Package storage archives finished wipe operations to Postgres for
// compliance queries. The archive is optional; the JSON record store remains
// the authoritative artifact.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DB wraps a PostgreSQL connection pool for the compliance archive.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, dsn string) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database DSN: %w", err)
	}

	config.MaxConns = 5
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info().Msg("connected to PostgreSQL compliance archive")
	return &DB{pool: pool}, nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Healthy checks database connectivity.
func (db *DB) Healthy(ctx context.Context) bool {
	return db.pool.Ping(ctx) == nil
}

// ArchiveWipe inserts a finished wipe operation into the archive.
func (db *DB) ArchiveWipe(ctx context.Context, op *WipeOperation) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO wipe_operations (id, record_id, device_path, model, serial,
			method, phase, success, io_errors, warnings, verification_status,
			duration, technician, hostname, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := db.pool.Exec(ctx, query,
		op.ID, op.RecordID, op.DevicePath, op.Model, op.Serial,
		op.Method, op.Phase, op.Success, op.IOErrors, op.Warnings,
		op.VerificationStatus, op.Duration, op.Technician, op.Hostname,
		op.CreatedAt, op.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting wipe operation: %w", err)
	}
	return nil
}

// GetWipe retrieves a single archived operation by record id.
func (db *DB) GetWipe(ctx context.Context, recordID string) (*WipeOperation, error) {
	query := `
		SELECT id, record_id, device_path, model, serial, method, phase,
			success, io_errors, warnings, verification_status, duration,
			technician, hostname, created_at, completed_at
		FROM wipe_operations WHERE record_id = $1`

	var op WipeOperation
	err := db.pool.QueryRow(ctx, query, recordID).Scan(
		&op.ID, &op.RecordID, &op.DevicePath, &op.Model, &op.Serial,
		&op.Method, &op.Phase, &op.Success, &op.IOErrors, &op.Warnings,
		&op.VerificationStatus, &op.Duration, &op.Technician, &op.Hostname,
		&op.CreatedAt, &op.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("querying wipe operation %s: %w", recordID, err)
	}
	return &op, nil
}

// ListWipes queries archived operations with optional filters.
func (db *DB) ListWipes(ctx context.Context, filter WipeFilter) ([]WipeOperation, error) {
	query := `
		SELECT id, record_id, device_path, model, serial, method, phase,
			success, verification_status, duration, created_at, completed_at
		FROM wipe_operations
		WHERE ($1 = '' OR serial = $1)
		  AND ($2 = '' OR method = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := db.pool.Query(ctx, query,
		filter.Serial, filter.Method, filter.limit(), filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying wipe operations: %w", err)
	}
	defer rows.Close()

	var results []WipeOperation
	for rows.Next() {
		var op WipeOperation
		if err := rows.Scan(
			&op.ID, &op.RecordID, &op.DevicePath, &op.Model, &op.Serial,
			&op.Method, &op.Phase, &op.Success, &op.VerificationStatus,
			&op.Duration, &op.CreatedAt, &op.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning wipe row: %w", err)
		}
		results = append(results, op)
	}

	return results, rows.Err()
}
