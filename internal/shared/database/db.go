package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

const apiKeyColumns = `id, key_hash, name, is_active, created_by, created_at, updated_at,
	       expires_at, last_used_at, rate_limit, rate_limit_period`

func scanAPIKey(row interface{ Scan(...interface{}) error }) (*models.APIKey, error) {
	var k models.APIKey
	err := row.Scan(
		&k.ID,
		&k.KeyHash,
		&k.Name,
		&k.IsActive,
		&k.CreatedBy,
		&k.CreatedAt,
		&k.UpdatedAt,
		&k.ExpiresAt,
		&k.LastUsedAt,
		&k.RateLimit,
		&k.RateLimitPeriod,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// LookupKeyByHash retrieves an active API key record by its stored digest.
func (db *DB) LookupKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE key_hash = $1 AND is_active = true
	`

	key, err := scanAPIKey(db.conn.QueryRowContext(ctx, query, keyHash))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return key, nil
}

// TouchLastUsed updates the last_used_at timestamp for a key.
func (db *DB) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	query := `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`
	_, err := db.conn.ExecContext(ctx, query, keyID, at)
	return err
}

// CreateAPIKey persists a new API key record. Only the hash is stored.
func (db *DB) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	key.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO api_keys
			(id, key_hash, name, is_active, created_by, created_at, expires_at, rate_limit, rate_limit_period)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := db.conn.ExecContext(ctx, query,
		key.ID, key.KeyHash, key.Name, key.IsActive, key.CreatedBy,
		key.CreatedAt, key.ExpiresAt, key.RateLimit, key.RateLimitPeriod)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// GetAPIKey retrieves an API key record by id.
func (db *DB) GetAPIKey(ctx context.Context, keyID string) (*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`

	key, err := scanAPIKey(db.conn.QueryRowContext(ctx, query, keyID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return key, nil
}

// ListAPIKeys returns API key records ordered by creation time, newest first.
func (db *DB) ListAPIKeys(ctx context.Context, limit, offset int) ([]*models.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := db.conn.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// UpdateAPIKey updates mutable API key fields: name, active flag and the
// rate-limit override.
func (db *DB) UpdateAPIKey(ctx context.Context, key *models.APIKey) error {
	query := `
		UPDATE api_keys
		SET name = $2, is_active = $3, rate_limit = $4, rate_limit_period = $5, updated_at = NOW()
		WHERE id = $1
	`
	res, err := db.conn.ExecContext(ctx, query,
		key.ID, key.Name, key.IsActive, key.RateLimit, key.RateLimitPeriod)
	if err != nil {
		return fmt.Errorf("failed to update api key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAPIKey hard-deletes an API key so no future lookup can match it.
func (db *DB) DeleteAPIKey(ctx context.Context, keyID string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordUsage appends a usage log entry.
func (db *DB) RecordUsage(ctx context.Context, entry *models.UsageLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO api_key_usage_logs
			(id, api_key_id, endpoint, method, status_code, client_ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.conn.ExecContext(ctx, query,
		entry.ID, entry.APIKeyID, entry.Endpoint, entry.Method,
		entry.StatusCode, entry.ClientIP, entry.UserAgent, entry.CreatedAt)
	return err
}

// ListUsage returns the most recent usage log entries for an API key.
func (db *DB) ListUsage(ctx context.Context, keyID string, limit int) ([]*models.UsageLog, error) {
	query := `
		SELECT id, api_key_id, endpoint, method, status_code, client_ip, user_agent, created_at
		FROM api_key_usage_logs
		WHERE api_key_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := db.conn.QueryContext(ctx, query, keyID, limit)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var entries []*models.UsageLog
	for rows.Next() {
		var e models.UsageLog
		if err := rows.Scan(&e.ID, &e.APIKeyID, &e.Endpoint, &e.Method,
			&e.StatusCode, &e.ClientIP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
