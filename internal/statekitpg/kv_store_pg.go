package statekitpg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tyemirov/shopkit/internal/statekit"
)

// PostgresKeyValueStore persists client state rows in PostgreSQL.
type PostgresKeyValueStore struct {
	pool *pgxpool.Pool
}

// NewPostgresKeyValueStore constructs a pgx-backed store.
func NewPostgresKeyValueStore(pool *pgxpool.Pool) *PostgresKeyValueStore {
	return &PostgresKeyValueStore{pool: pool}
}

// Get returns the stored value for the key.
func (store *PostgresKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("state_store_pg.get: %w", statekit.ErrEmptyKey)
	}
	var value string
	row := store.pool.QueryRow(ctx, `
SELECT state_value
FROM client_state
WHERE state_key = $1
`, key)
	if scanErr := row.Scan(&value); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return "", fmt.Errorf("state_store_pg.get: %w", statekit.ErrKeyNotFound)
		}
		return "", fmt.Errorf("state_store_pg.get: %w", scanErr)
	}
	return value, nil
}

// Set writes the value under the key, replacing any previous value.
func (store *PostgresKeyValueStore) Set(ctx context.Context, key string, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("state_store_pg.set: %w", statekit.ErrEmptyKey)
	}
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO client_state (state_key, state_value, updated_at_unix)
VALUES ($1, $2, $3)
ON CONFLICT (state_key) DO UPDATE
SET state_value = EXCLUDED.state_value, updated_at_unix = EXCLUDED.updated_at_unix
`, key, value, time.Now().UTC().Unix())
	if execErr != nil {
		return fmt.Errorf("state_store_pg.set: %w", execErr)
	}
	return nil
}

// Remove deletes the key. Removing an absent key is not an error.
func (store *PostgresKeyValueStore) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("state_store_pg.remove: %w", statekit.ErrEmptyKey)
	}
	_, execErr := store.pool.Exec(ctx, `
DELETE FROM client_state
WHERE state_key = $1
`, key)
	if execErr != nil {
		return fmt.Errorf("state_store_pg.remove: %w", execErr)
	}
	return nil
}
