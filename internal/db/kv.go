package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ChangeChannel is the LISTEN/NOTIFY channel announcing key/value writes.
const ChangeChannel = "portfolio_kv_changes"

// KVChange is the NOTIFY payload published after every write.
// Values are not included because NOTIFY payloads are limited to 8000 bytes.
type KVChange struct {
	Origin    string `json:"origin"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Removed   bool   `json:"removed,omitempty"`
}

// GetValue retrieves a value. ok is false when the key does not exist.
func (db *DB) GetValue(ctx context.Context, namespace, key string) (value string, ok bool, err error) {
	err = db.pool.QueryRow(ctx,
		`SELECT value FROM portfolio_kv WHERE namespace = $1 AND key = $2`,
		namespace, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get value %s: %w", key, err)
	}
	return value, true, nil
}

// PutValue upserts a value and publishes the change in the same transaction.
func (db *DB) PutValue(ctx context.Context, namespace, key, value, origin string) error {
	payload, err := json.Marshal(KVChange{Origin: origin, Namespace: namespace, Key: key})
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO portfolio_kv (namespace, key, value)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (namespace, key) DO UPDATE SET value = $3, updated_at = NOW()`,
			namespace, key, value,
		)
		if err != nil {
			return fmt.Errorf("failed to put value %s: %w", key, err)
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangeChannel, string(payload)); err != nil {
			return fmt.Errorf("failed to publish change for %s: %w", key, err)
		}
		return nil
	})
}

// DeleteValue removes a value and publishes the removal.
func (db *DB) DeleteValue(ctx context.Context, namespace, key, origin string) error {
	payload, err := json.Marshal(KVChange{Origin: origin, Namespace: namespace, Key: key, Removed: true})
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM portfolio_kv WHERE namespace = $1 AND key = $2`,
			namespace, key,
		)
		if err != nil {
			return fmt.Errorf("failed to delete value %s: %w", key, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangeChannel, string(payload)); err != nil {
			return fmt.Errorf("failed to publish removal for %s: %w", key, err)
		}
		return nil
	})
}

// ListenChanges blocks, delivering every change notification to fn until ctx
// is cancelled or the connection fails.
func (db *DB) ListenChanges(ctx context.Context, fn func(KVChange)) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangeChannel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ChangeChannel, err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed waiting for notification: %w", err)
		}

		var change KVChange
		if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
			continue
		}
		fn(change)
	}
}
