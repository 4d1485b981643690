package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.SlotStore = (*PostgresStore)(nil)

// A PostgresStore keeps slots in the cart_slots table created by the
// migrator.
type PostgresStore struct {
	sqldb sqldb
}

func NewPostgresStore(sqldb sqldb) PostgresStore {
	return PostgresStore{sqldb}
}

func (s PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "PostgresStore.Get"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT payload FROM cart_slots WHERE slot_key = $1;`

	var data []byte
	err := s.sqldb.QueryRowContext(ctx, query, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: %q", op, port.ErrSlotNotFound, key)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

func (s PostgresStore) Put(ctx context.Context, key string, data []byte) error {
	const op = "PostgresStore.Put"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `
		INSERT INTO cart_slots (slot_key, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (slot_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at;
	`

	if _, err := s.sqldb.ExecContext(ctx, query, key, data); err != nil {
		return fmt.Errorf("%s: failed to exec: %w", op, err)
	}
	return nil
}
