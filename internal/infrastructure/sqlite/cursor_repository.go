package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sealbridge/orchestrator/internal/domain/cursor"
)

// CursorRepository implements cursor.Repository.
type CursorRepository struct {
	db *sql.DB
}

func NewCursorRepository(db *sql.DB) *CursorRepository {
	return &CursorRepository{db: db}
}

func (r *CursorRepository) Get(ctx context.Context, key string) (*cursor.Cursor, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT subscription_key, position, consecutive_failures, updated_at
		FROM listener_cursors WHERE subscription_key = ?
	`, key)
	var c cursor.Cursor
	if err := row.Scan(&c.SubscriptionKey, &c.Position, &c.ConsecutiveFailures, &c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load cursor: %w", err)
	}
	return &c, nil
}

func (r *CursorRepository) Commit(ctx context.Context, c *cursor.Cursor) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO listener_cursors (subscription_key, position, consecutive_failures, updated_at)
		VALUES (?,?,?,?)
		ON CONFLICT(subscription_key) DO UPDATE SET
			position = excluded.position,
			consecutive_failures = excluded.consecutive_failures,
			updated_at = excluded.updated_at
	`, c.SubscriptionKey, c.Position, c.ConsecutiveFailures, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to commit cursor: %w", err)
	}
	return nil
}
