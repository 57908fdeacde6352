package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sealbridge/orchestrator/internal/domain/presign"
)

// PresignRepository implements presign.Repository.
type PresignRepository struct {
	db *sql.DB
}

func NewPresignRepository(db *sql.DB) *PresignRepository {
	return &PresignRepository{db: db}
}

func (r *PresignRepository) Insert(ctx context.Context, slots []*presign.Slot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range slots {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO presign_slots (slot_id, status, created_at, allocated_at, expires_at)
			VALUES (?,?,?,?,?)
		`, s.SlotID, string(s.Status), s.CreatedAt, s.AllocatedAt, s.ExpiresAt); err != nil {
			return fmt.Errorf("failed to seed slot %s: %w", s.SlotID, err)
		}
	}
	return tx.Commit()
}

// Allocate claims the oldest fresh available slot. Selection and the status
// flip are one statement, so concurrent callers can never share a slot.
func (r *PresignRepository) Allocate(ctx context.Context, now time.Time) (*presign.Slot, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE presign_slots
		SET status = ?, allocated_at = ?
		WHERE slot_id = (
			SELECT slot_id FROM presign_slots
			WHERE status = ? AND expires_at > ?
			ORDER BY created_at ASC, slot_id ASC
			LIMIT 1
		) AND status = ?
		RETURNING slot_id, created_at, expires_at
	`, string(presign.StatusAllocated), now,
		string(presign.StatusAvailable), now, string(presign.StatusAvailable))

	slot := &presign.Slot{Status: presign.StatusAllocated}
	if err := row.Scan(&slot.SlotID, &slot.CreatedAt, &slot.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, presign.ErrPoolEmpty
		}
		return nil, fmt.Errorf("failed to allocate presign slot: %w", err)
	}
	allocAt := now
	slot.AllocatedAt = &allocAt
	return slot, nil
}

func (r *PresignRepository) Release(ctx context.Context, slotID string) error {
	// Idempotent: a slot that is already available, expired or gone is left alone.
	_, err := r.db.ExecContext(ctx, `
		UPDATE presign_slots SET status = ?, allocated_at = NULL
		WHERE slot_id = ? AND status = ?
	`, string(presign.StatusAvailable), slotID, string(presign.StatusAllocated))
	if err != nil {
		return fmt.Errorf("failed to release presign slot: %w", err)
	}
	return nil
}

func (r *PresignRepository) Consume(ctx context.Context, slotID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM presign_slots WHERE slot_id = ?`, slotID); err != nil {
		return fmt.Errorf("failed to consume presign slot: %w", err)
	}
	return nil
}

func (r *PresignRepository) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE presign_slots SET status = ?
		WHERE status IN (?, ?) AND expires_at <= ?
	`, string(presign.StatusExpired),
		string(presign.StatusAvailable), string(presign.StatusAllocated), now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire presign slots: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *PresignRepository) ReclaimAbandoned(ctx context.Context, cutoff, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE presign_slots SET status = ?, allocated_at = NULL
		WHERE status = ? AND allocated_at <= ? AND expires_at > ?
	`, string(presign.StatusAvailable), string(presign.StatusAllocated), cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim presign slots: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *PresignRepository) CountAvailable(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM presign_slots WHERE status = ? AND expires_at > ?
	`, string(presign.StatusAvailable), now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count presign slots: %w", err)
	}
	return n, nil
}
