package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sealbridge/orchestrator/internal/domain/fault"
	"github.com/sealbridge/orchestrator/internal/domain/session"
)

// SessionRepository implements session.Repository.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `session_id, source_chain, destination_wallet, deposit_address, status,
	payment_tx_signature, nft_contract, token_id, metadata_uri, seal_hash,
	attestation_signature, attestation_public_key, presign_slot_id, mint_tx_ref,
	last_error, last_error_kind, created_at, updated_at, expires_at`

func (r *SessionRepository) Create(ctx context.Context, s *session.SealSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO seal_sessions (`+sessionColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, s.ID.String(), s.SourceChain, s.DestinationWallet, s.DepositAddress, string(s.Status),
		s.PaymentTxSignature, s.NFTContract, s.TokenID, s.MetadataURI, s.SealHash,
		s.AttestationSignature, s.AttestationPublicKey, s.PresignSlotID, s.MintTxRef,
		s.LastError, s.LastErrorKind, s.CreatedAt, s.UpdatedAt, s.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fault.E(fault.KindConflict, "session.create", session.ErrDuplicateDepositAddress)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*session.SealSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM seal_sessions WHERE session_id = ?
	`, id.String())
	return scanSession(row)
}

func (r *SessionRepository) GetByDepositAddress(ctx context.Context, depositAddress string) (*session.SealSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM seal_sessions WHERE deposit_address = ?
	`, depositAddress)
	return scanSession(row)
}

func (r *SessionRepository) GetBySealHash(ctx context.Context, sealHash string) (*session.SealSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM seal_sessions WHERE seal_hash = ? AND seal_hash != ''
	`, sealHash)
	return scanSession(row)
}

func (r *SessionRepository) AdvanceStatus(ctx context.Context, id uuid.UUID, from, to session.Status, upd *session.Update) error {
	if !from.CanAdvanceTo(to) {
		return fault.Errorf(fault.KindConflict, "session.advance", "illegal transition %s -> %s", from, to)
	}

	sets := []string{"status = ?", "updated_at = ?"}
	args := []interface{}{string(to), time.Now().UTC()}
	if upd != nil {
		if upd.MetadataURI != nil {
			sets = append(sets, "metadata_uri = ?")
			args = append(args, *upd.MetadataURI)
		}
		if upd.SealHash != nil {
			sets = append(sets, "seal_hash = ?")
			args = append(args, *upd.SealHash)
		}
		if upd.AttestationSignature != nil {
			sets = append(sets, "attestation_signature = ?")
			args = append(args, *upd.AttestationSignature)
		}
		if upd.AttestationPublicKey != nil {
			sets = append(sets, "attestation_public_key = ?")
			args = append(args, *upd.AttestationPublicKey)
		}
		if upd.PresignSlotID != nil {
			sets = append(sets, "presign_slot_id = ?")
			args = append(args, *upd.PresignSlotID)
		} else if upd.ClearPresignSlot {
			sets = append(sets, "presign_slot_id = NULL")
		}
		if upd.MintTxRef != nil {
			sets = append(sets, "mint_tx_ref = ?")
			args = append(args, *upd.MintTxRef)
		}
		if upd.LastError != nil {
			sets = append(sets, "last_error = ?")
			args = append(args, *upd.LastError)
		}
		if upd.LastErrorKind != nil {
			sets = append(sets, "last_error_kind = ?")
			args = append(args, *upd.LastErrorKind)
		}
	}
	args = append(args, id.String(), string(from))

	res, err := r.db.ExecContext(ctx, `
		UPDATE seal_sessions SET `+strings.Join(sets, ", ")+`
		WHERE session_id = ? AND status = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to advance session: %w", err)
	}
	return r.checkAffected(ctx, res, id, "session.advance")
}

func (r *SessionRepository) BindPaymentSignature(ctx context.Context, id uuid.UUID, signature string, from, to session.Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE seal_sessions
		SET payment_tx_signature = ?, status = ?, updated_at = ?
		WHERE session_id = ? AND status = ? AND payment_tx_signature IS NULL
	`, signature, string(to), time.Now().UTC(), id.String(), string(from))
	if err != nil {
		if isUniqueViolation(err) {
			return fault.E(fault.KindConflict, "session.bind_payment", session.ErrDuplicatePaymentSignature)
		}
		return fmt.Errorf("failed to bind payment signature: %w", err)
	}
	return r.checkAffected(ctx, res, id, "session.bind_payment")
}

func (r *SessionRepository) ListByStatus(ctx context.Context, statuses []session.Status, limit int) ([]*session.SealSession, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, 0, len(statuses)+1)
	for i, s := range statuses {
		placeholders[i] = "?"
		args = append(args, string(s))
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM seal_sessions
		WHERE status IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY created_at ASC LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*session.SealSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SessionRepository) ExpireOlderThan(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE seal_sessions SET status = ?, updated_at = ?
		WHERE status IN (?, ?) AND expires_at <= ?
	`, string(session.StatusExpired), now,
		string(session.StatusAwaitingPayment), string(session.StatusAwaitingDeposit), now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// checkAffected distinguishes a missing row from a stale precondition after a
// zero-row conditional update.
func (r *SessionRepository) checkAffected(ctx context.Context, res sql.Result, id uuid.UUID, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fault.E(fault.KindValidation, op, session.ErrNotFound)
	}
	return fault.E(fault.KindConflict, op, session.ErrStaleStatus)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*session.SealSession, error) {
	var s session.SealSession
	var idStr, status string
	if err := row.Scan(&idStr, &s.SourceChain, &s.DestinationWallet, &s.DepositAddress, &status,
		&s.PaymentTxSignature, &s.NFTContract, &s.TokenID, &s.MetadataURI, &s.SealHash,
		&s.AttestationSignature, &s.AttestationPublicKey, &s.PresignSlotID, &s.MintTxRef,
		&s.LastError, &s.LastErrorKind, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt session id %q: %w", idStr, err)
	}
	s.ID = id
	s.Status = session.Status(status)
	return &s, nil
}
