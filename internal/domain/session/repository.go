package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks

var (
	// ErrDuplicatePaymentSignature: the signature already funds another session.
	ErrDuplicatePaymentSignature = errors.New("payment signature already bound to a session")
	// ErrDuplicateDepositAddress: the deposit address is already in use.
	ErrDuplicateDepositAddress = errors.New("deposit address already bound to a session")
	// ErrStaleStatus: the compare-and-set precondition no longer held.
	ErrStaleStatus = errors.New("session status changed underneath transition")
	// ErrNotFound: no session with the given key.
	ErrNotFound = errors.New("session not found")
)

// Repository persists seal sessions. Get methods return (nil, nil) when no
// row matches; transition methods return classified errors from the fault
// package so callers can tell conflicts from storage failures.
type Repository interface {
	Create(ctx context.Context, s *SealSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*SealSession, error)
	GetByDepositAddress(ctx context.Context, depositAddress string) (*SealSession, error)
	GetBySealHash(ctx context.Context, sealHash string) (*SealSession, error)

	// AdvanceStatus moves id from the expected prior status to the next one
	// and applies upd, all as one conditional store write. A precondition
	// mismatch yields a conflict wrapping ErrStaleStatus, never an overwrite.
	AdvanceStatus(ctx context.Context, id uuid.UUID, from, to Status, upd *Update) error

	// BindPaymentSignature records the payment signature while advancing the
	// status. Signature uniqueness is a storage constraint; a reuse yields a
	// conflict wrapping ErrDuplicatePaymentSignature.
	BindPaymentSignature(ctx context.Context, id uuid.UUID, signature string, from, to Status) error

	ListByStatus(ctx context.Context, statuses []Status, limit int) ([]*SealSession, error)

	// ExpireOlderThan moves payment/deposit-phase sessions past their expiry
	// into the expired state and reports how many were moved.
	ExpireOlderThan(ctx context.Context, now time.Time) (int, error)
}
