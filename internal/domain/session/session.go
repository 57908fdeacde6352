package session

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a seal session. It only moves forward
// through the transition graph below; failed and expired are reachable from
// any non-terminal state.
type Status string

const (
	StatusCreated               Status = "created"
	StatusAwaitingPayment       Status = "awaiting_payment"
	StatusAwaitingDeposit       Status = "awaiting_deposit"
	StatusDepositDetected       Status = "deposit_detected"
	StatusPreparingMetadata     Status = "preparing_metadata"
	StatusRequestingAttestation Status = "requesting_attestation"
	StatusAttestationComplete   Status = "attestation_complete"
	StatusMinting               Status = "minting"
	StatusComplete              Status = "complete"
	StatusFailed                Status = "failed"
	StatusExpired               Status = "expired"
)

var forward = map[Status]Status{
	StatusCreated:               StatusAwaitingPayment,
	StatusAwaitingPayment:       StatusAwaitingDeposit,
	StatusAwaitingDeposit:       StatusDepositDetected,
	StatusDepositDetected:       StatusPreparingMetadata,
	StatusPreparingMetadata:     StatusRequestingAttestation,
	StatusRequestingAttestation: StatusAttestationComplete,
	StatusAttestationComplete:   StatusMinting,
	StatusMinting:               StatusComplete,
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// CanAdvanceTo reports whether next is a legal transition from s. Staying in
// place is allowed so field-only updates can reuse the same compare-and-set.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == s {
		return true
	}
	if next == StatusFailed || next == StatusExpired {
		return true
	}
	return forward[s] == next
}

// SealSession is one user-initiated bridge attempt. Rows are never deleted;
// terminal sessions stay behind for audit and replay-protection lookups.
type SealSession struct {
	ID                   uuid.UUID
	SourceChain          string
	DestinationWallet    string
	DepositAddress       string
	Status               Status
	PaymentTxSignature   *string
	NFTContract          string
	TokenID              string
	MetadataURI          string
	SealHash             string
	AttestationSignature *string
	AttestationPublicKey *string
	PresignSlotID        *string
	MintTxRef            *string
	LastError            *string
	LastErrorKind        *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	ExpiresAt            time.Time
}

// New builds a created-state session. The deposit address is bound by the
// caller before persisting.
func New(sourceChain, destinationWallet, nftContract, tokenID string, ttl time.Duration) *SealSession {
	now := time.Now().UTC()
	return &SealSession{
		ID:                uuid.New(),
		SourceChain:       sourceChain,
		DestinationWallet: destinationWallet,
		NFTContract:       nftContract,
		TokenID:           tokenID,
		Status:            StatusCreated,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         now.Add(ttl),
	}
}

// Update carries the optional field writes applied atomically with a status
// compare-and-set. Nil pointers leave the stored value untouched.
type Update struct {
	MetadataURI          *string
	SealHash             *string
	AttestationSignature *string
	AttestationPublicKey *string
	PresignSlotID        *string
	ClearPresignSlot     bool
	MintTxRef            *string
	LastError            *string
	LastErrorKind        *string
}
