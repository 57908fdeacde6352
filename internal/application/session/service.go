// Package session drives seal sessions through their lifecycle, from creation
// to the destination mint. Every transition is a compare-and-set against the
// store; the service assumes it can crash between any two steps and leans on
// the resume sweep to pick work back up.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sealbridge/orchestrator/internal/application/presign"
	"github.com/sealbridge/orchestrator/internal/application/txqueue"
	"github.com/sealbridge/orchestrator/internal/domain/chain"
	"github.com/sealbridge/orchestrator/internal/domain/fault"
	"github.com/sealbridge/orchestrator/internal/domain/seal"
	"github.com/sealbridge/orchestrator/internal/domain/session"
	"github.com/sealbridge/orchestrator/internal/observability"
)

// Shared-object identifiers for the per-object transaction queues.
const (
	ObjectCoordination  = "coordination"
	ObjectMintAuthority = "mint_authority"
)

// PaymentVerifier confirms a fee payment on one source ledger.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, signature string) (*chain.Payment, error)
}

// Coordinator is the coordination-ledger surface the service depends on.
type Coordinator interface {
	DeriveDepositAddress(ctx context.Context, sessionID string) (string, error)
	RequestAttestation(ctx context.Context, presignID string, payload []byte) (string, error)
	AttestationStatus(ctx context.Context, sealHash string) (*chain.Attestation, error)
}

// Minter submits rebirth mints on the destination ledger.
type Minter interface {
	SubmitMint(ctx context.Context, sealHash, recipient string, payload, signature, publicKey []byte) (string, error)
	MintStatus(ctx context.Context, sealHash string) (string, bool, error)
}

// Notifier receives session snapshots after every persisted change.
type Notifier interface {
	NotifySessionUpdate(s *session.SealSession)
}

// NopNotifier discards updates.
type NopNotifier struct{}

func (NopNotifier) NotifySessionUpdate(*session.SealSession) {}

// Config carries the service's tunables.
type Config struct {
	SessionTTL     time.Duration
	FeeAmount      string // minimum fee payment in the source ledger's base unit
	ResumeInterval time.Duration
	ExpiryInterval time.Duration
}

// Service implements the session lifecycle.
type Service struct {
	repo        session.Repository
	pool        *presign.Pool
	coordinator Coordinator
	minter      Minter
	verifiers   map[string]PaymentVerifier
	queues      *txqueue.Registry
	notifier    Notifier
	cfg         Config
	metrics     *observability.Metrics
	logger      zerolog.Logger
}

func NewService(
	repo session.Repository,
	pool *presign.Pool,
	coordinator Coordinator,
	minter Minter,
	verifiers map[string]PaymentVerifier,
	queues *txqueue.Registry,
	notifier Notifier,
	cfg Config,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.ResumeInterval <= 0 {
		cfg.ResumeInterval = 30 * time.Second
	}
	if cfg.ExpiryInterval <= 0 {
		cfg.ExpiryInterval = time.Minute
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		repo:        repo,
		pool:        pool,
		coordinator: coordinator,
		minter:      minter,
		verifiers:   verifiers,
		queues:      queues,
		notifier:    notifier,
		cfg:         cfg,
		metrics:     metrics,
		logger:      logger.With().Str("service", "session").Logger(),
	}
}

// Create opens a new seal session: derives the deposit address from the
// signing network, persists the session, and moves it to awaiting_payment.
func (s *Service) Create(ctx context.Context, sourceChain, destinationWallet, nftContract, tokenID string) (*session.SealSession, error) {
	const op = "session.Create"
	if _, ok := chain.ID(sourceChain); !ok {
		return nil, fault.Errorf(fault.KindValidation, op, "unknown source chain %q", sourceChain)
	}
	if _, ok := s.verifiers[sourceChain]; !ok {
		return nil, fault.Errorf(fault.KindValidation, op, "source chain %q is not enabled", sourceChain)
	}
	if destinationWallet == "" || nftContract == "" || tokenID == "" {
		return nil, fault.Errorf(fault.KindValidation, op, "destination wallet, nft contract and token id are required")
	}
	if _, err := seal.DecodeReceiver(destinationWallet); err != nil {
		return nil, fault.E(fault.KindValidation, op, err)
	}

	sess := session.New(sourceChain, destinationWallet, nftContract, tokenID, s.cfg.SessionTTL)

	addr, err := s.coordinator.DeriveDepositAddress(ctx, sess.ID.String())
	if err != nil {
		return nil, err
	}
	sess.DepositAddress = addr

	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.repo.AdvanceStatus(ctx, sess.ID, session.StatusCreated, session.StatusAwaitingPayment, nil); err != nil {
		return nil, err
	}
	sess.Status = session.StatusAwaitingPayment

	s.metrics.SessionsCreated.Inc()
	s.metrics.SessionTransitions.WithLabelValues(string(session.StatusAwaitingPayment)).Inc()
	s.logger.Info().Str("session_id", sess.ID.String()).Str("chain", sourceChain).
		Str("deposit_address", addr).Msg("session created")
	s.notifier.NotifySessionUpdate(sess)
	return sess, nil
}

// ConfirmPayment verifies the fee payment transaction and binds its signature
// to the session. Re-confirming with the same signature is a no-op; reusing a
// signature across sessions is a conflict.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID, signature string) (*session.SealSession, error) {
	const op = "session.ConfirmPayment"
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fault.E(fault.KindValidation, op, session.ErrNotFound)
	}
	if sess.PaymentTxSignature != nil && *sess.PaymentTxSignature == signature {
		return sess, nil
	}
	if sess.Status != session.StatusAwaitingPayment {
		return nil, fault.Errorf(fault.KindConflict, op, "session %s is %s, not awaiting payment", id, sess.Status)
	}

	verifier, ok := s.verifiers[sess.SourceChain]
	if !ok {
		return nil, fault.Errorf(fault.KindConclusive, op, "no payment verifier for chain %q", sess.SourceChain)
	}
	payment, err := verifier.VerifyPayment(ctx, signature)
	if err != nil {
		return nil, err
	}
	if s.cfg.FeeAmount != "" {
		if ok, cmpErr := amountCovers(payment.Amount, s.cfg.FeeAmount); cmpErr != nil {
			return nil, fault.E(fault.KindConclusive, op, cmpErr)
		} else if !ok {
			return nil, fault.Errorf(fault.KindValidation, op, "payment amount below required fee")
		}
	}

	err = s.repo.BindPaymentSignature(ctx, id, signature, session.StatusAwaitingPayment, session.StatusAwaitingDeposit)
	if err != nil {
		if errors.Is(err, session.ErrStaleStatus) {
			// Lost a race with another confirm; report the winner's state.
			if cur, getErr := s.repo.GetByID(ctx, id); getErr == nil && cur != nil &&
				cur.PaymentTxSignature != nil && *cur.PaymentTxSignature == signature {
				return cur, nil
			}
		}
		return nil, err
	}

	sess, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.SessionTransitions.WithLabelValues(string(session.StatusAwaitingDeposit)).Inc()
	s.logger.Info().Str("session_id", id.String()).Msg("fee payment confirmed")
	s.notifier.NotifySessionUpdate(sess)
	return sess, nil
}

// HandleDeposit is the listener handler for source-ledger lock events. It is
// idempotent under redelivery: anything other than an awaiting_deposit session
// behind the deposit address is a clean no-op.
func (s *Service) HandleDeposit(ctx context.Context, ev chain.Event) error {
	depositAddr := ev.Attributes[chain.AttrDepositAddress]
	if depositAddr == "" {
		s.logger.Debug().Str("tx", ev.TxHash).Msg("lock event without deposit address, ignoring")
		return nil
	}
	sess, err := s.repo.GetByDepositAddress(ctx, depositAddr)
	if err != nil {
		return err
	}
	if sess == nil {
		s.logger.Debug().Str("deposit_address", depositAddr).Msg("lock event for unknown deposit address")
		return nil
	}
	if sess.Status != session.StatusAwaitingDeposit {
		return nil
	}

	upd := &session.Update{}
	if uri := ev.Attributes[chain.AttrTokenURI]; uri != "" {
		upd.MetadataURI = &uri
	}
	err = s.repo.AdvanceStatus(ctx, sess.ID, session.StatusAwaitingDeposit, session.StatusDepositDetected, upd)
	if err != nil {
		if errors.Is(err, session.ErrStaleStatus) {
			return nil
		}
		return err
	}
	s.metrics.SessionTransitions.WithLabelValues(string(session.StatusDepositDetected)).Inc()
	s.logger.Info().Str("session_id", sess.ID.String()).Str("tx", ev.TxHash).Msg("deposit detected")
	if cur, getErr := s.repo.GetByID(ctx, sess.ID); getErr == nil && cur != nil {
		s.notifier.NotifySessionUpdate(cur)
	}

	// Drive the pipeline forward right away; the deposit itself is already
	// durable, so downstream failures are left to the resume sweep.
	if advErr := s.Advance(ctx, sess.ID); advErr != nil {
		s.logger.Warn().Err(advErr).Str("session_id", sess.ID.String()).Msg("post-deposit advance incomplete")
	}
	return nil
}

// Advance pushes a session as far through the pipeline as it can go in one
// call. It stops at the first failure, which stays recorded on the session.
func (s *Service) Advance(ctx context.Context, id uuid.UUID) error {
	for {
		sess, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if sess == nil {
			return fault.E(fault.KindValidation, "session.Advance", session.ErrNotFound)
		}
		switch sess.Status {
		case session.StatusDepositDetected:
			err = s.prepareMetadata(ctx, sess)
		case session.StatusPreparingMetadata:
			err = s.requestAttestation(ctx, sess)
		case session.StatusRequestingAttestation:
			return s.pollAttestation(ctx, sess)
		case session.StatusAttestationComplete:
			return s.submitMint(ctx, sess)
		case session.StatusMinting:
			return s.resumeMint(ctx, sess)
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// prepareMetadata builds the canonical seal payload and records its hash.
func (s *Service) prepareMetadata(ctx context.Context, sess *session.SealSession) error {
	payload, err := s.buildPayload(sess)
	if err != nil {
		return s.failSession(ctx, sess, fault.E(fault.KindConclusive, "session.prepareMetadata", err))
	}
	hash := payload.HashHex()
	err = s.repo.AdvanceStatus(ctx, sess.ID, session.StatusDepositDetected, session.StatusPreparingMetadata,
		&session.Update{SealHash: &hash})
	if err != nil {
		if errors.Is(err, session.ErrStaleStatus) {
			return nil
		}
		return err
	}
	sess.Status = session.StatusPreparingMetadata
	sess.SealHash = hash
	s.metrics.SessionTransitions.WithLabelValues(string(session.StatusPreparingMetadata)).Inc()
	s.notifier.NotifySessionUpdate(sess)
	return nil
}

// requestAttestation claims a presign capability and submits the signing
// request through the coordination queue. The session only reaches
// requesting_attestation after the ledger accepted the request, so that state
// always means a request exists.
func (s *Service) requestAttestation(ctx context.Context, sess *session.SealSession) error {
	payload, err := s.buildPayload(sess)
	if err != nil {
		return s.failSession(ctx, sess, fault.E(fault.KindConclusive, "session.requestAttestation", err))
	}

	slot, err := s.pool.Allocate(ctx)
	if err != nil {
		if fault.IsResource(err) {
			s.recordRetryable(ctx, sess, err)
		}
		return err
	}

	_, err = s.queues.For(ObjectCoordination).Enqueue(ctx, func(ctx context.Context) (interface{}, error) {
		return s.coordinator.RequestAttestation(ctx, slot.SlotID, payload.Encode())
	})
	if err != nil {
		if fault.Retryable(err) || errors.Is(err, txqueue.ErrShuttingDown) {
			// Ambiguous whether the presign was consumed: leave the slot
			// allocated and let the abandonment sweep reclaim it if not.
			s.recordRetryable(ctx, sess, err)
			return err
		}
		if relErr := s.pool.Release(ctx, slot.SlotID); relErr != nil {
			s.logger.Error().Err(relErr).Str("slot_id", slot.SlotID).Msg("presign release failed")
		}
		return s.failSession(ctx, sess, err)
	}

	if err := s.pool.Consume(ctx, slot.SlotID); err != nil {
		s.logger.Error().Err(err).Str("slot_id", slot.SlotID).Msg("consumed presign slot cleanup failed")
	}
	err = s.repo.AdvanceStatus(ctx, sess.ID, session.StatusPreparingMetadata, session.StatusRequestingAttestation,
		&session.Update{PresignSlotID: &slot.SlotID})
	if err != nil {
		if errors.Is(err, session.ErrStaleStatus) {
			return nil
		}
		return err
	}
	sess.Status = session.StatusRequestingAttestation
	sess.PresignSlotID = &slot.SlotID
	s.metrics.SessionTransitions.WithLabelValues(string(session.StatusRequestingAttestation)).Inc()
	s.logger.Info().Str("session_id", sess.ID.String()).Str("slot_id", slot.SlotID).
		Str("seal_hash", sess.SealHash).Msg("attestation requested")
	s.notifier.NotifySessionUpdate(sess)
	return nil
}

// pollAttestation checks the coordination ledger for a completed signature.
func (s *Service) pollAttestation(ctx context.Context, sess *session.SealSession) error {
	att, err := s.coordinator.AttestationStatus(ctx, sess.SealHash)
	if err != nil {
		return err
	}
	if !att.Ready {
		return nil
	}
	return s.CompleteAttestation(ctx, sess.ID, att)
}

// CompleteAttestation verifies and persists the signature, then pushes the
// session toward the mint. The signature is durable before any destination
// call so a crash can never lose it.
func (s *Service) CompleteAttestation(ctx context.Context, id uuid.UUID, att *chain.Attestation) error {
	const op = "session.CompleteAttestation"
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return fault.E(fault.KindValidation, op, session.ErrNotFound)
	}
	switch sess.Status {
	case session.StatusAttestationComplete, session.StatusMinting, session.StatusComplete:
		return nil
	case session.StatusRequestingAttestation:
	default:
		return fault.Errorf(fault.KindConflict, op, "session %s is %s, not requesting attestation", id, sess.Status)
	}

	payload, err := s.buildPayload(sess)
	if err != nil {
		return s.failSession(ctx, sess, fault.E(fault.KindConclusive, op, err))
	}
	if err := seal.VerifyAttestation(att.PublicKey, payload.Encode(), att.Signature); err != nil {
		return s.failSession(ctx, sess, fault.E(fault.KindConclusive, op, err))
	}

	sigHex := hex.EncodeToString(att.Signature)
	pubHex := hex.EncodeToString(att.PublicKey)
	err = s.repo.AdvanceStatus(ctx, id, session.StatusRequestingAttestation, session.StatusAttestationComplete,
		&session.Update{
			AttestationSignature: &sigHex,
			AttestationPublicKey: &pubHex,
			ClearPresignSlot:     true,
		})
	if err != nil {
		if errors.Is(err, session.ErrStaleStatus) {
			return nil
		}
		return err
	}
	sess.Status = session.StatusAttestationComplete
	sess.AttestationSignature = &sigHex
	sess.AttestationPublicKey = &pubHex
	sess.PresignSlotID = nil
	s.metrics.SessionTransitions.WithLabelValues(string(session.StatusAttestationComplete)).Inc()
	s.logger.Info().Str("session_id", id.String()).Str("seal_hash", sess.SealHash).Msg("attestation complete")
	s.notifier.NotifySessionUpdate(sess)

	if mintErr := s.submitMint(ctx, sess); mintErr != nil {
		s.logger.Warn().Err(mintErr).Str("session_id", id.String()).Msg("mint submission deferred")
	}
	return nil
}

// HandleAttestationEvent is the listener handler for the coordination ledger's
// attestation_complete stream.
func (s *Service) HandleAttestationEvent(ctx context.Context, ev chain.Event) error {
	sealHash := ev.Attributes["seal_hash"]
	if sealHash == "" {
		return nil
	}
	sess, err := s.repo.GetBySealHash(ctx, sealHash)
	if err != nil {
		return err
	}
	if sess == nil {
		s.logger.Debug().Str("seal_hash", sealHash).Msg("attestation event for unknown seal hash")
		return nil
	}

	sig, err := hex.DecodeString(ev.Attributes["signature"])
	if err != nil {
		s.logger.Error().Err(err).Str("seal_hash", sealHash).Msg("attestation event carries bad signature hex")
		return nil
	}
	pub, err := hex.DecodeString(ev.Attributes["public_key"])
	if err != nil {
		s.logger.Error().Err(err).Str("seal_hash", sealHash).Msg("attestation event carries bad public key hex")
		return nil
	}

	err = s.CompleteAttestation(ctx, sess.ID, &chain.Attestation{Ready: true, Signature: sig, PublicKey: pub})
	if err != nil && fault.IsConflict(err) {
		return nil
	}
	return err
}

// submitMint drives attestation_complete → minting → complete. Transient mint
// failures leave the session in minting for the resume sweep; the destination
// keys mints by seal hash so resubmission is safe.
func (s *Service) submitMint(ctx context.Context, sess *session.SealSession) error {
	if sess.AttestationSignature == nil || sess.AttestationPublicKey == nil {
		return s.failSession(ctx, sess,
			fault.Errorf(fault.KindConclusive, "session.submitMint", "session %s has no attestation on record", sess.ID))
	}
	err := s.repo.AdvanceStatus(ctx, sess.ID, session.StatusAttestationComplete, session.StatusMinting, nil)
	if err != nil {
		if errors.Is(err, session.ErrStaleStatus) {
			return nil
		}
		return err
	}
	sess.Status = session.StatusMinting
	s.metrics.SessionTransitions.WithLabelValues(string(session.StatusMinting)).Inc()
	s.notifier.NotifySessionUpdate(sess)
	return s.executeMint(ctx, sess)
}

// resumeMint re-drives a session already in minting, first checking whether a
// previous submission landed.
func (s *Service) resumeMint(ctx context.Context, sess *session.SealSession) error {
	ref, minted, err := s.minter.MintStatus(ctx, sess.SealHash)
	if err != nil {
		return err
	}
	if minted {
		return s.completeMint(ctx, sess, ref)
	}
	return s.executeMint(ctx, sess)
}

func (s *Service) executeMint(ctx context.Context, sess *session.SealSession) error {
	payload, err := s.buildPayload(sess)
	if err != nil {
		return s.failSession(ctx, sess, fault.E(fault.KindConclusive, "session.executeMint", err))
	}
	sig, err := hex.DecodeString(*sess.AttestationSignature)
	if err != nil {
		return s.failSession(ctx, sess, fault.E(fault.KindConclusive, "session.executeMint", err))
	}
	pub, err := hex.DecodeString(*sess.AttestationPublicKey)
	if err != nil {
		return s.failSession(ctx, sess, fault.E(fault.KindConclusive, "session.executeMint", err))
	}

	result, err := s.queues.For(ObjectMintAuthority).Enqueue(ctx, func(ctx context.Context) (interface{}, error) {
		return s.minter.SubmitMint(ctx, sess.SealHash, sess.DestinationWallet, payload.Encode(), sig, pub)
	})
	if err != nil {
		if fault.Retryable(err) || errors.Is(err, txqueue.ErrShuttingDown) {
			s.metrics.MintSubmissions.WithLabelValues("retryable").Inc()
			s.recordRetryable(ctx, sess, err)
			return err
		}
		s.metrics.MintSubmissions.WithLabelValues("failed").Inc()
		return s.failSession(ctx, sess, err)
	}
	ref, _ := result.(string)
	s.metrics.MintSubmissions.WithLabelValues("submitted").Inc()
	return s.completeMint(ctx, sess, ref)
}

func (s *Service) completeMint(ctx context.Context, sess *session.SealSession, ref string) error {
	err := s.repo.AdvanceStatus(ctx, sess.ID, session.StatusMinting, session.StatusComplete,
		&session.Update{MintTxRef: &ref})
	if err != nil {
		if errors.Is(err, session.ErrStaleStatus) {
			return nil
		}
		return err
	}
	sess.Status = session.StatusComplete
	sess.MintTxRef = &ref
	s.metrics.SessionTransitions.WithLabelValues(string(session.StatusComplete)).Inc()
	s.logger.Info().Str("session_id", sess.ID.String()).Str("mint_tx", ref).Msg("session complete")
	s.notifier.NotifySessionUpdate(sess)
	return nil
}

// Get returns a session snapshot.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*session.SealSession, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fault.E(fault.KindValidation, "session.Get", session.ErrNotFound)
	}
	return sess, nil
}

// RunResume periodically re-drives sessions stranded mid-pipeline by crashes
// or transient failures.
func (s *Service) RunResume(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ResumeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.resumeSweep(ctx)
		}
	}
}

func (s *Service) resumeSweep(ctx context.Context) {
	inflight := []session.Status{
		session.StatusDepositDetected,
		session.StatusPreparingMetadata,
		session.StatusRequestingAttestation,
		session.StatusAttestationComplete,
		session.StatusMinting,
	}
	sessions, err := s.repo.ListByStatus(ctx, inflight, 100)
	if err != nil {
		s.logger.Error().Err(err).Msg("resume sweep list failed")
		return
	}
	for _, sess := range sessions {
		if ctx.Err() != nil {
			return
		}
		if err := s.Advance(ctx, sess.ID); err != nil {
			s.logger.Debug().Err(err).Str("session_id", sess.ID.String()).
				Str("status", string(sess.Status)).Msg("resume advance incomplete")
		}
	}
}

// RunExpiry periodically expires sessions that never saw a payment or deposit.
func (s *Service) RunExpiry(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ExpiryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.repo.ExpireOlderThan(ctx, time.Now().UTC())
			if err != nil {
				s.logger.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if n > 0 {
				s.metrics.SessionTransitions.WithLabelValues(string(session.StatusExpired)).Add(float64(n))
				s.logger.Info().Int("count", n).Msg("expired stale sessions")
			}
		}
	}
}

func (s *Service) buildPayload(sess *session.SealSession) (*seal.Payload, error) {
	return seal.Build(sess.SourceChain, sess.NFTContract, sess.TokenID,
		sess.DepositAddress, sess.DestinationWallet, sess.MetadataURI)
}

// failSession moves the session to failed, releasing any held presign slot
// first so the capability is never stranded on a dead session.
func (s *Service) failSession(ctx context.Context, sess *session.SealSession, cause error) error {
	if sess.PresignSlotID != nil {
		if err := s.pool.Release(ctx, *sess.PresignSlotID); err != nil {
			s.logger.Error().Err(err).Str("slot_id", *sess.PresignSlotID).Msg("presign release failed")
		}
	}
	msg := cause.Error()
	kind := fault.KindOf(cause).String()
	err := s.repo.AdvanceStatus(ctx, sess.ID, sess.Status, session.StatusFailed,
		&session.Update{LastError: &msg, LastErrorKind: &kind, ClearPresignSlot: true})
	if err != nil && !errors.Is(err, session.ErrStaleStatus) {
		s.logger.Error().Err(err).Str("session_id", sess.ID.String()).Msg("failed-state transition did not persist")
	}
	sess.Status = session.StatusFailed
	s.metrics.SessionTransitions.WithLabelValues(string(session.StatusFailed)).Inc()
	s.logger.Warn().Str("session_id", sess.ID.String()).Str("kind", kind).Str("cause", msg).Msg("session failed")
	s.notifier.NotifySessionUpdate(sess)
	return cause
}

// amountCovers reports whether paid meets the required fee, both in the source
// ledger's base unit.
func amountCovers(paid *big.Int, required string) (bool, error) {
	if paid == nil {
		return false, errors.New("payment amount missing")
	}
	min, ok := new(big.Int).SetString(required, 10)
	if !ok {
		return false, fmt.Errorf("unparseable fee amount %q", required)
	}
	return paid.Cmp(min) >= 0, nil
}

// recordRetryable stores the latest transient failure on the session without
// moving it, so operators can see why it is parked.
func (s *Service) recordRetryable(ctx context.Context, sess *session.SealSession, cause error) {
	msg := cause.Error()
	kind := fault.KindOf(cause).String()
	err := s.repo.AdvanceStatus(ctx, sess.ID, sess.Status, sess.Status,
		&session.Update{LastError: &msg, LastErrorKind: &kind})
	if err != nil {
		s.logger.Debug().Err(err).Str("session_id", sess.ID.String()).Msg("retryable error not recorded")
	}
}
