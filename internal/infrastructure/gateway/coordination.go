package gateway

import (
	"context"
	"encoding/hex"
	"math/big"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealbridge/orchestrator/internal/domain/chain"
	"github.com/sealbridge/orchestrator/internal/domain/fault"
)

// CoordinationGateway fronts the coordination ledger that hosts the distributed
// signing network: deposit address derivation, attestation requests, and the
// orchestrator's fee treasury.
type CoordinationGateway struct {
	client *Client
	retry  RetryPolicy
	logger zerolog.Logger
}

func NewCoordinationGateway(client *Client, logger zerolog.Logger) *CoordinationGateway {
	return &CoordinationGateway{
		client: client,
		retry:  DefaultRetryPolicy(),
		logger: logger.With().Str("gateway", "coordination").Logger(),
	}
}

// DeriveDepositAddress asks the signing network for the deposit address bound
// to this session's distributed key share.
func (g *CoordinationGateway) DeriveDepositAddress(ctx context.Context, sessionID string) (string, error) {
	const op = "gateway.coordination.DeriveDepositAddress"
	var res struct {
		Address string `json:"address"`
	}
	err := Retry(ctx, g.retry, g.logger, op, func(ctx context.Context) error {
		return g.client.Call(ctx, "dwallet_derive_address", map[string]string{"session_id": sessionID}, &res)
	})
	if err != nil {
		return "", err
	}
	if res.Address == "" {
		return "", fault.Errorf(fault.KindConclusive, op, "empty address for session %s", sessionID)
	}
	return res.Address, nil
}

// RequestAttestation submits the encoded seal payload for signing, consuming
// the referenced presign capability. The call is NOT retried here: whether the
// presign was consumed is unknowable after a transport failure, so the caller
// owns the recovery decision.
func (g *CoordinationGateway) RequestAttestation(ctx context.Context, presignID string, payload []byte) (string, error) {
	const op = "gateway.coordination.RequestAttestation"
	var res struct {
		RequestRef string `json:"request_ref"`
	}
	params := map[string]string{
		"presign_id": presignID,
		"payload":    hex.EncodeToString(payload),
	}
	if err := g.client.Call(ctx, "attestation_request", params, &res); err != nil {
		return "", err
	}
	return res.RequestRef, nil
}

// AttestationStatus polls for the signature over a seal hash. Not ready is not
// an error.
func (g *CoordinationGateway) AttestationStatus(ctx context.Context, sealHash string) (*chain.Attestation, error) {
	const op = "gateway.coordination.AttestationStatus"
	var res struct {
		Ready     bool   `json:"ready"`
		Signature string `json:"signature"`
		PublicKey string `json:"public_key"`
	}
	err := Retry(ctx, g.retry, g.logger, op, func(ctx context.Context) error {
		return g.client.Call(ctx, "attestation_status", map[string]string{"seal_hash": sealHash}, &res)
	})
	if err != nil {
		return nil, err
	}
	if !res.Ready {
		return &chain.Attestation{}, nil
	}
	sig, err := hex.DecodeString(res.Signature)
	if err != nil {
		return nil, fault.E(fault.KindConclusive, op, err)
	}
	pub, err := hex.DecodeString(res.PublicKey)
	if err != nil {
		return nil, fault.E(fault.KindConclusive, op, err)
	}
	return &chain.Attestation{Ready: true, Signature: sig, PublicKey: pub}, nil
}

// FetchAttestationEvents pages completed attestations from the coordination
// ledger's event log so the listener can push sessions forward without
// polling per session.
func (g *CoordinationGateway) FetchAttestationEvents(ctx context.Context, after string, limit int) ([]chain.Event, error) {
	const op = "gateway.coordination.FetchAttestationEvents"
	var afterSeq uint64
	if after != "" {
		seq, err := strconv.ParseUint(after, 10, 64)
		if err != nil {
			return nil, fault.Errorf(fault.KindConclusive, op, "malformed cursor position %q", after)
		}
		afterSeq = seq
	}
	if limit <= 0 {
		limit = 50
	}

	var raw []struct {
		Sequence  uint64 `json:"sequence"`
		SealHash  string `json:"seal_hash"`
		Signature string `json:"signature"`
		PublicKey string `json:"public_key"`
		EmittedAt int64  `json:"emitted_at"`
	}
	params := map[string]interface{}{"after_sequence": afterSeq, "limit": limit}
	if err := g.client.Call(ctx, "attestation_events", params, &raw); err != nil {
		return nil, err
	}

	events := make([]chain.Event, 0, len(raw))
	for _, e := range raw {
		events = append(events, chain.Event{
			Position: strconv.FormatUint(e.Sequence, 10),
			Sequence: e.Sequence,
			Type:     chain.EventAttestationComplete,
			Attributes: map[string]string{
				"seal_hash":  e.SealHash,
				"signature":  e.Signature,
				"public_key": e.PublicKey,
			},
			EmittedAt: time.Unix(0, e.EmittedAt).UTC(),
		})
	}
	return events, nil
}

// TreasuryBalance reports the orchestrator's remaining fee balance on the
// coordination ledger.
func (g *CoordinationGateway) TreasuryBalance(ctx context.Context) (*big.Int, error) {
	const op = "gateway.coordination.TreasuryBalance"
	var res struct {
		Balance string `json:"balance"`
	}
	err := Retry(ctx, g.retry, g.logger, op, func(ctx context.Context) error {
		return g.client.Call(ctx, "treasury_balance", nil, &res)
	})
	if err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(res.Balance, 10)
	if !ok {
		return nil, fault.Errorf(fault.KindConclusive, op, "unparseable balance %q", res.Balance)
	}
	return balance, nil
}

// TopUpFees moves funds into the fee treasury. Not retried: a lost response
// could mean a duplicate transfer, and the periodic balance check makes a
// missed top-up self-healing.
func (g *CoordinationGateway) TopUpFees(ctx context.Context, amount *big.Int) (string, error) {
	var res struct {
		TxRef string `json:"tx_ref"`
	}
	params := map[string]string{"amount": amount.String()}
	if err := g.client.Call(ctx, "treasury_top_up", params, &res); err != nil {
		return "", err
	}
	return res.TxRef, nil
}
