package gateway

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealbridge/orchestrator/internal/domain/fault"
)

// DestinationGateway submits mint transactions to the destination ledger. The
// ledger program keys mints by seal hash, so resubmission after an ambiguous
// failure is safe: a duplicate comes back as CodeAlreadyMinted and resolves to
// the original transaction reference.
type DestinationGateway struct {
	client *Client
	logger zerolog.Logger

	maxAttempts     int
	basePriorityFee uint64
	feeBumpFactor   uint64
}

func NewDestinationGateway(client *Client, logger zerolog.Logger) *DestinationGateway {
	return &DestinationGateway{
		client:          client,
		logger:          logger.With().Str("gateway", "destination").Logger(),
		maxAttempts:     4,
		basePriorityFee: 10_000,
		feeBumpFactor:   2,
	}
}

// SubmitMint sends the mint-reborn call, bumping the priority fee on each
// transient failure. An already-minted response is treated as success and
// resolved to the existing transaction reference.
func (g *DestinationGateway) SubmitMint(ctx context.Context, sealHash, recipient string, payload, signature, publicKey []byte) (string, error) {
	const op = "gateway.destination.SubmitMint"
	priorityFee := g.basePriorityFee
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		var res struct {
			TxRef string `json:"tx_ref"`
		}
		params := map[string]interface{}{
			"seal_hash":    sealHash,
			"recipient":    recipient,
			"payload":      hex.EncodeToString(payload),
			"signature":    hex.EncodeToString(signature),
			"public_key":   hex.EncodeToString(publicKey),
			"priority_fee": priorityFee,
		}
		err := g.client.Call(ctx, "mint_reborn", params, &res)
		if err == nil {
			return res.TxRef, nil
		}

		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == CodeAlreadyMinted {
			g.logger.Info().Str("seal_hash", sealHash).Msg("mint already recorded, resolving existing reference")
			ref, minted, statusErr := g.MintStatus(ctx, sealHash)
			if statusErr != nil {
				return "", statusErr
			}
			if !minted {
				return "", fault.Errorf(fault.KindTransient, op, "ledger reported already minted but no record for %s yet", sealHash)
			}
			return ref, nil
		}

		if !fault.IsTransient(err) {
			return "", err
		}
		lastErr = err
		if attempt == g.maxAttempts {
			break
		}
		priorityFee *= g.feeBumpFactor
		g.logger.Debug().Err(err).Int("attempt", attempt).Uint64("priority_fee", priorityFee).
			Msg("mint submission failed, bumping priority fee")
		select {
		case <-ctx.Done():
			return "", fault.E(fault.KindTransient, op, ctx.Err())
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return "", lastErr
}

// MintStatus reports whether a mint exists for the seal hash and, if so, its
// transaction reference.
func (g *DestinationGateway) MintStatus(ctx context.Context, sealHash string) (string, bool, error) {
	var res struct {
		Minted bool   `json:"minted"`
		TxRef  string `json:"tx_ref"`
	}
	if err := g.client.Call(ctx, "mint_status", map[string]string{"seal_hash": sealHash}, &res); err != nil {
		return "", false, err
	}
	return res.TxRef, res.Minted, nil
}
