package gateway

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealbridge/orchestrator/internal/domain/chain"
	"github.com/sealbridge/orchestrator/internal/domain/fault"
)

// NEARGateway talks to the bridge indexer in front of the NEAR lock contract.
// The indexer exposes a JSON-RPC surface with monotonically increasing event
// sequence numbers, so the cursor position is just the decimal sequence.
type NEARGateway struct {
	client *Client
	retry  RetryPolicy
	logger zerolog.Logger
}

func NewNEARGateway(client *Client, logger zerolog.Logger) *NEARGateway {
	return &NEARGateway{
		client: client,
		retry:  DefaultRetryPolicy(),
		logger: logger.With().Str("gateway", "near").Logger(),
	}
}

func (g *NEARGateway) Chain() string { return chain.SelectorNear }

type nearTxStatusResult struct {
	Found   bool   `json:"found"`
	Success bool   `json:"success"`
	Signer  string `json:"signer_id"`
	Amount  string `json:"deposit_yocto"`
}

func (g *NEARGateway) VerifyPayment(ctx context.Context, signature string) (*chain.Payment, error) {
	const op = "gateway.near.VerifyPayment"
	if signature == "" {
		return nil, fault.Errorf(fault.KindValidation, op, "empty transaction signature")
	}

	var payment *chain.Payment
	err := Retry(ctx, g.retry, g.logger, op, func(ctx context.Context) error {
		var res nearTxStatusResult
		if err := g.client.Call(ctx, "tx_status", map[string]string{"tx_hash": signature}, &res); err != nil {
			return err
		}
		if !res.Found {
			return fault.Errorf(fault.KindValidation, op, "payment transaction %s not found", signature)
		}
		if !res.Success {
			return fault.Errorf(fault.KindConclusive, op, "payment transaction %s failed on chain", signature)
		}
		amount, ok := new(big.Int).SetString(res.Amount, 10)
		if !ok {
			return fault.Errorf(fault.KindConclusive, op, "unparseable deposit amount %q", res.Amount)
		}
		payment = &chain.Payment{Signature: signature, Payer: res.Signer, Amount: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

type nearEvent struct {
	Sequence uint64 `json:"sequence"`
	TxHash   string `json:"tx_hash"`
	Event    string `json:"event"`
	Data     struct {
		NFTContract    string `json:"nft_contract"`
		TokenID        string `json:"token_id"`
		DepositAddress string `json:"deposit_address"`
		TokenURI       string `json:"token_uri"`
		Receiver       string `json:"receiver"`
	} `json:"data"`
	EmittedAtNanos int64 `json:"emitted_at"`
}

func (g *NEARGateway) FetchLockEvents(ctx context.Context, after string, limit int) ([]chain.Event, error) {
	const op = "gateway.near.FetchLockEvents"
	var afterSeq uint64
	if after != "" {
		seq, err := strconv.ParseUint(after, 10, 64)
		if err != nil {
			return nil, fault.E(fault.KindConclusive, op, fmt.Errorf("malformed cursor position %q: %w", after, err))
		}
		afterSeq = seq
	}
	if limit <= 0 {
		limit = 50
	}

	var raw []nearEvent
	params := map[string]interface{}{"after_sequence": afterSeq, "limit": limit}
	if err := g.client.Call(ctx, "seal_events", params, &raw); err != nil {
		return nil, err
	}

	events := make([]chain.Event, 0, len(raw))
	for _, e := range raw {
		if e.Sequence <= afterSeq && after != "" {
			continue
		}
		events = append(events, chain.Event{
			Position: strconv.FormatUint(e.Sequence, 10),
			Sequence: e.Sequence,
			Type:     e.Event,
			TxHash:   e.TxHash,
			Attributes: map[string]string{
				chain.AttrNFTContract:    e.Data.NFTContract,
				chain.AttrTokenID:        e.Data.TokenID,
				chain.AttrDepositAddress: e.Data.DepositAddress,
				chain.AttrTokenURI:       e.Data.TokenURI,
				chain.AttrReceiver:       e.Data.Receiver,
			},
			EmittedAt: time.Unix(0, e.EmittedAtNanos).UTC(),
		})
	}
	return events, nil
}
