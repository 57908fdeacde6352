package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sealbridge/orchestrator/internal/domain/chain"
	"github.com/sealbridge/orchestrator/internal/domain/fault"
)

const sealInitiatedABIJSON = `[{"anonymous":false,"inputs":[
{"indexed":true,"name":"nftContract","type":"address"},
{"indexed":true,"name":"tokenId","type":"uint256"},
{"indexed":true,"name":"depositAddress","type":"bytes32"},
{"indexed":false,"name":"receiver","type":"bytes32"},
{"indexed":false,"name":"tokenUri","type":"string"}],
"name":"SealInitiated","type":"event"}]`

var (
	lockABI            abi.ABI
	sealInitiatedTopic common.Hash
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(sealInitiatedABIJSON))
	if err != nil {
		panic(fmt.Sprintf("gateway: lock contract abi: %v", err))
	}
	lockABI = parsed
	sealInitiatedTopic = lockABI.Events["SealInitiated"].ID
}

// EVMConfig configures one EVM source ledger gateway.
type EVMConfig struct {
	Chain        string
	RPCURL       string
	LockContract string
	FeeCollector string
	StartBlock   uint64
	RateLimit    float64
	RateBurst    int
}

// EVMGateway reads lock events and verifies fee payments on an EVM chain
// through go-ethereum's client bindings.
type EVMGateway struct {
	chainName    string
	client       *ethclient.Client
	lockContract common.Address
	feeCollector common.Address
	startBlock   uint64
	limiter      *rate.Limiter
	retry        RetryPolicy
	logger       zerolog.Logger
}

func NewEVMGateway(ctx context.Context, cfg EVMConfig, logger zerolog.Logger) (*EVMGateway, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fault.E(fault.KindTransient, "gateway.evm.dial", err)
	}
	if !common.IsHexAddress(cfg.LockContract) {
		return nil, fault.Errorf(fault.KindValidation, "gateway.evm", "invalid lock contract address %q", cfg.LockContract)
	}
	if !common.IsHexAddress(cfg.FeeCollector) {
		return nil, fault.Errorf(fault.KindValidation, "gateway.evm", "invalid fee collector address %q", cfg.FeeCollector)
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 2
	}
	return &EVMGateway{
		chainName:    cfg.Chain,
		client:       client,
		lockContract: common.HexToAddress(cfg.LockContract),
		feeCollector: common.HexToAddress(cfg.FeeCollector),
		startBlock:   cfg.StartBlock,
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
		retry:        DefaultRetryPolicy(),
		logger:       logger.With().Str("gateway", "evm").Str("chain", cfg.Chain).Logger(),
	}, nil
}

func (g *EVMGateway) Chain() string { return g.chainName }

func (g *EVMGateway) Close() { g.client.Close() }

// VerifyPayment confirms that the referenced transaction exists, succeeded,
// paid the fee collector, and reports the transferred amount. A pending
// transaction is a transient condition; callers re-confirm later.
func (g *EVMGateway) VerifyPayment(ctx context.Context, signature string) (*chain.Payment, error) {
	const op = "gateway.evm.VerifyPayment"
	if len(signature) != 66 || !strings.HasPrefix(signature, "0x") {
		return nil, fault.Errorf(fault.KindValidation, op, "malformed transaction hash %q", signature)
	}
	hash := common.HexToHash(signature)

	var payment *chain.Payment
	err := Retry(ctx, g.retry, g.logger, op, func(ctx context.Context) error {
		if err := g.limiter.Wait(ctx); err != nil {
			return fault.E(fault.KindTransient, op, err)
		}
		tx, pending, err := g.client.TransactionByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				return fault.Errorf(fault.KindValidation, op, "payment transaction %s not found", signature)
			}
			return fault.E(fault.KindTransient, op, err)
		}
		if pending {
			return fault.Errorf(fault.KindTransient, op, "payment transaction %s still pending", signature)
		}
		receipt, err := g.client.TransactionReceipt(ctx, hash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				return fault.Errorf(fault.KindTransient, op, "receipt for %s not yet available", signature)
			}
			return fault.E(fault.KindTransient, op, err)
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			return fault.Errorf(fault.KindConclusive, op, "payment transaction %s reverted", signature)
		}
		if tx.To() == nil || *tx.To() != g.feeCollector {
			return fault.Errorf(fault.KindConclusive, op, "payment transaction %s not addressed to fee collector", signature)
		}
		payment = &chain.Payment{Signature: signature, Amount: tx.Value()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// FetchLockEvents returns SealInitiated events past the given cursor position,
// oldest first. Position format is "block:logIndex"; empty means the
// configured start block.
func (g *EVMGateway) FetchLockEvents(ctx context.Context, after string, limit int) ([]chain.Event, error) {
	const op = "gateway.evm.FetchLockEvents"
	fromBlock := g.startBlock
	var afterBlock, afterIndex uint64
	haveCursor := false
	if after != "" {
		var err error
		afterBlock, afterIndex, err = parseEVMPosition(after)
		if err != nil {
			return nil, fault.E(fault.KindConclusive, op, err)
		}
		fromBlock = afterBlock
		haveCursor = true
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fault.E(fault.KindTransient, op, err)
	}
	logs, err := g.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{g.lockContract},
		Topics:    [][]common.Hash{{sealInitiatedTopic}},
	})
	if err != nil {
		return nil, fault.E(fault.KindTransient, op, err)
	}

	events := make([]chain.Event, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		if haveCursor && (lg.BlockNumber < afterBlock ||
			(lg.BlockNumber == afterBlock && uint64(lg.Index) <= afterIndex)) {
			continue
		}
		ev, err := g.decodeLockEvent(lg)
		if err != nil {
			g.logger.Warn().Err(err).Str("tx", lg.TxHash.Hex()).Msg("skipping undecodable lock event")
			continue
		}
		events = append(events, ev)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	return events, nil
}

func (g *EVMGateway) decodeLockEvent(lg types.Log) (chain.Event, error) {
	if len(lg.Topics) != 4 {
		return chain.Event{}, fmt.Errorf("expected 4 topics, got %d", len(lg.Topics))
	}
	decoded, err := lockABI.Unpack("SealInitiated", lg.Data)
	if err != nil {
		return chain.Event{}, err
	}
	if len(decoded) != 2 {
		return chain.Event{}, fmt.Errorf("expected 2 data fields, got %d", len(decoded))
	}
	receiver, ok := decoded[0].([32]byte)
	if !ok {
		return chain.Event{}, fmt.Errorf("receiver field is not bytes32")
	}
	tokenURI, ok := decoded[1].(string)
	if !ok {
		return chain.Event{}, fmt.Errorf("tokenUri field is not a string")
	}

	nftContract := common.BytesToAddress(lg.Topics[1].Bytes())
	tokenID := new(big.Int).SetBytes(lg.Topics[2].Bytes())
	deposit := lg.Topics[3]

	return chain.Event{
		Position: fmt.Sprintf("%d:%d", lg.BlockNumber, lg.Index),
		Sequence: lg.BlockNumber*100000 + uint64(lg.Index),
		Type:     chain.EventSealInitiated,
		TxHash:   lg.TxHash.Hex(),
		Attributes: map[string]string{
			chain.AttrNFTContract:    strings.ToLower(nftContract.Hex()),
			chain.AttrTokenID:        tokenID.String(),
			chain.AttrDepositAddress: strings.TrimPrefix(deposit.Hex(), "0x"),
			chain.AttrReceiver:       common.Bytes2Hex(receiver[:]),
			chain.AttrTokenURI:       tokenURI,
		},
		EmittedAt: time.Now().UTC(),
	}, nil
}

func parseEVMPosition(pos string) (block, index uint64, err error) {
	parts := strings.SplitN(pos, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed cursor position %q", pos)
	}
	block, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed cursor position %q: %w", pos, err)
	}
	index, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed cursor position %q: %w", pos, err)
	}
	return block, index, nil
}
