package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sealbridge/orchestrator/internal/domain/chain"
)

// SourceChain configures one enabled source ledger.
type SourceChain struct {
	Selector     string
	RPCURL       string
	LockContract string // EVM chains only
	FeeCollector string // EVM chains only
	StartBlock   uint64 // EVM chains only
	PollInterval time.Duration
	RateLimit    float64
	RateBurst    int
}

// Config holds service configuration.
type Config struct {
	DatabasePath string
	ServerAddr   string

	SessionTTL     time.Duration
	FeeAmount      string
	ResumeInterval time.Duration
	ExpiryInterval time.Duration

	SourceChains []SourceChain

	CoordinationRPCURL    string
	CoordinationAuthToken string
	CoordinationRateLimit float64
	DestinationRPCURL     string
	DestinationAuthToken  string
	DestinationRateLimit  float64

	ListenerFailureBudget int
	ListenerBatchSize     int
	AttestationInterval   time.Duration

	PresignAllocTTL      time.Duration
	PresignSweepInterval time.Duration

	TreasuryLowWater    *big.Int
	TreasuryTopUpAmount *big.Int
	TreasuryInterval    time.Duration

	QueueDepth int
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath: getenv("DATABASE_PATH", "orchestrator.db"),
		ServerAddr:   getenv("SERVER_ADDR", "0.0.0.0:8080"),

		SessionTTL:     parseDuration(getenv("SESSION_TTL", "30m"), 30*time.Minute),
		FeeAmount:      getenv("FEE_AMOUNT", "0"),
		ResumeInterval: parseDuration(getenv("RESUME_INTERVAL", "30s"), 30*time.Second),
		ExpiryInterval: parseDuration(getenv("EXPIRY_INTERVAL", "1m"), time.Minute),

		CoordinationRPCURL:    getenv("COORDINATION_RPC_URL", "http://localhost:9650"),
		CoordinationAuthToken: os.Getenv("COORDINATION_AUTH_TOKEN"),
		CoordinationRateLimit: parseFloat(getenv("COORDINATION_RATE_LIMIT", "10"), 10),
		DestinationRPCURL:     getenv("DESTINATION_RPC_URL", "http://localhost:9651"),
		DestinationAuthToken:  os.Getenv("DESTINATION_AUTH_TOKEN"),
		DestinationRateLimit:  parseFloat(getenv("DESTINATION_RATE_LIMIT", "10"), 10),

		ListenerFailureBudget: parseInt(getenv("LISTENER_FAILURE_BUDGET", "5"), 5),
		ListenerBatchSize:     parseInt(getenv("LISTENER_BATCH_SIZE", "50"), 50),
		AttestationInterval:   parseDuration(getenv("ATTESTATION_POLL_INTERVAL", "5s"), 5*time.Second),

		PresignAllocTTL:      parseDuration(getenv("PRESIGN_ALLOC_TTL", "10m"), 10*time.Minute),
		PresignSweepInterval: parseDuration(getenv("PRESIGN_SWEEP_INTERVAL", "1m"), time.Minute),

		TreasuryLowWater:    parseBigInt(getenv("TREASURY_LOW_WATER", "0")),
		TreasuryTopUpAmount: parseBigInt(getenv("TREASURY_TOPUP_AMOUNT", "0")),
		TreasuryInterval:    parseDuration(getenv("TREASURY_INTERVAL", "1m"), time.Minute),

		QueueDepth: parseInt(getenv("TXQUEUE_DEPTH", "64"), 64),
	}

	selectors := splitCSV(getenv("SOURCE_CHAINS", chain.SelectorNear))
	for _, selector := range selectors {
		if _, ok := chain.ID(selector); !ok {
			return nil, fmt.Errorf("config: unknown source chain %q", selector)
		}
		upper := strings.ToUpper(selector)
		sc := SourceChain{
			Selector:     selector,
			RPCURL:       os.Getenv("RPC_URL_" + upper),
			LockContract: os.Getenv("LOCK_CONTRACT_" + upper),
			FeeCollector: os.Getenv("FEE_COLLECTOR_" + upper),
			StartBlock:   parseUint(os.Getenv("START_BLOCK_"+upper), 0),
			PollInterval: parseDuration(getenv("POLL_INTERVAL_"+upper, "5s"), 5*time.Second),
			RateLimit:    parseFloat(getenv("RATE_LIMIT_"+upper, "5"), 5),
			RateBurst:    parseInt(getenv("RATE_BURST_"+upper, "2"), 2),
		}
		if sc.RPCURL == "" {
			return nil, fmt.Errorf("config: RPC_URL_%s is required for enabled chain %q", upper, selector)
		}
		if chain.IsEVM(selector) && (sc.LockContract == "" || sc.FeeCollector == "") {
			return nil, fmt.Errorf("config: LOCK_CONTRACT_%s and FEE_COLLECTOR_%s are required for EVM chain %q", upper, upper, selector)
		}
		cfg.SourceChains = append(cfg.SourceChains, sc)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func parseUint(val string, def uint64) uint64 {
	if val == "" {
		return def
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func parseFloat(val string, def float64) float64 {
	if val == "" {
		return def
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return f
}

func parseBigInt(val string) *big.Int {
	n, ok := new(big.Int).SetString(val, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}
