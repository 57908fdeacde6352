package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/sealbridge/orchestrator/internal/domain/fault"
)

// JSON-RPC error codes the orchestrator reacts to. Application codes are
// assigned by the ledger-facing services; standard codes follow JSON-RPC 2.0.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602

	// CodeAlreadyMinted: the destination already holds a mint for this seal hash.
	CodeAlreadyMinted = -32030
	// CodeInsufficientFee: the coordination fee balance cannot cover the call.
	CodeInsufficientFee = -32040
	// CodePresignUnknown: the referenced presign capability does not exist.
	CodePresignUnknown = -32041
)

// RPCError is a JSON-RPC level failure returned by a ledger service.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// classifyRPCCode maps an error code to a failure kind at the point the error
// enters the process, so no caller ever needs to look at message text.
func classifyRPCCode(code int) fault.Kind {
	switch code {
	case codeParseError, codeInvalidRequest, codeMethodNotFound, codeInvalidParams:
		return fault.KindValidation
	case CodeAlreadyMinted:
		return fault.KindConflict
	case CodeInsufficientFee:
		return fault.KindResource
	case CodePresignUnknown:
		return fault.KindConclusive
	}
	if code <= -32000 && code >= -32099 {
		// Generic server-side error band: assumed temporary.
		return fault.KindTransient
	}
	return fault.KindConclusive
}

// Client is a thin JSON-RPC client shared by the non-EVM ledger gateways.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
	limiter   *rate.Limiter
	nextID    atomic.Int64
}

func NewClient(baseURL, authToken string, rps float64, burst int) *Client {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int64       `json:"id"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// Call performs one JSON-RPC request. Transport failures and rate limiting
// surface as transient; ledger-level errors are classified by code.
func (c *Client) Call(ctx context.Context, method string, params, out interface{}) error {
	op := "rpc." + method
	if err := c.limiter.Wait(ctx); err != nil {
		return fault.E(fault.KindTransient, op, err)
	}

	body, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fault.E(fault.KindValidation, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fault.E(fault.KindValidation, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fault.E(fault.KindTransient, op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fault.Errorf(fault.KindTransient, op, "rate limited by ledger service")
	case resp.StatusCode >= 500:
		return fault.Errorf(fault.KindTransient, op, "ledger service unavailable: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return fault.Errorf(fault.KindConclusive, op, "unexpected status: %s", resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fault.E(fault.KindTransient, op, err)
	}
	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fault.E(fault.KindTransient, op, err)
	}
	if rpcResp.Error != nil {
		return fault.E(classifyRPCCode(rpcResp.Error.Code), op, rpcResp.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fault.E(fault.KindConclusive, op, err)
	}
	return nil
}
