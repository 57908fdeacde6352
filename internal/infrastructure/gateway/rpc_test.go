package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealbridge/orchestrator/internal/domain/fault"
)

type rpcHandler func(method string, params json.RawMessage) (interface{}, *RPCError)

func newRPCServer(t *testing.T, handle rpcHandler) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		params, _ := json.Marshal(req.Params)
		result, rpcErr := handle(req.Method, params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "", 1000, 100)
}

func TestCallClassifiesErrorCodes(t *testing.T) {
	cases := []struct {
		name string
		code int
		want fault.Kind
	}{
		{"invalid params", codeInvalidParams, fault.KindValidation},
		{"already minted", CodeAlreadyMinted, fault.KindConflict},
		{"insufficient fee", CodeInsufficientFee, fault.KindResource},
		{"unknown presign", CodePresignUnknown, fault.KindConclusive},
		{"server band", -32005, fault.KindTransient},
		{"application error", -10, fault.KindConclusive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newRPCServer(t, func(string, json.RawMessage) (interface{}, *RPCError) {
				return nil, &RPCError{Code: tc.code, Message: tc.name}
			})
			err := client.Call(context.Background(), "any_method", nil, nil)
			require.Error(t, err)
			assert.Equal(t, tc.want, fault.KindOf(err))

			var rpcErr *RPCError
			require.True(t, errors.As(err, &rpcErr))
			assert.Equal(t, tc.code, rpcErr.Code)
		})
	}
}

func TestCallDecodesResult(t *testing.T) {
	client := newRPCServer(t, func(method string, params json.RawMessage) (interface{}, *RPCError) {
		assert.Equal(t, "treasury_balance", method)
		return map[string]string{"balance": "12345"}, nil
	})
	var res struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, client.Call(context.Background(), "treasury_balance", nil, &res))
	assert.Equal(t, "12345", res.Balance)
}

func TestCallServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "", 1000, 100)

	err := client.Call(context.Background(), "any_method", nil, nil)
	require.Error(t, err)
	assert.True(t, fault.IsTransient(err))
}

func TestRetryStopsOnConclusive(t *testing.T) {
	var calls atomic.Int32
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}, zerolog.Nop(), "op",
		func(context.Context) error {
			calls.Add(1)
			return fault.Errorf(fault.KindConclusive, "op", "no")
		})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryRecoversFromTransient(t *testing.T) {
	var calls atomic.Int32
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}, zerolog.Nop(), "op",
		func(context.Context) error {
			if calls.Add(1) < 3 {
				return fault.Errorf(fault.KindTransient, "op", "flaky")
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryExhaustsBudget(t *testing.T) {
	var calls atomic.Int32
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, zerolog.Nop(), "op",
		func(context.Context) error {
			calls.Add(1)
			return fault.Errorf(fault.KindTransient, "op", "flaky")
		})
	require.Error(t, err)
	assert.True(t, fault.IsTransient(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSubmitMintResolvesAlreadyMinted(t *testing.T) {
	client := newRPCServer(t, func(method string, params json.RawMessage) (interface{}, *RPCError) {
		switch method {
		case "mint_reborn":
			return nil, &RPCError{Code: CodeAlreadyMinted, Message: "duplicate seal hash"}
		case "mint_status":
			return map[string]interface{}{"minted": true, "tx_ref": "mint-tx-1"}, nil
		}
		return nil, &RPCError{Code: codeMethodNotFound, Message: method}
	})
	gw := NewDestinationGateway(client, zerolog.Nop())

	ref, err := gw.SubmitMint(context.Background(), "abcd", "receiver", []byte{1}, []byte{2}, []byte{3})
	require.NoError(t, err)
	assert.Equal(t, "mint-tx-1", ref)
}

func TestSubmitMintConclusiveFailure(t *testing.T) {
	client := newRPCServer(t, func(method string, params json.RawMessage) (interface{}, *RPCError) {
		return nil, &RPCError{Code: CodePresignUnknown, Message: "bad attestation"}
	})
	gw := NewDestinationGateway(client, zerolog.Nop())

	_, err := gw.SubmitMint(context.Background(), "abcd", "receiver", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, fault.IsConclusive(err))
}

func TestNEARFetchLockEvents(t *testing.T) {
	client := newRPCServer(t, func(method string, params json.RawMessage) (interface{}, *RPCError) {
		require.Equal(t, "seal_events", method)
		var p struct {
			AfterSequence uint64 `json:"after_sequence"`
		}
		require.NoError(t, json.Unmarshal(params, &p))
		assert.Equal(t, uint64(41), p.AfterSequence)
		return []map[string]interface{}{
			{
				"sequence": 42,
				"tx_hash":  "TX42",
				"event":    "seal_initiated",
				"data": map[string]string{
					"nft_contract":    "nft.collection.near",
					"token_id":        "7",
					"deposit_address": "deadbeef",
					"token_uri":       "ipfs://x",
					"receiver":        "3yZe7d",
				},
			},
		}, nil
	})
	gw := NewNEARGateway(client, zerolog.Nop())

	events, err := gw.FetchLockEvents(context.Background(), "41", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "42", events[0].Position)
	assert.Equal(t, uint64(42), events[0].Sequence)
	assert.Equal(t, "nft.collection.near", events[0].Attributes["nft_contract"])
	assert.Equal(t, "TX42", events[0].TxHash)
}

func TestCoordinationAttestationStatus(t *testing.T) {
	client := newRPCServer(t, func(method string, params json.RawMessage) (interface{}, *RPCError) {
		return map[string]interface{}{"ready": true, "signature": "0102", "public_key": "0304"}, nil
	})
	gw := NewCoordinationGateway(client, zerolog.Nop())

	att, err := gw.AttestationStatus(context.Background(), "hash")
	require.NoError(t, err)
	require.True(t, att.Ready)
	assert.Equal(t, []byte{0x01, 0x02}, att.Signature)
	assert.Equal(t, []byte{0x03, 0x04}, att.PublicKey)
}
