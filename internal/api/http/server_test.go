package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apppresign "github.com/sealbridge/orchestrator/internal/application/presign"
	appsession "github.com/sealbridge/orchestrator/internal/application/session"
	"github.com/sealbridge/orchestrator/internal/application/txqueue"
	"github.com/sealbridge/orchestrator/internal/domain/chain"
	"github.com/sealbridge/orchestrator/internal/infrastructure/sqlite"
	"github.com/sealbridge/orchestrator/internal/infrastructure/sse"
	"github.com/sealbridge/orchestrator/internal/observability"
)

type stubCoordinator struct{}

func (stubCoordinator) DeriveDepositAddress(_ context.Context, sessionID string) (string, error) {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:]), nil
}

func (stubCoordinator) RequestAttestation(context.Context, string, []byte) (string, error) {
	return "req-1", nil
}

func (stubCoordinator) AttestationStatus(context.Context, string) (*chain.Attestation, error) {
	return &chain.Attestation{}, nil
}

type stubMinter struct{}

func (stubMinter) SubmitMint(context.Context, string, string, []byte, []byte, []byte) (string, error) {
	return "mint-tx", nil
}

func (stubMinter) MintStatus(context.Context, string) (string, bool, error) {
	return "", false, nil
}

type stubVerifier struct{}

func (stubVerifier) VerifyPayment(_ context.Context, signature string) (*chain.Payment, error) {
	return &chain.Payment{Signature: signature, Amount: big.NewInt(1_000_000)}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "orchestrator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	pool := apppresign.NewPool(sqlite.NewPresignRepository(db), time.Minute, time.Minute, metrics, zerolog.Nop())
	queues := txqueue.NewRegistry(8, zerolog.Nop())
	t.Cleanup(queues.Close)
	hub := sse.NewHub()
	t.Cleanup(hub.Stop)

	svc := appsession.NewService(sqlite.NewSessionRepository(db), pool, stubCoordinator{}, stubMinter{},
		map[string]appsession.PaymentVerifier{chain.SelectorNear: stubVerifier{}},
		queues, hub, appsession.Config{SessionTTL: time.Hour}, metrics, zerolog.Nop())

	srv := httptest.NewServer(NewServer(svc, hub, registry, zerolog.Nop()).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func testReceiver() string {
	sum := sha256.Sum256([]byte("receiver"))
	return hex.EncodeToString(sum[:])
}

func TestCreateAndGetSession(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/sessions", sessionCreateRequest{
		SourceChain:       chain.SelectorNear,
		DestinationWallet: testReceiver(),
		NFTContract:       "nft.collection.near",
		TokenID:           "7",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeResponse(t, resp)
	assert.Equal(t, "awaiting_payment", created["status"])
	assert.Len(t, created["deposit_address"], 64)

	getResp, err := http.Get(srv.URL + "/v1/sessions/" + created["session_id"].(string))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	got := decodeResponse(t, getResp)
	assert.Equal(t, created["session_id"], got["session_id"])
}

func TestCreateSessionRejectsUnknownChain(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/sessions", sessionCreateRequest{
		SourceChain:       "dogecoin",
		DestinationWallet: testReceiver(),
		NFTContract:       "c",
		TokenID:           "1",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetUnknownSessionIs404(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/sessions/2b1c3a34-0000-4000-8000-000000000001")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfirmPaymentFlow(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/sessions", sessionCreateRequest{
		SourceChain:       chain.SelectorNear,
		DestinationWallet: testReceiver(),
		NFTContract:       "nft.collection.near",
		TokenID:           "7",
	})
	created := decodeResponse(t, resp)
	id := created["session_id"].(string)

	// Missing signature rejected.
	bad := postJSON(t, srv.URL+"/v1/sessions/"+id+"/payment", paymentConfirmRequest{})
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	ok := postJSON(t, srv.URL+"/v1/sessions/"+id+"/payment", paymentConfirmRequest{Signature: "SIG1"})
	require.Equal(t, http.StatusOK, ok.StatusCode)
	confirmed := decodeResponse(t, ok)
	assert.Equal(t, "awaiting_deposit", confirmed["status"])

	// Second session reusing the signature conflicts.
	resp2 := postJSON(t, srv.URL+"/v1/sessions", sessionCreateRequest{
		SourceChain:       chain.SelectorNear,
		DestinationWallet: testReceiver(),
		NFTContract:       "nft.collection.near",
		TokenID:           "8",
	})
	other := decodeResponse(t, resp2)
	conflict := postJSON(t, srv.URL+"/v1/sessions/"+other["session_id"].(string)+"/payment",
		paymentConfirmRequest{Signature: "SIG1"})
	defer conflict.Body.Close()
	assert.Equal(t, http.StatusConflict, conflict.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	h, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer h.Body.Close()
	assert.Equal(t, http.StatusOK, h.StatusCode)

	m, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	assert.Equal(t, http.StatusOK, m.StatusCode)
}
