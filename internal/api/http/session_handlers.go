package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sealbridge/orchestrator/internal/domain/session"
	"github.com/sealbridge/orchestrator/internal/infrastructure/sse"
)

type sessionCreateRequest struct {
	SourceChain       string `json:"source_chain"`
	DestinationWallet string `json:"destination_wallet"`
	NFTContract       string `json:"nft_contract"`
	TokenID           string `json:"token_id"`
}

type paymentConfirmRequest struct {
	Signature string `json:"signature"`
}

type sessionResponse struct {
	SessionID          string    `json:"session_id"`
	SourceChain        string    `json:"source_chain"`
	Status             string    `json:"status"`
	DepositAddress     string    `json:"deposit_address"`
	DestinationWallet  string    `json:"destination_wallet"`
	NFTContract        string    `json:"nft_contract"`
	TokenID            string    `json:"token_id"`
	MetadataURI        string    `json:"metadata_uri,omitempty"`
	SealHash           string    `json:"seal_hash,omitempty"`
	PaymentTxSignature *string   `json:"payment_tx_signature,omitempty"`
	MintTxRef          *string   `json:"mint_tx_ref,omitempty"`
	LastError          *string   `json:"last_error,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

func toSessionResponse(s *session.SealSession) *sessionResponse {
	return &sessionResponse{
		SessionID:          s.ID.String(),
		SourceChain:        s.SourceChain,
		Status:             string(s.Status),
		DepositAddress:     s.DepositAddress,
		DestinationWallet:  s.DestinationWallet,
		NFTContract:        s.NFTContract,
		TokenID:            s.TokenID,
		MetadataURI:        s.MetadataURI,
		SealHash:           s.SealHash,
		PaymentTxSignature: s.PaymentTxSignature,
		MintTxRef:          s.MintTxRef,
		LastError:          s.LastError,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		ExpiresAt:          s.ExpiresAt,
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	sess, err := s.sessionSvc.Create(r.Context(), req.SourceChain, req.DestinationWallet, req.NFTContract, req.TokenID)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	sess, err := s.sessionSvc.Get(r.Context(), id)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) confirmPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	var req paymentConfirmRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.Signature == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "signature is required")
		return
	}
	sess, err := s.sessionSvc.ConfirmPayment(r.Context(), id, req.Signature)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSessionResponse(sess))
}

// sessionEvents streams status changes for one session over SSE.
func (s *Server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	// 404 before upgrading to a stream.
	sess, err := s.sessionSvc.Get(r.Context(), id)
	if err != nil {
		respondFault(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}

	client := sse.NewClient(uuid.NewString(), id)
	s.sseHub.Register(client)
	defer s.sseHub.Unregister(client.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Push the current snapshot first so the client never misses the state it
	// connected at.
	writeSSE(w, &sse.Event{
		SessionID: sess.ID.String(),
		Status:    string(sess.Status),
		SealHash:  sess.SealHash,
		MintTxRef: sess.MintTxRef,
		LastError: sess.LastError,
		UpdatedAt: sess.UpdatedAt,
	})
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case ev, open := <-client.Events:
			if !open {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, ev *sse.Event) {
	payload, _ := json.Marshal(ev)
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))
}
