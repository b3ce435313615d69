package httpx

import (
	"context"
	"crypto/subtle"
	"github.com/ariefcatur/go-piano-orders/internal/payment"
	"github.com/go-chi/chi/v5"
	"net/http"
	"strings"
	"time"
)

type Reconciler interface {
	Handle(ctx context.Context, ev payment.Event) (payment.Outcome, error)
}

type WebhookHandler struct {
	Reconciler Reconciler
	APIKey     string // empty disables the check
}

type webhookResp struct {
	Success bool            `json:"success"`
	Outcome payment.Outcome `json:"outcome,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhooks/bank-transfer", h.bankTransfer)
}

func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.APIKey == "" {
		return true
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Apikey ")
	return ok && subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(h.APIKey)) == 1
}

// bankTransfer acknowledges every classified event with 200 so the bank
// stops retrying; only infrastructure failures ask for a redelivery.
func (h *WebhookHandler) bankTransfer(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, webhookResp{Error: "unauthorized"})
		return
	}
	var ev payment.Event
	if err := decode(r, &ev); err != nil {
		writeJSON(w, http.StatusBadRequest, webhookResp{Error: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	out, err := h.Reconciler.Handle(ctx, ev)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResp{Success: true, Outcome: out})
}
