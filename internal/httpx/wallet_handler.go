package httpx

import (
	"context"
	"github.com/ariefcatur/go-piano-orders/internal/wallet"
	"github.com/go-chi/chi/v5"
	"net/http"
	"strconv"
	"time"
)

type WalletService interface {
	Balance(ctx context.Context, userID string) (wallet.Wallet, error)
	Entries(ctx context.Context, userID string, limit, offset int) ([]wallet.Entry, error)
	Reconcile(ctx context.Context, userID string) (wallet.Reconciliation, error)
	RequestWithdrawal(ctx context.Context, userID string, amount int64, bank wallet.BankInfo) (wallet.Withdrawal, error)
	ResolveWithdrawal(ctx context.Context, id int64, action wallet.Action, adminID, note string) (wallet.Withdrawal, error)
}

type WalletHandler struct {
	Wallet WalletService
	Auth   *Auth
}

type WithdrawalReq struct {
	Amount   int64           `json:"amount"`
	BankInfo wallet.BankInfo `json:"bank_info"`
}

type ResolveReq struct {
	Action wallet.Action `json:"action"`
	Note   string        `json:"note"`
}

type walletResp struct {
	wallet.Wallet
	Total int64 `json:"total"`
}

func (h *WalletHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.Authenticate)
		r.Get("/wallet", h.getWallet)
		r.Get("/wallet/transactions", h.listTransactions)
		r.Post("/wallet/withdrawals", h.requestWithdrawal)

		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireAdmin)
			r.Post("/admin/withdrawals/{id}/resolve", h.resolveWithdrawal)
			r.Get("/admin/wallets/{userID}/reconcile", h.reconcile)
		})
	})
}

func (h *WalletHandler) getWallet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	wl, err := h.Wallet.Balance(ctx, userID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, walletResp{Wallet: wl, Total: wl.Total()})
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func (h *WalletHandler) listTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	entries, err := h.Wallet.Entries(ctx, userID(ctx), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []wallet.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (h *WalletHandler) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req WithdrawalReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	wd, err := h.Wallet.RequestWithdrawal(ctx, userID(ctx), req.Amount, req.BankInfo)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wd)
}

func (h *WalletHandler) resolveWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		badRequest(w, "invalid withdrawal id")
		return
	}
	var req ResolveReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	wd, err := h.Wallet.ResolveWithdrawal(ctx, id, req.Action, userID(ctx), req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wd)
}

func (h *WalletHandler) reconcile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Wallet.Reconcile(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
