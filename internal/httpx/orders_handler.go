package httpx

import (
	"context"
	"github.com/ariefcatur/go-piano-orders/internal/orders"
	"github.com/ariefcatur/go-piano-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"net/http"
	"strings"
	"time"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in orders.CreateOrderInput) (orders.CreateOrderResult, error)
	CancelOrder(ctx context.Context, buyerID string, orderID int64) (orders.Order, error)
	UpdateOrderStatus(ctx context.Context, adminID string, orderID int64, to orders.Status, note string) (orders.Order, error)
	GetOrder(ctx context.Context, orderID int64) (orders.Order, error)
	OrderStatus(ctx context.Context, orderID int64) (redisx.OrderStatus, error)
}

type OrdersHandler struct {
	Orders OrderService
	Bank   orders.BankAccount
	Auth   *Auth
}

type CreateOrderReq struct {
	Type          orders.Type `json:"type"`
	PianoID       *int64      `json:"piano_id"`
	CourseID      *int64      `json:"course_id"`
	RentalStart   *time.Time  `json:"rental_start"`
	RentalEnd     *time.Time  `json:"rental_end"`
	PaymentMethod string      `json:"payment_method"`
	ReferralCode  string      `json:"referral_code"`
}

type UpdateStatusReq struct {
	Status orders.Status `json:"status"`
	Note   string        `json:"note"`
}

// OrderResp adds the transfer instruction while a QR order is still payable.
type OrderResp struct {
	orders.Order
	Payment *orders.PaymentInstruction `json:"payment,omitempty"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.Authenticate)
		r.Post("/orders", h.createOrder)
		r.Get("/orders/{id}", h.getOrder)
		r.Get("/orders/{id}/status", h.getOrderStatus)
		r.Post("/orders/{id}/cancel", h.cancelOrder)

		r.With(h.Auth.RequireAdmin).Patch("/admin/orders/{id}/status", h.updateStatus)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Orders.CreateOrder(ctx, orders.CreateOrderInput{
		BuyerID:        userID(ctx),
		PianoID:        req.PianoID,
		CourseID:       req.CourseID,
		Type:           req.Type,
		RentalStart:    req.RentalStart,
		RentalEnd:      req.RentalEnd,
		PaymentMethod:  req.PaymentMethod,
		ReferralCode:   strings.TrimSpace(req.ReferralCode),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if res.Idempotent {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}

// visible: buyer sees own orders, admin sees all, everyone else gets 404.
func (h *OrdersHandler) visible(ctx context.Context, buyerID string) (bool, error) {
	if buyerID == userID(ctx) {
		return true, nil
	}
	return h.Auth.isAdmin(ctx, userID(ctx))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		badRequest(w, "invalid order id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ok, err := h.visible(ctx, o.BuyerID); err != nil || !ok {
		writeNotVisible(w, r, err)
		return
	}
	resp := OrderResp{Order: o}
	if o.Status == orders.StatusPending && o.PaymentMethod == orders.PaymentQR {
		p := h.Bank.Instruction(o)
		resp.Payment = &p
	}
	writeJSON(w, http.StatusOK, resp)
}

// getOrderStatus is the cheap polling endpoint used while waiting for a transfer.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		badRequest(w, "invalid order id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s, err := h.Orders.OrderStatus(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ok, err := h.visible(ctx, s.BuyerID); err != nil || !ok {
		writeNotVisible(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func writeNotVisible(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNotFound, errorResp{Error: "order not found", Code: "not_found"})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		badRequest(w, "invalid order id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.CancelOrder(ctx, userID(ctx), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		badRequest(w, "invalid order id")
		return
	}
	var req UpdateStatusReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.UpdateOrderStatus(ctx, userID(ctx), id, req.Status, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
