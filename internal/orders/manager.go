package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-piano-orders/internal/apperr"
	"github.com/ariefcatur/go-piano-orders/internal/catalog"
	"github.com/ariefcatur/go-piano-orders/internal/commission"
	"github.com/ariefcatur/go-piano-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"strings"
	"time"
)

type Catalog interface {
	Piano(ctx context.Context, id int64) (catalog.Piano, error)
	Course(ctx context.Context, id int64) (catalog.Course, error)
}

type Commissions interface {
	Process(ctx context.Context, ref commission.Referral) (*commission.Commission, error)
}

// ApprovalEffects runs what an approved order pays out (ledger credit, enrollment).
type ApprovalEffects interface {
	Apply(ctx context.Context, o Order) error
}

// Dispatcher runs fn detached from the caller; tasks.Runner implements it.
type Dispatcher interface {
	Go(name string, orderID int64, fn func(ctx context.Context) error)
}

// DispatchApproval queues the approval effects of o. Call it only after this
// process won the pending -> approved transition.
func DispatchApproval(d Dispatcher, effects ApprovalEffects, o Order) {
	if effects == nil {
		return
	}
	d.Go("approval-effects", o.ID, func(ctx context.Context) error {
		return effects.Apply(ctx, o)
	})
}

type Manager struct {
	Store       Store
	Catalog     Catalog
	Commissions Commissions
	Effects     ApprovalEffects
	Tasks       Dispatcher
	Events      *Events
	Redis       *redis.Client // optional; status cache and idempotency fast path
	Bank        BankAccount

	PaymentWindow time.Duration
	Now           func() time.Time
}

type CreateOrderInput struct {
	BuyerID        string
	PianoID        *int64
	CourseID       *int64
	Type           Type
	RentalStart    *time.Time
	RentalEnd      *time.Time
	PaymentMethod  string
	ReferralCode   string
	IdempotencyKey string
}

type CreateOrderResult struct {
	Order      Order               `json:"order"`
	Payment    *PaymentInstruction `json:"payment,omitempty"`
	Idempotent bool                `json:"idempotent"`
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// CreateOrder prices and persists a pending order. Commission processing is
// dispatched after the insert and never affects the result.
func (m *Manager) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	const op = "orders.Create"

	o, err := m.price(ctx, in)
	if err != nil {
		return CreateOrderResult{}, err
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if existing, hit := m.idempotentHit(ctx, in.BuyerID, key); hit {
			return m.result(existing, true), nil
		}
		existing, err := m.Store.FindByIdempotencyKey(ctx, in.BuyerID, key)
		if err == nil {
			m.rememberIdempotency(ctx, existing)
			return m.result(existing, true), nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return CreateOrderResult{}, apperr.Internal(op, err)
		}
		o.IdempotencyKey = key
	}

	if err := m.Store.Insert(ctx, &o); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			// kalah race dengan request kembar; ambil yang sudah tersimpan
			existing, ferr := m.Store.FindByIdempotencyKey(ctx, in.BuyerID, key)
			if ferr == nil {
				return m.result(existing, true), nil
			}
		}
		return CreateOrderResult{}, apperr.Internal(op, err)
	}

	zap.L().Info("order created",
		zap.Int64("order_id", o.ID), zap.String("user_id", o.BuyerID), zap.String("type", string(o.Type)),
		zap.Int64("total_price", o.TotalPrice), zap.String("payment_method", string(o.PaymentMethod)))

	m.rememberIdempotency(ctx, o)
	m.Events.Created(o)

	if o.ReferralCode != "" && m.Commissions != nil {
		ref := commission.Referral{Code: o.ReferralCode, BuyerID: o.BuyerID, OrderID: o.ID, OrderTotal: o.TotalPrice}
		m.Tasks.Go("commission", o.ID, func(ctx context.Context) error {
			_, err := m.Commissions.Process(ctx, ref)
			return err
		})
	}

	return m.result(o, false), nil
}

// idempotentHit resolves a repeated key from Redis without touching the
// idempotency index. Any miss or Redis error falls back to the database.
func (m *Manager) idempotentHit(ctx context.Context, buyerID, key string) (Order, bool) {
	if m.Redis == nil {
		return Order{}, false
	}
	id, err := m.Redis.Get(ctx, fmt.Sprintf(redisx.KeyIdemOrderCreate, buyerID, key)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("read idempotency key", zap.String("user_id", buyerID), zap.Error(err))
		}
		return Order{}, false
	}
	o, err := m.Store.Get(ctx, id)
	if err != nil || o.BuyerID != buyerID || o.IdempotencyKey != key {
		return Order{}, false
	}
	return o, true
}

func (m *Manager) rememberIdempotency(ctx context.Context, o Order) {
	if m.Redis == nil || o.IdempotencyKey == "" {
		return
	}
	k := fmt.Sprintf(redisx.KeyIdemOrderCreate, o.BuyerID, o.IdempotencyKey)
	if err := m.Redis.SetNX(ctx, k, o.ID, redisx.TTLIdempotency).Err(); err != nil {
		zap.L().Warn("set idempotency key", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

func (m *Manager) result(o Order, idempotent bool) CreateOrderResult {
	res := CreateOrderResult{Order: o, Idempotent: idempotent}
	if o.PaymentMethod == PaymentQR {
		pi := m.Bank.Instruction(o)
		res.Payment = &pi
	}
	return res
}

// price validates the input and builds the unsaved order.
func (m *Manager) price(ctx context.Context, in CreateOrderInput) (Order, error) {
	const op = "orders.Create"
	if strings.TrimSpace(in.BuyerID) == "" {
		return Order{}, apperr.Validationf(op, "buyer is required")
	}
	method, ok := ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return Order{}, apperr.Validationf(op, "unsupported payment method %q", in.PaymentMethod)
	}
	if (in.PianoID == nil) == (in.CourseID == nil) {
		return Order{}, apperr.Validationf(op, "exactly one of piano_id or course_id is required")
	}

	o := Order{
		BuyerID:       in.BuyerID,
		Type:          in.Type,
		Status:        StatusPending,
		PaymentMethod: method,
		ReferralCode:  strings.TrimSpace(in.ReferralCode),
	}

	switch in.Type {
	case TypeCourse:
		if in.CourseID == nil {
			return Order{}, apperr.Validationf(op, "course orders need course_id")
		}
		c, err := m.Catalog.Course(ctx, *in.CourseID)
		if err != nil {
			return Order{}, lookupErr(op, err)
		}
		o.CourseID = &c.ID
		o.TotalPrice = c.Price

	case TypeBuy, TypeRent:
		if in.PianoID == nil {
			return Order{}, apperr.Validationf(op, "%s orders need piano_id", in.Type)
		}
		p, err := m.Catalog.Piano(ctx, *in.PianoID)
		if err != nil {
			return Order{}, lookupErr(op, err)
		}
		o.PianoID = &p.ID
		if in.Type == TypeBuy {
			o.TotalPrice = BuyPrice(p)
			break
		}
		if in.RentalStart == nil || in.RentalEnd == nil {
			return Order{}, apperr.Validationf(op, "rent orders need rental_start and rental_end")
		}
		days, err := RentalDays(*in.RentalStart, *in.RentalEnd)
		if err != nil {
			return Order{}, apperr.Validation(op, err)
		}
		o.RentalStart, o.RentalEnd, o.RentalDays = in.RentalStart, in.RentalEnd, days
		o.TotalPrice = RentalPrice(p.PricePerDay, days)

	default:
		return Order{}, apperr.Validationf(op, "unsupported order type %q", in.Type)
	}

	if method == PaymentQR {
		window := m.PaymentWindow
		if window <= 0 {
			window = 60 * time.Minute
		}
		exp := m.now().Add(window)
		o.PaymentExpiredAt = &exp
	}
	return o, nil
}

func lookupErr(op string, err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return apperr.NotFound(op, err)
	}
	return apperr.Internal(op, err)
}

// CancelOrder lets the buyer withdraw a pending order.
func (m *Manager) CancelOrder(ctx context.Context, buyerID string, orderID int64) (Order, error) {
	const op = "orders.Cancel"
	ok, err := m.Store.Cancel(ctx, buyerID, orderID, "cancelled by buyer")
	if err != nil {
		return Order{}, apperr.Internal(op, err)
	}

	if ok {
		// cancel sudah committed; re-read hanya untuk melengkapi response
		o, err := m.Store.Get(ctx, orderID)
		if err != nil {
			zap.L().Warn("re-read cancelled order", zap.Int64("order_id", orderID), zap.Error(err))
			o = Order{ID: orderID, BuyerID: buyerID}
		}
		o.Status = StatusCancelled

		zap.L().Info("order cancelled", zap.Int64("order_id", orderID), zap.String("user_id", buyerID))
		m.invalidate(ctx, orderID)
		m.Events.Cancelled(o, "buyer")
		return o, nil
	}

	o, err := m.Store.Get(ctx, orderID)
	if errors.Is(err, ErrOrderNotFound) || (err == nil && o.BuyerID != buyerID) {
		return Order{}, apperr.NotFound(op, ErrOrderNotFound)
	}
	if err != nil {
		return Order{}, apperr.Internal(op, err)
	}
	return Order{}, apperr.Conflict(op, fmt.Errorf("%w: status %s", ErrNotPending, o.Status))
}

// UpdateOrderStatus is the admin approve/reject. Approval effects run only
// for the call that actually moved the order out of pending.
func (m *Manager) UpdateOrderStatus(ctx context.Context, adminID string, orderID int64, to Status, note string) (Order, error) {
	const op = "orders.UpdateStatus"
	if to != StatusApproved && to != StatusRejected {
		return Order{}, apperr.Validationf(op, "status must be approved or rejected, got %q", to)
	}

	prior, err := m.Store.Get(ctx, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		return Order{}, apperr.NotFound(op, err)
	}
	if err != nil {
		return Order{}, apperr.Internal(op, err)
	}

	if !CanTransition(prior.Status, to) {
		// notes stay editable after the order is final
		if note != "" {
			if err := m.Store.AppendNote(ctx, orderID, note); err != nil {
				return Order{}, apperr.Internal(op, err)
			}
		}
		return Order{}, apperr.Conflict(op, fmt.Errorf("%w: status %s", ErrNotPending, prior.Status))
	}

	at := m.now()
	won, err := m.Store.Decide(ctx, orderID, to, adminID, note, at)
	if err != nil {
		return Order{}, apperr.Internal(op, err)
	}
	if !won {
		return Order{}, apperr.Conflict(op, ErrNotPending)
	}

	o := prior
	o.Status, o.ApprovedBy, o.ApprovedAt = to, adminID, &at
	if note != "" {
		o.AdminNotes = strings.TrimPrefix(o.AdminNotes+"\n"+note, "\n")
	}

	zap.L().Info("order status updated",
		zap.Int64("order_id", orderID), zap.String("status", string(to)), zap.String("admin_id", adminID))
	m.invalidate(ctx, orderID)

	if to == StatusApproved {
		m.Events.Approved(o, "admin")
		DispatchApproval(m.Tasks, m.Effects, o)
	} else {
		m.Events.Rejected(o, note)
	}
	return o, nil
}

func (m *Manager) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	o, err := m.Store.Get(ctx, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		return Order{}, apperr.NotFound("orders.Get", err)
	}
	if err != nil {
		return Order{}, apperr.Internal("orders.Get", err)
	}
	return o, nil
}

// OrderStatus serves from the Redis cache when it can. Only final statuses
// are cached: a pending read can race a transition and its invalidation.
func (m *Manager) OrderStatus(ctx context.Context, orderID int64) (redisx.OrderStatus, error) {
	if m.Redis != nil {
		if s, hit, err := redisx.CachedOrderStatus(ctx, m.Redis, orderID); err == nil && hit {
			return s, nil
		}
	}
	o, err := m.GetOrder(ctx, orderID)
	if err != nil {
		return redisx.OrderStatus{}, err
	}
	m.cacheStatus(ctx, o)
	return statusOf(o), nil
}

func statusOf(o Order) redisx.OrderStatus {
	return redisx.OrderStatus{OrderID: o.ID, BuyerID: o.BuyerID, Status: string(o.Status), UpdatedAt: o.UpdatedAt}
}

func (m *Manager) cacheStatus(ctx context.Context, o Order) {
	if m.Redis == nil || !o.Status.Final() {
		return
	}
	s := statusOf(o)
	if err := redisx.CacheOrderStatus(ctx, m.Redis, s); err != nil {
		zap.L().Warn("cache order status", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

func (m *Manager) invalidate(ctx context.Context, orderID int64) {
	InvalidateStatus(ctx, m.Redis, orderID)
}

// InvalidateStatus drops the cached status after a transition; rdb may be nil.
func InvalidateStatus(ctx context.Context, rdb *redis.Client, orderID int64) {
	if rdb == nil {
		return
	}
	if err := redisx.InvalidateOrderStatus(ctx, rdb, orderID); err != nil {
		zap.L().Warn("invalidate order status", zap.Int64("order_id", orderID), zap.Error(err))
	}
}
